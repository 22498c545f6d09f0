package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager organizes export files in one directory per job
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// CreateJobOutputDir creates the directory holding a job's files
func (om *OutputManager) CreateJobOutputDir(jobID string) (string, error) {
	jobDir := filepath.Join(om.BaseOutputDir, filepath.Base(jobID))
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create job output directory: %w", err)
	}
	return jobDir, nil
}

// GetOutputFilePath generates a full path for an output file. Path
// separators in fileName are dropped.
func (om *OutputManager) GetOutputFilePath(jobID, fileName string) (string, error) {
	jobDir, err := om.CreateJobOutputDir(jobID)
	if err != nil {
		return "", err
	}
	return filepath.Join(jobDir, filepath.Base(fileName)), nil
}

// WriteFile writes content as fileName in the job's directory and returns its path
func (om *OutputManager) WriteFile(jobID, fileName string, content []byte) (string, error) {
	path, err := om.GetOutputFilePath(jobID, fileName)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", fileName, err)
	}
	return path, nil
}

// ListFiles returns the names of a job's files
func (om *OutputManager) ListFiles(jobID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(om.BaseOutputDir, filepath.Base(jobID)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// GetDownloadURL generates the API download URL for a job file
func (om *OutputManager) GetDownloadURL(jobID, fileName string) string {
	return fmt.Sprintf("/api/v1/exports/%s/files/%s", jobID, filepath.Base(fileName))
}

// GetContentType returns the HTTP content type for a file name
func (om *OutputManager) GetContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0755)
}

// Lookup returns the path of an existing job file
func (om *OutputManager) Lookup(jobID, fileName string) (string, error) {
	path := filepath.Join(om.BaseOutputDir, filepath.Base(jobID), filepath.Base(fileName))
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", fileName)
	}
	return path, nil
}
