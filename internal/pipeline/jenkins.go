package pipeline

import (
	"go-insights-pipeline/internal/model"
)

const stageType = "CICD_STAGE"

// jenkinsStagesRule partitions a page into job runs and stages and attaches
// stage rows: job runs get their stages, stages get their own details.
func jenkinsStagesRule() Rule {
	return Rule{
		Name:   "jenkins_stages",
		Fields: []string{"jenkins_pipeline_job_stages"},
		Trigger: func(first model.Record) bool {
			return first.Has("type")
		},
		Explicit: true,
		Lookups: func(records []model.Record) []Lookup {
			jobs, stages := partitionRuns(records)
			return []Lookup{{
				Name: "stages",
				URI:  "jenkins_pipeline_job_stages",
				Filters: model.Filters{
					"filter":    map[string]interface{}{"job_run_ids": jobs, "stage_ids": stages},
					"page_size": lookupPageSize,
				},
			}}
		},
		Join: func(records []model.Record, found Lookups) []model.Record {
			byRun := make(map[string][]interface{})
			for _, st := range found["stages"].Records {
				run := st.String("job_run_id")
				byRun[run] = append(byRun[run], map[string]interface{}(st))
			}
			byID := index(found["stages"], "id")

			out := make([]model.Record, len(records))
			for i, rec := range records {
				if rec.String("type") == stageType {
					if st, ok := byID[rec.String("id")]; ok {
						out[i] = rec.With("stage_details", map[string]interface{}(st))
					} else {
						out[i] = rec.Clone()
					}
					continue
				}
				stages := byRun[rec.String("id")]
				if stages == nil {
					stages = []interface{}{}
				}
				out[i] = rec.With("stages", stages)
			}
			return out
		},
	}
}

func partitionRuns(records []model.Record) (jobs, stages []string) {
	var jobRecs, stageRecs []model.Record
	for _, rec := range records {
		if rec.String("type") == stageType {
			stageRecs = append(stageRecs, rec)
		} else {
			jobRecs = append(jobRecs, rec)
		}
	}
	jobs = CollectIDs(jobRecs, "id")
	stages = CollectIDs(stageRecs, "id")
	if jobs == nil {
		jobs = []string{}
	}
	if stages == nil {
		stages = []string{}
	}
	return jobs, stages
}
