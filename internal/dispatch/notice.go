package dispatch

import (
	"time"

	"go.uber.org/zap"
)

// Level of a user-facing notice
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing message: a failed explicit action, an export
// cap warning and the like.
type Notice struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	URI       string    `json:"uri,omitempty"`
	Code      int       `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier receives notices
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

// Notify implements Notifier
func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a zap logger
type LogNotifier struct {
	Log *zap.Logger
}

// Notify implements Notifier
func (l LogNotifier) Notify(n Notice) {
	log := l.Log
	if log == nil {
		return
	}
	fields := []zap.Field{zap.String("uri", n.URI), zap.Int("code", n.Code)}
	switch n.Level {
	case LevelError:
		log.Error(n.Message, fields...)
	case LevelWarning:
		log.Warn(n.Message, fields...)
	default:
		log.Info(n.Message, fields...)
	}
}

// MultiNotifier fans a notice out to every member
type MultiNotifier []Notifier

// Notify implements Notifier
func (m MultiNotifier) Notify(n Notice) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(n)
		}
	}
}

func stamp(n Notice) Notice {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	return n
}
