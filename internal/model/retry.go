package model

import "time"

// RetryConfig defines retry behavior for backend calls. MaxAttempts of 1
// disables retries, which is the default: a failed fetch is surfaced and the
// user re-triggers the action.
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay" mapstructure:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	Jitter            bool          `json:"jitter" mapstructure:"jitter"`
}
