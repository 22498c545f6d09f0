package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultJobTimeout applies when a job sets no timeout
const DefaultJobTimeout = 5 * time.Minute

// ParseDuration safely parses duration string like "5m"
func ParseDuration(d string) time.Duration {
	if d == "" {
		return DefaultJobTimeout
	}
	duration, err := time.ParseDuration(d)
	if err != nil || duration <= 0 {
		return DefaultJobTimeout
	}
	return duration
}

// ParseValue reads a command line value as an int, a float, a bool or a string
func ParseValue(s string) interface{} {
	s = strings.TrimSpace(s)

	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// ParseKeyValues parses key=value pairs. A value with commas becomes a list
// of strings: "ids=a,b" -> {"ids": ["a", "b"]}.
func ParseKeyValues(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid pair %q, want key=value", p)
		}
		if strings.Contains(v, ",") {
			var list []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					list = append(list, item)
				}
			}
			out[k] = list
			continue
		}
		out[k] = ParseValue(v)
	}
	return out, nil
}

// QueryValues renders parsed pairs as query parameters. Lists repeat the
// key. Nil for no pairs.
func QueryValues(pairs map[string]interface{}) url.Values {
	if len(pairs) == 0 {
		return nil
	}
	q := make(url.Values, len(pairs))
	for k, val := range pairs {
		switch v := val.(type) {
		case []string:
			for _, item := range v {
				q.Add(k, item)
			}
		default:
			q.Set(k, fmt.Sprint(v))
		}
	}
	return q
}
