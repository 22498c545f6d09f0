package model

import (
	"fmt"
	"strconv"
)

// Record is a schema-agnostic record decoded from a backend list or get call
type Record map[string]interface{}

// Clone returns a shallow copy of the record. Joins work on clones so that a
// record already published to the cache is never mutated.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// With returns a clone of the record with key set to value
func (r Record) With(key string, value interface{}) Record {
	out := r.Clone()
	out[key] = value
	return out
}

// Has reports whether the record carries the field, even when its value is nil
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// String returns the field rendered as a string, or "" when absent
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	return Stringify(v)
}

// Stringify renders a scalar JSON value the way the backend expects ids:
// integral floats lose their fraction, everything else goes through %v.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Method is the second dimension of a cache address
type Method string

const (
	MethodList   Method = "list"
	MethodGet    Method = "get"
	MethodCreate Method = "create"
	MethodUpdate Method = "update"
	MethodDelete Method = "delete"
)

// Valid reports whether m is one of the known methods
func (m Method) Valid() bool {
	switch m {
	case MethodList, MethodGet, MethodCreate, MethodUpdate, MethodDelete:
		return true
	}
	return false
}

// Metadata is the paging envelope returned next to list records
type Metadata struct {
	TotalCount int   `json:"total_count"`
	HasNext    *bool `json:"has_next,omitempty"`
}

// More reports whether the server announced another page
func (m Metadata) More() bool {
	return m.HasNext != nil && *m.HasNext
}

// ListResult is the body of a list call. Records keep server order.
type ListResult struct {
	Records  []Record `json:"records"`
	Metadata Metadata `json:"_metadata"`
}

// ListResultFrom converts a decoded JSON body into a ListResult
func ListResultFrom(raw map[string]interface{}) ListResult {
	var res ListResult
	if recs, ok := raw["records"].([]interface{}); ok {
		res.Records = make([]Record, 0, len(recs))
		for _, item := range recs {
			if m, ok := item.(map[string]interface{}); ok {
				res.Records = append(res.Records, Record(m))
			}
		}
	}
	if meta, ok := raw["_metadata"].(map[string]interface{}); ok {
		if tc, ok := meta["total_count"]; ok {
			res.Metadata.TotalCount = int(Numeric(tc))
		}
		if hn, ok := meta["has_next"].(bool); ok {
			res.Metadata.HasNext = &hn
		}
	}
	return res
}

// Filters is the body sent with a list call: filter object, paging, sort
type Filters map[string]interface{}

// Clone returns a shallow copy of the filters
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Page returns the requested page, 0 when unset
func (f Filters) Page() int {
	return int(Numeric(f["page"]))
}

// PageSize returns the requested page size, 0 when unset
func (f Filters) PageSize() int {
	return int(Numeric(f["page_size"]))
}

// WithPage returns a copy of the filters asking for page n
func (f Filters) WithPage(n int) Filters {
	out := f.Clone()
	out["page"] = n
	return out
}

// WithPageSize returns a copy of the filters asking for size records per page
func (f Filters) WithPageSize(size int) Filters {
	out := f.Clone()
	out["page_size"] = size
	return out
}

// Numeric safely converts supported JSON scalar types to float64
func Numeric(v interface{}) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float64:
		return val
	case float32:
		return float64(val)
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
