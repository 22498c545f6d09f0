package pipeline

import (
	"sort"
	"strconv"

	"go-insights-pipeline/internal/model"
)

// DeriveAll allows every derivation rule
const DeriveAll = "all"

// Lookup is one secondary list call planned by a rule
type Lookup struct {
	// Name identifies the lookup within its rule, e.g. "tickets"
	Name    string
	URI     string
	Filters model.Filters
}

// Lookups holds fetched lookup results by lookup name
type Lookups map[string]model.ListResult

// Rule resolves one foreign-key shaped field family into readable values.
// A rule fires when the first record of a page carries one of its Fields
// (or Trigger accepts the record) and the caller allows that field.
type Rule struct {
	Name    string
	Fields  []string
	Trigger func(first model.Record) bool
	// Explicit rules fire only when deriveOnly names one of their fields;
	// nil and "all" do not enable them.
	Explicit bool
	// Lookups builds the secondary calls from every record of the page
	Lookups func(records []model.Record) []Lookup
	// Join returns new records with the resolved fields; inputs are not
	// modified.
	Join func(records []model.Record, found Lookups) []model.Record
}

// Allowed reports whether deriveOnly accepts field. Nil means all.
func Allowed(deriveOnly []string, field string) bool {
	if deriveOnly == nil {
		return true
	}
	for _, f := range deriveOnly {
		if f == DeriveAll || f == field {
			return true
		}
	}
	return false
}

func (r Rule) fires(first model.Record, deriveOnly []string) bool {
	for _, f := range r.Fields {
		if r.Explicit && !named(deriveOnly, f) {
			continue
		}
		if !Allowed(deriveOnly, f) {
			continue
		}
		if r.Trigger != nil {
			if r.Trigger(first) {
				return true
			}
			continue
		}
		if first.Has(f) {
			return true
		}
	}
	return false
}

func named(deriveOnly []string, field string) bool {
	for _, f := range deriveOnly {
		if f == field {
			return true
		}
	}
	return false
}

// Plan returns the rules from table that fire for first, in table order
func Plan(table []Rule, first model.Record, deriveOnly []string) []Rule {
	if first == nil {
		return nil
	}
	var out []Rule
	for _, r := range table {
		if r.fires(first, deriveOnly) {
			out = append(out, r)
		}
	}
	return out
}

// PlanNames is Plan reduced to rule names
func PlanNames(table []Rule, first model.Record, deriveOnly []string) []string {
	var names []string
	for _, r := range Plan(table, first, deriveOnly) {
		names = append(names, r.Name)
	}
	return names
}

// CollectIDs scans every record for the given fields, flattening list
// values, and returns each distinct id once in first-seen order. Ids are
// stringified.
func CollectIDs(records []model.Record, fields ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(v interface{}) {
		if v == nil {
			return
		}
		id := model.Stringify(v)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, rec := range records {
		for _, f := range fields {
			switch v := rec[f].(type) {
			case []interface{}:
				for _, item := range v {
					add(item)
				}
			case []string:
				for _, item := range v {
					add(item)
				}
			default:
				add(v)
			}
		}
	}
	return out
}

// CollectInts is CollectIDs parsed to integers; non-numeric ids are
// returned separately.
func CollectInts(records []model.Record, fields ...string) (ids []int, dropped []string) {
	for _, s := range CollectIDs(records, fields...) {
		n, err := strconv.Atoi(s)
		if err != nil {
			dropped = append(dropped, s)
			continue
		}
		ids = append(ids, n)
	}
	return ids, dropped
}

// index builds a lookup table keyed by the stringified key field
func index(res model.ListResult, key string) map[string]model.Record {
	out := make(map[string]model.Record, len(res.Records))
	for _, r := range res.Records {
		k := r.String(key)
		if k == "" {
			continue
		}
		if _, ok := out[k]; !ok {
			out[k] = r
		}
	}
	return out
}

func values(v interface{}) []interface{} {
	switch val := v.(type) {
	case []interface{}:
		return val
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case nil:
		return nil
	default:
		return []interface{}{val}
	}
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func isNumericString(v interface{}) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
