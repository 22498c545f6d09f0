package pipeline

import (
	"sort"

	"go-insights-pipeline/internal/model"
)

// AggCustomFields returns the union of config.agg_custom_fields over the
// integration config records, key to display name.
func AggCustomFields(configs model.ListResult) map[string]string {
	out := make(map[string]string)
	for _, rec := range configs.Records {
		cfg, ok := rec["config"].(map[string]interface{})
		if !ok {
			continue
		}
		for _, item := range values(cfg["agg_custom_fields"]) {
			field, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			key := model.Record(field).String("key")
			if key == "" {
				continue
			}
			if _, seen := out[key]; !seen {
				out[key] = model.Record(field).String("name")
			}
		}
	}
	return out
}

// customFieldsRule is a two-hop derivation: integration configs give the
// supported custom field keys, each record keeps the keys it carries that
// are supported.
func customFieldsRule() Rule {
	return Rule{
		Name:   "custom_fields",
		Fields: []string{"custom_fields", "custom_case_fields"},
		Lookups: func(records []model.Record) []Lookup {
			ids := CollectIDs(records, "integration_id", "integration_ids")
			return []Lookup{{Name: "configs", URI: "integration_configs", Filters: lookupFilters("integration_ids", ids)}}
		},
		Join: func(records []model.Record, found Lookups) []model.Record {
			allow := AggCustomFields(found["configs"])
			out := make([]model.Record, len(records))
			for i, rec := range records {
				out[i] = rec.With("custom_fields_mappings", customFieldMappings(rec, allow))
			}
			return out
		},
	}
}

func customFieldMappings(rec model.Record, allow map[string]string) []interface{} {
	var keys []string
	for _, f := range []string{"custom_fields", "custom_case_fields"} {
		fields, ok := rec[f].(map[string]interface{})
		if !ok {
			continue
		}
		for k := range fields {
			if _, ok := allow[k]; ok {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	mappings := make([]interface{}, 0, len(keys))
	var last string
	for _, k := range keys {
		if k == last {
			continue
		}
		last = k
		mappings = append(mappings, map[string]interface{}{"key": k, "name": allow[k]})
	}
	return mappings
}
