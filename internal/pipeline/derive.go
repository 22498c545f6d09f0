package pipeline

import (
	"go.uber.org/zap"

	"go-insights-pipeline/internal/model"
)

// lookupPageSize bounds a single lookup; a page never references more ids
const lookupPageSize = 1000

// lookupFilters builds the body of a lookup: {"filter": {key: ids}}
func lookupFilters(key string, ids interface{}) model.Filters {
	return model.Filters{
		"filter":    map[string]interface{}{key: ids},
		"page":      0,
		"page_size": lookupPageSize,
	}
}

// target maps a source field to the field written with its resolved value
type target struct {
	from string
	to   string
}

// labelRule is the common shape: collect ids from the source fields, list
// the lookup resource filtered by them, and write attr of each match.
type labelRule struct {
	name      string
	uri       string
	filterKey string
	attr      string
	targets   []target
	ints      bool
}

func (lr labelRule) rule(log *zap.Logger) Rule {
	fields := make([]string, len(lr.targets))
	for i, t := range lr.targets {
		fields[i] = t.from
	}
	return Rule{
		Name:   lr.name,
		Fields: fields,
		Lookups: func(records []model.Record) []Lookup {
			var ids interface{}
			if lr.ints {
				n, dropped := CollectInts(records, fields...)
				if len(dropped) > 0 {
					log.Warn("non-numeric ids dropped",
						zap.String("rule", lr.name),
						zap.Strings("ids", dropped))
				}
				ids = n
			} else {
				ids = CollectIDs(records, fields...)
			}
			return []Lookup{{Name: lr.name, URI: lr.uri, Filters: lookupFilters(lr.filterKey, ids)}}
		},
		Join: func(records []model.Record, found Lookups) []model.Record {
			table := index(found[lr.name], "id")
			out := make([]model.Record, len(records))
			for i, rec := range records {
				next := rec.Clone()
				for _, t := range lr.targets {
					if !rec.Has(t.from) {
						continue
					}
					next[t.to] = resolve(rec[t.from], table, lr.attr)
				}
				out[i] = next
			}
			return out
		},
	}
}

// resolve maps a scalar or list id value through table. Unknown ids keep
// their original value.
func resolve(v interface{}, table map[string]model.Record, attr string) interface{} {
	label := func(item interface{}) interface{} {
		if m, ok := table[model.Stringify(item)]; ok && m.Has(attr) {
			return m[attr]
		}
		return item
	}
	switch v.(type) {
	case []interface{}, []string:
		items := values(v)
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = label(item)
		}
		return out
	default:
		return label(v)
	}
}

// tagRule resolves tag ids into names and, for numeric tag ids, keeps the
// {key,label} pairs under _tags.
func tagRule() Rule {
	fields := []string{"tags", "tag_ids"}
	return Rule{
		Name:   "tags",
		Fields: fields,
		Lookups: func(records []model.Record) []Lookup {
			return []Lookup{{Name: "tags", URI: "tags", Filters: lookupFilters("tag_ids", CollectIDs(records, fields...))}}
		},
		Join: func(records []model.Record, found Lookups) []model.Record {
			table := index(found["tags"], "id")
			out := make([]model.Record, len(records))
			for i, rec := range records {
				next := rec.Clone()
				var raw []interface{}
				for _, f := range fields {
					raw = append(raw, values(rec[f])...)
				}
				if rec.Has("tags") || rec.Has("tag_ids") {
					names := make([]interface{}, 0, len(raw))
					var pairs []map[string]interface{}
					for _, v := range raw {
						name := resolve(v, table, "name")
						names = append(names, name)
						if isNumericString(v) {
							pairs = append(pairs, map[string]interface{}{"key": v, "label": name})
						}
					}
					next["tags"] = names
					if len(pairs) > 0 {
						next["_tags"] = pairs
					}
				}
				out[i] = next
			}
			return out
		},
	}
}

// DefaultRules returns the derivation table in evaluation order
func DefaultRules(log *zap.Logger) []Rule {
	if log == nil {
		log = zap.NewNop()
	}
	return []Rule{
		tagRule(),
		labelRule{name: "integration", uri: "integrations", filterKey: "integration_ids", attr: "name",
			targets: []target{{"integration_id", "integration_name"}, {"integration_ids", "integration_names"}}}.rule(log),
		labelRule{name: "owner", uri: "users", filterKey: "ids", attr: "email",
			targets: []target{{"owner_id", "owner"}}}.rule(log),
		labelRule{name: "creator", uri: "users", filterKey: "ids", attr: "email",
			targets: []target{{"created_by", "creator"}}}.rule(log),
		labelRule{name: "dashboard", uri: "dashboards", filterKey: "ids", attr: "name",
			targets: []target{{"dashboard_id", "dashboard_name"}}}.rule(log),
		labelRule{name: "product", uri: "products", filterKey: "ids", attr: "name", ints: true,
			targets: []target{{"product_id", "product_name"}, {"product_ids", "product_names"}}}.rule(log),
		labelRule{name: "work_item", uri: "workitems", filterKey: "ids", attr: "vanity_id",
			targets: []target{{"work_item_id", "work_item_vanity_id"}}}.rule(log),
		labelRule{name: "runbook", uri: "runbooks", filterKey: "ids", attr: "name",
			targets: []target{{"runbook_id", "runbook_name"}}}.rule(log),
		labelRule{name: "state", uri: "states", filterKey: "ids", attr: "name",
			targets: []target{{"state_id", "state"}}}.rule(log),
		customFieldsRule(),
		storyPointsRule(),
		jenkinsStagesRule(),
	}
}
