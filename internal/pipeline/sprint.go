package pipeline

import (
	"sort"
	"strings"

	"go-insights-pipeline/internal/model"
)

// Ticket categories of a sprint
const (
	CategoryCommitted = "committed"
	CategoryCreep     = "creep"
)

// storyPointsRule resolves the ticket keys referenced by a sprint's story
// point changes into sprint_tickets rows. Jira sprints look up
// jira_tickets, work item sprints look up issue_management_workitem_list.
func storyPointsRule() Rule {
	return Rule{
		Name:   "story_points",
		Fields: []string{"story_points_by_issue", "story_points_by_workitem"},
		Lookups: func(records []model.Record) []Lookup {
			var issueKeys, workitemKeys []string
			for _, rec := range records {
				issueKeys = append(issueKeys, mapKeys(rec["story_points_by_issue"])...)
				workitemKeys = append(workitemKeys, mapKeys(rec["story_points_by_workitem"])...)
			}
			integrationIDs := CollectIDs(records, "integration_id", "integration_ids")

			var lookups []Lookup
			if len(workitemKeys) > 0 && len(issueKeys) == 0 {
				lookups = append(lookups, Lookup{
					Name: "tickets",
					URI:  "issue_management_workitem_list",
					Filters: model.Filters{
						"filter":    map[string]interface{}{"workitem_ids": dedup(workitemKeys), "integration_ids": integrationIDs},
						"page_size": lookupPageSize,
					},
				})
			} else {
				lookups = append(lookups, Lookup{
					Name: "tickets",
					URI:  "jira_tickets",
					Filters: model.Filters{
						"filter":    map[string]interface{}{"keys": dedup(issueKeys), "integration_ids": integrationIDs},
						"page_size": lookupPageSize,
					},
				})
			}
			lookups = append(lookups, Lookup{Name: "integrations", URI: "integrations", Filters: lookupFilters("integration_ids", integrationIDs)})
			return lookups
		},
		Join: func(records []model.Record, found Lookups) []model.Record {
			tickets := index(found["tickets"], "key")
			for k, v := range index(found["tickets"], "workitem_id") {
				if _, ok := tickets[k]; !ok {
					tickets[k] = v
				}
			}
			integrations := index(found["integrations"], "id")

			out := make([]model.Record, len(records))
			for i, rec := range records {
				out[i] = rec.With("sprint_tickets", sprintTickets(rec, tickets, integrations))
			}
			return out
		},
	}
}

func sprintTickets(rec model.Record, tickets, integrations map[string]model.Record) []interface{} {
	field, browse := "story_points_by_issue", "/browse/"
	if !rec.Has(field) {
		field, browse = "story_points_by_workitem", "/_workitems/edit/"
	}
	points, _ := rec[field].(map[string]interface{})

	committed := keySet(rec["committed_keys"])
	creep := keySet(rec["creep_keys"])
	delivered := keySet(rec["delivered_keys"])

	// every key the sprint mentions, not only those with point changes
	all := mapKeys(points)
	for _, set := range []map[string]bool{committed, creep, delivered} {
		for k := range set {
			all = append(all, k)
		}
	}
	keys := dedup(all)
	sort.Strings(keys)

	base := ""
	if integ, ok := integrations[rec.String("integration_id")]; ok {
		base = strings.TrimRight(integ.String("url"), "/")
	}

	rows := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		ticket := tickets[key]
		row := map[string]interface{}{
			"key":             key,
			"summary":         ticket.String("summary"),
			"status":          ticket.String("status"),
			"story_points":    StoryPointsLabel(points[key]),
			"ticket_category": TicketCategory(key, committed, creep),
			"delivered":       delivered[key],
		}
		if base != "" {
			row["url"] = base + browse + key
		} else {
			row["url"] = ""
		}
		rows = append(rows, row)
	}
	return rows
}

// StoryPointsLabel renders a story point change: "before -> after" when it
// changed, "before" when it did not, "-" when there is nothing to show.
func StoryPointsLabel(change interface{}) string {
	m, ok := change.(map[string]interface{})
	if !ok {
		if change == nil {
			return "-"
		}
		return model.Stringify(change)
	}
	before, hasBefore := m["before"]
	after, hasAfter := m["after"]
	if !hasBefore || before == nil {
		if hasAfter && after != nil {
			return model.Stringify(after)
		}
		return "-"
	}
	b := model.Stringify(before)
	if !hasAfter || after == nil {
		return b
	}
	a := model.Stringify(after)
	if a == b {
		return b
	}
	return b + " -> " + a
}

// TicketCategory classifies key: committed wins over creep, either wins
// over no category.
func TicketCategory(key string, committed, creep map[string]bool) string {
	switch {
	case committed[key]:
		return CategoryCommitted
	case creep[key]:
		return CategoryCreep
	default:
		return ""
	}
}

func keySet(v interface{}) map[string]bool {
	out := make(map[string]bool)
	for _, item := range values(v) {
		if s := model.Stringify(item); s != "" {
			out[s] = true
		}
	}
	return out
}

func mapKeys(v interface{}) []string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
