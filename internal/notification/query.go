package notification

import (
	"time"

	"herald/internal/constants"
)

// defaultProjection is the field set returned when the caller does not
// request an explicit projection. The message body is excluded to keep
// list responses small.
var defaultProjection = []string{
	"notificationId",
	"recipientId",
	"title",
	"timestamp",
	"status",
	"type",
	"mobileNumber",
	"email",
}

// buildQueryBody assembles the bool query, sort and projection shared
// by both search phases. Filters combine with logical AND; each filter
// clause follows from the tagged value kind decided at decode time.
func buildQueryBody(req SearchRequest) map[string]interface{} {
	must := make([]interface{}, 0, len(req.Filters)+1)

	for field, value := range req.Filters {
		switch value.Kind {
		case FilterBool:
			must = append(must, map[string]interface{}{
				"term": map[string]interface{}{field: value.Bool},
			})
		case FilterStringList:
			must = append(must, map[string]interface{}{
				"terms": map[string]interface{}{field + ".keyword": value.List},
			})
		case FilterText:
			must = append(must, map[string]interface{}{
				"match": map[string]interface{}{field: value.Text},
			})
		case FilterDateLower:
			must = append(must, map[string]interface{}{
				"range": map[string]interface{}{
					field: map[string]interface{}{
						"gte": value.DateLower.Format(time.RFC3339),
					},
				},
			})
		}
	}

	if req.FreeTextQuery != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  req.FreeTextQuery,
				"fields": []string{"title", "message"},
				"type":   "best_fields",
			},
		})
	}

	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": must,
			},
		},
		"sort": buildSort(req),
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = defaultProjection
	}
	body["_source"] = fields

	return body
}

func buildSort(req SearchRequest) []map[string]interface{} {
	field := req.SortField
	direction := req.SortDirection
	if field == "" {
		field = constants.DefaultSortField
		direction = "desc"
	}
	if direction != "asc" && direction != "desc" {
		direction = "desc"
	}
	return []map[string]interface{}{
		{field: map[string]interface{}{"order": direction}},
	}
}

// facetAggName derives the deterministic aggregation alias for a field.
func facetAggName(field string) string {
	return field + "_agg"
}

// buildAggregations adds a terms bucket per requested facet field,
// aggregating on the field's non-analyzed keyword variant.
func buildAggregations(facetFields []string) map[string]interface{} {
	if len(facetFields) == 0 {
		return nil
	}
	aggs := make(map[string]interface{}, len(facetFields))
	for _, field := range facetFields {
		aggs[facetAggName(field)] = map[string]interface{}{
			"terms": map[string]interface{}{
				"field": field + ".keyword",
				"size":  constants.DefaultSearchWindow,
			},
		}
	}
	return aggs
}
