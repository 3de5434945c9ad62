package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustClauses(t *testing.T, body map[string]interface{}) []interface{} {
	t.Helper()
	query, ok := body["query"].(map[string]interface{})
	require.True(t, ok)
	boolQuery, ok := query["bool"].(map[string]interface{})
	require.True(t, ok)
	must, ok := boolQuery["must"].([]interface{})
	require.True(t, ok)
	return must
}

func TestBuildQueryBody_FilterKinds(t *testing.T) {
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	req := SearchRequest{
		Filters: map[string]FilterValue{
			"read":      BoolFilter(true),
			"status":    ListFilter([]string{"sent", "pending"}),
			"title":     TextFilter("welcome"),
			"timestamp": DateFilter(cutoff),
		},
	}

	must := mustClauses(t, buildQueryBody(req))
	require.Len(t, must, 4)

	var sawTerm, sawTerms, sawMatch, sawRange bool
	for _, clause := range must {
		m := clause.(map[string]interface{})
		if term, ok := m["term"].(map[string]interface{}); ok {
			sawTerm = true
			assert.Equal(t, true, term["read"])
		}
		if terms, ok := m["terms"].(map[string]interface{}); ok {
			sawTerms = true
			assert.Equal(t, []string{"sent", "pending"}, terms["status.keyword"])
		}
		if match, ok := m["match"].(map[string]interface{}); ok {
			sawMatch = true
			assert.Equal(t, "welcome", match["title"])
		}
		if rng, ok := m["range"].(map[string]interface{}); ok {
			sawRange = true
			bounds := rng["timestamp"].(map[string]interface{})
			assert.Equal(t, "2026-03-01T00:00:00Z", bounds["gte"])
		}
	}
	assert.True(t, sawTerm, "boolean filter must map to a term clause")
	assert.True(t, sawTerms, "list filter must map to a terms clause on the keyword variant")
	assert.True(t, sawMatch, "text filter must map to a match clause")
	assert.True(t, sawRange, "date filter must map to a gte range clause")
}

func TestBuildQueryBody_FreeTextQuery(t *testing.T) {
	must := mustClauses(t, buildQueryBody(SearchRequest{FreeTextQuery: "urgent delivery"}))
	require.Len(t, must, 1)

	multiMatch := must[0].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.Equal(t, "urgent delivery", multiMatch["query"])
	assert.Equal(t, []string{"title", "message"}, multiMatch["fields"])
	assert.Equal(t, "best_fields", multiMatch["type"])
}

func TestBuildQueryBody_EmptyRequestMatchesAll(t *testing.T) {
	must := mustClauses(t, buildQueryBody(SearchRequest{}))
	require.Len(t, must, 1)
	_, ok := must[0].(map[string]interface{})["match_all"]
	assert.True(t, ok)
}

func TestBuildQueryBody_DefaultSort(t *testing.T) {
	body := buildQueryBody(SearchRequest{})
	sorts := body["sort"].([]map[string]interface{})
	require.Len(t, sorts, 1)

	clause := sorts[0]["timestamp"].(map[string]interface{})
	assert.Equal(t, "desc", clause["order"])
}

func TestBuildQueryBody_ExplicitSort(t *testing.T) {
	body := buildQueryBody(SearchRequest{SortField: "title", SortDirection: "asc"})
	sorts := body["sort"].([]map[string]interface{})
	require.Len(t, sorts, 1)

	clause := sorts[0]["title"].(map[string]interface{})
	assert.Equal(t, "asc", clause["order"])
}

func TestBuildQueryBody_DefaultProjectionExcludesMessage(t *testing.T) {
	body := buildQueryBody(SearchRequest{})
	fields := body["_source"].([]string)

	assert.NotContains(t, fields, "message")
	assert.Contains(t, fields, "notificationId")
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "status")
}

func TestBuildQueryBody_ExplicitProjection(t *testing.T) {
	body := buildQueryBody(SearchRequest{Fields: []string{"notificationId", "message"}})
	assert.Equal(t, []string{"notificationId", "message"}, body["_source"])
}

func TestBuildAggregations(t *testing.T) {
	aggs := buildAggregations([]string{"status", "type"})
	require.Len(t, aggs, 2)

	statusAgg, ok := aggs["status_agg"].(map[string]interface{})
	require.True(t, ok)
	terms := statusAgg["terms"].(map[string]interface{})
	assert.Equal(t, "status.keyword", terms["field"])

	_, ok = aggs["type_agg"]
	assert.True(t, ok)
}

func TestBuildAggregations_NoFacets(t *testing.T) {
	assert.Nil(t, buildAggregations(nil))
}
