package notification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"herald/internal/constants"
	"herald/internal/logger"
	"herald/pkg/errors"
	"herald/pkg/metrics"
)

// SearchExecutor runs the two-phase search: a zero-size pass for the
// total count and facet buckets, then a paginated fetch.
type SearchExecutor struct {
	repo   Repository
	logger logger.Logger
}

func NewSearchExecutor(repo Repository, log logger.Logger) *SearchExecutor {
	return &SearchExecutor{repo: repo, logger: log}
}

func (e *SearchExecutor) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	start := time.Now()
	result, err := e.search(ctx, req)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveSearchDuration(time.Since(start), status)
	return result, err
}

func (e *SearchExecutor) search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	body := buildQueryBody(req)
	if aggs := buildAggregations(req.FacetFields); aggs != nil {
		body["aggs"] = aggs
	}

	zero := 0
	countRes, err := e.repo.Search(ctx, body, nil, &zero)
	if err != nil {
		return nil, err
	}

	totalCount := countRes.Hits.Total.Value
	facets := collectFacets(countRes, req.FacetFields)

	startIndex, size, err := pageBounds(req.Offset, req.Limit, totalCount)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Results:    []map[string]interface{}{},
		Facets:     facets,
		TotalCount: totalCount,
	}
	if size == 0 {
		return result, nil
	}

	delete(body, "aggs")
	pageRes, err := e.repo.Search(ctx, body, &startIndex, &size)
	if err != nil {
		return nil, err
	}

	for _, hit := range pageRes.Hits.Hits {
		result.Results = append(result.Results, hit.Source)
	}
	return result, nil
}

// pageBounds converts a page index and page size into from/size for
// the fetch pass. Offset counts pages, not rows. When either bound is
// omitted the window falls back to the index's fixed cap. A start
// beyond the end of the data is an explicit error, never a silent
// clamp.
func pageBounds(offset, limit *int, totalCount int64) (startIndex, size int, err error) {
	if offset == nil && limit == nil {
		end := int(totalCount)
		if end > constants.DefaultSearchWindow {
			end = constants.DefaultSearchWindow
		}
		return 0, end, nil
	}

	pageIndex := 0
	if offset != nil {
		pageIndex = *offset
	}
	pageSize := constants.DefaultSearchWindow
	if limit != nil {
		pageSize = *limit
	}
	if pageIndex < 0 || pageSize < 0 {
		return 0, 0, errors.ErrValidation.WithDetail("message", "offset and limit must be non-negative")
	}

	startIndex = pageIndex * pageSize

	endIndex := constants.DefaultSearchWindow
	if offset != nil && limit != nil {
		endIndex = startIndex + pageSize
		if int64(endIndex) > totalCount {
			endIndex = int(totalCount)
		}
	}

	if startIndex > endIndex {
		return 0, 0, errors.ErrOutOfRange.WithDetail(
			"message",
			fmt.Sprintf("page %d of size %d starts at row %d but only %d rows match", pageIndex, pageSize, startIndex, totalCount),
		)
	}
	return startIndex, endIndex - startIndex, nil
}

// collectFacets orders each facet's buckets case-insensitively by key
// and drops empty-string buckets.
func collectFacets(res *searchResponse, facetFields []string) map[string]OrderedFacet {
	if len(facetFields) == 0 || res.Aggregations == nil {
		return nil
	}

	facets := make(map[string]OrderedFacet, len(facetFields))
	for _, field := range facetFields {
		agg, ok := res.Aggregations[facetAggName(field)]
		if !ok {
			continue
		}

		buckets := make(OrderedFacet, 0, len(agg.Buckets))
		for _, bucket := range agg.Buckets {
			key := fmt.Sprintf("%v", bucket.Key)
			if key == "" {
				continue
			}
			buckets = append(buckets, FacetBucket{Key: key, Count: bucket.DocCount})
		}
		sort.SliceStable(buckets, func(i, j int) bool {
			return strings.ToLower(buckets[i].Key) < strings.ToLower(buckets[j].Key)
		})
		facets[field] = buckets
	}
	return facets
}
