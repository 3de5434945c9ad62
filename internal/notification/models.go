package notification

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is one persisted notification. The open Extra map carries
// whatever additional fields the event arrived with, since rules may
// reference keys the core does not know about.
type Document struct {
	NotificationID string                 `json:"notificationId"`
	RecipientID    string                 `json:"recipientId,omitempty"`
	Type           string                 `json:"type"`
	Email          string                 `json:"email,omitempty"`
	MobileNumber   string                 `json:"mobileNumber,omitempty"`
	Title          string                 `json:"title,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Status         string                 `json:"status"`
	Timestamp      time.Time              `json:"timestamp"`
	Extra          map[string]interface{} `json:"-"`
}

// knownDocumentFields are the keys owned by the struct itself; anything
// else in the raw payload lands in Extra.
var knownDocumentFields = map[string]struct{}{
	"notificationId": {},
	"recipientId":    {},
	"type":           {},
	"email":          {},
	"mobileNumber":   {},
	"title":          {},
	"message":        {},
	"status":         {},
	"timestamp":      {},
}

func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	var base alias
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range knownDocumentFields {
		delete(raw, key)
	}

	*d = Document(base)
	if len(raw) > 0 {
		d.Extra = raw
	}
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	type alias Document
	base, err := json.Marshal(alias(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]interface{}, len(d.Extra)+8)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range d.Extra {
		if _, owned := knownDocumentFields[key]; owned {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

// FilterKind discriminates the typed filter values a search request may
// carry. The kind is decided once, when the request is decoded, so the
// query builder never inspects runtime types.
type FilterKind int

const (
	FilterBool FilterKind = iota
	FilterStringList
	FilterText
	FilterDateLower
)

// FilterValue is a tagged union over the supported filter shapes.
type FilterValue struct {
	Kind      FilterKind
	Bool      bool
	List      []string
	Text      string
	DateLower time.Time
}

func BoolFilter(v bool) FilterValue      { return FilterValue{Kind: FilterBool, Bool: v} }
func ListFilter(v []string) FilterValue  { return FilterValue{Kind: FilterStringList, List: v} }
func TextFilter(v string) FilterValue    { return FilterValue{Kind: FilterText, Text: v} }
func DateFilter(v time.Time) FilterValue { return FilterValue{Kind: FilterDateLower, DateLower: v} }

// decodeFilterValue classifies a raw JSON filter value. Strings that
// parse as RFC 3339 timestamps become date lower bounds; everything
// else keeps its JSON shape.
func decodeFilterValue(raw interface{}) (FilterValue, error) {
	switch v := raw.(type) {
	case bool:
		return BoolFilter(v), nil
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return DateFilter(ts), nil
		}
		return TextFilter(v), nil
	case []interface{}:
		list := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return FilterValue{}, fmt.Errorf("list filter values must be strings, got %T", item)
			}
			list = append(list, s)
		}
		return ListFilter(list), nil
	default:
		return FilterValue{}, fmt.Errorf("unsupported filter value type %T", raw)
	}
}

// SearchRequest is the decoded form of one search call. Offset is a
// page index, not a row offset.
type SearchRequest struct {
	Filters       map[string]FilterValue
	FreeTextQuery string
	Fields        []string
	Offset        *int
	Limit         *int
	SortField     string
	SortDirection string
	FacetFields   []string
}

// searchRequestWire is the JSON shape accepted over HTTP.
type searchRequestWire struct {
	Filters       map[string]interface{} `json:"filters"`
	Query         string                 `json:"query"`
	Fields        []string               `json:"fields"`
	Offset        *int                   `json:"offset"`
	Limit         *int                   `json:"limit"`
	SortField     string                 `json:"sortField"`
	SortDirection string                 `json:"sortDirection"`
	Facets        []string               `json:"facets"`
}

// DecodeSearchRequest classifies every filter value at the boundary and
// returns the typed request.
func DecodeSearchRequest(data []byte) (SearchRequest, error) {
	var wire searchRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return SearchRequest{}, err
	}

	req := SearchRequest{
		FreeTextQuery: wire.Query,
		Fields:        wire.Fields,
		Offset:        wire.Offset,
		Limit:         wire.Limit,
		SortField:     wire.SortField,
		SortDirection: wire.SortDirection,
		FacetFields:   wire.Facets,
	}
	if len(wire.Filters) > 0 {
		req.Filters = make(map[string]FilterValue, len(wire.Filters))
		for field, raw := range wire.Filters {
			value, err := decodeFilterValue(raw)
			if err != nil {
				return SearchRequest{}, fmt.Errorf("filter %q: %w", field, err)
			}
			req.Filters[field] = value
		}
	}
	return req, nil
}

// SearchResult is the assembled response for one search call.
type SearchResult struct {
	Results    []map[string]interface{} `json:"results"`
	Facets     map[string]OrderedFacet  `json:"facets,omitempty"`
	TotalCount int64                    `json:"totalCount"`
}

// FacetBucket is one value/count pair within a facet.
type FacetBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// OrderedFacet keeps buckets in case-insensitive lexicographic order.
// A plain map would lose the ordering on marshal.
type OrderedFacet []FacetBucket

func (f OrderedFacet) MarshalJSON() ([]byte, error) {
	var buf []byte
	buf = append(buf, '{')
	for i, bucket := range f {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(bucket.Key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, []byte(fmt.Sprintf("%d", bucket.Count))...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// Count returns the bucket count for a key, or zero.
func (f OrderedFacet) Count(key string) int64 {
	for _, bucket := range f {
		if bucket.Key == key {
			return bucket.Count
		}
	}
	return 0
}
