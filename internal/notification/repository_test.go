package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/logger"
	"herald/pkg/errors"
)

type recordedRequest struct {
	method string
	path   string
	body   string
}

// scriptedTransport replays canned responses in request order and
// records what the repository actually sent.
type scriptedTransport struct {
	responses []*http.Response
	requests  []recordedRequest
}

func (t *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
	}
	t.requests = append(t.requests, recordedRequest{
		method: req.Method,
		path:   req.URL.Path,
		body:   body,
	})

	res := t.responses[0]
	if len(t.responses) > 1 {
		t.responses = t.responses[1:]
	}
	return res, nil
}

func esResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"X-Elastic-Product": []string{"Elasticsearch"}, "Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newScriptedRepository(t *testing.T, responses ...*http.Response) (*ESRepository, *scriptedTransport) {
	t.Helper()
	transport := &scriptedTransport{responses: responses}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: transport,
	})
	require.NoError(t, err)
	return NewESRepository(client, logger.NopLogger()), transport
}

func TestUpsertAndMarkSent_NewDocument(t *testing.T) {
	repo, transport := newScriptedRepository(t,
		esResponse(404, ""),
		esResponse(201, `{"result":"created"}`),
		esResponse(200, `{"result":"updated"}`),
		esResponse(200, `{"_source":{"notificationId":"n1","type":"email","email":"a@b.com","status":"sent"}}`),
	)

	doc := &Document{NotificationID: "n1", Type: "email", Email: "a@b.com", Status: "pending"}
	persisted, err := repo.UpsertAndMarkSent(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "sent", persisted.Status)

	require.Len(t, transport.requests, 4)
	assert.Equal(t, http.MethodHead, transport.requests[0].method)
	assert.Equal(t, "/notifications/_doc/n1", transport.requests[0].path)
	assert.Equal(t, "/notifications/_doc/n1", transport.requests[1].path)
	assert.Equal(t, "/notifications/_update/n1", transport.requests[2].path)
	assert.Equal(t, http.MethodGet, transport.requests[3].method)

	var update map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(transport.requests[2].body), &update))
	assert.Equal(t, map[string]interface{}{"status": "sent"}, update["doc"])
}

func TestUpsertAndMarkSent_ExistingDocumentSkipsIndex(t *testing.T) {
	repo, transport := newScriptedRepository(t,
		esResponse(200, ""),
		esResponse(200, `{"result":"updated"}`),
		esResponse(200, `{"_source":{"notificationId":"n1","status":"sent"}}`),
	)

	doc := &Document{NotificationID: "n1", Type: "email", Email: "a@b.com"}
	persisted, err := repo.UpsertAndMarkSent(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "sent", persisted.Status)

	require.Len(t, transport.requests, 3)
	assert.Equal(t, "/notifications/_update/n1", transport.requests[1].path, "existing documents must not be re-indexed")
}

func TestGetByID_NotFound(t *testing.T) {
	repo, _ := newScriptedRepository(t, esResponse(404, `{"found":false}`))

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGetByID_ParsesSource(t *testing.T) {
	repo, _ := newScriptedRepository(t,
		esResponse(200, `{"_source":{"notificationId":"n1","type":"sms","mobileNumber":"+15550001111","status":"sent","campaign":"spring"}}`),
	)

	doc, err := repo.GetByID(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "n1", doc.NotificationID)
	assert.Equal(t, "sms", doc.Type)
	assert.Equal(t, "spring", doc.Extra["campaign"])
}

func TestSearch_SendsFromAndSize(t *testing.T) {
	repo, transport := newScriptedRepository(t,
		esResponse(200, `{"hits":{"total":{"value":1},"hits":[{"_source":{"notificationId":"n1"}}]}}`),
	)

	from, size := 20, 5
	res, err := repo.Search(context.Background(), map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	}, &from, &size)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Hits.Total.Value)

	require.Len(t, transport.requests, 1)
	req := transport.requests[0]
	assert.Equal(t, "/notifications/_search", req.path)
	assert.Contains(t, req.body, "match_all")
}

func TestSearch_ErrorStatus(t *testing.T) {
	repo, _ := newScriptedRepository(t, esResponse(500, `{"error":"boom"}`))

	_, err := repo.Search(context.Background(), map[string]interface{}{}, nil, nil)
	assert.Error(t, err)
}
