package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"herald/internal/constants"
	"herald/internal/logger"
	"herald/pkg/errors"
)

// Repository persists notification documents in the search index and
// manages the pending-to-sent status transition.
type Repository interface {
	UpsertAndMarkSent(ctx context.Context, doc *Document) (*Document, error)
	GetByID(ctx context.Context, id string) (*Document, error)
	Search(ctx context.Context, body map[string]interface{}, from, size *int) (*searchResponse, error)
}

type ESRepository struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewESRepository(client *elasticsearch.Client, log logger.Logger) *ESRepository {
	return &ESRepository{
		client: client,
		index:  constants.NotificationIndex,
		logger: log,
	}
}

// UpsertAndMarkSent checks existence by id, indexes the document if
// absent, then unconditionally moves status to sent and re-fetches.
// Repeated calls for the same id converge on one document. Concurrent
// calls for the same id may both observe absence; the index's
// upsert-by-id semantics resolve that to a single document.
func (r *ESRepository) UpsertAndMarkSent(ctx context.Context, doc *Document) (*Document, error) {
	exists, err := r.exists(ctx, doc.NotificationID)
	if err != nil {
		return nil, err
	}

	if !exists {
		if err := r.indexDocument(ctx, doc); err != nil {
			return nil, err
		}
	}

	if err := r.updateStatus(ctx, doc.NotificationID, constants.StatusSent); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, doc.NotificationID)
}

func (r *ESRepository) exists(ctx context.Context, id string) (bool, error) {
	res, err := r.client.Exists(
		r.index,
		id,
		r.client.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, errors.ErrDatabaseConnection.WithCause(err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, errors.ErrInternal.WithDetail("message", fmt.Sprintf("existence check returned status %d", res.StatusCode))
	}
}

func (r *ESRepository) indexDocument(ctx context.Context, doc *Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(body),
		r.client.Index.WithDocumentID(doc.NotificationID),
		r.client.Index.WithContext(ctx),
	)
	if err != nil {
		return errors.ErrDatabaseConnection.WithCause(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.ErrInternal.WithDetail("message", fmt.Sprintf("index returned status %d", res.StatusCode))
	}
	return nil
}

func (r *ESRepository) updateStatus(ctx context.Context, id, status string) error {
	body := map[string]interface{}{
		"doc": map[string]interface{}{"status": status},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}

	res, err := r.client.Update(
		r.index,
		id,
		bytes.NewReader(payload),
		r.client.Update.WithContext(ctx),
	)
	if err != nil {
		return errors.ErrDatabaseConnection.WithCause(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.ErrInternal.WithDetail("message", fmt.Sprintf("status update returned status %d", res.StatusCode))
	}
	return nil
}

func (r *ESRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	res, err := r.client.Get(
		r.index,
		id,
		r.client.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, errors.ErrDatabaseConnection.WithCause(err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, errors.ErrNotFound.WithDetail("notificationId", id)
	}
	if res.IsError() {
		return nil, errors.ErrInternal.WithDetail("message", fmt.Sprintf("get returned status %d", res.StatusCode))
	}

	var envelope struct {
		Source Document `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	return &envelope.Source, nil
}

// searchResponse mirrors the slice of the index's response this core
// consumes.
type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []struct {
			Key      interface{} `json:"key"`
			DocCount int64       `json:"doc_count"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

func (r *ESRepository) Search(ctx context.Context, body map[string]interface{}, from, size *int) (*searchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}

	req := esapi.SearchRequest{
		Index: []string{r.index},
		Body:  strings.NewReader(string(payload)),
		From:  from,
		Size:  size,
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return nil, errors.ErrDatabaseConnection.WithCause(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		r.logger.ErrorwCtx(ctx, "Search request failed", "status", res.StatusCode, "body", string(raw))
		return nil, errors.ErrInternal.WithDetail("message", fmt.Sprintf("search returned status %d", res.StatusCode))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	return &parsed, nil
}
