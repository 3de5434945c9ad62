package notification

import (
	"context"
	"encoding/json"
	"time"

	"herald/internal/broker"
	"herald/internal/constants"
	"herald/internal/logger"
	"herald/pkg/errors"
	"herald/pkg/logging"
)

// Service owns the direct-create path and delegates searches to the
// executor. Create publishes the raw event onto the inbound topic so
// the pipeline processes it like any queued event, then persists an
// idempotent record independently of the pipeline outcome.
type Service struct {
	repo         Repository
	executor     *SearchExecutor
	producer     broker.Producer
	inboundTopic string
	logger       logger.Logger
}

func NewService(repo Repository, executor *SearchExecutor, producer broker.Producer, inboundTopic string, log logger.Logger) *Service {
	return &Service{
		repo:         repo,
		executor:     executor,
		producer:     producer,
		inboundTopic: inboundTopic,
		logger:       log,
	}
}

// validateDocument enforces the structural invariant shared with the
// pipeline's default validation rule: identity and type always, plus
// the recipient field the type requires.
func validateDocument(doc *Document) error {
	if doc.NotificationID == "" {
		return errors.ErrValidation.WithDetail("message", "notificationId is required")
	}
	if doc.Type == "" {
		return errors.ErrValidation.WithDetail("message", "type is required")
	}
	switch doc.Type {
	case constants.NotificationTypeEmail:
		if doc.Email == "" {
			return errors.ErrValidation.WithDetail("message", "email is required for email notifications")
		}
	case constants.NotificationTypeSMS:
		if doc.MobileNumber == "" {
			return errors.ErrValidation.WithDetail("message", "mobileNumber is required for sms notifications")
		}
	}
	return nil
}

// Create validates the raw payload, publishes it for pipeline
// processing and persists the idempotent record. Publish failures are
// logged but do not fail the call; the persisted record is the
// caller's source of truth.
func (s *Service) Create(ctx context.Context, raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.ErrValidation.WithCause(err)
	}
	if err := validateDocument(&doc); err != nil {
		return nil, err
	}

	ctx = logging.WithNotificationID(ctx, doc.NotificationID)

	if doc.Status == "" {
		doc.Status = constants.StatusPending
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now().UTC()
	}

	msg := broker.Message{Key: []byte(doc.NotificationID), Value: raw}
	if err := s.producer.Publish(ctx, s.inboundTopic, msg); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to publish notification to inbound topic", "topic", s.inboundTopic, "error", err)
	}

	persisted, err := s.repo.UpsertAndMarkSent(ctx, &doc)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to persist notification", "error", err)
		return nil, err
	}

	s.logger.InfowCtx(ctx, "Notification created", "status", persisted.Status)
	return persisted, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	return s.executor.Search(ctx, req)
}
