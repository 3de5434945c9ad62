package rules

import (
	"context"
	"fmt"

	"herald/internal/logger"
	"herald/pkg/errors"
	"herald/pkg/metrics"
)

// Service fronts the rule store for the administrative API: it checks
// that new rule text compiles before storing it and records every
// change in the audit log. The pipeline reads through the Repository
// directly; there is no coordination between readers and writers beyond
// the store's own consistency.
type Service struct {
	repo      Repository
	evaluator *Evaluator
	audit     AuditLog
	logger    logger.Logger
}

func NewService(repo Repository, evaluator *Evaluator, audit AuditLog, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		evaluator: evaluator,
		audit:     audit,
		logger:    log,
	}
}

// Evaluator exposes the shared expression evaluator so the pipeline
// reuses the same compiled-program cache as the validation path.
func (s *Service) Evaluator() *Evaluator {
	return s.evaluator
}

// SeedDefaults installs the default rules for any slot not yet
// configured. Idempotent, safe to call on every startup.
func (s *Service) SeedDefaults(ctx context.Context) error {
	if err := s.repo.Seed(ctx, DefaultRules()); err != nil {
		return fmt.Errorf("failed to seed default rules: %w", err)
	}

	for _, name := range KnownRuleNames() {
		expr, ok, err := s.repo.Get(ctx, name)
		if err != nil {
			return err
		}
		if ok {
			s.logger.DebugwCtx(ctx, "Rule configured", "rule", name, "expression", expr)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, name string) (string, error) {
	if !IsKnownRuleName(name) {
		return "", errors.ErrNotFound.WithDetail("message", fmt.Sprintf("unknown rule %q", name))
	}

	expr, ok, err := s.repo.Get(ctx, name)
	if err != nil {
		return "", errors.ErrInternal.WithCause(err)
	}
	if !ok {
		return "", errors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule %q is not set", name))
	}

	metrics.RuleOperationsTotal.WithLabelValues("get").Inc()
	return expr, nil
}

func (s *Service) Set(ctx context.Context, name, expression, changedBy string) error {
	if !IsKnownRuleName(name) {
		return errors.ErrValidation.WithDetail("message", fmt.Sprintf("unknown rule %q", name))
	}

	if err := s.evaluator.ValidateExpression(expression); err != nil {
		return errors.ErrValidation.WithCause(err)
	}

	oldValue, _, err := s.repo.Get(ctx, name)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}

	if err := s.repo.Set(ctx, name, expression); err != nil {
		return errors.ErrInternal.WithCause(err)
	}

	metrics.RuleOperationsTotal.WithLabelValues("set").Inc()
	s.recordAudit(ctx, AuditEntry{
		RuleName:  name,
		Action:    AuditActionSet,
		OldValue:  oldValue,
		NewValue:  expression,
		ChangedBy: changedBy,
	})

	return nil
}

func (s *Service) Delete(ctx context.Context, name, changedBy string) error {
	if !IsKnownRuleName(name) {
		return errors.ErrNotFound.WithDetail("message", fmt.Sprintf("unknown rule %q", name))
	}

	oldValue, ok, err := s.repo.Get(ctx, name)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if !ok {
		return errors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule %q is not set", name))
	}

	if err := s.repo.Delete(ctx, name); err != nil {
		return errors.ErrInternal.WithCause(err)
	}

	metrics.RuleOperationsTotal.WithLabelValues("delete").Inc()
	s.recordAudit(ctx, AuditEntry{
		RuleName:  name,
		Action:    AuditActionDelete,
		OldValue:  oldValue,
		ChangedBy: changedBy,
	})

	return nil
}

func (s *Service) AuditTrail(ctx context.Context, ruleName string, limit int64) ([]AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.List(ctx, ruleName, limit)
}

// Rule changes must not fail because the audit trail is unavailable.
func (s *Service) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record rule audit entry",
			"rule", entry.RuleName,
			"action", entry.Action,
			"error", err,
		)
	}
}
