package pipeline

import (
	"context"
	"fmt"

	"herald/internal/constants"
	"herald/internal/logger"
	"herald/internal/rules"
	"herald/pkg/metrics"
)

// stages resolves each governing rule from the shared store at
// evaluation time, so a rule written by the admin API takes effect on
// the next event without a restart.
type stages struct {
	repo      rules.Repository
	evaluator *rules.Evaluator
	logger    logger.Logger
}

// validate fails closed: a missing rule, an evaluation error, and a
// false result all reject the event.
func (s *stages) validate(ctx context.Context, event Event) StageResult {
	expr, found, err := s.repo.Get(ctx, constants.RuleValidation)
	if err != nil {
		return errored(fmt.Errorf("failed to resolve validation rule: %w", err))
	}
	if !found {
		return rejected("no validation rule configured")
	}

	valid, err := s.evaluator.EvaluateCondition(ctx, expr, event)
	if err != nil {
		metrics.PipelineStageErrorsTotal.WithLabelValues("validate").Inc()
		s.logger.ErrorwCtx(ctx, "Validation rule evaluation failed",
			"rule", expr,
			"error", err,
		)
		return rejected("validation rule evaluation failed")
	}
	if !valid {
		return rejected("validation rule returned false")
	}

	return ok(event)
}

// enrich is best-effort: the event advances unchanged when no rule is
// configured or the rule fails to evaluate.
func (s *stages) enrich(ctx context.Context, event Event) StageResult {
	expr, found, err := s.repo.Get(ctx, constants.RuleEnrichment)
	if err != nil || !found {
		if err != nil {
			s.logger.ErrorwCtx(ctx, "Failed to resolve enrichment rule", "error", err)
		}
		return ok(event)
	}

	value, err := s.evaluator.EvaluateExpression(ctx, expr, event)
	if err != nil {
		metrics.PipelineStageErrorsTotal.WithLabelValues("enrich").Inc()
		s.logger.ErrorwCtx(ctx, "Enrichment rule evaluation failed",
			"rule", expr,
			"error", err,
		)
		return ok(event)
	}

	enriched := event.Clone()
	enriched[constants.EnrichmentField] = value
	return ok(enriched)
}

// transform merges a map-valued rule result into the event, overwriting
// conflicting keys. Non-map results and evaluation errors leave the
// event as it was.
func (s *stages) transform(ctx context.Context, event Event) StageResult {
	expr, found, err := s.repo.Get(ctx, constants.RuleTransformation)
	if err != nil || !found {
		if err != nil {
			s.logger.ErrorwCtx(ctx, "Failed to resolve transformation rule", "error", err)
		}
		return ok(event)
	}

	value, err := s.evaluator.EvaluateExpression(ctx, expr, event)
	if err != nil {
		metrics.PipelineStageErrorsTotal.WithLabelValues("transform").Inc()
		s.logger.ErrorwCtx(ctx, "Transformation rule evaluation failed",
			"rule", expr,
			"error", err,
		)
		return ok(event)
	}

	overlay, isMap := value.(map[string]interface{})
	if !isMap {
		s.logger.WarnwCtx(ctx, "Transformation rule did not return a mapping, skipping",
			"rule", expr,
		)
		return ok(event)
	}

	transformed := event.Clone()
	for k, v := range overlay {
		transformed[k] = v
	}
	return ok(transformed)
}

// route decides direct dispatch versus re-queue. With no rule, or a
// rule that fails to evaluate, nothing is dispatched directly.
func (s *stages) route(ctx context.Context, event Event) bool {
	expr, found, err := s.repo.Get(ctx, constants.RuleRouting)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to resolve routing rule", "error", err)
		return false
	}
	if !found {
		s.logger.WarnwCtx(ctx, "Routing rule is not set")
		return false
	}

	dispatch, err := s.evaluator.EvaluateCondition(ctx, expr, event)
	if err != nil {
		metrics.PipelineStageErrorsTotal.WithLabelValues("route").Inc()
		s.logger.ErrorwCtx(ctx, "Routing rule evaluation failed",
			"rule", expr,
			"error", err,
		)
		return false
	}

	return dispatch
}
