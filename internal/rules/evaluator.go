package rules

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"

	"herald/pkg/errors"
)

// Evaluator compiles rule text once per distinct expression and caches
// the compiled program, so hot-swapping a rule only pays the compile
// cost on its first evaluation. Evaluation is pure: the outcome depends
// only on the expression and the event bindings.
type Evaluator struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// ValidateExpression reports whether the expression compiles, without
// evaluating it. Used by the admin API before storing rule text.
func (e *Evaluator) ValidateExpression(expression string) error {
	if _, err := e.program(expression); err != nil {
		return err
	}
	return nil
}

// EvaluateCondition evaluates the expression against the event and
// requires a boolean result.
func (e *Evaluator) EvaluateCondition(ctx context.Context, expression string, event map[string]interface{}) (bool, error) {
	out, err := e.eval(ctx, expression, event)
	if err != nil {
		return false, err
	}

	boolVal, ok := out.Value().(bool)
	if !ok {
		return false, errors.ErrEvaluation.WithCause(
			fmt.Errorf("expression did not return bool, got %T", out.Value()))
	}
	return boolVal, nil
}

// EvaluateExpression evaluates the expression against the event and
// returns its value. Map results are converted to native maps so the
// transformation stage can merge them into the event.
func (e *Evaluator) EvaluateExpression(ctx context.Context, expression string, event map[string]interface{}) (interface{}, error) {
	out, err := e.eval(ctx, expression, event)
	if err != nil {
		return nil, err
	}
	return nativeValue(out), nil
}

func (e *Evaluator) eval(ctx context.Context, expression string, event map[string]interface{}) (ref.Val, error) {
	prog, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prog.ContextEval(ctx, map[string]interface{}{"event": event})
	if err != nil {
		return nil, errors.ErrEvaluation.WithCause(err)
	}
	return out, nil
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	prog, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.ErrEvaluation.WithCause(
			fmt.Errorf("failed to compile expression: %w", issues.Err()))
	}

	prog, err := e.env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, errors.ErrEvaluation.WithCause(
			fmt.Errorf("failed to create program: %w", err))
	}

	e.mu.Lock()
	e.programs[expression] = prog
	e.mu.Unlock()

	return prog, nil
}

func nativeValue(v ref.Val) interface{} {
	if _, ok := v.(traits.Mapper); ok {
		native, err := v.ConvertToNative(reflect.TypeOf(map[string]interface{}{}))
		if err == nil {
			return native
		}
	}
	return v.Value()
}
