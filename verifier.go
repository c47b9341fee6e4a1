package cohere

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/go-playground/validator/v10"
)

// Verifier is a pure predicate over a complete candidate snapshot. A nil
// return accepts the candidate; a non-nil error rejects it with the error's
// message as the reason. Verifiers always run on a fully derived candidate,
// never on a raw partial update.
type Verifier[V any] func(candidate Snapshot[V]) error

// VerifyAll combines verifiers; the first rejection wins.
func VerifyAll[V any](verifiers ...Verifier[V]) Verifier[V] {
	return func(candidate Snapshot[V]) error {
		for _, v := range verifiers {
			if v == nil {
				continue
			}
			if err := v(candidate); err != nil {
				return err
			}
		}
		return nil
	}
}

// validate is the shared validator instance for StructVerifier.
var validate = validator.New()

// StructVerifier builds a Verifier from a struct binding. The bind function
// materializes the candidate snapshot into a struct carrying `validate` tags,
// which is then checked with go-playground/validator.
//
//	type shape struct {
//	    Port int    `validate:"min=1,max=65535"`
//	    Host string `validate:"required"`
//	}
//	verifier := cohere.StructVerifier(func(s cohere.Snapshot[any]) shape {
//	    return shape{Port: s["port"].(int), Host: s["host"].(string)}
//	})
func StructVerifier[V any, S any](bind func(Snapshot[V]) S) Verifier[V] {
	return func(candidate Snapshot[V]) error {
		return validate.Struct(bind(candidate))
	}
}

// ExprVerifier compiles boolean expressions over the candidate snapshot,
// with each field key available as a variable. Every expression must
// evaluate to true for the candidate to be accepted; the failing expression
// is the rejection reason. Compilation errors are reported up front.
//
//	verifier, err := cohere.ExprVerifier[any](
//	    "float_value >= 0",
//	    "unit in selectable_units",
//	)
func ExprVerifier[V any](expressions ...string) (Verifier[V], error) {
	programs := make([]*exprvm.Program, len(expressions))
	for i, e := range expressions {
		if e == "" {
			return nil, fmt.Errorf("expression must not be empty")
		}
		program, err := exprlang.Compile(e,
			exprlang.Env(map[string]any{}),
			exprlang.AllowUndefinedVariables(),
			exprlang.AsBool(),
		)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", e, err)
		}
		programs[i] = program
	}

	return func(candidate Snapshot[V]) error {
		env := make(map[string]any, len(candidate))
		for k, v := range candidate {
			env[string(k)] = v
		}
		for i, program := range programs {
			out, err := exprlang.Run(program, env)
			if err != nil {
				return fmt.Errorf("evaluate %q: %w", expressions[i], err)
			}
			ok, _ := out.(bool)
			if !ok {
				return fmt.Errorf("constraint %q not satisfied", expressions[i])
			}
		}
		return nil
	}, nil
}
