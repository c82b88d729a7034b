// Package validator evaluates validator expressions against action results.
//
// Expressions use the expr-lang grammar: comparisons, boolean connectives,
// member access and a small set of functions. The result data is available as
// "output", the action definition as "action", and match(str, pattern) tests a
// string against a regular expression.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/patrickmn/go-cache"
)

// Env is the evaluation environment of a validator expression.
type Env struct {
	Output interface{}            `expr:"output"`
	Action map[string]interface{} `expr:"action"`
}

// Evaluator compiles and runs validator expressions. Compiled programs are
// cached by expression text.
type Evaluator struct {
	programs *cache.Cache
}

func New() *Evaluator {
	return &Evaluator{programs: cache.New(cache.NoExpiration, 0)}
}

// Evaluate reports whether exp holds for output. An expression yielding nil
// does not hold. A non-nil error means the expression itself could not be
// compiled or run, or produced a value that is not a boolean.
func (e *Evaluator) Evaluate(exp string, output interface{}, action map[string]interface{}) (bool, error) {
	program, err := e.compile(exp)
	if err != nil {
		return false, err
	}

	res, err := expr.Run(program, Env{Output: output, Action: action})
	if err != nil {
		return false, fmt.Errorf("validator %q failed to evaluate: %w", exp, err)
	}
	// A missing value is falsy.
	if res == nil {
		return false, nil
	}
	ok, isBool := res.(bool)
	if !isBool {
		return false, fmt.Errorf("validator %q returned %T, expected a boolean", exp, res)
	}
	return ok, nil
}

func (e *Evaluator) compile(exp string) (*vm.Program, error) {
	if p, found := e.programs.Get(exp); found {
		return p.(*vm.Program), nil
	}

	program, err := expr.Compile(normalize(exp),
		expr.Env(Env{}),
		expr.AsBool(),
		expr.Function("match", match),
	)
	if err != nil {
		return nil, fmt.Errorf("validator %q is not a valid expression: %w", exp, err)
	}
	e.programs.Set(exp, program, cache.NoExpiration)
	return program, nil
}

// normalize accepts strict (in)equality operators as plain ones.
func normalize(exp string) string {
	exp = strings.ReplaceAll(exp, "!==", "!=")
	return strings.ReplaceAll(exp, "===", "==")
}

func match(params ...interface{}) (interface{}, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("match expects 2 arguments, got %d", len(params))
	}
	str, ok := params[0].(string)
	if !ok {
		return false, nil
	}
	pattern, ok := params[1].(string)
	if !ok {
		return nil, fmt.Errorf("match pattern must be a string, got %T", params[1])
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("match pattern %q: %w", pattern, err)
	}
	return re.MatchString(str), nil
}
