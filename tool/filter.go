package tool

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/zero-day-ai/taskforge/argument"
	"github.com/zero-day-ai/taskforge/entity"
)

// Filter variable names.
const (
	filterEntityVar = "entity"
	filterKindVar   = "kind"
)

func newFilterEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(filterEntityVar, cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable(filterKindVar, cel.StringType),
	)
}

// compileFilter compiles expr and checks that it yields a bool.
func compileFilter(env *cel.Env, expr string) (cel.Program, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, iss.Err())
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, fmt.Errorf("filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program for filter %q: %w", expr, err)
	}
	return prg, nil
}

// evalFilter runs prg. Evaluation errors count as no match.
func evalFilter(prg cel.Program, kind entity.Kind, values argument.Values) bool {
	if values == nil {
		values = argument.Values{}
	}
	vars := map[string]any{
		filterEntityVar: map[string]string(values),
		filterKindVar:   string(kind),
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
