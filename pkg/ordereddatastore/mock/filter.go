package mock

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// filterCache compiles list filters once. Filters use the Open Cloud syntax,
// which is a CEL expression over the integer variable "entry", for example
// "entry >= 10 && entry <= 50".
type filterCache struct {
	once sync.Once
	env  *cel.Env
	err  error

	mu       sync.Mutex
	programs map[string]cel.Program
}

func (c *filterCache) program(expr string) (cel.Program, error) {
	c.once.Do(func() {
		c.env, c.err = cel.NewEnv(cel.Variable("entry", cel.IntType))
	})
	if c.err != nil {
		return nil, c.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, ok := c.programs[expr]; ok {
		return prg, nil
	}

	ast, iss := c.env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: filter %q: %v", ErrInvalidArgument, expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: filter %q does not evaluate to a boolean", ErrInvalidArgument, expr)
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: filter %q: %v", ErrInvalidArgument, expr, err)
	}

	if c.programs == nil {
		c.programs = make(map[string]cel.Program)
	}
	c.programs[expr] = prg
	return prg, nil
}

func matches(prg cel.Program, value int64) (bool, error) {
	out, _, err := prg.Eval(map[string]any{"entry": value})
	if err != nil {
		return false, fmt.Errorf("%w: evaluate filter: %v", ErrInvalidArgument, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("%w: filter result is %T", ErrInvalidArgument, out.Value())
	}
	return ok, nil
}
