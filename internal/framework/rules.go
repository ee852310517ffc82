package framework

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// RuleSet holds the compiled CEL programs for a framework's field rules.
type RuleSet struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewRuleSet compiles every rule declared in fw.
func NewRuleSet(fw *Framework) (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Function("sum",
			cel.Overload("sum_list",
				[]*cel.Type{cel.ListType(cel.DynType)},
				cel.DoubleType,
				cel.UnaryBinding(sumList),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	rs := &RuleSet{env: env, programs: make(map[string]cel.Program)}
	for _, step := range fw.Steps {
		for _, field := range step.Fields {
			for _, rule := range field.Rules {
				if _, err := rs.program(rule.Expr); err != nil {
					return nil, fmt.Errorf("%s.%s rule %q: %w", step.Title, field.Name, rule.Name, err)
				}
			}
		}
	}
	return rs, nil
}

func (rs *RuleSet) program(expr string) (cel.Program, error) {
	rs.mu.RLock()
	prg, ok := rs.programs[expr]
	rs.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := rs.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prg, err := rs.env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, err
	}

	rs.mu.Lock()
	rs.programs[expr] = prg
	rs.mu.Unlock()
	return prg, nil
}

// Check evaluates every rule of field against v and returns the messages of
// the rules that did not hold. An evaluation error counts as a failure.
func (rs *RuleSet) Check(field FieldSpec, v Value) []string {
	var failed []string
	input := map[string]any{"value": v.Raw()}
	for _, rule := range field.Rules {
		prg, err := rs.program(rule.Expr)
		if err != nil {
			failed = append(failed, rule.Message)
			continue
		}
		out, _, err := prg.Eval(input)
		if err != nil {
			failed = append(failed, rule.Message)
			continue
		}
		if ok, isBool := out.Value().(bool); !isBool || !ok {
			failed = append(failed, rule.Message)
		}
	}
	return failed
}

func sumList(arg ref.Val) ref.Val {
	list, ok := arg.(traits.Lister)
	if !ok {
		return types.MaybeNoSuchOverloadErr(arg)
	}
	var total float64
	it := list.Iterator()
	for it.HasNext() == types.True {
		elem := it.Next()
		d, ok := elem.ConvertToType(types.DoubleType).(types.Double)
		if !ok {
			return types.NewErr("sum: element %v is not numeric", elem)
		}
		total += float64(d)
	}
	return types.Double(total)
}
