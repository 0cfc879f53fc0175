package engine

import (
	"fmt"

	"github.com/antonmedv/expr"

	"factory-scheduler/internal/types"
)

// RuleOrder 描述当前排程的订单，在规则表达式中以 order 引用
// 例如: order.Quantity >= 100
type RuleOrder struct {
	ProductID int64
	Quantity  int
}

// shouldRun 评估工序的执行条件，空规则总是执行
func shouldRun(step types.Step, order RuleOrder) (bool, error) {
	if step.Rule == "" {
		return true, nil
	}
	env := map[string]interface{}{"order": order}
	program, err := expr.Compile(step.Rule, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("%w: step %d: compile %q: %v", ErrInvalidRule, step.ID, step.Rule, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("%w: step %d: run %q: %v", ErrInvalidRule, step.ID, step.Rule, err)
	}
	run, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: step %d: rule result is not a boolean", ErrInvalidRule, step.ID)
	}
	return run, nil
}
