package tabusearch

import (
	"context"
	"testing"
	"time"

	"github.com/paiban/tabumip/pkg/mip/incumbent"
	"github.com/paiban/tabumip/pkg/mip/memory"
	"github.com/paiban/tabumip/pkg/mip/model"
	"github.com/paiban/tabumip/pkg/mip/neighborhood"
)

// buildE1Model 对应 spec 的端到端场景 E1：min x1 s.t. x1 >= 1, x1 in {0,1}
func buildE1Model() *model.Model {
	m := model.NewModel()
	x1 := m.AddVariable("x1", 0, 1, 0, model.SenseBinary)

	objExpr := m.AddExpression("objective", 0)
	m.SetExpressionCoefficient(objExpr.ID, x1.ID, 1)
	m.SetObjective(objExpr.ID, model.Minimize)

	geqExpr := m.AddExpression("x1_geq_1", -1)
	m.SetExpressionCoefficient(geqExpr.ID, x1.ID, 1)
	m.AddConstraint("x1_geq_1", geqExpr.ID, model.SenseGE, 1e6)

	m.RefreshAll()
	return m
}

func TestCore_E1单变量二元可行性(t *testing.T) {
	m := buildE1Model()
	mem := memory.New(len(m.Variables))
	nb := neighborhood.New(m)
	inc := incumbent.New()
	core := NewCore(m, mem, nb, inc, 2, 1)

	opt := DefaultOption()
	opt.IterationMax = 10

	result := core.Run(context.Background(), opt)

	feasible, ok := inc.FeasibleSolution()
	if !ok {
		t.Fatalf("应找到可行解，termination=%v", result.Status)
	}
	if feasible.Score.Objective != 1 {
		t.Fatalf("可行目标值应为1，实际 %v", feasible.Score.Objective)
	}
	if result.Iterations > 2 {
		t.Fatalf("E1应在至多2次内循环迭代内终止，实际 %d", result.Iterations)
	}
}

func TestCore_全部变量固定时迭代0即终止(t *testing.T) {
	m := model.NewModel()
	x := m.AddVariable("x", 0, 1, 0, model.SenseBinary)
	x.Fixed = true
	objExpr := m.AddExpression("objective", 0)
	m.SetExpressionCoefficient(objExpr.ID, x.ID, 1)
	m.SetObjective(objExpr.ID, model.Minimize)
	m.RefreshAll()

	mem := memory.New(len(m.Variables))
	nb := neighborhood.New(m)
	inc := incumbent.New()
	core := NewCore(m, mem, nb, inc, 1, 1)

	opt := DefaultOption()
	result := core.Run(context.Background(), opt)

	if result.Iterations != 0 {
		t.Fatalf("全部变量固定时应在迭代0终止，实际迭代数 %d", result.Iterations)
	}
	if result.Status != StatusNoMove && result.Status != StatusOptimal {
		t.Fatalf("终止状态应为 NO_MOVE 或 OPTIMAL，实际 %v", result.Status)
	}
}

func TestCore_checkTermination剪枝提前停止(t *testing.T) {
	m := buildE1Model()
	mem := memory.New(len(m.Variables))
	nb := neighborhood.New(m)
	inc := incumbent.New()
	core := NewCore(m, mem, nb, inc, 1, 1)

	opt := DefaultOption()
	opt.PruningRateThreshold = 0.5
	core.localOnlyUpdates = 6

	status, done := core.checkTermination(10, opt, time.Now())
	if !done || status != StatusEarlyStop {
		t.Fatalf("局部更新占比超过阈值时应以 EARLY_STOP 提前终止，实际 done=%v status=%v", done, status)
	}
}

func TestCore_checkTermination剪枝阈值为0时禁用(t *testing.T) {
	m := buildE1Model()
	mem := memory.New(len(m.Variables))
	nb := neighborhood.New(m)
	inc := incumbent.New()
	core := NewCore(m, mem, nb, inc, 1, 1)

	opt := DefaultOption()
	opt.IterationMax = 0
	core.localOnlyUpdates = 1000

	_, done := core.checkTermination(10, opt, time.Now())
	if done {
		t.Fatal("PruningRateThreshold为0时不应触发剪枝终止")
	}
}
