package controller

import (
	"context"
	"testing"
	"time"

	"github.com/paiban/tabumip/pkg/mip/model"
)

func TestDecide_决策表各行(t *testing.T) {
	tests := []struct {
		name           string
		in             RestartDecisionInput
		wantRestart    RestartTarget
		wantPenalty    PenaltyAction
		wantInitialMod bool
	}{
		{
			name:        "全局增广改进",
			in:          RestartDecisionInput{GlobalAugmentedImproved: true},
			wantRestart: RestartGlobal, wantPenalty: PenaltyRelax, wantInitialMod: false,
		},
		{
			name:        "内循环一无所获且局部可行",
			in:          RestartDecisionInput{InnerFoundNothing: true, LocalFeasible: true},
			wantRestart: RestartGlobal, wantPenalty: PenaltyRelax, wantInitialMod: true,
		},
		{
			name:        "内循环一无所获且连续失败达到阈值",
			in:          RestartDecisionInput{InnerFoundNothing: true, ConsecutiveFailures: 2},
			wantRestart: RestartGlobal, wantPenalty: PenaltyRelax, wantInitialMod: true,
		},
		{
			name:        "内循环一无所获但尚未达到放松条件",
			in:          RestartDecisionInput{InnerFoundNothing: true, ConsecutiveFailures: 0},
			wantRestart: RestartGlobal, wantPenalty: PenaltyNone, wantInitialMod: true,
		},
		{
			name:        "局部差于全局且局部可行",
			in:          RestartDecisionInput{LocalWorseThanGlobal: true, LocalFeasible: true},
			wantRestart: RestartGlobal, wantPenalty: PenaltyRelax, wantInitialMod: true,
		},
		{
			name:        "局部差于全局且局部不可行",
			in:          RestartDecisionInput{LocalWorseThanGlobal: true},
			wantRestart: RestartGlobal, wantPenalty: PenaltyTighten, wantInitialMod: true,
		},
		{
			name:        "局部可行且差距为正",
			in:          RestartDecisionInput{LocalFeasible: true},
			wantRestart: RestartLocal, wantPenalty: PenaltyRelax, wantInitialMod: false,
		},
		{
			name:        "局部相对全局范围小于1%",
			in:          RestartDecisionInput{LocalRangeRatio: 0.005},
			wantRestart: RestartGlobal, wantPenalty: PenaltyRelax, wantInitialMod: true,
		},
		{
			name:        "局部不可行但有改进",
			in:          RestartDecisionInput{LocalRangeRatio: 1, LocalImproved: true},
			wantRestart: RestartLocal, wantPenalty: PenaltyTighten, wantInitialMod: false,
		},
		{
			name:        "局部不可行且未改进",
			in:          RestartDecisionInput{LocalRangeRatio: 1},
			wantRestart: RestartPrevious, wantPenalty: PenaltyTighten, wantInitialMod: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restart, penalty, initialMod := Decide(tt.in)
			if restart != tt.wantRestart {
				t.Errorf("restart = %v, want %v", restart, tt.wantRestart)
			}
			if penalty != tt.wantPenalty {
				t.Errorf("penalty = %v, want %v", penalty, tt.wantPenalty)
			}
			if initialMod != tt.wantInitialMod {
				t.Errorf("initialMod = %v, want %v", initialMod, tt.wantInitialMod)
			}
		})
	}
}

// buildKnapsackModel 对应 spec 端到端场景 E6：惩罚紧缩场景，单个容量约束
// 被反复违反，用于验证外层控制回路至少能跑完若干轮而不 panic。
func buildKnapsackModel() *model.Model {
	m := model.NewModel()
	x1 := m.AddVariable("x1", 0, 1, 1, model.SenseBinary)
	x2 := m.AddVariable("x2", 0, 1, 1, model.SenseBinary)
	x3 := m.AddVariable("x3", 0, 1, 1, model.SenseBinary)

	objExpr := m.AddExpression("objective", 0)
	m.SetExpressionCoefficient(objExpr.ID, x1.ID, -5)
	m.SetExpressionCoefficient(objExpr.ID, x2.ID, -4)
	m.SetExpressionCoefficient(objExpr.ID, x3.ID, -3)
	m.SetObjective(objExpr.ID, model.Minimize)

	capacityExpr := m.AddExpression("capacity", -4)
	m.SetExpressionCoefficient(capacityExpr.ID, x1.ID, 3)
	m.SetExpressionCoefficient(capacityExpr.ID, x2.ID, 2)
	m.SetExpressionCoefficient(capacityExpr.ID, x3.ID, 2)
	m.AddConstraint("capacity", capacityExpr.ID, model.SenseLE, 1e4)

	m.RefreshAll()
	return m
}

func TestController_buildInnerOption剪枝阈值仅在预算达到master时启用(t *testing.T) {
	m := buildKnapsackModel()
	opt := Option{
		InitialTabuTenure:    2,
		InnerIterationMax:    10,
		InnerIterationMaster: 10,
		PruningRateThreshold: 0.5,
		Seed:                 1,
	}
	ctl := NewController(m, opt)

	inner := ctl.buildInnerOption(opt, true, time.Now())
	if inner.PruningRateThreshold != 0.5 {
		t.Fatalf("预算已达到master时应启用剪枝阈值，实际 %v", inner.PruningRateThreshold)
	}

	ctl.innerIterationMax = 5
	inner = ctl.buildInnerOption(opt, true, time.Now())
	if inner.PruningRateThreshold != 0 {
		t.Fatalf("预算低于master时应禁用剪枝阈值，实际 %v", inner.PruningRateThreshold)
	}
}

func TestController_若干轮外层迭代不崩溃(t *testing.T) {
	m := buildKnapsackModel()
	opt := Option{
		IterationMax:                 5,
		TimeMax:                      2 * time.Second,
		InitialPenaltyCoefficient:    1e4,
		TighteningRate:               1.0,
		RelaxingRate:                 0.7,
		PenaltyBalance:               0.5,
		InitialTabuTenure:            2,
		InnerIterationMax:            10,
		ChainCapacity:                20,
		ChainOverlapThreshold:        0.5,
		InitialModificationFixedRate: 0.5,
		InitialModificationWidth:     1,
		Workers:                      1,
		Seed:                         7,
	}

	ctl := NewController(m, opt)
	result := ctl.Run(context.Background(), opt)

	if result.OuterIterations == 0 {
		t.Fatalf("外层应至少运行一轮")
	}
	if result.TerminationReason == "" {
		t.Fatalf("外层应记录终止原因")
	}
	if _, ok := ctl.Incumbent.FeasibleSolution(); !ok {
		t.Fatalf("背包场景应能找到至少一个可行解")
	}
}
