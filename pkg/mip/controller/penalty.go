// Package controller 实现外层自适应控制回路：每次内循环之后调整惩罚系数、
// 挑选重启解、设定禁忌期限基线与链池容量，直到总体时间/迭代预算耗尽或
// 找到可行目标。结构沿用 pkg/scheduler/constraint/manager.go 里 Manager
// 按权重排序评估约束的组织方式，把"调度约束权重"换成"每约束的局部/全局
// 拉格朗日惩罚系数"。
package controller

import (
	"math"

	"github.com/paiban/tabumip/pkg/mip/model"
)

// PenaltyManager 按约束维护局部/全局惩罚系数的紧缩/放松
type PenaltyManager struct {
	InitialPenalty     float64
	TighteningRate     float64
	RelaxingRate       float64
	MinRelaxingRate     float64 // 放松率可收缩到的下限，§4.6 step3 "低至0.3"
}

// NewPenaltyManager 创建一个惩罚管理器
func NewPenaltyManager(initialPenalty, tighteningRate, relaxingRate float64) *PenaltyManager {
	return &PenaltyManager{
		InitialPenalty: initialPenalty,
		TighteningRate: tighteningRate,
		RelaxingRate:   relaxingRate,
		MinRelaxingRate: 0.3,
	}
}

// Tighten §4.6 step4：对每个违反一侧的约束按公式增加局部惩罚，按初始惩罚
// 的上限夹紧。
//
//	Δpenalty = tighteningRate * (balance*gap/sumV + (1-balance)*gap*v/sumV²)
//
// gap 是该约束的违反度，sumV 是全部约束违反度之和，balance 是均衡系数
// （0.5 表示线性项与二次项各占一半权重）。
func (pm *PenaltyManager) Tighten(constraints []*model.Constraint, exprValues []float64, balance float64) {
	var sumV, sumV2 float64
	for _, c := range constraints {
		sumV += c.Violation
		sumV2 += c.Violation * c.Violation
	}
	if sumV == 0 {
		return
	}

	for i, c := range constraints {
		if c.Violation < model.Epsilon {
			continue
		}
		if !c.ViolatedSide(exprValues[i]) {
			continue
		}
		gap := c.Violation
		linear := balance * gap / sumV
		quadratic := 0.0
		if sumV2 > 0 {
			quadratic = (1 - balance) * gap * c.Violation / sumV2
		}
		delta := pm.TighteningRate * (linear + quadratic)
		c.LocalPenalty += delta
		if c.LocalPenalty > pm.InitialPenalty {
			c.LocalPenalty = pm.InitialPenalty
		}
	}
}

// Relax §4.6 step5：对每个满足一侧的约束，局部惩罚乘以 relaxingRate。
// 若本次内循环的目标/约束比值很小且局部增广 incumbent 可行，则把有效
// 放松率夹紧到该比值。
func (pm *PenaltyManager) Relax(constraints []*model.Constraint, exprValues []float64, objectiveConstraintRatio float64, localFeasible bool) {
	rate := pm.RelaxingRate
	if localFeasible && objectiveConstraintRatio > 0 && objectiveConstraintRatio < rate {
		rate = objectiveConstraintRatio
	}
	for i, c := range constraints {
		if c.ViolatedSide(exprValues[i]) {
			continue
		}
		c.LocalPenalty *= rate
	}
}

// Reset §4.6 step6：把所有局部惩罚恢复为初始惩罚系数（持续不可行超过30次迭代
// 时调用）
func (pm *PenaltyManager) Reset(constraints []*model.Constraint) {
	for _, c := range constraints {
		c.LocalPenalty = pm.InitialPenalty
	}
}

// AdjustRelaxingRate §4.6 step3：在不可行停滞且强度上升时收缩放松率，
// 找到可行 incumbent 时恢复到配置默认值，"previous" 被选得过于频繁时
// 用平方根放大。
func (pm *PenaltyManager) AdjustRelaxingRate(defaultRate float64, infeasibleStagnationWithRisingIntensity bool, feasibleFound bool, previousPickedTooOften bool) {
	switch {
	case feasibleFound:
		pm.RelaxingRate = defaultRate
	case infeasibleStagnationWithRisingIntensity:
		pm.RelaxingRate *= 0.9
		if pm.RelaxingRate < pm.MinRelaxingRate {
			pm.RelaxingRate = pm.MinRelaxingRate
		}
	case previousPickedTooOften:
		pm.RelaxingRate = sqrtClamp(pm.RelaxingRate, defaultRate)
	}
}

func sqrtClamp(rate, ceiling float64) float64 {
	if rate <= 0 {
		return 0
	}
	enlarged := math.Sqrt(rate)
	if enlarged > ceiling {
		return ceiling
	}
	return enlarged
}
