package tabusearch

import (
	"github.com/paiban/tabumip/pkg/mip/memory"
	"github.com/paiban/tabumip/pkg/mip/model"
)

// MoveScore §4.5 step 4："MoveScore = {permissible?, frequency penalty, Lagrangian penalty}"
type MoveScore struct {
	IsPermissible      bool
	FrequencyPenalty   float64
	LagrangianPenalty  float64
}

// LargePenaltyL1 不可行动（非permissible）时叠加的较大常数，§4.5 step 5
const LargePenaltyL1 = 1e8

// LargePenaltyL2 特殊移动且对目标/可行性均无改进时叠加的更大常数（L2 > L1）
const LargePenaltyL2 = 1e9

// evaluateMoveScore 不填写 LagrangianPenalty：约束的局部拉格朗日惩罚系数已经
// 计入 model.Evaluate 产出的 score.LocalAugmented，这里再加一次会重复计数，
// 字段保留仅为了对齐 core 变体的 MoveScore 结构。
func evaluateMoveScore(mv *model.Move, mem *memory.Memory, iteration int, tabuTenure int, mode memory.TabuMode, frequencyCoefficient float64) MoveScore {
	variableIDs := make([]int, len(mv.Alterations))
	for i, a := range mv.Alterations {
		variableIDs[i] = a.VariableID
	}
	return MoveScore{
		IsPermissible:    mem.IsPermissible(variableIDs, iteration, tabuTenure, mode),
		FrequencyPenalty: mem.FrequencyPenalty(variableIDs, iteration, frequencyCoefficient),
	}
}

// totalScore §4.5 step 5：排序用的总分
func totalScore(score model.SolutionScore, moveScore MoveScore, mv *model.Move) float64 {
	total := score.LocalAugmented + moveScore.FrequencyPenalty + moveScore.LagrangianPenalty
	if !moveScore.IsPermissible {
		total += LargePenaltyL1
	}
	if mv.IsSpecial && !score.IsObjectiveImprovable && !score.IsFeasibilityImprovable {
		total += LargePenaltyL2
	}
	return total
}
