package controller

// RestartTarget 重启解来源，§4.6 step2
type RestartTarget int

const (
	RestartLocal RestartTarget = iota
	RestartGlobal
	RestartPrevious
)

// PenaltyAction 惩罚调整动作，与重启决策配对输出
type PenaltyAction int

const (
	PenaltyRelax PenaltyAction = iota
	PenaltyTighten
	PenaltyNone
)

// RestartDecisionInput 决策表需要的全部条件位，§4.6 step2 的表格条件列
type RestartDecisionInput struct {
	GlobalAugmentedImproved bool
	InnerFoundNothing       bool
	LocalWorseThanGlobal    bool // gap < 0
	LocalFeasible           bool
	LocalRangeRatio         float64 // local range relative to global
	LocalImproved           bool
	ConsecutiveFailures     int
}

// Decide 实现 §4.6 step2 的决策表，按条件出现顺序依次判定（表中条件互斥地
// 从上到下生效，第一个满足的条件决定结果）。
func Decide(in RestartDecisionInput) (RestartTarget, PenaltyAction, bool) {
	switch {
	case in.GlobalAugmentedImproved:
		return RestartGlobal, PenaltyRelax, false

	case in.InnerFoundNothing:
		relax := in.LocalFeasible || in.ConsecutiveFailures >= 2
		if relax {
			return RestartGlobal, PenaltyRelax, true
		}
		return RestartGlobal, PenaltyNone, true

	case in.LocalWorseThanGlobal:
		if in.LocalFeasible {
			return RestartGlobal, PenaltyRelax, true
		}
		return RestartGlobal, PenaltyTighten, true

	case in.LocalFeasible:
		// local-augmented 是可行的，且 gap > 0（因为上面 LocalWorseThanGlobal 已排除 gap<0 情形）
		return RestartLocal, PenaltyRelax, false

	case in.LocalRangeRatio < 0.01:
		return RestartGlobal, PenaltyRelax, true

	case in.LocalImproved:
		// 否则，local 不可行但有改进
		return RestartLocal, PenaltyTighten, false

	default:
		// 否则，local 不可行且未改进
		return RestartPrevious, PenaltyTighten, false
	}
}
