// Package incumbent 实现 IncumbentHolder：三个各自独立改进的最优解槽位
// （局部增广、全局增广、可行解），对应 original_source 中
// printemps/solution/incumbent_holder.h 的语义。
package incumbent

import "math"

// Status 是三个槽位更新情况的位掩码，直接对应源码的 STATUS_* 常量
type Status int

const (
	// StatusNone 本次 try_update 没有任何槽位被更新
	StatusNone Status = 0
	// StatusLocalAugmentedUpdate 局部增广目标槽位被更新
	StatusLocalAugmentedUpdate Status = 1
	// StatusGlobalAugmentedUpdate 全局增广目标槽位被更新
	StatusGlobalAugmentedUpdate Status = 2
	// StatusFeasibleUpdate 可行解槽位被更新
	StatusFeasibleUpdate Status = 4
)

// Has 判断位掩码中是否包含某个状态位
func (s Status) Has(bit Status) bool {
	return s&bit != 0
}

// epsilon 严格改进判定的容差
const epsilon = 1e-5

// Solution 是被 IncumbentHolder 存储的最小只读快照：变量取值 + 分数。
// Score 是本包自有的结构体，不依赖 model 包；调用方（tabusearch/controller）
// 负责从 model.SolutionScore 映射填入。
type Solution struct {
	Values []int
	Score  Score
}

// Score 是 IncumbentHolder 关心的评分子集，由调用方从 model.SolutionScore 映射而来
type Score struct {
	LocalAugmented  float64
	GlobalAugmented float64
	Objective       float64
	IsFeasible      bool
}

// Holder 保存三个独立改进的最优解：local augmented（每次内循环开始时重置）、
// global augmented（整个求解过程中永不重置）、feasible（只记录可行解）。
type Holder struct {
	localAugmentedSolution  Solution
	localAugmentedObjective float64
	localAugmentedScore     Score
	hasLocal                bool

	globalAugmentedSolution  Solution
	globalAugmentedObjective float64
	globalAugmentedScore     Score
	hasGlobal                bool

	feasibleSolution  Solution
	feasibleObjective float64
	feasibleScore     Score
	hasFeasible        bool
}

// New 创建一个空的 IncumbentHolder，三个槽位的目标值初始化为 +Inf
// （对应 DEFAULT_OBJECTIVE = HUGE_VALF）
func New() *Holder {
	h := &Holder{}
	h.localAugmentedObjective = math.Inf(1)
	h.globalAugmentedObjective = math.Inf(1)
	h.feasibleObjective = math.Inf(1)
	return h
}

// TryUpdate 三个槽位各自独立、严格（> epsilon）地尝试改进。返回状态位掩码。
func (h *Holder) TryUpdate(solution Solution) Status {
	status := StatusNone

	if h.localAugmentedObjective-solution.Score.LocalAugmented > epsilon {
		h.localAugmentedObjective = solution.Score.LocalAugmented
		h.localAugmentedSolution = solution
		h.localAugmentedScore = solution.Score
		h.hasLocal = true
		status |= StatusLocalAugmentedUpdate
	}

	if h.globalAugmentedObjective-solution.Score.GlobalAugmented > epsilon {
		h.globalAugmentedObjective = solution.Score.GlobalAugmented
		h.globalAugmentedSolution = solution
		h.globalAugmentedScore = solution.Score
		h.hasGlobal = true
		status |= StatusGlobalAugmentedUpdate
	}

	if solution.Score.IsFeasible && h.feasibleObjective-solution.Score.Objective > epsilon {
		h.feasibleObjective = solution.Score.Objective
		h.feasibleSolution = solution
		h.feasibleScore = solution.Score
		h.hasFeasible = true
		status |= StatusFeasibleUpdate
	}

	return status
}

// ResetLocalAugmentedIncumbent 只清除局部槽位的目标值（恢复为 +Inf）并把
// 该槽位标记为未设置，调用于每次内循环开始时；已存储的解本身不被清除，
// 与 original_source 的 reset_local_augmented_incumbent 行为一致。
func (h *Holder) ResetLocalAugmentedIncumbent() {
	h.localAugmentedObjective = math.Inf(1)
	h.hasLocal = false
}

// LocalAugmentedSolution 局部增广最优解及其是否已被设置过
func (h *Holder) LocalAugmentedSolution() (Solution, bool) {
	return h.localAugmentedSolution, h.hasLocal
}

// GlobalAugmentedSolution 全局增广最优解及其是否已被设置过
func (h *Holder) GlobalAugmentedSolution() (Solution, bool) {
	return h.globalAugmentedSolution, h.hasGlobal
}

// FeasibleSolution 可行最优解及其是否已被设置过
func (h *Holder) FeasibleSolution() (Solution, bool) {
	return h.feasibleSolution, h.hasFeasible
}

// GlobalAugmentedObjective 当前全局增广目标值（未设置时为 +Inf）
func (h *Holder) GlobalAugmentedObjective() float64 {
	return h.globalAugmentedObjective
}

// LocalAugmentedObjective 当前局部增广目标值（未设置时为 +Inf）
func (h *Holder) LocalAugmentedObjective() float64 {
	return h.localAugmentedObjective
}

// FeasibleObjective 当前可行解目标值（未设置时为 +Inf）
func (h *Holder) FeasibleObjective() float64 {
	return h.feasibleObjective
}

// IsFoundFeasibleSolution 一旦可行槽位被设置过，永远为真（单调）
func (h *Holder) IsFoundFeasibleSolution() bool {
	return h.hasFeasible
}
