// Package tabusearch 实现禁忌搜索内循环（inner run）：一次运行消费一个初始
// 赋值与外层 controller 的参数，产出更新后的 IncumbentHolder、Memory 与一份
// 结果记录。整体迭代结构沿用
// pkg/scheduler/optimizer/local_search.go 的 Optimize() 循环骨架
// （选择/接受/平台期检测/降温换成禁忌许可/愿望准则/禁忌期限自适应），
// 终止检查顺序与原始强度追踪逻辑按 original_source 的
// printemps/solver/tabu_search/core/tabu_search.h 校准。
package tabusearch

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/paiban/tabumip/pkg/mip/incumbent"
	"github.com/paiban/tabumip/pkg/mip/memory"
	"github.com/paiban/tabumip/pkg/mip/model"
	"github.com/paiban/tabumip/pkg/mip/neighborhood"
)

// InterruptCallback 在每次内循环迭代边界轮询的外部中断回调，§5
type InterruptCallback func() bool

// Core 一次内循环运行所需的全部依赖
type Core struct {
	Model         *model.Model
	Memory        *memory.Memory
	Neighborhood  *neighborhood.Generator
	Incumbent     *incumbent.Holder
	Workers       int
	Interrupt     InterruptCallback

	rng *rand.Rand

	// tabuTenure 是本次运行内自适应调整的当前禁忌期限，由 controller 通过
	// Option.InitialTabuTenure 传入初值
	tabuTenure int

	baselineTenure          int
	previousPrimalIntensity float64
	increaseStreak          int
	decreaseStreak          int
	lastTenureUpdateIter    int

	maxObjectiveSeen float64
	minObjectiveSeen float64

	// localOnlyUpdates 自上次全局增广更新以来累计的局部增广更新次数，
	// 供 checkTermination 的剪枝检查使用（§4.5 step1 第四项）
	localOnlyUpdates int
}

// Result 一次内循环的结果记录
type Result struct {
	Status           Status
	Iterations       int
	Elapsed          time.Duration
	FinalTabuTenure  int
	ChainRegistered  bool
	MaxObjectiveSeen float64
	MinObjectiveSeen float64
	ProgressRows     []ProgressRow

	// 三槽位更新计数，独立于 Verbose 等级统计（§6 "total updates per slot"）
	LocalAugmentedUpdates  int64
	GlobalAugmentedUpdates int64
	FeasibleUpdates        int64
}

// NewCore 创建一个内循环执行器
func NewCore(m *model.Model, mem *memory.Memory, nb *neighborhood.Generator, inc *incumbent.Holder, workers int, seed int64) *Core {
	return &Core{
		Model:        m,
		Memory:       mem,
		Neighborhood: nb,
		Incumbent:    inc,
		Workers:      workers,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Run 执行一次内循环，按 §4.5 的十个步骤
func (c *Core) Run(ctx context.Context, opt Option) Result {
	start := time.Now()

	c.Incumbent.ResetLocalAugmentedIncumbent()
	c.baselineTenure = opt.InitialTabuTenure
	c.tabuTenure = clampTenure(opt.InitialTabuTenure, c.Model.NumMutableVariables())
	c.previousPrimalIntensity = c.Memory.PrimalIntensity()
	c.increaseStreak = 0
	c.decreaseStreak = 0
	c.maxObjectiveSeen = math.Inf(-1)
	c.minObjectiveSeen = math.Inf(1)
	c.localOnlyUpdates = 0

	// 初始状态的完整求值，并尝试一次 incumbent 更新（不计入迭代）
	c.Model.RefreshAll()
	c.tryUpdateIncumbent(c.Model.EvaluateFull(c.Model.Values()))

	var previousMove *model.Move
	var result Result
	result.ChainRegistered = false

	iteration := 0
	for {
		// 1. 终止检查
		if status, ok := c.checkTermination(iteration, opt, start); ok {
			result.Status = status
			break
		}
		if c.Interrupt != nil && c.Interrupt() {
			result.Status = StatusTimeOver
			break
		}
		if ctxDone(ctx) {
			result.Status = StatusTimeOver
			break
		}

		// 2. 改进性筛选 + 生成邻域。首次迭代前为全部变量刷新改进性标记，
		// 之后只为上一次移动改动过的变量刷新（步骤7）
		if iteration == 0 {
			all := c.Neighborhood.UpdateMoves(neighborhood.AcceptFlags{AcceptAll: true}, false)
			ids := make([]int, len(c.Model.Variables))
			for i := range ids {
				ids[i] = i
			}
			c.Model.RefreshImprovabilityFlags(ids, all)
		}
		flags := acceptFlagsForScreening(opt.ScreeningMode)
		moves := c.Neighborhood.UpdateMoves(flags, c.Workers > 1)

		if len(moves) == 0 {
			feasible := c.Model.EvaluateFull(c.Model.Values()).IsFeasible
			anyImprovable := false
			for _, v := range c.Model.Variables {
				if v.IsObjectiveImprovable {
					anyImprovable = true
					break
				}
			}
			if feasible && !anyImprovable {
				result.Status = StatusOptimal
			} else {
				result.Status = StatusNoMove
			}
			break
		}

		// 3. 可选shuffle与前缀截断
		if opt.MovePreserveRate > 0 && opt.MovePreserveRate < 1 {
			neighborhood.ShuffleMoves(moves, c.rng)
			moves = neighborhood.TruncateByPreserveRate(moves, opt.MovePreserveRate)
		}

		// 4. 并行批量评估
		scores := evaluateBatch(c.Model, moves, c.Workers)
		moveScores := make([]MoveScore, len(moves))
		for i, mv := range moves {
			moveScores[i] = evaluateMoveScore(mv, c.Memory, iteration, c.tabuTenure, opt.TabuMode, opt.FrequencyPenaltyCoefficient)
		}

		// 5. 总分
		totals := make([]float64, len(moves))
		for i := range moves {
			totals[i] = totalScore(scores[i], moveScores[i], moves[i])
		}

		// 6. 选择
		selected, selectedIdx := c.selectMove(iteration, opt, moves, scores, totals)

		// 7. 应用
		c.Model.Update(selected)
		alterations := make([]memory.Alteration, len(selected.Alterations))
		for i, a := range selected.Alterations {
			alterations[i] = memory.Alteration{VariableID: a.VariableID}
		}
		randomWidth := int(float64(c.tabuTenure) * opt.TabuTenureRandomizeRate)
		c.Memory.Update(alterations, iteration, randomWidth, c.rng.Intn)

		status := c.tryUpdateIncumbent(scores[selectedIdx])
		if status.Has(incumbent.StatusLocalAugmentedUpdate) {
			result.LocalAugmentedUpdates++
		}
		if status.Has(incumbent.StatusGlobalAugmentedUpdate) {
			result.GlobalAugmentedUpdates++
		}
		if status.Has(incumbent.StatusFeasibleUpdate) {
			result.FeasibleUpdates++
		}
		if status.Has(incumbent.StatusGlobalAugmentedUpdate) {
			c.localOnlyUpdates = 0
		} else if status.Has(incumbent.StatusLocalAugmentedUpdate) {
			c.localOnlyUpdates++
		}
		if selected.IsSpecial {
			selected.IsAvailable = false
			switch selected.Sense {
			case model.MoveAggregation, model.MovePrecedence, model.MoveVariableBound:
				c.Neighborhood.MarkSpecialUsed(selected.Sense, selected.SpecialIndex)
			}
		}

		touched := make([]int, len(selected.Alterations))
		for i, a := range selected.Alterations {
			touched[i] = a.VariableID
		}
		c.Model.RefreshImprovabilityFlags(touched, moves)

		c.updateObjectiveRange(scores[selectedIdx].Objective)

		if opt.Verbose >= VerboseInner {
			result.ProgressRows = append(result.ProgressRows, c.buildProgressRow(iteration, moves, scores, moveScores, status))
		}

		// 8. 链式注册
		if previousMove != nil {
			if c.Neighborhood.RegisterChain(previousMove, selected) {
				result.ChainRegistered = true
			}
		}
		previousMove = selected

		// 9. 自适应禁忌期限
		c.adaptTabuTenure(status, iteration, opt)

		// 10. auto-break
		if iteration >= 10 && c.shouldAutoBreak(scores, moveScores) {
			result.Status = StatusEarlyStop
			break
		}

		iteration++
	}

	result.Iterations = iteration
	result.Elapsed = time.Since(start)
	result.FinalTabuTenure = c.tabuTenure
	result.MaxObjectiveSeen = c.maxObjectiveSeen
	result.MinObjectiveSeen = c.minObjectiveSeen
	return result
}

func (c *Core) buildProgressRow(iteration int, moves []*model.Move, scores []model.SolutionScore, moveScores []MoveScore, status incumbent.Status) ProgressRow {
	row := ProgressRow{Iteration: iteration, NeighborhoodAll: len(moves)}
	for i, s := range scores {
		if s.IsFeasible {
			row.NeighborhoodFeasible++
		}
		if moveScores[i].IsPermissible {
			row.NeighborhoodPermissible++
		}
		if s.IsObjectiveImprovable || s.IsFeasibilityImprovable {
			row.NeighborhoodImprovable++
		}
	}
	row.CurrentAugmentedObjective = c.Incumbent.LocalAugmentedObjective()
	row.IncumbentAugmentedObjective = c.Incumbent.GlobalAugmentedObjective()
	row.IncumbentFeasibleObjective = c.Incumbent.FeasibleObjective()
	row.UpdateMark = updateMark(
		status.Has(incumbent.StatusLocalAugmentedUpdate),
		status.Has(incumbent.StatusGlobalAugmentedUpdate),
		status.Has(incumbent.StatusFeasibleUpdate),
	)
	return row
}

func (c *Core) tryUpdateIncumbent(score model.SolutionScore) incumbent.Status {
	return c.Incumbent.TryUpdate(incumbent.Solution{
		Values: c.Model.Values(),
		Score: incumbent.Score{
			LocalAugmented:  score.LocalAugmented,
			GlobalAugmented: score.GlobalAugmented,
			Objective:       score.Objective,
			IsFeasible:      score.IsFeasible,
		},
	})
}

// checkTermination §4.5 step1：时间、迭代、目标、剪枝，依此顺序
func (c *Core) checkTermination(iteration int, opt Option, start time.Time) (Status, bool) {
	elapsed := time.Since(start)
	if opt.TimeMax > 0 && elapsed > opt.TimeMax {
		return StatusTimeOver, true
	}
	if opt.TimeMax > 0 && elapsed+opt.TimeOffset > opt.TimeMax {
		return StatusTimeOver, true
	}
	if opt.IterationMax > 0 && iteration >= opt.IterationMax {
		return StatusIterationOver, true
	}
	if opt.HasTarget {
		if feasible, ok := c.Incumbent.FeasibleSolution(); ok && feasible.Score.Objective <= opt.Target {
			return StatusReachTarget, true
		}
	}
	if opt.PruningRateThreshold > 0 && iteration > 0 {
		rate := float64(c.localOnlyUpdates) / float64(iteration)
		if rate >= opt.PruningRateThreshold {
			return StatusEarlyStop, true
		}
	}
	return StatusRunning, false
}

func acceptFlagsForScreening(mode ScreeningMode) neighborhood.AcceptFlags {
	switch mode {
	case ScreeningOff:
		return neighborhood.AcceptFlags{AcceptAll: true}
	case ScreeningSoft:
		return neighborhood.AcceptFlags{AcceptObjectiveImprovable: true, AcceptFeasibilityImprovable: true}
	case ScreeningAggressive:
		return neighborhood.AcceptFlags{AcceptFeasibilityImprovable: true}
	default: // ScreeningIntensive
		return neighborhood.AcceptFlags{AcceptObjectiveImprovable: true}
	}
}

// selectMove §4.5 step6：扩散窗口内均匀随机，否则 argmin(total_score)，
// 再用愿望准则覆盖禁忌状态。
func (c *Core) selectMove(iteration int, opt Option, moves []*model.Move, scores []model.SolutionScore, totals []float64) (*model.Move, int) {
	if iteration < opt.NumberOfInitialModification {
		idx := c.rng.Intn(len(moves))
		return moves[idx], idx
	}

	bestIdx := 0
	for i := 1; i < len(totals); i++ {
		if totals[i] < totals[bestIdx] {
			bestIdx = i
		}
	}

	// 愿望准则：全局增广目标最小的候选若能严格改进全局增广 incumbent，
	// 则无视禁忌状态直接选中。
	bestGlobalIdx := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].GlobalAugmented < scores[bestGlobalIdx].GlobalAugmented {
			bestGlobalIdx = i
		}
	}
	if scores[bestGlobalIdx].GlobalAugmented < c.Incumbent.GlobalAugmentedObjective()-model.Epsilon {
		moves[bestGlobalIdx].IsAspirated = true
		return moves[bestGlobalIdx], bestGlobalIdx
	}

	return moves[bestIdx], bestIdx
}

func (c *Core) updateObjectiveRange(objective float64) {
	// 按 DESIGN.md 对 open-question #1 的裁决：max_objective 用真正的 max 语义
	if objective > c.maxObjectiveSeen {
		c.maxObjectiveSeen = objective
	}
	if objective < c.minObjectiveSeen {
		c.minObjectiveSeen = objective
	}
}

// adaptTabuTenure §4.5 step9
func (c *Core) adaptTabuTenure(status incumbent.Status, iteration int, opt Option) {
	if status.Has(incumbent.StatusGlobalAugmentedUpdate) {
		c.tabuTenure = clampTenure(c.baselineTenure, c.Model.NumMutableVariables())
		c.increaseStreak = 0
		c.decreaseStreak = 0
		c.lastTenureUpdateIter = iteration
		c.previousPrimalIntensity = c.Memory.PrimalIntensity()
		return
	}

	if iteration-c.lastTenureUpdateIter < c.tabuTenure+1 {
		return
	}
	c.lastTenureUpdateIter = iteration

	current := c.Memory.PrimalIntensity()
	if current > c.previousPrimalIntensity {
		c.increaseStreak++
		c.decreaseStreak = 0
	} else if current < c.previousPrimalIntensity {
		c.decreaseStreak++
		c.increaseStreak = 0
	}
	c.previousPrimalIntensity = current

	baseline := c.baselineTenure
	minTenure := baseline / 2
	if minTenure < 1 {
		minTenure = 1
	}
	maxTenure := c.Model.NumMutableVariables()

	if c.increaseStreak >= opt.BiasIncreaseThreshold {
		c.tabuTenure = clampRange(c.tabuTenure+1, minTenure, maxTenure)
		c.increaseStreak = 0
	} else if c.decreaseStreak >= opt.BiasDecreaseThreshold {
		c.tabuTenure = clampRange(c.tabuTenure-1, minTenure, maxTenure)
		c.decreaseStreak = 0
	}
}

func clampTenure(tenure, numMutable int) int {
	return clampRange(tenure, 1, maxInt(numMutable, 1))
}

func clampRange(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// shouldAutoBreak §4.5 step10："≥10次迭代后，若当前解可行且不可行候选中的
// 最小惩罚超过最大绝对目标灵敏度的100倍，提前以EARLY_STOP中断"
func (c *Core) shouldAutoBreak(scores []model.SolutionScore, moveScores []MoveScore) bool {
	for _, con := range c.Model.Constraints {
		if con.Violation >= model.Epsilon {
			return false
		}
	}

	minInfeasiblePenalty := math.Inf(1)
	found := false
	for _, s := range scores {
		if s.IsFeasible {
			continue
		}
		found = true
		if s.LocalPenaltySum < minInfeasiblePenalty {
			minInfeasiblePenalty = s.LocalPenaltySum
		}
	}
	if !found {
		return false
	}

	maxSensitivity := 0.0
	for _, coeff := range c.Model.Expressions[c.Model.Objective.ExpressionID].Coefficient {
		maxSensitivity = math.Max(maxSensitivity, math.Abs(coeff))
	}
	if maxSensitivity == 0 {
		return false
	}
	return minInfeasiblePenalty > 100*maxSensitivity
}
