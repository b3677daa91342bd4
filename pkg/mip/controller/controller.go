package controller

import (
	"context"
	"math/rand"
	"time"

	"github.com/paiban/tabumip/pkg/mip/incumbent"
	"github.com/paiban/tabumip/pkg/mip/memory"
	"github.com/paiban/tabumip/pkg/mip/model"
	"github.com/paiban/tabumip/pkg/mip/neighborhood"
	"github.com/paiban/tabumip/pkg/mip/tabusearch"
)

// Option 外层控制回路的可调参数，§6 Options record 中与 controller 相关的部分
type Option struct {
	IterationMax int
	TimeMax      time.Duration

	InitialPenaltyCoefficient float64
	TighteningRate            float64
	RelaxingRate              float64
	PenaltyBalance            float64

	InitialTabuTenure int
	InnerIterationMax int

	ChainCapacity         int
	ChainOverlapThreshold float64

	InitialModificationFixedRate float64
	InitialModificationWidth    int

	IterationIncreaseRate float64
	InnerIterationMaster  int
	PruningRateThreshold  float64

	Target    float64
	HasTarget bool

	Workers int
	Seed    int64
}

// Controller 外层循环：重复调用内层禁忌搜索，同时调节惩罚系数、重启解、
// 禁忌期限基线、链池容量、迭代预算。
type Controller struct {
	Model        *model.Model
	Memory       *memory.Memory
	Neighborhood *neighborhood.Generator
	Incumbent    *incumbent.Holder
	Penalty      *PenaltyManager
	Core         *tabusearch.Core

	baselineTenure      int
	innerIterationMax   int
	consecutiveFailures int
	previousRestart     RestartTarget
	previousPickedCount int
	infeasibleStagnationStreak          int
	previousPrimalIntensityForStagnation float64
	previousPrimalIntensityForTenure     float64
	nextInitialModification             int
	penaltyTighteningCount              int
}

// Result 外层一次完整求解的结果
type Result struct {
	OuterIterations        int
	InnerResults           []tabusearch.Result
	TerminationReason      string
	PenaltyTighteningCount int
	FinalTabuTenure        int
	FinalPrimalIntensity   float64
}

// NewController 创建一个外层控制器
func NewController(m *model.Model, opt Option) *Controller {
	mem := memory.New(len(m.Variables))
	nb := neighborhood.New(m)
	nb.ChainCapacity = opt.ChainCapacity
	nb.ChainOverlapThreshold = opt.ChainOverlapThreshold
	inc := incumbent.New()
	core := tabusearch.NewCore(m, mem, nb, inc, opt.Workers, opt.Seed)

	return &Controller{
		Model:             m,
		Memory:            mem,
		Neighborhood:      nb,
		Incumbent:         inc,
		Penalty:           NewPenaltyManager(opt.InitialPenaltyCoefficient, opt.TighteningRate, opt.RelaxingRate),
		Core:              core,
		baselineTenure:    opt.InitialTabuTenure,
		innerIterationMax: opt.InnerIterationMax,
		previousRestart:   RestartGlobal,
	}
}

// Run 执行外层循环直到总体时间/迭代预算耗尽，或达到可行目标
func (ctl *Controller) Run(ctx context.Context, opt Option) Result {
	start := time.Now()
	rng := rand.New(rand.NewSource(opt.Seed + 1))

	var result Result
	var exhaustedBudget bool
	var previousInnerStatus tabusearch.Status
	screeningEnabled := true

	for outerIter := 0; opt.IterationMax <= 0 || outerIter < opt.IterationMax; outerIter++ {
		if opt.TimeMax > 0 && time.Since(start) > opt.TimeMax {
			result.TerminationReason = "TIME_OVER"
			break
		}
		if opt.HasTarget {
			if feasible, ok := ctl.Incumbent.FeasibleSolution(); ok && feasible.Score.Objective <= opt.Target {
				result.TerminationReason = "REACH_TARGET"
				break
			}
		}

		innerOpt := ctl.buildInnerOption(opt, screeningEnabled, start)
		innerResult := ctl.Core.Run(ctx, innerOpt)
		result.InnerResults = append(result.InnerResults, innerResult)
		exhaustedBudget = innerResult.Status == tabusearch.StatusIterationOver || innerResult.Status == tabusearch.StatusTimeOver

		status := ctl.incumbentUpdateStatus(innerResult)
		decisionInput := ctl.buildDecisionInput(innerResult, status)
		restart, penaltyAction, forceInitialModification := Decide(decisionInput)

		ctl.applyRestart(restart)
		ctl.applyPenaltyAction(penaltyAction, decisionInput.LocalFeasible)
		ctl.trackStagnation(opt, decisionInput)

		ctl.adjustTabuTenureBaseline(innerResult)
		ctl.Neighborhood.SortAndDeduplicateChainPool()
		if status.Has(incumbent.StatusGlobalAugmentedUpdate) {
			ctl.Neighborhood.ClearChainPool()
			screeningEnabled = true
		} else {
			ctl.Neighborhood.ReduceChainPool(rng, exhaustedBudget)
			screeningEnabled = exhaustedBudget
		}

		if forceInitialModification {
			ctl.applyInitialModification(opt, rng)
		}

		if opt.IterationIncreaseRate > 1 && exhaustedBudget && opt.InnerIterationMaster > 0 {
			next := int(float64(ctl.innerIterationMax) * opt.IterationIncreaseRate)
			if next > opt.InnerIterationMaster {
				next = opt.InnerIterationMaster
			}
			ctl.innerIterationMax = next
		}

		previousInnerStatus = innerResult.Status
		result.OuterIterations = outerIter + 1
	}

	if result.TerminationReason == "" {
		if opt.IterationMax > 0 && result.OuterIterations >= opt.IterationMax {
			result.TerminationReason = "ITERATION_OVER"
		} else {
			result.TerminationReason = previousInnerStatus.String()
		}
	}

	result.PenaltyTighteningCount = ctl.penaltyTighteningCount
	result.FinalPrimalIntensity = ctl.Memory.PrimalIntensity()
	if len(result.InnerResults) > 0 {
		result.FinalTabuTenure = result.InnerResults[len(result.InnerResults)-1].FinalTabuTenure
	}

	return result
}

func (ctl *Controller) buildInnerOption(opt Option, screeningEnabled bool, start time.Time) tabusearch.Option {
	inner := tabusearch.DefaultOption()
	inner.IterationMax = ctl.innerIterationMax
	inner.TimeMax = opt.TimeMax
	inner.TimeOffset = time.Since(start)
	inner.InitialTabuTenure = ctl.baselineTenure
	inner.TabuTenureRandomizeRate = 0.5
	inner.FrequencyPenaltyCoefficient = 1e-5
	inner.Target = opt.Target
	inner.HasTarget = opt.HasTarget
	inner.NumberOfInitialModification = ctl.nextInitialModification
	ctl.nextInitialModification = 0
	if screeningEnabled {
		inner.ScreeningMode = tabusearch.ScreeningSoft
	} else {
		inner.ScreeningMode = tabusearch.ScreeningAggressive
	}
	// §4.6 step9：剪枝阈值只在迭代预算已经爬升到 master 上限时才启用，
	// 预算仍在爬升（小于 master）的阶段禁用剪枝式提前停止。
	if opt.InnerIterationMaster > 0 && ctl.innerIterationMax >= opt.InnerIterationMaster {
		inner.PruningRateThreshold = opt.PruningRateThreshold
	} else {
		inner.PruningRateThreshold = 0
	}
	return inner
}

func (ctl *Controller) incumbentUpdateStatus(innerResult tabusearch.Result) incumbent.Status {
	status := incumbent.StatusNone
	if len(innerResult.ProgressRows) > 0 {
		last := innerResult.ProgressRows[len(innerResult.ProgressRows)-1]
		if last.UpdateMark != "" {
			status = incumbent.StatusNone
			for _, ch := range last.UpdateMark {
				switch ch {
				case '!':
					status |= incumbent.StatusLocalAugmentedUpdate
				case '#':
					status |= incumbent.StatusGlobalAugmentedUpdate
				case '*':
					status |= incumbent.StatusFeasibleUpdate
				}
			}
		}
	}
	return status
}

func (ctl *Controller) buildDecisionInput(innerResult tabusearch.Result, status incumbent.Status) RestartDecisionInput {
	local, hasLocal := ctl.Incumbent.LocalAugmentedSolution()
	global, hasGlobal := ctl.Incumbent.GlobalAugmentedSolution()

	gap := 0.0
	if hasLocal && hasGlobal {
		gap = local.Score.LocalAugmented - global.Score.GlobalAugmented
	}

	rangeRatio := 1.0
	if innerResult.MaxObjectiveSeen > innerResult.MinObjectiveSeen {
		spread := innerResult.MaxObjectiveSeen - innerResult.MinObjectiveSeen
		if global.Score.GlobalAugmented != 0 {
			rangeRatio = spread / (global.Score.GlobalAugmented + 1e-12)
			if rangeRatio < 0 {
				rangeRatio = -rangeRatio
			}
		}
	}

	in := RestartDecisionInput{
		GlobalAugmentedImproved: status.Has(incumbent.StatusGlobalAugmentedUpdate),
		InnerFoundNothing:       innerResult.Status == tabusearch.StatusNoMove,
		LocalWorseThanGlobal:    gap < 0,
		LocalFeasible:           hasLocal && local.Score.IsFeasible,
		LocalRangeRatio:         rangeRatio,
		LocalImproved:           status.Has(incumbent.StatusLocalAugmentedUpdate),
		ConsecutiveFailures:     ctl.consecutiveFailures,
	}
	if in.InnerFoundNothing {
		ctl.consecutiveFailures++
	} else {
		ctl.consecutiveFailures = 0
	}
	return in
}

func (ctl *Controller) applyRestart(target RestartTarget) {
	if target == RestartPrevious && ctl.previousRestart == RestartPrevious {
		ctl.previousPickedCount++
	} else {
		ctl.previousPickedCount = 0
	}
	ctl.previousRestart = target
}

func (ctl *Controller) applyPenaltyAction(action PenaltyAction, localFeasible bool) {
	constraints := ctl.Model.Constraints
	exprValues := make([]float64, len(constraints))
	for i, c := range constraints {
		exprValues[i] = ctl.Model.Expressions[c.ExpressionID].Value
	}

	switch action {
	case PenaltyTighten:
		ctl.penaltyTighteningCount++
		ctl.Penalty.Tighten(constraints, exprValues, ctl.penaltyBalance())
	case PenaltyRelax:
		ratio := ctl.objectiveConstraintRatio()
		ctl.Penalty.Relax(constraints, exprValues, ratio, localFeasible)
	}
}

func (ctl *Controller) penaltyBalance() float64 {
	return 0.5
}

func (ctl *Controller) objectiveConstraintRatio() float64 {
	return 1.0
}

func (ctl *Controller) trackStagnation(opt Option, in RestartDecisionInput) {
	risingIntensity := ctl.Memory.PrimalIntensity() > ctl.previousPrimalIntensityForStagnation
	ctl.previousPrimalIntensityForStagnation = ctl.Memory.PrimalIntensity()

	if !in.LocalFeasible && !in.LocalImproved {
		ctl.infeasibleStagnationStreak++
	} else {
		ctl.infeasibleStagnationStreak = 0
	}

	ctl.Penalty.AdjustRelaxingRate(
		opt.RelaxingRate,
		ctl.infeasibleStagnationStreak > 5 && risingIntensity,
		ctl.Incumbent.IsFoundFeasibleSolution(),
		ctl.previousPickedCount >= 3,
	)

	if ctl.infeasibleStagnationStreak > 30 {
		ctl.Penalty.Reset(ctl.Model.Constraints)
		ctl.infeasibleStagnationStreak = 0
	}
}

// adjustTabuTenureBaseline §4.6 step7：按上次运行的期限是否处于基线、以及强度
// 是否上升，对基线做 ±1 调整。
func (ctl *Controller) adjustTabuTenureBaseline(innerResult tabusearch.Result) {
	wasAtBaseline := innerResult.FinalTabuTenure == ctl.baselineTenure
	currentIntensity := ctl.Memory.PrimalIntensity()
	intensityRose := currentIntensity > ctl.previousPrimalIntensityForTenure
	ctl.previousPrimalIntensityForTenure = currentIntensity

	numMutable := ctl.Model.NumMutableVariables()
	switch {
	case wasAtBaseline && intensityRose:
		ctl.baselineTenure = clampTenure(ctl.baselineTenure+1, numMutable)
	case !wasAtBaseline:
		ctl.baselineTenure = clampTenure(ctl.baselineTenure-1, numMutable)
	}
}

func clampTenure(tenure, numMutable int) int {
	if numMutable < 1 {
		numMutable = 1
	}
	if tenure < 1 {
		return 1
	}
	if tenure > numMutable {
		return numMutable
	}
	return tenure
}

// applyInitialModification §4.6 step8：下一次运行的扩散窗口大小，
// floor(fixed_rate * baseline_tenure) + U[-w, +w]，下限为1。
func (ctl *Controller) applyInitialModification(opt Option, rng *rand.Rand) {
	base := int(opt.InitialModificationFixedRate * float64(ctl.baselineTenure))
	width := opt.InitialModificationWidth
	jitter := 0
	if width > 0 {
		jitter = rng.Intn(2*width+1) - width
	}
	count := base + jitter
	if count < 1 {
		count = 1
	}
	ctl.nextInitialModification = count
}
