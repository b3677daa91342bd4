// Package solver 是整个引擎对外的唯一入口：消费一个已经搭好的 model.Model
// 与一份 Options 记录，驱动 controller 的外层循环直到预算耗尽或找到可行目标，
// 产出一个按变量名索引的 NamedSolution 与一份 Status 记录。接口形状沿用
// pkg/scheduler/solver/greedy.go 的 Solver/Result/Statistics 组织方式，把
// "排班求解器" 换成 "禁忌搜索 MIP 引擎"。
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/tabumip/pkg/logger"
	"github.com/paiban/tabumip/pkg/mip/archive"
	"github.com/paiban/tabumip/pkg/mip/controller"
	"github.com/paiban/tabumip/pkg/mip/model"
)

// Options 对外暴露的全部可调参数，对应 spec §6 的 Options record。
// 默认值取自 spec 给出的代表性数值。
type Options struct {
	// 外层（controller）预算与惩罚参数
	OuterIterationMax         int
	InnerIterationMax         int
	TimeMax                   time.Duration
	InitialPenaltyCoefficient float64
	TighteningRate            float64
	RelaxingRate              float64
	PenaltyBalance            float64

	// 内层（tabu search）参数
	InitialTabuTenure            int
	ChainOverlapThreshold        float64
	ChainCapacity                int
	InitialModificationFixedRate float64
	InitialModificationWidth     int
	IterationIncreaseRate        float64
	PruningRateThreshold         float64

	Target    float64
	HasTarget bool

	Workers int
	Seed    int64

	// ArchiveCapacity <= 0 表示不启用存档
	ArchiveCapacity int
	ArchiveDedupe   bool

	// Interrupt 不参与序列化：持久化的求解任务记录只保留可重放的标量参数
	Interrupt func() bool `json:"-"`
}

// DefaultOptions 返回 §6 列出的代表性默认值
func DefaultOptions() Options {
	return Options{
		OuterIterationMax:            20,
		InnerIterationMax:            200,
		TimeMax:                      120 * time.Second,
		InitialPenaltyCoefficient:    1e6,
		TighteningRate:               1.0,
		RelaxingRate:                 0.5,
		PenaltyBalance:               0.5,
		InitialTabuTenure:            10,
		ChainOverlapThreshold:        0.2,
		ChainCapacity:                100,
		InitialModificationFixedRate: 0.1,
		InitialModificationWidth:     2,
		IterationIncreaseRate:        1.0,
		PruningRateThreshold:         0.5,
		Workers:                      1,
		ArchiveCapacity:              0,
	}
}

// validate §7 UserInputError："错误的选项值（如负的期限）在 controller 搭建
// 阶段被检测并立即报告"
func (o Options) validate(m *model.Model) error {
	if o.InitialTabuTenure < 0 {
		return fmt.Errorf("tabumip: initial tabu tenure must be >= 0, got %d", o.InitialTabuTenure)
	}
	if o.InitialPenaltyCoefficient < 0 {
		return fmt.Errorf("tabumip: initial penalty coefficient must be >= 0, got %v", o.InitialPenaltyCoefficient)
	}
	if o.ChainOverlapThreshold < 0 || o.ChainOverlapThreshold > 1 {
		return fmt.Errorf("tabumip: chain overlap threshold must be in [0,1], got %v", o.ChainOverlapThreshold)
	}
	if len(m.Variables) == 0 {
		return fmt.Errorf("tabumip: model has no variables")
	}
	return nil
}

// NamedSolution 最优 incumbent 的对外呈现：可行解优先，否则退回全局增广解；
// 变量值按名称索引（§6 "variable values keyed by name"）
type NamedSolution struct {
	Values           map[string]int     `json:"values"`
	ExpressionValues map[string]float64 `json:"expression_values"`
	ConstraintValues map[string]float64 `json:"constraint_values"`
	Violations       map[string]float64 `json:"violations"`
	Objective        float64            `json:"objective"`
	TotalViolation   float64            `json:"total_violation"`
	IsFeasible       bool               `json:"is_feasible"`
}

// Status 终止状态记录，§6 "Status record"
type Status struct {
	TerminationReason string        `json:"termination_reason"`
	OuterIterations   int           `json:"outer_iterations"`
	InnerIterations   int           `json:"inner_iterations"`
	Elapsed           time.Duration `json:"elapsed"`

	LocalAugmentedUpdates  int64 `json:"local_augmented_updates"`
	GlobalAugmentedUpdates int64 `json:"global_augmented_updates"`
	FeasibleUpdates        int64 `json:"feasible_updates"`

	PenaltyTighteningCount int     `json:"penalty_tightening_count"`
	FinalTabuTenure        int     `json:"final_tabu_tenure"`
	FinalPrimalIntensity   float64 `json:"final_primal_intensity"`
}

// Result 一次完整求解的结果，对应 pkg/scheduler/solver.Result 的对外形状
type Result struct {
	ID         uuid.UUID      `json:"id"`
	Solution   NamedSolution  `json:"solution"`
	Status     Status         `json:"status"`
	Archive    []archive.Entry `json:"archive,omitempty"`
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
}

// Solve 驱动 controller 的外层循环直到预算耗尽或命中可行目标，返回最优
// incumbent 的命名解与终止记录。不持久化任何状态（§6 "Persisted state: none
// between invocations"）。
func Solve(ctx context.Context, m *model.Model, opts Options) (*Result, error) {
	id := uuid.New()
	log := logger.NewSolverLogger()
	log.StartSolve(id.String(), len(m.Variables), len(m.Constraints))

	if err := opts.validate(m); err != nil {
		return nil, err
	}

	ctl := controller.NewController(m, toControllerOption(opts))
	if opts.Interrupt != nil {
		ctl.Core.Interrupt = opts.Interrupt
	}

	var solutionArchive *archive.Archive
	if opts.ArchiveCapacity > 0 {
		solutionArchive = archive.New(opts.ArchiveCapacity, opts.ArchiveDedupe)
	}

	start := time.Now()
	outerResult := ctl.Run(ctx, toControllerOption(opts))
	elapsed := time.Since(start)

	innerIterations := 0
	var localUpdates, globalUpdates, feasibleUpdates int64
	for _, inner := range outerResult.InnerResults {
		innerIterations += inner.Iterations
		localUpdates += inner.LocalAugmentedUpdates
		globalUpdates += inner.GlobalAugmentedUpdates
		feasibleUpdates += inner.FeasibleUpdates
	}
	if solutionArchive != nil {
		recordArchiveEntry(solutionArchive, m, ctl)
	}

	solution, success := buildNamedSolution(m, ctl)

	result := &Result{
		ID:       id,
		Solution: solution,
		Status: Status{
			TerminationReason:      outerResult.TerminationReason,
			OuterIterations:        outerResult.OuterIterations,
			InnerIterations:        innerIterations,
			Elapsed:                elapsed,
			LocalAugmentedUpdates:  localUpdates,
			GlobalAugmentedUpdates: globalUpdates,
			FeasibleUpdates:        feasibleUpdates,
			PenaltyTighteningCount: outerResult.PenaltyTighteningCount,
			FinalTabuTenure:        outerResult.FinalTabuTenure,
			FinalPrimalIntensity:   outerResult.FinalPrimalIntensity,
		},
		Success: success,
	}
	if !success {
		result.Message = "未找到可行解，已耗尽预算；返回全局增广最优解"
	}
	if solutionArchive != nil {
		result.Archive = solutionArchive.Entries()
	}

	log.SolveComplete(id.String(), success, innerIterations, elapsed)
	return result, nil
}

func toControllerOption(opts Options) controller.Option {
	return controller.Option{
		IterationMax:                 opts.OuterIterationMax,
		TimeMax:                      opts.TimeMax,
		InitialPenaltyCoefficient:    opts.InitialPenaltyCoefficient,
		TighteningRate:               opts.TighteningRate,
		RelaxingRate:                 opts.RelaxingRate,
		PenaltyBalance:               opts.PenaltyBalance,
		InitialTabuTenure:            opts.InitialTabuTenure,
		InnerIterationMax:            opts.InnerIterationMax,
		ChainCapacity:                opts.ChainCapacity,
		ChainOverlapThreshold:        opts.ChainOverlapThreshold,
		InitialModificationFixedRate: opts.InitialModificationFixedRate,
		InitialModificationWidth:     opts.InitialModificationWidth,
		IterationIncreaseRate:        opts.IterationIncreaseRate,
		PruningRateThreshold:         opts.PruningRateThreshold,
		InnerIterationMaster:         opts.InnerIterationMax,
		Target:                       opts.Target,
		HasTarget:                    opts.HasTarget,
		Workers:                      opts.Workers,
		Seed:                         opts.Seed,
	}
}

// buildNamedSolution 优先取可行 incumbent，否则退回全局增广 incumbent
// （§6 "the best incumbent (feasible if found, else global-augmented)"）
func buildNamedSolution(m *model.Model, ctl *controller.Controller) (NamedSolution, bool) {
	if feasible, ok := ctl.Incumbent.FeasibleSolution(); ok {
		return namedSolutionFrom(m, feasible.Values, feasible.Score.Objective, true), true
	}
	if global, ok := ctl.Incumbent.GlobalAugmentedSolution(); ok {
		return namedSolutionFrom(m, global.Values, global.Score.Objective, false), false
	}
	return namedSolutionFrom(m, m.Values(), m.EvaluateFull(m.Values()).Objective, false), false
}

func namedSolutionFrom(m *model.Model, values []int, objective float64, isFeasible bool) NamedSolution {
	score := m.EvaluateFull(values)

	namedValues := make(map[string]int, len(m.Variables))
	for _, v := range m.Variables {
		namedValues[v.Name] = values[v.ID]
	}

	expressionValues := make(map[string]float64, len(m.Expressions))
	for _, e := range m.Expressions {
		expressionValues[e.Name] = e.EvaluateFull(values)
	}

	constraintValues := make(map[string]float64, len(m.Constraints))
	violations := make(map[string]float64, len(m.Constraints))
	for _, c := range m.Constraints {
		exprValue := expressionValues[m.Expressions[c.ExpressionID].Name]
		constraintValues[c.Name] = exprValue
		violations[c.Name] = model.ComputeViolation(c.Sense, exprValue)
	}

	return NamedSolution{
		Values:           namedValues,
		ExpressionValues: expressionValues,
		ConstraintValues: constraintValues,
		Violations:       violations,
		Objective:        objective,
		TotalViolation:   score.TotalViolation,
		IsFeasible:       isFeasible,
	}
}

func recordArchiveEntry(a *archive.Archive, m *model.Model, ctl *controller.Controller) {
	feasible, ok := ctl.Incumbent.FeasibleSolution()
	if !ok {
		return
	}
	sparse := make(map[string]int)
	for _, v := range m.Variables {
		if feasible.Values[v.ID] != 0 {
			sparse[v.Name] = feasible.Values[v.ID]
		}
	}
	a.Add(archive.Entry{
		Objective:      feasible.Score.Objective,
		TotalViolation: 0,
		Values:         sparse,
	})
}
