// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/tabumip/internal/metrics"
	"github.com/paiban/tabumip/internal/repository"
	"github.com/paiban/tabumip/internal/tenant"
	"github.com/paiban/tabumip/pkg/errors"
	"github.com/paiban/tabumip/pkg/mip/model"
	"github.com/paiban/tabumip/pkg/mip/solver"
)

// SolveJobHandler 求解任务处理器：接受模型提交、回报求解状态与归档
type SolveJobHandler struct {
	repo        *repository.SolveJobRepository
	activeJobs  int64
}

// NewSolveJobHandler 创建求解任务处理器
func NewSolveJobHandler(repo *repository.SolveJobRepository) *SolveJobHandler {
	return &SolveJobHandler{repo: repo}
}

// VariableInput 提交模型中的一个变量
type VariableInput struct {
	Name    string `json:"name"`
	Lower   int    `json:"lower"`
	Upper   int    `json:"upper"`
	Initial int    `json:"initial"`
	Sense   string `json:"sense"` // general/binary/selection_member，默认 general
}

// ExpressionInput 提交模型中的一个线性表达式，Coefficients 以变量名为键
type ExpressionInput struct {
	Name         string             `json:"name"`
	Constant     float64            `json:"constant"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// ConstraintInput 提交模型中的一个约束
type ConstraintInput struct {
	Name           string  `json:"name"`
	Expression     string  `json:"expression"`
	Sense          string  `json:"sense"` // le/eq/ge
	InitialPenalty float64 `json:"initial_penalty"`
}

// ObjectiveInput 提交模型中的目标函数
type ObjectiveInput struct {
	Expression string `json:"expression"`
	Sense      string `json:"sense"` // minimize/maximize
}

// ModelInput 一次提交的完整模型
type ModelInput struct {
	Variables       []VariableInput   `json:"variables"`
	Expressions     []ExpressionInput `json:"expressions"`
	Constraints     []ConstraintInput `json:"constraints"`
	Objective       ObjectiveInput    `json:"objective"`
	SelectionGroups [][]string        `json:"selection_groups,omitempty"`
}

// OptionsInput 求解选项，未提供的字段取 solver.DefaultOptions() 的值
type OptionsInput struct {
	OuterIterationMax            *int     `json:"outer_iteration_max,omitempty"`
	InnerIterationMax             *int     `json:"inner_iteration_max,omitempty"`
	TimeMaxSeconds                *float64 `json:"time_max_seconds,omitempty"`
	InitialPenaltyCoefficient     *float64 `json:"initial_penalty_coefficient,omitempty"`
	TighteningRate                *float64 `json:"tightening_rate,omitempty"`
	RelaxingRate                  *float64 `json:"relaxing_rate,omitempty"`
	PenaltyBalance                *float64 `json:"penalty_balance,omitempty"`
	InitialTabuTenure             *int     `json:"initial_tabu_tenure,omitempty"`
	ChainOverlapThreshold         *float64 `json:"chain_overlap_threshold,omitempty"`
	ChainCapacity                 *int     `json:"chain_capacity,omitempty"`
	InitialModificationFixedRate  *float64 `json:"initial_modification_fixed_rate,omitempty"`
	InitialModificationWidth      *int     `json:"initial_modification_width,omitempty"`
	IterationIncreaseRate         *float64 `json:"iteration_increase_rate,omitempty"`
	PruningRateThreshold          *float64 `json:"pruning_rate_threshold,omitempty"`
	Target                        *float64 `json:"target,omitempty"`
	Seed                          *int64   `json:"seed,omitempty"`
	ArchiveCapacity               *int     `json:"archive_capacity,omitempty"`
	ArchiveDedupe                 *bool    `json:"archive_dedupe,omitempty"`
}

// SubmitRequest 提交求解任务的请求体
type SubmitRequest struct {
	Model   ModelInput    `json:"model"`
	Options *OptionsInput `json:"options,omitempty"`
}

// SubmitResponse 提交求解任务的响应体
type SubmitResponse struct {
	ID     string                    `json:"id"`
	Status repository.SolveJobStatus `json:"status"`
}

// Submit 提交一个模型并异步求解，立即返回任务ID（POST /api/v1/solves）
func (h *SolveJobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	m, err := buildModel(&req.Model)
	if err != nil {
		respondError(w, err)
		return
	}

	opts := buildOptions(req.Options)
	if appErr := validateOptions(opts, m); appErr != nil {
		respondError(w, appErr)
		return
	}

	tenantID := "default"
	if t, ok := tenant.FromContext(r.Context()); ok {
		tenantID = t.Code
	}

	job := &repository.SolveJob{
		TenantID: tenantID,
		Status:   repository.SolveJobQueued,
		Options:  opts,
	}
	if err := h.repo.Create(r.Context(), job); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "创建求解任务失败"))
		return
	}

	go h.run(job.ID, m, opts)

	respondJSON(w, http.StatusAccepted, SubmitResponse{ID: job.ID.String(), Status: job.Status})
}

// run 在后台执行一次求解，并把结果写回仓储，同时上报 Prometheus 指标
func (h *SolveJobHandler) run(id uuid.UUID, m *model.Model, opts solver.Options) {
	ctx := context.Background()
	if opts.TimeMax > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeMax+5*time.Second)
		defer cancel()
	}

	metrics.SetActiveSolveJobs(int(atomic.AddInt64(&h.activeJobs, 1)))
	defer metrics.SetActiveSolveJobs(int(atomic.AddInt64(&h.activeJobs, -1)))

	result, err := solver.Solve(ctx, m, opts)
	if err != nil {
		metrics.RecordSolve("ERROR", false, 0)
		_ = h.repo.UpdateResult(ctx, id, repository.SolveJobFailed, nil, err.Error())
		return
	}

	recordSolveMetrics(id.String(), result)

	status := repository.SolveJobSucceeded
	if !result.Success {
		status = repository.SolveJobFailed
	}
	_ = h.repo.UpdateResult(ctx, id, status, result, result.Message)
}

// recordSolveMetrics 把一次求解结果中的迭代/incumbent/禁忌期限/原始强度/
// 惩罚紧缩次数记录到 Prometheus
func recordSolveMetrics(solveID string, result *solver.Result) {
	metrics.RecordSolve(result.Status.TerminationReason, result.Success, result.Status.Elapsed)
	metrics.RecordIterations(result.Status.OuterIterations, result.Status.InnerIterations)
	metrics.SetIncumbentObjective(solveID, result.Solution.IsFeasible, result.Solution.Objective)
	metrics.SetTabuTenure(solveID, result.Status.FinalTabuTenure)
	metrics.SetPrimalIntensity(solveID, result.Status.FinalPrimalIntensity)
	metrics.RecordPenaltyTightening(result.Status.PenaltyTighteningCount)
}

// GetStatus 查询一个求解任务的状态与结果（GET /api/v1/solves/{id}）
func (h *SolveJobHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}

	id, appErr := parseJobID(r.URL.Path)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	job, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询求解任务失败"))
		return
	}
	if job == nil {
		respondError(w, errors.NotFound("求解任务", id.String()))
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// List 列出当前租户的求解任务（GET /api/v1/solves）
func (h *SolveJobHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}

	filter := repository.DefaultListFilter()
	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		filter = filter.WithStatus(status)
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter = filter.WithLimit(limit)
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset >= 0 {
		filter = filter.WithOffset(offset)
	}

	tenantID := "default"
	if t, ok := tenant.FromContext(r.Context()); ok {
		tenantID = t.Code
	}
	filter.Extra = map[string]interface{}{"tenant_id": tenantID}

	jobs, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询求解任务列表失败"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"total": total,
	})
}

// Archive 删除一个求解任务记录（DELETE /api/v1/solves/{id}）
func (h *SolveJobHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持DELETE方法"))
		return
	}

	id, appErr := parseJobID(r.URL.Path)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "删除求解任务失败"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// parseJobID 从形如 /api/v1/solves/<uuid> 的路径中取出任务ID
func parseJobID(path string) (uuid.UUID, *errors.AppError) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 {
		return uuid.UUID{}, errors.InvalidInput("id", "缺少求解任务ID")
	}
	raw := segments[len(segments)-1]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.Wrap(err, errors.CodeInvalidInput, "无效的求解任务ID格式")
	}
	return id, nil
}

// buildModel 将提交的 ModelInput 翻译为 pkg/mip/model.Model
func buildModel(input *ModelInput) (*model.Model, *errors.AppError) {
	if len(input.Variables) == 0 {
		return nil, errors.InvalidInput("variables", "模型至少需要一个变量")
	}

	m := model.NewModel()
	varIndex := make(map[string]int, len(input.Variables))
	for _, v := range input.Variables {
		if v.Name == "" {
			return nil, errors.InvalidInput("variables", "变量名不能为空")
		}
		if _, exists := varIndex[v.Name]; exists {
			return nil, errors.InvalidInput("variables", "重复的变量名: "+v.Name)
		}
		sense, err := parseVariableSense(v.Sense)
		if err != nil {
			return nil, err
		}
		variable := m.AddVariable(v.Name, v.Lower, v.Upper, v.Initial, sense)
		varIndex[v.Name] = variable.ID
	}

	exprIndex := make(map[string]int, len(input.Expressions))
	for _, e := range input.Expressions {
		if e.Name == "" {
			return nil, errors.InvalidInput("expressions", "表达式名不能为空")
		}
		if _, exists := exprIndex[e.Name]; exists {
			return nil, errors.InvalidInput("expressions", "重复的表达式名: "+e.Name)
		}
		expr := m.AddExpression(e.Name, e.Constant)
		exprIndex[e.Name] = expr.ID

		for varName, coeff := range e.Coefficients {
			varID, ok := varIndex[varName]
			if !ok {
				return nil, errors.InvalidInput("expressions", "表达式 "+e.Name+" 引用了未知变量: "+varName)
			}
			m.SetExpressionCoefficient(expr.ID, varID, coeff)
		}
	}

	if input.Objective.Expression == "" {
		return nil, errors.InvalidInput("objective", "必须指定目标表达式")
	}
	objExprID, ok := exprIndex[input.Objective.Expression]
	if !ok {
		return nil, errors.InvalidInput("objective", "目标引用了未知表达式: "+input.Objective.Expression)
	}
	objSense, err := parseObjectiveSense(input.Objective.Sense)
	if err != nil {
		return nil, err
	}
	m.SetObjective(objExprID, objSense)

	for _, c := range input.Constraints {
		if c.Name == "" {
			return nil, errors.InvalidInput("constraints", "约束名不能为空")
		}
		exprID, ok := exprIndex[c.Expression]
		if !ok {
			return nil, errors.InvalidInput("constraints", "约束 "+c.Name+" 引用了未知表达式: "+c.Expression)
		}
		sense, err := parseConstraintSense(c.Sense)
		if err != nil {
			return nil, err
		}
		m.AddConstraint(c.Name, exprID, sense, c.InitialPenalty)
	}

	for i, group := range input.SelectionGroups {
		ids := make([]int, 0, len(group))
		for _, name := range group {
			id, ok := varIndex[name]
			if !ok {
				return nil, errors.InvalidInput("selection_groups", "选择组引用了未知变量: "+name)
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return nil, errors.InvalidInput("selection_groups", "第"+strconv.Itoa(i)+"个选择组为空")
		}
		m.AddSelectionGroup(ids)
	}

	m.RefreshAll()
	return m, nil
}

func parseVariableSense(s string) (model.Sense, *errors.AppError) {
	switch s {
	case "", "general":
		return model.SenseGeneral, nil
	case "binary":
		return model.SenseBinary, nil
	case "selection_member":
		return model.SenseSelectionMember, nil
	default:
		return 0, errors.InvalidInput("sense", "未知的变量类型: "+s)
	}
}

func parseConstraintSense(s string) (model.ConstraintSense, *errors.AppError) {
	switch s {
	case "le":
		return model.SenseLE, nil
	case "eq":
		return model.SenseEQ, nil
	case "ge":
		return model.SenseGE, nil
	default:
		return 0, errors.InvalidInput("sense", "未知的约束方向: "+s)
	}
}

func parseObjectiveSense(s string) (model.ObjectiveSense, *errors.AppError) {
	switch s {
	case "", "minimize":
		return model.Minimize, nil
	case "maximize":
		return model.Maximize, nil
	default:
		return 0, errors.InvalidInput("sense", "未知的目标方向: "+s)
	}
}

// buildOptions 把可选的 OptionsInput 叠加到默认选项之上
func buildOptions(input *OptionsInput) solver.Options {
	opts := solver.DefaultOptions()
	if input == nil {
		return opts
	}

	if input.OuterIterationMax != nil {
		opts.OuterIterationMax = *input.OuterIterationMax
	}
	if input.InnerIterationMax != nil {
		opts.InnerIterationMax = *input.InnerIterationMax
	}
	if input.TimeMaxSeconds != nil {
		opts.TimeMax = time.Duration(*input.TimeMaxSeconds * float64(time.Second))
	}
	if input.InitialPenaltyCoefficient != nil {
		opts.InitialPenaltyCoefficient = *input.InitialPenaltyCoefficient
	}
	if input.TighteningRate != nil {
		opts.TighteningRate = *input.TighteningRate
	}
	if input.RelaxingRate != nil {
		opts.RelaxingRate = *input.RelaxingRate
	}
	if input.PenaltyBalance != nil {
		opts.PenaltyBalance = *input.PenaltyBalance
	}
	if input.InitialTabuTenure != nil {
		opts.InitialTabuTenure = *input.InitialTabuTenure
	}
	if input.ChainOverlapThreshold != nil {
		opts.ChainOverlapThreshold = *input.ChainOverlapThreshold
	}
	if input.ChainCapacity != nil {
		opts.ChainCapacity = *input.ChainCapacity
	}
	if input.InitialModificationFixedRate != nil {
		opts.InitialModificationFixedRate = *input.InitialModificationFixedRate
	}
	if input.InitialModificationWidth != nil {
		opts.InitialModificationWidth = *input.InitialModificationWidth
	}
	if input.IterationIncreaseRate != nil {
		opts.IterationIncreaseRate = *input.IterationIncreaseRate
	}
	if input.PruningRateThreshold != nil {
		opts.PruningRateThreshold = *input.PruningRateThreshold
	}
	if input.Target != nil {
		opts.Target = *input.Target
		opts.HasTarget = true
	}
	if input.Seed != nil {
		opts.Seed = *input.Seed
	}
	if input.ArchiveCapacity != nil {
		opts.ArchiveCapacity = *input.ArchiveCapacity
	}
	if input.ArchiveDedupe != nil {
		opts.ArchiveDedupe = *input.ArchiveDedupe
	}

	return opts
}

// validateOptions 在搭建阶段拒绝明显非法的输入，对应 §7 UserInputError
func validateOptions(opts solver.Options, m *model.Model) *errors.AppError {
	if opts.InitialTabuTenure < 0 {
		return errors.UserInputError("initial_tabu_tenure", "不能为负数")
	}
	if opts.InitialPenaltyCoefficient < 0 {
		return errors.UserInputError("initial_penalty_coefficient", "不能为负数")
	}
	if opts.ChainOverlapThreshold < 0 || opts.ChainOverlapThreshold > 1 {
		return errors.UserInputError("chain_overlap_threshold", "必须在[0,1]区间内")
	}
	if len(m.Variables) == 0 {
		return errors.UserInputError("variables", "模型没有变量")
	}
	return nil
}

// respondJSON 返回成功响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}
