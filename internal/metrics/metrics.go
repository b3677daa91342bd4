// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabumip_http_requests_total",
		Help: "HTTP请求总数",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tabumip_http_request_duration_seconds",
		Help:    "HTTP请求延迟",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"method", "path"})

	solveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabumip_solve_total",
		Help: "求解调用总数",
	}, []string{"status"})

	solveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tabumip_solve_duration_seconds",
		Help:    "单次求解耗时",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0},
	}, []string{"termination_reason"})

	outerIterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabumip_outer_iterations_total",
		Help: "外层控制回路迭代次数",
	}, []string{})

	innerIterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabumip_inner_iterations_total",
		Help: "内层禁忌搜索迭代次数",
	}, []string{})

	activeSolveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tabumip_active_solve_jobs",
		Help: "当前活动求解任务数",
	})

	dbConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tabumip_db_connections",
		Help: "数据库连接数",
	}, []string{"state"})

	incumbentObjective = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tabumip_incumbent_objective",
		Help: "最优 incumbent 目标值",
	}, []string{"solve_id", "feasible"})

	penaltyTighteningTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabumip_penalty_tightening_total",
		Help: "外层控制回路惩罚紧缩次数",
	}, []string{})

	tabuTenureGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tabumip_tabu_tenure",
		Help: "求解结束时最后一次内循环使用的禁忌期限",
	}, []string{"solve_id"})

	primalIntensityGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tabumip_primal_intensity",
		Help: "求解结束时的原始强度（由长期记忆更新次数计算）",
	}, []string{"solve_id"})
)

// Handler 返回Prometheus格式的指标HTTP处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	statusStr := http.StatusText(status)
	if statusStr == "" {
		statusStr = "unknown"
	}
	httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSolve 记录一次求解调用的结果与耗时
func RecordSolve(terminationReason string, success bool, duration time.Duration) {
	status := "infeasible"
	if success {
		status = "feasible"
	}
	solveTotal.WithLabelValues(status).Inc()
	solveDuration.WithLabelValues(terminationReason).Observe(duration.Seconds())
}

// RecordIterations 累加一次求解消耗的外层/内层迭代次数
func RecordIterations(outer, inner int) {
	outerIterationsTotal.WithLabelValues().Add(float64(outer))
	innerIterationsTotal.WithLabelValues().Add(float64(inner))
}

// SetActiveSolveJobs 设置当前活动求解任务数
func SetActiveSolveJobs(count int) {
	activeSolveJobs.Set(float64(count))
}

// SetDBConnections 设置数据库连接池状态
func SetDBConnections(state string, count int) {
	dbConnections.WithLabelValues(state).Set(float64(count))
}

// SetIncumbentObjective 记录一次求解最终 incumbent 的目标值
func SetIncumbentObjective(solveID string, feasible bool, objective float64) {
	incumbentObjective.WithLabelValues(solveID, boolLabel(feasible)).Set(objective)
}

// RecordPenaltyTightening 累加一次求解过程中外层控制回路的惩罚紧缩次数
func RecordPenaltyTightening(count int) {
	if count <= 0 {
		return
	}
	penaltyTighteningTotal.WithLabelValues().Add(float64(count))
}

// SetTabuTenure 记录一次求解结束时最后一次内循环的禁忌期限
func SetTabuTenure(solveID string, tenure int) {
	tabuTenureGauge.WithLabelValues(solveID).Set(float64(tenure))
}

// SetPrimalIntensity 记录一次求解结束时的原始强度
func SetPrimalIntensity(solveID string, intensity float64) {
	primalIntensityGauge.WithLabelValues(solveID).Set(intensity)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
