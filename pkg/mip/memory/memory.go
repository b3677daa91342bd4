// Package memory 实现禁忌搜索的短期与长期记忆：每个变量上次被改动的迭代号、
// 更新计数，以及由此派生的"原始强度"(primal intensity)标量。
//
// 直接对应 original_source 中 cppmh/solver/memory.h 的数组布局：按变量下标
// 组织的定长切片，而不是 map，换取批量并行评估阶段的无锁只读访问。
package memory

// InitialLastUpdateIteration 短期记忆的哨兵初值：足够小，使得
// `current_iteration - last_update` 在搜索开始阶段必然超过任何禁忌期限。
const InitialLastUpdateIteration = -1000

// TabuMode 禁忌可行性判定模式
type TabuMode int

const (
	// TabuModeAll 只要有一个改动变量已经"老化"超出禁忌期限，移动即被允许
	TabuModeAll TabuMode = iota
	// TabuModeAny 必须所有改动变量都已老化超出禁忌期限，移动才被允许
	TabuModeAny
)

// Memory 按变量下标组织的短期/长期搜索历史
type Memory struct {
	lastUpdateIteration []int
	updateCount         []int64
	totalUpdateCount    int64
}

// New 为给定数量的变量创建内存，短期记忆以哨兵值初始化
func New(numVariables int) *Memory {
	m := &Memory{
		lastUpdateIteration: make([]int, numVariables),
		updateCount:         make([]int64, numVariables),
	}
	for i := range m.lastUpdateIteration {
		m.lastUpdateIteration[i] = InitialLastUpdateIteration
	}
	return m
}

// Reset 把所有数组恢复到初始状态（用于新一轮完整求解，而非 controller 的
// inner-run 之间 —— 那些场景只重置 incumbent，不重置 Memory）
func (m *Memory) Reset() {
	for i := range m.lastUpdateIteration {
		m.lastUpdateIteration[i] = InitialLastUpdateIteration
		m.updateCount[i] = 0
	}
	m.totalUpdateCount = 0
}

// LastUpdateIteration 变量上次被改动的迭代号
func (m *Memory) LastUpdateIteration(variableID int) int {
	return m.lastUpdateIteration[variableID]
}

// UpdateCount 变量被改动的累计次数
func (m *Memory) UpdateCount(variableID int) int64 {
	return m.updateCount[variableID]
}

// TotalUpdateCount 所有变量的累计改动次数之和
func (m *Memory) TotalUpdateCount() int64 {
	return m.totalUpdateCount
}

// Alteration 与 model.Alteration 解耦的最小接口，避免 memory 包依赖 model 包
type Alteration struct {
	VariableID int
}

// Update 在每次移动被接受后调用：为每个改动变量设置
// `last_update_iteration = iteration + U[-randomWidth, randomWidth]`（用随机
// 抖动打破并列周期），并递增其 update_count 与全局 total_update_count。
func (m *Memory) Update(alterations []Alteration, iteration int, randomWidth int, intn func(n int) int) {
	for _, a := range alterations {
		jitter := 0
		if randomWidth > 0 {
			jitter = intn(2*randomWidth+1) - randomWidth
		}
		m.lastUpdateIteration[a.VariableID] = iteration + jitter
		m.updateCount[a.VariableID]++
		m.totalUpdateCount++
	}
}

// IsPermissible 禁忌可行性判定，§4.3：
//   - All 模式：至少一个改动变量的 iteration-last >= tenure 时允许
//   - Any 模式：所有改动变量的 iteration-last >= tenure 时才允许
//
// 按 DESIGN.md 对 open-question #2 的裁决，严格遵循 original_source 中
// tabu_search_move_score.h 读到的比较方向，而不是变量命名给人的印象。
func (m *Memory) IsPermissible(variableIDs []int, iteration int, tabuTenure int, mode TabuMode) bool {
	switch mode {
	case TabuModeAll:
		for _, id := range variableIDs {
			if iteration-m.lastUpdateIteration[id] >= tabuTenure {
				return true
			}
		}
		return false
	case TabuModeAny:
		for _, id := range variableIDs {
			if iteration-m.lastUpdateIteration[id] < tabuTenure {
				return false
			}
		}
		return true
	default:
		panic("memory: unknown tabu mode, invariant violated")
	}
}

// FrequencyPenalty §4.3："(sum update_count[altered]) * coefficient / total_update_count"，
// 在 iteration 0 恒为零。
func (m *Memory) FrequencyPenalty(variableIDs []int, iteration int, coefficient float64) float64 {
	if iteration == 0 || m.totalUpdateCount == 0 {
		return 0
	}
	var sum int64
	for _, id := range variableIDs {
		sum += m.updateCount[id]
	}
	return float64(sum) * coefficient / float64(m.totalUpdateCount)
}

// PrimalIntensity 派生标量 Σ(update_count/total_update_count)²，
// 在 original_source 中命名为 bias()；强度越高说明搜索在反复访问相同变量，
// controller 应据此放宽禁忌期限。
func (m *Memory) PrimalIntensity() float64 {
	if m.totalUpdateCount == 0 {
		return 0
	}
	var sum float64
	total := float64(m.totalUpdateCount)
	for _, c := range m.updateCount {
		if c == 0 {
			continue
		}
		ratio := float64(c) / total
		sum += ratio * ratio
	}
	return sum
}
