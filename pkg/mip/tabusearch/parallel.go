package tabusearch

import (
	"sync"

	"github.com/paiban/tabumip/pkg/mip/model"
)

// evaluateBatch 并行评估全部候选移动，§5 规定的静态划分模型：每个 worker
// 拿到候选数组的一段连续、互不重叠的切片，只写自己负责的槽位，批内求值
// 结束前没有任何锁或阻塞点。对应教学代码
// pkg/scheduler/optimizer/parallel.go 里 ParallelEvaluator 的并行求值角色，
// 但按 spec §5 把"channel 分发任务队列"换成"静态连续切片"，因为结果必须
// 与线程数无关（determinism 要求按下标顺序读取整个数组）。
func evaluateBatch(m *model.Model, moves []*model.Move, workers int) []model.SolutionScore {
	scores := make([]model.SolutionScore, len(moves))
	if len(moves) == 0 {
		return scores
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(moves) {
		workers = len(moves)
	}

	chunk := (len(moves) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= len(moves) {
			break
		}
		end := start + chunk
		if end > len(moves) {
			end = len(moves)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				scores[i] = m.Evaluate(moves[i])
			}
		}(start, end)
	}
	wg.Wait()

	return scores
}
