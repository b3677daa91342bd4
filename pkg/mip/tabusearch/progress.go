package tabusearch

// ProgressRow 一行详细模式下的进度表，对应 SUPPLEMENTED FEATURES §2：
// 源码 cppmh/solver/local_search/local_search_print.h 与
// printemps/solver/tabu_search/tabu_search_print.h 的逐迭代打印表。
type ProgressRow struct {
	Iteration int

	NeighborhoodAll         int
	NeighborhoodFeasible    int
	NeighborhoodPermissible int
	NeighborhoodImprovable  int

	CurrentAugmentedObjective float64
	CurrentPenalty            float64

	IncumbentAugmentedObjective float64
	IncumbentFeasibleObjective  float64

	// UpdateMark 是 "!" (local), "#" (global), "*" (feasible) 的组合，
	// 为空字符串表示本次迭代未命中任何 incumbent 槽位。
	UpdateMark string
}

// updateMark 把 incumbent 更新的位掩码渲染成 §6 指定的标记字符
func updateMark(hasLocal, hasGlobal, hasFeasible bool) string {
	mark := ""
	if hasLocal {
		mark += "!"
	}
	if hasGlobal {
		mark += "#"
	}
	if hasFeasible {
		mark += "*"
	}
	return mark
}
