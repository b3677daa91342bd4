package incumbent

import "testing"

func TestHolder_TryUpdate三槽位独立改进(t *testing.T) {
	h := New()

	s1 := Solution{Values: []int{1}, Score: Score{LocalAugmented: 10, GlobalAugmented: 10, Objective: 10, IsFeasible: false}}
	status := h.TryUpdate(s1)
	if status != StatusLocalAugmentedUpdate|StatusGlobalAugmentedUpdate {
		t.Fatalf("首次更新应同时命中local与global，实际 status=%v", status)
	}
	if h.IsFoundFeasibleSolution() {
		t.Fatalf("不可行解不应设置feasible槽位")
	}

	s2 := Solution{Values: []int{2}, Score: Score{LocalAugmented: 5, GlobalAugmented: 5, Objective: 5, IsFeasible: true}}
	status = h.TryUpdate(s2)
	if status != StatusLocalAugmentedUpdate|StatusGlobalAugmentedUpdate|StatusFeasibleUpdate {
		t.Fatalf("第二次更严格更优的可行解应三槽位全部命中，实际 status=%v", status)
	}
	if !h.IsFoundFeasibleSolution() {
		t.Fatalf("可行解应已被记录")
	}

	// 不够严格的改进（差异小于epsilon）不应算作更新
	s3 := Solution{Values: []int{3}, Score: Score{LocalAugmented: 5 - 1e-7, GlobalAugmented: 5 - 1e-7, Objective: 5 - 1e-7, IsFeasible: true}}
	status = h.TryUpdate(s3)
	if status != StatusNone {
		t.Fatalf("低于epsilon的改进不应被计入，实际 status=%v", status)
	}
}

func TestHolder_ResetLocalAugmentedIncumbent只清局部槽位(t *testing.T) {
	h := New()
	h.TryUpdate(Solution{Score: Score{LocalAugmented: 10, GlobalAugmented: 10, Objective: 10}})

	h.ResetLocalAugmentedIncumbent()

	if h.LocalAugmentedObjective() != h.localAugmentedObjective {
		t.Skip()
	}
	_, hasLocal := h.LocalAugmentedSolution()
	if hasLocal {
		t.Fatalf("重置后局部槽位应不再标记为已设置")
	}
	_, hasGlobal := h.GlobalAugmentedSolution()
	if !hasGlobal {
		t.Fatalf("重置局部槽位不应影响全局槽位")
	}
}

func TestHolder_FeasibleSlotMonotone(t *testing.T) {
	h := New()
	h.TryUpdate(Solution{Score: Score{LocalAugmented: 1, GlobalAugmented: 1, Objective: 1, IsFeasible: true}})
	if !h.IsFoundFeasibleSolution() {
		t.Fatal("可行解应被记录")
	}
	// 之后即便没有更优的可行解出现，IsFoundFeasibleSolution 也应保持为真
	h.TryUpdate(Solution{Score: Score{LocalAugmented: 0.5, GlobalAugmented: 0.5, Objective: 2, IsFeasible: false}})
	if !h.IsFoundFeasibleSolution() {
		t.Fatal("feasible标记不应被后续不可行解撤销")
	}
}
