package memory

import "testing"

func TestMemory_IsPermissible(t *testing.T) {
	m := New(4)
	// 变量0最近被更新过(iteration=10)，变量1很久未更新(哨兵值)
	m.lastUpdateIteration[0] = 10
	m.lastUpdateIteration[1] = InitialLastUpdateIteration

	tests := []struct {
		name       string
		mode       TabuMode
		vars       []int
		iteration  int
		tenure     int
		expectPerm bool
	}{
		{"All模式_至少一个老化即允许", TabuModeAll, []int{0, 1}, 15, 5, true},
		{"All模式_全部仍在禁忌期则不允许", TabuModeAll, []int{0}, 12, 5, false},
		{"Any模式_全部老化才允许", TabuModeAny, []int{0, 1}, 12, 5, false},
		{"Any模式_全部老化时允许", TabuModeAny, []int{1}, 15, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.IsPermissible(tt.vars, tt.iteration, tt.tenure, tt.mode)
			if got != tt.expectPerm {
				t.Errorf("IsPermissible() = %v, expected %v", got, tt.expectPerm)
			}
		})
	}
}

func TestMemory_PrimalIntensity(t *testing.T) {
	m := New(2)
	if m.PrimalIntensity() != 0 {
		t.Fatalf("空记忆的强度应为0")
	}

	m.Update([]Alteration{{VariableID: 0}}, 1, 0, func(int) int { return 0 })
	m.Update([]Alteration{{VariableID: 0}}, 2, 0, func(int) int { return 0 })
	m.Update([]Alteration{{VariableID: 1}}, 3, 0, func(int) int { return 0 })

	// update_count = [2,1], total=3 -> (2/3)^2 + (1/3)^2
	want := (2.0/3.0)*(2.0/3.0) + (1.0/3.0)*(1.0/3.0)
	got := m.PrimalIntensity()
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("PrimalIntensity() = %v, expected %v", got, want)
	}
}

func TestMemory_FrequencyPenalty在迭代0恒为零(t *testing.T) {
	m := New(2)
	m.Update([]Alteration{{VariableID: 0}}, 0, 0, func(int) int { return 0 })
	if p := m.FrequencyPenalty([]int{0}, 0, 1e-5); p != 0 {
		t.Errorf("迭代0的频率惩罚应为0，实际为 %v", p)
	}
}
