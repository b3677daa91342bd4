package model

import "testing"

func buildSingleVariableModel() (*Model, *Variable) {
	m := NewModel()
	x := m.AddVariable("x1", 0, 1, 0, SenseBinary)
	obj := m.AddExpression("objective", 0)
	m.SetExpressionCoefficient(obj.ID, x.ID, 1)
	m.SetObjective(obj.ID, Minimize)

	geqExpr := m.AddExpression("x1_geq_1", -1)
	m.SetExpressionCoefficient(geqExpr.ID, x.ID, 1)
	m.AddConstraint("x1_geq_1", geqExpr.ID, SenseGE, 1e6)

	m.RefreshAll()
	return m, x
}

func TestModel_EvaluateFast与Full一致(t *testing.T) {
	m, x := buildSingleVariableModel()

	move := &Move{
		Alterations:        []Alteration{{VariableID: x.ID, NewValue: 1}},
		Sense:               MoveBinaryFlip,
		TouchedConstraints:  []int{0},
	}

	fast := m.Evaluate(move)

	values := m.Values()
	values[x.ID] = 1
	full := m.EvaluateFull(values)

	if diff := fast.Objective - full.Objective; diff > Epsilon || diff < -Epsilon {
		t.Fatalf("objective mismatch: fast=%v full=%v", fast.Objective, full.Objective)
	}
	if diff := fast.TotalViolation - full.TotalViolation; diff > Epsilon || diff < -Epsilon {
		t.Fatalf("violation mismatch: fast=%v full=%v", fast.TotalViolation, full.TotalViolation)
	}
	if fast.IsFeasible != full.IsFeasible {
		t.Fatalf("feasibility mismatch: fast=%v full=%v", fast.IsFeasible, full.IsFeasible)
	}
}

func TestModel_Evaluate填写可改进标志(t *testing.T) {
	m, x := buildSingleVariableModel()

	// x1从0翻到1：目标值从0增大到1（更差），但约束违反度从1降到0（更可行）
	improving := &Move{
		Alterations: []Alteration{{VariableID: x.ID, NewValue: 1}},
		Sense:       MoveBinaryFlip,
	}
	score := m.Evaluate(improving)
	if score.IsObjectiveImprovable {
		t.Fatalf("目标值变差时不应标记为objective improvable")
	}
	if !score.IsFeasibilityImprovable {
		t.Fatalf("违反度降低时应标记为feasibility improvable")
	}

	m.Update(improving)

	// 再翻回0：目标值从1降到0（更优），约束违反度从0升到1（更差）
	worsening := &Move{
		Alterations: []Alteration{{VariableID: x.ID, NewValue: 0}},
		Sense:       MoveBinaryFlip,
	}
	score = m.Evaluate(worsening)
	if !score.IsObjectiveImprovable {
		t.Fatalf("目标值变好时应标记为objective improvable")
	}
	if score.IsFeasibilityImprovable {
		t.Fatalf("违反度升高时不应标记为feasibility improvable")
	}
}

func TestModel_Update只改动列出的变量(t *testing.T) {
	m, x := buildSingleVariableModel()

	move := &Move{
		Alterations:        []Alteration{{VariableID: x.ID, NewValue: 1}},
		Sense:               MoveBinaryFlip,
		TouchedConstraints:  []int{0},
	}
	m.Update(move)

	if x.Value != 1 {
		t.Fatalf("expected x1=1, got %d", x.Value)
	}
	if m.Constraints[0].Violation != 0 {
		t.Fatalf("expected constraint satisfied after update, violation=%v", m.Constraints[0].Violation)
	}
}

func TestConstraint_Violation(t *testing.T) {
	tests := []struct {
		name      string
		sense     ConstraintSense
		exprValue float64
		expected  float64
	}{
		{"小于等于_满足", SenseLE, -2, 0},
		{"小于等于_违反", SenseLE, 3, 3},
		{"大于等于_满足", SenseGE, 2, 0},
		{"大于等于_违反", SenseGE, -4, 4},
		{"等于_违反", SenseEQ, -1.5, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeViolation(tt.sense, tt.exprValue)
			if got != tt.expected {
				t.Errorf("ComputeViolation(%v, %v) = %v, expected %v", tt.sense, tt.exprValue, got, tt.expected)
			}
		})
	}
}

func TestMove_IsCompatibleForChain(t *testing.T) {
	m1 := &Move{Sense: MoveBinaryFlip, Alterations: []Alteration{{VariableID: 1, NewValue: 1}}}
	m2 := &Move{Sense: MoveBinaryFlip, Alterations: []Alteration{{VariableID: 2, NewValue: 1}}}
	m3 := &Move{Sense: MoveBinaryFlip, Alterations: []Alteration{{VariableID: 1, NewValue: 0}}}
	m4 := &Move{Sense: MoveSelection, Alterations: []Alteration{{VariableID: 3, NewValue: 1}}}

	if !IsCompatibleForChain(m1, m2) {
		t.Error("两个不同变量的binary flip应可拼接")
	}
	if IsCompatibleForChain(m1, m3) {
		t.Error("同一变量的两次binary flip不应拼接")
	}
	if IsCompatibleForChain(m1, m4) {
		t.Error("selection移动不应参与链式拼接")
	}
}
