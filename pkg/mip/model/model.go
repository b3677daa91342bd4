package model

import "fmt"

// SelectionGroup 一组二元变量，其和必须恒等于1（one-hot 约束）
type SelectionGroup struct {
	VariableIDs []int
	// HolderIndex 指向 VariableIDs 中当前取值为1的成员下标，-1 表示未设置
	HolderIndex int
}

// Model 拥有全部 Variable/Expression/Constraint，并提供增量与完整求值。
// 跨对象引用统一使用整数下标（arena + stable index），便于并行评估阶段
// 的只读共享：评估过程中 Model 本身不被修改，Update 只在选定移动后
// 单线程调用。
type Model struct {
	Variables   []*Variable
	Expressions []*Expression
	Constraints []*Constraint
	Objective   Objective

	SelectionGroups []*SelectionGroup
	// TwoFlipPairs 用户提供的二变量同时翻转候选对
	TwoFlipPairs [][2]int

	// variableExpressions[v] 列出所有包含变量 v 的表达式下标，
	// 用于快速增量求值：只需遍历被改动变量所涉及的表达式。
	variableExpressions [][]int
	// expressionConstraints[e] 列出以表达式 e 为基础的约束下标（目标函数不在其中）
	expressionConstraints [][]int
}

// NewModel 创建一个空模型
func NewModel() *Model {
	return &Model{}
}

// AddVariable 注册一个变量，返回其稳定 ID（即切片下标）
func (m *Model) AddVariable(name string, lower, upper, initial int, sense Sense) *Variable {
	id := len(m.Variables)
	v := NewVariable(id, name, lower, upper, initial, sense)
	m.Variables = append(m.Variables, v)
	m.variableExpressions = append(m.variableExpressions, nil)
	return v
}

// AddExpression 注册一个表达式，返回其稳定 ID
func (m *Model) AddExpression(name string, constant float64) *Expression {
	id := len(m.Expressions)
	e := NewExpression(id, name, constant)
	m.Expressions = append(m.Expressions, e)
	m.expressionConstraints = append(m.expressionConstraints, nil)
	return e
}

// SetExpressionCoefficient 设置表达式系数并维护 variable->expression 反向索引
func (m *Model) SetExpressionCoefficient(expressionID, variableID int, coefficient float64) {
	e := m.Expressions[expressionID]
	_, already := e.Coefficient[variableID]
	e.SetCoefficient(variableID, coefficient)
	if coefficient == 0 || already {
		return
	}
	m.variableExpressions[variableID] = append(m.variableExpressions[variableID], expressionID)
}

// AddConstraint 注册一个约束
func (m *Model) AddConstraint(name string, expressionID int, sense ConstraintSense, initialPenalty float64) *Constraint {
	id := len(m.Constraints)
	c := NewConstraint(id, name, expressionID, sense, initialPenalty)
	m.Constraints = append(m.Constraints, c)
	m.expressionConstraints[expressionID] = append(m.expressionConstraints[expressionID], id)
	return c
}

// SetObjective 设置目标函数
func (m *Model) SetObjective(expressionID int, sense ObjectiveSense) {
	m.Objective = Objective{ExpressionID: expressionID, Sense: sense}
}

// AddSelectionGroup 注册一个选择组，HolderIndex 按当前取值推断
func (m *Model) AddSelectionGroup(variableIDs []int) *SelectionGroup {
	holder := -1
	for i, id := range variableIDs {
		if m.Variables[id].Value == 1 {
			holder = i
			break
		}
	}
	g := &SelectionGroup{VariableIDs: variableIDs, HolderIndex: holder}
	m.SelectionGroups = append(m.SelectionGroups, g)
	return g
}

// NumMutableVariables 统计非固定且存在可行宽度的变量数，用于禁忌期限夹紧
func (m *Model) NumMutableVariables() int {
	count := 0
	for _, v := range m.Variables {
		if v.IsMutable() {
			count++
		}
	}
	return count
}

// Values 返回所有变量当前取值的快照切片（下标即变量ID）
func (m *Model) Values() []int {
	values := make([]int, len(m.Variables))
	for i, v := range m.Variables {
		values[i] = v.Value
	}
	return values
}

// RefreshAll 完整重算所有表达式与约束（full evaluation path），用于初始状态
// 与一致性审计
func (m *Model) RefreshAll() {
	values := m.Values()
	for _, e := range m.Expressions {
		e.Refresh(values)
	}
	for _, c := range m.Constraints {
		c.Refresh(m.Expressions[c.ExpressionID].Value)
	}
}

// EvaluateFull 不依赖增量缓存，从零开始对给定取值求一次完整 SolutionScore，
// 用于初始状态、一致性审计，或 Model 拒绝快速求值的场合。
func (m *Model) EvaluateFull(values []int) SolutionScore {
	sign := m.Objective.Sense.Sign()
	objective := m.Expressions[m.Objective.ExpressionID].EvaluateFull(values)

	var totalViolation, localSum, globalSum, currentTotalViolation float64
	feasible := true
	for _, c := range m.Constraints {
		exprValue := m.Expressions[c.ExpressionID].EvaluateFull(values)
		violation := ComputeViolation(c.Sense, exprValue)
		totalViolation += violation
		localSum += c.LocalPenalty * violation
		globalSum += c.GlobalPenalty * violation
		currentTotalViolation += c.Violation
		if violation >= Epsilon {
			feasible = false
		}
	}

	currentObjective := m.Expressions[m.Objective.ExpressionID].Value
	objectiveImprovement := sign * (currentObjective - objective)

	return SolutionScore{
		Objective:               objective,
		ObjectiveImprovement:    objectiveImprovement,
		TotalViolation:          totalViolation,
		LocalPenaltySum:         localSum,
		GlobalPenaltySum:        globalSum,
		LocalAugmented:          sign*objective + localSum,
		GlobalAugmented:         sign*objective + globalSum,
		IsFeasible:              feasible,
		IsObjectiveImprovable:   objectiveImprovement > 0,
		IsFeasibilityImprovable: totalViolation < currentTotalViolation-Epsilon,
	}
}

// Evaluate 对一个 Move 做增量（fast）求值，不修改 Model 本身。对每个被改动的
// 变量，只遍历它出现过的表达式，把 coefficient*delta 累加进一份局部副本中；
// 违反量与惩罚项随后对全部约束逐一累加。
func (m *Model) Evaluate(move *Move) SolutionScore {
	// deltaByExpression 记录本次试探性移动对每个受影响表达式值的净变化
	deltaByExpression := make(map[int]float64, len(move.Alterations)*2)
	touchedConstraints := make(map[int]struct{})

	for _, alt := range move.Alterations {
		variable := m.Variables[alt.VariableID]
		delta := alt.NewValue - variable.Value
		if delta == 0 {
			continue
		}
		for _, exprID := range m.variableExpressions[alt.VariableID] {
			coeff := m.Expressions[exprID].Coefficient[alt.VariableID]
			deltaByExpression[exprID] += coeff * float64(delta)
			for _, cID := range m.expressionConstraints[exprID] {
				touchedConstraints[cID] = struct{}{}
			}
		}
	}

	sign := m.Objective.Sense.Sign()
	objectiveDelta := deltaByExpression[m.Objective.ExpressionID]
	objective := m.Expressions[m.Objective.ExpressionID].Value + objectiveDelta

	var totalViolation, localSum, globalSum, currentTotalViolation float64
	feasible := true
	for _, c := range m.Constraints {
		exprValue := m.Expressions[c.ExpressionID].Value
		if d, ok := deltaByExpression[c.ExpressionID]; ok {
			exprValue += d
		}
		violation := ComputeViolation(c.Sense, exprValue)
		totalViolation += violation
		localSum += c.LocalPenalty * violation
		globalSum += c.GlobalPenalty * violation
		currentTotalViolation += c.Violation
		if violation >= Epsilon {
			feasible = false
		}
	}

	currentObjective := m.Expressions[m.Objective.ExpressionID].Value
	objectiveImprovement := sign * (currentObjective - objective)
	score := SolutionScore{
		Objective:               objective,
		ObjectiveImprovement:    objectiveImprovement,
		TotalViolation:          totalViolation,
		LocalPenaltySum:         localSum,
		GlobalPenaltySum:        globalSum,
		LocalAugmented:          sign*objective + localSum,
		GlobalAugmented:         sign*objective + globalSum,
		IsFeasible:              feasible,
		IsObjectiveImprovable:   objectiveImprovement > 0,
		IsFeasibilityImprovable: totalViolation < currentTotalViolation-Epsilon,
	}
	return score
}

// Update 应用一个 Move：永久改变变量取值，并把变化传播到表达式与约束。
// 调用方需保证这是单线程调用（§5：Model 的变更只在批量并行评估结束后发生）。
func (m *Model) Update(move *Move) {
	touchedExpressions := make(map[int]struct{})

	for _, alt := range move.Alterations {
		variable := m.Variables[alt.VariableID]
		if variable.Fixed {
			panic(fmt.Sprintf("model: attempted to update fixed variable %d", variable.ID))
		}
		delta := alt.NewValue - variable.Value
		if delta == 0 {
			continue
		}
		variable.Value = alt.NewValue
		variable.assertInBounds()

		for _, exprID := range m.variableExpressions[alt.VariableID] {
			m.Expressions[exprID].ApplyDelta(alt.VariableID, delta)
			touchedExpressions[exprID] = struct{}{}
		}
	}

	touchedConstraints := make(map[int]struct{})
	for exprID := range touchedExpressions {
		if isInvalidFloat(m.Expressions[exprID].Value) {
			panic("model: numeric error, expression value is NaN/Inf")
		}
		for _, cID := range m.expressionConstraints[exprID] {
			touchedConstraints[cID] = struct{}{}
		}
	}
	for cID := range touchedConstraints {
		c := m.Constraints[cID]
		c.Refresh(m.Expressions[c.ExpressionID].Value)
	}

	m.updateSelectionHolders(move)
}

// updateSelectionHolders 维护选择组的当前持有者下标（用于邻域生成快速定位）
func (m *Model) updateSelectionHolders(move *Move) {
	changed := make(map[int]struct{}, len(move.Alterations))
	for _, alt := range move.Alterations {
		changed[alt.VariableID] = struct{}{}
	}
	for _, g := range m.SelectionGroups {
		for i, vID := range g.VariableIDs {
			if _, ok := changed[vID]; !ok {
				continue
			}
			if m.Variables[vID].Value == 1 {
				g.HolderIndex = i
			} else if g.HolderIndex == i {
				g.HolderIndex = -1
			}
		}
	}
}

// RefreshImprovabilityFlags 只为受上一次应用的移动影响的变量刷新
// is_objective_improvable / is_feasibility_improvable 标记（§4.1）。
// candidateMoves 是邻域生成的试探移动；不涉及 affectedVariables 的候选
// 在函数内被跳过。
func (m *Model) RefreshImprovabilityFlags(affectedVariables []int, candidateMoves []*Move) {
	sign := m.Objective.Sense.Sign()
	affected := make(map[int]struct{}, len(affectedVariables))
	for _, id := range affectedVariables {
		affected[id] = struct{}{}
		v := m.Variables[id]
		v.IsObjectiveImprovable = false
		v.IsFeasibilityImprovable = false
	}

	currentObjective := m.Expressions[m.Objective.ExpressionID].Value

	for _, mv := range candidateMoves {
		touchesAffected := false
		for _, a := range mv.Alterations {
			if _, ok := affected[a.VariableID]; ok {
				touchesAffected = true
				break
			}
		}
		if !touchesAffected {
			continue
		}
		score := m.Evaluate(mv)
		objectiveImproves := sign*(currentObjective-score.Objective) > 0
		feasibilityImproves := m.movesReduceAnyViolation(mv, score)

		for _, a := range mv.Alterations {
			if _, ok := affected[a.VariableID]; !ok {
				continue
			}
			v := m.Variables[a.VariableID]
			if objectiveImproves {
				v.IsObjectiveImprovable = true
			}
			if feasibilityImproves {
				v.IsFeasibilityImprovable = true
			}
		}
	}
}

// movesReduceAnyViolation 经 variable->expression->constraint 索引找出移动
// 改动的变量所涉及的约束
func (m *Model) movesReduceAnyViolation(mv *Move, score SolutionScore) bool {
	for _, a := range mv.Alterations {
		for _, exprID := range m.variableExpressions[a.VariableID] {
			for _, cID := range m.expressionConstraints[exprID] {
				c := m.Constraints[cID]
				if c.Violation >= Epsilon && score.TotalViolation < c.Violation {
					return true
				}
			}
		}
	}
	return false
}
