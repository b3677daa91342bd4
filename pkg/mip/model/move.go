package model

// MoveSense 标记移动的来源/类别，对应 §3 的 tagged-variant 设计
type MoveSense int

const (
	// MoveBinaryFlip 单一二元变量翻转
	MoveBinaryFlip MoveSense = iota
	// MoveIntegerStep 单一一般整数变量 ±1
	MoveIntegerStep
	// MoveSelection 选择组交换
	MoveSelection
	// MoveAggregation 聚合特殊移动
	MoveAggregation
	// MovePrecedence 前驱特殊移动
	MovePrecedence
	// MoveVariableBound 变量界特殊移动
	MoveVariableBound
	// MoveChain 由搜索过程中动态发现的链式移动
	MoveChain
	// MoveTwoFlip 用户提供的二变量同时翻转
	MoveTwoFlip
	// MoveUser 用户自定义移动
	MoveUser
)

func (s MoveSense) String() string {
	switch s {
	case MoveBinaryFlip:
		return "binary_flip"
	case MoveIntegerStep:
		return "integer_step"
	case MoveSelection:
		return "selection"
	case MoveAggregation:
		return "aggregation"
	case MovePrecedence:
		return "precedence"
	case MoveVariableBound:
		return "variable_bound"
	case MoveChain:
		return "chain"
	case MoveTwoFlip:
		return "two_flip"
	default:
		return "user"
	}
}

// Alteration 一次 (变量, 新值) 赋值
type Alteration struct {
	VariableID int
	NewValue   int
}

// Move 候选移动：一组变量赋值，连同其分类、涉及的约束与标志位。
// 不变式：对 Model 应用 Move 只会改变 Alterations 列出的变量，且是原子的。
type Move struct {
	Alterations         []Alteration
	Sense               MoveSense
	TouchedConstraints  []int
	IsSpecial           bool
	IsAvailable         bool // 某些特殊移动每次内循环只能触发一次
	SpecialIndex        int  // IsSpecial 时，在其所属 pairs 切片中的下标，供 once-only 记账
	OverlapRate         float64 // 仅链式移动有意义
	IsAspirated         bool    // 被选中时若因愿望准则越过禁忌，标记之
}

// IsCompatibleForChain 判断 previous 与 current 是否可以被拼接为链式移动。
// 按 DESIGN.md 对"更具表达力变体"的裁决：允许 binary/chain/two-flip 相互拼接。
func IsCompatibleForChain(previous, current *Move) bool {
	if previous == nil || current == nil {
		return false
	}
	okSense := func(s MoveSense) bool {
		return s == MoveBinaryFlip || s == MoveChain || s == MoveTwoFlip
	}
	if !okSense(previous.Sense) || !okSense(current.Sense) {
		return false
	}
	// 两个单变量二元翻转必须作用在不同变量上才值得拼接
	if previous.Sense == MoveBinaryFlip && current.Sense == MoveBinaryFlip {
		return previous.Alterations[0].VariableID != current.Alterations[0].VariableID
	}
	return true
}

// ConcatenateChain 把两个移动拼接成一个候选链式移动（未做重叠率/去重校验）
func ConcatenateChain(previous, current *Move) *Move {
	alterations := make([]Alteration, 0, len(previous.Alterations)+len(current.Alterations))
	alterations = append(alterations, previous.Alterations...)
	alterations = append(alterations, current.Alterations...)

	touched := mergeUniqueInts(previous.TouchedConstraints, current.TouchedConstraints)

	return &Move{
		Alterations:        alterations,
		Sense:              MoveChain,
		TouchedConstraints: touched,
		IsSpecial:          true,
		IsAvailable:        true,
	}
}

// Complement 返回一个链式移动的"分量取反"互补版本：每个变量的新值替换为
// 其旧值方向相反的移动，通过传入当前取值求出
func (m *Move) Complement(currentValues []int) *Move {
	alterations := make([]Alteration, len(m.Alterations))
	for i, a := range m.Alterations {
		old := currentValues[a.VariableID]
		delta := a.NewValue - old
		alterations[i] = Alteration{VariableID: a.VariableID, NewValue: old - delta}
	}
	return &Move{
		Alterations:        alterations,
		Sense:              MoveChain,
		TouchedConstraints: append([]int(nil), m.TouchedConstraints...),
		IsSpecial:          true,
		IsAvailable:        true,
	}
}

// HasDuplicateVariables 链式移动不允许对同一个变量出现两次赋值
func (m *Move) HasDuplicateVariables() bool {
	seen := make(map[int]struct{}, len(m.Alterations))
	for _, a := range m.Alterations {
		if _, ok := seen[a.VariableID]; ok {
			return true
		}
		seen[a.VariableID] = struct{}{}
	}
	return false
}

func mergeUniqueInts(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, s := range [][]int{a, b} {
		for _, v := range s {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
