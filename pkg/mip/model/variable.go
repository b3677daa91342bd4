// Package model 定义混合整数规划(MIP)求解器的核心数据模型：
// Variable、Expression、Constraint、Objective、Move、SolutionScore 与 Model。
//
// 与排班领域模型不同，这里的变量/表达式/约束采用"arena + 稳定下标"的方式
// 组织：Model 拥有所有 Variable/Expression/Constraint 的连续切片，跨对象的
// 引用一律使用整数下标而非指针，便于并行评估阶段的只读共享。
package model

import "math"

// Sense 描述变量的语义分类
type Sense int

const (
	// SenseGeneral 一般整数变量
	SenseGeneral Sense = iota
	// SenseBinary 0/1 二元变量
	SenseBinary
	// SenseSelectionMember 选择组成员（属于和为1的二元变量集合）
	SenseSelectionMember
)

func (s Sense) String() string {
	switch s {
	case SenseBinary:
		return "binary"
	case SenseSelectionMember:
		return "selection_member"
	default:
		return "general"
	}
}

// LargeBound 用作无界变量的哨兵上/下界
const LargeBound = 1 << 30

// Variable 一个整数决策变量，以稳定的整数下标标识
type Variable struct {
	ID    int
	Name  string
	Lower int
	Upper int
	Value int
	Fixed bool
	Sense Sense

	// IsObjectiveImprovable / IsFeasibilityImprovable 是仅在筛选阶段使用的
	// scratch 标记，在每次筛选前由 Model 针对受上次移动影响的变量刷新。
	IsObjectiveImprovable   bool
	IsFeasibilityImprovable bool
}

// NewVariable 创建一个变量，越界的初始值会被夹紧到 [lower, upper]
func NewVariable(id int, name string, lower, upper, initial int, sense Sense) *Variable {
	if lower > upper {
		lower, upper = upper, lower
	}
	v := &Variable{
		ID:    id,
		Name:  name,
		Lower: lower,
		Upper: upper,
		Sense: sense,
	}
	v.Value = clampInt(initial, lower, upper)
	return v
}

func clampInt(v, lower, upper int) int {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}

// IsMutable 固定变量不参与任何移动生成
func (v *Variable) IsMutable() bool {
	return !v.Fixed && v.Lower < v.Upper
}

// Range 返回变量的可行宽度（Upper-Lower），用于初始禁忌期限的夹紧上界
func (v *Variable) Range() int {
	return v.Upper - v.Lower
}

// assertInBounds 对应 spec 的变量不变式：lower <= value <= upper
func (v *Variable) assertInBounds() {
	if v.Value < v.Lower || v.Value > v.Upper {
		panic("model: variable value out of bounds, invariant violated")
	}
}

// isInvalidFloat 把潜在的 NaN/Inf 浮点值识别出来，供调用方触发 NumericError
func isInvalidFloat(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}
