// Package neighborhood 枚举候选移动：单变量翻转/步进、选择组交换、
// 聚合/前驱/变量界特殊移动、用户二翻转对，以及搜索过程中动态发现的链式移动。
//
// 生成器的整体组织方式——每种移动类型一个独立生成函数，按权重随机选择用于
// 抽样——沿用 pkg/scheduler/optimizer/neighbors.go 的 NeighborhoodGenerator
// 结构；这里把"抽样单个邻居"换成"穷举式批量生成"，因为禁忌搜索的每次迭代
// 需要对全体候选评分排序，而不是随机抽一个。
package neighborhood

import (
	"math/rand"
	"sort"

	"github.com/paiban/tabumip/pkg/mip/model"
)

// SpecialKind 标记特殊移动是否仍可使用（某些特殊移动每次内循环只能触发一次）
type SpecialKind int

// Generator 从当前 Model 状态枚举候选移动
type Generator struct {
	m *model.Model

	// chainPool 保存动态发现的链式移动（及其互补版本）
	chainPool []*model.Move

	// usedSpecial 记录哪些 once-only 特殊移动已被使用（按生成顺序索引）
	usedSpecial map[int]bool

	ChainOverlapThreshold float64
	ChainCapacity         int

	// AggregationPairs / PrecedencePairs / VariableBoundPairs 是预先从约束结构
	// 中抽取出的特殊移动候选（两变量对），由 Model 构建阶段的预处理提供。
	AggregationPairs   [][2]int
	PrecedencePairs    [][2]int
	VariableBoundPairs [][2]int
}

// New 创建一个绑定到给定 Model 的邻域生成器
func New(m *model.Model) *Generator {
	return &Generator{
		m:                     m,
		usedSpecial:           make(map[int]bool),
		ChainOverlapThreshold: 0.2,
		ChainCapacity:         100,
	}
}

// AcceptFlags 对应 §4.2 的三个接受标志
type AcceptFlags struct {
	AcceptAll               bool
	AcceptObjectiveImprovable bool
	AcceptFeasibilityImprovable bool
}

// UpdateMoves 生成全部候选移动并按接受标志过滤，返回有序序列。
// 各生成器按固定顺序串行执行，parallel 参数不影响生成过程；结果顺序固定
// （§5："selection 读取整个数组，按下标顺序"）。
func (g *Generator) UpdateMoves(flags AcceptFlags, parallel bool) []*model.Move {
	var moves []*model.Move
	moves = append(moves, g.binaryFlipMoves()...)
	moves = append(moves, g.integerStepMoves()...)
	moves = append(moves, g.selectionMoves()...)
	moves = append(moves, g.specialMoves(g.AggregationPairs, model.MoveAggregation, "aggregation")...)
	moves = append(moves, g.specialMoves(g.PrecedencePairs, model.MovePrecedence, "precedence")...)
	moves = append(moves, g.specialMoves(g.VariableBoundPairs, model.MoveVariableBound, "variable_bound")...)
	moves = append(moves, g.twoFlipMoves()...)
	moves = append(moves, g.chainPool...)

	if flags.AcceptAll {
		return moves
	}
	return g.filterByFlags(moves, flags)
}

// filterByFlags 若 accept_all 为假，移动只有在改动了至少一个按其余两个标志
// 命中的变量时才能存活。
func (g *Generator) filterByFlags(moves []*model.Move, flags AcceptFlags) []*model.Move {
	filtered := moves[:0:0]
	for _, mv := range moves {
		keep := false
		for _, a := range mv.Alterations {
			v := g.m.Variables[a.VariableID]
			if flags.AcceptObjectiveImprovable && v.IsObjectiveImprovable {
				keep = true
				break
			}
			if flags.AcceptFeasibilityImprovable && v.IsFeasibilityImprovable {
				keep = true
				break
			}
		}
		if keep {
			filtered = append(filtered, mv)
		}
	}
	return filtered
}

// binaryFlipMoves 每个可变二元变量的单变量翻转
func (g *Generator) binaryFlipMoves() []*model.Move {
	var moves []*model.Move
	for _, v := range g.m.Variables {
		if v.Sense != model.SenseBinary || !v.IsMutable() {
			continue
		}
		newValue := 1 - v.Value
		moves = append(moves, &model.Move{
			Alterations: []model.Alteration{{VariableID: v.ID, NewValue: newValue}},
			Sense:       model.MoveBinaryFlip,
		})
	}
	return moves
}

// integerStepMoves 每个可变一般整数变量的 ±1（在界内）
func (g *Generator) integerStepMoves() []*model.Move {
	var moves []*model.Move
	for _, v := range g.m.Variables {
		if v.Sense != model.SenseGeneral || !v.IsMutable() {
			continue
		}
		if v.Value+1 <= v.Upper {
			moves = append(moves, &model.Move{
				Alterations: []model.Alteration{{VariableID: v.ID, NewValue: v.Value + 1}},
				Sense:       model.MoveIntegerStep,
			})
		}
		if v.Value-1 >= v.Lower {
			moves = append(moves, &model.Move{
				Alterations: []model.Alteration{{VariableID: v.ID, NewValue: v.Value - 1}},
				Sense:       model.MoveIntegerStep,
			})
		}
	}
	return moves
}

// selectionMoves 选择组内"把1赋给某个非持有者成员，同时把当前持有者置0"
func (g *Generator) selectionMoves() []*model.Move {
	var moves []*model.Move
	for _, group := range g.m.SelectionGroups {
		if group.HolderIndex < 0 {
			continue
		}
		holderID := group.VariableIDs[group.HolderIndex]
		if g.m.Variables[holderID].Fixed {
			continue
		}
		for i, vID := range group.VariableIDs {
			if i == group.HolderIndex {
				continue
			}
			if g.m.Variables[vID].Fixed {
				continue
			}
			moves = append(moves, &model.Move{
				Alterations: []model.Alteration{
					{VariableID: holderID, NewValue: 0},
					{VariableID: vID, NewValue: 1},
				},
				Sense: model.MoveSelection,
			})
		}
	}
	return moves
}

// specialMoves 把预抽取的两变量对转换成特殊移动：翻转每一对中两个二元变量
// （聚合/前驱/变量界关系的具体数值语义由预处理阶段算好，这里只负责枚举与
// once-only 可用性记账）。
func (g *Generator) specialMoves(pairs [][2]int, sense model.MoveSense, tag string) []*model.Move {
	var moves []*model.Move
	for idx, pair := range pairs {
		key := specialKey(sense, idx)
		if g.usedSpecial[key] {
			continue
		}
		a, b := pair[0], pair[1]
		va, vb := g.m.Variables[a], g.m.Variables[b]
		if va.Fixed || vb.Fixed {
			continue
		}
		moves = append(moves, &model.Move{
			Alterations: []model.Alteration{
				{VariableID: a, NewValue: 1 - va.Value},
				{VariableID: b, NewValue: 1 - vb.Value},
			},
			Sense:        sense,
			IsSpecial:    true,
			IsAvailable:  true,
			SpecialIndex: idx,
		})
		_ = tag
	}
	return moves
}

func specialKey(sense model.MoveSense, idx int) int {
	return int(sense)*1_000_000 + idx
}

// MarkSpecialUsed 标记某个 once-only 特殊移动已被应用，此后不再生成
func (g *Generator) MarkSpecialUsed(sense model.MoveSense, idx int) {
	g.usedSpecial[specialKey(sense, idx)] = true
}

// twoFlipMoves 用户提供的二变量对，同时翻转
func (g *Generator) twoFlipMoves() []*model.Move {
	var moves []*model.Move
	for _, pair := range g.m.TwoFlipPairs {
		a, b := g.m.Variables[pair[0]], g.m.Variables[pair[1]]
		if a.Fixed || b.Fixed {
			continue
		}
		moves = append(moves, &model.Move{
			Alterations: []model.Alteration{
				{VariableID: a.ID, NewValue: 1 - a.Value},
				{VariableID: b.ID, NewValue: 1 - b.Value},
			},
			Sense: model.MoveTwoFlip,
		})
	}
	return moves
}

// RegisterChain 尝试把 previous 与 current 拼接成链式移动；若通过重叠率与
// 去重校验，按双向方式（自身与其分量互补版本）注册进链池。
// 对应 SUPPLEMENTED FEATURES §4 与 spec §4.2 的链式移动处理。
func (g *Generator) RegisterChain(previous, current *model.Move) bool {
	if !model.IsCompatibleForChain(previous, current) {
		return false
	}
	chain := model.ConcatenateChain(previous, current)
	if chain.HasDuplicateVariables() {
		return false
	}
	chain.OverlapRate = overlapRate(previous, current)
	if chain.OverlapRate <= g.ChainOverlapThreshold {
		return false
	}

	complement := chain.Complement(g.m.Values())
	complement.OverlapRate = chain.OverlapRate

	g.chainPool = append(g.chainPool, chain, complement)
	return true
}

// overlapRate 衡量 previous 与 current 涉及约束集合的重叠程度，
// 重叠率不高于 ChainOverlapThreshold 的拼接不会被注册。
func overlapRate(previous, current *model.Move) float64 {
	set := make(map[int]struct{}, len(previous.TouchedConstraints))
	for _, c := range previous.TouchedConstraints {
		set[c] = struct{}{}
	}
	if len(set) == 0 || len(current.TouchedConstraints) == 0 {
		return 0
	}
	overlap := 0
	for _, c := range current.TouchedConstraints {
		if _, ok := set[c]; ok {
			overlap++
		}
	}
	denom := len(set) + len(current.TouchedConstraints) - overlap
	if denom == 0 {
		return 0
	}
	return float64(overlap) / float64(denom)
}

// ShuffleMoves 对移动指针数组做一次均匀的原地随机排列（§4.2 shuffle_moves）
func ShuffleMoves(moves []*model.Move, rng *rand.Rand) {
	rng.Shuffle(len(moves), func(i, j int) {
		moves[i], moves[j] = moves[j], moves[i]
	})
}

// TruncateByPreserveRate 按 move_preserve_rate 截断数组前缀
func TruncateByPreserveRate(moves []*model.Move, preserveRate float64) []*model.Move {
	if preserveRate <= 0 || preserveRate >= 1 {
		return moves
	}
	keep := int(float64(len(moves)) * preserveRate)
	if keep < 1 {
		keep = 1
	}
	if keep > len(moves) {
		keep = len(moves)
	}
	return moves[:keep]
}

// SortAndDeduplicateChainPool 按重叠率降序排序并去除重复的链（§4.6 #11）
func (g *Generator) SortAndDeduplicateChainPool() {
	sort.SliceStable(g.chainPool, func(i, j int) bool {
		return g.chainPool[i].OverlapRate > g.chainPool[j].OverlapRate
	})

	seen := make(map[string]struct{}, len(g.chainPool))
	deduped := g.chainPool[:0:0]
	for _, mv := range g.chainPool {
		key := chainKey(mv)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, mv)
	}
	g.chainPool = deduped
}

func chainKey(mv *model.Move) string {
	b := make([]byte, 0, len(mv.Alterations)*8)
	for _, a := range mv.Alterations {
		b = append(b, byte(a.VariableID), byte(a.VariableID>>8), byte(a.NewValue))
	}
	return string(b)
}

// ClearChainPool 清空链池（全局增广改进时调用）
func (g *Generator) ClearChainPool() {
	g.chainPool = g.chainPool[:0]
}

// ReduceChainPool 把链池裁剪到容量上限：dropHighestOverlap 为真时丢弃重叠率
// 最高的条目（假定已按降序排序），否则先打乱再截断。
func (g *Generator) ReduceChainPool(rng *rand.Rand, dropHighestOverlap bool) {
	if len(g.chainPool) <= g.ChainCapacity {
		return
	}
	if dropHighestOverlap {
		g.chainPool = g.chainPool[len(g.chainPool)-g.ChainCapacity:]
		return
	}
	ShuffleMoves(g.chainPool, rng)
	g.chainPool = g.chainPool[:g.ChainCapacity]
}

// ChainPoolSize 当前链池大小，供进度表/测试观测
func (g *Generator) ChainPoolSize() int {
	return len(g.chainPool)
}

// ChainPool 只读访问链池内容
func (g *Generator) ChainPool() []*model.Move {
	return g.chainPool
}
