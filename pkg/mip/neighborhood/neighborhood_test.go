package neighborhood

import (
	"math/rand"
	"testing"

	"github.com/paiban/tabumip/pkg/mip/model"
)

func buildSelectionModel() *model.Model {
	m := model.NewModel()
	ids := make([]int, 4)
	for i := 0; i < 4; i++ {
		ids[i] = m.AddVariable("x", 0, 1, 0, model.SenseSelectionMember).ID
	}
	m.Variables[0].Value = 1
	m.AddSelectionGroup(ids)
	obj := m.AddExpression("obj", 0)
	for _, id := range ids {
		m.SetExpressionCoefficient(obj.ID, id, 1)
	}
	m.SetObjective(obj.ID, model.Minimize)
	m.RefreshAll()
	return m
}

func TestGenerator_SelectionMoves(t *testing.T) {
	m := buildSelectionModel()
	g := New(m)

	moves := g.UpdateMoves(AcceptFlags{AcceptAll: true}, false)

	found := 0
	for _, mv := range moves {
		if mv.Sense == model.MoveSelection {
			found++
			if len(mv.Alterations) != 2 {
				t.Fatalf("selection移动应恰好改动两个变量，实际 %d", len(mv.Alterations))
			}
		}
	}
	if found != 3 {
		t.Fatalf("4个成员的选择组应产生3个selection移动，实际 %d", found)
	}
}

func TestGenerator_RegisterChain双向注册(t *testing.T) {
	m := buildSelectionModel()
	g := New(m)
	g.ChainOverlapThreshold = -1 // 测试中放宽阈值，只验证注册机制本身

	previous := &model.Move{
		Sense:              model.MoveBinaryFlip,
		Alterations:        []model.Alteration{{VariableID: 1, NewValue: 1}},
		TouchedConstraints: []int{0},
	}
	current := &model.Move{
		Sense:              model.MoveBinaryFlip,
		Alterations:        []model.Alteration{{VariableID: 2, NewValue: 1}},
		TouchedConstraints: []int{0},
	}

	ok := g.RegisterChain(previous, current)
	if !ok {
		t.Fatal("兼容的两个binary flip应成功注册为链")
	}
	if g.ChainPoolSize() != 2 {
		t.Fatalf("链与其互补版本都应被注册，实际池大小 %d", g.ChainPoolSize())
	}
}

func TestShuffleMoves保持长度不变(t *testing.T) {
	moves := []*model.Move{{}, {}, {}, {}}
	ShuffleMoves(moves, rand.New(rand.NewSource(1)))
	if len(moves) != 4 {
		t.Fatalf("shuffle不应改变长度")
	}
}

func TestGenerator_MarkSpecialUsed后不再生成(t *testing.T) {
	m := model.NewModel()
	a := m.AddVariable("a", 0, 1, 0, model.SenseBinary)
	b := m.AddVariable("b", 0, 1, 1, model.SenseBinary)
	obj := m.AddExpression("obj", 0)
	m.SetObjective(obj.ID, model.Minimize)
	m.RefreshAll()

	g := New(m)
	g.AggregationPairs = [][2]int{{a.ID, b.ID}}

	before := g.specialMoves(g.AggregationPairs, model.MoveAggregation, "aggregation")
	if len(before) != 1 {
		t.Fatalf("标记前应生成1个聚合特殊移动，实际 %d", len(before))
	}

	g.MarkSpecialUsed(model.MoveAggregation, before[0].SpecialIndex)

	after := g.specialMoves(g.AggregationPairs, model.MoveAggregation, "aggregation")
	if len(after) != 0 {
		t.Fatalf("标记为已用后不应再生成该特殊移动，实际仍有 %d 个", len(after))
	}
}

func TestTruncateByPreserveRate(t *testing.T) {
	moves := make([]*model.Move, 10)
	for i := range moves {
		moves[i] = &model.Move{}
	}
	got := TruncateByPreserveRate(moves, 0.3)
	if len(got) != 3 {
		t.Fatalf("保留率0.3应截断到3个，实际 %d", len(got))
	}
}
