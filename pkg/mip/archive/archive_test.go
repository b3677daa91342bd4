package archive

import "testing"

func TestArchive_容量裁剪丢弃最差解(t *testing.T) {
	a := New(2, false)
	a.Add(Entry{Objective: 5, Values: map[string]int{"x": 1}})
	a.Add(Entry{Objective: 1, Values: map[string]int{"x": 2}})
	a.Add(Entry{Objective: 3, Values: map[string]int{"x": 3}})

	if a.Len() != 2 {
		t.Fatalf("容量为2时存档应保持2条，实际 %d", a.Len())
	}
	entries := a.Entries()
	if entries[0].Objective != 1 || entries[1].Objective != 3 {
		t.Fatalf("应保留目标值最优的两条，实际 %+v", entries)
	}
}

func TestArchive_Dedupe(t *testing.T) {
	a := New(0, true)
	e := Entry{Objective: 1, Values: map[string]int{"x": 1}}
	a.Add(e)
	a.Add(e)
	if a.Len() != 1 {
		t.Fatalf("启用去重后重复解不应被计入两次，实际 %d", a.Len())
	}
}
