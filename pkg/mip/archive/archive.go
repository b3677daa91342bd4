// Package archive 实现 SolutionArchive：一个有界、可选去重的可行稀疏解日志。
// 对应 SUPPLEMENTED FEATURES §1（printemps/solution/solution_archive.h）与
// spec §3 中标注为可选的 SolutionArchive。
package archive

import "sort"

// Entry 一条归档记录：稀疏（仅非零值）变量取值表 + 目标值 + 总违反度
type Entry struct {
	Objective      float64
	TotalViolation float64
	// Values 只记录非零取值，key 为变量名（对外以 named solution 呈现，
	// 内部核心仍以下标操作，稀疏形式只用于归档，保持内存有界）
	Values map[string]int
}

// Archive 有界容量的可行解存档，capacity <= 0 表示不限容量
type Archive struct {
	entries    []Entry
	capacity   int
	dedupe     bool
	seenHashes map[string]struct{}
}

// New 创建一个存档
func New(capacity int, dedupe bool) *Archive {
	a := &Archive{capacity: capacity, dedupe: dedupe}
	if dedupe {
		a.seenHashes = make(map[string]struct{})
	}
	return a
}

// Add 添加一条可行解记录；若启用去重且该解已出现过则忽略；超出容量时
// 丢弃目标值最差的一条。
func (a *Archive) Add(e Entry) {
	if a.dedupe {
		key := hashEntry(e)
		if _, ok := a.seenHashes[key]; ok {
			return
		}
		a.seenHashes[key] = struct{}{}
	}

	a.entries = append(a.entries, e)
	if a.capacity > 0 && len(a.entries) > a.capacity {
		a.trimWorst()
	}
}

func (a *Archive) trimWorst() {
	worst := 0
	for i := 1; i < len(a.entries); i++ {
		if a.entries[i].Objective > a.entries[worst].Objective {
			worst = i
		}
	}
	a.entries = append(a.entries[:worst], a.entries[worst+1:]...)
}

// Entries 返回按目标值升序排列的存档副本
func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Objective < out[j].Objective })
	return out
}

// Len 存档当前大小
func (a *Archive) Len() int {
	return len(a.entries)
}

func hashEntry(e Entry) string {
	keys := make([]string, 0, len(e.Values))
	for k := range e.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b := make([]byte, 0, len(keys)*12)
	for _, k := range keys {
		b = append(b, k...)
		b = append(b, ':')
		v := e.Values[k]
		b = append(b, byte(v), byte(v>>8))
		b = append(b, ',')
	}
	return string(b)
}
