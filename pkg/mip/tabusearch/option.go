package tabusearch

import (
	"time"

	"github.com/paiban/tabumip/pkg/mip/memory"
)

// ScreeningMode 改进性筛选强度，§4.5 step 2
type ScreeningMode int

const (
	ScreeningOff ScreeningMode = iota
	ScreeningSoft
	ScreeningAggressive
	ScreeningIntensive
)

// Option 单次内循环的全部可调参数（由 controller 每次运行前配置）
type Option struct {
	IterationMax int
	TimeMax      time.Duration
	TimeOffset   time.Duration // 外层已耗用时间，用于 §4.5 的整体时间预算检查

	InitialTabuTenure           int
	TabuTenureRandomizeRate     float64
	TabuMode                    memory.TabuMode
	FrequencyPenaltyCoefficient float64

	BiasIncreaseThreshold int
	BiasDecreaseThreshold int

	ScreeningMode               ScreeningMode
	MovePreserveRate            float64
	NumberOfInitialModification int

	Target               float64
	HasTarget            bool
	PruningRateThreshold float64 // 0 表示禁用剪枝式提前停止

	Seed int64

	Verbose VerboseLevel
}

// VerboseLevel 输出详尽程度，§6
type VerboseLevel int

const (
	VerboseNone VerboseLevel = iota
	VerboseWarning
	VerboseOuter
	VerboseInner
	VerboseFull
	VerboseDebug
)

// DefaultOption 返回 §6 列出的代表性默认值
func DefaultOption() Option {
	return Option{
		IterationMax:                200,
		TimeMax:                     120 * time.Second,
		InitialTabuTenure:           10,
		TabuTenureRandomizeRate:     0.5,
		TabuMode:                    memory.TabuModeAll,
		FrequencyPenaltyCoefficient: 1e-5,
		BiasIncreaseThreshold:       5,
		BiasDecreaseThreshold:       5,
		ScreeningMode:               ScreeningSoft,
		MovePreserveRate:            1.0,
		Verbose:                     VerboseNone,
	}
}
