// tabumip-solve 是 pkg/mip/solver 之上的一个薄命令行入口：读取一个 JSON
// 描述的模型文件，带着命令行参数给出的 Options 跑一次求解，把命名解打印
// 到标准输出或指定文件。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/paiban/tabumip/pkg/logger"
	"github.com/paiban/tabumip/pkg/mip/model"
	"github.com/paiban/tabumip/pkg/mip/solver"
)

// variableFile 对应模型文件中的一个变量
type variableFile struct {
	Name    string `json:"name"`
	Lower   int    `json:"lower"`
	Upper   int    `json:"upper"`
	Initial int    `json:"initial"`
	Sense   string `json:"sense"`
}

// expressionFile 对应模型文件中的一个表达式
type expressionFile struct {
	Name         string             `json:"name"`
	Constant     float64            `json:"constant"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// constraintFile 对应模型文件中的一个约束
type constraintFile struct {
	Name           string  `json:"name"`
	Expression     string  `json:"expression"`
	Sense          string  `json:"sense"`
	InitialPenalty float64 `json:"initial_penalty"`
}

// objectiveFile 对应模型文件中的目标函数
type objectiveFile struct {
	Expression string `json:"expression"`
	Sense      string `json:"sense"`
}

// modelFile 模型文件的整体结构
type modelFile struct {
	Variables       []variableFile   `json:"variables"`
	Expressions     []expressionFile `json:"expressions"`
	Constraints     []constraintFile `json:"constraints"`
	Objective       objectiveFile    `json:"objective"`
	SelectionGroups [][]string       `json:"selection_groups,omitempty"`
}

// 命令行参数
var (
	modelPath        string
	outputPath       string
	timeLimit        time.Duration
	outerIterations  int
	innerIterations  int
	tabuTenure       int
	seed             int64
	target               float64
	archiveCapacity      int
	archiveDedupe        bool
	pruningRateThreshold float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tabumip-solve",
		Short: "对一个 JSON 描述的 MIP 模型运行禁忌搜索求解",
		RunE:  runSolve,
	}

	rootCmd.Flags().StringVarP(&modelPath, "model", "m", "", "模型文件路径(JSON)，必填")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "结果输出路径，默认标准输出")
	rootCmd.Flags().DurationVar(&timeLimit, "time-limit", 120*time.Second, "外层求解的墙钟时间预算")
	rootCmd.Flags().IntVar(&outerIterations, "outer-iterations", 20, "外层（controller）最大迭代数")
	rootCmd.Flags().IntVar(&innerIterations, "inner-iterations", 200, "内层（tabu search）每轮最大迭代数")
	rootCmd.Flags().IntVar(&tabuTenure, "tabu-tenure", 10, "初始禁忌期限")
	rootCmd.Flags().Int64Var(&seed, "seed", 1, "随机数种子")
	rootCmd.Flags().Float64Var(&target, "target", 0, "目标阈值，命中后立即停止（需配合 --target 显式设置）")
	rootCmd.Flags().IntVar(&archiveCapacity, "archive-capacity", 0, "可行解存档容量，<=0 表示不启用")
	rootCmd.Flags().BoolVar(&archiveDedupe, "archive-dedupe", false, "存档是否按取值去重")
	rootCmd.Flags().Float64Var(&pruningRateThreshold, "pruning-rate-threshold", 0.5, "剪枝式提前停止阈值，<=0 表示禁用")

	rootCmd.MarkFlagRequired("model")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSolve(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Config{Level: "info", Format: "console"})

	raw, err := os.ReadFile(modelPath)
	if err != nil {
		return fmt.Errorf("读取模型文件失败: %w", err)
	}

	var mf modelFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return fmt.Errorf("解析模型文件失败: %w", err)
	}

	m, err := buildModel(&mf)
	if err != nil {
		return err
	}

	opts := solver.DefaultOptions()
	opts.TimeMax = timeLimit
	opts.OuterIterationMax = outerIterations
	opts.InnerIterationMax = innerIterations
	opts.InitialTabuTenure = tabuTenure
	opts.Seed = seed
	opts.ArchiveCapacity = archiveCapacity
	opts.ArchiveDedupe = archiveDedupe
	opts.PruningRateThreshold = pruningRateThreshold
	if cmd.Flags().Changed("target") {
		opts.Target = target
		opts.HasTarget = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeLimit+5*time.Second)
	defer cancel()

	result, err := solver.Solve(ctx, m, opts)
	if err != nil {
		return fmt.Errorf("求解失败: %w", err)
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("创建输出文件失败: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// buildModel 把命令行读入的 modelFile 翻译为 pkg/mip/model.Model，与
// internal/handler 提交求解任务时用的翻译规则保持一致
func buildModel(mf *modelFile) (*model.Model, error) {
	if len(mf.Variables) == 0 {
		return nil, fmt.Errorf("模型至少需要一个变量")
	}

	m := model.NewModel()
	varIndex := make(map[string]int, len(mf.Variables))
	for _, v := range mf.Variables {
		if _, exists := varIndex[v.Name]; exists {
			return nil, fmt.Errorf("重复的变量名: %s", v.Name)
		}
		sense, err := parseVariableSense(v.Sense)
		if err != nil {
			return nil, err
		}
		variable := m.AddVariable(v.Name, v.Lower, v.Upper, v.Initial, sense)
		varIndex[v.Name] = variable.ID
	}

	exprIndex := make(map[string]int, len(mf.Expressions))
	for _, e := range mf.Expressions {
		if _, exists := exprIndex[e.Name]; exists {
			return nil, fmt.Errorf("重复的表达式名: %s", e.Name)
		}
		expr := m.AddExpression(e.Name, e.Constant)
		exprIndex[e.Name] = expr.ID

		for varName, coeff := range e.Coefficients {
			varID, ok := varIndex[varName]
			if !ok {
				return nil, fmt.Errorf("表达式 %s 引用了未知变量: %s", e.Name, varName)
			}
			m.SetExpressionCoefficient(expr.ID, varID, coeff)
		}
	}

	objExprID, ok := exprIndex[mf.Objective.Expression]
	if !ok {
		return nil, fmt.Errorf("目标引用了未知表达式: %s", mf.Objective.Expression)
	}
	objSense, err := parseObjectiveSense(mf.Objective.Sense)
	if err != nil {
		return nil, err
	}
	m.SetObjective(objExprID, objSense)

	for _, c := range mf.Constraints {
		exprID, ok := exprIndex[c.Expression]
		if !ok {
			return nil, fmt.Errorf("约束 %s 引用了未知表达式: %s", c.Name, c.Expression)
		}
		sense, err := parseConstraintSense(c.Sense)
		if err != nil {
			return nil, err
		}
		m.AddConstraint(c.Name, exprID, sense, c.InitialPenalty)
	}

	for _, group := range mf.SelectionGroups {
		ids := make([]int, 0, len(group))
		for _, name := range group {
			id, ok := varIndex[name]
			if !ok {
				return nil, fmt.Errorf("选择组引用了未知变量: %s", name)
			}
			ids = append(ids, id)
		}
		m.AddSelectionGroup(ids)
	}

	m.RefreshAll()
	return m, nil
}

func parseVariableSense(s string) (model.Sense, error) {
	switch s {
	case "", "general":
		return model.SenseGeneral, nil
	case "binary":
		return model.SenseBinary, nil
	case "selection_member":
		return model.SenseSelectionMember, nil
	default:
		return 0, fmt.Errorf("未知的变量类型: %s", s)
	}
}

func parseConstraintSense(s string) (model.ConstraintSense, error) {
	switch s {
	case "le":
		return model.SenseLE, nil
	case "eq":
		return model.SenseEQ, nil
	case "ge":
		return model.SenseGE, nil
	default:
		return 0, fmt.Errorf("未知的约束方向: %s", s)
	}
}

func parseObjectiveSense(s string) (model.ObjectiveSense, error) {
	switch s {
	case "", "minimize":
		return model.Minimize, nil
	case "maximize":
		return model.Maximize, nil
	default:
		return 0, fmt.Errorf("未知的目标方向: %s", s)
	}
}
