package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/cache"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scenario"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
)

var (
	scenariosFile string
	parallelism   int
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "对比多个假设场景与基准排班",
	Long: `compare 先求解基准排班，再对每个场景施加扰动后分别求解，
输出各场景相对于基准的成本、工时、加班和覆盖率变化。

场景文件为 JSON 数组，例如:
  [{"name": "EMP003 请假", "perturbations": [{"kind": "absence", "employeeIDs": ["EMP003"],
    "from": "2024-03-05T00:00:00Z", "to": "2024-03-06T00:00:00Z"}]}]`,
	SilenceUsage: true,
	RunE:         runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&scenariosFile, "scenarios", "", "场景定义 JSON 文件")
	compareCmd.Flags().IntVar(&parallelism, "parallelism", 2, "同时求解的场景数")
	_ = compareCmd.MarkFlagRequired("scenarios")

	rootCmd.AddCommand(compareCmd)
}

func readScenarios(path string) ([]scenario.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenarios []scenario.Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Var(scenarios, "required,min=1,dive"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	scenarios, err := readScenarios(scenariosFile)
	if err != nil {
		return err
	}

	in, err := loadInput()
	if err != nil {
		return err
	}
	opts := options(cmd)
	if opts.DemandMultiplier != nil {
		in = scenario.ScaleDemand(in, *opts.DemandMultiplier)
	}
	baseline, err := domain.NewProblem(in)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 基准会被每个场景重复使用，使用内存缓存
	logger := newLogger(cmd)
	s := scheduler.New(cache.NewMemory(len(scenarios)+1), logger)
	report, err := scenario.NewEngine(s, logger, parallelism).RunAll(ctx, baseline, opts.Apply(scheduler.DefaultConfig()), scenarios)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), report)
}
