package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/utils"
)

// 输入文件与求解参数
var (
	employeesFile    string
	shiftsFile       string
	demandFile       string
	availabilityFile string
	horizonStart     string
	horizonEnd       string
	defaultAvailable bool

	coverageMode      string
	coveragePenalty   float64
	supervisorMode    string
	supervisorPenalty float64
	noRelaxation      bool
	overtimeCap       float64
	timeBudget        int
	seed              int64
	workers           int
	demandMultiplier  float64

	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "solve",
	Short: "根据 CSV 文件生成排班",
	Long: `solve 读取员工、班次、人员需求和可用时间的 CSV 文件，求解成本最低的排班，
并以 JSON 或 CSV 格式输出到标准输出。

CSV 格式:
  employees     id,name,role,hourly_wage,weekly_hours_cap,employment_class
  shifts        name,duration_hours
  demand        date,shift,role,required_headcount
  availability  employee_id,date,shift,available,preference_weight

示例:
  solve --employees employees.csv --shifts shifts.csv --demand demand.csv \
    --start 2024-03-04 --end 2024-03-10 --time-budget 10`,
	SilenceUsage: true,
	RunE:         runSolve,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&employeesFile, "employees", "", "员工 CSV 文件")
	flags.StringVar(&shiftsFile, "shifts", "", "班次 CSV 文件")
	flags.StringVar(&demandFile, "demand", "", "人员需求 CSV 文件")
	flags.StringVar(&availabilityFile, "availability", "", "可用时间 CSV 文件，可省略")
	flags.StringVar(&horizonStart, "start", "", "规划开始日期 (YYYY-MM-DD)")
	flags.StringVar(&horizonEnd, "end", "", "规划结束日期 (YYYY-MM-DD)")
	flags.BoolVar(&defaultAvailable, "default-available", false, "没有登记可用时间的班次视为可用")
	_ = rootCmd.MarkPersistentFlagRequired("employees")
	_ = rootCmd.MarkPersistentFlagRequired("shifts")
	_ = rootCmd.MarkPersistentFlagRequired("demand")
	_ = rootCmd.MarkPersistentFlagRequired("start")
	_ = rootCmd.MarkPersistentFlagRequired("end")

	flags.StringVar(&coverageMode, "coverage-mode", "", "需求覆盖约束模式 (hard|soft)")
	flags.Float64Var(&coveragePenalty, "coverage-penalty", 0, "每缺一人次的惩罚")
	flags.StringVar(&supervisorMode, "supervisor-mode", "", "主管在岗约束模式 (hard|soft)")
	flags.Float64Var(&supervisorPenalty, "supervisor-penalty", 0, "每个班次缺少主管的惩罚")
	flags.BoolVar(&noRelaxation, "no-relaxation", false, "无解时不自动放宽硬约束")
	flags.Float64Var(&overtimeCap, "overtime-cap", 0, "每周加班小时数上限")
	flags.IntVar(&timeBudget, "time-budget", 0, "求解时间限制（秒）")
	flags.Int64Var(&seed, "seed", 0, "随机种子")
	flags.IntVar(&workers, "workers", 0, "并行搜索的线程数")
	flags.Float64Var(&demandMultiplier, "demand-multiplier", 0, "按比例调整所有人员需求")
	flags.BoolVarP(&verbose, "verbose", "v", false, "输出求解日志")

	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "输出格式 (json|csv)")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
}

// options 只包含命令行中显式指定的参数
func options(cmd *cobra.Command) scheduler.Options {
	var opts scheduler.Options
	flags := cmd.Flags()

	if flags.Changed("coverage-mode") {
		m := scheduler.ModeKind(coverageMode)
		opts.CoverageMode = &m
	}
	if flags.Changed("coverage-penalty") {
		opts.CoveragePenalty = &coveragePenalty
	}
	if flags.Changed("supervisor-mode") {
		m := scheduler.ModeKind(supervisorMode)
		opts.SupervisorMode = &m
	}
	if flags.Changed("supervisor-penalty") {
		opts.SupervisorPenalty = &supervisorPenalty
	}
	if noRelaxation {
		relaxation := false
		opts.Relaxation = &relaxation
	}
	if flags.Changed("overtime-cap") {
		opts.OvertimeCapHours = &overtimeCap
	}
	if flags.Changed("time-budget") {
		opts.TimeBudget = &timeBudget
	}
	if flags.Changed("seed") {
		opts.Seed = &seed
	}
	if flags.Changed("workers") {
		opts.Workers = &workers
	}
	if flags.Changed("demand-multiplier") {
		opts.DemandMultiplier = &demandMultiplier
	}
	return opts
}

// loadInput 读取所有输入文件并组装求解输入
func loadInput() (domain.ProblemInput, error) {
	start, err := domain.ParseDate(horizonStart)
	if err != nil {
		return domain.ProblemInput{}, fmt.Errorf("开始日期格式错误: %w", err)
	}
	end, err := domain.ParseDate(horizonEnd)
	if err != nil {
		return domain.ProblemInput{}, fmt.Errorf("结束日期格式错误: %w", err)
	}

	in := domain.ProblemInput{
		Horizon:             domain.Horizon{Start: start, End: end},
		DefaultAvailability: domain.AvailabilityUnavailable,
	}
	if defaultAvailable {
		in.DefaultAvailability = domain.AvailabilityAvailable
	}

	if err := readCSV(employeesFile, func(r io.Reader) (err error) {
		in.Employees, err = utils.ParseEmployeesCSV(r)
		return err
	}); err != nil {
		return domain.ProblemInput{}, err
	}
	if err := readCSV(shiftsFile, func(r io.Reader) (err error) {
		in.Shifts, err = utils.ParseShiftsCSV(r)
		return err
	}); err != nil {
		return domain.ProblemInput{}, err
	}
	if err := readCSV(demandFile, func(r io.Reader) (err error) {
		in.Demand, err = utils.ParseDemandCSV(r)
		return err
	}); err != nil {
		return domain.ProblemInput{}, err
	}
	if availabilityFile != "" {
		if err := readCSV(availabilityFile, func(r io.Reader) (err error) {
			in.Availability, err = utils.ParseAvailabilityCSV(r)
			return err
		}); err != nil {
			return domain.ProblemInput{}, err
		}
	}

	return in, nil
}

func readCSV(path string, parse func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := parse(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// errNoSolution 求解结束但没有可用的排班，结果已经输出
var errNoSolution = errors.New("没有找到可行的排班")
