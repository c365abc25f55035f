package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/cache"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/jobs"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/utils"
)

func runSolve(cmd *cobra.Command, args []string) error {
	if outputFormat != "json" && outputFormat != "csv" {
		return fmt.Errorf("不支持的输出格式 %q", outputFormat)
	}

	in, err := loadInput()
	if err != nil {
		return err
	}

	// CTRL+C 会取消求解，已经找到的排班仍然会输出
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := scheduler.New(cache.Nop{}, newLogger(cmd))
	schedule, err := jobs.Solve(ctx, s, in, scheduler.DefaultConfig(), options(cmd))
	if schedule == nil {
		return err
	}

	if outputFormat == "csv" {
		if err := utils.WriteAssignmentsCSV(cmd.OutOrStdout(), schedule.Assignments); err != nil {
			return err
		}
	} else if err := writeJSON(cmd.OutOrStdout(), schedule); err != nil {
		return err
	}

	if reason := jobs.FailureReason(schedule, err); reason != "" {
		cmd.PrintErrln(reason)
		return errNoSolution
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
