package scheduler

import (
	"fmt"
	"strings"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
)

// InfeasibleModelError 所有硬约束无法同时满足，并且松弛之后仍然无解（或没有开启松弛）
type InfeasibleModelError struct {
	// Attempted 已经尝试松弛过的约束族
	Attempted []domain.ConstraintFamily
}

func (e *InfeasibleModelError) Error() string {
	if len(e.Attempted) == 0 {
		return "硬约束无法同时满足，没有可行的排班"
	}

	families := make([]string, len(e.Attempted))
	for i, f := range e.Attempted {
		families[i] = string(f)
	}
	return fmt.Sprintf("硬约束无法同时满足，松弛 %s 之后仍然没有可行的排班", strings.Join(families, ", "))
}

// InternalSolverError 与问题本身无关的求解器故障，不会自动重试
type InternalSolverError struct {
	Err error
}

func (e *InternalSolverError) Error() string {
	return fmt.Sprintf("求解器内部错误: %v", e.Err)
}

func (e *InternalSolverError) Unwrap() error {
	return e.Err
}
