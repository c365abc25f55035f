package domain

import (
	"fmt"
	"strings"
)

type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 输入数据不合法，在求解之前返回，不会被自动修正
type ValidationError struct {
	Issues []ValidationIssue `json:"issues"`
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "输入数据校验失败"
	}

	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Field == "" {
			msgs = append(msgs, issue.Message)
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
		}
	}
	return "输入数据校验失败: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field string, format string, args ...any) {
	e.Issues = append(e.Issues, ValidationIssue{Field: field, Message: fmt.Sprintf(format, args...)})
}
