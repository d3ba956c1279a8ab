package domain

import "fmt"

type Result struct {
	Message string `json:"message"`
	Status  Status `json:"status"`
}

func NewResult(status Status, format string, args ...interface{}) Result {
	return Result{
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	}
}

func OK(format string, args ...interface{}) Result {
	return NewResult(StatusOK, format, args...)
}

func Warning(format string, args ...interface{}) Result {
	return NewResult(StatusWarning, format, args...)
}

func Critical(format string, args ...interface{}) Result {
	return NewResult(StatusCritical, format, args...)
}

func Unknown(format string, args ...interface{}) Result {
	return NewResult(StatusUnknown, format, args...)
}

// Line renders the single status line a check prints before exiting.
func (r Result) Line(checkName string) string {
	if r.Message == "" {
		return fmt.Sprintf("%s %s", checkName, r.Status)
	}
	return fmt.Sprintf("%s %s: %s", checkName, r.Status, r.Message)
}
