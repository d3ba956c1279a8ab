package constants

import "time"

// Default run budgets for plugins that do not declare their own.
const (
	CheckTimeout     = 30 * time.Second
	CollectorTimeout = 30 * time.Second
	HandlerTimeout   = 10 * time.Second
	APITimeout       = 5 * time.Second
	ShutdownTimeout  = 10 * time.Second
)
