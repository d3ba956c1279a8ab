package checks

import (
	"context"
	"strings"

	"Probekit/internal/config"
	"Probekit/internal/domain"

	"github.com/jackc/pgx/v5"
)

type PostgresAliveCheck struct {
	cfg config.DatabaseConfig
}

func NewPostgresAliveCheck(cfg config.DatabaseConfig) *PostgresAliveCheck {
	return &PostgresAliveCheck{cfg: cfg}
}

func (c *PostgresAliveCheck) Name() string { return "CheckPostgres" }

func (c *PostgresAliveCheck) Run(ctx context.Context) (domain.Result, error) {
	conn, err := pgx.Connect(ctx, c.cfg.GetDSN())
	if err != nil {
		return domain.Critical("Error message: %s", firstLine(err.Error())), nil
	}
	defer conn.Close(context.Background())

	var version string
	if err := conn.QueryRow(ctx, "select version();").Scan(&version); err != nil {
		return domain.Critical("Error message: %s", firstLine(err.Error())), nil
	}

	return domain.OK("Server version: %s", version), nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
