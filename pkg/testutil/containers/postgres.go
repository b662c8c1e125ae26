//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"warden/internal/platform/database"
)

// PostgresContainer is a Postgres 17 instance with the warden schema applied.
// The testcontainers reaper removes it when the test binary exits.
type PostgresContainer struct {
	Container *postgres.PostgresContainer
	DSN       string
	DB        *sql.DB
}

func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("warden_test"),
		postgres.WithUsername("warden"),
		postgres.WithPassword("warden"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	fail := func(step string, err error) {
		_ = container.Terminate(ctx)
		t.Fatalf("%s: %v", step, err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fail("postgres dsn", err)
	}
	pool, err := database.New(ctx, database.Config{URL: dsn, MaxOpenConns: 10})
	if err != nil {
		fail("connect postgres", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		_ = pool.Close()
		fail("migrate postgres", err)
	}
	return &PostgresContainer{Container: container, DSN: dsn, DB: pool.DB()}
}

// identityTables are truncated children first.
var identityTables = []string{"one_time_codes", "oauth_accounts", "users"}

// Reset empties every identity table so each test starts from a blank schema.
func (p *PostgresContainer) Reset(ctx context.Context) error {
	for _, table := range identityTables {
		if _, err := p.DB.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}
