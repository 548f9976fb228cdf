package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// lockKey identifies the cipherpoll migrator in the advisory lock space.
const lockKey int64 = 0x6369_7068_706f_6c6c

var ErrMigrationLocked = errors.New("migration_locked")

// withMigrationLock holds a session advisory lock on one pinned connection
// while fn runs. A concurrent migrator gets ErrMigrationLocked instead of
// waiting.
func withMigrationLock(ctx context.Context, sqlDB *sql.DB, fn func() error) error {
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("pin migration connection: %w", err)
	}
	defer conn.Close()

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockKey).Scan(&acquired); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if !acquired {
		return ErrMigrationLocked
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", lockKey)
	}()

	return fn()
}
