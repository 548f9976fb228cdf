package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSchemaNotReady = errors.New("schema_not_ready")

// SchemaState is a single-row table recording which migration set the
// database was last brought up to.
type SchemaState struct {
	ID            bool      `gorm:"primaryKey;default:true"`
	SchemaVersion string    `gorm:"type:varchar(32);not null"`
	Checksum      *string   `gorm:"type:varchar(64)"`
	ActivatedAt   time.Time `gorm:"not null"`
}

func (SchemaState) TableName() string { return "schema_state" }

func activateSchemaState(ctx context.Context, conn *gorm.DB, schemaVersion string, checksum string) error {
	if conn == nil {
		return errors.New("schema state requires database handle")
	}

	version := strings.TrimSpace(schemaVersion)
	if version == "" {
		return errors.New("schema version is required for schema state activation")
	}

	state := SchemaState{
		ID:            true,
		SchemaVersion: version,
		Checksum:      nullIfEmpty(checksum),
		ActivatedAt:   time.Now().UTC(),
	}
	err := conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "checksum", "activated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("activate schema state: %w", err)
	}
	return nil
}

// EnsureSchemaCurrent fails unless migrations ran for the embedded
// migration set. serve and scheduler refuse to start without it.
func EnsureSchemaCurrent(ctx context.Context, conn *gorm.DB) error {
	cat, err := LoadCatalog()
	if err != nil {
		return err
	}

	if !conn.Migrator().HasTable(&SchemaState{}) {
		return fmt.Errorf("%w: run `cipherpoll migrate` first", ErrSchemaNotReady)
	}

	var rows []SchemaState
	if err := conn.WithContext(ctx).Limit(1).Find(&rows).Error; err != nil {
		return fmt.Errorf("read schema state: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: run `cipherpoll migrate` first", ErrSchemaNotReady)
	}

	state := rows[0]
	if state.SchemaVersion != cat.Version() {
		return fmt.Errorf("%w: schema version %s, binary expects %s", ErrSchemaNotReady, state.SchemaVersion, cat.Version())
	}
	if state.Checksum != nil && *state.Checksum != cat.Checksum {
		return fmt.Errorf("%w: migration checksum mismatch", ErrSchemaNotReady)
	}
	return nil
}

func nullIfEmpty(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
