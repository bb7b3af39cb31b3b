package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/codenotes/internal/kv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillEntryUpdatedAt = "2026-10-01_backfill_entry_updated_at"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB, time.Time) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillEntryUpdatedAt, apply: backfillEntryUpdatedAt},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		appliedAt := time.Now().UTC()
		if err := migration.apply(db, appliedAt); err != nil {
			return err
		}
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt.Unix()}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Entries written before updated_at_s existed carry the column default of zero.
func backfillEntryUpdatedAt(db *gorm.DB, appliedAt time.Time) error {
	return db.Model(&kv.Entry{}).
		Where("updated_at_s = 0").
		Update("updated_at_s", appliedAt.Unix()).Error
}
