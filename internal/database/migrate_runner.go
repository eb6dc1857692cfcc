package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"matchday/internal/middleware"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// MigrationLog records one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (MigrationLog) TableName() string {
	return "migration_logs"
}

// appliedVersions lists recorded versions in ascending order. A missing
// ledger table means nothing has been applied yet.
func appliedVersions(ctx context.Context, db *gorm.DB) ([]int, error) {
	if !db.Migrator().HasTable(&MigrationLog{}) {
		return nil, nil
	}
	var versions []int
	err := db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error
	if err != nil {
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return versions, nil
}

// pendingMigrations keeps the registered migrations whose version is not applied.
func pendingMigrations(applied []int, registered []Migration) []Migration {
	return lo.Filter(registered, func(m Migration, _ int) bool {
		return !lo.Contains(applied, m.Version)
	})
}

// validateAppliedVersions fails when the ledger knows versions this build does not ship.
func validateAppliedVersions(applied []int, registered []Migration) error {
	known := lo.Map(registered, func(m Migration, _ int) int { return m.Version })
	unknown, _ := lo.Difference(applied, known)
	if len(unknown) == 0 {
		return nil
	}
	labels := lo.Map(unknown, func(v int, _ int) string { return fmt.Sprintf("%06d", v) })
	return fmt.Errorf("migration_logs has versions this build does not know: %s (reset the development database to rebuild)",
		strings.Join(labels, ", "))
}

// RunMigrations applies every pending migration. Each script and its ledger
// row commit in one transaction.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("ensure migration_logs: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if err := validateAppliedVersions(applied, migrations); err != nil {
		return err
	}

	for _, m := range pendingMigrations(applied, migrations) {
		middleware.Logger.Info("Applying migration", slog.String("migration", m.String()))
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.UpScript).Error; err != nil {
				return err
			}
			return tx.Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", m.String(), err)
		}
	}
	return nil
}

// RollbackMigration runs the down script of an applied migration and forgets it.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if !lo.Contains(applied, version) {
		return fmt.Errorf("migration %s has not been applied", m.String())
	}

	middleware.Logger.Info("Rolling back migration", slog.String("migration", m.String()))
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("rollback %s: %w", m.String(), err)
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
}
