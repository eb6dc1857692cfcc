package database

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"

	"matchday/internal/middleware"
)

// Migration is one versioned SQL script pair from migrations/.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var migrations = mustLoadMigrations(migrationFS)

func mustLoadMigrations(fsys fs.FS) []Migration {
	loaded, err := loadMigrations(fsys, "migrations")
	if err != nil {
		middleware.Logger.Error("failed to load embedded migrations", slog.Any("error", err))
	}
	return loaded
}

// parseMigrationName splits "000001_init.up.sql" into 1 and "init".
func parseMigrationName(file string) (int, string, bool) {
	base, ok := strings.CutSuffix(file, ".up.sql")
	if !ok {
		return 0, "", false
	}
	rawVersion, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", false
	}
	version, err := strconv.Atoi(rawVersion)
	if err != nil || version <= 0 {
		return 0, "", false
	}
	return version, name, true
}

// loadMigrations reads every up/down pair under dir, ordered by version.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		version, name, ok := parseMigrationName(entry.Name())
		if !ok {
			middleware.Logger.Warn("Skipping migration with invalid naming", slog.String("file", entry.Name()))
			continue
		}

		m := Migration{Version: version, Name: name}
		up, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		down, err := fs.ReadFile(fsys, path.Join(dir, m.String()+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", m.String(), err)
		}
		m.UpScript, m.DownScript = string(up), string(down)
		out = append(out, m)
	}

	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

// GetMigrations returns the embedded migrations in version order.
func GetMigrations() []Migration {
	return migrations
}

// GetMigrationByVersion returns nil when no migration has that version.
func GetMigrationByVersion(version int) *Migration {
	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == version })
	if i < 0 {
		return nil
	}
	m := migrations[i]
	return &m
}
