package database

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one embedded schema change, named "<version>_<name>.sql"
type Migration struct {
	Version int64
	Name    string
	SQL     string
}

// loadMigrations returns the embedded migrations ordered by version
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[int64]string, len(entries))
	for _, entry := range entries {
		m, err := parseMigration(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[m.Version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", m.Version, prev, m.Name)
		}
		seen[m.Version] = m.Name

		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		m.SQL = string(content)
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigration extracts the version and name from a migration file name
func parseMigration(fileName string) (Migration, error) {
	name, ok := strings.CutSuffix(fileName, ".sql")
	if !ok {
		return Migration{}, fmt.Errorf("non-migration file found in migrations path: %s", fileName)
	}
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return Migration{}, fmt.Errorf("malformed migration filename: %s", fileName)
	}
	version, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return Migration{}, fmt.Errorf("failed to parse version from migration file (%s): %w", fileName, err)
	}
	return Migration{Version: version, Name: name}, nil
}

func (d *Database) appliedMigrations() (map[int64]bool, error) {
	if _, err := d.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := d.writeDB.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (d *Database) applyMigration(m Migration) error {
	tx, err := d.writeDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", m.Name, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.Name, err)
	}

	d.logger.Database("Migration applied", "version", m.Version, "name", m.Name)
	return nil
}

// runMigrations applies every pending migration in version order
func (d *Database) runMigrations() error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	applied, err := d.appliedMigrations()
	if err != nil {
		return err
	}

	pending := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := d.applyMigration(m); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
		pending++
	}

	d.logger.Database("Database schema up to date", "applied", pending, "total", len(migrations))
	return nil
}

// checkDatabaseExists reports whether path names a non-empty file
func checkDatabaseExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.Size() > 0
}
