// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/meshtastic/meshwatch/internal/ingest"
	"github.com/meshtastic/meshwatch/internal/log"
)

// SchemaVersion is the schema the writer expects metadata.schema_version
// to equal at startup; a mismatch is a fatal config/schema error, not
// something the writer can paper over.
const SchemaVersion = 1

//go:embed migrations/sqlite3
var migrationFiles embed.FS

// Migrate applies every pending up migration to the database at path.
func Migrate(path string) error {
	d, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, fmt.Sprintf("sqlite3://%s?_foreign_keys=on", path))
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// CheckVersion verifies db's metadata.schema_version matches
// SchemaVersion, refusing to run on a mismatch as the spec requires.
// This reads the metadata row directly rather than golang-migrate's own
// migration-version table: the two happen to track each other today,
// but the testable property this guards is stated against
// metadata.schema_version, so that is the column asserted.
func CheckVersion(db *sql.DB) error {
	var raw string
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return ingest.New(ingest.Config, "storage.CheckVersion", fmt.Errorf("database has no schema version, run migrations first"))
	}
	if err != nil {
		return err
	}

	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return ingest.New(ingest.Config, "storage.CheckVersion", fmt.Errorf("metadata.schema_version %q is not numeric: %w", raw, err))
	}

	if uint(v) != SchemaVersion {
		log.Errorf("storage: schema version %d does not match expected %d", v, SchemaVersion)
		return ingest.New(ingest.Config, "storage.CheckVersion", fmt.Errorf("schema version %d != expected %d", v, SchemaVersion))
	}
	return nil
}
