// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package storage owns the SQLite-backed relational store: connection
// setup, schema migrations, the batched transactional writer, and the
// read-side queries the broadcaster uses for session snapshots.
package storage

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/meshtastic/meshwatch/internal/log"
)

// registerDriver is a sync.Once rather than an injected dependency
// because database/sql driver registration is itself a process-wide
// table; calling sql.Register twice with the same name panics.
var registerDriver sync.Once

// pragmas match the persisted-state layout in the spec: write-ahead
// logging, normal fsync durability (WAL already protects against
// corruption on crash), foreign keys enforced, and a generous page
// cache since the whole dataset is expected to fit comfortably in RAM.
const pragmas = "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_cache_size=-65536"

// Open returns a single connection to the SQLite file at path with the
// pragmas above applied, registering the sqlhooks-wrapped driver so
// every query is logged at debug level with timing.
//
// SQLite does not benefit from multiple concurrent writer connections —
// the single-writer-owns-the-handle rule (see Writer) means one
// connection is both correct and sufficient.
func Open(path string) (*sqlx.DB, error) {
	registerDriver.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &queryLogHook{}))
	})

	db, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s%s", path, pragmas))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}
	log.Infof("storage: opened %s", path)
	return db, nil
}
