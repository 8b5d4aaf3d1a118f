// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitDefaults(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	if err := os.WriteFile(fp, []byte(`{"broker-url":"mqtt://localhost:1883","database-path":"./var/test.db"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	Init(fp)

	if Keys.BrokerURL != "mqtt://localhost:1883" {
		t.Errorf("wrong broker-url\ngot: %s", Keys.BrokerURL)
	}
	if Keys.TopicPattern != "msh/US/#" {
		t.Errorf("wrong default topic-pattern\ngot: %s", Keys.TopicPattern)
	}
	if Keys.BatchMaxSize != 100 {
		t.Errorf("wrong default batch-max-size\ngot: %d", Keys.BatchMaxSize)
	}
}

func TestInitOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	body := `{
		"broker-url": "mqtt://localhost:1883",
		"database-path": "./var/test.db",
		"retention-days": 7,
		"rate-limit-max-per-window": 5
	}`
	if err := os.WriteFile(fp, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	Init(fp)

	if Keys.RetentionDays != 7 {
		t.Errorf("wrong retention-days\ngot: %d", Keys.RetentionDays)
	}
	if Keys.RateLimitMax != 5 {
		t.Errorf("wrong rate-limit-max-per-window\ngot: %d", Keys.RateLimitMax)
	}
}

func TestEnvOverridesCredentials(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	if err := os.WriteFile(fp, []byte(`{"broker-url":"mqtt://localhost:1883","database-path":"./var/test.db"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MESHWATCH_BROKER_USERNAME", "alice")
	t.Setenv("MESHWATCH_BROKER_PASSWORD", "secret")

	Init(fp)

	if Keys.BrokerUsername != "alice" || Keys.BrokerPassword != "secret" {
		t.Errorf("env override failed: %+v", Keys)
	}
}
