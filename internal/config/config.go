// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates meshwatch's runtime configuration.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/meshtastic/meshwatch/internal/log"
)

// Config is the full program configuration, loaded from a JSON file and
// overridden by environment variables for secrets (broker credentials).
type Config struct {
	// Broker connection.
	BrokerURL         string `json:"broker-url"`
	BrokerUsername    string `json:"broker-username"`
	BrokerPassword    string `json:"broker-password"`
	TopicPattern      string `json:"topic-pattern"`
	UseTLS            bool   `json:"use-tls"`
	ClientID          string `json:"client-id"`
	ReconnectPeriodMs int    `json:"reconnect-period-ms"`

	// Storage.
	DatabasePath     string `json:"database-path"`
	RetentionDays    int    `json:"retention-days"`
	MaxQueueCapacity int    `json:"max-queue-capacity"`

	// Dedup / rate-limit / queue / batch tuning.
	DedupeWindowMs    int `json:"dedupe-window-ms"`
	RateLimitMax      int `json:"rate-limit-max-per-window"`
	RateLimitWindowMs int `json:"rate-limit-window-ms"`
	BatchMaxSize      int `json:"batch-max-size"`
	BatchMaxWaitMs    int `json:"batch-max-wait-ms"`

	// Fan-out broadcaster.
	HeartbeatMs      int    `json:"broadcaster-heartbeat-ms"`
	SnapshotNodeCap  int    `json:"broadcaster-snapshot-node-cap"`
	SnapshotPosCap   int    `json:"broadcaster-snapshot-position-cap"`
	SnapshotMsgCap   int    `json:"broadcaster-snapshot-message-cap"`
	ListenAddr       string `json:"listen-addr"`
	ShutdownTimeoutS int    `json:"shutdown-timeout-s"`

	// Well-known channel PSKs, keyed by channel name. The bytes of each
	// string are the raw key material handed to crypto.ExpandPSK (no
	// base64 or hex decoding); merged with the built-in defaults in
	// internal/crypto.
	ChannelKeys map[string]string `json:"channel-keys"`
}

// Keys holds the process-wide configuration, populated by Init.
var Keys Config = Default()

// Default returns the configuration defaults, mirrored from the teacher's
// package-level zero-value ProgramConfig idiom.
func Default() Config {
	return Config{
		TopicPattern:      "msh/US/#",
		ReconnectPeriodMs: 5000,
		DatabasePath:      "./var/meshwatch.db",
		RetentionDays:     30,
		MaxQueueCapacity:  10000,
		DedupeWindowMs:    60000,
		RateLimitMax:      1,
		RateLimitWindowMs: 1000,
		BatchMaxSize:      100,
		BatchMaxWaitMs:    500,
		HeartbeatMs:       30000,
		SnapshotNodeCap:   500,
		SnapshotPosCap:    500,
		SnapshotMsgCap:    100,
		ListenAddr:        ":8090",
		ShutdownTimeoutS:  30,
	}
}

// Init reads flagConfigFile (if it exists), validates it against
// configSchema and decodes it on top of the defaults. Environment variables
// MESHWATCH_BROKER_USERNAME/MESHWATCH_BROKER_PASSWORD override any value in
// the file so credentials need not be committed to disk.
func Init(flagConfigFile string) {
	Keys = Default()

	if flagConfigFile != "" {
		raw, err := os.ReadFile(flagConfigFile)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Fatal(err)
			}
		} else {
			if err := Validate(configSchema, raw); err != nil {
				log.Fatalf("validate config: %v", err)
			}

			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&Keys); err != nil {
				log.Fatal(err)
			}
		}
	}

	if v := os.Getenv("MESHWATCH_BROKER_USERNAME"); v != "" {
		Keys.BrokerUsername = v
	}
	if v := os.Getenv("MESHWATCH_BROKER_PASSWORD"); v != "" {
		Keys.BrokerPassword = v
	}
	if v := os.Getenv("MESHWATCH_BROKER_URL"); v != "" {
		Keys.BrokerURL = v
	}

	if Keys.BrokerURL == "" {
		log.Fatal("config: broker-url is required")
	}
	if Keys.DatabasePath == "" {
		log.Fatal("config: database-path is required")
	}
}

// ReconnectPeriod returns ReconnectPeriodMs as a time.Duration.
func (c Config) ReconnectPeriod() time.Duration {
	return time.Duration(c.ReconnectPeriodMs) * time.Millisecond
}

// DedupeWindow returns DedupeWindowMs as a time.Duration.
func (c Config) DedupeWindow() time.Duration {
	return time.Duration(c.DedupeWindowMs) * time.Millisecond
}

// RateLimitWindow returns RateLimitWindowMs as a time.Duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMs) * time.Millisecond
}

// BatchMaxWait returns BatchMaxWaitMs as a time.Duration.
func (c Config) BatchMaxWait() time.Duration {
	return time.Duration(c.BatchMaxWaitMs) * time.Millisecond
}

// Heartbeat returns HeartbeatMs as a time.Duration.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutS as a time.Duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}
