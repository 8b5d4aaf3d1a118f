// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

// configSchema is the JSON Schema used to validate the config file before
// it is decoded on top of Default(), matching the teacher's
// internal/config validate-then-decode idiom.
const configSchema = `
{
  "type": "object",
  "properties": {
    "broker-url": {
      "description": "Broker connection string (e.g. 'mqtt://localhost:1883').",
      "type": "string"
    },
    "broker-username": { "type": "string" },
    "broker-password": { "type": "string" },
    "topic-pattern": {
      "description": "Topic filter subscribed to on connect, e.g. 'msh/US/#'.",
      "type": "string"
    },
    "use-tls": { "type": "boolean" },
    "client-id": { "type": "string" },
    "reconnect-period-ms": { "type": "integer", "minimum": 0 },
    "database-path": { "type": "string" },
    "retention-days": { "type": "integer", "minimum": 1 },
    "max-queue-capacity": { "type": "integer", "minimum": 1 },
    "dedupe-window-ms": { "type": "integer", "minimum": 0 },
    "rate-limit-max-per-window": { "type": "integer", "minimum": 1 },
    "rate-limit-window-ms": { "type": "integer", "minimum": 1 },
    "batch-max-size": { "type": "integer", "minimum": 1 },
    "batch-max-wait-ms": { "type": "integer", "minimum": 0 },
    "broadcaster-heartbeat-ms": { "type": "integer", "minimum": 0 },
    "broadcaster-snapshot-node-cap": { "type": "integer", "minimum": 0 },
    "broadcaster-snapshot-position-cap": { "type": "integer", "minimum": 0 },
    "broadcaster-snapshot-message-cap": { "type": "integer", "minimum": 0 },
    "listen-addr": { "type": "string" },
    "shutdown-timeout-s": { "type": "integer", "minimum": 0 },
    "channel-keys": {
      "type": "object",
      "additionalProperties": { "type": "string" }
    }
  },
  "required": ["broker-url", "database-path"]
}`
