// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate checks instance (raw JSON) against schema (a JSON Schema document).
func Validate(schema string, instance json.RawMessage) error {
	sch, err := jsonschema.CompileString("meshwatch-config.json", schema)
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		return err
	}

	return sch.Validate(v)
}
