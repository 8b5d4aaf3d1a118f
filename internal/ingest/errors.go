// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ingest defines the error taxonomy shared across the ingestion
// pipeline, so every stage counts and logs failures the same way.
package ingest

import "fmt"

// Kind is one of the error categories the core distinguishes for
// counting and health reporting.
type Kind string

const (
	Transport       Kind = "transport"
	DecodeStructural Kind = "decode_structural"
	DecodeEncoding  Kind = "decode_encoding"
	Crypto          Kind = "crypto"
	Semantic        Kind = "semantic"
	Overflow        Kind = "overflow"
	Duplicate       Kind = "duplicate"
	Storage         Kind = "storage"
	Shutdown        Kind = "shutdown"
	Config          Kind = "config"
)

// Error wraps an underlying cause with the Kind used for metrics and
// health reporting. Single-message errors (decode/crypto/semantic/
// duplicate/overflow) are counted and dropped by the classifier; they
// never propagate past it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error for op/kind, wrapping cause (which may be nil).
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}
