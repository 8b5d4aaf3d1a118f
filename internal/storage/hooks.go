// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"time"

	"github.com/meshtastic/meshwatch/internal/log"
)

type queryTimingKey struct{}

// queryLogHook satisfies sqlhooks.Hooks, logging every query at debug
// level with its arguments and elapsed time.
type queryLogHook struct{}

func (h *queryLogHook) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("storage: query %s %q", query, args)
	return context.WithValue(ctx, queryTimingKey{}, time.Now()), nil
}

func (h *queryLogHook) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(queryTimingKey{}).(time.Time); ok {
		log.Debugf("storage: took %s", time.Since(begin))
	}
	return ctx, nil
}
