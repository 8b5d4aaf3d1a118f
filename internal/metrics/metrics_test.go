// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/meshtastic/meshwatch/internal/ingest"
)

func TestRecordErrorIncrementsByKind(t *testing.T) {
	before := testutil.ToFloat64(ErrorsTotal.WithLabelValues(string(ingest.Crypto)))
	RecordError(ingest.Crypto)
	after := testutil.ToFloat64(ErrorsTotal.WithLabelValues(string(ingest.Crypto)))
	assert.Equal(t, before+1, after)
}

func TestSetBrokerConnectedMirrorsBool(t *testing.T) {
	SetBrokerConnected(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(BrokerConnected))

	SetBrokerConnected(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(BrokerConnected))
}

func TestSetWriterDegradedMirrorsBool(t *testing.T) {
	SetWriterDegraded(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(WriterDegraded))

	SetWriterDegraded(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(WriterDegraded))
}
