// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/meshtastic/meshwatch/internal/domain"
)

func noErr(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		tb.Fatal("Error is not nil:", err)
	}
}

func setup(tb testing.TB) *Writer {
	tb.Helper()
	dbfile := filepath.Join(tb.TempDir(), "meshwatch.db")

	noErr(tb, Migrate(dbfile))
	db, err := Open(dbfile)
	noErr(tb, err)
	tb.Cleanup(func() { db.Close() })

	w := NewWriter(db, 100, 50*time.Millisecond, 1024)
	return w
}

func nodeEvent(id string, num uint32) domain.Event {
	return domain.Event{
		Kind: domain.KindNode,
		Node: &domain.Node{ID: id, NodeNum: num, ShortName: "ABCD", LongName: "A Node"},
	}
}

func TestCheckVersionAfterMigrate(t *testing.T) {
	dbfile := filepath.Join(t.TempDir(), "version.db")
	noErr(t, Migrate(dbfile))

	db, err := Open(dbfile)
	noErr(t, err)
	defer db.Close()

	noErr(t, CheckVersion(db.DB))
}

func TestBatchWriterPersistsNode(t *testing.T) {
	w := setup(t)
	defer w.db.Close()

	if !w.Add(nodeEvent("!0a1b2c3d", 0x0a1b2c3d)) {
		t.Fatal("expected Add to accept event")
	}

	w.tryBatchTxSync(t)

	reader := NewReader(w.db)
	nodes, err := reader.RecentNodes(10)
	noErr(t, err)
	if len(nodes) != 1 || nodes[0].ID != "!0a1b2c3d" {
		t.Fatalf("expected one node with id !0a1b2c3d, got %+v", nodes)
	}
}

func TestBatchWriterStubsMissingNodeForPosition(t *testing.T) {
	w := setup(t)
	defer w.db.Close()

	pos := domain.Event{
		Kind: domain.KindPosition,
		Position: &domain.Position{
			NodeID:    "!deadbeef",
			NodeNum:   0xdeadbeef,
			Latitude:  51.5,
			Longitude: -0.1,
			Timestamp: time.Now(),
		},
	}
	if !w.Add(pos) {
		t.Fatal("expected Add to accept event")
	}

	w.tryBatchTxSync(t)

	reader := NewReader(w.db)
	nodes, err := reader.RecentNodes(10)
	noErr(t, err)
	if len(nodes) != 1 || nodes[0].ID != "!deadbeef" {
		t.Fatalf("expected stub node !deadbeef, got %+v", nodes)
	}

	positions, err := reader.RecentPositions(10)
	noErr(t, err)
	if len(positions) != 1 {
		t.Fatalf("expected one position, got %d", len(positions))
	}
}

func TestBatchWriterMessageConflictIgnored(t *testing.T) {
	w := setup(t)
	defer w.db.Close()

	msg := func() domain.Event {
		return domain.Event{
			Kind: domain.KindMessage,
			Message: &domain.Message{
				PacketID:  42,
				FromID:    "!11111111",
				ToID:      domain.BroadcastID,
				Text:      "hello mesh",
				Timestamp: time.Now(),
			},
		}
	}

	w.Add(msg())
	w.tryBatchTxSync(t)
	w.Add(msg())
	w.tryBatchTxSync(t)

	reader := NewReader(w.db)
	messages, err := reader.RecentMessages(10)
	noErr(t, err)
	if len(messages) != 1 {
		t.Fatalf("expected duplicate packet id to be ignored, got %d messages", len(messages))
	}
}

func TestRetentionSweepRemovesOldRows(t *testing.T) {
	w := setup(t)
	defer w.db.Close()

	old := domain.Event{
		Kind: domain.KindMessage,
		Message: &domain.Message{
			PacketID:  1,
			FromID:    "!11111111",
			ToID:      domain.BroadcastID,
			Text:      "ancient",
			Timestamp: time.Now().AddDate(0, 0, -100),
		},
	}
	w.Add(old)
	w.tryBatchTxSync(t)

	r, err := NewRetention(w.db, 30)
	noErr(t, err)
	r.Sweep()

	reader := NewReader(w.db)
	messages, err := reader.RecentMessages(10)
	noErr(t, err)
	if len(messages) != 0 {
		t.Fatalf("expected old message to be swept, found %d", len(messages))
	}
}

// tryBatchTxSync drains whatever is currently buffered in w.in and runs
// it through the real transactional path synchronously, without
// spinning up Run's goroutine and timer machinery.
func (w *Writer) tryBatchTxSync(tb testing.TB) {
	tb.Helper()
	var batch []domain.Event
	for {
		select {
		case e := <-w.in:
			batch = append(batch, e)
		default:
			if err := w.tryBatchTx(batch); err != nil {
				tb.Fatalf("batch tx failed: %v", err)
			}
			return
		}
	}
}
