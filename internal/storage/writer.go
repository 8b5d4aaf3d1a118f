// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/meshtastic/meshwatch/internal/domain"
	"github.com/meshtastic/meshwatch/internal/log"
)

// Stats mirrors the writer health fields the supervisor's health check
// and the metrics package read.
type Stats struct {
	Processed      uint64
	Failed         uint64
	BatchCount     uint64
	LastBatchSize  int
	LastBatchNanos int64
	Degraded       bool
}

// Writer buffers admitted events and flushes them to SQLite in batched
// transactions. It is the only component that writes events to db; it
// does not own the handle exclusively: Reader's snapshot queries and
// Retention's sweep run directly on the same *sqlx.DB.
type Writer struct {
	db       *sqlx.DB
	builder  sq.StatementBuilderType
	maxBatch int
	maxWait  time.Duration

	in     chan domain.Event
	doneCh chan struct{}

	mu               sync.Mutex
	processed        uint64
	failed           uint64
	batchCount       uint64
	lastBatchSize    int
	lastBatchLatency time.Duration
	consecutiveFails int
	lastFailAt       time.Time
}

// NewWriter returns a Writer over db with the given flush thresholds.
// channelCap bounds the inbound event channel; a full channel means Add
// returns false and the caller records the dropped event as a storage error.
func NewWriter(db *sqlx.DB, maxBatch int, maxWait time.Duration, channelCap int) *Writer {
	return &Writer{
		db:       db,
		builder:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		maxBatch: maxBatch,
		maxWait:  maxWait,
		in:       make(chan domain.Event, channelCap),
		doneCh:   make(chan struct{}),
	}
}

// Add offers event to the writer without blocking; it returns false if
// the inbound buffer is full, which callers record as a Storage error.
func (w *Writer) Add(e domain.Event) bool {
	select {
	case w.in <- e:
		return true
	default:
		return false
	}
}

// Run drains the inbound channel, buffering events until either maxBatch
// is reached or maxWait elapses since the first buffered event, then
// flushes. Run blocks until Stop is called or shutdown is signaled via
// drain, and must run on its own goroutine — it is the single task that
// writes events to db.
func (w *Writer) Run() {
	defer close(w.doneCh)

	buf := make([]domain.Event, 0, w.maxBatch)
	timer := time.NewTimer(w.maxWait)
	if !timer.Stop() {
		<-timer.C
	}
	timerRunning := false

	flush := func() {
		if len(buf) == 0 {
			return
		}
		w.flushBatch(buf)
		buf = buf[:0]
		if timerRunning {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timerRunning = false
		}
	}

	for {
		select {
		case e, ok := <-w.in:
			if !ok {
				flush()
				return
			}
			buf = append(buf, e)
			if !timerRunning {
				timer.Reset(w.maxWait)
				timerRunning = true
			}
			if len(buf) >= w.maxBatch {
				flush()
			}

		case <-timer.C:
			timerRunning = false
			flush()
		}
	}
}

// Stop signals Run to flush whatever is buffered and exit, waiting up to
// timeout for it to finish (the shutdown-drain deadline).
func (w *Writer) Stop(timeout time.Duration) {
	close(w.in)
	select {
	case <-w.doneCh:
	case <-time.After(timeout):
		log.Warnf("storage: writer drain exceeded %s, remaining buffered events dropped", timeout)
	}
}

func (w *Writer) flushBatch(events []domain.Event) {
	start := time.Now()
	err := w.runBatchTx(events)
	elapsed := time.Since(start)

	w.mu.Lock()
	w.batchCount++
	w.lastBatchSize = len(events)
	w.lastBatchLatency = elapsed
	if err != nil {
		w.failed += uint64(len(events))
		w.consecutiveFails++
		w.lastFailAt = time.Now()
		log.Errorf("storage: batch of %d failed: %v", len(events), err)
	} else {
		w.processed += uint64(len(events))
		w.consecutiveFails = 0
	}
	w.mu.Unlock()
}

// runBatchTx implements the per-batch procedure: partition by type,
// upsert nodes, stub any still-missing referenced nodes, bulk insert
// positions/telemetry/messages/traceroutes, commit. One retry with a
// 100ms backoff on transaction failure, per the error-handling policy.
func (w *Writer) runBatchTx(events []domain.Event) error {
	err := w.tryBatchTx(events)
	if err == nil {
		return nil
	}
	time.Sleep(100 * time.Millisecond)
	return w.tryBatchTx(events)
}

func (w *Writer) tryBatchTx(events []domain.Event) error {
	tx, err := w.db.Beginx()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	nodes, positions, telemetry, messages, traceroutes := partition(events)

	upserted := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if err := w.upsertNode(tx, n); err != nil {
			return fmt.Errorf("upsert node: %w", err)
		}
		upserted[n.ID] = true
	}

	referenced := make(map[string]uint32)
	for _, p := range positions {
		if !upserted[p.NodeID] {
			referenced[p.NodeID] = p.NodeNum
		}
	}
	for _, t := range telemetry {
		if !upserted[t.NodeID] {
			referenced[t.NodeID] = t.NodeNum
		}
	}
	for _, m := range messages {
		if !upserted[m.FromID] {
			referenced[m.FromID] = nodeNumFromID(m.FromID)
		}
	}
	for _, tr := range traceroutes {
		if !upserted[tr.FromID] {
			referenced[tr.FromID] = nodeNumFromID(tr.FromID)
		}
		if !upserted[tr.ToID] {
			referenced[tr.ToID] = nodeNumFromID(tr.ToID)
		}
	}
	for id, num := range referenced {
		if err := w.stubNode(tx, id, num); err != nil {
			return fmt.Errorf("stub node: %w", err)
		}
		upserted[id] = true
	}

	for _, p := range positions {
		if err := w.insertPosition(tx, p); err != nil {
			return fmt.Errorf("insert position: %w", err)
		}
	}

	for _, t := range telemetry {
		if err := w.insertTelemetry(tx, t); err != nil {
			return fmt.Errorf("insert telemetry: %w", err)
		}
		if err := w.updateNodeTelemetry(tx, t); err != nil {
			return fmt.Errorf("update node telemetry: %w", err)
		}
	}

	for _, m := range messages {
		if err := w.insertMessage(tx, m); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	for _, tr := range traceroutes {
		if err := w.insertTraceroute(tx, tr); err != nil {
			return fmt.Errorf("insert traceroute: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func partition(events []domain.Event) (nodes []*domain.Node, positions []*domain.Position, telemetry []*domain.Telemetry, messages []*domain.Message, traceroutes []*domain.Traceroute) {
	for _, e := range events {
		switch e.Kind {
		case domain.KindNode:
			nodes = append(nodes, e.Node)
		case domain.KindPosition:
			positions = append(positions, e.Position)
		case domain.KindTelemetry:
			telemetry = append(telemetry, e.Telemetry)
		case domain.KindMessage:
			messages = append(messages, e.Message)
		case domain.KindTraceroute:
			traceroutes = append(traceroutes, e.Traceroute)
		}
	}
	return
}

// nodeNumFromID recovers the numeric node id Meshtastic encodes into the
// standard "!xxxxxxxx" hex id form. Ids that don't take that form (a
// JSON /stat or /map gateway id, say) get a stable hash-derived node_num
// instead of 0: nodes.node_num is UNIQUE, and two distinct unparseable
// ids stubbed in the same batch would otherwise collide and fail the
// whole batch.
func nodeNumFromID(id string) uint32 {
	if len(id) == 9 && id[0] == '!' {
		if n, err := strconv.ParseUint(id[1:], 16, 32); err == nil {
			return uint32(n)
		}
	}
	sum := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint32(sum[:4])
}

func (w *Writer) upsertNode(tx *sqlx.Tx, n *domain.Node) error {
	now := time.Now().UnixMilli()
	q, args, err := w.builder.Insert("nodes").
		Columns("id", "node_num", "short_name", "long_name", "hw_model", "role", "last_heard", "snr", "rssi", "created_at", "updated_at").
		Values(n.ID, n.NodeNum, n.ShortName, n.LongName, n.HwModel, n.Role, now, n.SNR, n.RSSI, now, now).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			short_name = excluded.short_name,
			long_name = excluded.long_name,
			hw_model = excluded.hw_model,
			role = excluded.role,
			last_heard = excluded.last_heard,
			snr = excluded.snr,
			rssi = excluded.rssi,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, args...)
	return err
}

func (w *Writer) stubNode(tx *sqlx.Tx, id string, num uint32) error {
	now := time.Now().UnixMilli()
	q, args, err := w.builder.Insert("nodes").
		Columns("id", "node_num", "short_name", "long_name", "last_heard", "created_at", "updated_at").
		Values(id, num, "UNK", "Unknown Node", 0, now, now).
		Suffix("ON CONFLICT(id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, args...)
	return err
}

func (w *Writer) insertPosition(tx *sqlx.Tx, p *domain.Position) error {
	q, args, err := w.builder.Insert("positions").
		Columns("node_id", "node_num", "latitude", "longitude", "altitude", "precision_bits", "timestamp", "snr", "rssi").
		Values(p.NodeID, p.NodeNum, p.Latitude, p.Longitude, p.Altitude, p.PrecisionBits, p.Timestamp.UnixMilli(), p.SNR, p.RSSI).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, args...)
	return err
}

func (w *Writer) insertTelemetry(tx *sqlx.Tx, t *domain.Telemetry) error {
	q, args, err := w.builder.Insert("telemetry").
		Columns("node_id", "node_num", "timestamp", "battery_level", "voltage", "channel_utilization", "air_util_tx", "uptime", "temperature", "snr", "rssi").
		Values(t.NodeID, t.NodeNum, t.Timestamp.UnixMilli(), t.BatteryLevel, t.Voltage, t.ChannelUtilization, t.AirUtilTx, t.Uptime, t.Temperature, t.SNR, t.RSSI).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, args...)
	return err
}

func (w *Writer) updateNodeTelemetry(tx *sqlx.Tx, t *domain.Telemetry) error {
	if t.BatteryLevel == nil && t.Voltage == nil {
		return nil
	}
	q, args, err := w.builder.Update("nodes").
		Set("battery_level", sq.Expr("COALESCE(?, battery_level)", t.BatteryLevel)).
		Set("voltage", sq.Expr("COALESCE(?, voltage)", t.Voltage)).
		Set("updated_at", time.Now().UnixMilli()).
		Where(sq.Eq{"id": t.NodeID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, args...)
	return err
}

func (w *Writer) insertMessage(tx *sqlx.Tx, m *domain.Message) error {
	q, args, err := w.builder.Insert("messages").
		Columns("id", "from_id", "to_id", "channel", "text", "timestamp", "snr", "rssi", "hops_away", "reply_to").
		Values(m.PacketID, m.FromID, m.ToID, m.Channel, m.Text, m.Timestamp.UnixMilli(), m.SNR, m.RSSI, m.HopsAway, m.ReplyTo).
		Suffix("ON CONFLICT(id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, args...)
	return err
}

func (w *Writer) insertTraceroute(tx *sqlx.Tx, tr *domain.Traceroute) error {
	route, _ := json.Marshal(tr.Route)
	routeBack, _ := json.Marshal(tr.RouteBack)
	snrTowards, _ := json.Marshal(tr.SNRTowards)
	snrBack, _ := json.Marshal(tr.SNRBack)

	var latency sql.NullInt64
	if tr.LatencyMs != nil {
		latency = sql.NullInt64{Int64: *tr.LatencyMs, Valid: true}
	}

	q, args, err := w.builder.Insert("traceroutes").
		Columns("from_id", "to_id", "timestamp", "route", "route_back", "snr_towards", "snr_back", "hops", "success", "latency_ms").
		Values(tr.FromID, tr.ToID, tr.Timestamp.UnixMilli(), string(route), string(routeBack), string(snrTowards), string(snrBack), len(tr.Route), tr.Success, latency).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, args...)
	return err
}

// Stats returns a snapshot of current writer statistics.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	degraded := w.lastBatchLatency > 200*time.Millisecond
	if w.consecutiveFails > 0 && time.Since(w.lastFailAt) < 60*time.Second {
		degraded = true
	}

	return Stats{
		Processed:      w.processed,
		Failed:         w.failed,
		BatchCount:     w.batchCount,
		LastBatchSize:  w.lastBatchSize,
		LastBatchNanos: w.lastBatchLatency.Nanoseconds(),
		Degraded:       degraded,
	}
}
