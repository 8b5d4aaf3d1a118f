// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/meshtastic/meshwatch/internal/domain"
)

// Reader serves the read-only snapshot queries the broadcaster issues
// when a session subscribes: it never sees the writer's buffered
// events, only what has already been committed.
type Reader struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
}

// NewReader wraps db for snapshot reads.
func NewReader(db *sqlx.DB) *Reader {
	return &Reader{db: db, builder: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

type nodeRow struct {
	ID            string  `db:"id"`
	NodeNum       uint32  `db:"node_num"`
	ShortName     string  `db:"short_name"`
	LongName      string  `db:"long_name"`
	HwModel       uint32  `db:"hw_model"`
	Role          uint32  `db:"role"`
	LastHeard     int64   `db:"last_heard"`
	SNR           float32 `db:"snr"`
	RSSI          int32   `db:"rssi"`
	BatteryLevel  *uint32 `db:"battery_level"`
	Voltage       *float32 `db:"voltage"`
}

// RecentNodes returns up to limit nodes ordered by most recently heard.
func (r *Reader) RecentNodes(limit int) ([]domain.Node, error) {
	q, args, err := r.builder.
		Select("id", "node_num", "short_name", "long_name", "hw_model", "role", "last_heard", "COALESCE(snr, 0) AS snr", "COALESCE(rssi, 0) AS rssi", "battery_level", "voltage").
		From("nodes").
		OrderBy("last_heard DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []nodeRow
	if err := r.db.Select(&rows, q, args...); err != nil {
		return nil, err
	}

	nodes := make([]domain.Node, 0, len(rows))
	for _, row := range rows {
		nodes = append(nodes, domain.Node{
			ID:        row.ID,
			NodeNum:   row.NodeNum,
			ShortName: row.ShortName,
			LongName:  row.LongName,
			HwModel:   row.HwModel,
			Role:      row.Role,
			SNR:       row.SNR,
			RSSI:      row.RSSI,
		})
	}
	return nodes, nil
}

type positionRow struct {
	NodeID        string   `db:"node_id"`
	NodeNum       uint32   `db:"node_num"`
	Latitude      float64  `db:"latitude"`
	Longitude     float64  `db:"longitude"`
	Altitude      *int32   `db:"altitude"`
	PrecisionBits *uint32  `db:"precision_bits"`
	Timestamp     int64    `db:"timestamp"`
	SNR           float32  `db:"snr"`
	RSSI          int32    `db:"rssi"`
}

// RecentPositions returns the single most recent position per node,
// up to limit nodes, most recently updated first.
func (r *Reader) RecentPositions(limit int) ([]domain.Position, error) {
	q, args, err := r.builder.
		Select("p.node_id", "p.node_num", "p.latitude", "p.longitude", "p.altitude", "p.precision_bits", "p.timestamp", "p.snr", "p.rssi").
		From("positions p").
		Join("(SELECT node_id, MAX(timestamp) AS ts FROM positions GROUP BY node_id) latest ON latest.node_id = p.node_id AND latest.ts = p.timestamp").
		OrderBy("p.timestamp DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []positionRow
	if err := r.db.Select(&rows, q, args...); err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, domain.Position{
			NodeID:        row.NodeID,
			NodeNum:       row.NodeNum,
			Latitude:      row.Latitude,
			Longitude:     row.Longitude,
			Altitude:      row.Altitude,
			PrecisionBits: row.PrecisionBits,
			Timestamp:     time.UnixMilli(row.Timestamp),
			SNR:           row.SNR,
			RSSI:          row.RSSI,
		})
	}
	return positions, nil
}

type messageRow struct {
	PacketID  uint32  `db:"id"`
	FromID    string  `db:"from_id"`
	ToID      string  `db:"to_id"`
	Channel   uint32  `db:"channel"`
	Text      string  `db:"text"`
	Timestamp int64   `db:"timestamp"`
	SNR       float32 `db:"snr"`
	RSSI      int32   `db:"rssi"`
	HopsAway  uint32  `db:"hops_away"`
	ReplyTo   *uint32 `db:"reply_to"`
}

// RecentMessages returns up to limit messages, newest first.
func (r *Reader) RecentMessages(limit int) ([]domain.Message, error) {
	q, args, err := r.builder.
		Select("id", "from_id", "to_id", "channel", "text", "timestamp", "snr", "rssi", "hops_away", "reply_to").
		From("messages").
		OrderBy("timestamp DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []messageRow
	if err := r.db.Select(&rows, q, args...); err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, domain.Message{
			PacketID:  row.PacketID,
			FromID:    row.FromID,
			ToID:      row.ToID,
			Channel:   row.Channel,
			Text:      row.Text,
			Timestamp: time.UnixMilli(row.Timestamp),
			SNR:       row.SNR,
			RSSI:      row.RSSI,
			HopsAway:  row.HopsAway,
			ReplyTo:   row.ReplyTo,
		})
	}
	return messages, nil
}

// NodeCount returns the total number of known nodes.
func (r *Reader) NodeCount() (int, error) {
	q, args, err := r.builder.Select("COUNT(*)").From("nodes").ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := r.db.Get(&n, q, args...); err != nil {
		return 0, err
	}
	return n, nil
}
