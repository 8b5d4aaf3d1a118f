// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package supervisor owns process lifecycle: it constructs every other
// component, wires the broker-receive → admit → queue → drain → write/
// broadcast pipeline, serves health, and drives an orderly shutdown.
// Grounded on cmd/cc-backend/main.go's sync.WaitGroup +
// signal.Notify(SIGINT, SIGTERM) + bounded-wait shutdown idiom.
package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"

	"github.com/meshtastic/meshwatch/internal/broker"
	"github.com/meshtastic/meshwatch/internal/classifier"
	"github.com/meshtastic/meshwatch/internal/config"
	"github.com/meshtastic/meshwatch/internal/dedupe"
	"github.com/meshtastic/meshwatch/internal/fanout"
	"github.com/meshtastic/meshwatch/internal/log"
	"github.com/meshtastic/meshwatch/internal/queue"
	"github.com/meshtastic/meshwatch/internal/ratelimit"
	"github.com/meshtastic/meshwatch/internal/storage"
)

const rateLimiterGCIdle = 5 * time.Minute
const brokerConnectTimeout = 30 * time.Second

// Supervisor owns every long-lived component and the goroutines that
// connect them.
type Supervisor struct {
	cfg config.Config

	db          *sqlx.DB
	reader      *storage.Reader
	writer      *storage.Writer
	retention   *storage.Retention
	broker      broker.Broker
	broadcaster *fanout.Broadcaster
	classifier  *classifier.Classifier
	dedupe      *dedupe.Set
	ratelimit   *ratelimit.Limiter
	queue       *queue.Queue
	scheduler   gocron.Scheduler

	dedupeIDFn func(key string) (string, error)

	drainStopCh chan struct{}
	drainDoneCh chan struct{}

	mu      sync.Mutex
	stopped bool

	statsMu      sync.Mutex
	deduplicated uint64
	rateLimited  uint64
	overflowed   uint64
}

// New constructs every component from cfg but does not start any
// goroutines or network connections yet — call Start for that.
func New(cfg config.Config) (*Supervisor, error) {
	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open database: %w", err)
	}

	if err := storage.Migrate(cfg.DatabasePath); err != nil {
		db.Close()
		return nil, fmt.Errorf("supervisor: apply migrations: %w", err)
	}
	if err := storage.CheckVersion(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("supervisor: check schema version: %w", err)
	}

	retention, err := storage.NewRetention(db, cfg.RetentionDays)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("supervisor: init retention: %w", err)
	}

	writer := storage.NewWriter(db, cfg.BatchMaxSize, cfg.BatchMaxWait(), cfg.MaxQueueCapacity)
	reader := storage.NewReader(db)

	broadcaster := fanout.NewBroadcaster(reader, fanout.Config{
		HeartbeatInterval: cfg.Heartbeat(),
		SnapshotNodeCap:   cfg.SnapshotNodeCap,
		SnapshotPosCap:    cfg.SnapshotPosCap,
		SnapshotMsgCap:    cfg.SnapshotMsgCap,
	})

	channels := classifier.NewMemoryChannelIndex(nil, nil)
	clf := classifier.New(cfg.ChannelKeys, channels)

	sched, err := gocron.NewScheduler()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("supervisor: init scheduler: %w", err)
	}

	return &Supervisor{
		cfg:         cfg,
		db:          db,
		reader:      reader,
		writer:      writer,
		retention:   retention,
		broadcaster: broadcaster,
		classifier:  clf,
		dedupe:      dedupe.New(cfg.DedupeWindow(), 2*cfg.MaxQueueCapacity),
		ratelimit:   ratelimit.New(cfg.RateLimitWindow(), cfg.RateLimitMax, rateLimiterGCIdle),
		queue:       queue.New(cfg.MaxQueueCapacity),
		scheduler:   sched,
		dedupeIDFn:  dedupe.QueueID,
		drainStopCh: make(chan struct{}),
		drainDoneCh: make(chan struct{}),
	}, nil
}

// Start dials the broker, then brings up the broadcaster, writer, queue
// drain worker and broker subscription in the order the spec specifies.
func (s *Supervisor) Start() error {
	b, err := broker.DialWithTimeout(broker.Config{
		URL:               s.cfg.BrokerURL,
		Username:          s.cfg.BrokerUsername,
		Password:          s.cfg.BrokerPassword,
		ClientID:          s.cfg.ClientID,
		UseTLS:            s.cfg.UseTLS,
		ReconnectPeriodMs: s.cfg.ReconnectPeriodMs,
	}, brokerConnectTimeout)
	if err != nil {
		return fmt.Errorf("supervisor: broker connect: %w", err)
	}
	s.broker = b

	go s.broadcaster.Run()
	go s.writer.Run()
	go s.drainLoop()

	if err := s.retention.Start(); err != nil {
		log.Warnf("supervisor: retention scheduler not started: %v", err)
	}
	s.startRateLimiterGC()

	if err := s.broker.Subscribe(s.cfg.TopicPattern, s.onDelivery); err != nil {
		return fmt.Errorf("supervisor: broker subscribe: %w", err)
	}

	log.Infof("supervisor: started, subscribed to %q", s.cfg.TopicPattern)
	return nil
}

// startRateLimiterGC schedules the rate limiter's idle-source sweep
// every 5 minutes on the supervisor's own gocron scheduler, separate
// from the scheduler storage.Retention runs its daily job on.
func (s *Supervisor) startRateLimiterGC() {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(rateLimiterGCIdle),
		gocron.NewTask(func() {
			n := s.ratelimit.GC()
			if n > 0 {
				log.Debugf("supervisor: rate limiter GC removed %d idle sources", n)
			}
		}),
	)
	if err != nil {
		log.Warnf("supervisor: rate limiter GC job not scheduled: %v", err)
		return
	}
	s.scheduler.Start()
}

// RegisterRoutes mounts the websocket endpoint and a health probe on
// router. The prometheus metrics endpoint is mounted separately by
// cmd/meshwatch, which owns the promhttp handler wiring.
func (s *Supervisor) RegisterRoutes(router *mux.Router) {
	s.broadcaster.RegisterRoutes(router)
	router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
}

// Stop drains the queue (bounded by the configured shutdown timeout),
// flushes the writer, and closes every component in the order the spec
// specifies: broker subscription first, then queue drain, writer flush,
// broadcaster (with disconnect frames), database.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if s.broker != nil {
		s.broker.Close()
	}

	_ = s.scheduler.Shutdown()
	s.retention.Stop()

	deadline := time.Now().Add(s.cfg.ShutdownTimeout())
	close(s.drainStopCh)
	select {
	case <-s.drainDoneCh:
	case <-time.After(time.Until(deadline)):
		log.Warnf("supervisor: queue drain did not finish within %s", s.cfg.ShutdownTimeout())
	}

	remaining := s.queue.Dequeue(1 << 30)
	if len(remaining) > 0 {
		log.Warnf("supervisor: dropping %d buffered events at shutdown", len(remaining))
	}

	s.writer.Stop(time.Until(deadline))
	s.broadcaster.Stop()

	if err := s.db.Close(); err != nil {
		log.Warnf("supervisor: close database: %v", err)
	}

	log.Info("supervisor: shutdown complete")
}

// Stats reports the admission counters alongside queue/writer health for
// the metrics/health surfaces.
type Stats struct {
	Deduplicated uint64
	RateLimited  uint64
	Overflowed   uint64
	Queue        queue.Stats
	Writer       storage.Stats
}

func (s *Supervisor) Stats() Stats {
	s.statsMu.Lock()
	st := Stats{Deduplicated: s.deduplicated, RateLimited: s.rateLimited, Overflowed: s.overflowed}
	s.statsMu.Unlock()
	st.Queue = s.queue.Stats()
	st.Writer = s.writer.Stats()
	return st
}
