// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshtastic/meshwatch/internal/config"
	"github.com/meshtastic/meshwatch/internal/log"
	"github.com/meshtastic/meshwatch/internal/runtimeEnv"
	"github.com/meshtastic/meshwatch/internal/supervisor"
)

func main() {
	var flagConfigFile string
	var flagLogLevel string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the default config options by those specified in `config.json`")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "One of debug, info, warn, err")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	log.SetLogLevel(flagLogLevel)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	_ = godotenv.Load() // best-effort: no .env file is not an error

	config.Init(flagConfigFile)

	sup, err := supervisor.New(config.Keys)
	if err != nil {
		log.Fatalf("startup failed: %s", err.Error())
	}

	r := mux.NewRouter()
	sup.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	handler := handlers.CustomLoggingHandler(os.Stderr, r, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Debugf("%s %s (%d, %dms)",
			params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, time.Since(params.TimeStamp).Milliseconds())
	})

	var wg sync.WaitGroup
	httpServer := http.Server{
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 0, // the /ws endpoint is long-lived; no blanket write deadline at this layer
		Handler:      handler,
		Addr:         config.Keys.ListenAddr,
	}

	listener, err := net.Listen("tcp", config.Keys.ListenAddr)
	if err != nil {
		log.Fatalf("listen on %s: %s", config.Keys.ListenAddr, err.Error())
	}

	if err := sup.Start(); err != nil {
		log.Fatalf("supervisor start failed: %s", err.Error())
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	wg.Add(1)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer wg.Done()
		<-sigs
		runtimeEnv.SystemdNotifiy(false, "shutting down")
		log.Info("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), config.Keys.ShutdownTimeout())
		defer cancel()
		_ = httpServer.Shutdown(ctx)

		sup.Stop()
	}()

	runtimeEnv.SystemdNotifiy(true, "running")
	wg.Wait()
	log.Info("graceful shutdown complete")
}
