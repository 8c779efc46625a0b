/*
main.go - HTTP server entry point

PURPOSE:
  Runs the payments engine as a long-lived service: transactions arrive
  over HTTP instead of a batch file, and the journal persists outcomes
  for audit queries.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Open the journal (SQLite, or in-memory when -db is empty)
  3. Build the processor and HTTP handler
  4. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      Journal database path (default: payments.db)
           Use ":memory:" for SQLite in-memory, or "" to skip SQLite
           entirely and journal in process memory.
  -debug   Verbose logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  in-flight requests, close the journal, exit.

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Durable journal
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payments-engine/api"
	"github.com/warp/payments-engine/engine"
	"github.com/warp/payments-engine/internal/logger"
	"github.com/warp/payments-engine/store/sqlite"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "payments.db", "journal database path (\":memory:\" or empty for in-process)")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	log := logger.New(*debug)

	// Journal
	var journal engine.Journal
	if *dbPath == "" {
		journal = engine.NewMemoryJournal()
		log.Info().Msg("journaling in process memory")
	} else {
		sqliteJournal, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open journal database")
		}
		defer sqliteJournal.Close()
		journal = sqliteJournal
		log.Info().Str("db", *dbPath).Msg("journaling to sqlite")
	}

	// Engine
	proc := engine.NewProcessor(engine.NewLedger(), journal)
	proc.OnJournalError = func(err error) {
		log.Error().Err(err).Msg("failed to journal outcome")
	}

	// HTTP
	handler := api.NewHandler(proc, journal, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
