/*
main.go - Batch CLI entry point

PURPOSE:
  Replays a CSV transaction stream and prints the resulting account state.
  The account CSV goes to stdout; rejected records and skipped rows go to
  stderr, so the output stays pipeable.

USAGE:
  payments [flags] <transactions.csv>

FLAGS:
  -strict   Abort on the first malformed row instead of skipping it
  -debug    Verbose logging

EXIT CODES:
  0  Stream exhausted; account state printed (rejected records are fine)
  1  Stream failure, unreadable input, or a malformed row in -strict mode

SEE ALSO:
  - csvio/reader.go: Row parsing and the lenient/strict policy
  - engine/processor.go: The state machine this drives
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/warp/payments-engine/csvio"
	"github.com/warp/payments-engine/engine"
	"github.com/warp/payments-engine/internal/logger"
)

func main() {
	strict := flag.Bool("strict", false, "abort on the first malformed row")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	log := logger.New(*debug)

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <transactions.csv>\n", os.Args[0])
		os.Exit(1)
	}

	file, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open input")
	}
	defer file.Close()

	reader := csvio.NewReader(file)
	reader.Strict = *strict
	reader.OnRowError = func(rowErr *csvio.RowError) {
		log.Warn().Int("row", rowErr.Line).Err(rowErr.Err).Msg("skipping malformed row")
	}

	proc := engine.NewProcessor(engine.NewLedger(), nil)

	outcomes, err := proc.Process(context.Background(), reader)
	for _, o := range outcomes {
		if o.Accepted() {
			continue
		}
		log.Warn().
			Str("type", string(o.Record.Kind)).
			Uint16("client", uint16(o.Record.Client)).
			Uint32("tx", uint32(o.Record.Tx)).
			Err(o.Err).
			Msg("ignoring transaction")
	}
	if err != nil {
		// State up to the failure is intentionally discarded: a partial
		// account report would be indistinguishable from a complete one.
		log.Fatal().Err(err).Msg("stream failure")
	}

	log.Debug().Int("records", len(outcomes)).Msg("stream exhausted")

	if err := csvio.WriteAccounts(os.Stdout, proc.Ledger().SnapshotAll()); err != nil {
		log.Fatal().Err(err).Msg("failed to write account state")
	}
}
