// writer.go - Final account state as CSV.
package csvio

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/warp/payments-engine/engine"
)

// WriteAccounts emits one row per account with a header:
//
//	client,available,held,total,locked
//
// Amounts carry up to 4 fractional digits with trailing zeros trimmed.
// Callers pass Ledger.SnapshotAll() output, which is already in ascending
// client order.
func WriteAccounts(w io.Writer, snaps []engine.AccountSnapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"client", "available", "held", "total", "locked"}); err != nil {
		return err
	}
	for _, s := range snaps {
		row := []string{
			strconv.FormatUint(uint64(s.Client), 10),
			engine.FormatAmount(s.Available),
			engine.FormatAmount(s.Held),
			engine.FormatAmount(s.Total),
			strconv.FormatBool(s.Locked),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
