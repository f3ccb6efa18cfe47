// Package report renders account snapshots.
package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/arkantrust/payments-engine/models"
)

var header = []string{"client", "available", "held", "total", "locked"}

// WriteAccounts writes one CSV row per account, in the order given, with
// every amount at four fractional digits.
func WriteAccounts(w io.Writer, accounts []models.Account) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, acc := range accounts {
		row := []string{
			strconv.FormatUint(uint64(acc.Client), 10),
			acc.Available.String(),
			acc.Held.String(),
			acc.Total().String(),
			strconv.FormatBool(acc.Locked),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
