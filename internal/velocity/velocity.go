// Package velocity provides transfer velocity analysis.
package velocity

import (
	"sort"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// Options tunes the burst scan. Zero values fall back to a 24h window,
// 3 transfers and a 3000 total.
type Options struct {
	Window    time.Duration
	MinCount  int
	MinAmount float64
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = 24 * time.Hour
	}
	if o.MinCount <= 0 {
		o.MinCount = 3
	}
	if o.MinAmount <= 0 {
		o.MinAmount = 3000
	}
	return o
}

// Analyze finds each sender's busiest trailing window over the raw
// transfer rows and keeps the ones that reach the count or amount
// threshold. The window ending at a transfer includes every row up to
// Window earlier, boundary inclusive. Results order by transfer count,
// then total, then account id.
func Analyze(transfers []domain.Transfer, opts Options) []domain.VelocityRecord {
	opts = opts.withDefaults()

	bySender := make(map[string][]domain.Transfer)
	for _, t := range transfers {
		bySender[t.SenderID] = append(bySender[t.SenderID], t)
	}
	senders := make([]string, 0, len(bySender))
	for id := range bySender {
		senders = append(senders, id)
	}
	sort.Strings(senders)

	var records []domain.VelocityRecord
	for _, sender := range senders {
		rows := bySender[sender]
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		})

		var best domain.VelocityRecord
		lo, amount := 0, 0.0
		for i, row := range rows {
			amount += row.Amount
			cutoff := row.Timestamp.Add(-opts.Window)
			for rows[lo].Timestamp.Before(cutoff) {
				amount -= rows[lo].Amount
				lo++
			}
			count := i - lo + 1
			if count > best.TransferCount || (count == best.TransferCount && amount > best.TotalAmount) {
				best = domain.VelocityRecord{
					AccountID:     sender,
					WindowStart:   cutoff,
					WindowEnd:     row.Timestamp,
					TransferCount: count,
					TotalAmount:   amount,
				}
			}
		}
		if best.TransferCount >= opts.MinCount || best.TotalAmount >= opts.MinAmount {
			records = append(records, best)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.TransferCount != b.TransferCount {
			return a.TransferCount > b.TransferCount
		}
		if a.TotalAmount != b.TotalAmount {
			return a.TotalAmount > b.TotalAmount
		}
		return a.AccountID < b.AccountID
	})
	return records
}
