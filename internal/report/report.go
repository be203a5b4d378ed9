// Package report implements the periodic progress reporter: an external
// collaborator that logs block and transaction counts at a fixed
// interval using structured logrus fields.
package report

import (
	"time"

	"github.com/chainbit-io/chainbit/internal/shutdown"
	"github.com/chainbit-io/chainbit/internal/store"
	"github.com/sirupsen/logrus"
)

// Reporter wakes every period and logs the database's block and
// transaction counts.
type Reporter struct {
	db     store.Reader
	period time.Duration
	log    *logrus.Entry
}

// New returns a Reporter that reads db every period.
func New(db store.Reader, period time.Duration, log *logrus.Entry) *Reporter {
	return &Reporter{db: db, period: period, log: log}
}

// Run is the reporter's main loop.
func (r *Reporter) Run(handle *shutdown.Handle) {
	defer handle.Done()

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-handle.Context().Done():
			return
		case <-ticker.C:
			r.log.WithFields(logrus.Fields{
				"processed_blocks":       r.db.BlockCount(),
				"processed_transactions": r.db.TransactionCount(),
			}).Info("report: progress")
		}
	}
}
