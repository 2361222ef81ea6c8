// Package repair backfills malformed leaderboard rows on the remote
// store. Rows written by older clients can lack the points counter or
// a usable display name; the repair pass scans the full table, builds
// defaults for what is missing, and submits them as one batch.
package repair

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/docshare/docsync/internal/record"
	"github.com/docshare/docsync/internal/remote"
)

// Result summarizes one repair pass.
type Result struct {
	Scanned   int // rows examined
	Malformed int // rows with at least one missing field
	Repaired  int // rows whose fixes were confirmed applied
}

// Repairer runs repair passes against a remote store.
type Repairer struct {
	remote remote.Store
	logger *log.Logger
}

// New creates a repairer. If logger is nil, a default logger writing to
// stderr is used.
func New(rs remote.Store, logger *log.Logger) *Repairer {
	if logger == nil {
		logger = log.New(os.Stderr, "[repair] ", log.LstdFlags)
	}
	return &Repairer{remote: rs, logger: logger}
}

// Run scans the leaderboard and backfills missing fields in one batch.
//
// A batch that only partially applies is reported, not retried: the
// fixes are idempotent defaults, so the caller reruns the pass and the
// scan simply finds fewer rows to fix. Result is valid even when err is
// non-nil.
func (r *Repairer) Run(ctx context.Context) (Result, error) {
	var res Result

	rows, err := r.remote.FetchAll(ctx, record.DomainLeaderboard, remote.Filter{})
	if err != nil {
		return res, fmt.Errorf("failed to scan leaderboard: %w", err)
	}
	res.Scanned = len(rows)

	var ops []remote.Op
	for _, row := range rows {
		fields := missingFields(row)
		if len(fields) == 0 {
			continue
		}
		res.Malformed++
		ops = append(ops, remote.Op{Domain: record.DomainLeaderboard, ID: row.ID, Fields: fields})
	}

	if len(ops) == 0 {
		r.logger.Printf("repair pass: %d rows scanned, nothing to fix", res.Scanned)
		return res, nil
	}

	err = r.remote.BatchWrite(ctx, ops)
	if err == nil {
		res.Repaired = len(ops)
		r.logger.Printf("repair pass: %d rows scanned, %d repaired", res.Scanned, res.Repaired)
		return res, nil
	}

	var pErr *remote.PartialBatchError
	if errors.As(err, &pErr) {
		if pErr.Applied >= 0 {
			res.Repaired = pErr.Applied
		}
		r.logger.Printf("WARNING: repair batch landed partially (%d of %d); rerun to finish", res.Repaired, len(ops))
		return res, fmt.Errorf("repair batch incomplete: %w", err)
	}
	return res, fmt.Errorf("repair batch failed: %w", err)
}

// missingFields returns the default values a row needs, or nil when the
// row is healthy.
func missingFields(row remote.Record) map[string]any {
	fields := make(map[string]any)

	if _, ok := record.NumberField(row.Fields, "points"); !ok {
		fields["points"] = 0
	}

	name, _ := record.StringField(row.Fields, "display_name")
	if name == "" {
		email, _ := record.StringField(row.Fields, "email")
		phone, _ := record.StringField(row.Fields, "phone")
		fields["display_name"] = record.ResolveDisplayName("", email, phone, row.ID)
	}

	if _, ok := record.StringField(row.Fields, "email"); !ok {
		fields["email"] = ""
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}
