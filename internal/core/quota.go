package core

import (
	"github.com/echotwin/echotwin/internal/apperr"
	"github.com/echotwin/echotwin/internal/store"
)

// QuotaLedger tracks cumulative characters consumed per scope against that
// scope's limit. Commits are conditional single-statement increments, so two
// racing ingestions against a near-full quota cannot jointly overshoot.
type QuotaLedger struct {
	store *store.SQLiteStore
}

func NewQuotaLedger(s *store.SQLiteStore) *QuotaLedger {
	return &QuotaLedger{store: s}
}

// Usage returns the current counter and limit for a scope.
func (l *QuotaLedger) Usage(scope Scope) (used, limit int64, err error) {
	if scope.IsProject() {
		return l.store.ProjectUsage(scope.UID, scope.ProjectID)
	}
	return l.store.ProfileUsage(scope.UID)
}

// Reserve is the advisory gate run before any metadata is persisted. It
// rejects with the exact used/limit/attempted integers so a client can
// render "X/Y characters used".
func (l *QuotaLedger) Reserve(scope Scope, delta int64) error {
	used, limit, err := l.Usage(scope)
	if err != nil {
		return apperr.NewInternal(err)
	}
	if used+delta > limit {
		return apperr.NewQuotaExceeded(used, limit, delta)
	}
	return nil
}

// Commit applies the delta as an atomic conditional increment. A rejection
// here means another writer filled the scope between Reserve and Commit; the
// error carries fresh counter values.
func (l *QuotaLedger) Commit(scope Scope, delta int64) error {
	var applied bool
	var err error
	if scope.IsProject() {
		applied, err = l.store.AddProjectUsage(scope.UID, scope.ProjectID, delta)
	} else {
		applied, err = l.store.AddProfileUsage(scope.UID, delta)
	}
	if err != nil {
		return apperr.NewInternal(err)
	}
	if !applied {
		used, limit, uerr := l.Usage(scope)
		if uerr != nil {
			return apperr.NewInternal(uerr)
		}
		return apperr.NewQuotaExceeded(used, limit, delta)
	}
	return nil
}

// Release decrements the counter by an item's recorded character count. The
// recorded count, not the current text length, keeps the ledger conserved
// even if limits change later. Floored at zero.
func (l *QuotaLedger) Release(scope Scope, recordedCount int64) error {
	var err error
	if scope.IsProject() {
		err = l.store.ReleaseProjectUsage(scope.UID, scope.ProjectID, recordedCount)
	} else {
		err = l.store.ReleaseProfileUsage(scope.UID, recordedCount)
	}
	if err != nil {
		return apperr.NewInternal(err)
	}
	return nil
}
