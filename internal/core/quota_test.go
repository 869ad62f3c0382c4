package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echotwin/echotwin/internal/apperr"
)

func TestQuotaBoundaryExactFit(t *testing.T) {
	s := newTestStore(t)
	newTestUser(t, s, "boundary-user", 30000, 30000)
	ledger := NewQuotaLedger(s)
	scope := ProfileScope("boundary-user")

	require.NoError(t, ledger.Commit(scope, 29990))

	// 29990 + 10 == 30000: authorized, counter lands exactly on the limit.
	require.NoError(t, ledger.Reserve(scope, 10))
	require.NoError(t, ledger.Commit(scope, 10))

	used, limit, err := ledger.Usage(scope)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), used)
	assert.Equal(t, int64(30000), limit)
}

func TestQuotaBoundaryOverBy1(t *testing.T) {
	s := newTestStore(t)
	newTestUser(t, s, "boundary-user", 30000, 30000)
	ledger := NewQuotaLedger(s)
	scope := ProfileScope("boundary-user")

	require.NoError(t, ledger.Commit(scope, 29990))

	// 29990 + 11 > 30000: rejected with the exact counter values, and the
	// counter does not move.
	err := ledger.Reserve(scope, 11)
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.CodeQuotaExceeded, ae.Code)
	assert.Equal(t, int64(29990), ae.Details["used"])
	assert.Equal(t, int64(30000), ae.Details["limit"])
	assert.Equal(t, int64(11), ae.Details["attempted"])

	err = ledger.Commit(scope, 11)
	assert.True(t, apperr.IsCode(err, apperr.CodeQuotaExceeded))

	used, _, err := ledger.Usage(scope)
	require.NoError(t, err)
	assert.Equal(t, int64(29990), used)
}

func TestQuotaProjectScopeIndependentOfProfile(t *testing.T) {
	s := newTestStore(t)
	newTestUser(t, s, "multi-user", 100, 1000)
	ledger := NewQuotaLedger(s)

	profile := ProfileScope("multi-user")
	project := ProjectScope("multi-user", "proj-1")

	require.NoError(t, ledger.Commit(profile, 100))

	// The profile scope is full; the project scope has its own counter and
	// its own limit.
	assert.True(t, apperr.IsCode(ledger.Reserve(profile, 1), apperr.CodeQuotaExceeded))
	require.NoError(t, ledger.Reserve(project, 500))
	require.NoError(t, ledger.Commit(project, 500))

	used, limit, err := ledger.Usage(project)
	require.NoError(t, err)
	assert.Equal(t, int64(500), used)
	assert.Equal(t, int64(1000), limit)
}

func TestQuotaPerProjectCounters(t *testing.T) {
	s := newTestStore(t)
	newTestUser(t, s, "proj-user", 30000, 600)
	ledger := NewQuotaLedger(s)

	a := ProjectScope("proj-user", "proj-a")
	b := ProjectScope("proj-user", "proj-b")

	require.NoError(t, ledger.Commit(a, 600))

	// Project A is full; project B starts fresh against the same per-project
	// limit.
	assert.True(t, apperr.IsCode(ledger.Commit(a, 1), apperr.CodeQuotaExceeded))
	require.NoError(t, ledger.Commit(b, 600))
}

func TestQuotaReleaseFloorsAtZero(t *testing.T) {
	s := newTestStore(t)
	newTestUser(t, s, "release-user", 1000, 1000)
	ledger := NewQuotaLedger(s)
	scope := ProfileScope("release-user")

	require.NoError(t, ledger.Commit(scope, 300))
	require.NoError(t, ledger.Release(scope, 500))

	used, _, err := ledger.Usage(scope)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
}

func TestQuotaConservation(t *testing.T) {
	s := newTestStore(t)
	newTestUser(t, s, "conserve-user", 1000, 1000)
	ledger := NewQuotaLedger(s)
	scope := ProfileScope("conserve-user")

	deltas := []int64{120, 45, 333}
	var sum int64
	for _, d := range deltas {
		require.NoError(t, ledger.Commit(scope, d))
		sum += d
	}
	used, _, err := ledger.Usage(scope)
	require.NoError(t, err)
	assert.Equal(t, sum, used)

	for _, d := range deltas {
		require.NoError(t, ledger.Release(scope, d))
	}
	used, _, err = ledger.Usage(scope)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
}
