package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/app/uow"
)

type execLog struct {
	stmts []string
	args  [][]any
	fail  map[string]error
}

func (l *execLog) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	l.stmts = append(l.stmts, query)
	l.args = append(l.args, args)
	return nil, l.fail[query]
}

func (l *execLog) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	panic("unexpected query")
}

func (l *execLog) QueryRowContext(context.Context, string, ...any) *sql.Row {
	panic("unexpected query")
}

const advisoryLock = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

func TestLockListingScopesTimeoutToAdvisoryLock(t *testing.T) {
	log := &execLog{}
	require.NoError(t, lockListing(context.Background(), log, "lst-1", 1500*time.Millisecond))
	assert.Equal(t, []string{
		"SET LOCAL lock_timeout = '1500ms'",
		advisoryLock,
		"SET LOCAL lock_timeout = 0",
	}, log.stmts)
	assert.Equal(t, []any{"lst-1"}, log.args[1])
}

func TestLockListingWithoutBoundWaits(t *testing.T) {
	log := &execLog{}
	require.NoError(t, lockListing(context.Background(), log, "lst-1", 0))
	assert.Equal(t, []string{advisoryLock}, log.stmts)
}

func TestLockListingTimeoutIsBusy(t *testing.T) {
	log := &execLog{fail: map[string]error{
		advisoryLock: &pq.Error{Code: codeLockNotAvailable, Message: "canceling statement due to lock timeout"},
	}}
	err := lockListing(context.Background(), log, "lst-1", time.Second)
	require.ErrorIs(t, err, uow.ErrBusy)
	assert.Len(t, log.stmts, 2)
}
