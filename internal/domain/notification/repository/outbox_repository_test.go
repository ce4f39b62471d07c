package repository

import (
	"context"
	"testing"
	"time"
	"course_market/internal/domain/notification/model"
	"course_market/pkg/database/dbtest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueIgnoresDuplicates(t *testing.T) {
	db, mock := dbtest.NewMockDB(t)
	repo := NewOutboxRepository(db)

	e, err := model.NewEvent("7d5c2c56-58b8-4a43-9b0b-5b8a1d2d4e11", model.EventPaymentSucceeded, map[string]string{"orderCode": "x"}, time.Now())
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO "outbox_events" .* ON CONFLICT \("aggregate_id","event_type"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Enqueue(context.Background(), e))
	assert.NotEmpty(t, e.ID)
}

func TestClaimPending(t *testing.T) {
	db, mock := dbtest.NewMockDB(t)
	repo := NewOutboxRepository(db)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "status", "attempts", "available_at"}).
		AddRow("e-1", "o-1", model.EventPaymentSucceeded, []byte(`{}`), "PENDING", 0, now).
		AddRow("e-2", "o-1", model.EventPaymentReceipt, []byte(`{}`), "PENDING", 1, now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "outbox_events" WHERE status = \$1 AND available_at <= \$2 ORDER BY available_at LIMIT \$3 FOR UPDATE SKIP LOCKED`).
		WithArgs(model.OutboxPending, now, 10).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE "outbox_events" SET "available_at"=\$1,"updated_at"=\$2 WHERE id IN \(\$3,\$4\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	events, err := repo.ClaimPending(context.Background(), 10, time.Minute, now)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e-1", events[0].ID)
	assert.Equal(t, model.EventPaymentReceipt, events[1].EventType)
}

func TestClaimPendingEmpty(t *testing.T) {
	db, mock := dbtest.NewMockDB(t)
	repo := NewOutboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "outbox_events"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	events, err := repo.ClaimPending(context.Background(), 10, time.Minute, time.Now())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMarkFailedTruncatesError(t *testing.T) {
	db, mock := dbtest.NewMockDB(t)
	repo := NewOutboxRepository(db)

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}

	mock.ExpectExec(`UPDATE "outbox_events" SET .*"status"=.* WHERE id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.MarkFailed(context.Background(), "e-1", 5, string(long)))
	assert.Len(t, truncate(string(long), 512), 512)
}

func TestCountPending(t *testing.T) {
	db, mock := dbtest.NewMockDB(t)
	repo := NewOutboxRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "outbox_events" WHERE status = \$1`).
		WithArgs(model.OutboxPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
