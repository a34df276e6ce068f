package fulfillment

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/EventFox/app/models"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewRepository(gdb), mock
}

func TestDecrementTickets(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"ticket left", 1, true},
		{"sold out", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectExec(regexp.QuoteMeta("UPDATE `events` SET `available_tickets`=available_tickets - ?")).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.DecrementTickets(context.Background(), 7)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransitionPaymentOnlyFromPending(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `payments` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `payments` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := repo.TransitionPayment(context.Background(), "live", "TX100", models.PaymentStatusCompleted, "")
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.TransitionPayment(context.Background(), "live", "TX100", models.PaymentStatusFailed, "declined")
	require.NoError(t, err)
	assert.False(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettledTransactionIDs(t *testing.T) {
	repo, mock := newMockRepo(t)

	got, err := repo.SettledTransactionIDs(context.Background(), "live", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `transaction_id` FROM `payments`") + ".*status IN").
		WithArgs("live", "TX1", "TX2", models.PaymentStatusCompleted, models.PaymentStatusFailed).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id"}).AddRow("TX1"))

	got, err = repo.SettledTransactionIDs(context.Background(), "live", []string{"TX1", "TX2"})
	require.NoError(t, err)
	assert.Contains(t, got, "TX1")
	assert.NotContains(t, got, "TX2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindStoragePlanNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `storage_plans`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindStoragePlan(context.Background(), 3)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
