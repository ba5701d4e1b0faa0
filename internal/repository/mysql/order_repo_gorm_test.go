package mysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (repository.OrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	return NewOrderRepository(gormDB, zap.NewNop()), mock
}

func TestCompareAndSetStatus(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		expected     bool
	}{
		{name: "status still matches", rowsAffected: 1, expected: true},
		{name: "status already moved", rowsAffected: 0, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupMockDB(t)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))
			mock.ExpectCommit()

			ok, err := repo.CompareAndSetStatus(context.Background(), "TLG-0001",
				domain.StatusProcessing, domain.StatusShipping, time.Now())

			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFindByCode_NotFound(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `orders` WHERE order_code = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	o, err := repo.FindByCode(context.Background(), "TLG-NOPE")

	assert.NoError(t, err)
	assert.Nil(t, o)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayment_StatusMovedRollsBack(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payment_transactions`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	txn := &domain.PaymentTransaction{
		OrderCode:            "TLG-0001",
		GatewayTransactionID: "ch_1",
		Tranche:              domain.TrancheDeposit,
		Amount:               3_000_000,
		Status:               domain.TxSucceeded,
		SucceededKey:         domain.SucceededKeyFor("TLG-0001", domain.TrancheDeposit),
		ReceivedAt:           time.Now(),
	}
	ok, err := repo.ApplyPayment(context.Background(), txn, domain.StatusPendingPayment, domain.StatusDepositPaid)

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendTransaction_DuplicateKey(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payment_transactions`")).
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := repo.AppendTransaction(context.Background(), &domain.PaymentTransaction{
		OrderCode:    "TLG-0001",
		Tranche:      domain.TrancheFull,
		Amount:       100,
		Status:       domain.TxSucceeded,
		SucceededKey: domain.SucceededKeyFor("TLG-0001", domain.TrancheFull),
		ReceivedAt:   time.Now(),
	})

	assert.ErrorIs(t, err, repository.ErrDuplicateTranche)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusUpdates(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	u := statusUpdates(domain.StatusDepositPaid, at)
	assert.Equal(t, at, u["deposit_paid_at"])
	assert.Equal(t, domain.StatusDepositPaid, u["status"])

	u = statusUpdates(domain.StatusProcessing, at)
	assert.NotContains(t, u, "deposit_paid_at")
}
