package common

import (
	"context"
	"sync/atomic"
	"testing"

	"fundi/src/models"
	"fundi/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakePaymentGateway struct {
	calls      int32
	checkoutID string
	err        error
}

func (f *fakePaymentGateway) InitiateCharge(ctx context.Context, phone string, amount float64, reference string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.checkoutID, f.err
}

func TestEscrowRecompute(t *testing.T) {
	e := models.EscrowPayment{Amount: 1000, CommissionRate: 0.10}
	e.Recompute()
	assert.Equal(t, float64(100), e.CommissionAmount)
	assert.Equal(t, float64(900), e.ProviderAmount)
	assert.Equal(t, e.Amount, e.CommissionAmount+e.ProviderAmount)

	e.CommissionRate = 0.15
	e.Recompute()
	assert.Equal(t, float64(150), e.CommissionAmount)
	assert.Equal(t, float64(850), e.ProviderAmount)
	assert.Equal(t, e.Amount, e.CommissionAmount+e.ProviderAmount)
}

func TestRecordInboundPaymentReplayIsNoop(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "escrow_payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "checkout_request_id", "amount", "status"}).
			AddRow(escrowID, "ws_CO_123", 1000.0, string(types.ESCROW_COMPLETED)))
	mock.ExpectCommit()

	escrow, err := RecordInboundPayment(gormDB, types.PaymentCallback{
		CheckoutRequestID: "ws_CO_123",
		ReceiptNumber:     "QK12XYZ",
		Amount:            1000,
		ResultCode:        0,
	})
	assert.NoError(t, err)
	assert.Equal(t, types.ESCROW_COMPLETED, escrow.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInboundPaymentAppliesCallback(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "escrow_payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "checkout_request_id", "amount", "commission_rate", "status"}).
			AddRow(escrowID, "ws_CO_456", 1000.0, 0.10, string(types.ESCROW_PENDING)))
	mock.ExpectExec(`UPDATE "escrow_payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "escrow_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	escrow, err := RecordInboundPayment(gormDB, types.PaymentCallback{
		CheckoutRequestID: "ws_CO_456",
		ReceiptNumber:     "QK99ABC",
		Amount:            1000,
		ResultCode:        0,
	})
	assert.NoError(t, err)
	assert.Equal(t, types.ESCROW_COMPLETED, escrow.Status)
	assert.Equal(t, float64(100), escrow.CommissionAmount)
	assert.Equal(t, float64(900), escrow.ProviderAmount)
	assert.Equal(t, "QK99ABC", *escrow.MpesaReceiptNumber)
}

func TestRecordInboundPaymentFailure(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "escrow_payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "checkout_request_id", "amount", "status"}).
			AddRow(escrowID, "ws_CO_789", 1000.0, string(types.ESCROW_PENDING)))
	mock.ExpectExec(`UPDATE "escrow_payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "escrow_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	escrow, err := RecordInboundPayment(gormDB, types.PaymentCallback{
		CheckoutRequestID: "ws_CO_789",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	})
	assert.NoError(t, err)
	assert.Equal(t, types.ESCROW_FAILED, escrow.Status)
}

func TestCreateEscrowForBooking(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_number", "status", "total_amount"}).
			AddRow(42, "BK-20260815-0042", string(types.BOOKING_CONFIRMED), 1000.0))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "escrow_payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(escrowID))
	mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "escrow_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	gw := &fakePaymentGateway{checkoutID: "ws_CO_001"}
	escrow, err := CreateEscrowForBooking(gormDB, gw, 42, "0712345678", "client:7")
	assert.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gw.calls))
	assert.Equal(t, "ws_CO_001", escrow.CheckoutRequestID)
	assert.Equal(t, "254712345678", escrow.PayerPhone)
	assert.Equal(t, types.ESCROW_PENDING, escrow.Status)
	assert.Equal(t, escrow.Amount, escrow.CommissionAmount+escrow.ProviderAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEscrowForBookingAlreadyPaid(t *testing.T) {
	gormDB, mock := newMockDB(t)
	existing := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_number", "status", "total_amount", "escrow_payment_id"}).
			AddRow(42, "BK-20260815-0042", string(types.BOOKING_CONFIRMED), 1000.0, existing))

	gw := &fakePaymentGateway{checkoutID: "ws_CO_002"}
	_, err := CreateEscrowForBooking(gormDB, gw, 42, "0712345678", "client:7")
	assert.ErrorIs(t, err, types.ErrInvalidState)
	assert.Equal(t, int32(0), atomic.LoadInt32(&gw.calls))
}

func TestCreateEscrowForBookingBackLinkRace(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()

	// The booking looked unpaid at read time, but another charge back-linked
	// first. The conditional update matches no row and the whole insert rolls
	// back, so only one escrow row survives.
	mock.ExpectQuery(`SELECT .* FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_number", "status", "total_amount"}).
			AddRow(42, "BK-20260815-0042", string(types.BOOKING_CONFIRMED), 1000.0))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "escrow_payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(escrowID))
	mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	gw := &fakePaymentGateway{checkoutID: "ws_CO_003"}
	_, err := CreateEscrowForBooking(gormDB, gw, 42, "0712345678", "client:7")
	assert.ErrorIs(t, err, types.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDispute(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "escrow_payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "escrow_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := OpenDispute(gormDB, escrowID, "work not finished", "client:7")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDisputeRequiresCompleted(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "escrow_payments"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := OpenDispute(gormDB, escrowID, "work not finished", "client:7")
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestResolveDispute(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "escrow_payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "escrow_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := ResolveDispute(gormDB, escrowID, "provider completed the work", string(types.ESCROW_COMPLETED), "admin:1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveDisputeNotDisputed(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "escrow_payments"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := ResolveDispute(gormDB, escrowID, "refund the client", string(types.ESCROW_FAILED), "admin:1")
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestReleaseEscrowPromotesPayout(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()
	payoutID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "escrow_payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "amount", "status"}).
			AddRow(escrowID, 42, 1000.0, string(types.ESCROW_COMPLETED)))
	mock.ExpectExec(`UPDATE "escrow_payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "payouts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "status"}).
			AddRow(payoutID, 42, string(types.PAYOUT_AWAITING_PAYMENT)))
	mock.ExpectExec(`UPDATE "payouts"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "escrow_payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "escrow_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := ReleaseEscrow(gormDB, escrowID, types.ReleaseEscrowRequestBody{}, "client:7")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseEscrowRequiresCompleted(t *testing.T) {
	gormDB, mock := newMockDB(t)
	escrowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "escrow_payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "amount", "status"}).
			AddRow(escrowID, 42, 1000.0, string(types.ESCROW_PENDING)))
	mock.ExpectExec(`UPDATE "escrow_payments"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := ReleaseEscrow(gormDB, escrowID, types.ReleaseEscrowRequestBody{}, "client:7")
	assert.ErrorIs(t, err, types.ErrInvalidState)
}
