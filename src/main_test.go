package main

import (
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fundi/src/db"
	"fundi/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB     *gorm.DB
	Mock   sqlmock.Sqlmock
	Router *gin.Engine
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	sqldb, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqldb,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	return gormDB, mock
}

func (s *TestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	d, mock := NewMockDB()
	db.NewDB(d)
	s.DB = d
	s.Mock = mock

	router := setupRouter()
	mpesaWebhookRoutes(router)
	s.Router = router
}

func (s *TestSuite) TestHealthRoute() {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	s.Router.ServeHTTP(w, req)
	assert.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *TestSuite) TestSTKWebhookAppliesPayment() {
	escrowID := uuid.New()
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT .* FROM "escrow_payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "checkout_request_id", "amount", "commission_rate", "status"}).
			AddRow(escrowID, "ws_CO_191220191020363925", 1000.0, 0.10, string(types.ESCROW_PENDING)))
	s.Mock.ExpectExec(`UPDATE "escrow_payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectQuery(`INSERT INTO "escrow_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	s.Mock.ExpectCommit()

	payload := `{
		"Body": {
			"stkCallback": {
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1000.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "PhoneNumber", "Value": 254708374149}
					]
				}
			}
		}
	}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/webhooks/mpesa/stk", strings.NewReader(payload))
	s.Router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), int64(0), gjson.Get(w.Body.String(), "ResultCode").Int())
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestSTKWebhookReplayIsNoop() {
	escrowID := uuid.New()
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT .* FROM "escrow_payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "checkout_request_id", "amount", "status"}).
			AddRow(escrowID, "ws_CO_191220191020363925", 1000.0, string(types.ESCROW_COMPLETED)))
	s.Mock.ExpectCommit()

	payload := `{
		"Body": {
			"stkCallback": {
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully."
			}
		}
	}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/webhooks/mpesa/stk", strings.NewReader(payload))
	s.Router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestSTKWebhookRejectsMissingCheckoutID() {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/webhooks/mpesa/stk", strings.NewReader(`{}`))
	s.Router.ServeHTTP(w, req)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *TestSuite) TestB2CWebhookFinalizesPayout() {
	payoutID := uuid.New()
	s.Mock.ExpectQuery(`SELECT .* FROM "payouts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "payout_amount"}).
			AddRow(payoutID, string(types.PAYOUT_PROCESSING), 3500.0))
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "payouts"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	payload := `{
		"Result": {
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"ConversationID": "AG_20191219_00005797af5d7d75f652"
		}
	}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/webhooks/mpesa/b2c", strings.NewReader(payload))
	s.Router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

func TestRunSuite(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
