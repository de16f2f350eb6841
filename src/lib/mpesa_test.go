package lib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fundi/src/types"

	"github.com/stretchr/testify/assert"
)

func stubDaraja(t *testing.T, handler http.HandlerFunc) *DarajaClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			w.Write([]byte(`{"access_token":"test-token","expires_in":"3599"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewDarajaClient(srv.URL, 2*time.Second)
}

func TestInitiateCharge(t *testing.T) {
	c := stubDaraja(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mpesa/stkpush/v1/processrequest", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"MerchantRequestID":"1","CheckoutRequestID":"ws_CO_42","ResponseCode":"0"}`))
	})
	id, err := c.InitiateCharge(context.Background(), "254712345678", 1000, "BK-20260829-000001")
	assert.NoError(t, err)
	assert.Equal(t, "ws_CO_42", id)
}

func TestInitiateChargeRejected(t *testing.T) {
	c := stubDaraja(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessage":"Invalid PhoneNumber"}`))
	})
	_, err := c.InitiateCharge(context.Background(), "bad", 1000, "ref")
	assert.ErrorIs(t, err, types.ErrGatewayRejected)
}

func TestInitiateTransferTimeout(t *testing.T) {
	c := stubDaraja(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"ConversationID":"AG_1"}`))
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.InitiateTransfer(ctx, "254712345678", 3500, "payout-1")
	assert.ErrorIs(t, err, types.ErrGatewayTimeout)
}

func TestQueryTransfer(t *testing.T) {
	c := stubDaraja(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ResultCode":0,"ResultDesc":"The service request is processed successfully."}`))
	})
	status, err := c.QueryTransfer(context.Background(), "AG_1")
	assert.NoError(t, err)
	assert.Equal(t, TransferStatusCompleted, status)

	c = stubDaraja(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ResultCode":2001,"ResultDesc":"The initiator information is invalid."}`))
	})
	status, err = c.QueryTransfer(context.Background(), "AG_1")
	assert.NoError(t, err)
	assert.Equal(t, TransferStatusFailed, status)

	c = stubDaraja(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"OriginatorConversationID":"x"}`))
	})
	status, err = c.QueryTransfer(context.Background(), "AG_1")
	assert.NoError(t, err)
	assert.Equal(t, TransferStatusPending, status)
}

func TestNormalizeSTKCallback(t *testing.T) {
	payload := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1000.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20191219102115},
						{"Name": "PhoneNumber", "Value": 254708374149}
					]
				}
			}
		}
	}`)
	cb := NormalizeSTKCallback(payload)
	assert.Equal(t, "ws_CO_191220191020363925", cb.CheckoutRequestID)
	assert.Equal(t, int64(0), cb.ResultCode)
	assert.Equal(t, float64(1000), cb.Amount)
	assert.Equal(t, "NLJ7RT61SV", cb.ReceiptNumber)
	assert.Equal(t, "254708374149", cb.Phone)
}

func TestNormalizeSTKCallbackFailure(t *testing.T) {
	payload := []byte(`{
		"Body": {
			"stkCallback": {
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`)
	cb := NormalizeSTKCallback(payload)
	assert.Equal(t, "ws_CO_1", cb.CheckoutRequestID)
	assert.Equal(t, int64(1032), cb.ResultCode)
	assert.Zero(t, cb.Amount)
	assert.Empty(t, cb.ReceiptNumber)
}

func TestNormalizeB2CCallback(t *testing.T) {
	payload := []byte(`{
		"Result": {
			"ResultType": 0,
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"ConversationID": "AG_20191219_00005797af5d7d75f652"
		}
	}`)
	cb := NormalizeB2CCallback(payload)
	assert.Equal(t, "AG_20191219_00005797af5d7d75f652", cb.TransferID)
	assert.Equal(t, int64(0), cb.ResultCode)
	assert.Empty(t, cb.FailureReason)

	failed := NormalizeB2CCallback([]byte(`{"Result":{"ConversationID":"AG_2","ResultCode":2001,"ResultDesc":"insufficient funds"}}`))
	assert.Equal(t, int64(2001), failed.ResultCode)
	assert.Equal(t, "insufficient funds", failed.FailureReason)
}
