package lib

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"fundi/src/config"
	"fundi/src/types"

	"github.com/tidwall/gjson"
)

// PaymentGateway collects an inbound client payment (STK push).
type PaymentGateway interface {
	InitiateCharge(ctx context.Context, phone string, amount float64, reference string) (string, error)
}

// TransferGateway moves funds out to a provider (B2C). QueryTransfer exists
// for reconciling unknown-outcome calls; a timed-out transfer must be
// queried, never re-fired.
type TransferGateway interface {
	InitiateTransfer(ctx context.Context, recipient string, amount float64, reference string) (string, error)
	QueryTransfer(ctx context.Context, transferID string) (string, error)
}

const (
	TransferStatusCompleted = "completed"
	TransferStatusFailed    = "failed"
	TransferStatusPending   = "pending"
)

type DarajaClient struct {
	inner *http.Client

	baseURL            string
	consumerKey        string
	consumerSecret     string
	shortCode          string
	passkey            string
	initiatorName      string
	securityCredential string
	callbackURL        string
}

var darajaClient *DarajaClient

func GetDarajaClient() *DarajaClient {
	if darajaClient != nil {
		return darajaClient
	}
	c := &DarajaClient{
		inner:              &http.Client{Timeout: config.GatewayTimeout()},
		baseURL:            os.Getenv("DARAJA_BASE_URL"),
		consumerKey:        os.Getenv("DARAJA_CONSUMER_KEY"),
		consumerSecret:     os.Getenv("DARAJA_CONSUMER_SECRET"),
		shortCode:          os.Getenv("DARAJA_SHORT_CODE"),
		passkey:            os.Getenv("DARAJA_PASSKEY"),
		initiatorName:      os.Getenv("DARAJA_INITIATOR_NAME"),
		securityCredential: os.Getenv("DARAJA_SECURITY_CREDENTIAL"),
		callbackURL:        os.Getenv("DARAJA_CALLBACK_URL"),
	}
	darajaClient = c
	return c
}

// NewDarajaClient replaces the singleton, used by tests to point the client
// at a stub server.
func NewDarajaClient(baseURL string, timeout time.Duration) *DarajaClient {
	c := &DarajaClient{
		inner:   &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
	darajaClient = c
	return c
}

func (c *DarajaClient) accessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	res, err := c.inner.Do(req)
	if err != nil {
		return "", classifyGatewayErr(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", fmt.Errorf("%w: no access token in response", types.ErrGatewayRejected)
	}
	return token, nil
}

func (c *DarajaClient) post(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.inner.Do(req)
	if err != nil {
		return nil, classifyGatewayErr(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		desc := gjson.GetBytes(body, "errorMessage").String()
		return nil, fmt.Errorf("%w: %s (%d)", types.ErrGatewayRejected, desc, res.StatusCode)
	}
	return body, nil
}

func (c *DarajaClient) InitiateCharge(ctx context.Context, phone string, amount float64, reference string) (string, error) {
	ts := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passkey + ts))
	body, err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", map[string]any{
		"BusinessShortCode": c.shortCode,
		"Password":          password,
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount,
		"PartyA":            phone,
		"PartyB":            c.shortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.callbackURL + "/webhooks/mpesa/stk",
		"AccountReference":  reference,
		"TransactionDesc":   reference,
	})
	if err != nil {
		return "", err
	}
	checkoutId := gjson.GetBytes(body, "CheckoutRequestID").String()
	if checkoutId == "" {
		return "", fmt.Errorf("%w: missing CheckoutRequestID", types.ErrGatewayRejected)
	}
	return checkoutId, nil
}

func (c *DarajaClient) InitiateTransfer(ctx context.Context, recipient string, amount float64, reference string) (string, error) {
	body, err := c.post(ctx, "/mpesa/b2c/v1/paymentrequest", map[string]any{
		"InitiatorName":      c.initiatorName,
		"SecurityCredential": c.securityCredential,
		"CommandID":          "BusinessPayment",
		"Amount":             amount,
		"PartyA":             c.shortCode,
		"PartyB":             recipient,
		"Remarks":            reference,
		"QueueTimeOutURL":    c.callbackURL + "/webhooks/mpesa/b2c/timeout",
		"ResultURL":          c.callbackURL + "/webhooks/mpesa/b2c",
		"Occasion":           reference,
	})
	if err != nil {
		return "", err
	}
	transferId := gjson.GetBytes(body, "ConversationID").String()
	if transferId == "" {
		return "", fmt.Errorf("%w: missing ConversationID", types.ErrGatewayRejected)
	}
	return transferId, nil
}

func (c *DarajaClient) QueryTransfer(ctx context.Context, transferID string) (string, error) {
	body, err := c.post(ctx, "/mpesa/transactionstatus/v1/query", map[string]any{
		"Initiator":          c.initiatorName,
		"SecurityCredential": c.securityCredential,
		"CommandID":          "TransactionStatusQuery",
		"TransactionID":      transferID,
		"PartyA":             c.shortCode,
		"IdentifierType":     "4",
		"ResultURL":          c.callbackURL + "/webhooks/mpesa/status",
		"QueueTimeOutURL":    c.callbackURL + "/webhooks/mpesa/status/timeout",
		"Remarks":            "reconciliation",
	})
	if err != nil {
		return "", err
	}
	code := gjson.GetBytes(body, "ResultCode").Int()
	switch {
	case gjson.GetBytes(body, "ResultCode").Exists() && code == 0:
		return TransferStatusCompleted, nil
	case gjson.GetBytes(body, "ResultCode").Exists():
		return TransferStatusFailed, nil
	default:
		return TransferStatusPending, nil
	}
}

// classifyGatewayErr separates unknown-outcome timeouts from hard failures.
func classifyGatewayErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ErrGatewayTimeout
	}
	log.Printf("[daraja] gateway error: %s\n", err.Error())
	return fmt.Errorf("%w: %s", types.ErrGatewayRejected, err.Error())
}

// NormalizeSTKCallback flattens the nested daraja STK push result into the
// shape the escrow tracker consumes.
func NormalizeSTKCallback(body []byte) types.PaymentCallback {
	cb := gjson.GetBytes(body, "Body.stkCallback")
	out := types.PaymentCallback{
		CheckoutRequestID: cb.Get("CheckoutRequestID").String(),
		ResultCode:        cb.Get("ResultCode").Int(),
		ResultDesc:        cb.Get("ResultDesc").String(),
	}
	cb.Get("CallbackMetadata.Item").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("Name").String() {
		case "Amount":
			out.Amount = item.Get("Value").Float()
		case "MpesaReceiptNumber":
			out.ReceiptNumber = item.Get("Value").String()
		case "PhoneNumber":
			out.Phone = item.Get("Value").String()
		}
		return true
	})
	return out
}

// NormalizeB2CCallback flattens a daraja B2C result callback.
func NormalizeB2CCallback(body []byte) types.TransferCallback {
	res := gjson.GetBytes(body, "Result")
	out := types.TransferCallback{
		TransferID: res.Get("ConversationID").String(),
		ResultCode: res.Get("ResultCode").Int(),
		ResultDesc: res.Get("ResultDesc").String(),
	}
	if out.ResultCode != 0 {
		out.FailureReason = out.ResultDesc
	}
	return out
}
