package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"storefront-api/models"
	"storefront-api/services"
	"storefront-api/utils"
)

const (
	testHashSecret    = "VNPAYSECRET"
	testWebhookSecret = "whsec_controller"
)

type fakePending struct {
	mu     sync.Mutex
	orders map[string]*models.PendingOrder
}

func newFakePending(orders ...*models.PendingOrder) *fakePending {
	f := &fakePending{orders: map[string]*models.PendingOrder{}}
	for _, o := range orders {
		f.orders[o.OrderID] = o
	}
	return f
}

func (f *fakePending) Stage(_ context.Context, p *models.PendingOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[p.OrderID] = p
	return nil
}

func (f *fakePending) Find(_ context.Context, orderID string) (*models.PendingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.orders[orderID]; ok {
		return p, nil
	}
	return nil, services.ErrPendingOrderNotFound
}

func (f *fakePending) SetGatewayRef(context.Context, string, string) error { return nil }

func (f *fakePending) Consume(_ context.Context, orderID string) (*models.PendingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.orders[orderID]
	if !ok {
		return nil, services.ErrPendingOrderNotFound
	}
	delete(f.orders, orderID)
	return p, nil
}

func signedVNPayQuery(params map[string]string) url.Values {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	mac := hmac.New(sha512.New, []byte(testHashSecret))
	mac.Write([]byte(utils.CanonicalQuery(q)))
	q.Set(utils.VNPSecureHash, hex.EncodeToString(mac.Sum(nil)))
	return q
}

func newPaymentController(pending *fakePending) *PaymentController {
	orders := services.NewOrderService(nil, nil, pending, nil, nil)
	return &PaymentController{
		Orders:  orders,
		Pending: pending,
		VNPay: utils.NewVNPay(utils.VNPayConfig{
			TmnCode:    "TMN01",
			HashSecret: testHashSecret,
			PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ReturnURL:  "http://localhost:5173/payment/vnpay-return",
		}),
		Stripe: services.NewStripeGateway("", testWebhookSecret, "vnd"),
	}
}

func ipnCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var body ipnReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.RspCode
}

func TestVNPayIPNInvalidChecksum(t *testing.T) {
	pc := newPaymentController(newFakePending())
	q := signedVNPayQuery(map[string]string{"vnp_TxnRef": "ORD-1", "vnp_Amount": "41000000", "vnp_ResponseCode": "00"})
	q.Set("vnp_Amount", "100")

	rec := httptest.NewRecorder()
	pc.VNPayIPN(rec, httptest.NewRequest("GET", "/api/order/vnpay/ipn?"+q.Encode(), nil))
	assert.Equal(t, ipnInvalidChecksum, ipnCode(t, rec))
}

func TestVNPayIPNAmountMismatch(t *testing.T) {
	pending := newFakePending(&models.PendingOrder{OrderID: "ORD-1", TotalAmount: 410000})
	pc := newPaymentController(pending)
	q := signedVNPayQuery(map[string]string{
		"vnp_TxnRef":            "ORD-1",
		"vnp_Amount":            "100000",
		"vnp_ResponseCode":      "00",
		"vnp_TransactionStatus": "00",
	})

	rec := httptest.NewRecorder()
	pc.VNPayIPN(rec, httptest.NewRequest("GET", "/api/order/vnpay/ipn?"+q.Encode(), nil))
	assert.Equal(t, ipnInvalidAmount, ipnCode(t, rec))
	assert.Contains(t, pending.orders, "ORD-1", "a mismatched payment must not consume the order")
}

func TestVNPayIPNFailedPaymentDiscardsPending(t *testing.T) {
	pending := newFakePending(&models.PendingOrder{OrderID: "ORD-2", TotalAmount: 410000})
	pc := newPaymentController(pending)
	q := signedVNPayQuery(map[string]string{
		"vnp_TxnRef":       "ORD-2",
		"vnp_Amount":       "41000000",
		"vnp_ResponseCode": "24",
	})

	rec := httptest.NewRecorder()
	pc.VNPayIPN(rec, httptest.NewRequest("GET", "/api/order/vnpay/ipn?"+q.Encode(), nil))
	assert.Equal(t, ipnConfirmed, ipnCode(t, rec))
	assert.NotContains(t, pending.orders, "ORD-2")
}

func TestVNPayIPNReplay(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	q := signedVNPayQuery(map[string]string{
		"vnp_TxnRef":       "ORD-3",
		"vnp_Amount":       "41000000",
		"vnp_ResponseCode": "00",
	})

	mt.Run("already materialized", func(mt *mtest.T) {
		pc := newPaymentController(newFakePending())
		pc.OrderCollection = mt.Coll
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.orders", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "orderId", Value: "ORD-3"},
			{Key: "payment_status", Value: models.PaymentStatusPaid},
		}))
		rec := httptest.NewRecorder()
		pc.VNPayIPN(rec, httptest.NewRequest("GET", "/api/order/vnpay/ipn?"+q.Encode(), nil))
		assert.Equal(t, ipnAlreadyConfirmed, ipnCode(t, rec))
	})

	mt.Run("unknown order", func(mt *mtest.T) {
		pc := newPaymentController(newFakePending())
		pc.OrderCollection = mt.Coll
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.orders", mtest.FirstBatch))
		rec := httptest.NewRecorder()
		pc.VNPayIPN(rec, httptest.NewRequest("GET", "/api/order/vnpay/ipn?"+q.Encode(), nil))
		assert.Equal(t, ipnOrderNotFound, ipnCode(t, rec))
	})
}

func TestVNPayReturnRejectsTampering(t *testing.T) {
	pc := newPaymentController(newFakePending())
	q := signedVNPayQuery(map[string]string{"vnp_TxnRef": "ORD-1", "vnp_Amount": "41000000", "vnp_ResponseCode": "00"})
	q.Set("vnp_ResponseCode", "01")

	rec := httptest.NewRecorder()
	pc.VNPayReturn(rec, httptest.NewRequest("GET", "/api/order/vnpay/return?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid signature", decodeEnvelope(t, rec).Message)
}

func TestVNPayReturnFailedPayment(t *testing.T) {
	pending := newFakePending(&models.PendingOrder{OrderID: "ORD-4", TotalAmount: 50000})
	pc := newPaymentController(pending)
	q := signedVNPayQuery(map[string]string{"vnp_TxnRef": "ORD-4", "vnp_Amount": "5000000", "vnp_ResponseCode": "24"})

	rec := httptest.NewRecorder()
	pc.VNPayReturn(rec, httptest.NewRequest("GET", "/api/order/vnpay/return?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Message, "(24)")
	assert.Empty(t, pending.orders)
}

func stripeRequest(t *testing.T, eventType, session string) *http.Request {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2023-10-16","type":%q,"data":{"object":%s}}`, eventType, session))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret})
	req := httptest.NewRequest("POST", "/api/order/stripe/webhook", bytesReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestStripeWebhook(t *testing.T) {
	t.Run("bad signature", func(t *testing.T) {
		pc := newPaymentController(newFakePending())
		req := httptest.NewRequest("POST", "/api/order/stripe/webhook", bytesReader([]byte(`{}`)))
		req.Header.Set("Stripe-Signature", "t=1,v1=00")
		rec := httptest.NewRecorder()
		pc.StripeWebhook(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("replayed completion", func(t *testing.T) {
		pc := newPaymentController(newFakePending())
		rec := httptest.NewRecorder()
		pc.StripeWebhook(rec, stripeRequest(t, "checkout.session.completed",
			`{"id":"cs_1","object":"checkout.session","payment_status":"paid","amount_total":410000,"currency":"vnd","metadata":{"orderId":"ORD-9"}}`))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Order already processed", decodeEnvelope(t, rec).Message)
	})

	t.Run("expired session discards pending", func(t *testing.T) {
		pending := newFakePending(&models.PendingOrder{OrderID: "ORD-10"})
		pc := newPaymentController(pending)
		rec := httptest.NewRecorder()
		pc.StripeWebhook(rec, stripeRequest(t, "checkout.session.expired",
			`{"id":"cs_2","object":"checkout.session","payment_status":"unpaid","metadata":{"orderId":"ORD-10"}}`))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, pending.orders)
	})

	t.Run("unrelated event", func(t *testing.T) {
		pc := newPaymentController(newFakePending())
		rec := httptest.NewRecorder()
		pc.StripeWebhook(rec, stripeRequest(t, "customer.created", `{"id":"cus_1","object":"customer"}`))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Event ignored", decodeEnvelope(t, rec).Message)
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "10.0.0.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
