package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/services"
	"storefront-api/utils"
)

const maxWebhookBytes = 64 << 10

// VNPay IPN response codes.
const (
	ipnConfirmed        = "00"
	ipnOrderNotFound    = "01"
	ipnAlreadyConfirmed = "02"
	ipnInvalidAmount    = "04"
	ipnInvalidChecksum  = "97"
	ipnUnknownError     = "99"
)

// PaymentController drives the asynchronous gateways: VNPay and Stripe Checkout.
type PaymentController struct {
	OrderCollection *mongo.Collection
	Orders          *services.OrderService
	Pending         services.PendingStore
	VNPay           *utils.VNPay
	Stripe          *services.StripeGateway
	FrontendURL     string
}

func NewPaymentController(db *mongo.Database, orders *services.OrderService, vnpay *utils.VNPay, stripe *services.StripeGateway, frontendURL string) *PaymentController {
	return &PaymentController{
		OrderCollection: db.Collection(utils.OrdersCollection),
		Orders:          orders,
		Pending:         orders.Pending,
		VNPay:           vnpay,
		Stripe:          stripe,
		FrontendURL:     strings.TrimRight(frontendURL, "/"),
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (pc *PaymentController) stage(w http.ResponseWriter, r *http.Request, method string) (*models.PendingOrder, *utils.Claims, models.CheckoutRequest, bool) {
	var req models.CheckoutRequest
	userID, claims, ok := currentUser(w, r)
	if !ok {
		return nil, nil, req, false
	}
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return nil, nil, req, false
	}
	addressID, err := primitive.ObjectIDFromHex(req.AddressID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid addressId")
		return nil, nil, req, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pending, err := pc.Orders.StagePending(ctx, userID, addressID, method, req.VoucherCode)
	if err != nil {
		respondCheckoutError(w, r, err)
		return nil, nil, req, false
	}
	return pending, claims, req, true
}

// abandon drops a staged order whose gateway session could not be opened.
func (pc *PaymentController) abandon(ctx context.Context, orderID string) {
	if err := pc.Orders.FailPending(ctx, orderID); err != nil {
		slog.Error("discard pending order", slog.String("orderId", orderID), slog.Any("err", err))
	}
}

// CreateVNPayPayment stages the cart and returns the signed VNPay redirect URL.
func (pc *PaymentController) CreateVNPayPayment(w http.ResponseWriter, r *http.Request) {
	if !pc.VNPay.Enabled() {
		utils.RespondError(w, http.StatusServiceUnavailable, "VNPay is not available")
		return
	}
	pending, _, req, ok := pc.stage(w, r, models.PaymentMethodVNPay)
	if !ok {
		return
	}

	payURL, err := pc.VNPay.BuildPaymentURL(utils.VNPayPaymentRequest{
		TxnRef:    pending.OrderID,
		Amount:    pending.TotalAmount,
		OrderInfo: "Thanh toan don hang " + pending.OrderID,
		IPAddr:    clientIP(r),
		Locale:    req.Locale,
		BankCode:  req.BankCode,
	})
	if err != nil {
		pc.abandon(r.Context(), pending.OrderID)
		utils.RespondInternal(w, r, "Error creating payment URL", err)
		return
	}
	middleware.RecordOrderOperation("vnpay_create", true)
	utils.RespondJSON(w, http.StatusOK, "Payment URL created", map[string]interface{}{
		"orderId":    pending.OrderID,
		"paymentUrl": payURL,
		"amount":     pending.TotalAmount,
	})
}

// vnpayOutcome settles a verified VNPay callback.
type vnpayOutcome struct {
	order   *models.Order
	label   string
	err     error
	replay  bool
	success bool
}

func (pc *PaymentController) settleVNPay(ctx context.Context, res *utils.VNPayResult) vnpayOutcome {
	if !res.Success {
		if err := pc.Orders.FailPending(ctx, res.TxnRef); err != nil {
			return vnpayOutcome{label: "error", err: err}
		}
		return vnpayOutcome{label: "failed"}
	}

	order, err := pc.Orders.CompletePending(ctx, res.TxnRef, res.TransactionNo, res.Amount)
	switch {
	case err == nil:
		return vnpayOutcome{order: order, label: "paid", success: true}
	case errors.Is(err, services.ErrPendingOrderNotFound):
		existing, ferr := pc.findOrder(ctx, res.TxnRef)
		if ferr != nil {
			return vnpayOutcome{label: "unknown", err: err}
		}
		return vnpayOutcome{order: existing, label: "replayed", replay: true, success: true}
	case errors.Is(err, services.ErrAmountMismatch):
		return vnpayOutcome{label: "amount_mismatch", err: err}
	default:
		return vnpayOutcome{label: "error", err: err}
	}
}

func (pc *PaymentController) findOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := pc.OrderCollection.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&order); err != nil {
		return nil, err
	}
	return &order, nil
}

// VNPayReturn verifies the browser redirect and materializes a paid order.
func (pc *PaymentController) VNPayReturn(w http.ResponseWriter, r *http.Request) {
	res, err := pc.VNPay.Verify(r.URL.Query())
	if err != nil {
		middleware.RecordPaymentCallback("vnpay_return", "tampered")
		utils.RespondError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	out := pc.settleVNPay(ctx, res)
	middleware.RecordPaymentCallback("vnpay_return", out.label)
	switch {
	case out.success && out.replay:
		utils.RespondJSON(w, http.StatusOK, "Order already processed", out.order)
	case out.success:
		utils.RespondJSON(w, http.StatusOK, res.Message, out.order)
	case errors.Is(out.err, services.ErrPendingOrderNotFound):
		utils.RespondError(w, http.StatusNotFound, out.err.Error())
	case errors.Is(out.err, services.ErrAmountMismatch):
		utils.RespondError(w, http.StatusBadRequest, out.err.Error())
	case out.err != nil:
		utils.RespondInternal(w, r, "Error confirming payment", out.err)
	default:
		utils.RespondError(w, http.StatusBadRequest, fmt.Sprintf("%s (%s)", res.Message, res.ResponseCode))
	}
}

// ipnReply is the body VNPay expects from the merchant's IPN endpoint.
type ipnReply struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// VNPayIPN answers VNPay's server-to-server notification. The HTTP status is
// always 200; the outcome travels in RspCode.
func (pc *PaymentController) VNPayIPN(w http.ResponseWriter, r *http.Request) {
	reply := func(code, msg string) {
		utils.WriteRaw(w, http.StatusOK, ipnReply{RspCode: code, Message: msg})
	}

	res, err := pc.VNPay.Verify(r.URL.Query())
	if err != nil {
		middleware.RecordPaymentCallback("vnpay_ipn", "tampered")
		reply(ipnInvalidChecksum, "Invalid Checksum")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	out := pc.settleVNPay(ctx, res)
	middleware.RecordPaymentCallback("vnpay_ipn", out.label)
	switch {
	case out.replay:
		reply(ipnAlreadyConfirmed, "Order already confirmed")
	case out.success, out.err == nil:
		reply(ipnConfirmed, "Confirm Success")
	case errors.Is(out.err, services.ErrPendingOrderNotFound):
		reply(ipnOrderNotFound, "Order not found")
	case errors.Is(out.err, services.ErrAmountMismatch):
		reply(ipnInvalidAmount, "Invalid amount")
	default:
		slog.Error("vnpay ipn", slog.String("orderId", res.TxnRef), slog.Any("err", out.err))
		reply(ipnUnknownError, "Unknown error")
	}
}

// CreateStripeSession stages the cart and opens a Stripe Checkout Session.
func (pc *PaymentController) CreateStripeSession(w http.ResponseWriter, r *http.Request) {
	if !pc.Stripe.Enabled() {
		utils.RespondError(w, http.StatusServiceUnavailable, "Stripe is not available")
		return
	}
	pending, claims, _, ok := pc.stage(w, r, models.PaymentMethodStripe)
	if !ok {
		return
	}

	successURL := fmt.Sprintf("%s/payment/success?orderId=%s&session_id={CHECKOUT_SESSION_ID}", pc.FrontendURL, pending.OrderID)
	cancelURL := fmt.Sprintf("%s/payment/cancel?orderId=%s", pc.FrontendURL, pending.OrderID)
	sessionID, sessionURL, err := pc.Stripe.CreateCheckoutSession(pending, claims.Email, successURL, cancelURL)
	if err != nil {
		pc.abandon(r.Context(), pending.OrderID)
		utils.RespondInternal(w, r, "Error creating checkout session", err)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()
	if err := pc.Pending.SetGatewayRef(ctx, pending.OrderID, sessionID); err != nil {
		slog.Warn("store stripe session id", slog.String("orderId", pending.OrderID), slog.Any("err", err))
	}

	middleware.RecordOrderOperation("stripe_create", true)
	utils.RespondJSON(w, http.StatusOK, "Checkout session created", map[string]interface{}{
		"orderId":   pending.OrderID,
		"sessionId": sessionID,
		"url":       sessionURL,
	})
}

// StripeWebhook verifies the Stripe-Signature header and settles checkout sessions.
func (pc *PaymentController) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Error reading request body")
		return
	}

	out, err := pc.Stripe.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		middleware.RecordPaymentCallback("stripe", "tampered")
		utils.RespondError(w, http.StatusBadRequest, "Invalid signature")
		return
	}
	if out == nil || out.OrderID == "" {
		utils.RespondJSON(w, http.StatusOK, "Event ignored", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if !out.Paid {
		if out.EventType == "checkout.session.completed" {
			// async payment methods settle later
			middleware.RecordPaymentCallback("stripe", "awaiting")
			utils.RespondJSON(w, http.StatusOK, "Awaiting payment", nil)
			return
		}
		if err := pc.Orders.FailPending(ctx, out.OrderID); err != nil {
			utils.RespondInternal(w, r, "Error discarding order", err)
			return
		}
		middleware.RecordPaymentCallback("stripe", "failed")
		utils.RespondJSON(w, http.StatusOK, "Payment not completed", nil)
		return
	}

	order, err := pc.Orders.CompletePending(ctx, out.OrderID, out.PaymentID, out.Amount)
	switch {
	case err == nil:
		middleware.RecordPaymentCallback("stripe", "paid")
		utils.RespondJSON(w, http.StatusOK, "Order created", order)
	case errors.Is(err, services.ErrPendingOrderNotFound):
		middleware.RecordPaymentCallback("stripe", "replayed")
		utils.RespondJSON(w, http.StatusOK, "Order already processed", nil)
	case errors.Is(err, services.ErrAmountMismatch):
		middleware.RecordPaymentCallback("stripe", "amount_mismatch")
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		middleware.RecordPaymentCallback("stripe", "error")
		utils.RespondInternal(w, r, "Error confirming payment", err)
	}
}
