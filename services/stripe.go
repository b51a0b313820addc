package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"storefront-api/models"
)

var ErrStripeDisabled = errors.New("stripe is not configured")

// zeroDecimal currencies are charged in whole units.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

func stripeUnitAmount(amount float64, currency string) int64 {
	d := decimal.NewFromFloat(amount)
	if !zeroDecimal[strings.ToLower(currency)] {
		d = d.Mul(decimal.NewFromInt(100))
	}
	return d.Round(0).IntPart()
}

// StripeGateway creates Checkout Sessions and verifies webhooks.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	currency      string
}

func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	g := &StripeGateway{webhookSecret: webhookSecret, currency: strings.ToLower(currency)}
	if g.currency == "" {
		g.currency = "vnd"
	}
	if secretKey != "" {
		g.api = &client.API{}
		g.api.Init(secretKey, nil)
	}
	return g
}

func (g *StripeGateway) Enabled() bool {
	return g != nil && g.api != nil
}

// CheckoutParams builds the session for a staged order. A discounted order
// is charged as one line for the total, since per-line prices no longer add up.
func (g *StripeGateway) CheckoutParams(p *models.PendingOrder, email, successURL, cancelURL string) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(p.OrderID),
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata("orderId", p.OrderID)
	params.AddMetadata("userId", p.UserID.Hex())

	if p.DiscountAmount > 0 {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("Order %s (voucher %s)", p.OrderID, p.VoucherCode)),
				},
				UnitAmount: stripe.Int64(stripeUnitAmount(p.TotalAmount, g.currency)),
			},
			Quantity: stripe.Int64(1),
		}}
		return params
	}

	for _, l := range p.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(l.Name)}
		if len(l.Image) > 0 {
			product.Images = stripe.StringSlice(l.Image[:1])
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(g.currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(stripeUnitAmount(l.Price, g.currency)),
			},
			Quantity: stripe.Int64(int64(l.Quantity)),
		})
	}
	return params
}

// CreateCheckoutSession returns the session id and its hosted payment URL.
func (g *StripeGateway) CreateCheckoutSession(p *models.PendingOrder, email, successURL, cancelURL string) (string, string, error) {
	if !g.Enabled() {
		return "", "", ErrStripeDisabled
	}
	s, err := g.api.CheckoutSessions.New(g.CheckoutParams(p, email, successURL, cancelURL))
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return s.ID, s.URL, nil
}

// StripeOutcome is the part of a webhook the order flow acts on.
type StripeOutcome struct {
	EventType string
	OrderID   string
	SessionID string
	PaymentID string
	Paid      bool
	Amount    float64
}

// ParseWebhook verifies the signature and extracts the checkout session.
// Events other than checkout sessions return a nil outcome.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*StripeOutcome, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("verify stripe webhook: %w", err)
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
	default:
		return nil, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out := &StripeOutcome{
		EventType: string(event.Type),
		OrderID:   s.Metadata["orderId"],
		SessionID: s.ID,
		Paid: s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid &&
			event.Type != stripe.EventTypeCheckoutSessionAsyncPaymentFailed &&
			event.Type != stripe.EventTypeCheckoutSessionExpired,
	}
	if out.OrderID == "" {
		out.OrderID = s.ClientReferenceID
	}
	if s.PaymentIntent != nil {
		out.PaymentID = s.PaymentIntent.ID
	}
	if out.PaymentID == "" {
		out.PaymentID = s.ID
	}
	amount := decimal.NewFromInt(s.AmountTotal)
	if !zeroDecimal[strings.ToLower(string(s.Currency))] {
		amount = amount.Div(decimal.NewFromInt(100))
	}
	out.Amount = amount.InexactFloat64()
	return out, nil
}
