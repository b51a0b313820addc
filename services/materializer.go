package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-api/models"
	"storefront-api/utils"
)

// CartStore reads a user's cart joined with product data.
type CartStore interface {
	CartLines(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error)
}

// OrderStore persists orders and performs the follow-up writes of checkout.
type OrderStore interface {
	AddressBelongsTo(ctx context.Context, addressID, userID primitive.ObjectID) (bool, error)
	// InsertOrder returns ErrOrderExists when an order with the same orderId is already stored.
	InsertOrder(ctx context.Context, order *models.Order) error
	DecrementStock(ctx context.Context, lines []models.ProductDetail) error
	ClearCart(ctx context.Context, userID, orderRef primitive.ObjectID) error
}

// PendingStore stages orders waiting for an asynchronous gateway.
type PendingStore interface {
	Stage(ctx context.Context, p *models.PendingOrder) error
	Find(ctx context.Context, orderID string) (*models.PendingOrder, error)
	SetGatewayRef(ctx context.Context, orderID, ref string) error
	// Consume atomically removes and returns the staged order; it returns
	// ErrPendingOrderNotFound when another callback already took it.
	Consume(ctx context.Context, orderID string) (*models.PendingOrder, error)
}

// Notifier is told about materialized orders.
type Notifier interface {
	OrderPlaced(ctx context.Context, order models.Order)
}

// Checkout is a priced cart.
type Checkout struct {
	Lines       []models.ProductDetail
	SubTotal    float64
	Discount    float64
	Total       float64
	VoucherCode string
}

// OrderService turns carts into orders.
type OrderService struct {
	Carts    CartStore
	Orders   OrderStore
	Pending  PendingStore
	Vouchers VoucherStore
	Notifier Notifier

	now func() time.Time
}

func NewOrderService(carts CartStore, orders OrderStore, pending PendingStore, vouchers VoucherStore, notifier Notifier) *OrderService {
	return &OrderService{
		Carts:    carts,
		Orders:   orders,
		Pending:  pending,
		Vouchers: vouchers,
		Notifier: notifier,
		now:      time.Now,
	}
}

// PrepareCheckout prices the user's cart and applies voucherCode if given.
func (s *OrderService) PrepareCheckout(ctx context.Context, userID primitive.ObjectID, voucherCode string) (Checkout, error) {
	cart, err := s.Carts.CartLines(ctx, userID)
	if err != nil {
		return Checkout{}, fmt.Errorf("load cart: %w", err)
	}
	if len(cart) == 0 {
		return Checkout{}, ErrEmptyCart
	}

	lines := make([]models.ProductDetail, 0, len(cart))
	subTotal := decimal.Zero
	for _, item := range cart {
		if item.Quantity <= 0 {
			continue
		}
		if item.Product.Stock < item.Quantity {
			return Checkout{}, fmt.Errorf("%w: %s", ErrInsufficientStock, item.Product.Name)
		}
		price := item.Product.FinalPrice()
		lines = append(lines, models.ProductDetail{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			Image:     item.Product.Image,
			Quantity:  item.Quantity,
			Price:     price,
		})
		subTotal = subTotal.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if len(lines) == 0 {
		return Checkout{}, ErrEmptyCart
	}

	co := Checkout{Lines: lines, SubTotal: subTotal.InexactFloat64()}
	if voucherCode != "" {
		v, err := s.Vouchers.FindByCode(ctx, voucherCode)
		if err != nil {
			return Checkout{}, err
		}
		discount, err := CalculateDiscount(v, co.SubTotal, s.now())
		if err != nil {
			return Checkout{}, err
		}
		co.Discount = discount
		co.VoucherCode = v.Code
	}
	co.Total = subTotal.Sub(decimal.NewFromFloat(co.Discount)).InexactFloat64()
	return co, nil
}

// MaterializeInput describes an order about to be written.
type MaterializeInput struct {
	OrderID       string
	UserID        primitive.ObjectID
	AddressID     primitive.ObjectID
	Checkout      Checkout
	PaymentMethod string
	PaymentStatus string
	PaymentID     string
}

// Materialize inserts the order, then decrements stock and clears the cart.
// The follow-up writes are independent of the insert: when one fails the
// order stands and the failure is only logged.
func (s *OrderService) Materialize(ctx context.Context, in MaterializeInput) (*models.Order, error) {
	now := s.now()
	orderID := in.OrderID
	if orderID == "" {
		orderID = utils.NewOrderID()
	}

	productIDs := make([]primitive.ObjectID, 0, len(in.Checkout.Lines))
	for _, l := range in.Checkout.Lines {
		productIDs = append(productIDs, l.ProductID)
	}

	order := &models.Order{
		UserID:          in.UserID,
		OrderID:         orderID,
		ProductIDs:      productIDs,
		ProductDetails:  in.Checkout.Lines,
		DeliveryAddress: in.AddressID,
		SubTotalAmount:  in.Checkout.SubTotal,
		DiscountAmount:  in.Checkout.Discount,
		TotalAmount:     in.Checkout.Total,
		VoucherCode:     in.Checkout.VoucherCode,
		PaymentID:       in.PaymentID,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   in.PaymentStatus,
		OrderStatus:     models.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Orders.InsertOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	log := slog.With(slog.String("orderId", order.OrderID), slog.String("userId", in.UserID.Hex()))
	if err := s.Orders.DecrementStock(ctx, order.ProductDetails); err != nil {
		log.Error("decrement stock after order", slog.Any("err", err))
	}
	if err := s.Orders.ClearCart(ctx, in.UserID, order.ID); err != nil {
		log.Error("clear cart after order", slog.Any("err", err))
	}
	if s.Notifier != nil {
		s.Notifier.OrderPlaced(ctx, *order)
	}
	log.Info("order materialized",
		slog.String("payment_method", order.PaymentMethod),
		slog.Float64("total", order.TotalAmount),
	)
	return order, nil
}

func (s *OrderService) checkAddress(ctx context.Context, userID, addressID primitive.ObjectID) error {
	ok, err := s.Orders.AddressBelongsTo(ctx, addressID, userID)
	if err != nil {
		return fmt.Errorf("check address: %w", err)
	}
	if !ok {
		return ErrAddressNotFound
	}
	return nil
}

// PlaceCashOnDelivery creates a COD order from the user's cart. Afterwards the cart is empty.
func (s *OrderService) PlaceCashOnDelivery(ctx context.Context, userID, addressID primitive.ObjectID, voucherCode string) (*models.Order, error) {
	if err := s.checkAddress(ctx, userID, addressID); err != nil {
		return nil, err
	}
	co, err := s.PrepareCheckout(ctx, userID, voucherCode)
	if err != nil {
		return nil, err
	}
	if co.VoucherCode != "" {
		if err := s.Vouchers.Redeem(ctx, co.VoucherCode); err != nil {
			return nil, err
		}
	}
	order, err := s.Materialize(ctx, MaterializeInput{
		UserID:        userID,
		AddressID:     addressID,
		Checkout:      co,
		PaymentMethod: models.PaymentMethodCOD,
		PaymentStatus: models.PaymentStatusPending,
	})
	if err != nil {
		if co.VoucherCode != "" {
			if rerr := s.Vouchers.Release(ctx, co.VoucherCode); rerr != nil {
				slog.Error("release voucher after failed order",
					slog.String("voucher", co.VoucherCode),
					slog.Any("err", rerr),
				)
			}
		}
		return nil, err
	}
	return order, nil
}

// StagePending prices the cart and stores it until the gateway reports back.
func (s *OrderService) StagePending(ctx context.Context, userID, addressID primitive.ObjectID, method, voucherCode string) (*models.PendingOrder, error) {
	if err := s.checkAddress(ctx, userID, addressID); err != nil {
		return nil, err
	}
	co, err := s.PrepareCheckout(ctx, userID, voucherCode)
	if err != nil {
		return nil, err
	}
	p := &models.PendingOrder{
		OrderID:         utils.NewOrderID(),
		UserID:          userID,
		Lines:           co.Lines,
		DeliveryAddress: addressID,
		SubTotalAmount:  co.SubTotal,
		DiscountAmount:  co.Discount,
		TotalAmount:     co.Total,
		VoucherCode:     co.VoucherCode,
		PaymentMethod:   method,
		CreatedAt:       s.now(),
	}
	if err := s.Pending.Stage(ctx, p); err != nil {
		return nil, fmt.Errorf("stage pending order: %w", err)
	}
	return p, nil
}

// CompletePending materializes a paid pending order. paidAmount is checked
// against the staged total when positive. The order is inserted before the
// pending document is removed, so a failed insert leaves the staged order in
// place for the gateway's retry. Replayed callbacks get
// ErrPendingOrderNotFound and create nothing.
func (s *OrderService) CompletePending(ctx context.Context, orderID, paymentID string, paidAmount float64) (*models.Order, error) {
	p, err := s.Pending.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if paidAmount > 0 && !decimal.NewFromFloat(paidAmount).Equal(decimal.NewFromFloat(p.TotalAmount)) {
		return nil, ErrAmountMismatch
	}

	order, err := s.Materialize(ctx, MaterializeInput{
		OrderID:   p.OrderID,
		UserID:    p.UserID,
		AddressID: p.DeliveryAddress,
		Checkout: Checkout{
			Lines:       p.Lines,
			SubTotal:    p.SubTotalAmount,
			Discount:    p.DiscountAmount,
			Total:       p.TotalAmount,
			VoucherCode: p.VoucherCode,
		},
		PaymentMethod: p.PaymentMethod,
		PaymentStatus: models.PaymentStatusPaid,
		PaymentID:     paymentID,
	})
	if errors.Is(err, ErrOrderExists) {
		// an earlier callback wrote the order but did not get to the cleanup
		s.discardPending(ctx, orderID)
		return nil, ErrPendingOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	s.discardPending(ctx, orderID)

	if p.VoucherCode != "" {
		// the customer has already paid the discounted price
		if err := s.Vouchers.Redeem(ctx, p.VoucherCode); err != nil {
			slog.Warn("redeem voucher for paid order",
				slog.String("orderId", p.OrderID),
				slog.String("voucher", p.VoucherCode),
				slog.Any("err", err),
			)
		}
	}
	return order, nil
}

func (s *OrderService) discardPending(ctx context.Context, orderID string) {
	if _, err := s.Pending.Consume(ctx, orderID); err != nil && !errors.Is(err, ErrPendingOrderNotFound) {
		slog.Warn("remove pending order", slog.String("orderId", orderID), slog.Any("err", err))
	}
}

// FailPending discards a pending order the gateway reported as failed.
func (s *OrderService) FailPending(ctx context.Context, orderID string) error {
	_, err := s.Pending.Consume(ctx, orderID)
	if errors.Is(err, ErrPendingOrderNotFound) {
		return nil
	}
	return err
}
