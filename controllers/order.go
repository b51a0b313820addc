package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/services"
	"storefront-api/utils"
)

// StatusNotifier is told when an order changes status.
type StatusNotifier interface {
	StatusChanged(ctx context.Context, order models.Order)
}

// OrderController handles order-related requests
type OrderController struct {
	OrderCollection   *mongo.Collection
	ProductCollection *mongo.Collection
	Orders            *services.OrderService
	Notifier          StatusNotifier
}

// NewOrderController creates a new OrderController
func NewOrderController(db *mongo.Database, orders *services.OrderService, notifier StatusNotifier) *OrderController {
	return &OrderController{
		OrderCollection:   db.Collection(utils.OrdersCollection),
		ProductCollection: db.Collection(utils.ProductsCollection),
		Orders:            orders,
		Notifier:          notifier,
	}
}

// respondCheckoutError maps checkout failures to client statuses.
func respondCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrVoucherNotApplicable),
		errors.Is(err, services.ErrVoucherExhausted),
		errors.Is(err, services.ErrAmountMismatch):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAddressNotFound),
		errors.Is(err, services.ErrVoucherNotFound),
		errors.Is(err, services.ErrPendingOrderNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		utils.RespondInternal(w, r, "Error placing order", err)
	}
}

// CashOnDelivery creates a new order from the user's cart
func (oc *OrderController) CashOnDelivery(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CheckoutRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	addressID, err := primitive.ObjectIDFromHex(req.AddressID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid addressId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := oc.Orders.PlaceCashOnDelivery(ctx, userID, addressID, req.VoucherCode)
	middleware.RecordOrderOperation("cod", err == nil)
	if err != nil {
		respondCheckoutError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, "Order successfully", order)
}

func (oc *OrderController) findOrders(w http.ResponseWriter, r *http.Request, filter bson.M, page, limit int64) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	total, err := oc.OrderCollection.CountDocuments(ctx, filter)
	if err != nil {
		utils.RespondInternal(w, r, "Failed to retrieve orders", err)
		return
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cursor, err := oc.OrderCollection.Find(ctx, filter, opts)
	if err != nil {
		utils.RespondInternal(w, r, "Failed to retrieve orders", err)
		return
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		utils.RespondInternal(w, r, "Error decoding orders", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Order list", newPage(orders, total, page, limit))
}

// GetMyOrders retrieves all orders for the authenticated user
func (oc *OrderController) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, limit := pagination(r, 20)
	oc.findOrders(w, r, bson.M{"userId": userID}, page, limit)
}

// GetAllOrders lists every order, optionally filtered by order_status (admin).
func (oc *OrderController) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	filter := bson.M{}
	if status := r.URL.Query().Get("order_status"); status != "" {
		filter["order_status"] = status
	}
	page, limit := pagination(r, 20)
	oc.findOrders(w, r, filter, page, limit)
}

// GetOrder returns one order to its owner or an admin.
func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	filter := bson.M{"orderId": mux.Vars(r)["orderId"]}
	if !isAdmin(claims) {
		filter["userId"] = userID
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	var order models.Order
	err := oc.OrderCollection.FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Failed to retrieve order", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Order details", order)
}

func (oc *OrderController) restock(ctx context.Context, order models.Order) {
	for _, l := range order.ProductDetails {
		if _, err := oc.ProductCollection.UpdateOne(ctx,
			bson.M{"_id": l.ProductID},
			bson.M{"$inc": bson.M{"stock": l.Quantity}},
		); err != nil {
			slog.Error("restock cancelled order",
				slog.String("orderId", order.OrderID),
				slog.String("productId", l.ProductID.Hex()),
				slog.Any("err", err))
		}
	}
}

func (oc *OrderController) statusChanged(ctx context.Context, order models.Order) {
	if oc.Notifier != nil {
		oc.Notifier.StatusChanged(ctx, order)
	}
}

// UpdateOrderStatus moves an order through its lifecycle (admin).
func (oc *OrderController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateOrderStatusRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	// a cancelled order is final
	filter := bson.M{
		"orderId":      mux.Vars(r)["orderId"],
		"order_status": bson.M{"$ne": models.OrderStatusCancelled},
	}
	var before models.Order
	err := oc.OrderCollection.FindOneAndUpdate(ctx, filter, bson.M{
		"$set": bson.M{"order_status": req.OrderStatus, "updatedAt": time.Now()},
	}).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Order not found or already cancelled")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Failed to update order status", err)
		return
	}

	order := before
	order.OrderStatus = req.OrderStatus
	if req.OrderStatus == models.OrderStatusCancelled {
		oc.restock(ctx, order)
	}
	middleware.RecordOrderOperation("status_update", true)
	if before.OrderStatus != req.OrderStatus {
		oc.statusChanged(ctx, order)
	}
	utils.RespondJSON(w, http.StatusOK, "Order status updated", order)
}

// UpdatePaymentStatus allows admin to update payment status, e.g. when a COD order is collected.
func (oc *OrderController) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePaymentStatusRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	var order models.Order
	err := oc.OrderCollection.FindOneAndUpdate(ctx,
		bson.M{"orderId": mux.Vars(r)["orderId"]},
		bson.M{"$set": bson.M{"payment_status": req.PaymentStatus, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Failed to update payment status", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Payment status updated", order)
}

// CancelOrder lets the owner cancel an order that is still pending and unpaid.
func (oc *OrderController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID := mux.Vars(r)["orderId"]

	ctx, cancel := withTimeout(r)
	defer cancel()

	var order models.Order
	err := oc.OrderCollection.FindOneAndUpdate(ctx,
		bson.M{
			"orderId":        orderID,
			"userId":         userID,
			"order_status":   models.OrderStatusPending,
			"payment_status": bson.M{"$ne": models.PaymentStatusPaid},
		},
		bson.M{"$set": bson.M{"order_status": models.OrderStatusCancelled, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := oc.OrderCollection.CountDocuments(ctx, bson.M{"orderId": orderID, "userId": userID})
		if cerr == nil && n > 0 {
			utils.RespondError(w, http.StatusBadRequest, "Order can no longer be cancelled")
			return
		}
		utils.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Failed to cancel order", err)
		return
	}

	oc.restock(ctx, order)
	middleware.RecordOrderOperation("cancel", true)
	oc.statusChanged(ctx, order)
	utils.RespondJSON(w, http.StatusOK, "Order cancelled", order)
}
