package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"storefront-api/controllers"
	"storefront-api/middleware"
)

// Controllers groups every handler set the API exposes.
type Controllers struct {
	User     *controllers.UserController
	Address  *controllers.AddressController
	Category *controllers.CategoryController
	Product  *controllers.ProductController
	Cart     *controllers.CartController
	Order    *controllers.OrderController
	Payment  *controllers.PaymentController
	Voucher  *controllers.VoucherController
	Review   *controllers.ReviewController
	Chat     *controllers.ChatController
	Summary  *controllers.SummaryController
}

func auth(h http.HandlerFunc) http.Handler {
	return middleware.AuthMiddleware(h)
}

func admin(h http.HandlerFunc) http.Handler {
	return middleware.AuthMiddleware(middleware.AdminMiddleware(h))
}

func optional(h http.HandlerFunc) http.Handler {
	return middleware.OptionalAuthMiddleware(h)
}

// RegisterRoutes sets up all the routes for the application under /api.
// Literal paths are registered before the parameterized ones they overlap.
func RegisterRoutes(router *mux.Router, c Controllers) {
	api := router.PathPrefix("/api").Subrouter()

	// User routes
	user := api.PathPrefix("/user").Subrouter()
	user.HandleFunc("/register", c.User.Register).Methods(http.MethodPost)
	user.HandleFunc("/login", c.User.Login).Methods(http.MethodPost)
	user.HandleFunc("/logout", c.User.Logout).Methods(http.MethodPost)
	user.Handle("/profile", auth(c.User.GetProfile)).Methods(http.MethodGet)

	// Address routes
	api.Handle("/address", auth(c.Address.CreateAddress)).Methods(http.MethodPost)
	api.Handle("/address", auth(c.Address.GetAddresses)).Methods(http.MethodGet)
	api.Handle("/address/{id}", auth(c.Address.DeleteAddress)).Methods(http.MethodDelete)

	// Category routes
	api.HandleFunc("/category", c.Category.GetCategories).Methods(http.MethodGet)
	api.Handle("/category", admin(c.Category.CreateCategory)).Methods(http.MethodPost)
	api.Handle("/category/{id}", admin(c.Category.UpdateCategory)).Methods(http.MethodPut)
	api.Handle("/category/{id}", admin(c.Category.DeleteCategory)).Methods(http.MethodDelete)

	// Product routes
	api.Handle("/product", optional(c.Product.GetProducts)).Methods(http.MethodGet)
	api.Handle("/product/{id}", optional(c.Product.GetProductByID)).Methods(http.MethodGet)
	api.Handle("/product", admin(c.Product.CreateProduct)).Methods(http.MethodPost)
	api.Handle("/product/{id}", admin(c.Product.UpdateProduct)).Methods(http.MethodPut)
	api.Handle("/product/{id}", admin(c.Product.DeleteProduct)).Methods(http.MethodDelete)

	// Cart routes
	api.Handle("/cart", auth(c.Cart.GetCart)).Methods(http.MethodGet)
	api.Handle("/cart", auth(c.Cart.AddToCart)).Methods(http.MethodPost)
	api.Handle("/cart/{id}", auth(c.Cart.UpdateCartItem)).Methods(http.MethodPut)
	api.Handle("/cart/{id}", auth(c.Cart.RemoveFromCart)).Methods(http.MethodDelete)

	// Order and payment routes
	order := api.PathPrefix("/order").Subrouter()
	order.Handle("/cash-on-delivery", auth(c.Order.CashOnDelivery)).Methods(http.MethodPost)
	order.Handle("/vnpay/create", auth(c.Payment.CreateVNPayPayment)).Methods(http.MethodPost)
	order.HandleFunc("/vnpay/return", c.Payment.VNPayReturn).Methods(http.MethodGet)
	order.HandleFunc("/vnpay/ipn", c.Payment.VNPayIPN).Methods(http.MethodGet)
	order.Handle("/stripe/create", auth(c.Payment.CreateStripeSession)).Methods(http.MethodPost)
	order.HandleFunc("/stripe/webhook", c.Payment.StripeWebhook).Methods(http.MethodPost)
	order.Handle("/my-orders", auth(c.Order.GetMyOrders)).Methods(http.MethodGet)
	order.Handle("/admin/all", admin(c.Order.GetAllOrders)).Methods(http.MethodGet)
	order.Handle("/admin/{orderId}/status", admin(c.Order.UpdateOrderStatus)).Methods(http.MethodPut)
	order.Handle("/admin/{orderId}/payment", admin(c.Order.UpdatePaymentStatus)).Methods(http.MethodPut)
	order.Handle("/{orderId}/cancel", auth(c.Order.CancelOrder)).Methods(http.MethodPut)
	order.Handle("/{orderId}", auth(c.Order.GetOrder)).Methods(http.MethodGet)

	// Voucher routes
	api.Handle("/voucher/apply", auth(c.Voucher.ApplyVoucher)).Methods(http.MethodPost)
	api.Handle("/voucher", admin(c.Voucher.CreateVoucher)).Methods(http.MethodPost)
	api.Handle("/voucher", admin(c.Voucher.GetVouchers)).Methods(http.MethodGet)
	api.Handle("/voucher/{id}", admin(c.Voucher.GetVoucher)).Methods(http.MethodGet)
	api.Handle("/voucher/{id}", admin(c.Voucher.UpdateVoucher)).Methods(http.MethodPut)
	api.Handle("/voucher/{id}", admin(c.Voucher.DeleteVoucher)).Methods(http.MethodDelete)

	// Review routes
	api.Handle("/review", auth(c.Review.CreateReview)).Methods(http.MethodPost)
	api.HandleFunc("/review/product/{productId}", c.Review.GetProductReviews).Methods(http.MethodGet)
	api.Handle("/review/my-reviews", auth(c.Review.GetMyReviews)).Methods(http.MethodGet)

	// Chat routes
	api.Handle("/chat", optional(c.Chat.SendMessage)).Methods(http.MethodPost)
	api.Handle("/chat/history", optional(c.Chat.GetHistory)).Methods(http.MethodGet)
	api.Handle("/chat/history", optional(c.Chat.ClearHistory)).Methods(http.MethodDelete)

	// Dashboard
	api.Handle("/summary", admin(c.Summary.GetSummary)).Methods(http.MethodGet)
}
