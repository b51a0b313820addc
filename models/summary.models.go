package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DailyRevenue struct {
	Date    string  `bson:"_id" json:"date"`
	Revenue float64 `bson:"revenue" json:"revenue"`
	Orders  int     `bson:"orders" json:"orders"`
}

type StatusCount struct {
	Status string `bson:"_id" json:"status"`
	Count  int    `bson:"count" json:"count"`
}

type CategoryRevenue struct {
	Category string  `bson:"_id" json:"category"`
	Revenue  float64 `bson:"revenue" json:"revenue"`
	Quantity int     `bson:"quantity" json:"quantity"`
}

type TopProduct struct {
	ProductID primitive.ObjectID `bson:"_id" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Revenue   float64            `bson:"revenue" json:"revenue"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Summary is the admin dashboard payload.
type Summary struct {
	Range             DateRange         `json:"range"`
	PreviousRange     DateRange         `json:"previousRange"`
	TotalRevenue      float64           `json:"totalRevenue"`
	RevenueChange     float64           `json:"revenueChange"`
	TotalOrders       int64             `json:"totalOrders"`
	OrdersChange      float64           `json:"ordersChange"`
	NewCustomers      int64             `json:"newCustomers"`
	CustomersChange   float64           `json:"customersChange"`
	TotalProducts     int64             `json:"totalProducts"`
	TotalCategories   int64             `json:"totalCategories"`
	TotalUsers        int64             `json:"totalUsers"`
	RevenueByDay      []DailyRevenue    `json:"revenueByDay"`
	OrdersByStatus    []StatusCount     `json:"ordersByStatus"`
	RevenueByCategory []CategoryRevenue `json:"revenueByCategory"`
	TopProducts       []TopProduct      `json:"topProducts"`
}
