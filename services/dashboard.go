package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"storefront-api/models"
	"storefront-api/utils"
)

// DefaultWindow is the reporting window used when no dates are given.
const DefaultWindow = 30 * 24 * time.Hour

const (
	dateLayout     = "2006-01-02"
	reportTimezone = "Asia/Ho_Chi_Minh"
	topProductsMax = 5
)

var ErrInvalidRange = errors.New("invalid date range")

// ReportLocation is the zone report dates are read in and revenue is bucketed by.
var ReportLocation = loadReportLocation()

func loadReportLocation() *time.Location {
	loc, err := time.LoadLocation(reportTimezone)
	if err != nil {
		// no tzdata on the host; Vietnam keeps UTC+7 all year
		return time.FixedZone(reportTimezone, 7*60*60)
	}
	return loc
}

// PercentChange compares current with previous in percent, rounded to two
// decimals. A zero previous value yields 0 when current is also 0, else 100.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	cur := decimal.NewFromFloat(current)
	prev := decimal.NewFromFloat(previous)
	return cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// ResolveRange parses optional YYYY-MM-DD bounds (end date inclusive) in
// ReportLocation into the reporting range and the equally long range right
// before it.
func ResolveRange(startStr, endStr string, now time.Time) (cur, prev models.DateRange, err error) {
	end := now
	if endStr != "" {
		d, err := time.ParseInLocation(dateLayout, endStr, ReportLocation)
		if err != nil {
			return cur, prev, fmt.Errorf("%w: endDate %q", ErrInvalidRange, endStr)
		}
		end = d.AddDate(0, 0, 1)
	}

	start := end.Add(-DefaultWindow)
	if startStr != "" {
		d, err := time.ParseInLocation(dateLayout, startStr, ReportLocation)
		if err != nil {
			return cur, prev, fmt.Errorf("%w: startDate %q", ErrInvalidRange, startStr)
		}
		start = d
	}

	if !end.After(start) {
		return cur, prev, fmt.Errorf("%w: endDate must not be before startDate", ErrInvalidRange)
	}

	length := end.Sub(start)
	cur = models.DateRange{Start: start, End: end}
	prev = models.DateRange{Start: start.Add(-length), End: start}
	return cur, prev, nil
}

func inRange(r models.DateRange) bson.D {
	return bson.D{{Key: "$gte", Value: r.Start}, {Key: "$lt", Value: r.End}}
}

func revenueMatch(r models.DateRange) bson.D {
	return bson.D{{Key: "$match", Value: bson.D{
		{Key: "createdAt", Value: inRange(r)},
		{Key: "order_status", Value: bson.D{{Key: "$ne", Value: models.OrderStatusCancelled}}},
	}}}
}

func RevenueTotalsPipeline(r models.DateRange) mongo.Pipeline {
	return mongo.Pipeline{
		revenueMatch(r),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$totalAmt"}}},
			{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

func RevenueByDayPipeline(r models.DateRange) mongo.Pipeline {
	return mongo.Pipeline{
		revenueMatch(r),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$createdAt"},
				{Key: "timezone", Value: reportTimezone},
			}}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$totalAmt"}}},
			{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func OrdersByStatusPipeline(r models.DateRange) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "createdAt", Value: inRange(r)}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$order_status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func lineRevenue() bson.D {
	return bson.D{{Key: "$sum", Value: bson.D{{Key: "$multiply", Value: bson.A{"$product_details.price", "$product_details.quantity"}}}}}
}

func RevenueByCategoryPipeline(r models.DateRange) mongo.Pipeline {
	return mongo.Pipeline{
		revenueMatch(r),
		{{Key: "$unwind", Value: "$product_details"}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: utils.ProductsCollection},
			{Key: "localField", Value: "product_details.productId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "product"},
		}}},
		{{Key: "$unwind", Value: "$product"}},
		{{Key: "$unwind", Value: "$product.category"}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: utils.CategoriesCollection},
			{Key: "localField", Value: "product.category"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "category"},
		}}},
		{{Key: "$unwind", Value: "$category"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category.name"},
			{Key: "revenue", Value: lineRevenue()},
			{Key: "quantity", Value: bson.D{{Key: "$sum", Value: "$product_details.quantity"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "revenue", Value: -1}}}},
	}
}

func TopProductsPipeline(r models.DateRange, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		revenueMatch(r),
		{{Key: "$unwind", Value: "$product_details"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$product_details.productId"},
			{Key: "name", Value: bson.D{{Key: "$first", Value: "$product_details.name"}}},
			{Key: "quantity", Value: bson.D{{Key: "$sum", Value: "$product_details.quantity"}}},
			{Key: "revenue", Value: lineRevenue()},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "quantity", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}
}

// Dashboard computes the admin summary straight from the collections.
type Dashboard struct {
	DB *mongo.Database
}

type revenueTotals struct {
	Revenue float64 `bson:"revenue"`
	Orders  int64   `bson:"orders"`
}

// Summary runs every aggregation concurrently; the first failure cancels the rest.
func (d *Dashboard) Summary(ctx context.Context, cur, prev models.DateRange) (*models.Summary, error) {
	orders := d.DB.Collection(utils.OrdersCollection)
	users := d.DB.Collection(utils.UsersCollection)

	s := &models.Summary{Range: cur, PreviousRange: prev}
	var curTotals, prevTotals revenueTotals
	var curCustomers, prevCustomers int64

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return aggregateOne(ctx, orders, RevenueTotalsPipeline(cur), &curTotals) })
	g.Go(func() error { return aggregateOne(ctx, orders, RevenueTotalsPipeline(prev), &prevTotals) })
	g.Go(func() error {
		n, err := users.CountDocuments(ctx, bson.M{"role": models.RoleUser, "createdAt": inRange(cur)})
		curCustomers = n
		return err
	})
	g.Go(func() error {
		n, err := users.CountDocuments(ctx, bson.M{"role": models.RoleUser, "createdAt": inRange(prev)})
		prevCustomers = n
		return err
	})
	g.Go(func() error {
		n, err := d.DB.Collection(utils.ProductsCollection).CountDocuments(ctx, bson.M{})
		s.TotalProducts = n
		return err
	})
	g.Go(func() error {
		n, err := d.DB.Collection(utils.CategoriesCollection).CountDocuments(ctx, bson.M{})
		s.TotalCategories = n
		return err
	})
	g.Go(func() error {
		n, err := users.CountDocuments(ctx, bson.M{"role": models.RoleUser})
		s.TotalUsers = n
		return err
	})
	g.Go(func() error { return aggregateAll(ctx, orders, RevenueByDayPipeline(cur), &s.RevenueByDay) })
	g.Go(func() error { return aggregateAll(ctx, orders, OrdersByStatusPipeline(cur), &s.OrdersByStatus) })
	g.Go(func() error { return aggregateAll(ctx, orders, RevenueByCategoryPipeline(cur), &s.RevenueByCategory) })
	g.Go(func() error { return aggregateAll(ctx, orders, TopProductsPipeline(cur, topProductsMax), &s.TopProducts) })

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard summary: %w", err)
	}

	s.TotalRevenue = curTotals.Revenue
	s.RevenueChange = PercentChange(curTotals.Revenue, prevTotals.Revenue)
	s.TotalOrders = curTotals.Orders
	s.OrdersChange = PercentChange(float64(curTotals.Orders), float64(prevTotals.Orders))
	s.NewCustomers = curCustomers
	s.CustomersChange = PercentChange(float64(curCustomers), float64(prevCustomers))
	return s, nil
}

func aggregateOne(ctx context.Context, coll *mongo.Collection, p mongo.Pipeline, out interface{}) error {
	cursor, err := coll.Aggregate(ctx, p)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	if cursor.Next(ctx) {
		return cursor.Decode(out)
	}
	return cursor.Err()
}

func aggregateAll[T any](ctx context.Context, coll *mongo.Collection, p mongo.Pipeline, out *[]T) error {
	cursor, err := coll.Aggregate(ctx, p)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	res := []T{}
	if err := cursor.All(ctx, &res); err != nil {
		return err
	}
	*out = res
	return nil
}
