package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-api/models"
	"storefront-api/utils"
)

const duplicateReviewMessage = "You have already reviewed this order"

var (
	errInvalidReviewProduct = errors.New("invalid productId")
	errProductNotInOrder    = errors.New("product is not part of this order")
	errProductReviewedTwice = errors.New("product is reviewed twice")
)

// reviewItemsMessage is the client-facing text for a buildReviewItems error.
func reviewItemsMessage(err error) string {
	switch {
	case errors.Is(err, errInvalidReviewProduct):
		return "Invalid productId"
	case errors.Is(err, errProductNotInOrder):
		return "Product is not part of this order"
	case errors.Is(err, errProductReviewedTwice):
		return "Each product can be reviewed only once per order"
	default:
		return "Invalid review items"
	}
}

// ReviewController handles product reviews
type ReviewController struct {
	Collection *mongo.Collection
	Orders     *mongo.Collection
}

func NewReviewController(db *mongo.Database) *ReviewController {
	return &ReviewController{
		Collection: db.Collection(utils.ReviewsCollection),
		Orders:     db.Collection(utils.OrdersCollection),
	}
}

// buildReviewItems checks that every reviewed product was part of the order.
func buildReviewItems(order models.Order, reqs []models.ReviewItemRequest) ([]models.ReviewItem, error) {
	inOrder := make(map[primitive.ObjectID]bool, len(order.ProductDetails))
	for _, l := range order.ProductDetails {
		inOrder[l.ProductID] = true
	}
	seen := make(map[primitive.ObjectID]bool, len(reqs))
	items := make([]models.ReviewItem, 0, len(reqs))
	for _, it := range reqs {
		pid, err := primitive.ObjectIDFromHex(it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errInvalidReviewProduct, it.ProductID)
		}
		if !inOrder[pid] {
			return nil, fmt.Errorf("%w: %s", errProductNotInOrder, it.ProductID)
		}
		if seen[pid] {
			return nil, fmt.Errorf("%w: %s", errProductReviewedTwice, it.ProductID)
		}
		seen[pid] = true
		items = append(items, models.ReviewItem{ProductID: pid, Rating: it.Rating, Comment: it.Comment})
	}
	return items, nil
}

// CreateReview rates the products of a delivered order, once per order.
func (rc *ReviewController) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateReviewRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	var order models.Order
	err := rc.Orders.FindOne(ctx, bson.M{"orderId": req.OrderID, "userId": userID}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching order", err)
		return
	}
	if order.OrderStatus != models.OrderStatusDelivered {
		utils.RespondError(w, http.StatusBadRequest, "Only delivered orders can be reviewed")
		return
	}

	items, err := buildReviewItems(order, req.Items)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, reviewItemsMessage(err))
		return
	}

	review := models.Review{
		UserID:       userID,
		OrderOrderID: order.OrderID,
		Items:        items,
		CreatedAt:    time.Now(),
	}
	res, err := rc.Collection.InsertOne(ctx, review)
	if mongo.IsDuplicateKeyError(err) {
		utils.RespondError(w, http.StatusBadRequest, duplicateReviewMessage)
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error creating review", err)
		return
	}
	review.ID, _ = res.InsertedID.(primitive.ObjectID)
	utils.RespondJSON(w, http.StatusCreated, "Review created", review)
}

// ProductReview is one rating of a product.
type ProductReview struct {
	ReviewID  primitive.ObjectID `bson:"_id" json:"_id"`
	UserName  string             `bson:"userName" json:"userName"`
	OrderID   string             `bson:"order_orderId" json:"orderId"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment" json:"comment"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// ProductReviewsPipeline flattens the reviews mentioning productID into one row per rating.
func ProductReviewsPipeline(productID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "items.productId", Value: productID}}}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$match", Value: bson.D{{Key: "items.productId", Value: productID}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: utils.UsersCollection},
			{Key: "localField", Value: "userId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "user"},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "order_orderId", Value: 1},
			{Key: "createdAt", Value: 1},
			{Key: "rating", Value: "$items.rating"},
			{Key: "comment", Value: "$items.comment"},
			{Key: "userName", Value: bson.D{{Key: "$ifNull", Value: bson.A{
				bson.D{{Key: "$arrayElemAt", Value: bson.A{"$user.name", 0}}}, "",
			}}}},
		}}},
	}
}

func averageRating(reviews []ProductReview) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, rv := range reviews {
		sum += rv.Rating
	}
	return decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(reviews)))).Round(1).InexactFloat64()
}

// GetProductReviews lists the ratings of a product with their average.
func (rc *ReviewController) GetProductReviews(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathObjectID(w, r, "productId")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	cursor, err := rc.Collection.Aggregate(ctx, ProductReviewsPipeline(productID))
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching reviews", err)
		return
	}
	defer cursor.Close(ctx)

	reviews := []ProductReview{}
	if err := cursor.All(ctx, &reviews); err != nil {
		utils.RespondInternal(w, r, "Error decoding reviews", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Product reviews", map[string]interface{}{
		"reviews":       reviews,
		"totalReviews":  len(reviews),
		"averageRating": averageRating(reviews),
	})
}

// GetMyReviews lists the authenticated user's reviews.
func (rc *ReviewController) GetMyReviews(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	cursor, err := rc.Collection.Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching reviews", err)
		return
	}
	defer cursor.Close(ctx)

	reviews := []models.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		utils.RespondInternal(w, r, "Error decoding reviews", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "My reviews", reviews)
}
