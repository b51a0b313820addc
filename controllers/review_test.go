package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"storefront-api/models"
)

func orderDoc(userID, productID primitive.ObjectID, status string) bson.D {
	return bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "orderId", Value: "ORD-REVIEW1"},
		{Key: "userId", Value: userID},
		{Key: "order_status", Value: status},
		{Key: "product_details", Value: bson.A{
			bson.D{{Key: "productId", Value: productID}, {Key: "name", Value: "Shirt"}, {Key: "quantity", Value: 1}},
		}},
	}
}

func TestCreateReview(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	userID := primitive.NewObjectID()
	productID := primitive.NewObjectID()
	body := models.CreateReviewRequest{
		OrderID: "ORD-REVIEW1",
		Items:   []models.ReviewItemRequest{{ProductID: productID.Hex(), Rating: 5, Comment: "great"}},
	}
	call := func(mt *mtest.T) *httptest.ResponseRecorder {
		rc := &ReviewController{Collection: mt.Coll, Orders: mt.Coll}
		rec := httptest.NewRecorder()
		rc.CreateReview(rec, asUser(jsonRequest(t, "POST", "/api/review", body), userID, models.RoleUser))
		return rec
	}

	mt.Run("created", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "db.orders", mtest.FirstBatch, orderDoc(userID, productID, models.OrderStatusDelivered)),
			mtest.CreateSuccessResponse(),
		)
		rec := call(mt)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	mt.Run("duplicate review", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "db.orders", mtest.FirstBatch, orderDoc(userID, productID, models.OrderStatusDelivered)),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}),
		)
		rec := call(mt)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, duplicateReviewMessage, decodeEnvelope(t, rec).Message)
	})

	mt.Run("order not delivered", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "db.orders", mtest.FirstBatch, orderDoc(userID, productID, models.OrderStatusShipping)),
		)
		rec := call(mt)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	mt.Run("order of someone else", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.orders", mtest.FirstBatch))
		rec := call(mt)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateReviewValidation(t *testing.T) {
	rc := &ReviewController{}
	rec := httptest.NewRecorder()
	body := models.CreateReviewRequest{
		OrderID: "ORD-1",
		Items:   []models.ReviewItemRequest{{ProductID: primitive.NewObjectID().Hex(), Rating: 6}},
	}
	rc.CreateReview(rec, asUser(jsonRequest(t, "POST", "/api/review", body), primitive.NewObjectID(), models.RoleUser))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Message, "Rating")
}

func TestBuildReviewItems(t *testing.T) {
	shirt, mug := primitive.NewObjectID(), primitive.NewObjectID()
	order := models.Order{ProductDetails: []models.ProductDetail{{ProductID: shirt}}}

	items, err := buildReviewItems(order, []models.ReviewItemRequest{{ProductID: shirt.Hex(), Rating: 4}})
	require.NoError(t, err)
	assert.Equal(t, shirt, items[0].ProductID)

	_, err = buildReviewItems(order, []models.ReviewItemRequest{{ProductID: mug.Hex(), Rating: 4}})
	assert.ErrorIs(t, err, errProductNotInOrder)
	assert.Equal(t, "Product is not part of this order", reviewItemsMessage(err))

	_, err = buildReviewItems(order, []models.ReviewItemRequest{
		{ProductID: shirt.Hex(), Rating: 4},
		{ProductID: shirt.Hex(), Rating: 2},
	})
	assert.ErrorIs(t, err, errProductReviewedTwice)

	_, err = buildReviewItems(order, []models.ReviewItemRequest{{ProductID: "not-an-id", Rating: 4}})
	assert.ErrorIs(t, err, errInvalidReviewProduct)
	assert.Equal(t, "Invalid productId", reviewItemsMessage(err))
}

func TestAverageRating(t *testing.T) {
	assert.Equal(t, 0.0, averageRating(nil))
	assert.Equal(t, 4.3, averageRating([]ProductReview{{Rating: 5}, {Rating: 4}, {Rating: 4}}))
}

func TestProductReviewsPipeline(t *testing.T) {
	id := primitive.NewObjectID()
	p := ProductReviewsPipeline(id)
	require.Len(t, p, 6)
	assert.Equal(t, "$unwind", p[1][0].Key)
	assert.Equal(t, bson.D{{Key: "items.productId", Value: id}}, p[2][0].Value)
}
