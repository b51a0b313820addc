package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-api/models"
	"storefront-api/utils"
)

// MongoStore implements the checkout stores on top of one database.
type MongoStore struct {
	DB *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{DB: db}
}

// CartLinesPipeline joins a user's cartproducts with their products.
func CartLinesPipeline(userID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "userId", Value: userID}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: utils.ProductsCollection},
			{Key: "localField", Value: "productId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "product"},
		}}},
		{{Key: "$unwind", Value: "$product"}},
	}
}

func (s *MongoStore) CartLines(ctx context.Context, userID primitive.ObjectID) ([]models.CartLine, error) {
	cursor, err := s.DB.Collection(utils.CartCollection).Aggregate(ctx, CartLinesPipeline(userID))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	lines := []models.CartLine{}
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *MongoStore) AddressBelongsTo(ctx context.Context, addressID, userID primitive.ObjectID) (bool, error) {
	n, err := s.DB.Collection(utils.AddressesCollection).CountDocuments(ctx, bson.M{
		"_id":    addressID,
		"userId": userID,
		"status": true,
	})
	return n > 0, err
}

// InsertOrder writes the order. The unique orderId index turns a second
// insert of the same order into ErrOrderExists.
func (s *MongoStore) InsertOrder(ctx context.Context, order *models.Order) error {
	res, err := s.DB.Collection(utils.OrdersCollection).InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return ErrOrderExists
	}
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

// DecrementStock takes each line's quantity off its product while stock allows.
func (s *MongoStore) DecrementStock(ctx context.Context, lines []models.ProductDetail) error {
	products := s.DB.Collection(utils.ProductsCollection)
	var errs []error
	for _, l := range lines {
		res, err := products.UpdateOne(ctx,
			bson.M{"_id": l.ProductID, "stock": bson.M{"$gte": l.Quantity}},
			bson.M{"$inc": bson.M{"stock": -l.Quantity}},
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", l.ProductID.Hex(), err))
			continue
		}
		if res.MatchedCount == 0 {
			errs = append(errs, fmt.Errorf("product %s: %w", l.ProductID.Hex(), ErrInsufficientStock))
		}
	}
	return errors.Join(errs...)
}

// ClearCart deletes the user's cart items, then resets the embedded cart
// reference and records the order in the user's history.
func (s *MongoStore) ClearCart(ctx context.Context, userID, orderRef primitive.ObjectID) error {
	if _, err := s.DB.Collection(utils.CartCollection).DeleteMany(ctx, bson.M{"userId": userID}); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}
	update := bson.M{"$set": bson.M{"shopping_cart": bson.A{}, "updatedAt": time.Now()}}
	if !orderRef.IsZero() {
		update["$push"] = bson.M{"orderHistory": orderRef}
	}
	if _, err := s.DB.Collection(utils.UsersCollection).UpdateOne(ctx, bson.M{"_id": userID}, update); err != nil {
		return fmt.Errorf("reset user cart: %w", err)
	}
	return nil
}

func (s *MongoStore) Stage(ctx context.Context, p *models.PendingOrder) error {
	res, err := s.DB.Collection(utils.PendingOrdersCollection).InsertOne(ctx, p)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = id
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, orderID string) (*models.PendingOrder, error) {
	var p models.PendingOrder
	err := s.DB.Collection(utils.PendingOrdersCollection).FindOne(ctx, bson.M{"orderId": orderID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPendingOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) SetGatewayRef(ctx context.Context, orderID, ref string) error {
	_, err := s.DB.Collection(utils.PendingOrdersCollection).UpdateOne(ctx,
		bson.M{"orderId": orderID},
		bson.M{"$set": bson.M{"gateway_ref": ref}},
	)
	return err
}

func (s *MongoStore) Consume(ctx context.Context, orderID string) (*models.PendingOrder, error) {
	var p models.PendingOrder
	err := s.DB.Collection(utils.PendingOrdersCollection).FindOneAndDelete(ctx, bson.M{"orderId": orderID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPendingOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindUser loads a user by id.
func (s *MongoStore) FindUser(ctx context.Context, userID primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.DB.Collection(utils.UsersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	return u, err
}
