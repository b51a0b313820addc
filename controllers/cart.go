package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-api/models"
	"storefront-api/services"
	"storefront-api/utils"
)

// CartController handles cart-related requests
type CartController struct {
	Collection *mongo.Collection
	Products   *mongo.Collection
	Users      *mongo.Collection
	Carts      services.CartStore
}

// NewCartController creates a new CartController
func NewCartController(db *mongo.Database, carts services.CartStore) *CartController {
	return &CartController{
		Collection: db.Collection(utils.CartCollection),
		Products:   db.Collection(utils.ProductsCollection),
		Users:      db.Collection(utils.UsersCollection),
		Carts:      carts,
	}
}

// CartView is the cart with its current prices.
type CartView struct {
	Items      []models.CartLine `json:"items"`
	TotalQty   int               `json:"totalQty"`
	SubTotal   float64           `json:"subTotal"`
	FinalTotal float64           `json:"finalTotal"`
}

func newCartView(lines []models.CartLine) CartView {
	view := CartView{Items: lines}
	full, final := decimal.Zero, decimal.Zero
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		view.TotalQty += l.Quantity
		full = full.Add(decimal.NewFromFloat(l.Product.Price).Mul(qty))
		final = final.Add(decimal.NewFromFloat(l.Product.FinalPrice()).Mul(qty))
	}
	view.SubTotal = full.InexactFloat64()
	view.FinalTotal = final.InexactFloat64()
	return view
}

func (cc *CartController) availableStock(w http.ResponseWriter, r *http.Request, productID primitive.ObjectID) (int, bool) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	var product models.Product
	err := cc.Products.FindOne(ctx, bson.M{"_id": productID, "publish": true}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Product not found")
		return 0, false
	}
	if err != nil {
		utils.RespondInternal(w, r, "Database error", err)
		return 0, false
	}
	return product.Stock, true
}

// AddToCart adds a product to the user's cart
func (cc *CartController) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.AddToCartRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	productID, _ := primitive.ObjectIDFromHex(req.ProductID)

	stock, ok := cc.availableStock(w, r, productID)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	// Items are keyed by (userId, productId); adding again raises the quantity.
	now := time.Now()
	var item models.CartItem
	err := cc.Collection.FindOneAndUpdate(ctx,
		bson.M{"userId": userID, "productId": productID},
		bson.M{
			"$inc":         bson.M{"quantity": req.Quantity},
			"$set":         bson.M{"updatedAt": now},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&item)
	if err != nil {
		utils.RespondInternal(w, r, "Error updating cart", err)
		return
	}

	if item.Quantity > stock {
		// roll back to what the shelf can cover
		item.Quantity -= req.Quantity
		if item.Quantity <= 0 {
			_, err = cc.Collection.DeleteOne(ctx, bson.M{"_id": item.ID})
		} else {
			_, err = cc.Collection.UpdateOne(ctx, bson.M{"_id": item.ID}, bson.M{"$inc": bson.M{"quantity": -req.Quantity}})
		}
		if err != nil {
			utils.RespondInternal(w, r, "Error updating cart", err)
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "Not enough stock")
		return
	}

	if _, err := cc.Users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$addToSet": bson.M{"shopping_cart": item.ID},
	}); err != nil {
		utils.RespondInternal(w, r, "Error updating cart", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Item added to cart", item)
}

// GetCart returns the user's cart joined with product data.
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	lines, err := cc.Carts.CartLines(ctx, userID)
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching cart", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Cart items", newCartView(lines))
}

// UpdateCartItem sets the quantity of one cart item.
func (cc *CartController) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	var req models.UpdateCartRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	var item models.CartItem
	err := cc.Collection.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Database error", err)
		return
	}

	stock, ok := cc.availableStock(w, r, item.ProductID)
	if !ok {
		return
	}
	if req.Quantity > stock {
		utils.RespondError(w, http.StatusBadRequest, "Not enough stock")
		return
	}

	if _, err := cc.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"quantity": req.Quantity, "updatedAt": time.Now()},
	}); err != nil {
		utils.RespondInternal(w, r, "Error updating cart", err)
		return
	}
	item.Quantity = req.Quantity
	utils.RespondJSON(w, http.StatusOK, "Cart updated", item)
}

// RemoveFromCart removes a product from the user's cart
func (cc *CartController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := cc.Collection.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		utils.RespondInternal(w, r, "Error removing item", err)
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondError(w, http.StatusNotFound, "Cart item not found")
		return
	}

	if _, err := cc.Users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$pull": bson.M{"shopping_cart": id},
	}); err != nil {
		utils.RespondInternal(w, r, "Error updating cart", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Item removed from cart", nil)
}
