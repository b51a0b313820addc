package controllers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/utils"
)

// ProductController handles product-related requests
type ProductController struct {
	Collection *mongo.Collection
}

// NewProductController creates a new ProductController
func NewProductController(db *mongo.Database) *ProductController {
	return &ProductController{
		Collection: db.Collection(utils.ProductsCollection),
	}
}

// CreateProduct handles adding a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := utils.DecodeAndValidate(r, &product); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	product.ID = primitive.NilObjectID
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt

	ctx, cancel := withTimeout(r)
	defer cancel()

	result, err := pc.Collection.InsertOne(ctx, product)
	if err != nil {
		utils.RespondInternal(w, r, "Error creating product", err)
		return
	}
	product.ID, _ = result.InsertedID.(primitive.ObjectID)
	utils.RespondJSON(w, http.StatusCreated, "Product created successfully", product)
}

var errInvalidCategory = errors.New("invalid category id")

// ProductFilter builds the listing filter. Unpublished products are only
// visible to admins.
func ProductFilter(category, search string, admin bool) (bson.M, error) {
	filter := bson.M{}
	if !admin {
		filter["publish"] = true
	}
	if category != "" {
		id, err := primitive.ObjectIDFromHex(category)
		if err != nil {
			return nil, errInvalidCategory
		}
		filter["category"] = id
	}
	if search = strings.TrimSpace(search); search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}
	return filter, nil
}

// GetProducts lists products with pagination, category and search filters.
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	q := r.URL.Query()
	filter, err := ProductFilter(q.Get("category"), q.Get("search"), isAdmin(claims))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid category")
		return
	}
	page, limit := pagination(r, 12)

	ctx, cancel := withTimeout(r)
	defer cancel()

	total, err := pc.Collection.CountDocuments(ctx, filter)
	if err != nil {
		utils.RespondInternal(w, r, "Error counting products", err)
		return
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cursor, err := pc.Collection.Find(ctx, filter, opts)
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching products", err)
		return
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		utils.RespondInternal(w, r, "Error reading products", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Product list", newPage(products, total, page, limit))
}

// GetProductByID retrieves a single product by ID
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	var product models.Product
	err := pc.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching product", err)
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	if !product.Publish && !isAdmin(claims) {
		utils.RespondError(w, http.StatusNotFound, "Product not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Product details", product)
}

// UpdateProduct handles updating a product (Admin only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	var product models.Product
	if err := utils.DecodeAndValidate(r, &product); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	update := bson.M{
		"$set": bson.M{
			"name":        product.Name,
			"image":       product.Image,
			"category":    product.Category,
			"unit":        product.Unit,
			"stock":       product.Stock,
			"price":       product.Price,
			"discount":    product.Discount,
			"description": product.Description,
			"publish":     product.Publish,
			"updatedAt":   time.Now(),
		},
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	var updated models.Product
	err := pc.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error updating product", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Product updated successfully", updated)
}

// DeleteProduct handles deleting a product (Admin only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	result, err := pc.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		utils.RespondInternal(w, r, "Error deleting product", err)
		return
	}
	if result.DeletedCount == 0 {
		utils.RespondError(w, http.StatusNotFound, "Product not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Product deleted successfully", nil)
}
