package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-api/models"
	"storefront-api/utils"
)

// CategoryController handles product categories
type CategoryController struct {
	Collection *mongo.Collection
	Products   *mongo.Collection
}

func NewCategoryController(db *mongo.Database) *CategoryController {
	return &CategoryController{
		Collection: db.Collection(utils.CategoriesCollection),
		Products:   db.Collection(utils.ProductsCollection),
	}
}

// CreateCategory adds a category (admin).
func (cc *CategoryController) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var category models.Category
	if err := utils.DecodeAndValidate(r, &category); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	category.ID = primitive.NilObjectID
	category.Name = strings.TrimSpace(category.Name)
	category.CreatedAt = time.Now()
	category.UpdatedAt = category.CreatedAt

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := cc.Collection.InsertOne(ctx, category)
	if mongo.IsDuplicateKeyError(err) {
		utils.RespondError(w, http.StatusBadRequest, "Category already exists")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error creating category", err)
		return
	}
	category.ID, _ = res.InsertedID.(primitive.ObjectID)
	utils.RespondJSON(w, http.StatusCreated, "Category created", category)
}

// GetCategories lists all categories.
func (cc *CategoryController) GetCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	cursor, err := cc.Collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching categories", err)
		return
	}
	defer cursor.Close(ctx)

	categories := []models.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		utils.RespondInternal(w, r, "Error decoding categories", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Category list", categories)
}

// UpdateCategory renames a category or changes its image (admin).
func (cc *CategoryController) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}
	var category models.Category
	if err := utils.DecodeAndValidate(r, &category); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	var updated models.Category
	err := cc.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"name":      strings.TrimSpace(category.Name),
			"image":     category.Image,
			"updatedAt": time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Category not found")
		return
	}
	if mongo.IsDuplicateKeyError(err) {
		utils.RespondError(w, http.StatusBadRequest, "Category already exists")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error updating category", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Category updated", updated)
}

// DeleteCategory removes a category no product uses (admin).
func (cc *CategoryController) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	inUse, err := cc.Products.CountDocuments(ctx, bson.M{"category": id})
	if err != nil {
		utils.RespondInternal(w, r, "Database error", err)
		return
	}
	if inUse > 0 {
		utils.RespondError(w, http.StatusBadRequest, "Category is in use by products")
		return
	}

	res, err := cc.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		utils.RespondInternal(w, r, "Error deleting category", err)
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondError(w, http.StatusNotFound, "Category not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Category deleted", nil)
}
