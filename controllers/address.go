package controllers

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-api/models"
	"storefront-api/utils"
)

// AddressController handles delivery addresses
type AddressController struct {
	Collection *mongo.Collection
	Users      *mongo.Collection
}

func NewAddressController(db *mongo.Database) *AddressController {
	return &AddressController{
		Collection: db.Collection(utils.AddressesCollection),
		Users:      db.Collection(utils.UsersCollection),
	}
}

// CreateAddress stores an address and links it to the user.
func (ac *AddressController) CreateAddress(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var address models.Address
	if err := utils.DecodeAndValidate(r, &address); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	address.ID = primitive.NilObjectID
	address.UserID = userID
	address.Status = true
	address.CreatedAt = time.Now()

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := ac.Collection.InsertOne(ctx, address)
	if err != nil {
		utils.RespondInternal(w, r, "Error creating address", err)
		return
	}
	address.ID, _ = res.InsertedID.(primitive.ObjectID)

	if _, err := ac.Users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$push": bson.M{"address_details": address.ID},
	}); err != nil {
		utils.RespondInternal(w, r, "Error linking address", err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, "Address created successfully", address)
}

// GetAddresses lists the user's active addresses.
func (ac *AddressController) GetAddresses(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	cursor, err := ac.Collection.Find(ctx,
		bson.M{"userId": userID, "status": true},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching addresses", err)
		return
	}
	defer cursor.Close(ctx)

	addresses := []models.Address{}
	if err := cursor.All(ctx, &addresses); err != nil {
		utils.RespondInternal(w, r, "Error decoding addresses", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Address list", addresses)
}

// DeleteAddress disables an address; orders keep referring to it.
func (ac *AddressController) DeleteAddress(w http.ResponseWriter, r *http.Request) {
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

	res, err := ac.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": bson.M{"status": false}},
	)
	if err != nil {
		utils.RespondInternal(w, r, "Error deleting address", err)
		return
	}
	if res.MatchedCount == 0 {
		utils.RespondError(w, http.StatusNotFound, "Address not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Address removed", nil)
}
