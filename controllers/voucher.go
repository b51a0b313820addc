package controllers

import (
	"context"
	"errors"
	"log/slog"
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

// VoucherController manages discount vouchers
type VoucherController struct {
	Collection *mongo.Collection
	Vouchers   services.VoucherStore

	now func() time.Time
}

func NewVoucherController(db *mongo.Database) *VoucherController {
	coll := db.Collection(utils.VouchersCollection)
	return &VoucherController{
		Collection: coll,
		Vouchers:   &services.MongoVoucherStore{Collection: coll},
		now:        time.Now,
	}
}

// ExpireVouchersUpdate marks every active voucher past its end date as expired.
func ExpireVouchersUpdate(now time.Time) (bson.M, bson.M) {
	return bson.M{"status": models.VoucherActive, "end_date": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"status": models.VoucherExpired, "updatedAt": now}}
}

func (vc *VoucherController) expireStale(ctx context.Context) {
	filter, update := ExpireVouchersUpdate(vc.now())
	if _, err := vc.Collection.UpdateMany(ctx, filter, update); err != nil {
		slog.Warn("expire vouchers", slog.Any("err", err))
	}
}

func decodeVoucherRequest(w http.ResponseWriter, r *http.Request) (models.VoucherRequest, bool) {
	var req models.VoucherRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if err := req.CheckRules(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

// CreateVoucher adds a voucher (admin).
func (vc *VoucherController) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVoucherRequest(w, r)
	if !ok {
		return
	}
	voucher := req.ToVoucher(vc.now())

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := vc.Collection.InsertOne(ctx, voucher)
	if mongo.IsDuplicateKeyError(err) {
		utils.RespondError(w, http.StatusBadRequest, "Voucher code already exists")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error creating voucher", err)
		return
	}
	voucher.ID, _ = res.InsertedID.(primitive.ObjectID)
	utils.RespondJSON(w, http.StatusCreated, "Voucher created", voucher)
}

// GetVouchers lists vouchers, newest first (admin).
func (vc *VoucherController) GetVouchers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	vc.expireStale(ctx)

	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	cursor, err := vc.Collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching vouchers", err)
		return
	}
	defer cursor.Close(ctx)

	vouchers := []models.Voucher{}
	if err := cursor.All(ctx, &vouchers); err != nil {
		utils.RespondInternal(w, r, "Error decoding vouchers", err)
		return
	}
	now := vc.now()
	for i := range vouchers {
		vouchers[i].Status = vouchers[i].EffectiveStatus(now)
	}
	utils.RespondJSON(w, http.StatusOK, "Voucher list", vouchers)
}

// GetVoucher returns one voucher (admin).
func (vc *VoucherController) GetVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	var voucher models.Voucher
	err := vc.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&voucher)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Voucher not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching voucher", err)
		return
	}
	if status := voucher.EffectiveStatus(vc.now()); status != voucher.Status {
		vc.expireStale(ctx)
		voucher.Status = status
	}
	utils.RespondJSON(w, http.StatusOK, "Voucher details", voucher)
}

// UpdateVoucher replaces a voucher's terms, keeping its usage count (admin).
func (vc *VoucherController) UpdateVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeVoucherRequest(w, r)
	if !ok {
		return
	}
	v := req.ToVoucher(vc.now())

	ctx, cancel := withTimeout(r)
	defer cancel()

	var updated models.Voucher
	err := vc.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"code":           v.Code,
			"description":    v.Description,
			"discount_type":  v.DiscountType,
			"discount_value": v.DiscountValue,
			"min_purchase":   v.MinPurchase,
			"max_discount":   v.MaxDiscount,
			"usage_limit":    v.UsageLimit,
			"start_date":     v.StartDate,
			"end_date":       v.EndDate,
			"status":         v.Status,
			"updatedAt":      v.UpdatedAt,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "Voucher not found")
		return
	}
	if mongo.IsDuplicateKeyError(err) {
		utils.RespondError(w, http.StatusBadRequest, "Voucher code already exists")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error updating voucher", err)
		return
	}
	updated.Status = updated.EffectiveStatus(vc.now())
	utils.RespondJSON(w, http.StatusOK, "Voucher updated", updated)
}

// DeleteVoucher removes a voucher (admin).
func (vc *VoucherController) DeleteVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathObjectID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := vc.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		utils.RespondInternal(w, r, "Error deleting voucher", err)
		return
	}
	if res.DeletedCount == 0 {
		utils.RespondError(w, http.StatusNotFound, "Voucher not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Voucher deleted", nil)
}

// ApplyVoucher quotes the discount for an amount without redeeming the voucher.
func (vc *VoucherController) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	var req models.ApplyVoucherRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	voucher, err := vc.Vouchers.FindByCode(ctx, req.Code)
	if errors.Is(err, services.ErrVoucherNotFound) {
		utils.RespondError(w, http.StatusNotFound, "Voucher not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching voucher", err)
		return
	}

	now := vc.now()
	if voucher.EffectiveStatus(now) != voucher.Status {
		vc.expireStale(ctx)
	}
	discount, err := services.CalculateDiscount(voucher, req.OrderAmount, now)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	final := decimal.NewFromFloat(req.OrderAmount).Sub(decimal.NewFromFloat(discount))
	utils.RespondJSON(w, http.StatusOK, "Voucher applied", map[string]interface{}{
		"code":         voucher.Code,
		"discount":     discount,
		"finalAmount":  final.InexactFloat64(),
		"discountType": voucher.DiscountType,
	})
}
