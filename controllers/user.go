package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/utils"
)

// UserController handles user-related requests
type UserController struct {
	Collection   *mongo.Collection
	EmailService *utils.EmailService
	SecureCookie bool
}

// NewUserController creates a new UserController with EmailService
func NewUserController(db *mongo.Database, emailService *utils.EmailService, secureCookie bool) *UserController {
	return &UserController{
		Collection:   db.Collection(utils.UsersCollection),
		EmailService: emailService,
		SecureCookie: secureCookie,
	}
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := withTimeout(r)
	defer cancel()

	// Check if user already exists
	count, err := uc.Collection.CountDocuments(ctx, bson.M{"email": req.Email})
	if err != nil {
		utils.RespondInternal(w, r, "Database error", err)
		return
	}
	if count > 0 {
		utils.RespondError(w, http.StatusBadRequest, "User already exists")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondInternal(w, r, "Error hashing password", err)
		return
	}

	now := time.Now()
	user := models.User{
		Name:           strings.TrimSpace(req.Name),
		Email:          req.Email,
		Password:       string(hashedPassword),
		Mobile:         req.Mobile,
		Role:           models.RoleUser,
		AddressDetails: []primitive.ObjectID{},
		ShoppingCart:   []primitive.ObjectID{},
		OrderHistory:   []primitive.ObjectID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res, err := uc.Collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		utils.RespondError(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Error creating user", err)
		return
	}
	user.ID, _ = res.InsertedID.(primitive.ObjectID)

	go func() {
		if err := uc.EmailService.SendWelcomeEmail(user.Email, user.Name); err != nil {
			slog.Warn("send welcome email", slog.String("to", user.Email), slog.Any("err", err))
		}
	}()

	utils.RespondJSON(w, http.StatusCreated, "User registered successfully", user)
}

// Login handles user authentication
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.LoginRequest
	if err := utils.DecodeAndValidate(r, &creds); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	var user models.User
	err := uc.Collection.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(creds.Email))}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Database error", err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := utils.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		utils.RespondInternal(w, r, "Error generating token", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(utils.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   uc.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondJSON(w, http.StatusOK, "Login successfully", map[string]interface{}{
		"accessToken": token,
		"user":        user,
	})
}

// Logout clears the access cookie.
func (uc *UserController) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   uc.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondJSON(w, http.StatusOK, "Logout successfully", nil)
}

// GetProfile retrieves the authenticated user's profile
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	var user models.User
	err := uc.Collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, "Database error", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "User details", user)
}
