package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/services"
	"storefront-api/utils"
)

const (
	GuestTokenCookie = "guest_token"
	guestTokenMaxAge = 30 * 24 * time.Hour
)

// ChatRelayer is the conversation backend.
type ChatRelayer interface {
	Reply(ctx context.Context, id services.Identity, message string) (*models.ChatMessage, bool, error)
	History(ctx context.Context, id services.Identity, limit int) ([]models.ChatMessage, error)
	Clear(ctx context.Context, id services.Identity) (int64, error)
}

// ChatController relays chat messages for users and guests
type ChatController struct {
	Relay        ChatRelayer
	Timeout      time.Duration
	SecureCookie bool
}

func NewChatController(relay ChatRelayer, timeout time.Duration, secureCookie bool) *ChatController {
	return &ChatController{Relay: relay, Timeout: timeout, SecureCookie: secureCookie}
}

// identity resolves who is chatting. Authenticated users are keyed by id;
// guests by their cookie, which is issued when issue is set and none exists.
func (cc *ChatController) identity(w http.ResponseWriter, r *http.Request, issue bool) (services.Identity, bool) {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		if id, err := primitive.ObjectIDFromHex(claims.UserID); err == nil {
			return services.Identity{UserID: &id}, true
		}
	}
	if c, err := r.Cookie(GuestTokenCookie); err == nil && c.Value != "" {
		return services.Identity{GuestToken: c.Value}, true
	}
	if !issue {
		return services.Identity{}, false
	}

	token := utils.NewGuestToken()
	http.SetCookie(w, &http.Cookie{
		Name:     GuestTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(guestTokenMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cc.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return services.Identity{GuestToken: token}, true
}

// SendMessage answers a chat message.
func (cc *ChatController) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	id, _ := cc.identity(w, r, true)

	// storage round trips plus the model call
	ctx, cancel := context.WithTimeout(r.Context(), cc.Timeout+requestTimeout)
	defer cancel()

	reply, fallback, err := cc.Relay.Reply(ctx, id, req.Message)
	if err != nil {
		utils.RespondInternal(w, r, "Error processing chat message", err)
		return
	}
	source := "llm"
	if fallback {
		source = "fallback"
	}
	middleware.RecordChatReply(source)
	utils.RespondJSON(w, http.StatusOK, "Chat reply", map[string]interface{}{
		"reply":    reply,
		"fallback": fallback,
	})
}

// GetHistory returns the caller's conversation, oldest first.
func (cc *ChatController) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := cc.identity(w, r, false)
	if !ok {
		utils.RespondJSON(w, http.StatusOK, "Chat history", []models.ChatMessage{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	msgs, err := cc.Relay.History(ctx, id, limit)
	if err != nil {
		utils.RespondInternal(w, r, "Error fetching chat history", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Chat history", msgs)
}

// ClearHistory deletes the caller's conversation.
func (cc *ChatController) ClearHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := cc.identity(w, r, false)
	if !ok {
		utils.RespondJSON(w, http.StatusOK, "Chat history cleared", map[string]int64{"deleted": 0})
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	n, err := cc.Relay.Clear(ctx, id)
	if err != nil {
		utils.RespondInternal(w, r, "Error clearing chat history", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Chat history cleared", map[string]int64{"deleted": n})
}
