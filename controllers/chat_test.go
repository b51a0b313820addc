package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-api/models"
	"storefront-api/services"
)

type fakeRelay struct {
	seen     []services.Identity
	fallback bool
}

func (f *fakeRelay) Reply(_ context.Context, id services.Identity, message string) (*models.ChatMessage, bool, error) {
	f.seen = append(f.seen, id)
	return &models.ChatMessage{Sender: models.SenderBot, Message: "echo: " + message}, f.fallback, nil
}

func (f *fakeRelay) History(_ context.Context, id services.Identity, _ int) ([]models.ChatMessage, error) {
	f.seen = append(f.seen, id)
	return []models.ChatMessage{{Sender: models.SenderUser, Message: "hi"}}, nil
}

func (f *fakeRelay) Clear(_ context.Context, id services.Identity) (int64, error) {
	f.seen = append(f.seen, id)
	return 2, nil
}

func guestCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == GuestTokenCookie {
			return c
		}
	}
	return nil
}

func TestChatIssuesGuestToken(t *testing.T) {
	relay := &fakeRelay{}
	cc := NewChatController(relay, time.Second, false)

	rec := httptest.NewRecorder()
	cc.SendMessage(rec, jsonRequest(t, "POST", "/api/chat", models.ChatRequest{Message: "hello"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := guestCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 30*24*60*60, cookie.MaxAge)
	require.Len(t, relay.seen, 1)
	assert.Equal(t, cookie.Value, relay.seen[0].GuestToken)
	assert.Nil(t, relay.seen[0].UserID)
}

func TestChatReusesGuestToken(t *testing.T) {
	relay := &fakeRelay{}
	cc := NewChatController(relay, time.Second, false)

	req := jsonRequest(t, "POST", "/api/chat", models.ChatRequest{Message: "again"})
	req.AddCookie(&http.Cookie{Name: GuestTokenCookie, Value: "known-guest"})
	rec := httptest.NewRecorder()
	cc.SendMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, guestCookie(rec))
	assert.Equal(t, "known-guest", relay.seen[0].GuestToken)
}

func TestChatPrefersAuthenticatedUser(t *testing.T) {
	relay := &fakeRelay{fallback: true}
	cc := NewChatController(relay, time.Second, false)
	uid := primitive.NewObjectID()

	req := jsonRequest(t, "POST", "/api/chat", models.ChatRequest{Message: "hi"})
	req.AddCookie(&http.Cookie{Name: GuestTokenCookie, Value: "old-guest"})
	rec := httptest.NewRecorder()
	cc.SendMessage(rec, asUser(req, uid, models.RoleUser))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, relay.seen[0].UserID)
	assert.Equal(t, uid, *relay.seen[0].UserID)
	assert.Empty(t, relay.seen[0].GuestToken)
	assert.Contains(t, rec.Body.String(), `"fallback":true`)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	relay := &fakeRelay{}
	cc := NewChatController(relay, time.Second, false)
	rec := httptest.NewRecorder()
	cc.SendMessage(rec, jsonRequest(t, "POST", "/api/chat", models.ChatRequest{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, relay.seen)
}

func TestChatRejectsBlankMessage(t *testing.T) {
	relay := &fakeRelay{}
	cc := NewChatController(relay, time.Second, false)
	rec := httptest.NewRecorder()
	cc.SendMessage(rec, jsonRequest(t, "POST", "/api/chat", models.ChatRequest{Message: " \n\t "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Message cannot be empty", decodeEnvelope(t, rec).Message)
	assert.Empty(t, relay.seen)
	assert.Nil(t, guestCookie(rec))
}

func TestChatHistoryWithoutIdentity(t *testing.T) {
	relay := &fakeRelay{}
	cc := NewChatController(relay, time.Second, false)

	rec := httptest.NewRecorder()
	cc.GetHistory(rec, httptest.NewRequest("GET", "/api/chat/history", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(decodeEnvelope(t, rec).Data))
	assert.Nil(t, guestCookie(rec))

	rec = httptest.NewRecorder()
	cc.ClearHistory(rec, httptest.NewRequest("DELETE", "/api/chat/history", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, relay.seen)
}

func TestChatClearHistory(t *testing.T) {
	relay := &fakeRelay{}
	cc := NewChatController(relay, time.Second, false)

	req := httptest.NewRequest("DELETE", "/api/chat/history", nil)
	req.AddCookie(&http.Cookie{Name: GuestTokenCookie, Value: "g"})
	rec := httptest.NewRecorder()
	cc.ClearHistory(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":2}`, string(decodeEnvelope(t, rec).Data))
}
