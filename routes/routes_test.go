package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-api/models"
	"storefront-api/utils"
)

func newTestRouter() *mux.Router {
	r := mux.NewRouter()
	RegisterRoutes(r, Controllers{})
	return r
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	utils.JwtKey = []byte("routes-test")
	tok, err := utils.GenerateJWT("65f0000000000000000000bb", "shopper@example.com", role)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	router := newTestRouter()
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/user/profile"},
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/order/cash-on-delivery"},
		{http.MethodGet, "/api/order/my-orders"},
		{http.MethodPut, "/api/order/ORD-1/cancel"},
		{http.MethodPost, "/api/voucher/apply"},
		{http.MethodPost, "/api/review"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestAdminRoutesRejectShoppers(t *testing.T) {
	router := newTestRouter()
	token := bearer(t, models.RoleUser)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/category"},
		{http.MethodPost, "/api/product"},
		{http.MethodGet, "/api/order/admin/all"},
		{http.MethodPut, "/api/order/admin/ORD-1/status"},
		{http.MethodGet, "/api/voucher"},
		{http.MethodGet, "/api/summary"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestLiteralPathsWinOverParameters(t *testing.T) {
	router := newTestRouter()
	var match mux.RouteMatch

	require.True(t, router.Match(httptest.NewRequest(http.MethodGet, "/api/order/my-orders", nil), &match))
	tpl, _ := match.Route.GetPathTemplate()
	assert.Equal(t, "/api/order/my-orders", tpl)

	require.True(t, router.Match(httptest.NewRequest(http.MethodPost, "/api/voucher/apply", nil), &match))
	tpl, _ = match.Route.GetPathTemplate()
	assert.Equal(t, "/api/voucher/apply", tpl)

	require.True(t, router.Match(httptest.NewRequest(http.MethodGet, "/api/order/ORD-7", nil), &match))
	assert.Equal(t, "ORD-7", match.Vars["orderId"])
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
