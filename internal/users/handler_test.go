package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farewatch/internal/logger"
	"farewatch/pkg/models"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _ := newTestService()
	router := gin.New()
	NewHandler(svc, logger.NopLogger()).RegisterRoutes(router)
	return router, svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	return u
}

func TestHandler_UserCRUD(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/users", map[string]string{
		"name":  "Alice",
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeUser(t, rec)
	require.NotEmpty(t, created.ID)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decodeUser(t, rec).Name)

	rec = doJSON(t, router, http.MethodPut, "/api/v1/users/"+created.ID, map[string]string{
		"name":  "Alice B",
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice B", decodeUser(t, rec).Name)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/users?name=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/users/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestHandler_CreateUserValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/users", map[string]string{"email": "a@example.com"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestHandler_UpdateUserIDMismatch(t *testing.T) {
	router, svc := newTestRouter(t)
	user, err := svc.AddUser(context.Background(), models.User{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/users/"+user.ID, map[string]string{
		"id":    "someone-else",
		"name":  "Alice",
		"email": "alice@example.com",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Preferences(t *testing.T) {
	router, svc := newTestRouter(t)
	user, err := svc.AddUser(context.Background(), models.User{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)

	base := "/api/v1/users/" + user.ID + "/preferences"

	rec := doJSON(t, router, http.MethodPost, base, map[string]interface{}{
		"destination": "LIS",
		"maxPrice":    150,
		"currency":    "EUR",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	withPref := decodeUser(t, rec)
	require.Len(t, withPref.AlertPreferences, 1)
	prefID := withPref.AlertPreferences[0].PreferenceID

	rec = doJSON(t, router, http.MethodPut, base+"/"+prefID, map[string]interface{}{
		"destination": "OPO",
		"maxPrice":    "99.90",
		"currency":    "EUR",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OPO", decodeUser(t, rec).AlertPreferences[0].Destination)

	rec = doJSON(t, router, http.MethodPut, base+"/missing", map[string]interface{}{
		"destination": "OPO",
		"maxPrice":    10,
		"currency":    "EUR",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, base+"/"+prefID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeUser(t, rec).AlertPreferences)
}

func TestHandler_PreferenceForUnknownUser(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/users/000000000000000000000000/preferences", map[string]interface{}{
		"destination": "LIS",
		"maxPrice":    150,
		"currency":    "EUR",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
