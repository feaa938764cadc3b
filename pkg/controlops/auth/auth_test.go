package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/database"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
)

const testSecret = "test-secret"

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return db
}

func newTokenService() *TokenService {
	return NewTokenService(testSecret, 15*time.Minute, 7*24*time.Hour)
}

func setupTestRouter(db *gorm.DB, tokens *TokenService, limiter *LoginLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db, tokens, limiter)
	handler.RegisterRoutes(r.Group("/auth"))

	admin := r.Group("/admin", handler.Middleware(), RequireAdmin())
	admin.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func createTestUser(t *testing.T, db *gorm.DB, username, password string, role models.Role) models.User {
	hash, err := HashPassword(password)
	require.NoError(t, err)
	user := models.User{Username: username, PasswordHash: hash, Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func postJSON(r *gin.Engine, path string, body any, header string) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func get(r *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func login(t *testing.T, r *gin.Engine, username, password string) TokenPair {
	resp := postJSON(r, "/auth/login", LoginRequest{Username: username, Password: password}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var pair TokenPair
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &pair))
	return pair
}

func TestPasswordHashing(t *testing.T) {
	password := "testpassword123"

	hash, err := HashPassword(password)
	require.NoError(t, err)
	assert.NotEqual(t, password, hash)
	assert.True(t, CheckPassword(password, hash))
	assert.False(t, CheckPassword("wrongpassword", hash))
	assert.False(t, CheckPassword(password, ""))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestTokenService(t *testing.T) {
	tokens := newTokenService()
	user := models.User{ID: 7, Username: "alice", Role: models.RoleAdmin}

	pair, err := tokens.IssuePair(user)
	require.NoError(t, err)
	assert.Equal(t, BearerTokenType, pair.TokenType)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := tokens.Validate(pair.AccessToken, TokenAccess)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, TokenAccess, claims.Type)

	_, err = tokens.Validate(pair.AccessToken, TokenRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = tokens.Validate(pair.RefreshToken, TokenAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = tokens.Validate("invalid-token", TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenService("another-secret", time.Minute, time.Hour)
	_, err = other.Validate(pair.AccessToken, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpiry(t *testing.T) {
	tokens := newTokenService()
	pair, err := tokens.IssuePair(models.User{ID: 1, Role: models.RoleUser})
	require.NoError(t, err)

	tokens.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = tokens.Validate(pair.AccessToken, TokenAccess)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = tokens.Validate(pair.RefreshToken, TokenRefresh)
	assert.NoError(t, err, "refresh token outlives the access token")
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	tokens := newTokenService()
	router := setupTestRouter(db, tokens, nil)
	createTestUser(t, db, "alice", "password123", models.RoleUser)

	pair := login(t, router, "alice", "password123")
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	resp := get(router, "/auth/me", "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusOK, resp.Code)
	var me UserResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, models.RoleUser, me.Role)
}

func TestLoginInvalidCredentials(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, newTokenService(), nil)
	createTestUser(t, db, "alice", "password123", models.RoleUser)

	for _, req := range []LoginRequest{
		{Username: "alice", Password: "wrong"},
		{Username: "nobody", Password: "password123"},
		{Username: "Alice", Password: "password123"},
	} {
		resp := postJSON(router, "/auth/login", req, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Code, "login as %s", req.Username)
	}

	resp := postJSON(router, "/auth/login", gin.H{"username": "alice"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestRefresh(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, newTokenService(), nil)
	createTestUser(t, db, "alice", "password123", models.RoleUser)
	pair := login(t, router, "alice", "password123")

	resp := postJSON(router, "/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var fresh TokenPair
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &fresh))
	assert.NotEqual(t, pair.AccessToken, fresh.AccessToken)

	// Not rotated: the old refresh token still works
	resp = postJSON(router, "/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, resp.Code)

	// An access token is the wrong kind
	resp = postJSON(router, "/auth/refresh", RefreshRequest{RefreshToken: pair.AccessToken}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = postJSON(router, "/auth/refresh", RefreshRequest{RefreshToken: "garbage"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthMiddleware(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, newTokenService(), nil)
	admin := createTestUser(t, db, "root", "password123", models.RoleAdmin)
	createTestUser(t, db, "alice", "password123", models.RoleUser)

	adminPair := login(t, router, "root", "password123")
	userPair := login(t, router, "alice", "password123")

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + adminPair.RefreshToken, http.StatusUnauthorized},
		{"non admin", "Bearer " + userPair.AccessToken, http.StatusForbidden},
		{"admin", "Bearer " + adminPair.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(router, "/admin/ping", tt.header)
			assert.Equal(t, tt.status, resp.Code, resp.Body.String())
		})
	}

	// Demoted in the store: the token still says admin but the stored role wins
	require.NoError(t, db.Model(&admin).Update("role", models.RoleUser).Error)
	resp := get(router, "/admin/ping", "Bearer "+adminPair.AccessToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	// Deleted users lose access immediately
	require.NoError(t, db.Delete(&admin).Error)
	resp = get(router, "/admin/ping", "Bearer "+adminPair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = postJSON(router, "/auth/refresh", RefreshRequest{RefreshToken: adminPair.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLoginLimiter(t *testing.T) {
	limiter := NewLoginLimiter(60, 2)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"), "limits are per client")

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"), "one token refills per second at 60/min")

	now = now.Add(time.Hour)
	limiter.Allow("10.0.0.3")
	assert.Len(t, limiter.visitors, 1, "stale visitors are swept")
}

func TestLoginRateLimited(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, newTokenService(), NewLoginLimiter(1, 1))
	createTestUser(t, db, "alice", "password123", models.RoleUser)

	resp := postJSON(router, "/auth/login", LoginRequest{Username: "alice", Password: "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = postJSON(router, "/auth/login", LoginRequest{Username: "alice", Password: "password123"}, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}
