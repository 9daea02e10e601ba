package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"partshop/internal/database"
	"partshop/internal/handlers"
	"partshop/internal/models"
	"partshop/internal/policy"
	"partshop/internal/repositories"
	"partshop/internal/services"
	"partshop/pkg/backend"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type liveService struct {
	db      *gorm.DB
	url     string
	anonKey string
	pad     *models.Part
}

// startService serves the real data service on an in-memory database.
func startService(t *testing.T) *liveService {
	t.Helper()
	db, err := database.Open(database.Opts{Driver: "sqlite", DSN: database.MemoryDSN(t.Name()), LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	auth := services.NewAuthService(
		repositories.NewGORMUserRepository(db),
		repositories.NewGORMVerificationCodeRepository(db),
		nil,
		"test_jwt_secret",
		15*time.Minute,
		nil,
	)
	tables := services.NewTableService(policy.Strict(), repositories.NewGORMRowRepository(db))
	anonKey, err := auth.IssueRoleKey(policy.RoleAnon, 0)
	require.NoError(t, err)

	price := decimal.RequireFromString("12.50")
	pad := &models.Part{PartNumber: "BR-001", NameEN: "Brake pad", Category: models.Text("brakes"), Price: &price, Quantity: 4}
	require.NoError(t, db.Create(pad).Error)

	app := handlers.NewApp(handlers.AppDeps{DB: db, Auth: auth, Tables: tables})
	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)

	return &liveService{db: db, url: srv.URL, anonKey: anonKey, pad: pad}
}

func requireAPIError(t *testing.T, err error, status int, code string) *backend.APIError {
	t.Helper()
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.Status, apiErr.Message)
	assert.Equal(t, code, apiErr.Code, apiErr.Message)
	return apiErr
}

func TestClient_ReadsCatalogWithAnonKey(t *testing.T) {
	svc := startService(t)
	c := backend.MustNewClient(backend.Config{URL: svc.url, AnonKey: svc.anonKey}, nil)
	ctx := context.Background()

	var parts []struct {
		PartNumber string  `json:"part_number"`
		ImageURL   *string `json:"image_url"`
	}
	require.NoError(t, c.From("parts").Select("part_number", "image_url").Eq("category", "brakes").Is("image_url", nil).Execute(ctx, &parts))
	require.Len(t, parts, 1)
	assert.Equal(t, "BR-001", parts[0].PartNumber)
	assert.Nil(t, parts[0].ImageURL)

	parts = nil
	require.NoError(t, c.From("parts").Limit(0).Execute(ctx, &parts))
	assert.Empty(t, parts)

	err := c.From("users").Execute(ctx, &parts)
	requireAPIError(t, err, http.StatusForbidden, "forbidden")
}

func TestClient_RejectedCredentials(t *testing.T) {
	svc := startService(t)
	ctx := context.Background()

	bad := backend.MustNewClient(backend.Config{URL: svc.url, AnonKey: "not-a-key"}, nil)
	err := bad.From("parts").Execute(ctx, nil)
	requireAPIError(t, err, http.StatusUnauthorized, "invalid_token")

	c := backend.MustNewClient(backend.Config{URL: svc.url, AnonKey: svc.anonKey}, nil)
	err = c.WithToken("expired.or.forged").From("parts").Execute(ctx, nil)
	requireAPIError(t, err, http.StatusUnauthorized, "invalid_token")
}

func TestClient_SignUpThenCart(t *testing.T) {
	svc := startService(t)
	c := backend.MustNewClient(backend.Config{URL: svc.url, AnonKey: svc.anonKey}, nil)
	ctx := context.Background()

	user, err := c.SignUp(ctx, backend.SignUpParams{Email: "buyer@example.com", Password: "password123", Company: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, "pending", user.Status)

	_, err = c.SignUp(ctx, backend.SignUpParams{Email: "buyer@example.com", Password: "password123"})
	requireAPIError(t, err, http.StatusConflict, "email_taken")
	_, err = c.SignUp(ctx, backend.SignUpParams{Email: "not-an-email", Password: "password123"})
	requireAPIError(t, err, http.StatusBadRequest, "validation_failed")

	_, err = c.SignIn(ctx, "buyer@example.com", "password123")
	requireAPIError(t, err, http.StatusForbidden, "not_approved")

	require.NoError(t, svc.db.Model(&models.User{}).Where("id = ?", user.ID).Update("status", models.UserStatusApproved).Error)
	_, err = c.SignIn(ctx, "buyer@example.com", "wrong-password")
	requireAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")
	session, err := c.SignIn(ctx, "buyer@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "bearer", session.TokenType)

	buyer := c.WithToken(session.AccessToken)
	var rows []models.CartItem
	require.NoError(t, buyer.From("cart_items").Insert(ctx, map[string]any{"part_id": svc.pad.ID, "quantity": 2}, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, user.ID, rows[0].UserID)

	err = buyer.From("cart_items").Insert(ctx, map[string]any{"part_id": svc.pad.ID, "quantity": 1}, nil)
	apiErr := requireAPIError(t, err, http.StatusConflict, "duplicate")
	assert.Contains(t, apiErr.Message, "UNIQUE constraint failed")

	err = buyer.From("cart_items").Insert(ctx, map[string]any{"part_id": "no-such-part", "quantity": 1}, nil)
	apiErr = requireAPIError(t, err, http.StatusBadRequest, "constraint_violation")
	assert.Contains(t, apiErr.Message, "FOREIGN KEY constraint failed")

	err = buyer.From("cart_items").Update(ctx, map[string]int{"quantity": 3}, nil)
	requireAPIError(t, err, http.StatusBadRequest, "filter_required")

	rows = nil
	require.NoError(t, buyer.From("cart_items").Eq("part_id", svc.pad.ID).Update(ctx, map[string]int{"quantity": 3}, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Quantity)

	rows = nil
	require.NoError(t, buyer.From("cart_items").Eq("part_id", svc.pad.ID).Delete(ctx, &rows))
	assert.Len(t, rows, 1)
}
