package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

func TestTenantStatusTransitions(t *testing.T) {
	assert.True(t, canChangeTenantStatus(models.TenantStatusActive, models.TenantStatusPaused))
	assert.True(t, canChangeTenantStatus(models.TenantStatusActive, models.TenantStatusCancelled))
	assert.True(t, canChangeTenantStatus(models.TenantStatusActive, models.TenantStatusExpired))
	assert.True(t, canChangeTenantStatus(models.TenantStatusPaused, models.TenantStatusActive))
	assert.True(t, canChangeTenantStatus(models.TenantStatusExpired, models.TenantStatusActive))
}

func TestCancelledIsTerminal(t *testing.T) {
	for _, to := range []models.TenantStatus{
		models.TenantStatusActive,
		models.TenantStatusPaused,
		models.TenantStatusExpired,
	} {
		assert.False(t, canChangeTenantStatus(models.TenantStatusCancelled, to), "Cancelled -> %s must be blocked", to)
	}
}

func TestPausedCannotExpire(t *testing.T) {
	assert.False(t, canChangeTenantStatus(models.TenantStatusPaused, models.TenantStatusExpired))
}

func TestTenantUsersOrderedByName(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	tenantID := uuid.New()
	// The users table has no email column; ordering must use name.
	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE tenant_id = (.+) ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"cognito_id", "tenant_id", "name", "role", "active"}).
			AddRow("cog-1", tenantID.String(), "Ana", "ADMIN", true).
			AddRow("cog-2", tenantID.String(), "Bruno", "MECHANIC", true))

	router := gin.New()
	router.GET("/tenants/:id/users", handleGetTenantUsers(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tenants/"+tenantID.String()+"/users", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
