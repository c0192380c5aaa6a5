package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
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

func TestValidAxles(t *testing.T) {
	assert.True(t, validAxles([]models.AxleDef{
		{Role: models.AxleRoleSteer},
		{Role: models.AxleRoleDrive, IsDual: true},
	}))
	assert.True(t, validAxles([]models.AxleDef{
		{Role: models.AxleRoleTrailer, IsDual: true},
		{Role: models.AxleRoleAux},
	}))
}

func TestValidAxlesRejectsUnknownRole(t *testing.T) {
	assert.False(t, validAxles([]models.AxleDef{{Role: "TANDEM"}}))
	assert.False(t, validAxles([]models.AxleDef{
		{Role: models.AxleRoleSteer},
		{Role: ""},
	}))
}

func TestValidAxlesRejectsEmpty(t *testing.T) {
	assert.False(t, validAxles(nil))
	assert.False(t, validAxles([]models.AxleDef{}))
}

func TestOdometerUpdateBlockedForPausedTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	tenantID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "tenants"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(tenantID.String(), "Paused"))
	mock.ExpectRollback()

	router := gin.New()
	router.POST("/vehicles/:id/odometer", func(c *gin.Context) {
		c.Set("tenant_id", tenantID.String())
	}, handleUpdateOdometer(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vehicles/"+uuid.NewString()+"/odometer",
		strings.NewReader(`{"odometer": 125000}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
