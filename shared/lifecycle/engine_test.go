package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

func setupMockEngine(t *testing.T) (sqlmock.Sqlmock, *Engine) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return mock, NewEngine(db, nil, 3.0)
}

func activeTenantRow(tenantID uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "status"}).AddRow(tenantID.String(), "Active")
}

func TestTransitionsBlockedForNonActiveTenant(t *testing.T) {
	for _, status := range []models.TenantStatus{
		models.TenantStatusPaused,
		models.TenantStatusCancelled,
		models.TenantStatusExpired,
	} {
		mock, engine := setupMockEngine(t)
		tenantID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM "tenants"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(tenantID.String(), string(status)))
		mock.ExpectRollback()

		_, err := engine.Scrap(context.Background(), tenantID, uuid.New(), "sidewall torn", "carlos")
		require.ErrorIs(t, err, models.ErrTenantReadOnly, "scrap under %s tenant must be read-only", status)
		require.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestInstallRejectsOccupiedPosition(t *testing.T) {
	mock, engine := setupMockEngine(t)
	tenantID := uuid.New()
	tireID := uuid.New()
	vehicleID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "tenants"`).
		WillReturnRows(activeTenantRow(tenantID))
	mock.ExpectQuery(`SELECT (.+) FROM "tires" (.+) FOR UPDATE NOWAIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "serial_number", "status", "condition", "current_depth", "original_depth"}).
			AddRow(tireID.String(), tenantID.String(), "FT-0002", "STOCK", "NEW", 16.0, 16.0))
	mock.ExpectQuery(`SELECT (.+) FROM "vehicles" (.+) FOR UPDATE NOWAIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "plate", "odometer", "axles"}).
			AddRow(vehicleID.String(), tenantID.String(), "ABC1D23", int64(120000),
				`[{"role":"STEER","is_dual":false},{"role":"DRIVE","is_dual":true}]`))
	// Slot 2LO is already taken.
	mock.ExpectQuery(`SELECT count\(\*\) FROM "tires"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := engine.Install(context.Background(), tenantID, tireID, vehicleID, "2LO", "carlos")
	require.ErrorIs(t, err, models.ErrPositionOccupied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallLostRowLockIsConflict(t *testing.T) {
	mock, engine := setupMockEngine(t)
	tenantID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "tenants"`).
		WillReturnRows(activeTenantRow(tenantID))
	mock.ExpectQuery(`SELECT (.+) FROM "tires" (.+) FOR UPDATE NOWAIT`).
		WillReturnError(errors.New(`ERROR: could not obtain lock on row in relation "tires" (SQLSTATE 55P03)`))
	mock.ExpectRollback()

	_, err := engine.Install(context.Background(), tenantID, uuid.New(), uuid.New(), "1L", "carlos")
	require.ErrorIs(t, err, models.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
