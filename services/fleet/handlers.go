package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dbifleet/go-tire-fleet-system/shared/lifecycle"
	"github.com/dbifleet/go-tire-fleet-system/shared/middleware"
	"github.com/dbifleet/go-tire-fleet-system/shared/models"
	"github.com/dbifleet/go-tire-fleet-system/shared/utils"
)

// CreateVehicleRequest represents the vehicle registration request
type CreateVehicleRequest struct {
	Plate     string                 `json:"plate" binding:"required"`
	Category  models.VehicleCategory `json:"category" binding:"required"`
	Type      string                 `json:"type"`
	Model     string                 `json:"model"`
	Brand     string                 `json:"brand"`
	Implement string                 `json:"implement"`
	Odometer  int64                  `json:"odometer"`
	Axles     []models.AxleDef       `json:"axles" binding:"required,min=1"`
}

// UpdateVehicleRequest represents the vehicle update request
type UpdateVehicleRequest struct {
	Type      *string               `json:"type"`
	Model     *string               `json:"model"`
	Brand     *string               `json:"brand"`
	Implement *string               `json:"implement"`
	Status    *models.VehicleStatus `json:"status"`
	Axles     []models.AxleDef      `json:"axles"`
}

func requestContext(c *gin.Context) (uuid.UUID, string, bool) {
	tenantID, err := middleware.GetTenantIDFromContext(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "Tenant information not found")
		return uuid.Nil, "", false
	}
	actor := c.GetString("username")
	if actor == "" {
		actor = c.GetString("email")
	}
	return tenantID, actor, true
}

// guardTenantStatus blocks fleet mutations for non-Active tenants. Runs
// inside the mutation transaction so a concurrent status flip cannot race
// the write.
func guardTenantStatus(tx *gorm.DB, tenantID uuid.UUID) error {
	var tenant models.Tenant
	if err := tx.Where("id = ?", tenantID).First(&tenant).Error; err != nil {
		return err
	}
	if !tenant.IsOperational() {
		return models.ErrTenantReadOnly
	}
	return nil
}

func validAxles(axles []models.AxleDef) bool {
	for _, axle := range axles {
		switch axle.Role {
		case models.AxleRoleSteer, models.AxleRoleDrive, models.AxleRoleAux, models.AxleRoleTrailer:
		default:
			return false
		}
	}
	return len(axles) > 0
}

// handleCreateVehicle registers a vehicle. The tenant row is locked for the
// whole transaction so the asset counter and limit check stay consistent
// under concurrent registrations.
func handleCreateVehicle(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		var req CreateVehicleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		if !validAxles(req.Axles) {
			utils.BadRequestResponse(c, "Axle definitions contain an unknown role")
			return
		}

		var vehicle models.Vehicle
		err := db.Transaction(func(tx *gorm.DB) error {
			var tenant models.Tenant
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", tenantID).First(&tenant).Error; err != nil {
				return err
			}
			if err := tenant.GuardOperationalWrite(1); err != nil {
				return err
			}

			vehicle = models.Vehicle{
				ID:        uuid.New(),
				TenantID:  tenantID,
				Plate:     req.Plate,
				Category:  req.Category,
				Type:      req.Type,
				Model:     req.Model,
				Brand:     req.Brand,
				Implement: req.Implement,
				Odometer:  req.Odometer,
				Status:    models.VehicleStatusActive,
				Axles:     req.Axles,
			}
			if err := tx.Create(&vehicle).Error; err != nil {
				return err
			}

			return tx.Model(&tenant).
				Update("current_assets", gorm.Expr("current_assets + 1")).Error
		})
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.CreatedResponse(c, "Vehicle registered successfully", vehicle)
	}
}

// handleListVehicles lists the tenant's fleet
func handleListVehicles(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		q := db.Where("tenant_id = ?", tenantID)
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if category := c.Query("category"); category != "" {
			q = q.Where("category = ?", category)
		}

		var vehicles []models.Vehicle
		if err := q.Order("plate").Find(&vehicles).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch vehicles")
			return
		}

		utils.OKResponse(c, "Vehicles retrieved successfully", vehicles)
	}
}

// handleGetVehicle fetches one vehicle together with its mounted tires
func handleGetVehicle(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		var vehicle models.Vehicle
		if err := db.Where("id = ? AND tenant_id = ?", c.Param("id"), tenantID).First(&vehicle).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Vehicle not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch vehicle")
			}
			return
		}

		var mounted []models.Tire
		if err := db.Where("vehicle_id = ? AND tenant_id = ?", vehicle.ID, tenantID).
			Order("position").Find(&mounted).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch mounted tires")
			return
		}

		utils.OKResponse(c, "Vehicle retrieved successfully", gin.H{
			"vehicle": vehicle,
			"tires":   mounted,
		})
	}
}

// handleUpdateVehicle updates vehicle data. Axle definitions may only change
// while no tires are mounted, otherwise installed positions could stop
// existing on the vehicle.
func handleUpdateVehicle(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		var req UpdateVehicleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		if req.Axles != nil && !validAxles(req.Axles) {
			utils.BadRequestResponse(c, "Axle definitions contain an unknown role")
			return
		}

		var vehicle models.Vehicle
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := guardTenantStatus(tx, tenantID); err != nil {
				return err
			}
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ? AND tenant_id = ?", c.Param("id"), tenantID).
				First(&vehicle).Error; err != nil {
				return err
			}

			if req.Axles != nil {
				var mounted int64
				if err := tx.Model(&models.Tire{}).
					Where("vehicle_id = ?", vehicle.ID).Count(&mounted).Error; err != nil {
					return err
				}
				if mounted > 0 {
					return models.ErrConflict
				}
				vehicle.Axles = req.Axles
			}

			if req.Type != nil {
				vehicle.Type = *req.Type
			}
			if req.Model != nil {
				vehicle.Model = *req.Model
			}
			if req.Brand != nil {
				vehicle.Brand = *req.Brand
			}
			if req.Implement != nil {
				vehicle.Implement = *req.Implement
			}
			if req.Status != nil {
				vehicle.Status = *req.Status
			}

			return tx.Save(&vehicle).Error
		})
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Vehicle updated successfully", vehicle)
	}
}

// handleDeleteVehicle removes a vehicle from the fleet. Mounted tires are
// dismounted back to stock inside the same transaction, each with its
// mileage settled against the final odometer and a history entry, and the
// tenant's asset counter is decremented.
func handleDeleteVehicle(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, actor, ok := requestContext(c)
		if !ok {
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := guardTenantStatus(tx, tenantID); err != nil {
				return err
			}
			var vehicle models.Vehicle
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ? AND tenant_id = ?", c.Param("id"), tenantID).
				First(&vehicle).Error; err != nil {
				return err
			}

			var mounted []models.Tire
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("vehicle_id = ?", vehicle.ID).Find(&mounted).Error; err != nil {
				return err
			}
			for i := range mounted {
				tire := &mounted[i]
				from := tire.Status
				if tire.Status == models.TireStatusInstalled {
					tire.SettleMileage(vehicle.Odometer)
				}
				tire.Status = models.TireStatusStock
				tire.ClearVehicleLink(models.LocationStock)
				if err := tx.Save(tire).Error; err != nil {
					return err
				}
				entry := models.TireHistoryEntry{
					ID:         uuid.New(),
					TenantID:   tenantID,
					TireID:     tire.ID,
					FromStatus: from,
					ToStatus:   models.TireStatusStock,
					Actor:      actor,
					Note:       "Dismounted, vehicle " + vehicle.Plate + " removed from fleet",
				}
				if err := tx.Create(&entry).Error; err != nil {
					return err
				}
			}

			if err := tx.Delete(&vehicle).Error; err != nil {
				return err
			}

			return tx.Model(&models.Tenant{}).Where("id = ?", tenantID).
				Update("current_assets", gorm.Expr("GREATEST(current_assets - 1, 0)")).Error
		})
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Vehicle deleted successfully", nil)
	}
}

// handleGetPositions returns the vehicle's slot layout: every derived
// position code, which tire occupies it, and the free subset.
func handleGetPositions(db *gorm.DB, engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		vehicleID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid vehicle id")
			return
		}

		var vehicle models.Vehicle
		if err := db.Where("id = ? AND tenant_id = ?", vehicleID, tenantID).First(&vehicle).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Vehicle not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch vehicle")
			}
			return
		}

		var mounted []models.Tire
		if err := db.Where("vehicle_id = ?", vehicle.ID).Find(&mounted).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch mounted tires")
			return
		}
		occupied := make(map[string]uuid.UUID, len(mounted))
		for _, tire := range mounted {
			occupied[tire.Position] = tire.ID
		}

		available, err := engine.AvailablePositions(c.Request.Context(), tenantID, vehicle.ID)
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Positions retrieved successfully", gin.H{
			"positions": vehicle.PositionCodes(),
			"occupied":  occupied,
			"available": available,
		})
	}
}

// handleAssignTire mounts a stock tire into a vehicle slot
func handleAssignTire(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, actor, ok := requestContext(c)
		if !ok {
			return
		}

		vehicleID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid vehicle id")
			return
		}

		var req struct {
			TireID   uuid.UUID `json:"tire_id" binding:"required"`
			Position string    `json:"position" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		tire, err := engine.Install(c.Request.Context(), tenantID, req.TireID, vehicleID, req.Position, actor)
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Tire installed", tire)
	}
}

// handleReleaseTire dismounts a tire back to stock
func handleReleaseTire(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, actor, ok := requestContext(c)
		if !ok {
			return
		}

		tireID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid tire id")
			return
		}

		tire, err := engine.Release(c.Request.Context(), tenantID, tireID, actor)
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Tire released to stock", tire)
	}
}

// handleUpdateOdometer advances the vehicle odometer. Readings never go
// backwards; mileage attribution on release depends on it.
func handleUpdateOdometer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		var req struct {
			Odometer int64 `json:"odometer" binding:"required,gt=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var vehicle models.Vehicle
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := guardTenantStatus(tx, tenantID); err != nil {
				return err
			}
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ? AND tenant_id = ?", c.Param("id"), tenantID).
				First(&vehicle).Error; err != nil {
				return err
			}
			if req.Odometer < vehicle.Odometer {
				return models.ErrConflict
			}
			vehicle.Odometer = req.Odometer
			return tx.Save(&vehicle).Error
		})
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Odometer updated", vehicle)
	}
}
