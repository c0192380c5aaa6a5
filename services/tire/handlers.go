package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dbifleet/go-tire-fleet-system/shared/lifecycle"
	"github.com/dbifleet/go-tire-fleet-system/shared/middleware"
	"github.com/dbifleet/go-tire-fleet-system/shared/models"
	"github.com/dbifleet/go-tire-fleet-system/shared/utils"
)

// CreateTireRequest represents the tire registration request
type CreateTireRequest struct {
	SerialNumber  string  `json:"serial_number" binding:"required"`
	Brand         string  `json:"brand" binding:"required"`
	Model         string  `json:"model"`
	Size          string  `json:"size" binding:"required"`
	OriginalDepth float64 `json:"original_depth" binding:"required,gt=0"`
	Pressure      float64 `json:"pressure"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	PurchaseCost  float64    `json:"purchase_cost"`
}

// UpdateTireRequest represents the tire catalog update request
type UpdateTireRequest struct {
	Brand        *string    `json:"brand"`
	Model        *string    `json:"model"`
	Size         *string    `json:"size"`
	PurchaseDate *time.Time `json:"purchase_date"`
	PurchaseCost *float64   `json:"purchase_cost"`
}

// requestContext pulls the tenant and actor for the current call.
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

// guardTenantWrite enforces the subscription guards before an operational
// mutation. The tenant row is locked by the caller's transaction when the
// write changes asset counts; plain status checks read without a lock.
func guardTenantWrite(db *gorm.DB, tenantID uuid.UUID, newAssets int) error {
	var tenant models.Tenant
	if err := db.Where("id = ?", tenantID).First(&tenant).Error; err != nil {
		return err
	}
	if err := tenant.GuardOperationalWrite(newAssets); err != nil {
		return err
	}
	// A tenant already over its limit (plan downgrade) may not register
	// tires either.
	if tenant.CurrentAssets > tenant.AssetLimit {
		return models.ErrAssetLimitExceeded
	}
	return nil
}

// handleCreateTire registers a tire in stock
func handleCreateTire(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		var req CreateTireRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		if err := guardTenantWrite(db, tenantID, 0); err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		// Serial numbers are unique within the tenant
		var existing models.Tire
		if err := db.Where("tenant_id = ? AND serial_number = ?", tenantID, req.SerialNumber).First(&existing).Error; err == nil {
			utils.BadRequestResponse(c, "Serial number already registered")
			return
		}

		tire := models.Tire{
			ID:            uuid.New(),
			TenantID:      tenantID,
			SerialNumber:  req.SerialNumber,
			Brand:         req.Brand,
			Model:         req.Model,
			Size:          req.Size,
			Status:        models.TireStatusStock,
			Condition:     models.TireConditionNew,
			CurrentDepth:  req.OriginalDepth,
			OriginalDepth: req.OriginalDepth,
			CurrentPressure: req.Pressure,
			Location:      models.LocationStock,
			PurchaseDate:  req.PurchaseDate,
			PurchaseCost:  req.PurchaseCost,
		}

		if err := db.Create(&tire).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create tire")
			return
		}

		utils.CreatedResponse(c, "Tire registered successfully", tire)
	}
}

// handleListTires lists the tenant's tires, optionally filtered by status
func handleListTires(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		q := db.Where("tenant_id = ?", tenantID)
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if vehicleID := c.Query("vehicle_id"); vehicleID != "" {
			q = q.Where("vehicle_id = ?", vehicleID)
		}

		var tires []models.Tire
		if err := q.Order("serial_number").Find(&tires).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch tires")
			return
		}

		utils.OKResponse(c, "Tires retrieved successfully", tires)
	}
}

// handleGetTire fetches one tire with its transition history
func handleGetTire(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		var tire models.Tire
		err := db.Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).Where("id = ? AND tenant_id = ?", c.Param("id"), tenantID).First(&tire).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Tire not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch tire")
			}
			return
		}

		utils.OKResponse(c, "Tire retrieved successfully", tire)
	}
}

// handleUpdateTire updates catalog and financial fields. Lifecycle fields are
// only reachable through the transition endpoints.
func handleUpdateTire(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		var tire models.Tire
		if err := db.Where("id = ? AND tenant_id = ?", c.Param("id"), tenantID).First(&tire).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Tire not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch tire")
			}
			return
		}

		var req UpdateTireRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		if err := guardTenantWrite(db, tenantID, 0); err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		if req.Brand != nil {
			tire.Brand = *req.Brand
		}
		if req.Model != nil {
			tire.Model = *req.Model
		}
		if req.Size != nil {
			tire.Size = *req.Size
		}
		if req.PurchaseDate != nil {
			tire.PurchaseDate = req.PurchaseDate
		}
		if req.PurchaseCost != nil {
			tire.PurchaseCost = *req.PurchaseCost
		}

		if err := db.Save(&tire).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to update tire")
			return
		}

		utils.OKResponse(c, "Tire updated successfully", tire)
	}
}

// handleGetTireHistory returns the immutable transition log
func handleGetTireHistory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		var entries []models.TireHistoryEntry
		err := db.Where("tire_id = ? AND tenant_id = ?", c.Param("id"), tenantID).
			Order("created_at DESC").Find(&entries).Error
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch tire history")
			return
		}

		utils.OKResponse(c, "Tire history retrieved successfully", entries)
	}
}

// handleUpdateWear records inspection depth/pressure readings
func handleUpdateWear(engine *lifecycle.Engine) gin.HandlerFunc {
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

		var req struct {
			Depth    float64 `json:"depth" binding:"required,gt=0"`
			Pressure float64 `json:"pressure"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		tire, err := engine.UpdateWear(c.Request.Context(), tenantID, tireID, req.Depth, req.Pressure, actor)
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Wear reading recorded", tire)
	}
}

// handleSendToRetread ships a worn or damaged tire to a retreader
func handleSendToRetread(engine *lifecycle.Engine) gin.HandlerFunc {
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

		var req struct {
			Retreader string `json:"retreader" binding:"required"`
			Damaged   bool   `json:"damaged"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		tire, err := engine.SendToRetread(c.Request.Context(), tenantID, tireID, req.Retreader, req.Damaged, actor)
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Tire sent to retread", tire)
	}
}

// handleReturnFromRetread completes a retread cycle
func handleReturnFromRetread(engine *lifecycle.Engine) gin.HandlerFunc {
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

		var req struct {
			TreadBrand   string     `json:"tread_brand"`
			TreadModel   string     `json:"tread_model"`
			TreadType    string     `json:"tread_type"`
			Cost         float64    `json:"cost"`
			NominalDepth float64    `json:"nominal_depth"`
			ReturnDate   *time.Time `json:"return_date"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		in := lifecycle.RetreadReturnInput{
			TreadBrand:   req.TreadBrand,
			TreadModel:   req.TreadModel,
			TreadType:    models.TreadType(req.TreadType),
			Cost:         req.Cost,
			NominalDepth: req.NominalDepth,
		}
		if req.ReturnDate != nil {
			in.ReturnDate = *req.ReturnDate
		} else {
			in.ReturnDate = time.Now()
		}

		tire, err := engine.ReturnFromRetread(c.Request.Context(), tenantID, tireID, in, actor)
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Tire returned from retread", tire)
	}
}

// handleScrapTire retires a casing permanently
func handleScrapTire(engine *lifecycle.Engine) gin.HandlerFunc {
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

		var req struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Scrap reason is required")
			return
		}

		tire, err := engine.Scrap(c.Request.Context(), tenantID, tireID, req.Reason, actor)
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Tire scrapped", tire)
	}
}

// CreateMaintenanceRequest represents a maintenance log entry
type CreateMaintenanceRequest struct {
	Date        *time.Time `json:"date"`
	Type        string     `json:"type" binding:"required"`
	Cost        float64    `json:"cost"`
	Odometer    int64      `json:"odometer"`
	Description string     `json:"description"`
}

// handleCreateMaintenanceRecord appends to the tire's maintenance log.
// Records are immutable; there is deliberately no update or delete handler.
func handleCreateMaintenanceRecord(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, actor, ok := requestContext(c)
		if !ok {
			return
		}

		var req CreateMaintenanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		recordType := models.MaintenanceType(req.Type)
		if !recordType.IsValid() {
			utils.BadRequestResponse(c, "Unknown maintenance type")
			return
		}

		if err := guardTenantWrite(db, tenantID, 0); err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		var tire models.Tire
		if err := db.Where("id = ? AND tenant_id = ?", c.Param("id"), tenantID).First(&tire).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Tire not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch tire")
			}
			return
		}

		record := models.MaintenanceRecord{
			ID:          uuid.New(),
			TenantID:    tenantID,
			TireID:      tire.ID,
			VehicleID:   tire.VehicleID,
			Type:        recordType,
			Cost:        req.Cost,
			Odometer:    req.Odometer,
			Description: req.Description,
			PerformedBy: actor,
			Position:    tire.Position,
		}
		if req.Date != nil {
			record.Date = *req.Date
		} else {
			record.Date = time.Now()
		}

		if err := db.Create(&record).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create maintenance record")
			return
		}

		utils.CreatedResponse(c, "Maintenance record created", record)
	}
}

// handleListTireMaintenance lists a tire's maintenance log
func handleListTireMaintenance(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		var records []models.MaintenanceRecord
		err := db.Where("tire_id = ? AND tenant_id = ?", c.Param("id"), tenantID).
			Order("date DESC").Find(&records).Error
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch maintenance records")
			return
		}

		utils.OKResponse(c, "Maintenance records retrieved successfully", records)
	}
}

// handleListMaintenance lists maintenance records across the fleet,
// optionally filtered by vehicle or type
func handleListMaintenance(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _, ok := requestContext(c)
		if !ok {
			return
		}

		q := db.Where("tenant_id = ?", tenantID)
		if vehicleID := c.Query("vehicle_id"); vehicleID != "" {
			q = q.Where("vehicle_id = ?", vehicleID)
		}
		if recordType := c.Query("type"); recordType != "" {
			q = q.Where("type = ?", recordType)
		}

		var records []models.MaintenanceRecord
		if err := q.Order("date DESC").Find(&records).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch maintenance records")
			return
		}

		utils.OKResponse(c, "Maintenance records retrieved successfully", records)
	}
}
