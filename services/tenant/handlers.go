package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
	"github.com/dbifleet/go-tire-fleet-system/shared/provision"
	"github.com/dbifleet/go-tire-fleet-system/shared/utils"
)

// CreatePlanRequest represents the create plan request
type CreatePlanRequest struct {
	Name        string               `json:"name" binding:"required"`
	Price       float64              `json:"price" binding:"min=0"`
	Frequency   models.PlanFrequency `json:"frequency" binding:"required,oneof=MONTHLY YEARLY"`
	AssetLimit  int                  `json:"asset_limit" binding:"required,gt=0"`
	Description string               `json:"description"`
}

// UpdatePlanRequest represents the update plan request
type UpdatePlanRequest struct {
	Name        *string               `json:"name"`
	Price       *float64              `json:"price"`
	Frequency   *models.PlanFrequency `json:"frequency"`
	AssetLimit  *int                  `json:"asset_limit"`
	Active      *bool                 `json:"active"`
	Description *string               `json:"description"`
}

// handleCreatePlan creates a subscription plan
func handleCreatePlan(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreatePlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var existing models.Plan
		if err := db.Where("name = ?", req.Name).First(&existing).Error; err == nil {
			utils.BadRequestResponse(c, "Plan name already exists")
			return
		}

		plan := models.Plan{
			ID:          uuid.New(),
			Name:        req.Name,
			Price:       req.Price,
			Frequency:   req.Frequency,
			AssetLimit:  req.AssetLimit,
			Active:      true,
			Description: req.Description,
		}

		if err := db.Create(&plan).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create plan")
			return
		}

		utils.CreatedResponse(c, "Plan created successfully", plan)
	}
}

// handleListPlans lists subscription plans
func handleListPlans(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Order("price")
		if c.Query("active") == "true" {
			q = q.Where("active = ?", true)
		}

		var plans []models.Plan
		if err := q.Find(&plans).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch plans")
			return
		}

		utils.OKResponse(c, "Plans retrieved successfully", plans)
	}
}

// handleGetPlan fetches one plan
func handleGetPlan(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var plan models.Plan
		if err := db.Where("id = ?", c.Param("id")).First(&plan).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Plan not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch plan")
			}
			return
		}

		utils.OKResponse(c, "Plan retrieved successfully", plan)
	}
}

// handleUpdatePlan updates a plan. Raising or lowering the asset limit does
// not touch existing subscribers; their limit is copied at assignment time.
func handleUpdatePlan(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var plan models.Plan
		if err := db.Where("id = ?", c.Param("id")).First(&plan).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Plan not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch plan")
			}
			return
		}

		var req UpdatePlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		if req.Name != nil {
			var existing models.Plan
			if err := db.Where("name = ? AND id != ?", *req.Name, plan.ID).First(&existing).Error; err == nil {
				utils.BadRequestResponse(c, "Plan name already exists")
				return
			}
			plan.Name = *req.Name
		}
		if req.Price != nil {
			plan.Price = *req.Price
		}
		if req.Frequency != nil {
			plan.Frequency = *req.Frequency
		}
		if req.AssetLimit != nil && *req.AssetLimit > 0 {
			plan.AssetLimit = *req.AssetLimit
		}
		if req.Active != nil {
			plan.Active = *req.Active
		}
		if req.Description != nil {
			plan.Description = *req.Description
		}

		if err := db.Save(&plan).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to update plan")
			return
		}

		utils.OKResponse(c, "Plan updated successfully", plan)
	}
}

// handleDeletePlan removes a plan that no tenant subscribes to
func handleDeletePlan(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var plan models.Plan
		if err := db.Where("id = ?", c.Param("id")).First(&plan).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Plan not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch plan")
			}
			return
		}

		var subscribers int64
		if err := db.Model(&models.Tenant{}).Where("plan_id = ?", plan.ID).Count(&subscribers).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to check plan subscribers")
			return
		}
		if subscribers > 0 {
			utils.BadRequestResponse(c, "Cannot delete plan with active subscribers")
			return
		}

		if err := db.Delete(&plan).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to delete plan")
			return
		}

		utils.OKResponse(c, "Plan deleted successfully", nil)
	}
}

// CreateTenantRequest represents the create tenant request
type CreateTenantRequest struct {
	Name        string     `json:"name" binding:"required"`
	FantasyName string     `json:"fantasy_name"`
	Document    string     `json:"document" binding:"required"`
	ContactName string     `json:"contact_name"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email" binding:"omitempty,email"`
	PlanID      *uuid.UUID `json:"plan_id"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// UpdateTenantRequest represents the update tenant request
type UpdateTenantRequest struct {
	Name        *string    `json:"name"`
	FantasyName *string    `json:"fantasy_name"`
	ContactName *string    `json:"contact_name"`
	Phone       *string    `json:"phone"`
	Email       *string    `json:"email"`
	PlanID      *uuid.UUID `json:"plan_id"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// loadPlan resolves a plan reference and rejects inactive plans.
func loadPlan(db *gorm.DB, planID uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := db.Where("id = ?", planID).First(&plan).Error; err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, models.ErrConflict
	}
	return &plan, nil
}

// handleCreateTenant provisions a new tenant account
func handleCreateTenant(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var existing models.Tenant
		if err := db.Where("document = ?", req.Document).First(&existing).Error; err == nil {
			utils.BadRequestResponse(c, "Document already registered")
			return
		}

		tenant := models.Tenant{
			ID:          uuid.New(),
			Name:        req.Name,
			FantasyName: req.FantasyName,
			Document:    req.Document,
			ContactName: req.ContactName,
			Phone:       req.Phone,
			Email:       req.Email,
			Status:      models.TenantStatusActive,
			ExpiresAt:   req.ExpiresAt,
		}

		if req.PlanID != nil {
			plan, err := loadPlan(db, *req.PlanID)
			if err != nil {
				utils.BadRequestResponse(c, "Unknown or inactive plan")
				return
			}
			tenant.PlanID = &plan.ID
			tenant.AssetLimit = plan.AssetLimit
		}

		if err := db.Create(&tenant).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create tenant")
			return
		}

		utils.CreatedResponse(c, "Tenant created successfully", tenant)
	}
}

// handleListTenants lists all tenant accounts
func handleListTenants(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Preload("Plan").Order("name")
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}

		var tenants []models.Tenant
		if err := q.Find(&tenants).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch tenants")
			return
		}

		utils.OKResponse(c, "Tenants retrieved successfully", tenants)
	}
}

// handleGetTenant fetches one tenant account
func handleGetTenant(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tenant models.Tenant
		if err := db.Preload("Plan").Where("id = ?", c.Param("id")).First(&tenant).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Tenant not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch tenant")
			}
			return
		}

		utils.OKResponse(c, "Tenant retrieved successfully", tenant)
	}
}

// handleUpdateTenant updates tenant account data. Assigning a plan copies its
// asset limit onto the tenant; the copy is what the limit checks read.
func handleUpdateTenant(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tenant models.Tenant
		if err := db.Where("id = ?", c.Param("id")).First(&tenant).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Tenant not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch tenant")
			}
			return
		}

		var req UpdateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		if req.Name != nil {
			tenant.Name = *req.Name
		}
		if req.FantasyName != nil {
			tenant.FantasyName = *req.FantasyName
		}
		if req.ContactName != nil {
			tenant.ContactName = *req.ContactName
		}
		if req.Phone != nil {
			tenant.Phone = *req.Phone
		}
		if req.Email != nil {
			tenant.Email = *req.Email
		}
		if req.ExpiresAt != nil {
			tenant.ExpiresAt = req.ExpiresAt
		}
		if req.PlanID != nil {
			plan, err := loadPlan(db, *req.PlanID)
			if err != nil {
				utils.BadRequestResponse(c, "Unknown or inactive plan")
				return
			}
			tenant.PlanID = &plan.ID
			tenant.AssetLimit = plan.AssetLimit
		}

		if err := db.Save(&tenant).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to update tenant")
			return
		}

		utils.OKResponse(c, "Tenant updated successfully", tenant)
	}
}

// tenantStatusTransitions defines the allowed subscription moves. Cancelled
// is terminal; everything else can be reactivated by the platform operator.
var tenantStatusTransitions = map[models.TenantStatus][]models.TenantStatus{
	models.TenantStatusActive:    {models.TenantStatusPaused, models.TenantStatusCancelled, models.TenantStatusExpired},
	models.TenantStatusPaused:    {models.TenantStatusActive, models.TenantStatusCancelled},
	models.TenantStatusExpired:   {models.TenantStatusActive, models.TenantStatusCancelled},
	models.TenantStatusCancelled: {},
}

func canChangeTenantStatus(from, to models.TenantStatus) bool {
	for _, allowed := range tenantStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// handleUpdateTenantStatus moves the tenant's subscription status. Every
// non-Active status freezes operational writes across all services.
func handleUpdateTenantStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status models.TenantStatus `json:"status" binding:"required,oneof=Active Paused Cancelled Expired"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var tenant models.Tenant
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", c.Param("id")).First(&tenant).Error; err != nil {
				return err
			}
			if tenant.Status == req.Status {
				return nil
			}
			if !canChangeTenantStatus(tenant.Status, req.Status) {
				return models.ErrInvalidTransition
			}
			tenant.Status = req.Status
			return tx.Save(&tenant).Error
		})
		if err != nil {
			utils.DomainErrorResponse(c, err)
			return
		}

		utils.OKResponse(c, "Tenant status updated", tenant)
	}
}

// handleDeleteTenant removes a tenant account with no remaining users
func handleDeleteTenant(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tenant models.Tenant
		if err := db.Where("id = ?", c.Param("id")).First(&tenant).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Tenant not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch tenant")
			}
			return
		}

		var userCount int64
		if err := db.Model(&models.User{}).Where("tenant_id = ?", tenant.ID).Count(&userCount).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to check tenant users")
			return
		}
		if userCount > 0 {
			utils.BadRequestResponse(c, "Cannot delete tenant with existing users")
			return
		}

		if err := db.Delete(&tenant).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to delete tenant")
			return
		}

		utils.OKResponse(c, "Tenant deleted successfully", nil)
	}
}

// handleCompleteSetup marks the tenant's onboarding as finished. The column
// is the durable record; the gate broadcasts the flip so every gateway
// replica unlocks the operational routes without a restart. Repeat calls are
// no-ops.
func handleCompleteSetup(db *gorm.DB, gate *provision.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid tenant id")
			return
		}

		var tenant models.Tenant
		if err := db.Where("id = ?", tenantID).First(&tenant).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "Tenant not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch tenant")
			}
			return
		}

		if !tenant.SetupComplete {
			if err := db.Model(&tenant).Update("setup_complete", true).Error; err != nil {
				utils.InternalServerErrorResponse(c, "Failed to update tenant")
				return
			}
			tenant.SetupComplete = true
		}

		changed, err := gate.MarkComplete(c.Request.Context(), tenantID)
		if err != nil {
			// The column is already flipped; the gate will catch up on the
			// next IsComplete miss.
			logrus.WithError(err).Warn("Failed to broadcast setup completion")
		}

		utils.OKResponse(c, "Tenant setup complete", gin.H{
			"tenant_id":  tenantID,
			"first_flip": changed,
			"setup_done": true,
		})
	}
}

// handleGetTenantUsers lists the tenant's collaborators
func handleGetTenantUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var users []models.User
		if err := db.Where("tenant_id = ?", c.Param("id")).Order("name").Find(&users).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch tenant users")
			return
		}

		utils.OKResponse(c, "Tenant users retrieved successfully", users)
	}
}
