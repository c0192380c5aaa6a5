package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
	"github.com/dbifleet/go-tire-fleet-system/shared/provision"
	"github.com/dbifleet/go-tire-fleet-system/shared/routing"
	"github.com/dbifleet/go-tire-fleet-system/shared/utils"
)

// AuthMiddleware handles JWT token validation and role extraction. The role
// and tenant identity come from the authentication collaborator (Cognito);
// nothing here verifies credentials beyond the token itself.
type AuthMiddleware struct {
	cognitoClient  *cognitoidentityprovider.CognitoIdentityProvider
	userPoolID     string
	jwksValidator  *utils.JWKSValidator
	circuitBreaker *utils.CircuitBreaker
}

// CognitoClaims represents Cognito JWT claims
type CognitoClaims struct {
	Sub            string `json:"sub"`
	Email          string `json:"email"`
	Username       string `json:"cognito:username"`
	TokenUse       string `json:"token_use"`
	CustomTenantID string `json:"custom:tenant_id"`
	CustomRole     string `json:"custom:role"`
	jwt.RegisteredClaims
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(region, userPoolID string) (*AuthMiddleware, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}

	return &AuthMiddleware{
		cognitoClient: cognitoidentityprovider.New(sess),
		userPoolID:    userPoolID,
		jwksValidator: utils.NewJWKSValidator(region, userPoolID),
		// max 5 failures, 30 second reset
		circuitBreaker: utils.NewCircuitBreaker(5, 30*time.Second),
	}, nil
}

// RequireAuth middleware validates JWT tokens and places the caller's
// identity, role and tenant on the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			utils.UnauthorizedResponse(c, "Authorization token required")
			c.Abort()
			return
		}

		claims, err := am.parseTokenSimple(tokenString)
		if err != nil {
			utils.UnauthorizedResponse(c, "Invalid token")
			c.Abort()
			return
		}

		role := models.Role(claims.CustomRole)
		if !role.IsValid() {
			utils.UnauthorizedResponse(c, "Unknown role in token")
			c.Abort()
			return
		}

		c.Set("access_token", tokenString)
		c.Set("user_id", claims.Sub)
		c.Set("username", claims.Username)
		c.Set("email", claims.Email)
		c.Set("tenant_id", claims.CustomTenantID)
		c.Set("role", string(role))

		c.Next()
	}
}

// RequireRole middleware restricts a route to the given roles.
func (am *AuthMiddleware) RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := models.Role(c.GetString("role"))
		for _, r := range roles {
			if current == r {
				c.Next()
				return
			}
		}

		allowed := make([]string, 0, len(roles))
		for _, r := range roles {
			allowed = append(allowed, string(r))
		}
		c.JSON(403, utils.APIResponse{
			Success: false,
			Error:   fmt.Sprintf("Insufficient permissions: requires one of %s", strings.Join(allowed, ", ")),
		})
		c.Abort()
	}
}

// RequireSetupComplete blocks fleet-manager operational routes until the
// tenant finished onboarding, mirroring the /welcome funnel of the UI policy.
// It applies to ADMIN only: the gate never restricts the other roles.
func (am *AuthMiddleware) RequireSetupComplete(gate *provision.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if models.Role(c.GetString("role")) != models.RoleAdmin {
			c.Next()
			return
		}

		tenantID, err := GetTenantIDFromContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Tenant information not found")
			c.Abort()
			return
		}

		if !gate.IsComplete(c.Request.Context(), tenantID) {
			c.JSON(403, utils.APIResponse{
				Success: false,
				Error:   "Tenant setup is not complete",
				Data:    routing.RedirectTo(routing.PathWelcome),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireTenantAccess validates that non-platform callers only touch their
// own tenant. SUPER_ADMIN may access any tenant.
func (am *AuthMiddleware) RequireTenantAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		userTenantID, exists := c.Get("tenant_id")
		if !exists {
			utils.UnauthorizedResponse(c, "Tenant information not found")
			c.Abort()
			return
		}

		if models.Role(c.GetString("role")) == models.RoleSuperAdmin {
			c.Next()
			return
		}

		requestedTenantID := c.Param("id")
		if requestedTenantID == "" {
			requestedTenantID = c.Param("tenant_id")
		}

		if requestedTenantID != "" && requestedTenantID != userTenantID {
			utils.ForbiddenResponse(c, "Access denied to this tenant")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireTenantManager allows SUPER_ADMIN everywhere and ADMIN on their own
// tenant only.
func (am *AuthMiddleware) RequireTenantManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.Role(c.GetString("role"))

		if role == models.RoleSuperAdmin {
			c.Next()
			return
		}

		if role == models.RoleAdmin {
			requestedTenantID := c.Param("id")
			userTenantID := c.GetString("tenant_id")

			if requestedTenantID == "" || requestedTenantID == userTenantID {
				c.Next()
				return
			}

			utils.ForbiddenResponse(c, "Fleet managers can only manage their own tenant")
			c.Abort()
			return
		}

		utils.ForbiddenResponse(c, "Insufficient permissions: requires ADMIN or SUPER_ADMIN")
		c.Abort()
	}
}

// getCacheKey generates a cache key for the token
func getCacheKey(tokenString string) string {
	hash := sha256.Sum256([]byte(tokenString))
	return "token:" + hex.EncodeToString(hash[:])
}

// extractToken extracts the JWT token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return authHeader
}

// parseTokenSimple parses JWT token without signature verification (trusting
// Cognito-issued tokens behind the gateway). Production deployments switch to
// validateTokenWithJWKS.
func (am *AuthMiddleware) parseTokenSimple(tokenString string) (*CognitoClaims, error) {
	// Check Redis cache first
	cacheKey := getCacheKey(tokenString)
	if cachedData, err := utils.CacheGet(cacheKey); err == nil {
		var claims CognitoClaims
		if err := json.Unmarshal([]byte(cachedData), &claims); err == nil {
			return &claims, nil
		}
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims format")
	}

	cognitoClaims := &CognitoClaims{
		Sub:            getClaimString(claims, "sub"),
		Email:          getClaimString(claims, "email"),
		Username:       getClaimString(claims, "cognito:username"),
		TokenUse:       getClaimString(claims, "token_use"),
		CustomTenantID: getClaimString(claims, "custom:tenant_id"),
		CustomRole:     getClaimString(claims, "custom:role"),
	}

	if cognitoClaims.CustomRole == "" {
		return nil, fmt.Errorf("role attribute missing from token")
	}

	// Cache the parsed token for 1 hour
	if cacheData, err := json.Marshal(cognitoClaims); err == nil {
		_ = utils.CacheSet(cacheKey, string(cacheData), 1*time.Hour)
	}

	return cognitoClaims, nil
}

// validateTokenWithJWKS validates the JWT token using JWKS and extracts the
// custom role/tenant attributes, falling back to the Cognito admin API when
// an access token carries none.
func (am *AuthMiddleware) validateTokenWithJWKS(tokenString string) (*CognitoClaims, error) {
	token, err := am.jwksValidator.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("JWKS validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims format")
	}

	cognitoClaims := &CognitoClaims{
		Sub:            getClaimString(claims, "sub"),
		Email:          getClaimString(claims, "email"),
		Username:       getClaimString(claims, "cognito:username"),
		TokenUse:       getClaimString(claims, "token_use"),
		CustomTenantID: getClaimString(claims, "custom:tenant_id"),
		CustomRole:     getClaimString(claims, "custom:role"),
	}

	// ID tokens contain custom attributes, access tokens don't
	if cognitoClaims.TokenUse != "access" && cognitoClaims.TokenUse != "id" {
		return nil, fmt.Errorf("invalid token use: expected 'access' or 'id', got '%s'", cognitoClaims.TokenUse)
	}

	if cognitoClaims.CustomTenantID == "" || cognitoClaims.CustomRole == "" {
		var getUserOutput *cognitoidentityprovider.AdminGetUserOutput
		err := am.circuitBreaker.Call(func() error {
			var cognitoErr error
			getUserOutput, cognitoErr = am.cognitoClient.AdminGetUser(&cognitoidentityprovider.AdminGetUserInput{
				UserPoolId: aws.String(am.userPoolID),
				Username:   aws.String(cognitoClaims.Sub),
			})
			return cognitoErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get user from Cognito: %w", err)
		}

		for _, attr := range getUserOutput.UserAttributes {
			if *attr.Name == "custom:tenant_id" && cognitoClaims.CustomTenantID == "" {
				cognitoClaims.CustomTenantID = *attr.Value
			}
			if *attr.Name == "custom:role" && cognitoClaims.CustomRole == "" {
				cognitoClaims.CustomRole = *attr.Value
			}
			if *attr.Name == "email" && cognitoClaims.Email == "" {
				cognitoClaims.Email = *attr.Value
			}
		}
	}

	if cognitoClaims.Username == "" {
		cognitoClaims.Username = cognitoClaims.Email
		if cognitoClaims.Username == "" {
			cognitoClaims.Username = cognitoClaims.Sub
		}
	}

	return cognitoClaims, nil
}

// getClaimString safely extracts a string claim from JWT claims
func getClaimString(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetUserFromContext extracts user information from the Gin context
func GetUserFromContext(c *gin.Context) (cognitoID, email, tenantID, role string) {
	cognitoID = c.GetString("user_id")
	email = c.GetString("email")
	tenantID = c.GetString("tenant_id")
	role = c.GetString("role")
	return
}

// GetUserInfoFromContext extracts full user information from the Gin context as UserInfo struct
func GetUserInfoFromContext(c *gin.Context) (*models.UserInfo, error) {
	cognitoID := c.GetString("user_id")
	if cognitoID == "" {
		return nil, fmt.Errorf("user_id not found in context")
	}

	email := c.GetString("email")
	role := models.Role(c.GetString("role"))

	username := c.GetString("username")
	if username == "" {
		username = email // Fallback to email if username not set
	}

	info := &models.UserInfo{
		CognitoID: cognitoID,
		Username:  username,
		Email:     email,
		Role:      role,
	}

	// Platform operators carry no tenant.
	if tenantIDStr := c.GetString("tenant_id"); tenantIDStr != "" {
		tenantID, err := uuid.Parse(tenantIDStr)
		if err != nil {
			return nil, fmt.Errorf("invalid tenant_id in context: %w", err)
		}
		info.TenantID = &tenantID
	}

	return info, nil
}

// GetTenantIDFromContext extracts tenant ID from the Gin context
func GetTenantIDFromContext(c *gin.Context) (uuid.UUID, error) {
	tenantIDStr, exists := c.Get("tenant_id")
	if !exists {
		return uuid.Nil, fmt.Errorf("tenant_id not found in context")
	}

	return uuid.Parse(tenantIDStr.(string))
}
