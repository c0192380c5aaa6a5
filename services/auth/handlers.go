package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dbifleet/go-tire-fleet-system/shared/middleware"
	"github.com/dbifleet/go-tire-fleet-system/shared/models"
	"github.com/dbifleet/go-tire-fleet-system/shared/provision"
	"github.com/dbifleet/go-tire-fleet-system/shared/routing"
	"github.com/dbifleet/go-tire-fleet-system/shared/utils"
)

var (
	cognitoClient  *cognitoidentityprovider.CognitoIdentityProvider
	circuitBreaker *utils.CircuitBreaker
)

func init() {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
	})
	if err != nil {
		panic("Failed to create AWS session: " + err.Error())
	}
	cognitoClient = cognitoidentityprovider.New(sess)

	// Circuit breaker for Cognito calls (max 5 failures, 30 second reset)
	circuitBreaker = utils.NewCircuitBreaker(5, 30*time.Second)
}

// generateSecretHash creates a secret hash for Cognito authentication
func generateSecretHash(username string) string {
	clientSecret := os.Getenv("COGNITO_CLIENT_SECRET")
	clientId := os.Getenv("COGNITO_CLIENT_ID")

	if clientSecret == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientId))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// LoginRequest represents the login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents the collaborator registration request. Platform
// operators are provisioned out of band, never through this endpoint.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
	TenantID string `json:"tenant_id" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=ADMIN MECHANIC AUDITOR"`
}

// handleLogin authenticates against Cognito and opens a redis-backed session.
// The response carries the navigation home so the client can land on the
// right screen without a second round trip.
func handleLogin(db *gorm.DB, gate *provision.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		authParams := map[string]*string{
			"USERNAME": aws.String(req.Username),
			"PASSWORD": aws.String(req.Password),
		}
		if secretHash := generateSecretHash(req.Username); secretHash != "" {
			authParams["SECRET_HASH"] = aws.String(secretHash)
		}

		authInput := &cognitoidentityprovider.InitiateAuthInput{
			AuthFlow:       aws.String("USER_PASSWORD_AUTH"),
			ClientId:       aws.String(os.Getenv("COGNITO_CLIENT_ID")),
			AuthParameters: authParams,
		}

		var authResult *cognitoidentityprovider.InitiateAuthOutput
		err := circuitBreaker.Call(func() error {
			var cognitoErr error
			authResult, cognitoErr = cognitoClient.InitiateAuth(authInput)
			return cognitoErr
		})
		if err != nil {
			if err == utils.ErrCircuitOpen {
				utils.ServiceUnavailableResponse(c, "Authentication service temporarily unavailable")
			} else {
				utils.UnauthorizedResponse(c, "Invalid credentials")
			}
			return
		}

		accessToken := *authResult.AuthenticationResult.AccessToken

		cognitoID, err := extractCognitoIDFromToken(*authResult.AuthenticationResult.IdToken)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to extract user ID from token")
			return
		}

		userProfile, err := buildUserProfileFromDB(db, cognitoID, req.Username)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to build user profile")
			return
		}

		sessionTTL := time.Duration(*authResult.AuthenticationResult.ExpiresIn) * time.Second
		tokenSession, err := utils.CreateTokenSession(accessToken, userProfile, sessionTTL)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create session")
			return
		}

		go func() {
			now := time.Now()
			db.Model(&models.User{}).Where("cognito_id = ?", userProfile.CognitoID).
				Update("last_login_at", now)
		}()

		setupComplete := true
		if userProfile.TenantID != nil {
			setupComplete = gate.IsComplete(c.Request.Context(), *userProfile.TenantID)
		}

		response := map[string]interface{}{
			"access_token":   accessToken,
			"refresh_token":  aws.StringValue(authResult.AuthenticationResult.RefreshToken),
			"expires_in":     *authResult.AuthenticationResult.ExpiresIn,
			"token_type":     "Bearer",
			"user_info":      userProfile,
			"session_id":     tokenSession.SessionID,
			"setup_complete": setupComplete,
			"home":           routing.HomePath(models.Role(userProfile.Role)),
		}

		utils.OKResponse(c, "Login successful", response)
	}
}

// handleRegister registers a tenant collaborator in Cognito and mirrors the
// minimal record locally. The Cognito side is compensated if the local write
// fails, so the two stores cannot drift apart.
func handleRegister(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format. Role must be ADMIN, MECHANIC or AUDITOR")
			return
		}

		role := models.Role(req.Role)

		tenantID, err := uuid.Parse(req.TenantID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid tenant ID")
			return
		}

		var tenant models.Tenant
		if err := db.Where("id = ?", tenantID).First(&tenant).Error; err != nil {
			utils.NotFoundResponse(c, "Tenant not found")
			return
		}

		userAttributes := []*cognitoidentityprovider.AttributeType{
			{
				Name:  aws.String("custom:role"),
				Value: aws.String(string(role)),
			},
			{
				Name:  aws.String("custom:tenant_id"),
				Value: aws.String(tenantID.String()),
			},
			{
				Name:  aws.String("email"),
				Value: aws.String(req.Username),
			},
		}

		signUpInput := &cognitoidentityprovider.SignUpInput{
			ClientId:       aws.String(os.Getenv("COGNITO_CLIENT_ID")),
			Username:       aws.String(req.Username),
			Password:       aws.String(req.Password),
			UserAttributes: userAttributes,
		}
		if secretHash := generateSecretHash(req.Username); secretHash != "" {
			signUpInput.SecretHash = aws.String(secretHash)
		}

		var signUpResult *cognitoidentityprovider.SignUpOutput
		cognitoErr := circuitBreaker.Call(func() error {
			var err error
			signUpResult, err = cognitoClient.SignUp(signUpInput)
			return err
		})
		if cognitoErr != nil {
			if cognitoErr == utils.ErrCircuitOpen {
				utils.ServiceUnavailableResponse(c, "Authentication service temporarily unavailable")
			} else {
				utils.BadRequestResponse(c, "Failed to register user: "+cognitoErr.Error())
			}
			return
		}

		user := models.User{
			CognitoID: *signUpResult.UserSub,
			TenantID:  tenantID,
			Name:      req.Name,
			Role:      role,
			Active:    true,
			CreatedAt: time.Now(),
		}

		if err := db.Create(&user).Error; err != nil {
			compensateErr := circuitBreaker.Call(func() error {
				_, deleteErr := cognitoClient.AdminDeleteUser(&cognitoidentityprovider.AdminDeleteUserInput{
					UserPoolId: aws.String(os.Getenv("COGNITO_USER_POOL_ID")),
					Username:   aws.String(req.Username),
				})
				return deleteErr
			})
			if compensateErr != nil {
				logrus.WithFields(logrus.Fields{
					"username": req.Username,
					"error":    compensateErr,
				}).Warn("Failed to compensate orphaned Cognito user")
			}

			utils.InternalServerErrorResponse(c, "Failed to complete registration")
			return
		}

		utils.CreatedResponse(c, "User registered successfully", map[string]interface{}{
			"cognito_id": user.CognitoID,
			"username":   req.Username,
			"role":       string(role),
			"tenant_id":  tenantID,
			"message":    "User registered successfully. Please confirm email before login.",
		})
	}
}

// handleRefreshToken exchanges a refresh token for a new access token
func handleRefreshToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		authInput := &cognitoidentityprovider.InitiateAuthInput{
			AuthFlow: aws.String("REFRESH_TOKEN_AUTH"),
			ClientId: aws.String(os.Getenv("COGNITO_CLIENT_ID")),
			AuthParameters: map[string]*string{
				"REFRESH_TOKEN": aws.String(req.RefreshToken),
			},
		}

		var authResult *cognitoidentityprovider.InitiateAuthOutput
		err := circuitBreaker.Call(func() error {
			var cognitoErr error
			authResult, cognitoErr = cognitoClient.InitiateAuth(authInput)
			return cognitoErr
		})
		if err != nil {
			if err == utils.ErrCircuitOpen {
				utils.ServiceUnavailableResponse(c, "Authentication service temporarily unavailable")
			} else {
				utils.UnauthorizedResponse(c, "Invalid refresh token")
			}
			return
		}

		utils.OKResponse(c, "Token refreshed successfully", map[string]interface{}{
			"access_token": *authResult.AuthenticationResult.AccessToken,
			"expires_in":   *authResult.AuthenticationResult.ExpiresIn,
			"token_type":   "Bearer",
		})
	}
}

// handleVerifyToken confirms the caller's token and echoes the resolved user
func handleVerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "User info not found")
			return
		}

		utils.OKResponse(c, "Token is valid", userInfo)
	}
}

// NavigateRequest asks where a navigation attempt should land
type NavigateRequest struct {
	Path string `json:"path" binding:"required"`
}

// handleNavigate resolves a navigation attempt against the access policy.
// The decision is allow or redirect; the policy never denies outright.
func handleNavigate(gate *provision.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "User info not found")
			return
		}

		var req NavigateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		setupComplete := true
		if userInfo.TenantID != nil {
			setupComplete = gate.IsComplete(c.Request.Context(), *userInfo.TenantID)
		}

		decision := routing.Resolve(userInfo.Role, setupComplete, req.Path)

		utils.OKResponse(c, "Navigation resolved", map[string]interface{}{
			"path":           req.Path,
			"decision":       decision,
			"setup_complete": setupComplete,
		})
	}
}

// handleConfirmEmail confirms a user's email address out of band
func handleConfirmEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		err := circuitBreaker.Call(func() error {
			_, confirmErr := cognitoClient.AdminConfirmSignUp(&cognitoidentityprovider.AdminConfirmSignUpInput{
				UserPoolId: aws.String(os.Getenv("COGNITO_USER_POOL_ID")),
				Username:   aws.String(req.Username),
			})
			return confirmErr
		})
		if err != nil {
			utils.BadRequestResponse(c, "Failed to confirm email: "+err.Error())
			return
		}

		utils.OKResponse(c, "Email confirmed successfully", map[string]interface{}{
			"username": req.Username,
			"message":  "User can now login",
		})
	}
}

// handleLogout revokes the caller's redis session
func handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken, exists := c.Get("access_token")
		if !exists {
			utils.UnauthorizedResponse(c, "No active session found")
			return
		}

		if err := utils.RevokeTokenSession(accessToken.(string)); err != nil {
			utils.InternalServerErrorResponse(c, "Failed to revoke session")
			return
		}

		utils.OKResponse(c, "Logout successful", map[string]interface{}{
			"message": "Session revoked successfully",
		})
	}
}

// handleGetSessions returns the caller's active sessions
func handleGetSessions() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken, exists := c.Get("access_token")
		if !exists {
			utils.UnauthorizedResponse(c, "No active session found")
			return
		}

		tokenSession, err := utils.GetTokenSession(accessToken.(string))
		if err != nil {
			utils.InternalServerErrorResponse(c, "Session not found")
			return
		}

		utils.OKResponse(c, "Sessions retrieved", map[string]interface{}{
			"active_sessions": []map[string]interface{}{
				{
					"session_id":   tokenSession.SessionID,
					"created_at":   tokenSession.CreatedAt,
					"last_used_at": tokenSession.LastUsedAt,
					"expires_at":   tokenSession.ExpiresAt,
					"is_current":   true,
				},
			},
			"total_sessions": 1,
		})
	}
}

// handleRevokeSession revokes one of the caller's sessions
func handleRevokeSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if sessionID == "" {
			utils.BadRequestResponse(c, "Session ID required")
			return
		}

		accessToken, exists := c.Get("access_token")
		if !exists {
			utils.UnauthorizedResponse(c, "No active session found")
			return
		}

		tokenSession, err := utils.GetTokenSession(accessToken.(string))
		if err != nil {
			utils.InternalServerErrorResponse(c, "Current session not found")
			return
		}
		if tokenSession.SessionID != sessionID {
			utils.ForbiddenResponse(c, "Can only revoke your own sessions")
			return
		}

		if err := utils.RevokeTokenSession(accessToken.(string)); err != nil {
			utils.InternalServerErrorResponse(c, "Failed to revoke session")
			return
		}

		utils.OKResponse(c, "Session revoked successfully", map[string]interface{}{
			"session_id": sessionID,
			"message":    "Session has been revoked",
		})
	}
}

// userScope narrows user queries to the caller's tenant. Platform operators
// see everyone.
func userScope(c *gin.Context, db *gorm.DB) (*gorm.DB, error) {
	userInfo, err := middleware.GetUserInfoFromContext(c)
	if err != nil {
		return nil, err
	}
	if userInfo.IsSuperAdmin() {
		return db, nil
	}
	if userInfo.TenantID == nil {
		return nil, fmt.Errorf("tenant scope missing for role %s", userInfo.Role)
	}
	return db.Where("tenant_id = ?", *userInfo.TenantID), nil
}

// handleGetUsers lists collaborators visible to the caller
func handleGetUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		scoped, err := userScope(c, db)
		if err != nil {
			utils.UnauthorizedResponse(c, "User info not found")
			return
		}

		var users []models.User
		if err := scoped.Preload("Tenant").Order("created_at").Find(&users).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch users")
			return
		}

		utils.OKResponse(c, "Users retrieved successfully", users)
	}
}

// handleGetUser fetches one collaborator by cognito id
func handleGetUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		scoped, err := userScope(c, db)
		if err != nil {
			utils.UnauthorizedResponse(c, "User info not found")
			return
		}

		var user models.User
		if err := scoped.Preload("Tenant").Where("cognito_id = ?", c.Param("id")).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "User not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch user")
			}
			return
		}

		utils.OKResponse(c, "User retrieved successfully", user)
	}
}

// handleUpdateUser updates a collaborator's role or active flag. The role
// lives in Cognito as the source of truth; the local row mirrors it for
// listings.
func handleUpdateUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		scoped, err := userScope(c, db)
		if err != nil {
			utils.UnauthorizedResponse(c, "User info not found")
			return
		}

		var user models.User
		if err := scoped.Where("cognito_id = ?", c.Param("id")).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "User not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch user")
			}
			return
		}

		var req struct {
			Name   *string `json:"name"`
			Role   *string `json:"role" binding:"omitempty,oneof=ADMIN MECHANIC AUDITOR"`
			Active *bool   `json:"active"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		if req.Role != nil {
			err := circuitBreaker.Call(func() error {
				_, updateErr := cognitoClient.AdminUpdateUserAttributes(&cognitoidentityprovider.AdminUpdateUserAttributesInput{
					UserPoolId: aws.String(os.Getenv("COGNITO_USER_POOL_ID")),
					Username:   aws.String(user.CognitoID),
					UserAttributes: []*cognitoidentityprovider.AttributeType{
						{
							Name:  aws.String("custom:role"),
							Value: aws.String(*req.Role),
						},
					},
				})
				return updateErr
			})
			if err != nil {
				if err == utils.ErrCircuitOpen {
					utils.ServiceUnavailableResponse(c, "Authentication service temporarily unavailable")
				} else {
					utils.InternalServerErrorResponse(c, "Failed to update user role: "+err.Error())
				}
				return
			}
			user.Role = models.Role(*req.Role)
		}
		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Active != nil {
			user.Active = *req.Active
		}

		if err := db.Save(&user).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to update user")
			return
		}

		utils.OKResponse(c, "User updated successfully. Role changes take effect on next login.", user)
	}
}

// handleDeleteUser removes a collaborator from Cognito and the local mirror
func handleDeleteUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		scoped, err := userScope(c, db)
		if err != nil {
			utils.UnauthorizedResponse(c, "User info not found")
			return
		}

		var user models.User
		if err := scoped.Where("cognito_id = ?", c.Param("id")).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFoundResponse(c, "User not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch user")
			}
			return
		}

		err = circuitBreaker.Call(func() error {
			_, deleteErr := cognitoClient.AdminDeleteUser(&cognitoidentityprovider.AdminDeleteUserInput{
				UserPoolId: aws.String(os.Getenv("COGNITO_USER_POOL_ID")),
				Username:   aws.String(user.CognitoID),
			})
			return deleteErr
		})
		if err != nil {
			if err == utils.ErrCircuitOpen {
				utils.ServiceUnavailableResponse(c, "Authentication service temporarily unavailable")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to delete user from Cognito: "+err.Error())
			}
			return
		}

		if err := db.Delete(&models.User{}, "cognito_id = ?", user.CognitoID).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to delete user from database")
			return
		}

		utils.OKResponse(c, "User deleted successfully", nil)
	}
}

// extractCognitoIDFromToken pulls the sub claim without re-verifying the
// signature; Cognito just issued the token on this same request.
func extractCognitoIDFromToken(tokenString string) (string, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims format")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("sub claim not found or not a string")
	}

	return sub, nil
}

// buildUserProfileFromDB resolves the session profile from the local mirror.
// Platform operators carry no tenant.
func buildUserProfileFromDB(db *gorm.DB, cognitoID, email string) (models.UserProfile, error) {
	var user models.User
	if err := db.Where("cognito_id = ?", cognitoID).First(&user).Error; err != nil {
		return models.UserProfile{}, fmt.Errorf("user not found: %w", err)
	}
	if !user.Active {
		return models.UserProfile{}, fmt.Errorf("user is deactivated")
	}

	profile := models.UserProfile{
		CognitoID: user.CognitoID,
		Email:     email,
		Role:      string(user.Role),
	}
	if user.Role != models.RoleSuperAdmin {
		tenantID := user.TenantID
		profile.TenantID = &tenantID
	}
	return profile, nil
}
