// internal/handlers/auth.go

package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"prosignum/internal/config"
	"prosignum/internal/models"
	"prosignum/internal/services"
	"prosignum/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	cfg                    *config.Config
	verificationCollection *mongo.Collection
	userCollection         *mongo.Collection
	profileCollection      *mongo.Collection
	verifierService        *services.VerifierService
	identityService        *services.IdentityService
	jwtManager             *auth.JWTManager
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateStaffRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=100"`
	FirstName string `json:"first_name" binding:"required,min=2,max=50"`
	LastName  string `json:"last_name" binding:"required,min=2,max=50"`
	Role      string `json:"role" binding:"required,oneof=REVIEWER ADMIN"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthHandler(
	cfg *config.Config,
	verificationCollection, userCollection, profileCollection *mongo.Collection,
	verifierService *services.VerifierService,
	identityService *services.IdentityService,
	jwtManager *auth.JWTManager,
) *AuthHandler {
	return &AuthHandler{
		cfg:                    cfg,
		verificationCollection: verificationCollection,
		userCollection:         userCollection,
		profileCollection:      profileCollection,
		verifierService:        verifierService,
		identityService:        identityService,
		jwtManager:             jwtManager,
	}
}

// EIDLogin opens a verification session with the e-ID verifier and returns
// everything the browser needs: the local session id for polling, the
// verification URL and a QR code encoding it.
func (h *AuthHandler) EIDLogin(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, err := h.verifierService.CreateVerification(ctx, "Login to Prosignum")
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "E-ID verification service is currently unavailable",
		})
		return
	}

	now := time.Now()
	verification := models.EIDVerification{
		LocalID:         uuid.NewString(),
		VerificationID:  created.VerificationID,
		VerificationURL: created.VerificationURL,
		Status:          models.VerificationStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(h.cfg.VerificationTimeout) * time.Second),
	}

	if _, err := h.verificationCollection.InsertOne(ctx, verification); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error creating verification session",
		})
		return
	}

	png, err := qrcode.Encode(created.VerificationURL, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error generating QR code",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"verification_id":  verification.LocalID,
		"verification_url": verification.VerificationURL,
		"qr_code":          base64.StdEncoding.EncodeToString(png),
		"expires_in":       h.cfg.VerificationTimeout,
		"poll_interval":    h.cfg.PollInterval,
	})
}

// EIDStatus is polled by the browser. Local expiry is checked before any
// external call; terminal sessions answer from the stored state so a repeated
// poll of a completed session never creates accounts twice.
func (h *AuthHandler) EIDStatus(c *gin.Context) {
	localID := c.Param("id")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var verification models.EIDVerification
	err := h.verificationCollection.FindOne(ctx, bson.M{"local_id": localID}).Decode(&verification)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Verification not found",
			})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Database error",
			})
		}
		return
	}

	now := time.Now()

	if !verification.IsTerminal() && verification.IsExpired(now) {
		h.setVerificationStatus(ctx, verification.ID, bson.M{
			"status":     models.VerificationStatusExpired,
			"updated_at": now,
		})
		c.JSON(http.StatusOK, gin.H{
			"status":  models.VerificationStatusExpired,
			"message": "Verification request expired",
		})
		return
	}

	switch verification.Status {
	case models.VerificationStatusCompleted:
		h.answerCompleted(ctx, c, &verification)
		return
	case models.VerificationStatusFailed:
		c.JSON(http.StatusOK, gin.H{
			"status": models.VerificationStatusFailed,
			"error":  verification.ErrorCode,
		})
		return
	case models.VerificationStatusExpired:
		c.JSON(http.StatusOK, gin.H{
			"status":  models.VerificationStatusExpired,
			"message": "Verification request expired",
		})
		return
	}

	result, err := h.verifierService.CheckStatus(ctx, verification.VerificationID)
	if err != nil {
		if errors.Is(err, services.ErrVerifierUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "E-ID verification service is currently unavailable",
			})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Error checking verification status",
			})
		}
		return
	}

	switch result.Status {
	case models.VerificationStatusCompleted:
		if result.Claims == nil {
			h.setVerificationStatus(ctx, verification.ID, bson.M{
				"status":     models.VerificationStatusFailed,
				"error_code": "missing_claims",
				"updated_at": now,
			})
			c.JSON(http.StatusOK, gin.H{
				"status": models.VerificationStatusFailed,
				"error":  "missing_claims",
			})
			return
		}

		user, err := h.identityService.ResolveClaims(ctx, result.Claims)
		if err != nil {
			logrus.WithError(err).Error("Failed to resolve identity from claims")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Error completing verification",
			})
			return
		}

		h.setVerificationStatus(ctx, verification.ID, bson.M{
			"status":     models.VerificationStatusCompleted,
			"claims":     result.Claims,
			"user_id":    user.ID,
			"updated_at": now,
		})

		h.stampLogin(ctx, user.ID)

		token, err := h.jwtManager.GenerateToken(user.ID.Hex(), user.Email, user.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Error generating token",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   models.VerificationStatusCompleted,
			"token":    token,
			"redirect": "/",
		})

	case models.VerificationStatusFailed:
		h.setVerificationStatus(ctx, verification.ID, bson.M{
			"status":     models.VerificationStatusFailed,
			"error_code": result.ErrorCode,
			"updated_at": now,
		})
		c.JSON(http.StatusOK, gin.H{
			"status": models.VerificationStatusFailed,
			"error":  result.ErrorCode,
		})

	case models.VerificationStatusExpired:
		h.setVerificationStatus(ctx, verification.ID, bson.M{
			"status":     models.VerificationStatusExpired,
			"updated_at": now,
		})
		c.JSON(http.StatusOK, gin.H{
			"status":  models.VerificationStatusExpired,
			"message": "Verification request expired",
		})

	default:
		c.JSON(http.StatusOK, gin.H{
			"status": models.VerificationStatusPending,
		})
	}
}

// answerCompleted replays the terminal answer for an already processed
// session, issuing a fresh token for the linked account.
func (h *AuthHandler) answerCompleted(ctx context.Context, c *gin.Context, verification *models.EIDVerification) {
	if verification.UserID == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Verification completed without a linked account",
		})
		return
	}

	var user models.User
	if err := h.userCollection.FindOne(ctx, bson.M{"_id": *verification.UserID}).Decode(&user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error loading account",
		})
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error generating token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   models.VerificationStatusCompleted,
		"token":    token,
		"redirect": "/",
	})
}

// Login authenticates staff accounts (reviewers, admins) with email + password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var user models.User
	err := h.userCollection.FindOne(ctx, bson.M{"email": req.Email}).Decode(&user)
	if err != nil || user.PasswordHash == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid email or password",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid email or password",
		})
		return
	}

	if user.IsBlocked {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Account is blocked",
		})
		return
	}

	h.stampLogin(ctx, user.ID)

	token, err := h.jwtManager.GenerateToken(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error generating token",
		})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Token: token,
		User:  &user,
	})
}

// Logout acknowledges the logout. Tokens are stateless; the client discards it.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out",
	})
}

// GetMe returns the authenticated account and, for citizens, the verified
// e-ID profile.
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, _ := c.Get("user_id")
	userIDObj, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid user ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var user models.User
	if err := h.userCollection.FindOne(ctx, bson.M{"_id": userIDObj}).Decode(&user); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "User not found",
		})
		return
	}

	response := gin.H{"user": user}

	var profile models.EIDProfile
	if err := h.profileCollection.FindOne(ctx, bson.M{"user_id": userIDObj}).Decode(&profile); err == nil {
		response["profile"] = profile
	}

	c.JSON(http.StatusOK, response)
}

// CreateStaff creates reviewer and admin accounts. Admin only.
func (h *AuthHandler) CreateStaff(c *gin.Context) {
	var req CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var existing models.User
	err := h.userCollection.FindOne(ctx, bson.M{"email": req.Email}).Decode(&existing)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "User with this email already exists",
		})
		return
	} else if err != mongo.ErrNoDocuments {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Database error",
		})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error hashing password",
		})
		return
	}

	now := time.Now()
	user := models.User{
		Username:     req.Email,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	result, err := h.userCollection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "User with this email already exists",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error creating user",
		})
		return
	}
	user.ID = result.InsertedID.(primitive.ObjectID)

	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) setVerificationStatus(ctx context.Context, id primitive.ObjectID, fields bson.M) {
	if _, err := h.verificationCollection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields}); err != nil {
		logrus.WithError(err).Error("Failed to update verification status")
	}
}

func (h *AuthHandler) stampLogin(ctx context.Context, userID primitive.ObjectID) {
	now := time.Now()
	h.userCollection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{"last_login_at": now, "updated_at": now},
	})
}
