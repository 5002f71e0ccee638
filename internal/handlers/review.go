// internal/handlers/review.go

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"prosignum/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReviewHandler struct {
	signatureCollection    *mongo.Collection
	assignmentCollection   *mongo.Collection
	municipalityCollection *mongo.Collection
	userCollection         *mongo.Collection
	initiativeCollection   *mongo.Collection
	hub                    *Hub
}

type BulkReviewRequest struct {
	SignatureIDs []string `json:"signature_ids" binding:"required,min=1,max=500"`
	Notes        string   `json:"notes,omitempty" binding:"max=1000"`
}

type AssignReviewerRequest struct {
	MunicipalityIDs []string `json:"municipality_ids" binding:"required"`
}

func NewReviewHandler(signatureCollection, assignmentCollection, municipalityCollection, userCollection, initiativeCollection *mongo.Collection, hub *Hub) *ReviewHandler {
	return &ReviewHandler{
		signatureCollection:    signatureCollection,
		assignmentCollection:   assignmentCollection,
		municipalityCollection: municipalityCollection,
		userCollection:         userCollection,
		initiativeCollection:   initiativeCollection,
		hub:                    hub,
	}
}

// reviewScope narrows a signature filter to the municipalities the caller may
// review. Admins see everything. A reviewer with no assigned municipalities
// sees nothing.
func reviewScope(role string, allowed []primitive.ObjectID) (bson.M, bool) {
	if role == string(models.RoleAdmin) {
		return bson.M{}, true
	}
	if len(allowed) == 0 {
		return nil, false
	}
	return bson.M{"municipality_id": bson.M{"$in": allowed}}, true
}

// allowedMunicipalities loads the caller's assignment. Admins return nil
// (unrestricted).
func (h *ReviewHandler) allowedMunicipalities(ctx context.Context, c *gin.Context) ([]primitive.ObjectID, string, error) {
	role := c.GetString("role")
	if role == string(models.RoleAdmin) {
		return nil, role, nil
	}

	userIDObj, err := primitive.ObjectIDFromHex(c.GetString("user_id"))
	if err != nil {
		return nil, role, err
	}

	var assignment models.ReviewerAssignment
	err = h.assignmentCollection.FindOne(ctx, bson.M{"user_id": userIDObj}).Decode(&assignment)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return []primitive.ObjectID{}, role, nil
		}
		return nil, role, err
	}

	return assignment.MunicipalityIDs, role, nil
}

// ListSignatures returns the signatures in the caller's review scope. Defaults
// to pending; supports status, initiative and municipality filters plus
// limit/offset pagination.
func (h *ReviewHandler) ListSignatures(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	allowed, role, err := h.allowedMunicipalities(ctx, c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error loading reviewer assignment",
		})
		return
	}

	scope, visible := reviewScope(role, allowed)
	if !visible {
		c.JSON(http.StatusOK, gin.H{
			"signatures": []models.Signature{},
			"total":      0,
		})
		return
	}

	filter := bson.M{}
	for k, v := range scope {
		filter[k] = v
	}

	status := c.DefaultQuery("status", models.SignatureStatusPending)
	if status != "all" {
		filter["status"] = status
	}

	if initiativeParam := c.Query("initiative_id"); initiativeParam != "" {
		initiativeID, err := primitive.ObjectIDFromHex(initiativeParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid initiative ID",
			})
			return
		}
		filter["initiative_id"] = initiativeID
	}

	if munParam := c.Query("municipality_id"); munParam != "" {
		municipalityID, err := primitive.ObjectIDFromHex(munParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid municipality ID",
			})
			return
		}
		if role != string(models.RoleAdmin) && !containsID(allowed, municipalityID) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Municipality outside your review scope",
			})
			return
		}
		filter["municipality_id"] = municipalityID
	}

	limit := int64(50)
	if l, err := parseQueryInt(c, "limit"); err == nil && l > 0 && l <= 200 {
		limit = int64(l)
	}
	offset := int64(0)
	if o, err := parseQueryInt(c, "offset"); err == nil && o >= 0 {
		offset = int64(o)
	}

	total, err := h.signatureCollection.CountDocuments(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error counting signatures",
		})
		return
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "signed_at", Value: 1}}).
		SetSkip(offset).
		SetLimit(limit)
	cursor, err := h.signatureCollection.Find(ctx, filter, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching signatures",
		})
		return
	}
	defer cursor.Close(ctx)

	var signatures []models.Signature
	if err := cursor.All(ctx, &signatures); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding signatures",
		})
		return
	}
	if signatures == nil {
		signatures = []models.Signature{}
	}

	c.JSON(http.StatusOK, gin.H{
		"signatures": signatures,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// AcceptSignatures marks pending signatures in scope as accepted.
func (h *ReviewHandler) AcceptSignatures(c *gin.Context) {
	h.bulkReview(c, models.SignatureStatusAccepted)
}

// RejectSignatures marks pending signatures in scope as rejected.
func (h *ReviewHandler) RejectSignatures(c *gin.Context) {
	h.bulkReview(c, models.SignatureStatusRejected)
}

// bulkReview applies one review decision to a batch. Only pending signatures
// inside the caller's scope are touched, so ids that are already reviewed or
// out of scope are silently skipped and reported via the updated count.
func (h *ReviewHandler) bulkReview(c *gin.Context, newStatus string) {
	var req BulkReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ids := make([]primitive.ObjectID, 0, len(req.SignatureIDs))
	for _, raw := range req.SignatureIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid signature ID: " + raw,
			})
			return
		}
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	allowed, role, err := h.allowedMunicipalities(ctx, c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error loading reviewer assignment",
		})
		return
	}

	scope, visible := reviewScope(role, allowed)
	if !visible {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "No municipalities assigned for review",
		})
		return
	}

	filter := bson.M{
		"_id":    bson.M{"$in": ids},
		"status": models.SignatureStatusPending,
	}
	for k, v := range scope {
		filter[k] = v
	}

	reviewerID, err := primitive.ObjectIDFromHex(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid user ID",
		})
		return
	}

	// Collect the affected initiatives before the update so the live feed
	// can be refreshed afterwards.
	affectedRaw, err := h.signatureCollection.Distinct(ctx, "initiative_id", filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error resolving signatures",
		})
		return
	}

	now := time.Now()
	result, err := h.signatureCollection.UpdateMany(ctx, filter, bson.M{
		"$set": bson.M{
			"status":       newStatus,
			"reviewed_by":  reviewerID,
			"reviewed_at":  now,
			"review_notes": req.Notes,
			"updated_at":   now,
		},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error updating signatures",
		})
		return
	}

	for _, raw := range affectedRaw {
		if initiativeID, ok := raw.(primitive.ObjectID); ok {
			h.hub.PublishInitiativeProgress(h.signatureCollection, h.initiativeCollection, initiativeID)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Review applied",
		"status":    newStatus,
		"requested": len(ids),
		"updated":   result.ModifiedCount,
	})
}

// AssignReviewer sets the full municipality list for a reviewer. Admin only.
// The assignment is replaced, not merged.
func (h *ReviewHandler) AssignReviewer(c *gin.Context) {
	reviewerID, err := primitive.ObjectIDFromHex(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid user ID",
		})
		return
	}

	var req AssignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	municipalityIDs := make([]primitive.ObjectID, 0, len(req.MunicipalityIDs))
	for _, raw := range req.MunicipalityIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid municipality ID: " + raw,
			})
			return
		}
		municipalityIDs = append(municipalityIDs, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var user models.User
	if err := h.userCollection.FindOne(ctx, bson.M{"_id": reviewerID}).Decode(&user); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "User not found",
		})
		return
	}
	if user.Role != string(models.RoleReviewer) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Assignments can only be created for reviewer accounts",
		})
		return
	}

	if len(municipalityIDs) > 0 {
		count, err := h.municipalityCollection.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": municipalityIDs}})
		if err != nil || int(count) != len(municipalityIDs) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "One or more municipalities do not exist",
			})
			return
		}
	}

	now := time.Now()
	_, err = h.assignmentCollection.UpdateOne(ctx,
		bson.M{"user_id": reviewerID},
		bson.M{
			"$set": bson.M{
				"municipality_ids": municipalityIDs,
				"updated_at":       now,
			},
			"$setOnInsert": bson.M{
				"user_id":    reviewerID,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error saving assignment",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Reviewer assignment saved",
		"user_id":          reviewerID,
		"municipality_ids": municipalityIDs,
	})
}

// ListReviewerAssignments returns all assignments. Admin only.
func (h *ReviewHandler) ListReviewerAssignments(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := h.assignmentCollection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching assignments",
		})
		return
	}
	defer cursor.Close(ctx)

	var assignments []models.ReviewerAssignment
	if err := cursor.All(ctx, &assignments); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding assignments",
		})
		return
	}
	if assignments == nil {
		assignments = []models.ReviewerAssignment{}
	}

	c.JSON(http.StatusOK, gin.H{
		"assignments": assignments,
	})
}

// DeleteReviewerAssignment removes a reviewer's assignment. Admin only.
func (h *ReviewHandler) DeleteReviewerAssignment(c *gin.Context) {
	reviewerID, err := primitive.ObjectIDFromHex(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid user ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.assignmentCollection.DeleteOne(ctx, bson.M{"user_id": reviewerID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error deleting assignment",
		})
		return
	}
	if result.DeletedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Assignment not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reviewer assignment deleted",
	})
}

func parseQueryInt(c *gin.Context, key string) (int, error) {
	return strconv.Atoi(c.Query(key))
}

func containsID(ids []primitive.ObjectID, target primitive.ObjectID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
