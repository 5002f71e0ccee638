// internal/handlers/initiative.go

package handlers

import (
	"context"
	"net/http"
	"time"

	"prosignum/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type InitiativeHandler struct {
	initiativeCollection   *mongo.Collection
	signatureCollection    *mongo.Collection
	participantCollection  *mongo.Collection
	municipalityCollection *mongo.Collection
}

type CreateInitiativeRequest struct {
	Title            string     `json:"title" binding:"required,min=10,max=500"`
	Description      string     `json:"description" binding:"required"`
	URL              string     `json:"url,omitempty" binding:"omitempty,url"`
	Committee        string     `json:"committee,omitempty"`
	CollectionStart  *time.Time `json:"collection_start,omitempty"`
	CollectionEnd    *time.Time `json:"collection_end,omitempty"`
	TargetSignatures int        `json:"target_signatures" binding:"min=0"`
}

type UpdateInitiativeRequest struct {
	Title            *string    `json:"title,omitempty" binding:"omitempty,min=10,max=500"`
	Description      *string    `json:"description,omitempty"`
	URL              *string    `json:"url,omitempty" binding:"omitempty,url"`
	Committee        *string    `json:"committee,omitempty"`
	CollectionStart  *time.Time `json:"collection_start,omitempty"`
	CollectionEnd    *time.Time `json:"collection_end,omitempty"`
	TargetSignatures *int       `json:"target_signatures,omitempty" binding:"omitempty,min=0"`
}

// InitiativeSummary decorates an initiative with its derived metrics.
type InitiativeSummary struct {
	models.Initiative
	AcceptedSignatures int  `json:"accepted_signatures"`
	Progress           int  `json:"progress"`
	AlreadySigned      bool `json:"already_signed"`
}

type MunicipalityBreakdown struct {
	MunicipalityID primitive.ObjectID `json:"municipality_id"`
	Name           string             `json:"name"`
	Canton         string             `json:"canton"`
	Count          int                `json:"count"`
}

func NewInitiativeHandler(initiativeCollection, signatureCollection, participantCollection, municipalityCollection *mongo.Collection) *InitiativeHandler {
	return &InitiativeHandler{
		initiativeCollection:   initiativeCollection,
		signatureCollection:    signatureCollection,
		participantCollection:  participantCollection,
		municipalityCollection: municipalityCollection,
	}
}

// collectingFilter matches initiatives that currently accept signatures:
// active status and the time within the (possibly open-ended) window.
func collectingFilter(now time.Time) bson.M {
	return bson.M{
		"status": models.InitiativeStatusActive,
		"$and": []bson.M{
			{"$or": []bson.M{
				{"collection_start": bson.M{"$exists": false}},
				{"collection_start": nil},
				{"collection_start": bson.M{"$lte": now}},
			}},
			{"$or": []bson.M{
				{"collection_end": bson.M{"$exists": false}},
				{"collection_end": nil},
				{"collection_end": bson.M{"$gte": now}},
			}},
		},
	}
}

// GetInitiatives lists the initiatives currently collecting signatures. When
// the caller is authenticated, each entry carries an already_signed flag.
func (h *InitiativeHandler) GetInitiatives(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := h.initiativeCollection.Find(ctx, collectingFilter(time.Now()), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching initiatives",
		})
		return
	}
	defer cursor.Close(ctx)

	var initiatives []models.Initiative
	if err := cursor.All(ctx, &initiatives); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding initiatives",
		})
		return
	}

	signedSet := h.signedInitiativeSet(ctx, c)
	acceptedCounts := h.acceptedCounts(ctx, initiatives)

	summaries := make([]InitiativeSummary, 0, len(initiatives))
	for _, initiative := range initiatives {
		accepted := acceptedCounts[initiative.ID]
		summaries = append(summaries, InitiativeSummary{
			Initiative:         initiative,
			AcceptedSignatures: accepted,
			Progress:           initiative.ProgressPercentage(accepted),
			AlreadySigned:      signedSet[initiative.ID],
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"initiatives": summaries,
	})
}

func (h *InitiativeHandler) GetInitiative(c *gin.Context) {
	initiativeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid initiative ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var initiative models.Initiative
	err = h.initiativeCollection.FindOne(ctx, bson.M{
		"_id":    initiativeID,
		"status": bson.M{"$ne": models.InitiativeStatusDraft},
	}).Decode(&initiative)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Initiative not found",
			})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Database error",
			})
		}
		return
	}

	accepted, err := h.signatureCollection.CountDocuments(ctx, bson.M{
		"initiative_id": initiativeID,
		"status":        models.SignatureStatusAccepted,
	})
	if err != nil {
		accepted = 0
	}

	signedSet := h.signedInitiativeSet(ctx, c)

	c.JSON(http.StatusOK, InitiativeSummary{
		Initiative:         initiative,
		AcceptedSignatures: int(accepted),
		Progress:           initiative.ProgressPercentage(int(accepted)),
		AlreadySigned:      signedSet[initiative.ID],
	})
}

// GetInitiativeStats returns the review-state counts, collection progress and
// the per-municipality breakdown of accepted signatures.
func (h *InitiativeHandler) GetInitiativeStats(c *gin.Context) {
	initiativeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid initiative ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var initiative models.Initiative
	err = h.initiativeCollection.FindOne(ctx, bson.M{
		"_id":    initiativeID,
		"status": bson.M{"$ne": models.InitiativeStatusDraft},
	}).Decode(&initiative)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Initiative not found",
			})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Database error",
			})
		}
		return
	}

	statusCounts := make(map[string]int)
	statusPipeline := []bson.M{
		{"$match": bson.M{"initiative_id": initiativeID}},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	}
	statusCursor, err := h.signatureCollection.Aggregate(ctx, statusPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error aggregating signatures",
		})
		return
	}
	defer statusCursor.Close(ctx)

	for statusCursor.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int    `bson:"count"`
		}
		if err := statusCursor.Decode(&row); err != nil {
			continue
		}
		statusCounts[row.ID] = row.Count
	}

	breakdown, err := h.municipalityBreakdown(ctx, initiativeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error aggregating municipalities",
		})
		return
	}

	accepted := statusCounts[models.SignatureStatusAccepted]

	c.JSON(http.StatusOK, gin.H{
		"initiative_id":     initiative.ID,
		"target_signatures": initiative.TargetSignatures,
		"accepted":          accepted,
		"pending":           statusCounts[models.SignatureStatusPending],
		"rejected":          statusCounts[models.SignatureStatusRejected],
		"progress":          initiative.ProgressPercentage(accepted),
		"goal_reached":      initiative.IsGoalReached(accepted),
		"by_municipality":   breakdown,
	})
}

// CreateInitiative creates a draft. Admin only.
func (h *InitiativeHandler) CreateInitiative(c *gin.Context) {
	var req CreateInitiativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	if req.CollectionStart != nil && req.CollectionEnd != nil && req.CollectionEnd.Before(*req.CollectionStart) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Collection end must be after collection start",
		})
		return
	}

	userID, _ := c.Get("user_id")
	creatorID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid user ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	initiative := models.Initiative{
		CreatorID:        creatorID,
		Title:            req.Title,
		Description:      req.Description,
		URL:              req.URL,
		Committee:        req.Committee,
		Status:           models.InitiativeStatusDraft,
		CollectionStart:  req.CollectionStart,
		CollectionEnd:    req.CollectionEnd,
		TargetSignatures: req.TargetSignatures,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	result, err := h.initiativeCollection.InsertOne(ctx, initiative)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error creating initiative",
		})
		return
	}
	initiative.ID = result.InsertedID.(primitive.ObjectID)

	c.JSON(http.StatusCreated, initiative)
}

// UpdateInitiative applies a partial update. Admin only.
func (h *InitiativeHandler) UpdateInitiative(c *gin.Context) {
	initiativeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid initiative ID",
		})
		return
	}

	var req UpdateInitiativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	update := bson.M{"updated_at": time.Now()}
	if req.Title != nil {
		update["title"] = *req.Title
	}
	if req.Description != nil {
		update["description"] = *req.Description
	}
	if req.URL != nil {
		update["url"] = *req.URL
	}
	if req.Committee != nil {
		update["committee"] = *req.Committee
	}
	if req.CollectionStart != nil {
		update["collection_start"] = *req.CollectionStart
	}
	if req.CollectionEnd != nil {
		update["collection_end"] = *req.CollectionEnd
	}
	if req.TargetSignatures != nil {
		update["target_signatures"] = *req.TargetSignatures
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.initiativeCollection.UpdateOne(ctx, bson.M{"_id": initiativeID}, bson.M{"$set": update})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error updating initiative",
		})
		return
	}
	if result.MatchedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Initiative not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Initiative updated successfully",
	})
}

// PublishInitiative moves a draft into active collection. Admin only.
func (h *InitiativeHandler) PublishInitiative(c *gin.Context) {
	h.transitionStatus(c,
		bson.M{"status": models.InitiativeStatusDraft},
		bson.M{"status": models.InitiativeStatusActive},
		"Initiative not found or already published",
		"Initiative published successfully",
	)
}

// CloseInitiative ends the collection. Admin only.
func (h *InitiativeHandler) CloseInitiative(c *gin.Context) {
	now := time.Now()
	h.transitionStatus(c,
		bson.M{"status": models.InitiativeStatusActive},
		bson.M{"status": models.InitiativeStatusClosed, "closed_at": now},
		"Initiative not found or not active",
		"Initiative closed successfully",
	)
}

// ArchiveInitiative archives a closed initiative. Admin only.
func (h *InitiativeHandler) ArchiveInitiative(c *gin.Context) {
	h.transitionStatus(c,
		bson.M{"status": models.InitiativeStatusClosed},
		bson.M{"status": models.InitiativeStatusArchived},
		"Initiative not found or not closed",
		"Initiative archived successfully",
	)
}

// DeleteInitiative removes a draft. Published initiatives are referenced by
// signatures and can only be closed or archived.
func (h *InitiativeHandler) DeleteInitiative(c *gin.Context) {
	initiativeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid initiative ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.initiativeCollection.DeleteOne(ctx, bson.M{
		"_id":    initiativeID,
		"status": models.InitiativeStatusDraft,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error deleting initiative",
		})
		return
	}
	if result.DeletedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Initiative not found or cannot be deleted",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Initiative deleted successfully",
	})
}

func (h *InitiativeHandler) transitionStatus(c *gin.Context, fromFilter, setFields bson.M, notFoundMsg, okMsg string) {
	initiativeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid initiative ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{"_id": initiativeID}
	for k, v := range fromFilter {
		filter[k] = v
	}
	setFields["updated_at"] = time.Now()

	result, err := h.initiativeCollection.UpdateOne(ctx, filter, bson.M{"$set": setFields})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error updating initiative",
		})
		return
	}
	if result.MatchedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": notFoundMsg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": okMsg,
	})
}

// signedInitiativeSet returns the initiatives the authenticated caller has
// already signed. Anonymous callers get an empty set.
func (h *InitiativeHandler) signedInitiativeSet(ctx context.Context, c *gin.Context) map[primitive.ObjectID]bool {
	signed := make(map[primitive.ObjectID]bool)

	userID, exists := c.Get("user_id")
	if !exists {
		return signed
	}
	userIDObj, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		return signed
	}

	var participant models.Participant
	if err := h.participantCollection.FindOne(ctx, bson.M{"user_id": userIDObj}).Decode(&participant); err != nil {
		return signed
	}

	cursor, err := h.signatureCollection.Find(ctx, bson.M{"participant_id": participant.ID},
		options.Find().SetProjection(bson.M{"initiative_id": 1}))
	if err != nil {
		return signed
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			InitiativeID primitive.ObjectID `bson:"initiative_id"`
		}
		if err := cursor.Decode(&row); err == nil {
			signed[row.InitiativeID] = true
		}
	}

	return signed
}

// acceptedCounts aggregates accepted-signature counts for a set of initiatives
// in one query.
func (h *InitiativeHandler) acceptedCounts(ctx context.Context, initiatives []models.Initiative) map[primitive.ObjectID]int {
	counts := make(map[primitive.ObjectID]int)
	if len(initiatives) == 0 {
		return counts
	}

	ids := make([]primitive.ObjectID, 0, len(initiatives))
	for _, initiative := range initiatives {
		ids = append(ids, initiative.ID)
	}

	pipeline := []bson.M{
		{"$match": bson.M{
			"initiative_id": bson.M{"$in": ids},
			"status":        models.SignatureStatusAccepted,
		}},
		{"$group": bson.M{"_id": "$initiative_id", "count": bson.M{"$sum": 1}}},
	}

	cursor, err := h.signatureCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return counts
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			ID    primitive.ObjectID `bson:"_id"`
			Count int                `bson:"count"`
		}
		if err := cursor.Decode(&row); err == nil {
			counts[row.ID] = row.Count
		}
	}

	return counts
}

// municipalityBreakdown groups accepted signatures by municipality and
// resolves the names in a second query.
func (h *InitiativeHandler) municipalityBreakdown(ctx context.Context, initiativeID primitive.ObjectID) ([]MunicipalityBreakdown, error) {
	pipeline := []bson.M{
		{"$match": bson.M{
			"initiative_id": initiativeID,
			"status":        models.SignatureStatusAccepted,
		}},
		{"$group": bson.M{"_id": "$municipality_id", "count": bson.M{"$sum": 1}}},
	}

	cursor, err := h.signatureCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	countsByID := make(map[primitive.ObjectID]int)
	ids := []primitive.ObjectID{}
	for cursor.Next(ctx) {
		var row struct {
			ID    primitive.ObjectID `bson:"_id"`
			Count int                `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		countsByID[row.ID] = row.Count
		ids = append(ids, row.ID)
	}

	breakdown := make([]MunicipalityBreakdown, 0, len(ids))
	if len(ids) == 0 {
		return breakdown, nil
	}

	munCursor, err := h.municipalityCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer munCursor.Close(ctx)

	var municipalities []models.Municipality
	if err := munCursor.All(ctx, &municipalities); err != nil {
		return nil, err
	}

	for _, municipality := range municipalities {
		breakdown = append(breakdown, MunicipalityBreakdown{
			MunicipalityID: municipality.ID,
			Name:           municipality.Name,
			Canton:         municipality.Canton,
			Count:          countsByID[municipality.ID],
		})
	}

	return breakdown, nil
}
