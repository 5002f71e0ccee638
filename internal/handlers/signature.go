// internal/handlers/signature.go

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

type SignatureHandler struct {
	signatureCollection    *mongo.Collection
	initiativeCollection   *mongo.Collection
	participantCollection  *mongo.Collection
	profileCollection      *mongo.Collection
	municipalityCollection *mongo.Collection
	hub                    *Hub
}

type SignInitiativeRequest struct {
	MunicipalityID  string `json:"municipality_id" binding:"required"`
	StreetAndNumber string `json:"street_and_number" binding:"required,max=200"`
	PostalCode      string `json:"postal_code" binding:"required,max=10"`
}

func NewSignatureHandler(signatureCollection, initiativeCollection, participantCollection, profileCollection, municipalityCollection *mongo.Collection, hub *Hub) *SignatureHandler {
	return &SignatureHandler{
		signatureCollection:    signatureCollection,
		initiativeCollection:   initiativeCollection,
		participantCollection:  participantCollection,
		profileCollection:      profileCollection,
		municipalityCollection: municipalityCollection,
		hub:                    hub,
	}
}

// SignInitiative records one signature for the authenticated citizen. The
// name fields are snapshotted from the verified profile so later profile
// updates do not alter collected sheets. The unique index on
// (initiative_id, participant_id) is the authority on duplicates.
func (h *SignatureHandler) SignInitiative(c *gin.Context) {
	initiativeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid initiative ID",
		})
		return
	}

	var req SignInitiativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	municipalityID, err := primitive.ObjectIDFromHex(req.MunicipalityID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid municipality ID",
		})
		return
	}

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

	if !initiative.IsCollecting(time.Now()) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "This initiative is not collecting signatures at the moment",
		})
		return
	}

	var participant models.Participant
	if err := h.participantCollection.FindOne(ctx, bson.M{"user_id": userIDObj}).Decode(&participant); err != nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Only verified participants can sign. Complete the e-ID verification first.",
		})
		return
	}

	var profile models.EIDProfile
	if err := h.profileCollection.FindOne(ctx, bson.M{"_id": participant.ProfileID}).Decode(&profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Verified profile not found",
		})
		return
	}

	munCount, err := h.municipalityCollection.CountDocuments(ctx, bson.M{"_id": municipalityID})
	if err != nil || munCount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown municipality",
		})
		return
	}

	// Advisory pre-check for a friendly response; the unique index catches
	// the race.
	existsErr := h.signatureCollection.FindOne(ctx, bson.M{
		"initiative_id":  initiativeID,
		"participant_id": participant.ID,
	}).Err()
	if existsErr == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "You have already signed this initiative",
		})
		return
	}

	now := time.Now()
	signature := models.Signature{
		InitiativeID:    initiativeID,
		ParticipantID:   participant.ID,
		MunicipalityID:  municipalityID,
		GivenName:       profile.GivenName,
		FamilyName:      profile.FamilyName,
		BirthDate:       profile.BirthDate,
		StreetAndNumber: req.StreetAndNumber,
		PostalCode:      req.PostalCode,
		Status:          models.SignatureStatusPending,
		SignedAt:        now,
		UpdatedAt:       now,
	}

	result, err := h.signatureCollection.InsertOne(ctx, signature)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "You have already signed this initiative",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error recording signature",
		})
		return
	}
	signature.ID = result.InsertedID.(primitive.ObjectID)

	h.hub.PublishInitiativeProgress(h.signatureCollection, h.initiativeCollection, initiativeID)

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Signature recorded. It will be reviewed by your municipality.",
		"signature": signature,
	})
}

// GetMySignatures lists the caller's signatures with initiative titles.
func (h *SignatureHandler) GetMySignatures(c *gin.Context) {
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

	var participant models.Participant
	if err := h.participantCollection.FindOne(ctx, bson.M{"user_id": userIDObj}).Decode(&participant); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"signatures": []gin.H{},
		})
		return
	}

	cursor, err := h.signatureCollection.Find(ctx, bson.M{"participant_id": participant.ID},
		options.Find().SetSort(bson.D{{Key: "signed_at", Value: -1}}))
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

	titles := h.initiativeTitles(ctx, signatures)

	entries := make([]gin.H, 0, len(signatures))
	for _, signature := range signatures {
		entries = append(entries, gin.H{
			"id":               signature.ID,
			"initiative_id":    signature.InitiativeID,
			"initiative_title": titles[signature.InitiativeID],
			"municipality_id":  signature.MunicipalityID,
			"status":           signature.Status,
			"signed_at":        signature.SignedAt,
			"reviewed_at":      signature.ReviewedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"signatures": entries,
	})
}

func (h *SignatureHandler) initiativeTitles(ctx context.Context, signatures []models.Signature) map[primitive.ObjectID]string {
	titles := make(map[primitive.ObjectID]string)
	if len(signatures) == 0 {
		return titles
	}

	idSet := make(map[primitive.ObjectID]bool)
	ids := []primitive.ObjectID{}
	for _, signature := range signatures {
		if !idSet[signature.InitiativeID] {
			idSet[signature.InitiativeID] = true
			ids = append(ids, signature.InitiativeID)
		}
	}

	cursor, err := h.initiativeCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"title": 1}))
	if err != nil {
		return titles
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			ID    primitive.ObjectID `bson:"_id"`
			Title string             `bson:"title"`
		}
		if err := cursor.Decode(&row); err == nil {
			titles[row.ID] = row.Title
		}
	}

	return titles
}
