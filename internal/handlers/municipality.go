// internal/handlers/municipality.go

package handlers

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"prosignum/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MunicipalityHandler struct {
	municipalityCollection *mongo.Collection
}

func NewMunicipalityHandler(municipalityCollection *mongo.Collection) *MunicipalityHandler {
	return &MunicipalityHandler{
		municipalityCollection: municipalityCollection,
	}
}

// GetMunicipalities lists municipalities, filterable by canton, postal code
// and a name prefix. The registry is small so the full result is returned.
func (h *MunicipalityHandler) GetMunicipalities(c *gin.Context) {
	filter := bson.M{}
	if canton := c.Query("canton"); canton != "" {
		filter["canton"] = canton
	}
	if postalCode := c.Query("postal_code"); postalCode != "" {
		filter["postal_code"] = postalCode
	}
	if search := c.Query("search"); search != "" {
		filter["name"] = bson.M{
			"$regex":   "^" + regexp.QuoteMeta(search),
			"$options": "i",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := h.municipalityCollection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching municipalities",
		})
		return
	}
	defer cursor.Close(ctx)

	var municipalities []models.Municipality
	if err := cursor.All(ctx, &municipalities); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding municipalities",
		})
		return
	}
	if municipalities == nil {
		municipalities = []models.Municipality{}
	}

	c.JSON(http.StatusOK, gin.H{
		"municipalities": municipalities,
	})
}

func (h *MunicipalityHandler) GetMunicipality(c *gin.Context) {
	municipalityID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid municipality ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var municipality models.Municipality
	err = h.municipalityCollection.FindOne(ctx, bson.M{"_id": municipalityID}).Decode(&municipality)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Municipality not found",
			})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Database error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, municipality)
}
