package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prosignum/internal/config"
	"prosignum/internal/services"
	"prosignum/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// guardedVerifier fails the test if the external verifier is ever contacted.
func guardedVerifier(t *testing.T) *services.VerifierService {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call to the verifier: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	return services.NewVerifierService(server.URL)
}

func authHandlerFor(mt *mtest.T, verifier *services.VerifierService) *AuthHandler {
	cfg := &config.Config{VerificationTimeout: 300, PollInterval: 2}
	return NewAuthHandler(
		cfg,
		mt.DB.Collection("eid_verifications"),
		mt.DB.Collection("users"),
		mt.DB.Collection("eid_profiles"),
		verifier,
		nil,
		auth.NewJWTManager("test-secret", time.Hour),
	)
}

func statusRequest(localID string) (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/auth/eid/status/"+localID, nil)
	c.Params = gin.Params{{Key: "id", Value: localID}}
	return w, c
}

func TestEIDStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unknown session answers not found", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "prosignum.eid_verifications", mtest.FirstBatch),
		)

		handler := authHandlerFor(mt, guardedVerifier(mt.T))
		w, c := statusRequest("missing")
		handler.EIDStatus(c)

		assert.Equal(mt, http.StatusNotFound, w.Code)
	})

	mt.Run("session past its timeout expires without an external call", func(mt *mtest.T) {
		expiredAt := time.Now().Add(-301 * time.Second)
		mt.AddMockResponses(
			// pending session, already past expires_at
			mtest.CreateCursorResponse(0, "prosignum.eid_verifications", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "local_id", Value: "stale"},
				{Key: "verification_id", Value: "ver-stale"},
				{Key: "status", Value: "pending"},
				{Key: "expires_at", Value: primitive.NewDateTimeFromTime(expiredAt)},
			}),
			// status persisted as expired
			mtest.CreateSuccessResponse(),
		)

		handler := authHandlerFor(mt, guardedVerifier(mt.T))
		w, c := statusRequest("stale")
		handler.EIDStatus(c)

		assert.Equal(mt, http.StatusOK, w.Code)
		assert.Contains(mt, w.Body.String(), `"status":"expired"`)
	})

	mt.Run("completed session replays from stored state", func(mt *mtest.T) {
		userID := primitive.NewObjectID()
		mt.AddMockResponses(
			// terminal session, even past expiry the stored outcome wins
			mtest.CreateCursorResponse(0, "prosignum.eid_verifications", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "local_id", Value: "done"},
				{Key: "verification_id", Value: "ver-done"},
				{Key: "status", Value: "completed"},
				{Key: "user_id", Value: userID},
				{Key: "expires_at", Value: primitive.NewDateTimeFromTime(time.Now().Add(-time.Hour))},
			}),
			// linked account
			mtest.CreateCursorResponse(0, "prosignum.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: userID},
				{Key: "username", Value: "eid_abc"},
				{Key: "role", Value: "CITIZEN"},
			}),
		)

		handler := authHandlerFor(mt, guardedVerifier(mt.T))
		w, c := statusRequest("done")
		handler.EIDStatus(c)

		assert.Equal(mt, http.StatusOK, w.Code)
		assert.Contains(mt, w.Body.String(), `"status":"completed"`)
		assert.Contains(mt, w.Body.String(), `"token"`)
	})
}
