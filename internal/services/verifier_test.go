package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"prosignum/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateVerification(t *testing.T) {
	var capturedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"ver-123","verification_url":"https://verifier.example/v/ver-123"}`))
	}))
	defer server.Close()

	service := NewVerifierService(server.URL)
	created, err := service.CreateVerification(context.Background(), "Login")

	require.NoError(t, err)
	assert.Equal(t, "/management/api/verifications", capturedPath)
	assert.Equal(t, "ver-123", created.VerificationID)
	assert.Equal(t, "https://verifier.example/v/ver-123", created.VerificationURL)
}

func TestCreateVerificationLegacyIDField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"verification_id":"legacy-7","verification_url":"https://verifier.example/v/legacy-7"}`))
	}))
	defer server.Close()

	service := NewVerifierService(server.URL)
	created, err := service.CreateVerification(context.Background(), "Login")

	require.NoError(t, err)
	assert.Equal(t, "legacy-7", created.VerificationID)
}

func TestCreateVerificationServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	service := NewVerifierService(server.URL)
	_, err := service.CreateVerification(context.Background(), "Login")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerifierUnavailable))
}

func TestCheckStatusCurrentVocabulary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"state": "SUCCESS",
			"wallet_response": {
				"credential_subject_data": {
					"given_name": "Anna",
					"family_name": "Muster",
					"birth_date": "1990-05-01",
					"personal_administrative_number": "756.1234.5678.97"
				}
			}
		}`))
	}))
	defer server.Close()

	service := NewVerifierService(server.URL)
	result, err := service.CheckStatus(context.Background(), "ver-123")

	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusCompleted, result.Status)
	require.NotNil(t, result.Claims)
	assert.Equal(t, "Anna", result.Claims.GivenName)
	assert.Equal(t, "756.1234.5678.97", result.Claims.PersonalAdministrativeNumber)
}

func TestCheckStatusLegacyVocabulary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "completed",
			"verified_claims": {
				"given_name": "Luca",
				"family_name": "Bianchi",
				"birth_date": "1985-11-20",
				"personal_administrative_number": "756.9999.8888.77"
			}
		}`))
	}))
	defer server.Close()

	service := NewVerifierService(server.URL)
	result, err := service.CheckStatus(context.Background(), "ver-456")

	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusCompleted, result.Status)
	require.NotNil(t, result.Claims)
	assert.Equal(t, "Luca", result.Claims.GivenName)
}

func TestCheckStatusUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	service := NewVerifierService(server.URL)
	_, err := service.CheckStatus(context.Background(), "ver-789")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerifierUnavailable))
}

func TestNormalizeStatusResponse(t *testing.T) {
	tests := []struct {
		name       string
		raw        verifierStatusResponse
		wantStatus string
		wantError  string
	}{
		{
			name:       "uppercase success maps to completed",
			raw:        verifierStatusResponse{State: "SUCCESS"},
			wantStatus: models.VerificationStatusCompleted,
		},
		{
			name:       "pending passes through",
			raw:        verifierStatusResponse{State: "PENDING"},
			wantStatus: models.VerificationStatusPending,
		},
		{
			name:       "legacy lowercase failed",
			raw:        verifierStatusResponse{Status: "failed"},
			wantStatus: models.VerificationStatusFailed,
		},
		{
			name:       "expired passes through",
			raw:        verifierStatusResponse{State: "EXPIRED"},
			wantStatus: models.VerificationStatusExpired,
		},
		{
			name:       "unknown vocabulary treated as pending",
			raw:        verifierStatusResponse{State: "IN_REVIEW"},
			wantStatus: models.VerificationStatusPending,
		},
		{
			name:       "empty response treated as pending",
			raw:        verifierStatusResponse{},
			wantStatus: models.VerificationStatusPending,
		},
		{
			name: "wallet error code wins over top-level error",
			raw: verifierStatusResponse{
				State:          "FAILED",
				Error:          "generic",
				WalletResponse: &walletResponse{ErrorCode: "client_rejected"},
			},
			wantStatus: models.VerificationStatusFailed,
			wantError:  "client_rejected",
		},
		{
			name: "top-level error used as fallback",
			raw: verifierStatusResponse{
				Status: "failed",
				Error:  "verification_expired",
			},
			wantStatus: models.VerificationStatusFailed,
			wantError:  "verification_expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeStatusResponse(&tt.raw)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantError, result.ErrorCode)
		})
	}
}

func TestNormalizeStatusResponseClaimsPreference(t *testing.T) {
	walletClaims := &models.EIDClaims{GivenName: "Wallet"}
	legacyClaims := &models.EIDClaims{GivenName: "Legacy"}

	result := normalizeStatusResponse(&verifierStatusResponse{
		State:          "SUCCESS",
		WalletResponse: &walletResponse{CredentialSubjectData: walletClaims},
		VerifiedClaims: legacyClaims,
	})
	assert.Equal(t, "Wallet", result.Claims.GivenName)

	result = normalizeStatusResponse(&verifierStatusResponse{
		Status:         "completed",
		VerifiedClaims: legacyClaims,
	})
	assert.Equal(t, "Legacy", result.Claims.GivenName)
}
