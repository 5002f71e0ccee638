// internal/services/verifier.go

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prosignum/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ErrVerifierUnavailable marks a communication failure with the verifier
// (network error or non-2xx answer). It is distinct from a denied or failed
// verification, which is a normal poll outcome.
var ErrVerifierUnavailable = errors.New("failed to communicate with e-ID verifier")

// VerifierService talks to the e-ID verifier management API.
type VerifierService struct {
	client *resty.Client
}

// CreatedVerification is the result of opening a new verification session.
type CreatedVerification struct {
	VerificationID  string
	VerificationURL string
}

// VerificationResult is the normalized answer of a status poll.
type VerificationResult struct {
	Status    string
	Claims    *models.EIDClaims
	ErrorCode string
}

// verifierStatusResponse covers both response vocabularies of the verifier:
// the current API reports an upper-case `state` with claims nested under
// `wallet_response`, the legacy API a lower-case `status` with top-level
// `verified_claims`.
type verifierStatusResponse struct {
	State  string `json:"state"`
	Status string `json:"status"`

	WalletResponse *walletResponse   `json:"wallet_response"`
	VerifiedClaims *models.EIDClaims `json:"verified_claims"`
	Error          string            `json:"error"`
}

type walletResponse struct {
	ErrorCode             string            `json:"error_code"`
	CredentialSubjectData *models.EIDClaims `json:"credential_subject_data"`
}

type createVerificationResponse struct {
	ID              string `json:"id"`
	LegacyID        string `json:"verification_id"`
	VerificationURL string `json:"verification_url"`
}

func NewVerifierService(baseURL string) *VerifierService {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &VerifierService{client: client}
}

// CreateVerification opens a verification session for the Swiss e-ID
// credential and returns the provider-issued id plus the URL the wallet app
// has to open.
func (s *VerifierService) CreateVerification(ctx context.Context, purpose string) (*CreatedVerification, error) {
	payload := map[string]interface{}{
		// Empty list: accept any official Swiss issuer.
		"accepted_issuer_dids":              []string{},
		"jwt_secured_authorization_request": true,
		"presentation_definition":           presentationDefinition(purpose),
	}

	var out createVerificationResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		Post("/management/api/verifications")
	if err != nil {
		logrus.WithError(err).Error("Failed to create verification request")
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	if !resp.IsSuccess() {
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode(),
			"body":   resp.String(),
		}).Error("Verifier rejected verification request")
		return nil, fmt.Errorf("%w: unexpected status %d", ErrVerifierUnavailable, resp.StatusCode())
	}

	// The current API calls the field `id`, the legacy one `verification_id`.
	id := out.ID
	if id == "" {
		id = out.LegacyID
	}
	if id == "" || out.VerificationURL == "" {
		return nil, fmt.Errorf("%w: incomplete response", ErrVerifierUnavailable)
	}

	logrus.WithField("verification_id", id).Info("Created verification request")

	return &CreatedVerification{
		VerificationID:  id,
		VerificationURL: out.VerificationURL,
	}, nil
}

// CheckStatus polls one session and maps the provider's vocabulary onto the
// local status set.
func (s *VerifierService) CheckStatus(ctx context.Context, verificationID string) (*VerificationResult, error) {
	var out verifierStatusResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/management/api/verifications/" + verificationID)
	if err != nil {
		logrus.WithError(err).Error("Failed to check verification status")
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	if !resp.IsSuccess() {
		logrus.WithFields(logrus.Fields{
			"verification_id": verificationID,
			"status":          resp.StatusCode(),
		}).Error("Verifier rejected status check")
		return nil, fmt.Errorf("%w: unexpected status %d", ErrVerifierUnavailable, resp.StatusCode())
	}

	return normalizeStatusResponse(&out), nil
}

// normalizeStatusResponse is the single translation point between the
// verifier's two response shapes and the local vocabulary
// {pending, completed, failed, expired}.
func normalizeStatusResponse(raw *verifierStatusResponse) *VerificationResult {
	state := raw.State
	if state == "" {
		state = raw.Status
	}
	state = strings.ToLower(state)
	if state == "success" {
		state = models.VerificationStatusCompleted
	}

	switch state {
	case models.VerificationStatusPending,
		models.VerificationStatusCompleted,
		models.VerificationStatusFailed,
		models.VerificationStatusExpired:
	default:
		// Unknown vocabulary entries are treated as still pending.
		state = models.VerificationStatusPending
	}

	result := &VerificationResult{Status: state}

	if raw.WalletResponse != nil {
		result.ErrorCode = raw.WalletResponse.ErrorCode
		result.Claims = raw.WalletResponse.CredentialSubjectData
	}
	if result.Claims == nil {
		result.Claims = raw.VerifiedClaims
	}
	if result.ErrorCode == "" {
		result.ErrorCode = raw.Error
	}

	return result
}

// presentationDefinition describes the claims required from the Swiss e-ID
// (beta credential): name, birth date and the administrative number, with the
// credential type pinned.
func presentationDefinition(purpose string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "swiss-eid-auth",
		"name":    "Swiss E-ID Authentication",
		"purpose": purpose,
		"input_descriptors": []map[string]interface{}{
			{
				"id": "swiss-eid-credential",
				"format": map[string]interface{}{
					"vc+sd-jwt": map[string]interface{}{
						"sd-jwt_alg_values": []string{"ES256"},
						"kb-jwt_alg_values": []string{"ES256"},
					},
				},
				"constraints": map[string]interface{}{
					"fields": []map[string]interface{}{
						{"path": []string{"$.family_name"}},
						{"path": []string{"$.given_name"}},
						{"path": []string{"$.birth_date"}},
						{"path": []string{"$.personal_administrative_number"}},
						{
							"path": []string{"$.vct"},
							"filter": map[string]interface{}{
								"type":  "string",
								"const": "betaid-sdjwt",
							},
						},
					},
				},
			},
		},
	}
}
