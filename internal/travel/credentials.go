package travel

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"travel_tracker/internal/models"
	"travel_tracker/internal/repo"
)

const qrCodePrefix = "driver-code:"

// CredentialInput registers the driver expected to collect a guest.
type CredentialInput struct {
	DriverName   string `json:"driver_name"`
	DriverPhone  string `json:"driver_phone"`
	VehiclePlate string `json:"vehicle_plate"`
	Code         string `json:"code" binding:"required"`
	PhotoURL     string `json:"photo_url"`
}

// CredentialStore is the credential registry backed by the credentials repository.
type CredentialStore struct {
	credentials repo.CredentialRepository
}

func NewCredentialStore(credentials repo.CredentialRepository) *CredentialStore {
	return &CredentialStore{credentials: credentials}
}

func (s *CredentialStore) LookupExpectedCredential(ctx context.Context, profileID uuid.UUID) (*models.DriverCredential, error) {
	c, err := s.credentials.GetByProfile(ctx, profileID)
	if err != nil {
		return nil, storeErr("lookup driver credential", err)
	}
	return c, nil
}

// Register hashes the code and stores or replaces the profile's credential.
func (s *CredentialStore) Register(ctx context.Context, profileID uuid.UUID, in CredentialInput) (*models.DriverCredential, error) {
	scanned := scannedForm(in.Code)
	typed := typedForm(in.Code)
	if scanned == "" || typed == "" {
		return nil, invalidf("code must not be empty")
	}

	codeHash, err := bcrypt.GenerateFromPassword([]byte(scanned), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash driver code: %w", err)
	}
	manualHash, err := bcrypt.GenerateFromPassword([]byte(typed), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash driver code: %w", err)
	}

	c := &models.DriverCredential{
		TravelProfileID: profileID,
		DriverName:      in.DriverName,
		DriverPhone:     in.DriverPhone,
		VehiclePlate:    in.VehiclePlate,
		CodeHash:        string(codeHash),
		ManualCodeHash:  string(manualHash),
		PhotoURL:        in.PhotoURL,
	}
	if err := s.credentials.Upsert(ctx, c); err != nil {
		return nil, storeErr("register driver credential", err)
	}
	return c, nil
}

// scannedForm is how barcode and QR payloads are compared: trimmed, otherwise verbatim.
func scannedForm(code string) string {
	code = strings.TrimSpace(code)
	if len(code) >= len(qrCodePrefix) && strings.EqualFold(code[:len(qrCodePrefix)], qrCodePrefix) {
		code = strings.TrimSpace(code[len(qrCodePrefix):])
	}
	return code
}

// typedForm is how hand-entered codes are compared: case-insensitive, with
// spaces and dashes ignored.
func typedForm(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(code)) {
		if r == ' ' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func hashMatches(hash, code string) bool {
	if hash == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// matchCode compares a presented code with the credential per method.
func matchCode(method models.VerificationMethod, code string, aux map[string]interface{}, c *models.DriverCredential) bool {
	switch method {
	case models.VerifyBarcodeScan:
		return hashMatches(c.CodeHash, strings.TrimSpace(code))
	case models.VerifyQRCode:
		return hashMatches(c.CodeHash, scannedForm(code))
	case models.VerifyManualCode:
		return hashMatches(c.ManualCodeHash, typedForm(code))
	case models.VerifyPhotoVerification:
		url, _ := aux["photo_url"].(string)
		if strings.TrimSpace(url) == "" {
			return false
		}
		return hashMatches(c.ManualCodeHash, typedForm(code))
	}
	return false
}
