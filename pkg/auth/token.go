package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/rs/zerolog/log"
)

const (
	// DelegatedUID is the realtime store user minted for superadmins.
	DelegatedUID = "adminUser"
	// AdminClaim is the custom claim the realtime store rules check.
	AdminClaim = "admin"
)

var ErrUnauthorized = errors.New("authentication failed")

// FailedMessage is the error text sent to clients on a rejected token.
const FailedMessage = "Authentication failed."

// Role is the privilege a token grants.
type Role int

const (
	RoleNone Role = iota
	RoleAdmin
	RoleSuperAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "superadmin"
	}
	return "none"
}

// ComputeToken derives the stateless token for a password.
func ComputeToken(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// TokenMinter issues credentials for the realtime store's own auth domain.
type TokenMinter interface {
	CustomTokenWithClaims(ctx context.Context, uid string, claims map[string]interface{}) (string, error)
}

// Validation is the answer to a password check.
type Validation struct {
	IsAdmin       bool   `json:"isAdmin"`
	IsSuperAdmin  bool   `json:"isSuperAdmin"`
	Token         string `json:"token,omitempty"`
	FirebaseToken string `json:"firebaseToken,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Service checks passwords and tokens against the two configured roles.
// A role whose password is empty is disabled.
type Service struct {
	salt       string
	adminToken string
	superToken string
	minter     TokenMinter
}

func NewService(adminPassword, superAdminPassword, salt string, minter TokenMinter) *Service {
	s := &Service{salt: salt, minter: minter}
	if adminPassword != "" {
		s.adminToken = ComputeToken(adminPassword, salt)
	}
	if superAdminPassword != "" {
		s.superToken = ComputeToken(superAdminPassword, salt)
	}
	return s
}

func matches(candidate, want string) bool {
	if want == "" || len(candidate) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(want)) == 1
}

// ValidateToken maps a client supplied token to its role.
func (s *Service) ValidateToken(candidate string) Role {
	switch {
	case candidate == "":
		return RoleNone
	case matches(candidate, s.adminToken):
		return RoleAdmin
	case matches(candidate, s.superToken):
		return RoleSuperAdmin
	}
	return RoleNone
}

// ValidatePassword checks a password. A wrong password is a normal outcome,
// reported in the result rather than as an error.
func (s *Service) ValidatePassword(ctx context.Context, password string) Validation {
	if password == "" {
		return Validation{Error: "Invalid password."}
	}
	candidate := ComputeToken(password, s.salt)
	switch s.ValidateToken(candidate) {
	case RoleSuperAdmin:
		v := Validation{IsAdmin: true, IsSuperAdmin: true, Token: candidate}
		if s.minter != nil {
			tok, err := s.minter.CustomTokenWithClaims(ctx, DelegatedUID, map[string]interface{}{AdminClaim: true})
			if err != nil {
				log.Warn().Err(err).Msg("failed to mint realtime store token for superadmin")
			} else {
				v.FirebaseToken = tok
			}
		}
		return v
	case RoleAdmin:
		return Validation{IsAdmin: true, Token: candidate}
	}
	return Validation{Error: "Invalid password."}
}
