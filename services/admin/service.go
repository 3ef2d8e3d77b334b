package admin

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/nvbf/gameday-sync/pkg/auth"
)

type AdminService struct {
	tokens *auth.Service
}

func NewAdminService(tokens *auth.Service) *AdminService {
	return &AdminService{tokens: tokens}
}

// ValidateAdmin checks a login password and logs the attempt.
func (s *AdminService) ValidateAdmin(ctx context.Context, password string) auth.Validation {
	v := s.tokens.ValidatePassword(ctx, password)
	log.Info().
		Bool("isAdmin", v.IsAdmin).
		Bool("isSuperAdmin", v.IsSuperAdmin).
		Bool("delegated", v.FirebaseToken != "").
		Msg("Admin login attempt")
	return v
}

// Session reports the role of an already issued token.
func (s *AdminService) Session(token string) auth.Role {
	return s.tokens.ValidateToken(token)
}
