package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jw6ventures/habitplanner/internal/http/apierror"
	"github.com/jw6ventures/habitplanner/internal/store"
)

// Service resolves bearer tokens to accounts. Requests without a valid token
// are rejected; no fallback identity is ever assumed.
type Service struct {
	verifier Verifier
	users    store.UserRepository
	log      *zap.Logger
}

func NewService(verifier Verifier, users store.UserRepository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{verifier: verifier, users: users, log: log}
}

// Authenticate verifies the Authorization header value and loads the account
// it names. External identities are provisioned on first use.
func (s *Service) Authenticate(ctx context.Context, header string) (*store.User, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: missing bearer token", apierror.ErrUnauthorized)
	}

	id, err := s.verifier.Verify(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apierror.ErrUnauthorized, err)
	}

	if id.UserID != uuid.Nil {
		user, err := s.users.GetByID(ctx, id.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown account %s", apierror.ErrUnauthorized, id.UserID)
		}
		return user, err
	}
	return s.users.UpsertBySubject(ctx, id.Subject, id.Email, id.Name)
}

// RequireBearer rejects unauthenticated requests with 401 and puts the
// account on the request context otherwise.
func (s *Service) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			apierror.Write(w, r, s.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
