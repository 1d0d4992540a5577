package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"

	"github.com/uptrace/bun"
)

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

type ProfileDB struct {
	Bun *bun.DB
}

func (d *ProfileDB) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := d.Bun.NewSelect().Model(&p).Where("id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return &p, nil
}

// UserContext resolves the profile of the authenticated user through an
// injected cache.
type UserContext struct {
	Profiles ProfileStore
	Cache    ProfileCache
	Logger   *logger.Logger
}

func NewUserContext(profiles ProfileStore, cache ProfileCache, log *logger.Logger) *UserContext {
	return &UserContext{Profiles: profiles, Cache: cache, Logger: log}
}

func (u *UserContext) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, models.ErrNotAuthenticated
	}
	if p, ok := u.Cache.Get(ctx, userID); ok {
		return p, nil
	}
	p, err := u.Profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Cache.Set(ctx, p)
	return p, nil
}

// InvalidateProfile drops the cached profile, e.g. after a role change or
// sign-out.
func (u *UserContext) InvalidateProfile(ctx context.Context, userID string) {
	u.Cache.Invalidate(ctx, userID)
}

// RequireRole lets the request through only when the caller's profile has
// one of roles.
func (u *UserContext) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserID(r.Context())
			if userID == "" {
				utils.WriteError(w, "Authentication required", models.ErrNotAuthenticated)
				return
			}
			p, err := u.Profile(r.Context(), userID)
			if errors.Is(err, models.ErrProfileNotFound) {
				err = models.ErrForbidden
			}
			if err != nil {
				utils.WriteError(w, "Could not resolve profile", err)
				return
			}
			if !p.HasRole(roles...) {
				if u.Logger != nil {
					u.Logger.LogSecurity("role_denied", fmt.Sprintf("user %s (%s) on %s %s", userID, p.Role, r.Method, r.URL.Path))
				}
				utils.WriteError(w, "Insufficient role", models.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Me returns the caller's profile.
func (u *UserContext) Me(w http.ResponseWriter, r *http.Request) {
	p, err := u.Profile(r.Context(), UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, "Could not load profile", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, p)
}

// SignOut forgets the cached profile. Tokens themselves are revoked by the
// identity provider.
func (u *UserContext) SignOut(w http.ResponseWriter, r *http.Request) {
	if userID := UserID(r.Context()); userID != "" {
		u.InvalidateProfile(r.Context(), userID)
	}
	w.WriteHeader(http.StatusNoContent)
}
