package session

import (
	"context"
	"errors"
	"log"
	"time"

	"caja/backend/internal/domain"
	"caja/backend/internal/store"
	"caja/backend/internal/xid"
)

var (
	ErrProfileMissing = errors.New("user profile not found")
	ErrUnknownRole    = errors.New("unknown role")
	ErrSessionEnded   = errors.New("session ended")
)

const (
	StateAdmin           = "admin-view"
	StateSalesperson     = "salesperson-view"
	StateUnauthenticated = "unauthenticated"
)

// Session binds an authenticated user to the role observed when it was
// created. InitialRole never changes for the life of the session.
type Session struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	InitialRole domain.Role `json:"initial_role"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

func (s Session) View() domain.View {
	return domain.DashboardFor(s.InitialRole)
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Store interface {
	Save(ctx context.Context, sess Session) error
	Get(ctx context.Context, id string) (*Session, bool, error)
	Delete(ctx context.Context, id string) error
}

type ProfileReader interface {
	GetProfile(ctx context.Context, id string) (*domain.UserProfile, error)
}

// Resolution is what a request sees after its session was checked. Profile
// mirrors the current stored profile and is for display only.
type Resolution struct {
	Session Session
	Profile domain.UserProfile
}

func (r Resolution) State() string {
	switch r.Session.InitialRole {
	case domain.RoleAdministrator:
		return StateAdmin
	case domain.RoleSalesperson:
		return StateSalesperson
	default:
		return StateUnauthenticated
	}
}

func (r Resolution) View() domain.SessionView {
	profile := r.Profile
	return domain.SessionView{
		ID:          r.Session.ID,
		UserID:      r.Session.UserID,
		InitialRole: r.Session.InitialRole,
		State:       r.State(),
		View:        r.Session.View(),
		Profile:     &profile,
	}
}

type Gate struct {
	profiles ProfileReader
	store    Store
	ttl      time.Duration
	now      func() time.Time
}

func NewGate(profiles ProfileReader, sessions Store, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Gate{
		profiles: profiles,
		store:    sessions,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// Establish opens a session for an authenticated user. The profile role read
// here becomes the session's routing role.
func (g *Gate) Establish(ctx context.Context, userID string) (*Resolution, error) {
	profile, err := g.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProfileMissing
		}
		return nil, err
	}
	if !profile.Role.Valid() {
		return nil, ErrUnknownRole
	}

	now := g.now()
	sess := Session{
		ID:          xid.New("sess"),
		UserID:      userID,
		InitialRole: profile.Role,
		CreatedAt:   now,
		ExpiresAt:   now.Add(g.ttl),
	}
	if err := g.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return &Resolution{Session: sess, Profile: *profile}, nil
}

// Resolve loads the session and re-reads the profile. A profile that vanished
// ends the session.
func (g *Gate) Resolve(ctx context.Context, sessionID string) (*Resolution, error) {
	if sessionID == "" {
		return nil, ErrSessionEnded
	}
	sess, ok, err := g.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok || sess.Expired(g.now()) {
		return nil, ErrSessionEnded
	}

	profile, err := g.profiles.GetProfile(ctx, sess.UserID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if delErr := g.store.Delete(ctx, sessionID); delErr != nil {
			log.Printf("[session] WARN: failed to drop session %s: %v", sessionID, delErr)
		}
		return nil, ErrProfileMissing
	}

	return &Resolution{Session: *sess, Profile: *profile}, nil
}

func (g *Gate) End(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return g.store.Delete(ctx, sessionID)
}

// IsFatal reports whether err must drop the client back to the login view.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProfileMissing) || errors.Is(err, ErrUnknownRole) || errors.Is(err, ErrSessionEnded)
}
