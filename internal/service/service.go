package service

import (
	"context"
	"log"
	"time"

	"caja/backend/internal/domain"
	"caja/backend/internal/report"
	"caja/backend/internal/store"
	"caja/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Identity issues login credentials. Creating one must not disturb the
// caller's own session.
type Identity interface {
	CreateCredential(ctx context.Context, email string, password string) (string, error)
}

type Service struct {
	repo     store.Repository
	identity Identity
	clock    report.Clock
}

func New(repo store.Repository, identity Identity, clock report.Clock) *Service {
	if clock.Location == nil {
		clock.Location = report.DefaultLocation
	}
	if clock.Now == nil {
		clock.Now = time.Now
	}

	return &Service{
		repo:     repo,
		identity: identity,
		clock:    clock,
	}
}

func (s *Service) Clock() report.Clock {
	return s.clock
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdministrator {
		return domain.Actor{}, ErrAdminRequired
	}
	return actor, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{UserID: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		ActorID:    actor.UserID,
		ActorRole:  string(actor.Role),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.clock.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
