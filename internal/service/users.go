package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"caja/backend/internal/domain"
	"caja/backend/internal/store"
)

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserProfile, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListProfiles(ctx)
}

// CreateUser issues the credential first and then writes the profile keyed
// by the credential's uid. A taken document id stops it before either write.
func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserProfile, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.UserProfile{}, err
	}

	fields, err := validateProfileFields(req.Name, req.Surname, req.DocumentID, req.Role)
	if err != nil {
		return domain.UserProfile{}, err
	}
	email, err := requireText("email", req.Email)
	if err != nil {
		return domain.UserProfile{}, err
	}
	email = strings.ToLower(email)
	if !strings.Contains(email, "@") {
		return domain.UserProfile{}, invalid("email", "correo electrónico inválido")
	}
	if len(req.Password) < 6 {
		return domain.UserProfile{}, invalid("password", "la contraseña debe tener al menos 6 caracteres")
	}

	if err := s.ensureDocumentFree(ctx, fields.documentID, ""); err != nil {
		return domain.UserProfile{}, err
	}

	uid, err := s.identity.CreateCredential(ctx, email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.UserProfile{}, &UniquenessConflictError{Field: "email", Value: email}
		}
		return domain.UserProfile{}, err
	}

	created, err := s.repo.CreateProfile(ctx, domain.UserProfile{
		ID:         uid,
		Name:       fields.name,
		Surname:    fields.surname,
		DocumentID: fields.documentID,
		Role:       fields.role,
		Email:      email,
		CreatedAt:  s.clock.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.UserProfile{}, &UniquenessConflictError{Field: "document_id", Value: fields.documentID}
		}
		log.Printf("[service] WARN: credential %s created without profile: %v", uid, err)
		return domain.UserProfile{}, err
	}

	s.logAudit(ctx, "user_create", "user", created.ID, fmt.Sprintf("role=%s,document=%s", created.Role, created.DocumentID))
	return *created, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, req domain.UserUpdateRequest) (domain.UserProfile, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.UserProfile{}, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.UserProfile{}, invalid("id", "usuario inválido")
	}
	fields, err := validateProfileFields(req.Name, req.Surname, req.DocumentID, req.Role)
	if err != nil {
		return domain.UserProfile{}, err
	}

	existing, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if existing.DocumentID != fields.documentID {
		if err := s.ensureDocumentFree(ctx, fields.documentID, id); err != nil {
			return domain.UserProfile{}, err
		}
	}

	updated, err := s.repo.UpdateProfile(ctx, domain.UserProfile{
		ID:         id,
		Name:       fields.name,
		Surname:    fields.surname,
		DocumentID: fields.documentID,
		Role:       fields.role,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.UserProfile{}, &UniquenessConflictError{Field: "document_id", Value: fields.documentID}
		}
		return domain.UserProfile{}, err
	}

	s.logAudit(ctx, "user_update", "user", updated.ID, fmt.Sprintf("role=%s,document=%s", updated.Role, updated.DocumentID))
	return *updated, nil
}

// DeleteUser removes the profile only. The credential survives, and the
// session gate rejects it on the next login or request.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return invalid("id", "usuario inválido")
	}
	if err := s.repo.DeleteProfile(ctx, id); err != nil {
		return err
	}
	log.Printf("[service] WARN: profile %s deleted; credential left intact", id)

	s.logAudit(ctx, "user_delete", "user", id, "")
	return nil
}

func (s *Service) ensureDocumentFree(ctx context.Context, documentID string, selfID string) error {
	found, err := s.repo.FindProfileByDocument(ctx, documentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if found.ID == selfID {
		return nil
	}
	return &UniquenessConflictError{Field: "document_id", Value: documentID}
}
