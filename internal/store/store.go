package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caja/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrConflict           = errors.New("conflict")
)

// InsufficientStockError reports the stock actually left when a sale would
// drive an item negative. It matches ErrInsufficientStock.
type InsufficientStockError struct {
	ItemID    string
	ItemName  string
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Stock insuficiente. Solo quedan %d unidades de %s", e.Remaining, e.ItemName)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// CredentialStore is the identity side of the repository.
type CredentialStore interface {
	CreateCredential(ctx context.Context, cred domain.Credential) error
	ListCredentials(ctx context.Context) ([]domain.Credential, error)
	UpdateCredentialPassword(ctx context.Context, uid string, passwordHash string) error
}

type ProfileStore interface {
	CreateProfile(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error)
	GetProfile(ctx context.Context, id string) (*domain.UserProfile, error)
	UpdateProfile(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error)
	DeleteProfile(ctx context.Context, id string) error
	ListProfiles(ctx context.Context) ([]domain.UserProfile, error)
	FindProfileByDocument(ctx context.Context, documentID string) (*domain.UserProfile, error)
}

type Repository interface {
	CredentialStore
	ProfileStore

	CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	GetItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	UpdateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context) ([]domain.InventoryItem, error)

	// RegisterSale decrements the item's quantity and inserts the sale as one
	// atomic unit. It fails with *InsufficientStockError and writes nothing
	// when the item holds less than draft.Quantity.
	RegisterSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	CreateOutflow(ctx context.Context, outflow domain.Outflow) (*domain.Outflow, error)
	ListOutflows(ctx context.Context, from time.Time, to time.Time) ([]domain.Outflow, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
