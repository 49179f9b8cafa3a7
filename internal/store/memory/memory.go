package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"caja/backend/internal/domain"
	"caja/backend/internal/store"
	"caja/backend/internal/xid"
)

const (
	SeedAdminID      = "uid-admin"
	SeedAdminEmail   = "admin@caja.local"
	SeedSalesID      = "uid-vendedor"
	SeedSalesEmail   = "vendedor@caja.local"
	SeedItemRiceID   = "item-arroz"
	SeedItemCoffeeID = "item-cafe"
	SeedItemBagsID   = "item-bolsas"
	defaultAdminPwd  = "admin123"
	defaultSalesPwd  = "vendedor123"
)

type Store struct {
	mu          sync.RWMutex
	credentials map[string]domain.Credential
	profiles    map[string]domain.UserProfile
	items       map[string]domain.InventoryItem
	sales       []domain.Sale
	outflows    []domain.Outflow
	auditLogs   []domain.AuditLog
}

func New() *Store {
	return &Store{
		credentials: make(map[string]domain.Credential),
		profiles:    make(map[string]domain.UserProfile),
		items:       make(map[string]domain.InventoryItem),
		sales:       make([]domain.Sale, 0, 64),
		outflows:    make([]domain.Outflow, 0, 32),
		auditLogs:   make([]domain.AuditLog, 0, 128),
	}
}

// seedAccounts builds the dev/demo administrator and salesperson. Passwords
// come from SEED_ADMIN_PASSWORD and SEED_SALES_PASSWORD; when unset the dev
// defaults are used and a warning is printed. The postgres store never seeds.
func seedAccounts(now time.Time) ([]domain.Credential, []domain.UserProfile) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", defaultAdminPwd)
	salesPwd := envOr("SEED_SALES_PASSWORD", defaultSalesPwd)
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SALES_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SALES_PASSWORD to override.")
	}

	seeds := []struct {
		profile  domain.UserProfile
		password string
	}{
		{domain.UserProfile{ID: SeedAdminID, Name: "Laura", Surname: "Gomez", DocumentID: "1000000001", Role: domain.RoleAdministrator, Email: SeedAdminEmail}, adminPwd},
		{domain.UserProfile{ID: SeedSalesID, Name: "Carlos", Surname: "Rojas", DocumentID: "1000000002", Role: domain.RoleSalesperson, Email: SeedSalesEmail}, salesPwd},
	}

	creds := make([]domain.Credential, 0, len(seeds))
	profiles := make([]domain.UserProfile, 0, len(seeds))
	for _, seed := range seeds {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", seed.profile.Email, err)
		}
		creds = append(creds, domain.Credential{
			UID:          seed.profile.ID,
			Email:        seed.profile.Email,
			PasswordHash: string(hash),
			CreatedAt:    now,
		})
		seed.profile.CreatedAt = now
		profiles = append(profiles, seed.profile)
	}
	return creds, profiles
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	creds, profiles := seedAccounts(now)
	for _, cred := range creds {
		s.credentials[cred.Email] = cred
	}
	for _, profile := range profiles {
		s.profiles[profile.ID] = profile
	}

	for _, item := range []domain.InventoryItem{
		{ID: SeedItemRiceID, Name: "Arroz 1kg", Category: domain.CategoryMerchandise, Quantity: 40, Price: decimal.NewFromInt(4200)},
		{ID: SeedItemCoffeeID, Name: "Cafe 500g", Category: domain.CategoryMerchandise, Quantity: 25, Price: decimal.RequireFromString("15900.50")},
		{ID: SeedItemBagsID, Name: "Bolsas plasticas", Category: domain.CategoryPurchase, Quantity: 3, Price: decimal.NewFromInt(1000)},
	} {
		item.CreatedAt = now
		s.items[item.ID] = item
	}
	return s
}

func (s *Store) CreateCredential(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(cred.Email))
	if email == "" || cred.UID == "" || strings.TrimSpace(cred.PasswordHash) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.credentials[email]; exists {
		return store.ErrConflict
	}
	cred.Email = email
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	s.credentials[email] = cred
	return nil
}

func (s *Store) ListCredentials(_ context.Context) ([]domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds := make([]domain.Credential, 0, len(s.credentials))
	for _, cred := range s.credentials {
		creds = append(creds, cred)
	}
	slices.SortFunc(creds, func(a, b domain.Credential) int {
		return strings.Compare(a.Email, b.Email)
	})
	return creds, nil
}

func (s *Store) UpdateCredentialPassword(_ context.Context, uid string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uid == "" || strings.TrimSpace(passwordHash) == "" {
		return store.ErrInvalidTransaction
	}
	for email, cred := range s.credentials {
		if cred.UID != uid {
			continue
		}
		cred.PasswordHash = passwordHash
		s.credentials[email] = cred
		return nil
	}
	return store.ErrNotFound
}

func (s *Store) CreateProfile(_ context.Context, profile domain.UserProfile) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile.ID == "" || !profile.Role.Valid() {
		return nil, store.ErrInvalidTransaction
	}
	if _, exists := s.profiles[profile.ID]; exists {
		return nil, store.ErrConflict
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	s.profiles[profile.ID] = profile
	created := profile
	return &created, nil
}

func (s *Store) GetProfile(_ context.Context, id string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &profile, nil
}

// UpdateProfile replaces the editable fields only. Email and CreatedAt stay
// as stored.
func (s *Store) UpdateProfile(_ context.Context, profile domain.UserProfile) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.profiles[profile.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	existing.Name = profile.Name
	existing.Surname = profile.Surname
	existing.DocumentID = profile.DocumentID
	existing.Role = profile.Role
	s.profiles[profile.ID] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) DeleteProfile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.profiles, id)
	return nil
}

func (s *Store) ListProfiles(_ context.Context) ([]domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]domain.UserProfile, 0, len(s.profiles))
	for _, profile := range s.profiles {
		profiles = append(profiles, profile)
	}
	slices.SortFunc(profiles, compareProfiles)
	return profiles, nil
}

func (s *Store) FindProfileByDocument(_ context.Context, documentID string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, profile := range s.profiles {
		if profile.DocumentID == documentID {
			found := profile
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Name == "" || item.Quantity < 0 || !item.Price.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.items[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Name == "" || item.Quantity < 0 || !item.Price.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}
	existing, exists := s.items[item.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	existing.Name = item.Name
	existing.Category = item.Category
	existing.Quantity = item.Quantity
	existing.Price = item.Price
	s.items[item.ID] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) ListItems(_ context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return items, nil
}

// RegisterSale holds the write lock across the stock read, the check and both
// writes, so concurrent sellers serialize on it.
func (s *Store) RegisterSale(_ context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	if draft.ItemID == "" || draft.Quantity < 1 || !draft.UnitPrice.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[draft.ItemID]
	if !exists {
		return nil, store.ErrNotFound
	}
	newStock := item.Quantity - draft.Quantity
	if newStock < 0 {
		return nil, &store.InsufficientStockError{ItemID: item.ID, ItemName: item.Name, Remaining: item.Quantity}
	}

	at := draft.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	sale := domain.Sale{
		ID:          xid.New("sale"),
		ItemID:      item.ID,
		ProductName: item.Name,
		UnitPrice:   draft.UnitPrice,
		Quantity:    draft.Quantity,
		Total:       draft.UnitPrice.Mul(decimal.NewFromInt(int64(draft.Quantity))),
		CreatedAt:   &at,
		SellerID:    draft.SellerID,
		Note:        draft.Note,
	}

	item.Quantity = newStock
	s.items[item.ID] = item
	s.sales = append(s.sales, sale)

	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 32)
	for _, sale := range s.sales {
		if !inWindow(sale.CreatedAt, from, to) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		return compareTimes(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) CreateOutflow(_ context.Context, outflow domain.Outflow) (*domain.Outflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(outflow.Reason) == "" || outflow.Amount < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if outflow.ID == "" {
		outflow.ID = xid.New("out")
	}
	if outflow.CreatedAt == nil {
		now := time.Now().UTC()
		outflow.CreatedAt = &now
	}
	s.outflows = append(s.outflows, outflow)
	return cloneOutflow(outflow), nil
}

func (s *Store) ListOutflows(_ context.Context, from time.Time, to time.Time) ([]domain.Outflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Outflow, 0, 16)
	for _, outflow := range s.outflows {
		if !inWindow(outflow.CreatedAt, from, to) {
			continue
		}
		result = append(result, *cloneOutflow(outflow))
	}
	slices.SortFunc(result, func(a, b domain.Outflow) int {
		return compareTimes(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func inWindow(at *time.Time, from time.Time, to time.Time) bool {
	if at == nil || at.IsZero() {
		return false
	}
	return !at.Before(from) && at.Before(to)
}

func compareTimes(a *time.Time, b *time.Time, idA string, idB string) int {
	switch {
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	default:
		return strings.Compare(idA, idB)
	}
}

func compareProfiles(a, b domain.UserProfile) int {
	if c := strings.Compare(a.Surname, b.Surname); c != 0 {
		return c
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func cloneSale(src domain.Sale) *domain.Sale {
	dup := src
	if src.CreatedAt != nil {
		at := *src.CreatedAt
		dup.CreatedAt = &at
	}
	return &dup
}

func cloneOutflow(src domain.Outflow) *domain.Outflow {
	dup := src
	if src.CreatedAt != nil {
		at := *src.CreatedAt
		dup.CreatedAt = &at
	}
	return &dup
}
