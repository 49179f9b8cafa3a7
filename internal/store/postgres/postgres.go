package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"caja/backend/internal/domain"
	"caja/backend/internal/store"
	"caja/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SaleMaxRetries bounds how often RegisterSale re-runs after a
	// serialization failure or deadlock.
	SaleMaxRetries int
	RetryBackoff   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns < 1 {
		o.MaxOpenConns = 30
	}
	if o.MaxIdleConns < 1 {
		o.MaxIdleConns = 8
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	if o.SaleMaxRetries < 0 {
		o.SaleMaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 25 * time.Millisecond
	}
	return o
}

type Store struct {
	db   *sql.DB
	opts Options
}

func New(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	opts = opts.withDefaults()
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, opts: opts}, nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB, opts Options) *Store {
	return &Store{db: db, opts: opts.withDefaults()}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateCredential(ctx context.Context, cred domain.Credential) error {
	cred.Email = strings.ToLower(strings.TrimSpace(cred.Email))
	if cred.Email == "" || cred.UID == "" || strings.TrimSpace(cred.PasswordHash) == "" {
		return store.ErrInvalidTransaction
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (uid, email, password_hash, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now())
	`, cred.UID, cred.Email, cred.PasswordHash, cred.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListCredentials(ctx context.Context) ([]domain.Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, email, password_hash, created_at
		FROM credentials
		ORDER BY email ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	creds := make([]domain.Credential, 0, 16)
	for rows.Next() {
		var cred domain.Credential
		if err := rows.Scan(&cred.UID, &cred.Email, &cred.PasswordHash, &cred.CreatedAt); err != nil {
			return nil, err
		}
		cred.CreatedAt = cred.CreatedAt.UTC()
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return creds, nil
}

func (s *Store) UpdateCredentialPassword(ctx context.Context, uid string, passwordHash string) error {
	if uid == "" || strings.TrimSpace(passwordHash) == "" {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE credentials
		SET password_hash = $2, updated_at = now()
		WHERE uid = $1
	`, uid, passwordHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const profileColumns = `id, name, surname, document_id, role, email, created_at`

func (s *Store) CreateProfile(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error) {
	if profile.ID == "" || !profile.Role.Valid() {
		return nil, store.ErrInvalidTransaction
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (id, name, surname, document_id, role, email, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, profile.ID, profile.Name, profile.Surname, profile.DocumentID, string(profile.Role), profile.Email, profile.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := profile
	return &created, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id = $1`, id)
	return scanProfile(row)
}

func (s *Store) FindProfileByDocument(ctx context.Context, documentID string) (*domain.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE document_id = $1 LIMIT 1`, documentID)
	return scanProfile(row)
}

// UpdateProfile merges the editable fields; email and created_at are left
// untouched.
func (s *Store) UpdateProfile(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE user_profiles
		SET name = $2, surname = $3, document_id = $4, role = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns,
		profile.ID, profile.Name, profile.Surname, profile.DocumentID, string(profile.Role))
	updated, err := scanProfile(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+`
		FROM user_profiles
		ORDER BY surname ASC, name ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]domain.UserProfile, 0, 16)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

const itemColumns = `id, name, category, quantity, price, created_at`

func (s *Store) CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Name == "" || item.Quantity < 0 || !item.Price.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, name, category, quantity, price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, item.ID, item.Name, string(item.Category), item.Quantity, item.Price, item.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id)
	return scanItem(row)
}

func (s *Store) UpdateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Name == "" || item.Quantity < 0 || !item.Price.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET name = $2, category = $3, quantity = $4, price = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.Name, string(item.Category), item.Quantity, item.Price)
	return scanItem(row)
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM inventory_items
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorID, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	var role string
	err := row.Scan(&profile.ID, &profile.Name, &profile.Surname, &profile.DocumentID, &role, &profile.Email, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	profile.Role = domain.Role(role)
	profile.CreatedAt = profile.CreatedAt.UTC()
	return &profile, nil
}

func scanItem(row rowScanner) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	var category string
	err := row.Scan(&item.ID, &item.Name, &category, &item.Quantity, &item.Price, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	item.Category = domain.Category(category)
	item.CreatedAt = item.CreatedAt.UTC()
	return &item, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil || val.IsZero() {
		return nil
	}
	return val.UTC()
}

func timePtr(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	at := val.Time.UTC()
	return &at
}
