package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"caja/backend/internal/config"
	"caja/backend/internal/domain"
	"caja/backend/internal/httpapi"
	"caja/backend/internal/report"
	"caja/backend/internal/service"
	"caja/backend/internal/session"
	"caja/backend/internal/store"
	"caja/backend/internal/store/memory"
	pgstore "caja/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, pgstore.Options{
			MaxOpenConns:    cfg.DatabaseMaxOpenConns,
			MaxIdleConns:    cfg.DatabaseMaxIdleConns,
			ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			SaleMaxRetries:  cfg.SaleMaxRetries,
		})
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			log.Fatalf("postgres migration failed: %v", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	var sessions session.Store = session.NewMemoryStore()
	if cfg.RedisAddr != "" {
		redisStore := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisStore.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), keeping sessions in memory", err)
			_ = redisStore.Close()
		} else {
			sessions = redisStore
			closers = append(closers, redisStore.Close)
			log.Println("sessions: redis")
		}
	} else {
		log.Println("sessions: in-memory")
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, repo)
	if err := bootstrapAdmin(ctx, repo, auth, bootstrapAccountFrom(cfg)); err != nil {
		log.Fatalf("bootstrap administrator failed: %v", err)
	}

	gate := session.NewGate(repo, sessions, cfg.SessionTTL)
	svc := service.New(repo, auth, report.NewClock(cfg.ReportLocation()))
	api := httpapi.New(svc, auth, gate, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("caja backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}
	if !strings.Contains(cfg.BootstrapAdminEmail, "@") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_EMAIL is not a valid email")
	}
	if len(cfg.BootstrapAdminPassword) < 6 {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be at least 6 characters")
	}
	if err := validatePasswordStrength(cfg.BootstrapAdminPassword); err != nil {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD is too weak: %w", err)
	}
	if cfg.BootstrapAdminName == "" || cfg.BootstrapAdminSurname == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_NAME and BOOTSTRAP_ADMIN_SURNAME must not be blank")
	}
	if !isDigits(cfg.BootstrapAdminDocument) {
		return fmt.Errorf("BOOTSTRAP_ADMIN_DOCUMENT must contain digits only")
	}
	return nil
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// validatePasswordStrength rejects well-known passwords, a single repeated
// character, and runs of consecutive characters such as "abcdef" or "654321".
func validatePasswordStrength(password string) error {
	known := map[string]bool{
		"123456": true, "1234567": true, "12345678": true, "password": true,
		"admin123": true, "administrador": true, "contraseña": true, "qwerty": true,
		"123123": true, "112233": true, "121212": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated-character password not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(password); i++ {
		diff := int(password[i]) - int(password[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential password not allowed")
	}

	return nil
}

type bootstrapAccount struct {
	Email      string
	Password   string
	Name       string
	Surname    string
	DocumentID string
}

func bootstrapAccountFrom(cfg config.Config) bootstrapAccount {
	return bootstrapAccount{
		Email:      cfg.BootstrapAdminEmail,
		Password:   cfg.BootstrapAdminPassword,
		Name:       cfg.BootstrapAdminName,
		Surname:    cfg.BootstrapAdminSurname,
		DocumentID: cfg.BootstrapAdminDocument,
	}
}

// bootstrapAdmin creates the first administrator when the repository has
// none. It is a no-op when no email is configured or an administrator exists.
func bootstrapAdmin(ctx context.Context, repo store.Repository, identity service.Identity, account bootstrapAccount) error {
	if account.Email == "" {
		return nil
	}
	profiles, err := repo.ListProfiles(ctx)
	if err != nil {
		return err
	}
	for _, profile := range profiles {
		if profile.Role == domain.RoleAdministrator {
			return nil
		}
	}

	if _, err := repo.FindProfileByDocument(ctx, account.DocumentID); err == nil {
		return fmt.Errorf("document %s already belongs to another profile", account.DocumentID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	uid, err := identity.CreateCredential(ctx, account.Email, account.Password)
	if errors.Is(err, store.ErrConflict) {
		log.Printf("[bootstrap] WARN: credential %s exists without an administrator profile; skipping", account.Email)
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := repo.CreateProfile(ctx, domain.UserProfile{
		ID:         uid,
		Name:       account.Name,
		Surname:    account.Surname,
		DocumentID: account.DocumentID,
		Role:       domain.RoleAdministrator,
		Email:      account.Email,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return err
	}
	log.Printf("[bootstrap] administrator %s created", account.Email)
	return nil
}
