package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"caja/backend/internal/domain"
	"caja/backend/internal/store"
)

// openIntegrationStore connects to CAJA_TEST_DATABASE_URL when set, or starts
// a throwaway postgres container when CAJA_TEST_CONTAINERS=1.
func openIntegrationStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	databaseURL := os.Getenv("CAJA_TEST_DATABASE_URL")
	if databaseURL == "" {
		if os.Getenv("CAJA_TEST_CONTAINERS") != "1" {
			t.Skip("set CAJA_TEST_DATABASE_URL or CAJA_TEST_CONTAINERS=1 to run postgres integration tests")
		}
		databaseURL = startPostgresContainer(t)
	}

	s, err := New(ctx, databaseURL, Options{SaleMaxRetries: 10, RetryBackoff: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func startPostgresContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "caja",
			"POSTGRES_PASSWORD": "caja",
			"POSTGRES_DB":       "caja",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://caja:caja@%s:%s/caja?sslmode=disable", host, port.Port())
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	s := openIntegrationStore(t)
	ctx := context.Background()

	item, err := s.CreateItem(ctx, domain.InventoryItem{
		ID:       fmt.Sprintf("item-it-%d", time.Now().UnixNano()),
		Name:     "Gaseosa 400ml",
		Category: domain.CategoryMerchandise,
		Quantity: 5,
		Price:    decimal.NewFromInt(2500),
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE item_id = $1`, item.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, item.ID)
	})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
		rejected  int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RegisterSale(ctx, domain.SaleDraft{
				ItemID:    item.ID,
				Quantity:  1,
				UnitPrice: decimal.NewFromInt(2500),
				SellerID:  "uid-it",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				committed++
			case errors.Is(err, store.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected sale error: %v", err)
			}
		}()
	}
	wg.Wait()

	if committed != 5 || rejected != 7 {
		t.Fatalf("expected 5 committed and 7 rejected, got %d and %d", committed, rejected)
	}

	reloaded, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if reloaded.Quantity != 0 {
		t.Fatalf("expected stock 0, got %d", reloaded.Quantity)
	}

	var saleCount int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sales WHERE item_id = $1`, item.ID).Scan(&saleCount); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if saleCount != committed {
		t.Fatalf("expected %d sale rows, got %d", committed, saleCount)
	}
}

func TestInventoryPriceRoundTripsExactly(t *testing.T) {
	s := openIntegrationStore(t)
	ctx := context.Background()

	id := fmt.Sprintf("item-rt-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	})

	if _, err := s.CreateItem(ctx, domain.InventoryItem{
		ID:       id,
		Name:     "Queso campesino",
		Category: domain.CategoryMerchandise,
		Quantity: 10,
		Price:    decimal.RequireFromString("1500.50"),
	}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	item, err := s.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Quantity != 10 {
		t.Fatalf("expected quantity 10, got %d", item.Quantity)
	}
	if !item.Price.Equal(decimal.RequireFromString("1500.5")) {
		t.Fatalf("expected price 1500.5, got %s", item.Price)
	}
}

func TestSubCentSalePriceIsRejectedByCheck(t *testing.T) {
	s := openIntegrationStore(t)
	ctx := context.Background()

	id := fmt.Sprintf("sale-chk-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	})

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, item_id, product_name, unit_price, quantity, total, created_at, seller_id)
		VALUES ($1, 'item-x', 'X', 0.001, 1, 0.001, now(), 'uid-x')
	`, id)
	if err == nil {
		t.Fatalf("expected unit_price 0.001 to be rejected once rounded to 0.00")
	}
}

func TestDuplicateDocumentIsRejectedByIndex(t *testing.T) {
	s := openIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	doc := fmt.Sprintf("%d", stamp)
	first := fmt.Sprintf("uid-a-%d", stamp)
	second := fmt.Sprintf("uid-b-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE id IN ($1, $2)`, first, second)
	})

	if _, err := s.CreateProfile(ctx, domain.UserProfile{ID: first, Name: "Ana", Surname: "Diaz", DocumentID: doc, Role: domain.RoleSalesperson, Email: "ana@example.com"}); err != nil {
		t.Fatalf("create first profile: %v", err)
	}
	_, err := s.CreateProfile(ctx, domain.UserProfile{ID: second, Name: "Eva", Surname: "Diaz", DocumentID: doc, Role: domain.RoleSalesperson, Email: "eva@example.com"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
