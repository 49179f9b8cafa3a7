package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"caja/backend/internal/domain"
	"caja/backend/internal/store"
)

const unknownSeller = "desconocido"

// RegisterSale hands the decrement and the insert to the store as one atomic
// unit. A rejected sale leaves stock untouched.
func (s *Service) RegisterSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResponse, error) {
	itemID, err := requireText("item_id", req.ItemID)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	qty, err := parseQuantity(req.Quantity, 1)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	// The register takes whole pesos typed like a cash amount, as outflows do.
	pesos, err := parseAmount("unit_price", req.UnitPrice)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	unitPrice := decimal.NewFromInt(pesos)

	seller := unknownSeller
	if actor, ok := ActorFromContext(ctx); ok && actor.UserID != "" {
		seller = actor.UserID
	}

	sale, err := s.repo.RegisterSale(ctx, domain.SaleDraft{
		ItemID:    itemID,
		Quantity:  qty,
		UnitPrice: unitPrice,
		SellerID:  seller,
		Note:      strings.TrimSpace(req.Note),
		At:        s.clock.Now().UTC(),
	})
	if err != nil {
		if !errors.Is(err, store.ErrInsufficientStock) && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrInvalidTransaction) {
			log.Printf("[service] WARN: sale failed item=%s qty=%d: %v", itemID, qty, err)
		}
		return domain.SaleResponse{}, err
	}

	s.logAudit(ctx, "sale_register", "sale", sale.ID, fmt.Sprintf("item=%s,qty=%d,total=%s", sale.ItemID, sale.Quantity, sale.Total))
	return domain.SaleResponse{
		Sale:   *sale,
		Ledger: s.todayLedgerAfterWrite(ctx),
	}, nil
}

// todayLedgerAfterWrite rereads today's ledger once a write has committed.
// A failed read must not turn a committed write into an error.
func (s *Service) todayLedgerAfterWrite(ctx context.Context) domain.DailyLedger {
	ledger, err := s.ledgerFor(ctx, s.clock.Today())
	if err != nil {
		log.Printf("[service] WARN: failed to reload daily ledger: %v", err)
	}
	return ledger
}
