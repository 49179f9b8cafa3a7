package service

import (
	"context"
	"fmt"
	"strings"

	"caja/backend/internal/domain"
)

func (s *Service) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.repo.ListItems(ctx)
}

func (s *Service) CreateItem(ctx context.Context, req domain.InventoryItemRequest) (domain.InventoryItem, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.InventoryItem{}, err
	}

	item, err := s.itemFromRequest(req, 1)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	item.CreatedAt = s.clock.Now().UTC()

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logAudit(ctx, "inventory_create", "inventory_item", created.ID, fmt.Sprintf("name=%s,qty=%d,price=%s", created.Name, created.Quantity, created.Price))
	return *created, nil
}

func (s *Service) UpdateItem(ctx context.Context, id string, req domain.InventoryItemRequest) (domain.InventoryItem, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.InventoryItem{}, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.InventoryItem{}, invalid("id", "producto inválido")
	}
	item, err := s.itemFromRequest(req, 0)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	item.ID = id

	updated, err := s.repo.UpdateItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logAudit(ctx, "inventory_update", "inventory_item", updated.ID, fmt.Sprintf("name=%s,qty=%d,price=%s", updated.Name, updated.Quantity, updated.Price))
	return *updated, nil
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return invalid("id", "producto inválido")
	}
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "inventory_delete", "inventory_item", id, "")
	return nil
}

func (s *Service) itemFromRequest(req domain.InventoryItemRequest, minQty int) (domain.InventoryItem, error) {
	name, err := requireText("name", req.Name)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	category, ok := domain.ParseCategory(req.Category)
	if !ok {
		return domain.InventoryItem{}, invalid("category", "la categoría debe ser Mercancia o Compra")
	}
	qty, err := parseQuantity(req.Quantity, minQty)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	price, err := parsePrice("price", req.Price)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	return domain.InventoryItem{
		Name:     name,
		Category: category,
		Quantity: qty,
		Price:    price,
	}, nil
}
