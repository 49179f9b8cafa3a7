package service

import (
	"context"
	"fmt"

	"caja/backend/internal/domain"
	"caja/backend/internal/xid"
)

func (s *Service) RecordOutflow(ctx context.Context, req domain.OutflowRequest) (domain.OutflowResponse, error) {
	reason, err := requireText("reason", req.Reason)
	if err != nil {
		return domain.OutflowResponse{}, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return domain.OutflowResponse{}, err
	}

	recordedBy := unknownSeller
	if actor, ok := ActorFromContext(ctx); ok && actor.UserID != "" {
		recordedBy = actor.UserID
	}
	now := s.clock.Now().UTC()

	created, err := s.repo.CreateOutflow(ctx, domain.Outflow{
		ID:         xid.New("out"),
		Reason:     reason,
		Amount:     amount,
		CreatedAt:  &now,
		RecordedBy: recordedBy,
	})
	if err != nil {
		return domain.OutflowResponse{}, err
	}

	s.logAudit(ctx, "outflow_record", "outflow", created.ID, fmt.Sprintf("amount=%d", created.Amount))
	return domain.OutflowResponse{
		Outflow: *created,
		Ledger:  s.todayLedgerAfterWrite(ctx),
	}, nil
}
