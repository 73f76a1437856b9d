package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

type ClientUseCase struct {
	clients ports.ClientRepository
}

func NewClientUseCase(clients ports.ClientRepository) *ClientUseCase {
	return &ClientUseCase{clients: clients}
}

func (uc *ClientUseCase) Create(ctx context.Context, in domain.ClientInput) (*domain.Client, error) {
	normalized, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	client, err := uc.clients.Create(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

func (uc *ClientUseCase) Get(ctx context.Context, id int64) (*domain.Client, error) {
	client, err := uc.clients.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

func (uc *ClientUseCase) List(ctx context.Context, activeOnly bool) ([]domain.Client, error) {
	clients, err := uc.clients.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

func (uc *ClientUseCase) Update(ctx context.Context, id int64, in domain.ClientInput) (*domain.Client, error) {
	normalized, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	client, err := uc.clients.Update(ctx, id, normalized)
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return client, nil
}

// Deactivate is the soft delete: the client and its records stay in place.
func (uc *ClientUseCase) Deactivate(ctx context.Context, id int64) error {
	if err := uc.clients.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivate client: %w", err)
	}
	return nil
}
