package user

import "context"

type Repository interface {
	FindByExternalID(ctx context.Context, externalID string) (*User, error)
}
