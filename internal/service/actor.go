package service

import (
	"context"
	"errors"

	"cashregister/internal/model"
	"cashregister/internal/repository"

	"github.com/google/uuid"
)

// ActorVerifier re-checks, server side, that the identity carried by a token
// still maps to an active user before any mutation is accepted.
type ActorVerifier interface {
	Verify(ctx context.Context, actor uuid.UUID) (*model.User, error)
}

type actorVerifier struct {
	users repository.UserRepository
}

func NewActorVerifier(users repository.UserRepository) ActorVerifier {
	return &actorVerifier{users: users}
}

func (v *actorVerifier) Verify(ctx context.Context, actor uuid.UUID) (*model.User, error) {
	if actor == uuid.Nil {
		return nil, newError(KindForbidden, "actor identity is missing")
	}
	u, err := v.users.FindByID(ctx, actor)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindForbidden, "actor %s is not a known user", actor)
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, newError(KindForbidden, "actor %s is inactive", actor)
	}
	return u, nil
}
