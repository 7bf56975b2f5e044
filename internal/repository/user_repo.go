package repository

import (
	"context"

	"cashregister/internal/infra"
	"cashregister/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// Upsert inserts the user or updates name, hash, role and active flag of
	// the existing user with the same username.
	Upsert(ctx context.Context, u *model.User) error
}

type userRepo struct {
	db    *gorm.DB
	guard *infra.Guard
}

func NewUserRepository(db *gorm.DB, guard *infra.Guard) UserRepository {
	return &userRepo{db: db, guard: guard}
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	err := r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *userRepo) Upsert(ctx context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return r.guard.Run(ctx, func() error {
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "password_hash", "role", "active", "updated_at"}),
		}).Create(u).Error
	})
}
