package postgres

import (
	"context"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/repository"
)

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	u := &domain.User{}
	query := `SELECT id, email, name, role FROM users WHERE id = $1`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}
