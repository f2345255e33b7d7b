package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/journal-exchange/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const userColumns = `id, federated_id, username, email, first_name, last_name, profile_picture_url,
	has_verified_email, is_shadow, home_instance, created_at`

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) GetByFederatedID(ctx context.Context, federatedID string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE federated_id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, federatedID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by federated id: %w", err)
	}

	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (` + userColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  RETURNING ` + userColumns

	saved, err := scanUser(r.db.QueryRowContext(ctx, query,
		user.ID, user.FederatedID, user.Username, user.Email, user.FirstName, user.LastName,
		user.ProfilePictureURL, user.HasVerifiedEmail, user.IsShadow, user.HomeInstance, user.CreatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("user %s: %w", user.FederatedID, model.ErrConflict)
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return saved, nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.FederatedID, &user.Username, &user.Email, &user.FirstName, &user.LastName,
		&user.ProfilePictureURL, &user.HasVerifiedEmail, &user.IsShadow, &user.HomeInstance, &user.CreatedAt,
	)
	return user, err
}
