package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/atlasops/backoffice/internal/models"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, public_id, email, password_hash, name, role, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.PublicID, &user.Email, &user.PasswordHash,
		&user.Name, &user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserStore) CreateUser(ctx context.Context, email, passwordHash, name, role string) (*models.User, error) {
	user := &models.User{
		PublicID:     uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (public_id, email, password_hash, name, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, is_active, created_at, updated_at`,
		user.PublicID, user.Email, user.PasswordHash, user.Name, user.Role,
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *UserStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *UserStore) GetUserByPublicID(ctx context.Context, publicID uuid.UUID) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE public_id = $1`, publicID))
}

func (s *UserStore) CountUsers(ctx context.Context, monthStart time.Time) (models.UserCounts, error) {
	var counts models.UserCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_active),
		        COUNT(*) FILTER (WHERE role = 'admin'),
		        COUNT(*) FILTER (WHERE created_at >= $1)
		 FROM users`,
		monthStart,
	).Scan(&counts.Total, &counts.Active, &counts.Admins, &counts.ThisMonth)
	return counts, err
}
