package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/uniport/uap-leave-api/internal/models"
)

const userColumns = `id, email, full_name, role, department, active, created_at, updated_at`

// UserRepository reads the user directory. Leave operations never write users;
// account management belongs to the identity service.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByRoleAndDepartment returns active users matching a role/department
// pair, used for bulk balance initialization and reset.
func (r *UserRepository) ListByRoleAndDepartment(ctx context.Context, role models.UserRole, department string) ([]models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE role = $1 AND department = $2 AND active = TRUE ORDER BY full_name", userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, role, department); err != nil {
		return nil, fmt.Errorf("list users by role and department: %w", err)
	}
	return users, nil
}
