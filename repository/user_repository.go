package repository

import (
	"database/sql"
	"loan-desk-api/model"
)

// IUserRepository defines the read contract for user records. Users are
// owned by an external user-management service; this API never writes them.
type IUserRepository interface {
	GetUserByUsername(username string) (*model.User, error)
	GetUserByID(id int) (*model.User, error)
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) GetUserByUsername(username string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, username, role, tenant_id, password_hash, active, created_at FROM users WHERE username=$1`
	err := r.DB.QueryRow(query, username).Scan(
		&user.ID, &user.Username, &user.Role, &user.TenantID,
		&user.PasswordHash, &user.Active, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetUserByID(id int) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, username, role, tenant_id, password_hash, active, created_at FROM users WHERE id=$1`
	err := r.DB.QueryRow(query, id).Scan(
		&user.ID, &user.Username, &user.Role, &user.TenantID,
		&user.PasswordHash, &user.Active, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
