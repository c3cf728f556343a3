package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/orgbase/orgbase/pkg/audit"
	"github.com/orgbase/orgbase/pkg/auth"
)

const uniqueViolation = "23505"

// Service is the account directory and user lifecycle interface.
type Service interface {
	UserByID(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	AdminByID(ctx context.Context, id string) (*Admin, error)
	AdminByEmail(ctx context.Context, email string) (*Admin, error)

	CreateUser(ctx context.Context, name, email string) (*User, error)
	UpdateUser(ctx context.Context, actor auth.Actor, id string, req UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, actor auth.Actor, id string) error
}

// PostgresService implements Service against PostgreSQL.
type PostgresService struct {
	db       *sql.DB
	recorder *audit.Recorder
}

// NewPostgresService creates a PostgresService.
func NewPostgresService(db *sql.DB, recorder *audit.Recorder) *PostgresService {
	return &PostgresService{db: db, recorder: recorder}
}

// UserByID retrieves a user by ID.
func (s *PostgresService) UserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, profile_picture, created_at, updated_at
		FROM users WHERE id = $1
	`, id))
}

// UserByEmail retrieves a user by email.
func (s *PostgresService) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, profile_picture, created_at, updated_at
		FROM users WHERE email = $1
	`, email))
}

func (s *PostgresService) scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.ProfilePicture, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// AdminByID retrieves an admin by ID.
func (s *PostgresService) AdminByID(ctx context.Context, id string) (*Admin, error) {
	return s.scanAdmin(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM admins WHERE id = $1
	`, id))
}

// AdminByEmail retrieves an admin by email.
func (s *PostgresService) AdminByEmail(ctx context.Context, email string) (*Admin, error) {
	return s.scanAdmin(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM admins WHERE email = $1
	`, email))
}

func (s *PostgresService) scanAdmin(row *sql.Row) (*Admin, error) {
	admin := &Admin{}
	err := row.Scan(&admin.ID, &admin.Name, &admin.Email, &admin.CreatedAt, &admin.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return admin, nil
}

// CreateUser creates a user account with its CREATE log entry in one
// transaction. A duplicate email surfaces as ErrCreationFailed.
func (s *PostgresService) CreateUser(ctx context.Context, name, email string) (*User, error) {
	if err := ValidateFullName(name); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	user := &User{ID: uuid.NewString(), Name: name, Email: email}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, user.ID, user.Name, user.Email).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrCreationFailed
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.recorder.RecordCreate(ctx, tx, user.Record()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user creation: %w", err)
	}
	return user, nil
}

// UpdateUser applies a partial profile update. Only the account itself or an
// admin may update; each changed whitelisted field gets one UPDATE log entry,
// committed with the mutation.
func (s *PostgresService) UpdateUser(ctx context.Context, actor auth.Actor, id string, req UpdateUserRequest) (*User, error) {
	if !actor.IsAdmin() && actor.ID != id {
		return nil, auth.ErrPermissionDenied
	}
	if req.Name != nil {
		if err := ValidateFullName(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Email != nil {
		if err := ValidateEmail(*req.Email); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	before := &User{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, email, profile_picture, created_at, updated_at
		FROM users WHERE id = $1
		FOR UPDATE
	`, id).Scan(&before.ID, &before.Name, &before.Email, &before.ProfilePicture, &before.CreatedAt, &before.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	after := *before
	if req.Name != nil {
		after.Name = *req.Name
	}
	if req.Email != nil {
		after.Email = *req.Email
	}
	if req.ProfilePicture != nil {
		if !actor.IsAdmin() {
			// Profile pictures go through the moderated upload path.
			return nil, auth.ErrPermissionDenied
		}
		after.ProfilePicture = *req.ProfilePicture
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE users SET name = $1, email = $2, profile_picture = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`, after.Name, after.Email, after.ProfilePicture, id).Scan(&after.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrCreationFailed
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := s.recorder.RecordUpdate(ctx, tx, before.Record(), before.Snapshot(), after.Snapshot(), UserLogFields); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user update: %w", err)
	}
	return &after, nil
}

// DeleteUser removes an account. Only the account itself or an admin may
// delete; the DELETE log entry commits with the removal.
func (s *PostgresService) DeleteUser(ctx context.Context, actor auth.Actor, id string) error {
	if !actor.IsAdmin() && actor.ID != id {
		return auth.ErrPermissionDenied
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := s.recorder.RecordDelete(ctx, tx, "user:"+id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user deletion: %w", err)
	}
	return nil
}
