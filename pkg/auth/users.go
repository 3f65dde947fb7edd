package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/models"
)

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = errors.New("email already registered")

// ErrInvalidCredentials 邮箱或密码错误
var ErrInvalidCredentials = errors.New("invalid email or password")

const usersTable = "users"

// Users 用户表访问
type Users struct {
	db database.DatabaseInterface
}

// NewUsers 创建用户存储
func NewUsers(db database.DatabaseInterface) *Users {
	return &Users{db: db}
}

// EnsureUser creates a minimal anonymous row when userID has none yet, so
// rows referencing users(id) can be written.
func (u *Users) EnsureUser(ctx context.Context, userID string) error {
	err := u.db.FindOne(ctx, database.Query{
		Table:   usersTable,
		Filters: []database.Filter{database.Eq("id", userID)},
	}, nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNoRows) {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	now := time.Now().UTC()
	err = u.db.Upsert(ctx, usersTable, database.Record{
		"id":           userID,
		"is_anonymous": true,
		"created_at":   now,
		"updated_at":   now,
	}, []string{"id"}, nil)
	if err != nil {
		return fmt.Errorf("failed to create user record: %w", err)
	}
	return nil
}

// GetByEmail 根据邮箱获取用户
func (u *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := u.db.FindOne(ctx, database.Query{
		Table:   usersTable,
		Filters: []database.Filter{database.Eq("email", normalizeEmail(email))},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID 根据ID获取用户
func (u *Users) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := u.db.FindOne(ctx, database.Query{
		Table:   usersTable,
		Filters: []database.Filter{database.Eq("id", id)},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Register creates a registered user. When anonymousID names an existing
// anonymous row it is upgraded in place so the user's history carries over.
func (u *Users) Register(ctx context.Context, email, password, anonymousID string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := u.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, database.ErrNoRows) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	fields := database.Record{
		"email":         email,
		"password_hash": hash,
		"is_anonymous":  false,
		"updated_at":    now,
	}

	var user models.User
	if anonymousID != "" {
		existing, err := u.GetByID(ctx, anonymousID)
		if err == nil && existing.IsAnonymous {
			if err := u.db.Update(ctx, usersTable, anonymousID, fields, &user); err != nil {
				return nil, fmt.Errorf("failed to upgrade anonymous user: %w", err)
			}
			return &user, nil
		}
	}

	fields["created_at"] = now
	if err := u.db.Insert(ctx, usersTable, fields, &user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// Authenticate 校验邮箱与密码
func (u *Users) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := u.GetByEmail(ctx, email)
	if errors.Is(err, database.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.Password == "" || !CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
