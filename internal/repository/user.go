package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Payphone-Digital/account-service/internal/model"
	ctxutil "github.com/Payphone-Digital/account-service/pkg/context"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("duplicate email")
)

// UserQuery selects users by equality on every non-nil field.
type UserQuery struct {
	ID                   *uint
	Email                *string
	EmailValidationToken *string
	PasswordResetCode    *string
}

// UserPatch lists the columns to change. Nil fields are left alone; the
// Clear flags null out the paired one-time code columns.
type UserPatch struct {
	FirstName    *string
	LastName     *string
	PhoneNumber  *string
	ProfileImage *string
	Password     *string
	LastActive   *time.Time

	EmailVerified         *bool
	EmailVerifiedAt       *time.Time
	EmailValidationToken  *string
	ClearVerificationCode bool

	PasswordResetCode          *string
	PasswordResetCodeExpiresAt *time.Time
	ClearPasswordReset         bool
}

// UserStore is the credential store used by the account services.
type UserStore interface {
	Find(ctx context.Context, q UserQuery) ([]model.User, error)
	FindOne(ctx context.Context, q UserQuery) (*model.User, error)
	FindByActiveResetCode(ctx context.Context, code string, now time.Time) (*model.User, error)
	UpdateOne(ctx context.Context, q UserQuery, patch UserPatch) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (q UserQuery) apply(tx *gorm.DB) *gorm.DB {
	if q.ID != nil {
		tx = tx.Where("id = ?", *q.ID)
	}
	if q.Email != nil {
		tx = tx.Where("email = ?", *q.Email)
	}
	if q.EmailValidationToken != nil {
		tx = tx.Where("email_validation_token = ?", *q.EmailValidationToken)
	}
	if q.PasswordResetCode != nil {
		tx = tx.Where("password_reset_code = ?", *q.PasswordResetCode)
	}
	return tx
}

func (q UserQuery) empty() bool {
	return q.ID == nil && q.Email == nil && q.EmailValidationToken == nil && q.PasswordResetCode == nil
}

func (p UserPatch) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.FirstName != nil {
		cols["first_name"] = *p.FirstName
	}
	if p.LastName != nil {
		cols["last_name"] = *p.LastName
	}
	if p.PhoneNumber != nil {
		cols["phone_number"] = *p.PhoneNumber
	}
	if p.ProfileImage != nil {
		cols["profile_image"] = *p.ProfileImage
	}
	if p.Password != nil {
		cols["password"] = *p.Password
	}
	if p.LastActive != nil {
		cols["last_active"] = *p.LastActive
	}
	if p.EmailVerified != nil {
		cols["email_verified"] = *p.EmailVerified
	}
	if p.EmailVerifiedAt != nil {
		cols["email_verified_at"] = *p.EmailVerifiedAt
	}
	if p.ClearVerificationCode {
		cols["email_validation_token"] = nil
	} else if p.EmailValidationToken != nil {
		cols["email_validation_token"] = *p.EmailValidationToken
	}
	if p.ClearPasswordReset {
		cols["password_reset_code"] = nil
		cols["password_reset_code_expires_at"] = nil
	} else {
		if p.PasswordResetCode != nil {
			cols["password_reset_code"] = *p.PasswordResetCode
		}
		if p.PasswordResetCodeExpiresAt != nil {
			cols["password_reset_code_expires_at"] = *p.PasswordResetCodeExpiresAt
		}
	}
	return cols
}

func (r *UserRepository) Find(ctx context.Context, q UserQuery) ([]model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "Find")

	if err := ctx.Err(); err != nil {
		logger.WarnWithContext(ctx, "Context cancelled before query").
			Err(err).
			Log()
		return nil, err
	}

	start := time.Now()
	var users []model.User
	err := q.apply(r.db.WithContext(ctx)).Order("id").Find(&users).Error
	duration := time.Since(start)

	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to find users").
			Duration(duration).
			Err(err).
			Log()
		return nil, err
	}

	logger.DebugWithContext(ctx, "Users retrieved successfully").
		Int("returned_count", len(users)).
		Duration(duration).
		Log()

	return users, nil
}

// FindOne returns ErrNotFound when no user matches.
func (r *UserRepository) FindOne(ctx context.Context, q UserQuery) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "FindOne")

	if err := ctx.Err(); err != nil {
		logger.WarnWithContext(ctx, "Context cancelled before query").
			Err(err).
			Log()
		return nil, err
	}

	start := time.Now()
	var user model.User
	err := q.apply(r.db.WithContext(ctx)).Order("id").First(&user).Error
	duration := time.Since(start)

	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.DebugWithContext(ctx, "User not found").
			Duration(duration).
			Log()
		return nil, ErrNotFound
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to get user").
			Duration(duration).
			Err(err).
			Log()
		return nil, err
	}

	logger.DebugWithContext(ctx, "User retrieved successfully").
		Uint("user_id", user.ID).
		Duration(duration).
		Log()

	return &user, nil
}

// FindByActiveResetCode matches a reset code whose expiry is still after now.
func (r *UserRepository) FindByActiveResetCode(ctx context.Context, code string, now time.Time) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "FindByActiveResetCode")

	if err := ctx.Err(); err != nil {
		logger.WarnWithContext(ctx, "Context cancelled before query").
			Err(err).
			Log()
		return nil, err
	}

	start := time.Now()
	var user model.User
	err := r.db.WithContext(ctx).
		Where("password_reset_code = ? AND password_reset_code_expires_at > ?", code, now).
		First(&user).Error
	duration := time.Since(start)

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to look up reset code").
			Duration(duration).
			Err(err).
			Log()
		return nil, err
	}

	return &user, nil
}

// UpdateOne applies patch to the first user matching q and returns the
// row as stored after the write.
func (r *UserRepository) UpdateOne(ctx context.Context, q UserQuery, patch UserPatch) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "UpdateOne")

	if q.empty() {
		return nil, errors.New("update requires a filter")
	}
	if err := ctx.Err(); err != nil {
		logger.WarnWithContext(ctx, "Context cancelled before query").
			Err(err).
			Log()
		return nil, err
	}

	start := time.Now()
	var updated model.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.User
		if err := q.apply(tx).Order("id").First(&current).Error; err != nil {
			return err
		}

		if cols := patch.columns(); len(cols) > 0 {
			if err := tx.Model(&current).Updates(cols).Error; err != nil {
				return err
			}
		}

		return tx.First(&updated, current.ID).Error
	})
	duration := time.Since(start)

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to update user").
			Duration(duration).
			Err(err).
			Log()
		return nil, err
	}

	logger.DebugWithContext(ctx, "User updated successfully").
		Uint("user_id", updated.ID).
		Duration(duration).
		Log()

	return &updated, nil
}

// Create inserts user and fills in its ID. A taken email yields
// ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "Create")

	start := time.Now()
	err := r.db.WithContext(ctx).Create(user).Error
	duration := time.Since(start)

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		logger.WarnWithContext(ctx, "Email already registered").
			String("email", user.Email).
			Duration(duration).
			Log()
		return ErrDuplicateEmail
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", user.Email).
			Duration(duration).
			Err(err).
			Log()
		return err
	}

	logger.InfoWithContext(ctx, "User created successfully").
		String("email", user.Email).
		Uint("user_id", user.ID).
		Duration(duration).
		Log()

	return nil
}
