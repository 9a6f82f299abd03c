package database

import (
	"context"
	"errors"
	"time"

	"github.com/Payphone-Digital/account-service/internal/model"
	"github.com/Payphone-Digital/account-service/pkg/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoUser is the verified account created by Seed for local development.
type DemoUser struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

func GetDemoUser() DemoUser {
	return DemoUser{
		FirstName: "Demo",
		LastName:  "User",
		Email:     "demo@account.local",
		Password:  "Demo@12345",
	}
}

// Seed creates the demo user unless it already exists.
func Seed(ctx context.Context, db *gorm.DB) error {
	demo := GetDemoUser()
	db = db.WithContext(ctx)

	var existing model.User
	err := db.Where("email = ?", demo.Email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(demo.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user := model.User{
		FirstName:                     demo.FirstName,
		LastName:                      demo.LastName,
		Email:                         demo.Email,
		Password:                      string(hashed),
		EmailVerified:                 true,
		EmailVerifiedAt:               &now,
		HasAcceptedTermsAndConditions: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	logger.InfoWithContext(ctx, "Demo user seeded").String("email", demo.Email).Log()
	return nil
}
