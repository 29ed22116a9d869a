package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/db/dbtest"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := dbtest.Open(t)
	client := FromGorm(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&models.Notification{Type: enums.NotificationTypeProject, Title: "kept", Message: "m"}).Error
	}))

	sentinel := errors.New("abort")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Notification{Type: enums.NotificationTypeProject, Title: "dropped", Message: "m"}).Error; err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var titles []string
	require.NoError(t, conn.Model(&models.Notification{}).Pluck("title", &titles).Error)
	assert.Equal(t, []string{"kept"}, titles)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := dbtest.Open(t)
	client := FromGorm(conn)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&models.Notification{Type: enums.NotificationTypeProject, Title: "boom", Message: "m"})
			panic("boom")
		})
	})

	var count int64
	require.NoError(t, conn.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ux_escrow_milestone_payment"})
	assert.True(t, IsUniqueViolation(pgErr, ""))
	assert.True(t, IsUniqueViolation(pgErr, "ux_escrow_milestone_payment"))
	assert.False(t, IsUniqueViolation(pgErr, "users_email_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(nil, ""))
	assert.False(t, IsUniqueViolation(errors.New("connection refused"), ""))
}

func TestIsUniqueViolationOnSQLite(t *testing.T) {
	conn := dbtest.Open(t)
	user := models.User{Email: "dup@forge.io", PasswordHash: "x", Name: "A", Role: enums.UserRoleInvestor}
	require.NoError(t, conn.Create(&user).Error)

	err := conn.Create(&models.User{Email: "dup@forge.io", PasswordHash: "x", Name: "B", Role: enums.UserRoleInvestor}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, "users_email_key"))
}
