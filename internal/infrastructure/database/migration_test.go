package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/domain/admin"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
	"github.com/your-org/storefront-backend/internal/testutil"
	"golang.org/x/crypto/bcrypt"
)

func TestMigrationAndSeed(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewMigration(db, logger.Discard())

	require.NoError(t, m.RunAutoMigrations())
	for _, model := range Models() {
		assert.True(t, db.Migrator().HasTable(model), "%T", model)
	}
	require.NoError(t, m.CreateIndexes())

	require.NoError(t, m.SeedInitialData())
	require.NoError(t, m.SeedInitialData(), "seeding is idempotent")

	var categories int64
	require.NoError(t, db.Model(&product.Category{}).Count(&categories).Error)
	assert.Equal(t, int64(4), categories)

	var seeded admin.Admin
	require.NoError(t, db.Where("email = ?", "admin@example.com").First(&seeded).Error)
	assert.Equal(t, "ADMIN", seeded.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(seeded.Password), []byte("admin12345")))
}

func TestActiveEmailIndex(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewMigration(db, logger.Discard())
	require.NoError(t, m.RunAutoMigrations())
	require.NoError(t, m.CreateIndexes())

	require.NoError(t, db.Create(&user.User{Email: "jane@example.com", Password: "x", Name: "Old", IsDeleted: true}).Error)
	require.NoError(t, db.Create(&user.User{Email: "jane@example.com", Password: "x", Name: "New"}).Error,
		"a deleted user does not reserve the email")

	err := db.Create(&user.User{Email: "jane@example.com", Password: "x", Name: "Dup"}).Error
	assert.Error(t, err, "two live users may not share an email")
}

func TestConnectionHealth(t *testing.T) {
	conn := NewConnectionFromDB(testutil.NewDB(t))

	require.NoError(t, conn.Health(context.Background()))
	require.NoError(t, conn.Close())
	assert.Error(t, conn.Health(context.Background()))
}
