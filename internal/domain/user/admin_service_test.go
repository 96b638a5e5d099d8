package user

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
)

func TestGetUsersWithStats(t *testing.T) {
	svc, admins, db := newTestServices(t)
	ctx := context.Background()

	jane := register(t, svc, "jane@example.com", "Jane")
	register(t, svc, "bob@example.com", "Bob")
	gone := register(t, svc, "gone@example.com", "Gone")
	require.NoError(t, admins.DeleteUser(ctx, gone.User.ID))

	for _, o := range []order.Order{
		{UserID: jane.User.ID, TotalAmount: 1500, Status: order.OrderStatusPaid},
		{UserID: jane.User.ID, TotalAmount: 2500, Status: order.OrderStatusDelivered},
		{UserID: jane.User.ID, TotalAmount: 9900, Status: order.OrderStatusCancelled},
	} {
		o := o
		require.NoError(t, db.Create(&o).Error)
	}

	list, err := admins.GetUsers(ctx, &UserListRequest{SortBy: "email", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, list.Users, 2)
	assert.Equal(t, int64(2), list.Pagination.Total)
	assert.Equal(t, "bob@example.com", list.Users[0].Email)
	assert.Equal(t, "jane@example.com", list.Users[1].Email)
	assert.Equal(t, int64(2), list.Users[1].OrderCount)
	assert.Equal(t, int64(4000), list.Users[1].TotalSpent)

	withDeleted, err := admins.GetUsers(ctx, &UserListRequest{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, withDeleted.Users, 3)

	searched, err := admins.GetUsers(ctx, &UserListRequest{Search: "JAN"})
	require.NoError(t, err)
	require.Len(t, searched.Users, 1)
	assert.Equal(t, jane.User.ID, searched.Users[0].ID)

	deleted, err := admins.GetUser(ctx, gone.User.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted, "admins still see deleted users")

	_, err = admins.GetUser(ctx, 9999)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestExportUsers(t *testing.T) {
	svc, admins, _ := newTestServices(t)
	ctx := context.Background()
	register(t, svc, "jane@example.com", "Jane")
	register(t, svc, "bob@example.com", "Bob")

	data, filename, err := admins.ExportUsers(ctx, "jane", false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "users_export_"))
	assert.True(t, strings.HasSuffix(filename, ".csv"))

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Email", records[0][1])
	assert.Equal(t, "jane@example.com", records[1][1])
	assert.Equal(t, "Never", records[1][6])
	assert.Equal(t, "0.00", records[1][8])
}
