package product

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
)

func TestCreateCategoryConflict(t *testing.T) {
	_, categories, _, _ := newTestService(t)
	ctx := context.Background()

	mustCategory(t, categories, "Lamps")
	_, err := categories.CreateCategory(ctx, &CategoryCreateRequest{Name: "Lamps"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	_, err = categories.CreateCategory(ctx, &CategoryCreateRequest{Name: "   "})
	assert.True(t, apperror.Is(err, apperror.KindInvalidArgument))
}

func TestCreateCategoryRestoresDeleted(t *testing.T) {
	_, categories, _, _ := newTestService(t)
	ctx := context.Background()

	original := mustCategory(t, categories, "Lamps")
	require.NoError(t, categories.DeleteCategory(ctx, original.ID))

	_, err := categories.GetCategory(ctx, original.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	restored, err := categories.CreateCategory(ctx, &CategoryCreateRequest{Name: "Lamps", Description: "Back again"})
	require.NoError(t, err)
	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, "Back again", restored.Description)

	got, err := categories.GetCategory(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamps", got.Name)
}

func TestDeleteCategoryUnlinksProducts(t *testing.T) {
	svc, categories, _, _ := newTestService(t)
	ctx := context.Background()

	lamps := mustCategory(t, categories, "Lamps")
	desks := mustCategory(t, categories, "Desks")
	p, err := svc.CreateProduct(ctx, &ProductCreateRequest{SKU: "L", Name: "Lamp", Price: 1, CategoryIDs: []uint{lamps.ID, desks.ID}})
	require.NoError(t, err)

	list, err := categories.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ProductCount)

	require.NoError(t, categories.DeleteCategory(ctx, lamps.ID))

	list, err = categories.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Desks", list[0].Name)

	got, err := svc.GetProduct(ctx, p.ID, false)
	require.NoError(t, err)
	require.Len(t, got.Categories, 1)
	assert.Equal(t, desks.ID, got.Categories[0].ID)

	err = categories.DeleteCategory(ctx, lamps.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestUpdateCategory(t *testing.T) {
	_, categories, _, _ := newTestService(t)
	ctx := context.Background()

	lamps := mustCategory(t, categories, "Lamps")
	mustCategory(t, categories, "Desks")

	name := "Lighting"
	updated, err := categories.UpdateCategory(ctx, lamps.ID, &CategoryUpdateRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Lighting", updated.Name)

	taken := "Desks"
	_, err = categories.UpdateCategory(ctx, lamps.ID, &CategoryUpdateRequest{Name: &taken})
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}
