package softdelete_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/pkg/softdelete"
	"github.com/your-org/storefront-backend/internal/testutil"
)

type widget struct {
	ID        uint
	Name      string
	IsDeleted bool `gorm:"not null;default:false"`
}

func (w *widget) MarkDeleted()        { w.IsDeleted = true }
func (w *widget) IsDeletedFlag() bool { return w.IsDeleted }

type gadget struct {
	ID        uint
	WidgetID  uint
	IsDeleted bool `gorm:"not null;default:false"`
}

func TestDeleteHidesRowFromActiveScope(t *testing.T) {
	db := testutil.NewDB(t, &widget{})

	keep := widget{Name: "keep"}
	gone := widget{Name: "gone"}
	require.NoError(t, db.Create(&keep).Error)
	require.NoError(t, db.Create(&gone).Error)

	require.NoError(t, softdelete.Delete(db, &gone))
	assert.True(t, gone.IsDeletedFlag())

	var active []widget
	require.NoError(t, db.Scopes(softdelete.Active).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, "keep", active[0].Name)

	var all int64
	require.NoError(t, db.Model(&widget{}).Count(&all).Error)
	assert.Equal(t, int64(2), all, "soft delete must not remove rows")
}

func TestActiveInQualifiesColumn(t *testing.T) {
	db := testutil.NewDB(t, &widget{}, &gadget{})

	w := widget{Name: "w"}
	require.NoError(t, db.Create(&w).Error)
	require.NoError(t, db.Create(&gadget{WidgetID: w.ID}).Error)
	require.NoError(t, db.Create(&gadget{WidgetID: w.ID, IsDeleted: true}).Error)

	var count int64
	err := db.Model(&gadget{}).
		Joins("JOIN widgets ON widgets.id = gadgets.widget_id").
		Scopes(softdelete.ActiveIn("gadgets"), softdelete.ActiveIn("widgets")).
		Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteAllFlagsEveryLoadedRow(t *testing.T) {
	db := testutil.NewDB(t, &widget{})

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, db.Create(&widget{Name: name}).Error)
	}

	var doomed []widget
	require.NoError(t, db.Where("name IN ?", []string{"a", "b"}).Find(&doomed).Error)
	require.NoError(t, softdelete.DeleteAll(db, doomed))

	for _, w := range doomed {
		assert.True(t, w.IsDeleted)
	}

	var active []widget
	require.NoError(t, db.Scopes(softdelete.Active).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, "c", active[0].Name)

	assert.NoError(t, softdelete.DeleteAll(db, []widget{}))
}
