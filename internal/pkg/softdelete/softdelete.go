// internal/pkg/softdelete/softdelete.go
package softdelete

import (
	"fmt"

	"gorm.io/gorm"
)

// SoftDeletable is implemented by every model that is hidden rather than removed
type SoftDeletable interface {
	MarkDeleted()
	IsDeletedFlag() bool
}

// Delete marks entity deleted and persists the flag. Nothing is removed physically.
func Delete(tx *gorm.DB, entity SoftDeletable) error {
	entity.MarkDeleted()
	if err := tx.Model(entity).Update("is_deleted", true).Error; err != nil {
		return fmt.Errorf("failed to soft delete %T: %w", entity, err)
	}
	return nil
}

// DeleteAll soft deletes every entity of a loaded slice
func DeleteAll[T any, P interface {
	*T
	SoftDeletable
}](tx *gorm.DB, entities []T) error {
	for i := range entities {
		if err := Delete(tx, P(&entities[i])); err != nil {
			return err
		}
	}
	return nil
}

// Active scopes a query to rows that have not been soft deleted
func Active(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = ?", false)
}

// ActiveIn is Active for queries that join several soft-deletable tables
func ActiveIn(table string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(table+".is_deleted = ?", false)
	}
}
