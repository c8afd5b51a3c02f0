package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborlane/storefront-backend/pkg/enums"
)

// User represents the canonical identity entity. Credential handling lives in the
// external identity service; this table only anchors ownership and roles.
type User struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Email     string           `gorm:"column:email;type:text;not null;uniqueIndex"`
	FirstName string           `gorm:"column:first_name;not null"`
	LastName  string           `gorm:"column:last_name;not null"`
	Role      enums.MemberRole `gorm:"column:role;type:text;not null;default:'customer'"`
	IsActive  bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller did not provide one.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
