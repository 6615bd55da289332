package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	Picture   *string   `gorm:"column:picture"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (userModel) TableName() string { return "users" }

type linkedAccountModel struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	ProviderName   string    `gorm:"column:provider_name;not null;uniqueIndex:idx_linked_accounts_provider_identity,priority:1"`
	ProviderUserID string    `gorm:"column:provider_user_id;not null;uniqueIndex:idx_linked_accounts_provider_identity,priority:2"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

func (linkedAccountModel) TableName() string { return "linked_accounts" }
