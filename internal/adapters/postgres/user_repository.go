package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/forgeworks/auth-connector/internal/domain"
)

// UserRepository persists user aggregates and their linked-account sets.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var model userModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err, domain.ErrUserSearch)
	}
	return r.hydrate(ctx, &model)
}

func (r *UserRepository) FindByLinkedAccount(ctx context.Context, providerName, providerUserID string) (*domain.User, error) {
	var link linkedAccountModel
	err := r.db.WithContext(ctx).
		First(&link, "provider_name = ? AND provider_user_id = ?", providerName, providerUserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err, domain.ErrUserSearch)
	}

	var model userModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", link.UserID).Error; err != nil {
		return nil, classifyError(err, domain.ErrUserSearch)
	}
	return r.hydrate(ctx, &model)
}

// Save upserts the user row and reconciles the stored linked-account set
// against the aggregate's set. Accounts present only in the aggregate are
// inserted, accounts present only in storage are deleted, and the
// intersection is left untouched. The whole write runs in one transaction.
func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	isCreate := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing userModel
		err := tx.First(&existing, "id = ?", user.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			isCreate = true
			if err := tx.Create(toUserModel(user)).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			updates := map[string]any{
				"email":      user.Email,
				"name":       user.Name,
				"picture":    nullableString(user.Picture),
				"updated_at": time.Now().UTC(),
			}
			if err := tx.Model(&userModel{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
				return err
			}
		}

		var stored []linkedAccountModel
		if err := tx.Find(&stored, "user_id = ?", user.ID).Error; err != nil {
			return err
		}

		toInsert, toDelete := diffLinkedAccounts(user.LinkedAccounts(), stored)
		for _, link := range toInsert {
			row := linkedAccountModel{
				ID:             uuid.New(),
				UserID:         link.UserID,
				ProviderName:   link.ProviderName,
				ProviderUserID: link.ProviderUserID,
				CreatedAt:      time.Now().UTC(),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		for _, row := range toDelete {
			if err := tx.Delete(&linkedAccountModel{}, "id = ?", row.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isCreate {
			return classifyError(err, domain.ErrUserCreation)
		}
		return classifyError(err, domain.ErrUserUpdate)
	}
	return nil
}

// diffLinkedAccounts computes the set difference between the aggregate's
// desired accounts and the stored rows, keyed by provider identity.
func diffLinkedAccounts(desired []domain.LinkedAccount, stored []linkedAccountModel) (toInsert []domain.LinkedAccount, toDelete []linkedAccountModel) {
	storedByKey := make(map[domain.LinkKey]linkedAccountModel, len(stored))
	for _, row := range stored {
		storedByKey[domain.LinkKey{ProviderName: row.ProviderName, ProviderUserID: row.ProviderUserID}] = row
	}
	desiredKeys := make(map[domain.LinkKey]struct{}, len(desired))
	for _, link := range desired {
		key := link.Key()
		desiredKeys[key] = struct{}{}
		if _, ok := storedByKey[key]; !ok {
			toInsert = append(toInsert, link)
		}
	}
	for key, row := range storedByKey {
		if _, ok := desiredKeys[key]; !ok {
			toDelete = append(toDelete, row)
		}
	}
	return toInsert, toDelete
}

func (r *UserRepository) hydrate(ctx context.Context, model *userModel) (*domain.User, error) {
	var links []linkedAccountModel
	if err := r.db.WithContext(ctx).Find(&links, "user_id = ?", model.ID).Error; err != nil {
		return nil, classifyError(err, domain.ErrUserSearch)
	}

	picture := ""
	if model.Picture != nil {
		picture = *model.Picture
	}
	user := domain.NewUser(model.ID, model.Email, model.Name, picture)
	for _, link := range links {
		if err := user.AddLinkedAccount(link.ProviderName, link.ProviderUserID); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDataIntegrity, err)
		}
	}
	return user, nil
}

func toUserModel(user *domain.User) *userModel {
	now := time.Now().UTC()
	return &userModel{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Picture:   nullableString(user.Picture),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// classifyError maps driver failures into the closed storage error set.
// Connectivity problems and constraint violations carry distinct sentinels
// so callers can tell a retryable outage from a data conflict.
func classifyError(err error, fallback error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", domain.ErrDataIntegrity, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %v", domain.ErrDataIntegrity, err)
	case errors.Is(err, driver.ErrBadConn),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrStorageConnection, err)
	default:
		return fmt.Errorf("%w: %v", fallback, err)
	}
}
