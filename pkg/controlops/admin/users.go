// Package admin implements user management and catalog statistics for administrators.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
	"github.com/Subash107/control-ops-local1/pkg/controlops/auth"
	"github.com/Subash107/control-ops-local1/pkg/controlops/database"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
)

var (
	errDuplicateUsername = apierr.Duplicate("username", "Username already exists")
	errDeleteSelf        = apierr.Invalid("id", "cannot delete yourself")
	errDemoteSelf        = apierr.Invalid("role", "cannot demote yourself")
)

// UserFilters narrows the user listing
type UserFilters struct {
	// Query matches a case-insensitive username substring
	Query string
	Role  models.Role
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListUsers returns the matching users ordered by id
func ListUsers(ctx context.Context, db *gorm.DB, f UserFilters) ([]models.User, error) {
	query := db.WithContext(ctx).Order("id ASC")
	if q := strings.TrimSpace(f.Query); q != "" {
		query = query.Where(`LOWER(username) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(database.Fold(q))+"%")
	}
	if f.Role != "" {
		query = query.Where("role = ?", f.Role)
	}

	users := []models.User{}
	err := query.Find(&users).Error
	return users, err
}

// CreateUser stores a new account with a hashed password
func CreateUser(tx *gorm.DB, username, password string, role models.Role) (models.User, error) {
	if role == "" {
		role = models.RoleUser
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var count int64
	if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return models.User{}, err
	}
	if count > 0 {
		return models.User{}, errDuplicateUsername
	}

	user := models.User{Username: username, PasswordHash: hash, Role: role}
	if err := tx.Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, errDuplicateUsername
		}
		return models.User{}, err
	}
	return user, nil
}

// UserChanges holds the optional fields of a user update
type UserChanges struct {
	Password *string
	Role     *models.Role
}

// UpdateUser applies changes to user. actorID is the administrator making the
// change; administrators cannot remove their own admin role.
func UpdateUser(tx *gorm.DB, user *models.User, changes UserChanges, actorID uint) error {
	if changes.Role != nil && user.ID == actorID && *changes.Role != models.RoleAdmin {
		return errDemoteSelf
	}

	updates := make(map[string]any)
	if changes.Password != nil {
		hash, err := auth.HashPassword(*changes.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = hash
		user.PasswordHash = hash
	}
	if changes.Role != nil {
		updates["role"] = *changes.Role
		user.Role = *changes.Role
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(user).Updates(updates).Error
}

// DeleteUser removes user. Favorites cascade; audit entries keep a null actor.
func DeleteUser(tx *gorm.DB, user models.User, actorID uint) error {
	if user.ID == actorID {
		return errDeleteSelf
	}
	return tx.Delete(&user).Error
}

func userNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.NotFound("User")
	}
	return err
}
