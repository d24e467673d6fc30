package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
)

// UserDTO is the transport shape of a user.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterInput holds what Register needs to persist a new user.
type RegisterInput struct {
	Name  string
	Email string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (in RegisterInput) toModel() *models.User {
	return &models.User{
		Name:  in.Name,
		Email: in.Email,
	}
}
