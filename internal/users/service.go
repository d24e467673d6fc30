// Package users registers identities. Credentials live with the upstream
// identity provider; this service only owns the profile row and announces
// new users with user_created.
package users

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/linkedge-backend/pkg/db"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
)

const (
	emailUniqueConstraint = "users_email_unique"
	maxNameLength         = 120
)

type Service interface {
	Register(ctx context.Context, input RegisterInput) (*UserDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
}

type service struct {
	tx       db.TxRunner
	repo     *Repository
	outbox   outbox.Emitter
	validate *validator.Validate
}

func NewService(tx db.TxRunner, repo *Repository, emitter outbox.Emitter) (Service, error) {
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if repo == nil {
		return nil, errors.New("users repository required")
	}
	if emitter == nil {
		return nil, errors.New("outbox emitter required")
	}
	return &service{tx: tx, repo: repo, outbox: emitter, validate: validator.New()}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*UserDTO, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Name == "" || len(input.Name) > maxNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "name is required and must be at most 120 characters")
	}
	if err := s.validate.Var(input.Email, "required,email"); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "a valid email is required")
	}

	var dto *UserDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByEmail(ctx, input.Email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user by email")
		}

		user, err := repo.Create(ctx, input)
		if err != nil {
			if db.IsUniqueViolation(err, emailUniqueConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		dto = FromModel(user)

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserCreated,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			PartitionKey:  outbox.EntityKey(user.ID),
			Actor:         &outbox.ActorRef{UserID: user.ID},
			Data:          payloads.UserCreatedEvent{UserID: user.ID, Name: user.Name},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "register user")
	}
	return dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return FromModel(user), nil
}
