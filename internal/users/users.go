package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/models"
)

// Store is the users collaborator. Account management happens
// elsewhere; the ticketing core only ever reads.
type Store struct {
	Bun *bun.DB
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
