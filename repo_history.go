package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UsernameHistories tracks the username lineage of every account. The open
// interval (end_at IS NULL) is closed in the same transaction that opens its
// successor, so at most one record per account is ever open.
type UsernameHistories interface {
	repository.Repository[*UsernameHistory]

	FindCurrentTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*UsernameHistory, error)
	CloseCurrentTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) error
	OpenTx(ctx context.Context, tx bun.IDB, user *User, at time.Time) (*UsernameHistory, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*UsernameHistory, error)
}

type usernameHistories struct {
	repository.Repository[*UsernameHistory]
	db *bun.DB
}

var _ UsernameHistories = (*usernameHistories)(nil)

func NewUsernameHistoriesRepository(db *bun.DB) UsernameHistories {
	repo := repository.NewRepository[*UsernameHistory](db, repository.ModelHandlers[*UsernameHistory]{
		NewRecord: func() *UsernameHistory { return &UsernameHistory{} },
		GetID: func(h *UsernameHistory) uuid.UUID {
			if h == nil {
				return uuid.Nil
			}
			return h.ID
		},
		SetID: func(h *UsernameHistory, id uuid.UUID) {
			if h != nil {
				h.ID = id
			}
		},
	})

	return &usernameHistories{Repository: repo, db: db}
}

func (r *usernameHistories) FindCurrentTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*UsernameHistory, error) {
	record := &UsernameHistory{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.end_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *usernameHistories) CloseCurrentTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) error {
	_, err := tx.NewUpdate().Model((*UsernameHistory)(nil)).
		Set("end_at = ?", at).
		Where("user_id = ?", userID).
		Where("end_at IS NULL").
		Exec(ctx)
	return err
}

func (r *usernameHistories) OpenTx(ctx context.Context, tx bun.IDB, user *User, at time.Time) (*UsernameHistory, error) {
	return r.Repository.CreateTx(ctx, tx, NewUsernameHistory(user, at))
}

func (r *usernameHistories) ListByUser(ctx context.Context, userID uuid.UUID) ([]*UsernameHistory, error) {
	var records []*UsernameHistory
	err := r.db.NewSelect().Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// EmailHistories tracks the email lineage, mirroring UsernameHistories.
type EmailHistories interface {
	repository.Repository[*EmailHistory]

	FindCurrentTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*EmailHistory, error)
	CloseCurrentTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) error
	OpenTx(ctx context.Context, tx bun.IDB, user *User, at time.Time) (*EmailHistory, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*EmailHistory, error)
}

type emailHistories struct {
	repository.Repository[*EmailHistory]
	db *bun.DB
}

var _ EmailHistories = (*emailHistories)(nil)

func NewEmailHistoriesRepository(db *bun.DB) EmailHistories {
	repo := repository.NewRepository[*EmailHistory](db, repository.ModelHandlers[*EmailHistory]{
		NewRecord: func() *EmailHistory { return &EmailHistory{} },
		GetID: func(h *EmailHistory) uuid.UUID {
			if h == nil {
				return uuid.Nil
			}
			return h.ID
		},
		SetID: func(h *EmailHistory, id uuid.UUID) {
			if h != nil {
				h.ID = id
			}
		},
	})

	return &emailHistories{Repository: repo, db: db}
}

func (r *emailHistories) FindCurrentTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*EmailHistory, error) {
	record := &EmailHistory{}
	err := tx.NewSelect().Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.end_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *emailHistories) CloseCurrentTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) error {
	_, err := tx.NewUpdate().Model((*EmailHistory)(nil)).
		Set("end_at = ?", at).
		Where("user_id = ?", userID).
		Where("end_at IS NULL").
		Exec(ctx)
	return err
}

func (r *emailHistories) OpenTx(ctx context.Context, tx bun.IDB, user *User, at time.Time) (*EmailHistory, error) {
	return r.Repository.CreateTx(ctx, tx, NewEmailHistory(user, at))
}

func (r *emailHistories) ListByUser(ctx context.Context, userID uuid.UUID) ([]*EmailHistory, error) {
	var records []*EmailHistory
	err := r.db.NewSelect().Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
