package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories plus the cross-repository
// account operations that have to run inside a single transaction.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	UsernameHistories() UsernameHistories
	EmailHistories() EmailHistories

	// CreateAccount persists a new user and opens the first interval of
	// both history lineages, all in one transaction.
	CreateAccount(ctx context.Context, user *User) (*User, error)

	// ApplyChange folds the changeset into the record and persists exactly
	// the columns the changeset touches. Username and email changes close
	// the current history interval and open the next one in the same
	// transaction.
	ApplyChange(ctx context.Context, user *User, cs *Changeset) (*User, error)
}

type mngr struct {
	db              *bun.DB
	users           Users
	usernameHistory UsernameHistories
	emailHistory    EmailHistories
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:              db,
		users:           NewUsersRepository(db),
		usernameHistory: NewUsernameHistoriesRepository(db),
		emailHistory:    NewEmailHistoriesRepository(db),
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) UsernameHistories() UsernameHistories {
	return m.usernameHistory
}

func (m mngr) EmailHistories() EmailHistories {
	return m.emailHistory
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.usernameHistory == nil {
		return errors.New("repository usernameHistory should be initialized")
	}

	if m.emailHistory == nil {
		return errors.New("repository emailHistory should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) CreateAccount(ctx context.Context, user *User) (*User, error) {
	var created *User
	err := m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := m.users.RegisterTx(ctx, tx, user)
		if err != nil {
			return err
		}

		at := record.LastTokenIssuedAt
		if at.IsZero() {
			at = time.Now()
		}

		if _, err := m.usernameHistory.OpenTx(ctx, tx, record, at); err != nil {
			return err
		}

		if _, err := m.emailHistory.OpenTx(ctx, tx, record, at); err != nil {
			return err
		}

		created = record
		return nil
	})

	if err != nil {
		return nil, wrapConflict(err)
	}

	return created, nil
}

func (m mngr) ApplyChange(ctx context.Context, user *User, cs *Changeset) (*User, error) {
	if cs.IsEmpty() {
		return user, nil
	}

	now := time.Now()
	usernameChanged := cs.Has(FieldUsername)
	emailChanged := cs.Has(FieldEmail)

	user.Apply(cs, now)

	err := m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Column forces the listed columns into the UPDATE even when the
		// struct field holds its zero value, e.g. failed_attempts = 0.
		_, err := tx.NewUpdate().Model(user).
			Column(columnsFor(cs)...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}

		if usernameChanged {
			if err := m.usernameHistory.CloseCurrentTx(ctx, tx, user.ID, now); err != nil {
				return err
			}
			if _, err := m.usernameHistory.OpenTx(ctx, tx, user, now); err != nil {
				return err
			}
		}

		if emailChanged {
			if err := m.emailHistory.CloseCurrentTx(ctx, tx, user.ID, now); err != nil {
				return err
			}
			if _, err := m.emailHistory.OpenTx(ctx, tx, user, now); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return nil, wrapConflict(err)
	}

	return user, nil
}

// columnsFor maps logical changeset fields to the storage columns they
// touch. Overlapping fields collapse into a single column list.
func columnsFor(cs *Changeset) []string {
	set := map[string]struct{}{}
	add := func(cols ...string) {
		for _, c := range cols {
			set[c] = struct{}{}
		}
	}

	if cs.Has(FieldUsername) {
		add("username", "updated_at")
	}
	if cs.Has(FieldEmail) {
		add("email", "updated_at")
	}
	if cs.Has(FieldPassword) {
		add("password_hash", "password_changed_at", "updated_at")
	}
	if cs.Has(FieldAttemptsIncrement) || cs.Has(FieldAttemptsReset) {
		add("failed_attempts")
	}
	if cs.Has(FieldLoggedTime) {
		add("failed_attempts", "last_login_at", "prev_login_at")
	}
	if cs.Has(FieldTokenIssued) {
		add("last_token_issued_at")
	}

	out := make([]string, 0, len(set))
	for col := range set {
		out = append(out, col)
	}
	return out
}

// wrapConflict translates storage-level uniqueness violations into the
// engine's duplicate identity error so callers never match driver strings.
func wrapConflict(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "identity already registered").
			WithTextCode(TextCodeDuplicateIdentity).
			WithCode(goerrors.CodeConflict)
	}

	return err
}
