package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// RegisterUserMessage carries a registration request. When UseHashid is set,
// the account ID is derived deterministically from the email so re-imports
// of the same directory produce stable IDs.
type RegisterUserMessage struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Timezone  string   `json:"timezone"`
	Roles     []string `json:"roles"`
	UseHashid bool
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler validates the message, hashes the password, and
// creates the account together with its first history intervals.
type RegisterUserHandler struct {
	repo  RepositoryManager
	vault PasswordAuthenticator
	sink  ActivitySink
}

func NewRegisterUserHandler(repo RepositoryManager, vault PasswordAuthenticator) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:  repo,
		vault: vault,
		sink:  noopActivitySink{},
	}
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	username := getUsername(event.Username, event.Email)

	if err := ValidateRegistration(username, event.Email, event.Password, event.Timezone, event.Roles); err != nil {
		return nil, err
	}

	hash, err := h.vault.Hash(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:     username,
		Email:        event.Email,
		PasswordHash: hash,
		Timezone:     event.Timezone,
		Roles:        event.Roles,
		IsActive:     true,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(NormalizeIdentifier(event.Email)); err == nil {
			user.ID = id
		}
	}

	created, err := h.repo.CreateAccount(ctx, user)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	event2 := ActivityEvent{
		EventType:  ActivityEventRegistered,
		Actor:      ActorRef{ID: created.ID.String(), Type: "user"},
		UserID:     created.ID.String(),
		Metadata:   map[string]any{"username": created.Username},
		OccurredAt: time.Now(),
	}
	_ = h.sink.Record(ctx, event2)

	return created, nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
