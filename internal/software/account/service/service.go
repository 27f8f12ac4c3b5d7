package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/general/jwt"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/ports"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	ErrPasswordTooShort = fmt.Errorf("password must have at least %d characters", MinPasswordLength)
	ErrRoleNotSelf      = errors.New("role cannot be self-assigned")
)

// accountService registers users and issues bearer tokens.
type accountService struct {
	logger *logger.Logger
	uow    ports.UnitOfWork
	users  ports.UserRepository
	auth   *jwt.Manager
	cost   int
}

// NewAccountService creates a new AccountService. cost is the bcrypt work factor;
// zero selects bcrypt.DefaultCost.
func NewAccountService(logger *logger.Logger, uow ports.UnitOfWork, users ports.UserRepository, auth *jwt.Manager, cost int) ports.AccountService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &accountService{logger: logger, uow: uow, users: users, auth: auth, cost: cost}
}

// Register creates a user and returns a fresh token. Riders are the default role;
// admins are never self-registered.
func (service *accountService) Register(ctx context.Context, in ports.RegisterInput) (ports.AuthResult, error) {
	role := in.Role
	if role == "" {
		role = user.RoleRider
	}
	if role.IsAdmin() {
		return ports.AuthResult{}, fmt.Errorf("%w: %w", ports.ErrInvalidInput, ErrRoleNotSelf)
	}
	if len(in.Password) < MinPasswordLength {
		return ports.AuthResult{}, fmt.Errorf("%w: %w", ports.ErrInvalidInput, ErrPasswordTooShort)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), service.cost)
	if err != nil {
		return ports.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name, _, _ = strings.Cut(user.NormalizeEmail(in.Email), "@")
	}

	u, err := user.NewUser(name, in.Email, role, string(hash))
	if err != nil {
		return ports.AuthResult{}, fmt.Errorf("%w: %w", ports.ErrInvalidInput, err)
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.users.CreateUser(txCtx, u)
	})
	if err != nil {
		if !errors.Is(err, ports.ErrEmailTaken) {
			service.logger.Error(ctx, "user_register_failed", "Failed to create user", err, map[string]any{
				"email": u.Email,
			})
		}
		return ports.AuthResult{}, err
	}

	service.logger.Info(ctx, "user_registered", "User registered", map[string]any{
		"user_id": u.ID,
		"role":    u.Role.String(),
	})

	return service.issue(u)
}

// Login checks the password and returns a fresh token. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (service *accountService) Login(ctx context.Context, in ports.LoginInput) (ports.AuthResult, error) {
	var u *user.User
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		u, err = service.users.GetByEmail(txCtx, in.Email)
		return err
	})
	if errors.Is(err, ports.ErrNotFound) {
		return ports.AuthResult{}, ports.ErrUnauthenticated
	}
	if err != nil {
		return ports.AuthResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		service.logger.Warn(ctx, "login_rejected", "Password mismatch", map[string]any{"user_id": u.ID})
		return ports.AuthResult{}, ports.ErrUnauthenticated
	}

	return service.issue(u)
}

// Profile describes the token's user.
func (service *accountService) Profile(ctx context.Context, userID string) (ports.ProfileView, error) {
	if err := uuid.Validate(userID); err != nil {
		return ports.ProfileView{}, ports.ErrNotFound
	}

	var u *user.User
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		u, err = service.users.GetByID(txCtx, userID)
		return err
	})
	if err != nil {
		return ports.ProfileView{}, err
	}

	return ports.ProfileView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}, nil
}

func (service *accountService) issue(u *user.User) (ports.AuthResult, error) {
	token, claims, err := service.auth.IssueUserToken(u.ID, u.Email, u.Role)
	if err != nil {
		return ports.AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return ports.AuthResult{
		UserID:    u.ID,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Role:      u.Role,
	}, nil
}
