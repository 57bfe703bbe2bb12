package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/repository"
	"github.com/iliyamo/meeting-room-reservation/internal/utils"
)

// UserStore is the user persistence used by UserService.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	UpdateRole(ctx context.Context, id uint64, role model.Role) error
	Update(ctx context.Context, u *model.User) error
	ExistsWithRole(ctx context.Context, role model.Role) (bool, error)
	Delete(ctx context.Context, id uint64) error
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthSettings configures token issuing and password hashing.
type AuthSettings struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Session is the result of a successful register, login or refresh.
type Session struct {
	User    *model.User        `json:"user"`
	Access  utils.AccessToken  `json:"access"`
	Refresh utils.RefreshToken `json:"refresh"`
}

// RegisterInput is a self-service signup.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// CreateUserInput is an account created by an administrator.  An empty
// Role means EMPLOYEE.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     model.Role
}

// UpdateUserInput is a partial account update; nil fields are unchanged.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Password *string
}

// SeedAccount holds the credentials of the bootstrap super admin.
type SeedAccount struct {
	Username string
	Email    string
	Password string
}

// Permissions summarizes what a user's role lets them manage.
type Permissions struct {
	CanManageAdmins bool `json:"can_manage_admins"`
	CanManageUsers  bool `json:"can_manage_users"`
}

// RoleInfo is returned by Roles.
type RoleInfo struct {
	Role        model.Role  `json:"role"`
	Permissions Permissions `json:"permissions"`
}

// UserService is the user directory: signup, authentication and role
// administration.  Every role-hierarchy decision goes through canModify.
type UserService struct {
	users     UserStore
	tokens    TokenStore
	cfg       AuthSettings
	canModify model.RolePolicy
	log       *zap.Logger
}

// NewUserService wires the user directory.  A nil policy selects
// model.DefaultRolePolicy.
func NewUserService(users UserStore, tokens TokenStore, cfg AuthSettings, policy model.RolePolicy, log *zap.Logger) *UserService {
	if users == nil || tokens == nil {
		panic("nil store passed to NewUserService")
	}
	if policy == nil {
		policy = model.DefaultRolePolicy
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{users: users, tokens: tokens, cfg: cfg, canModify: policy, log: log}
}

// Register creates an EMPLOYEE and opens a session for it.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	u, err := s.newUser(ctx, in.Username, in.Email, in.Password, model.RoleEmployee)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Uint64("user_id", u.ID), zap.String("username", u.Username))
	return s.issue(ctx, u)
}

// Create adds an account on behalf of actorID.  The new account counts as
// an EMPLOYEE being given in.Role, so the role policy decides who may
// create admins.
func (s *UserService) Create(ctx context.Context, actorID uint64, in CreateUserInput) (*model.User, error) {
	role := in.Role
	if role == "" {
		role = model.RoleEmployee
	}
	if _, ok := model.ParseRole(string(role)); !ok {
		return nil, invalidInput("unknown role")
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !s.canModify(actor.Role, model.RoleEmployee, role) {
		return nil, ErrForbidden
	}
	u, err := s.newUser(ctx, in.Username, in.Email, in.Password, role)
	if err != nil {
		return nil, err
	}
	s.log.Info("user created",
		zap.Uint64("actor_id", actorID),
		zap.Uint64("user_id", u.ID),
		zap.String("role", string(role)))
	return u, nil
}

// Update changes the username, email or password of targetID.  Users may
// always edit themselves; anyone else needs the role policy's consent.  A
// new password revokes every refresh token of the target.
func (s *UserService) Update(ctx context.Context, actorID, targetID uint64, in UpdateUserInput) (*model.User, error) {
	actor, target, err := s.pair(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if actor.ID != target.ID && !s.canModify(actor.Role, target.Role, target.Role) {
		return nil, ErrForbidden
	}

	next := *target
	if in.Username != nil {
		next.Username = strings.TrimSpace(*in.Username)
		if err := checkUsername(next.Username); err != nil {
			return nil, err
		}
	}
	if in.Email != nil {
		next.Email = strings.ToLower(strings.TrimSpace(*in.Email))
		if !validEmail(next.Email) {
			return nil, invalidInput("email is not valid")
		}
	}
	if in.Password != nil {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		next.PasswordHash = hash
	}
	if err := s.users.Update(ctx, &next); err != nil {
		return nil, classify(err)
	}
	if in.Password != nil {
		if err := s.tokens.RevokeAllForUser(ctx, target.ID); err != nil {
			return nil, storeFailure(err)
		}
	}
	s.log.Info("user updated",
		zap.Uint64("actor_id", actorID),
		zap.Uint64("user_id", target.ID),
		zap.Bool("password_changed", in.Password != nil))
	return s.Get(ctx, target.ID)
}

// EnsureSuperAdmin creates the bootstrap SUPER_ADMIN unless one already
// exists.  It reports whether an account was created.
func (s *UserService) EnsureSuperAdmin(ctx context.Context, seed SeedAccount) (bool, error) {
	exists, err := s.users.ExistsWithRole(ctx, model.RoleSuperAdmin)
	if err != nil {
		return false, storeFailure(err)
	}
	if exists {
		return false, nil
	}
	u, err := s.newUser(ctx, seed.Username, seed.Email, seed.Password, model.RoleSuperAdmin)
	if err != nil {
		return false, err
	}
	s.log.Info("super admin seeded", zap.Uint64("user_id", u.ID), zap.String("username", u.Username))
	return true, nil
}

func (s *UserService) newUser(ctx context.Context, username, email, password string, role model.Role) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	if !validEmail(email) {
		return nil, invalidInput("email is not valid")
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{Username: username, Email: email, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, classify(err)
	}
	return u, nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	if utf8.RuneCountInString(password) < utils.MinPasswordLen {
		return "", invalidInput("password must be at least 8 characters")
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return "", invalidInput("password is too long")
		}
		return "", err
	}
	return hash, nil
}

func checkUsername(username string) error {
	if username == "" || utf8.RuneCountInString(username) > 50 {
		return invalidInput("username must be 1 to 50 characters")
	}
	return nil
}

// Authenticate checks a username and password and opens a session.  An
// unknown user and a wrong password are indistinguishable.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, storeFailure(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrUnauthorized
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *UserService) Refresh(ctx context.Context, raw string) (*Session, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	uid, err := s.tokens.ValidateRefresh(ctx, hash, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return nil, ErrUnauthorized
		}
		return nil, storeFailure(err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, storeFailure(err)
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, storeFailure(err)
	}
	return s.issue(ctx, u)
}

// Logout revokes the given refresh token, or every refresh token of
// userID when raw is empty.
func (s *UserService) Logout(ctx context.Context, userID uint64, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if userID == 0 {
			return ErrUnauthorized
		}
		if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			return storeFailure(err)
		}
		return nil
	}
	hash := utils.HashRefreshRaw(raw)
	if _, err := s.tokens.ValidateRefresh(ctx, hash, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return ErrUnauthorized
		}
		return storeFailure(err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return storeFailure(err)
	}
	return nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

// List returns every user ordered by ID.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	list, err := s.users.List(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	return list, nil
}

// Delete removes targetID when the policy lets actorID modify it.
// Reservations of the user are removed with it.
func (s *UserService) Delete(ctx context.Context, actorID, targetID uint64) error {
	actor, target, err := s.pair(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if actor.ID == target.ID || !s.canModify(actor.Role, target.Role, target.Role) {
		return ErrForbidden
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		return classify(err)
	}
	s.log.Info("user deleted", zap.Uint64("actor_id", actorID), zap.Uint64("user_id", targetID))
	return nil
}

// Roles reports the role of userID and what it may manage.
func (s *UserService) Roles(ctx context.Context, userID uint64) (*RoleInfo, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &RoleInfo{
		Role: u.Role,
		Permissions: Permissions{
			CanManageAdmins: s.canModify(u.Role, model.RoleAdmin, model.RoleEmployee),
			CanManageUsers:  s.canModify(u.Role, model.RoleEmployee, model.RoleEmployee),
		},
	}, nil
}

// SetRole changes the role of targetID to role on behalf of actorID.
func (s *UserService) SetRole(ctx context.Context, actorID, targetID uint64, role model.Role) (*model.User, error) {
	if _, ok := model.ParseRole(string(role)); !ok {
		return nil, invalidInput("unknown role")
	}
	actor, target, err := s.pair(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if !s.canModify(actor.Role, target.Role, role) {
		return nil, ErrForbidden
	}
	return s.applyRole(ctx, actor, target, role)
}

// RemoveAdmin demotes an ADMIN to EMPLOYEE.  A target that is not an admin
// is invalid input.
func (s *UserService) RemoveAdmin(ctx context.Context, actorID, targetID uint64) (*model.User, error) {
	actor, target, err := s.pair(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role != model.RoleAdmin {
		return nil, invalidInput("target user is not an admin")
	}
	if !s.canModify(actor.Role, target.Role, model.RoleEmployee) {
		return nil, ErrForbidden
	}
	return s.applyRole(ctx, actor, target, model.RoleEmployee)
}

func (s *UserService) applyRole(ctx context.Context, actor, target *model.User, role model.Role) (*model.User, error) {
	if err := s.users.UpdateRole(ctx, target.ID, role); err != nil {
		return nil, classify(err)
	}
	s.log.Info("user role changed",
		zap.Uint64("actor_id", actor.ID),
		zap.Uint64("user_id", target.ID),
		zap.String("from", string(target.Role)),
		zap.String("to", string(role)))
	return s.Get(ctx, target.ID)
}

func (s *UserService) actor(ctx context.Context, actorID uint64) (*model.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, storeFailure(err)
	}
	return actor, nil
}

func (s *UserService) pair(ctx context.Context, actorID, targetID uint64) (*model.User, *model.User, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	return actor, target, nil
}

func (s *UserService) issue(ctx context.Context, u *model.User) (*Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, storeFailure(err)
	}
	return &Session{User: u, Access: access, Refresh: refresh}, nil
}

func validEmail(s string) bool {
	if s == "" || len(s) > 255 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
