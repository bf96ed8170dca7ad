package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"reportit/metrics"
	"reportit/models"
	"reportit/store"
	"reportit/utils"
)

type TokenIssuer interface {
	GenerateToken(id string, role string) (string, error)
}

type SignupInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Contact  string      `json:"contact"`
	Role     models.Role `json:"role"`
}

type LoginResult struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

type MeResult struct {
	Name string      `json:"name"`
	Role models.Role `json:"role"`
	Date time.Time   `json:"date"`
}

type AuthService struct {
	users      store.UserStore
	ledger     *Ledger
	audit      *Auditor
	tokens     TokenIssuer
	notices    *AdminNotices
	log        *zap.Logger
	bcryptCost int
	sessionTTL time.Duration
	now        func() time.Time
}

type AuthConfig struct {
	BcryptCost int
	SessionTTL time.Duration
}

func NewAuthService(users store.UserStore, ledger *Ledger, audit *Auditor, tokens TokenIssuer,
	notices *AdminNotices, log *zap.Logger, cfg AuthConfig) *AuthService {
	return &AuthService{
		users:      users,
		ledger:     ledger,
		audit:      audit,
		tokens:     tokens,
		notices:    notices,
		log:        log,
		bcryptCost: cfg.BcryptCost,
		sessionTTL: cfg.SessionTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Signup creates an unapproved account.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Contact = strings.TrimSpace(in.Contact)
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Contact == "" {
		return nil, validation("Missing fields")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, validation("Invalid email")
	}
	if in.Role == "" {
		in.Role = models.RoleFieldAgent
	}
	if !in.Role.Valid() {
		return nil, validation("Invalid role")
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, internal(err)
	}
	now := s.now()
	u := &models.User{
		Name:      in.Name,
		Email:     in.Email,
		Password:  hash,
		Contact:   in.Contact,
		Role:      in.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, internal(err)
	}
	s.notices.ApprovalRequired(u, "New account registered.")
	return u, nil
}

// Login checks the password first so approval state is only revealed to
// callers that know it.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validation("Email and password are required")
	}
	u, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		metrics.Logins.WithLabelValues("bad_credentials").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, internal(err)
	}
	if utils.VerifyPassword(u.Password, password) != nil {
		metrics.Logins.WithLabelValues("bad_credentials").Inc()
		return nil, ErrInvalidCredentials
	}
	if !u.IsApproved {
		metrics.Logins.WithLabelValues("not_approved").Inc()
		return nil, ErrNotApproved
	}

	res, err := s.establishSession(ctx, u, models.ActionLogin, meta)
	if err != nil {
		return nil, err
	}
	metrics.Logins.WithLabelValues("success").Inc()
	return res, nil
}

// establishSession is shared by password login and device auto-login:
// flush the user's open sessions, issue a token, open a new session and
// audit the action.
func (s *AuthService) establishSession(ctx context.Context, u *models.User, action string, meta RequestMeta) (*LoginResult, error) {
	if _, err := s.ledger.CommitElapsedTime(ctx, u.ID); err != nil {
		s.log.Error("time commit failed", zap.String("user_id", u.ID.Hex()), zap.String("action", action), zap.Error(err))
	}

	token, err := s.tokens.GenerateToken(u.ID.Hex(), string(u.Role))
	if err != nil {
		return nil, internal(err)
	}
	if _, err := s.ledger.StartSession(ctx, u.ID, s.sessionTTL); err != nil {
		return nil, internal(err)
	}
	metrics.SessionsStarted.WithLabelValues(action).Inc()
	s.audit.Record(ctx, u.ID, action, meta)

	return &LoginResult{Token: token, User: u.Summary()}, nil
}

// Logout commits the caller's sessions. It succeeds even when the commit fails.
func (s *AuthService) Logout(ctx context.Context, userID primitive.ObjectID, meta RequestMeta) error {
	if _, err := s.ledger.CommitElapsedTime(ctx, userID); err != nil {
		s.log.Error("time commit failed", zap.String("user_id", userID.Hex()), zap.String("action", models.ActionLogout), zap.Error(err))
	}
	s.audit.Record(ctx, userID, models.ActionLogout, meta)
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID primitive.ObjectID) (*MeResult, error) {
	u, err := s.users.FindUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	return &MeResult{Name: u.Name, Role: u.Role, Date: s.now()}, nil
}

// SeedAdmin creates an approved admin unless the email is already taken.
// It reports whether a user was created.
func (s *AuthService) SeedAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, nil
	}
	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return false, err
	}
	now := s.now()
	u := &models.User{
		Name:       name,
		Email:      email,
		Password:   hash,
		Role:       models.RoleAdmin,
		IsApproved: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
