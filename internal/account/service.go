// Package account handles signup, login, token rotation and profiles.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"studynotion/internal/apperr"
	"studynotion/internal/auth"
	"studynotion/internal/logging"
	"studynotion/internal/model"
	"studynotion/internal/store"
)

// SignupInput is the signup request body.
type SignupInput struct {
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"accountType"`
}

// Session is what a successful signup, login or refresh hands back.
type Session struct {
	Token        string            `json:"token"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	User         *model.PublicUser `json:"user,omitempty"`
}

// Service coordinates users, sessions and tokens.
type Service struct {
	users       store.Users
	sessions    store.Sessions
	tokens      *auth.Tokens
	revocations auth.Revocations
	log         logging.Logger
	hashCost    int
	now         func() time.Time
}

func NewService(users store.Users, sessions store.Sessions, tokens *auth.Tokens, revocations auth.Revocations, log logging.Logger) *Service {
	return &Service{
		users:       users,
		sessions:    sessions,
		tokens:      tokens,
		revocations: revocations,
		log:         log,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// Signup registers a user and logs them in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return Session{}, apperr.Validation("Email & password required")
	}
	accountType := model.AccountStudent
	if in.AccountType != "" {
		accountType = model.AccountType(strings.ToLower(in.AccountType))
		if !accountType.Valid() {
			return Session{}, apperr.Validation("accountType must be student or instructor")
		}
	}

	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return Session{}, apperr.Duplicate("User already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, apperr.Internal("could not create user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return Session{}, apperr.Internal("could not create user", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, apperr.Internal("could not create user", err)
	}
	user := model.User{
		ID:           id.String(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: string(hash),
		AccountType:  accountType,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return Session{}, apperr.Duplicate("User already exists")
		}
		return Session{}, apperr.Internal("could not create user", err)
	}
	s.log.Info(ctx, "user signed up", "user_id", user.ID, "account_type", string(accountType))

	return s.openSession(ctx, user)
}

// Login verifies credentials and opens a new session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, apperr.Auth("Invalid credentials")
		}
		return Session{}, apperr.Internal("login failed", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, apperr.Auth("Invalid credentials")
	}
	return s.openSession(ctx, user)
}

// Refresh rotates a refresh token: its session is revoked and a new one
// issued, so each refresh token works once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, apperr.Validation("refreshToken is required")
	}
	claims, err := s.tokens.Parse(refreshToken, auth.KindRefresh)
	if err != nil {
		return Session{}, apperr.Auth("Invalid refresh token")
	}
	sess, err := s.sessions.SessionByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, apperr.Auth("Invalid refresh token")
		}
		return Session{}, apperr.Internal("refresh failed", err)
	}
	if !sess.Active(s.now()) || sess.UserID != claims.Subject {
		return Session{}, apperr.Auth("Invalid refresh token")
	}
	user, err := s.users.UserByID(ctx, sess.UserID)
	if err != nil {
		return Session{}, apperr.Auth("Invalid refresh token")
	}
	if err := s.sessions.RevokeSession(ctx, sess.ID); err != nil {
		if errors.Is(err, store.ErrSessionRevoked) || errors.Is(err, store.ErrNotFound) {
			return Session{}, apperr.Auth("Invalid refresh token")
		}
		return Session{}, apperr.Internal("refresh failed", err)
	}
	out, err := s.openSession(ctx, user)
	if err != nil {
		return Session{}, err
	}
	out.User = nil
	return out, nil
}

// Logout revokes the presented access token and, when given, the session
// behind refreshToken.
func (s *Service) Logout(ctx context.Context, access auth.Claims, refreshToken string) error {
	if access.ExpiresAt != nil {
		if err := s.revocations.Revoke(ctx, access.ID, access.ExpiresAt.Time); err != nil {
			return apperr.Internal("logout failed", err)
		}
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.Parse(refreshToken, auth.KindRefresh)
	if err != nil || claims.Subject != access.Subject {
		return apperr.Auth("Invalid refresh token")
	}
	err = s.sessions.RevokeSession(ctx, claims.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrSessionRevoked) {
		return apperr.Internal("logout failed", err)
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, userID string) (model.PublicUser, error) {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.PublicUser{}, apperr.NotFound("user not found")
		}
		return model.PublicUser{}, apperr.Internal("could not load profile", err)
	}
	return user.Public(), nil
}

// ProfileUpdate carries the optional name fields of PATCH /profile.
type ProfileUpdate struct {
	FirstName *string `json:"firstname"`
	LastName  *string `json:"lastname"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (model.PublicUser, error) {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.PublicUser{}, apperr.NotFound("user not found")
		}
		return model.PublicUser{}, apperr.Internal("could not update profile", err)
	}
	first, last := user.FirstName, user.LastName
	if in.FirstName != nil {
		first = strings.TrimSpace(*in.FirstName)
		if first == "" {
			return model.PublicUser{}, apperr.Validation("firstname cannot be empty")
		}
	}
	if in.LastName != nil {
		last = strings.TrimSpace(*in.LastName)
	}
	updated, err := s.users.UpdateUserName(ctx, userID, first, last)
	if err != nil {
		return model.PublicUser{}, apperr.Internal("could not update profile", err)
	}
	return updated.Public(), nil
}

func (s *Service) openSession(ctx context.Context, user model.User) (Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, apperr.Internal("could not open session", err)
	}
	now := s.now().UTC()
	sess := model.Session{
		ID:        id.String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return Session{}, apperr.Internal("could not open session", err)
	}
	pair, err := s.tokens.Issue(user.ID, user.Email, sess.ID)
	if err != nil {
		return Session{}, apperr.Internal("could not issue token", err)
	}
	public := user.Public()
	return Session{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExp,
		User:         &public,
	}, nil
}
