package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ridwanullahh/qurandb/internal/docstore"
	"github.com/ridwanullahh/qurandb/internal/models"
)

// Collections the auth service owns.
const (
	collUsers    = "users"
	collSessions = "sessions"
)

// Reasons attached to delivered one-time codes.
const (
	ReasonLogin        = "login"
	ReasonRegister     = "register"
	ReasonVerification = "verification"
	ReasonReset        = "reset"
)

const defaultSessionDuration = 7 * 24 * time.Hour

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Config tunes the auth service.
type Config struct {
	// RequireEmailVerification blocks login until the account's email has
	// been confirmed with a one-time code.
	RequireEmailVerification bool `yaml:"require_email_verification"`
	// OTPTriggers lists the flows that demand a one-time code; "login" and
	// "register" are recognized.
	OTPTriggers []string `yaml:"otp_triggers"`
	// SessionDuration is how long a session lives without a refresh.
	// Defaults to seven days.
	SessionDuration time.Duration `yaml:"session_duration"`
}

// Service implements accounts, sessions and role checks. Users live in the
// "users" collection, sessions in "sessions"; one-time codes are held in
// memory only.
type Service struct {
	db    *docstore.Store
	email EmailSender
	cfg   Config
	otps  *otpStore
	now   func() time.Time
	log   *slog.Logger
}

// New returns an auth service over db. email may be nil, which disables the
// OTP, verification and password reset flows.
func New(db *docstore.Store, email EmailSender, cfg Config, l *slog.Logger) *Service {
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = defaultSessionDuration
	}
	if l == nil {
		l = slog.Default()
	}
	s := &Service{db: db, email: email, cfg: cfg, now: time.Now, log: l}
	s.otps = newOTPStore(func() time.Time { return s.now() })
	return s
}

// LoginResult is the outcome of Login or VerifyOTP. When OTPRequired is set
// a code was emailed and the client must call VerifyOTP; otherwise Token and
// User carry an established session.
type LoginResult struct {
	OTPRequired bool              `json:"otpRequired"`
	Token       string            `json:"token,omitempty"`
	User        docstore.Document `json:"user,omitempty"`
}

// Register creates an account. profile fields are stored alongside the
// reserved ones; the password is stored as a salted hash, never raw. When
// email verification is required or the "register" OTP trigger is set, a
// code is sent immediately.
func (s *Service) Register(ctx context.Context, email, password string, profile docstore.Document) (docstore.Document, error) {
	if !emailRe.MatchString(email) {
		return nil, models.Validation(fmt.Sprintf("invalid email address %q", email))
	}
	if password == "" {
		return nil, models.MissingField("password")
	}
	if existing, err := s.findUser(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewAPIError(http.StatusConflict, models.ErrorCodeConflict, "an account with this email already exists")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, models.Internal(err.Error())
	}
	doc := profile.Clone()
	if doc == nil {
		doc = docstore.Document{}
	}
	doc["email"] = email
	doc["password"] = hash
	doc["verified"] = !s.cfg.RequireEmailVerification
	if _, ok := doc["roles"]; !ok {
		doc["roles"] = []any{"user"}
	}
	if _, ok := doc["permissions"]; !ok {
		doc["permissions"] = []any{}
	}
	user, err := s.db.Insert(ctx, collUsers, doc)
	if err != nil {
		return nil, err
	}
	if s.cfg.RequireEmailVerification || s.otpEnabled(ReasonRegister) {
		if err := s.sendOTP(ctx, email, ReasonVerification); err != nil {
			s.log.Warn("auth", "op", "register", "email", email, "err", err)
		}
	}
	return sanitize(user), nil
}

// Login checks credentials. When the "login" OTP trigger is configured and
// an email sender is available, a code is sent and the result reports
// OTPRequired instead of a session.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !verifyPassword(user.String("password"), password) {
		return nil, models.Unauthorized("invalid email or password")
	}
	if s.cfg.RequireEmailVerification && !user.Bool("verified") {
		return nil, models.Forbidden("email address not verified")
	}
	if s.otpEnabled(ReasonLogin) {
		if err := s.sendOTP(ctx, user.String("email"), ReasonLogin); err != nil {
			return nil, models.Internal("could not deliver verification code").Wrap(err)
		}
		return &LoginResult{OTPRequired: true}, nil
	}
	return s.establish(ctx, user)
}

// VerifyOTP completes an OTP login: it consumes the code sent for email and
// establishes a session.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	if err := s.otps.verify(email, code); err != nil {
		return nil, err
	}
	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.Unauthorized("invalid email or password")
	}
	return s.establish(ctx, user)
}

func (s *Service) establish(ctx context.Context, user docstore.Document) (*LoginResult, error) {
	token, err := s.CreateSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: sanitize(user)}, nil
}

// CreateSession opens a session for user and returns its bearer token.
func (s *Service) CreateSession(ctx context.Context, user docstore.Document) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", models.Internal(fmt.Sprintf("generating session token: %s", err))
	}
	token := hex.EncodeToString(raw)
	now := s.now()
	_, err := s.db.Insert(ctx, collSessions, docstore.Document{
		"token":   token,
		"userId":  user.UID(),
		"created": float64(now.UnixMilli()),
		"expires": float64(now.Add(s.cfg.SessionDuration).UnixMilli()),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// GetSession resolves token to its user. Expired sessions are removed on
// discovery.
func (s *Service) GetSession(ctx context.Context, token string) (docstore.Document, error) {
	sess, err := s.findSession(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.db.Query(collUsers).Where(func(d docstore.Document) bool {
		return d.UID() == sess.String("userId")
	}).First(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.Unauthorized("invalid session")
	}
	return sanitize(user), nil
}

// GetCurrentUser is GetSession under the name clients use.
func (s *Service) GetCurrentUser(ctx context.Context, token string) (docstore.Document, error) {
	return s.GetSession(ctx, token)
}

// RefreshSession extends the session's expiry by a full duration from now.
func (s *Service) RefreshSession(ctx context.Context, token string) error {
	sess, err := s.findSession(ctx, token)
	if err != nil {
		return err
	}
	now := s.now()
	_, err = s.db.Update(ctx, collSessions, sess.ID(), docstore.Document{
		"created": float64(now.UnixMilli()),
		"expires": float64(now.Add(s.cfg.SessionDuration).UnixMilli()),
	})
	return err
}

// Logout destroys the session for token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	_, err := s.db.BulkDelete(ctx, collSessions, func(d docstore.Document) bool {
		return d.String("token") == token
	})
	return err
}

func (s *Service) findSession(ctx context.Context, token string) (docstore.Document, error) {
	if token == "" {
		return nil, models.Unauthorized("missing session token")
	}
	sess, err := s.db.Query(collSessions).Eq("token", token).First(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, models.Unauthorized("invalid session")
	}
	if s.now().UnixMilli() >= sess.Int64("expires") {
		if err := s.db.Delete(ctx, collSessions, sess.ID()); err != nil {
			s.log.Warn("auth", "op", "session-expiry", "err", err)
		}
		return nil, models.Expired("session")
	}
	return sess, nil
}

// RequestEmailVerification sends a verification code to email.
func (s *Service) RequestEmailVerification(ctx context.Context, email string) error {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NotFound(fmt.Sprintf("user %q", email))
	}
	return s.sendOTP(ctx, user.String("email"), ReasonVerification)
}

// VerifyEmail consumes a verification code and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	if err := s.otps.verify(email, code); err != nil {
		return err
	}
	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NotFound(fmt.Sprintf("user %q", email))
	}
	_, err = s.db.Update(ctx, collUsers, user.UID(), docstore.Document{"verified": true})
	return err
}

// RequestPasswordReset sends a reset code when an account exists for email.
// It never reveals whether one does.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	if err := s.sendOTP(ctx, user.String("email"), ReasonReset); err != nil {
		s.log.Warn("auth", "op", "password-reset", "err", err)
	}
	return nil
}

// ResetPassword consumes a reset code and replaces the account password.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if newPassword == "" {
		return models.MissingField("password")
	}
	if err := s.otps.verify(email, code); err != nil {
		return err
	}
	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NotFound(fmt.Sprintf("user %q", email))
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return models.Internal(err.Error())
	}
	_, err = s.db.Update(ctx, collUsers, user.UID(), docstore.Document{"password": hash})
	return err
}

// HasRole reports whether user carries role. Unlike permissions, roles are
// not implied by admin; membership is literal.
func HasRole(user docstore.Document, role string) bool {
	return slices.Contains(user.Strings("roles"), role)
}

// HasPermission reports whether user carries the named permission. Admins
// hold every permission.
func HasPermission(user docstore.Document, permission string) bool {
	if slices.Contains(user.Strings("roles"), "admin") {
		return true
	}
	return slices.Contains(user.Strings("permissions"), permission)
}

// AssignRole adds role to the user matching key. Adding an already held
// role is a no-op.
func (s *Service) AssignRole(ctx context.Context, key, role string) (docstore.Document, error) {
	user, err := s.db.GetItem(ctx, collUsers, key)
	if err != nil {
		return nil, err
	}
	roles := user.Strings("roles")
	if !slices.Contains(roles, role) {
		roles = append(roles, role)
	}
	updated, err := s.db.Update(ctx, collUsers, user.UID(), docstore.Document{"roles": roles})
	if err != nil {
		return nil, err
	}
	return sanitize(updated), nil
}

// RemoveRole removes role from the user matching key. Removing an absent
// role is a no-op.
func (s *Service) RemoveRole(ctx context.Context, key, role string) (docstore.Document, error) {
	user, err := s.db.GetItem(ctx, collUsers, key)
	if err != nil {
		return nil, err
	}
	roles := user.Strings("roles")
	kept := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	updated, err := s.db.Update(ctx, collUsers, user.UID(), docstore.Document{"roles": kept})
	if err != nil {
		return nil, err
	}
	return sanitize(updated), nil
}

// findUser looks an account up by email, case-insensitively.
func (s *Service) findUser(ctx context.Context, email string) (docstore.Document, error) {
	needle := strings.ToLower(email)
	return s.db.Query(collUsers).Where(func(d docstore.Document) bool {
		return strings.ToLower(d.String("email")) == needle
	}).First(ctx)
}

func (s *Service) otpEnabled(trigger string) bool {
	return s.email != nil && slices.Contains(s.cfg.OTPTriggers, trigger)
}

func (s *Service) sendOTP(ctx context.Context, email, reason string) error {
	if s.email == nil {
		return models.Internal("no email sender configured")
	}
	code, err := s.otps.generate(email, reason)
	if err != nil {
		return err
	}
	return s.email.SendOTP(ctx, email, code, reason)
}

// sanitize strips credentials before a user document leaves the service.
func sanitize(user docstore.Document) docstore.Document {
	out := user.Clone()
	delete(out, "password")
	return out
}
