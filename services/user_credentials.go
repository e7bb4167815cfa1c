package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"campus-cafe/models"
	"campus-cafe/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminPasswordMinLen = 8
	AdminSessionTTL     = 12 * time.Hour
)

var (
	ErrUnauthorized = errors.New("invalid email or password")
	ErrThrottled    = errors.New("too many failed login attempts")
	ErrLastAdmin    = errors.New("cannot remove the last admin")

	adminEmailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

// ThrottledError carries how long the caller has to wait. errors.Is(err, ErrThrottled) holds.
type ThrottledError struct {
	WaitSeconds int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s, try again in %d seconds", ErrThrottled, e.WaitSeconds)
}

func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

type adminSession struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CredentialService manages back-office accounts (campus_cafe_users) and
// their login sessions (campus_cafe_sessions).
type CredentialService struct {
	kv       store.Store
	throttle *LoginThrottle
	log      *zap.Logger
	now      func() time.Time
	cost     int
	mu       sync.Mutex
}

func NewCredentialService(kv store.Store, throttle *LoginThrottle, log *zap.Logger, now func() time.Time) *CredentialService {
	return &CredentialService{kv: kv, throttle: throttle, log: log, now: now, cost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c *CredentialService) users(ctx context.Context) ([]models.AdminUser, error) {
	return store.LoadJSON(ctx, c.kv, KeyUsers, []models.AdminUser{}, c.log)
}

// ListAdmins returns admin emails sorted.
func (c *CredentialService) ListAdmins(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	users, err := c.users(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	sort.Strings(emails)
	return emails, nil
}

// AddAdmin creates the account or, if the email exists, replaces its password.
// created reports which one happened.
func (c *CredentialService) AddAdmin(ctx context.Context, email, password string) (created bool, err error) {
	email = normalizeEmail(email)
	if !adminEmailRe.MatchString(email) {
		return false, &models.ValidationError{Field: "email", Message: "please enter a valid email address"}
	}
	if len(password) < AdminPasswordMinLen {
		return false, &models.ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters long", AdminPasswordMinLen)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	users, err := c.users(ctx)
	if err != nil {
		return false, err
	}
	created = true
	for i := range users {
		if users[i].Email == email {
			users[i].PasswordHash = string(hash)
			created = false
			break
		}
	}
	if created {
		users = append(users, models.AdminUser{Email: email, PasswordHash: string(hash)})
	}
	if err := store.SaveJSON(ctx, c.kv, KeyUsers, users); err != nil {
		return false, err
	}
	c.log.Info("admin saved", zap.String("email", email), zap.Bool("created", created))
	return created, nil
}

// RemoveAdmin deletes the account and its sessions. The last admin cannot be removed.
func (c *CredentialService) RemoveAdmin(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	c.mu.Lock()
	defer c.mu.Unlock()
	users, err := c.users(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]models.AdminUser, 0, len(users))
	for _, u := range users {
		if u.Email != email {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(users) {
		return false, nil
	}
	if len(kept) == 0 {
		return true, ErrLastAdmin
	}
	if err := store.SaveJSON(ctx, c.kv, KeyUsers, kept); err != nil {
		return false, err
	}
	sessions, err := c.sessions(ctx)
	if err != nil {
		return true, err
	}
	for tok, s := range sessions {
		if s.Email == email {
			delete(sessions, tok)
		}
	}
	return true, store.SaveJSON(ctx, c.kv, KeySessions, sessions)
}

// EnsureSeedAdmin creates the configured admin when no account exists yet.
func (c *CredentialService) EnsureSeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	admins, err := c.ListAdmins(ctx)
	if err != nil || len(admins) > 0 {
		return err
	}
	_, err = c.AddAdmin(ctx, email, password)
	return err
}

// Verify checks the password under login throttling. A wrong email and a
// wrong password look the same to the caller.
func (c *CredentialService) Verify(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	wait, err := c.throttle.WaitSeconds(ctx, email)
	if err != nil {
		return err
	}
	if wait > 0 {
		return &ThrottledError{WaitSeconds: wait}
	}

	c.mu.Lock()
	users, err := c.users(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	var hash string
	for _, u := range users {
		if u.Email == email {
			hash = u.PasswordHash
			break
		}
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		if err := c.throttle.RecordFailed(ctx, email); err != nil {
			c.log.Warn("login throttle: record failure", zap.Error(err))
		}
		return ErrUnauthorized
	}
	if err := c.throttle.RecordSuccess(ctx, email); err != nil {
		c.log.Warn("login throttle: record success", zap.Error(err))
	}
	return nil
}

func (c *CredentialService) sessions(ctx context.Context) (map[string]adminSession, error) {
	return store.LoadJSON(ctx, c.kv, KeySessions, map[string]adminSession{}, c.log)
}

// Login verifies the password and issues a session token.
func (c *CredentialService) Login(ctx context.Context, email, password string) (string, error) {
	if err := c.Verify(ctx, email, password); err != nil {
		return "", err
	}
	token := uuid.NewString()
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	sessions, err := c.sessions(ctx)
	if err != nil {
		return "", err
	}
	for tok, s := range sessions {
		if !now.Before(s.ExpiresAt) {
			delete(sessions, tok)
		}
	}
	sessions[token] = adminSession{Email: normalizeEmail(email), ExpiresAt: now.Add(AdminSessionTTL)}
	if err := store.SaveJSON(ctx, c.kv, KeySessions, sessions); err != nil {
		return "", err
	}
	c.log.Info("admin logged in", zap.String("email", normalizeEmail(email)))
	return token, nil
}

// Authenticate resolves a session token to the admin email.
func (c *CredentialService) Authenticate(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sessions, err := c.sessions(ctx)
	if err != nil {
		return "", false, err
	}
	s, ok := sessions[token]
	if !ok || !c.now().Before(s.ExpiresAt) {
		return "", false, nil
	}
	return s.Email, true, nil
}

func (c *CredentialService) Logout(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessions, err := c.sessions(ctx)
	if err != nil {
		return err
	}
	if _, ok := sessions[token]; !ok {
		return nil
	}
	delete(sessions, token)
	return store.SaveJSON(ctx, c.kv, KeySessions, sessions)
}
