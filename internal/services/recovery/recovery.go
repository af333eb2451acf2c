package recovery

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	TokenTTL        = time.Hour
	MaxActiveTokens = 3
	tokenBytes      = 32
)

var (
	ErrTooManyTokens = fmt.Errorf("recovery: more than %d active tokens", MaxActiveTokens)
	ErrInvalidToken  = errors.New("recovery: token invalid, expired or already used")
)

// issueScript prunes expired tokens of an email, then stores a new one only
// while fewer than the limit remain. Running it as one script keeps concurrent
// requests from going over the limit.
//
// KEYS: email set, token key. ARGV: now, limit, expiry, ttl seconds, email, token.
var issueScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[2], ARGV[5], 'EX', ARGV[4])
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[6])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return 1
`)

// Mailer delivers the recovery link. Delivery mechanics live outside this service.
type Mailer interface {
	SendRecovery(ctx context.Context, email, name, link string, expiresAt time.Time) error
}

// LogMailer writes recovery links to the log instead of sending mail.
type LogMailer struct {
	Log logrus.FieldLogger
}

func (m LogMailer) SendRecovery(ctx context.Context, email, name, link string, expiresAt time.Time) error {
	m.Log.WithFields(logrus.Fields{
		"email":      email,
		"name":       name,
		"link":       link,
		"expires_at": expiresAt.Format(time.RFC3339),
	}).Info("password recovery link")
	return nil
}

type Service struct {
	client  *redis.Client
	mailer  Mailer
	baseURL string
	now     func() time.Time
}

func NewService(client *redis.Client, mailer Mailer, baseURL string) *Service {
	return &Service{
		client:  client,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func tokenKey(token string) string {
	return fmt.Sprintf("recovery_token:%s", token)
}

func emailKey(email string) string {
	return fmt.Sprintf("recovery_email:%s", strings.ToLower(email))
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Issue creates a single-use token for email and hands the link to the mailer.
// Expired tokens do not count towards the limit.
func (s *Service) Issue(ctx context.Context, email, name string) (string, time.Time, error) {
	now := s.now()
	ekey := emailKey(email)

	token, err := generateToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("recovery: generate token: %w", err)
	}
	expiresAt := now.Add(TokenTTL)

	stored, err := issueScript.Run(ctx, s.client, []string{ekey, tokenKey(token)},
		now.Unix(), MaxActiveTokens, expiresAt.Unix(), int64(TokenTTL/time.Second),
		strings.ToLower(email), token).Int()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("recovery: save token: %w", err)
	}
	if stored == 0 {
		return "", time.Time{}, ErrTooManyTokens
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	if err := s.mailer.SendRecovery(ctx, email, name, link, expiresAt); err != nil {
		return token, expiresAt, fmt.Errorf("recovery: send: %w", err)
	}
	return token, expiresAt, nil
}

// Validate returns the email a token was issued for without consuming it.
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	email, err := s.client.Get(ctx, tokenKey(token)).Result()
	if err == redis.Nil {
		return "", ErrInvalidToken
	} else if err != nil {
		return "", fmt.Errorf("recovery: read token: %w", err)
	}
	return email, nil
}

// Consume validates and burns token in one step.
func (s *Service) Consume(ctx context.Context, token string) (string, error) {
	email, err := s.client.GetDel(ctx, tokenKey(token)).Result()
	if err == redis.Nil {
		return "", ErrInvalidToken
	} else if err != nil {
		return "", fmt.Errorf("recovery: consume token: %w", err)
	}
	if err := s.client.ZRem(ctx, emailKey(email), token).Err(); err != nil {
		return email, fmt.Errorf("recovery: release token: %w", err)
	}
	return email, nil
}
