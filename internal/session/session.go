package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"domiflash/internal/models"
)

var ErrNotFound = errors.New("session: not found or expired")

// Session is the server-side half of a login. The JWT handed to the client
// only names it; expiry is governed by LastActivity and Timeout.
type Session struct {
	ID           string        `json:"id"`
	UserID       uint          `json:"user_id"`
	Role         models.Role   `json:"role"`
	RememberMe   bool          `json:"remember_me"`
	LoginTime    time.Time     `json:"login_time"`
	LastActivity time.Time     `json:"last_activity"`
	Timeout      time.Duration `json:"timeout"`
}

// Info is a point-in-time view of a session's remaining lifetime, in minutes.
type Info struct {
	Session
	TimeSinceActivity float64 `json:"time_since_activity"`
	TimeUntilTimeout  float64 `json:"time_until_timeout"`
	IsExpired         bool    `json:"is_expired"`
	NeedsWarning      bool    `json:"needs_warning"`
}

type Manager struct {
	client   *redis.Client
	timeout  time.Duration
	warning  time.Duration
	remember time.Duration
	now      func() time.Time
}

func NewManager(client *redis.Client, timeout, warning, remember time.Duration) *Manager {
	return &Manager{
		client:   client,
		timeout:  timeout,
		warning:  warning,
		remember: remember,
		now:      time.Now,
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func userSessionsKey(userID uint) string {
	return fmt.Sprintf("user_sessions:%d", userID)
}

func lastOrderKey(id string) string {
	return fmt.Sprintf("session:%s:last_order", id)
}

// Start opens a session. Remember-me sessions get the long lifetime as
// their inactivity window.
func (m *Manager) Start(ctx context.Context, userID uint, role models.Role, rememberMe bool) (*Session, error) {
	now := m.now()
	timeout := m.timeout
	if rememberMe {
		timeout = m.remember
	}

	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Role:         role,
		RememberMe:   rememberMe,
		LoginTime:    now,
		LastActivity: now,
		Timeout:      timeout,
	}
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}

	pipe := m.client.TxPipeline()
	pipe.SAdd(ctx, userSessionsKey(userID), s.ID)
	pipe.Expire(ctx, userSessionsKey(userID), m.remember)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("session: index user session: %w", err)
	}

	return s, nil
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := m.client.Set(ctx, sessionKey(s.ID), data, s.Timeout).Err(); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Get loads a live session. Expired sessions are removed and reported as ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	val, err := m.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}

	if m.Info(&s).IsExpired {
		_ = m.End(ctx, &s)
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Manager) Info(s *Session) Info {
	since := m.now().Sub(s.LastActivity).Minutes()
	until := s.Timeout.Minutes() - since

	return Info{
		Session:           *s,
		TimeSinceActivity: since,
		TimeUntilTimeout:  until,
		IsExpired:         until <= 0,
		NeedsWarning:      until <= m.warning.Minutes(),
	}
}

// Touch records activity now and restarts the inactivity window.
func (m *Manager) Touch(ctx context.Context, s *Session) error {
	s.LastActivity = m.now()
	return m.save(ctx, s)
}

// End removes the session and anything stored alongside it.
func (m *Manager) End(ctx context.Context, s *Session) error {
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, sessionKey(s.ID), lastOrderKey(s.ID))
	pipe.SRem(ctx, userSessionsKey(s.UserID), s.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: end: %w", err)
	}
	return nil
}

// EndAllForUser drops every session of a user, e.g. after deactivation.
func (m *Manager) EndAllForUser(ctx context.Context, userID uint) (int, error) {
	ids, err := m.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("session: list user sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids)*2+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id), lastOrderKey(id))
	}
	keys = append(keys, userSessionsKey(userID))

	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("session: end user sessions: %w", err)
	}
	return len(ids), nil
}

// RememberOrder stores v as the last checkout result of the session.
func (m *Manager) RememberOrder(ctx context.Context, s *Session, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: encode last order: %w", err)
	}
	if err := m.client.Set(ctx, lastOrderKey(s.ID), data, s.Timeout).Err(); err != nil {
		return fmt.Errorf("session: save last order: %w", err)
	}
	return nil
}

// LastOrder decodes the value saved by RememberOrder into out.
func (m *Manager) LastOrder(ctx context.Context, s *Session, out interface{}) (bool, error) {
	val, err := m.client.Get(ctx, lastOrderKey(s.ID)).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("session: get last order: %w", err)
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, fmt.Errorf("session: decode last order: %w", err)
	}
	return true, nil
}
