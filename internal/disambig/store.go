package disambig

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/edgebank/assist/internal/cache"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
	"github.com/google/uuid"
)

// Option is one concrete rule selection offered to the user when a fee query
// matched more than one candidate.
type Option struct {
	RuleID         string                       `json:"rule_id"`
	ProductLine    feeruledomain.ProductLine    `json:"product_line"`
	Discriminators feeruledomain.Discriminators `json:"discriminators"`
	// Label is the distinguishing field value shown to the user, e.g. the
	// competing charge_context.
	Label string `json:"label"`
}

type entry struct {
	Token     string    `json:"token"`
	Options   []Option  `json:"options"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

var ErrBackend = errors.New("disambiguation_backend_error")

// Store keeps pending multi-option fee queries until the user picks one.
// Tokens are single-use. Durability follows the configured cache backend:
// the memory backend does not survive restarts.
type Store struct {
	kv  cache.KV
	now func() time.Time
}

func NewStore(kv cache.KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Put stores the candidate set under a fresh token with the given TTL.
func (s *Store) Put(ctx context.Context, options []Option, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	now := s.now().UTC()
	payload, err := json.Marshal(entry{
		Token:     token,
		Options:   options,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, token, payload, ttl); err != nil {
		return "", errors.Join(ErrBackend, err)
	}
	return token, nil
}

// Take consumes the token. A second call for the same token misses.
func (s *Store) Take(ctx context.Context, token string) ([]Option, bool, error) {
	payload, ok, err := s.kv.Take(ctx, token)
	if err != nil {
		return nil, false, errors.Join(ErrBackend, err)
	}
	if !ok {
		return nil, false, nil
	}
	var e entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, false, err
	}
	if s.now().UTC().After(e.ExpiresAt) {
		return nil, false, nil
	}
	return e.Options, true, nil
}

// Peek returns the options without consuming the token, for callers that
// must first decide whether the user is answering the prompt at all.
func (s *Store) Peek(ctx context.Context, token string) ([]Option, bool, error) {
	payload, ok, err := s.kv.Get(ctx, token)
	if err != nil {
		return nil, false, errors.Join(ErrBackend, err)
	}
	if !ok {
		return nil, false, nil
	}
	var e entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, false, err
	}
	if s.now().UTC().After(e.ExpiresAt) {
		return nil, false, nil
	}
	return e.Options, true, nil
}

// AssociateSession remembers the pending token for a session so a later turn
// can resolve it without restating the token.
func (s *Store) AssociateSession(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	if err := s.kv.Set(ctx, sessionKey(sessionID), []byte(token), ttl); err != nil {
		return errors.Join(ErrBackend, err)
	}
	return nil
}

// PendingToken returns the session's outstanding token, if any, without
// consuming it.
func (s *Store) PendingToken(ctx context.Context, sessionID string) (string, bool, error) {
	payload, ok, err := s.kv.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return "", false, errors.Join(ErrBackend, err)
	}
	if !ok {
		return "", false, nil
	}
	return string(payload), true, nil
}

// ClearSession drops the session association once the token is resolved or
// abandoned.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	return s.kv.Delete(ctx, sessionKey(sessionID))
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

// Sweep evicts expired entries on memory backends.
func (s *Store) Sweep() {
	s.kv.Sweep()
}
