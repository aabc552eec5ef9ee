package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cafebotify/cafebot-backend/internal/cart"
	errs "github.com/cafebotify/cafebot-backend/internal/pkg/errors"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/store"
)

// State is the conversation position of one user. Terminal outcomes loop
// back to StateIdle; there is no separate "done" state.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingQuantity     State = "awaiting_quantity"
	StateCartReview           State = "cart_review"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateAwaitingFulfillment  State = "awaiting_fulfillment"
)

// Scratch carries transient mid-flow fields.
type Scratch struct {
	CurrentItem string `json:"current_item,omitempty"`
}

// Session is the live per-user conversational state. It is persisted as an
// opaque JSON blob; the layout is not a compatibility contract.
type Session struct {
	UserID    string     `json:"user_id"`
	State     State      `json:"state"`
	Cart      *cart.Cart `json:"cart"`
	Scratch   Scratch    `json:"scratch"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func newSession(userID string) *Session {
	return &Session{
		UserID: userID,
		State:  StateIdle,
		Cart:   cart.New(),
	}
}

// Sessions loads and saves Session blobs through the shared store. Handlers
// must Load before every mutation: another instance may have advanced the
// same user in the meantime.
type Sessions struct {
	log   *logger.Logger
	store store.Store
}

func NewSessions(baseLog *logger.Logger, st store.Store) *Sessions {
	return &Sessions{
		log:   baseLog.With("service", "Sessions"),
		store: st,
	}
}

func sessionKey(userID string) string {
	return "session:" + userID
}

// Load returns the stored session or a fresh idle one when absent.
func (s *Sessions) Load(ctx context.Context, userID string) (*Session, error) {
	raw, err := s.store.Get(ctx, sessionKey(userID))
	if errors.Is(err, errs.ErrNotFound) {
		return newSession(userID), nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// an undecodable session is unrecoverable conversational state;
		// restart the user rather than failing every message forever
		s.log.Warn("Resetting undecodable session", "user_id", userID, "error", err)
		return newSession(userID), nil
	}
	sess.UserID = userID
	if sess.Cart == nil {
		sess.Cart = cart.New()
	}
	if sess.State == "" {
		sess.State = StateIdle
	}
	return &sess, nil
}

func (s *Sessions) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.UserID == "" {
		return errs.ErrInvalidArgument
	}
	sess.UpdatedAt = time.Now()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.store.Set(ctx, sessionKey(sess.UserID), string(raw), 0)
}

// Reset returns the user to a fresh idle session. The key stays in the
// store; only its contents are reset.
func (s *Sessions) Reset(ctx context.Context, userID string) (*Session, error) {
	sess := newSession(userID)
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
