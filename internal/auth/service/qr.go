package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/store"
	"github.com/civicworks/townhall/pkg/clockx"
	"github.com/civicworks/townhall/pkg/cryptox"
	"github.com/civicworks/townhall/pkg/metricsx"
	"github.com/civicworks/townhall/pkg/slogx"
)

const DefaultQRSessionTTL = 5 * time.Minute

// QRLoginService runs the cross-device login handshake. An unauthenticated
// device creates a session and shows its ID as a QR code, a signed in
// device confirms it, and the first device claims a token pair. Claiming
// deletes the session, so a second claim reports ErrSessionNotFound.
type QRLoginService struct {
	Store    store.QRSessions
	Accounts store.Accounts
	Tokens   *TokenService
	Clock    clockx.Clock
	TTL      time.Duration
	Metrics  *metricsx.Metrics

	watchers qrWatchers
}

func (s *QRLoginService) now() time.Time {
	return clockOrReal(s.Clock).Now()
}

func (s *QRLoginService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultQRSessionTTL
	}
	return s.TTL
}

// Create starts a pending session with a 128-bit random ID.
func (s *QRLoginService) Create(ctx context.Context) (domain.QRSession, error) {
	now := s.now()

	for range 3 {
		id, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return domain.QRSession{}, err
		}
		sess := domain.QRSession{
			ID:        id,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl()),
			State:     domain.QRPending,
		}

		err = s.Store.CreateQRSession(ctx, sess)
		if errors.Is(err, store.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return domain.QRSession{}, err
		}

		s.Metrics.QR("created")
		return sess, nil
	}
	return domain.QRSession{}, fmt.Errorf("qr: could not allocate a unique session id")
}

// Status reports the session as stored, with State set to QRExpired once
// its deadline has passed.
func (s *QRLoginService) Status(ctx context.Context, id string) (domain.QRSession, error) {
	sess, err := s.Store.GetQRSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.QRSession{}, ErrSessionNotFound
		}
		return domain.QRSession{}, err
	}
	if sess.ExpiredAt(s.now()) {
		sess.State = domain.QRExpired
	}
	return sess, nil
}

// Confirm binds accountID to a pending session. Of concurrent confirmations
// exactly one succeeds; the rest get ErrSessionAlreadyUsed.
func (s *QRLoginService) Confirm(ctx context.Context, id, accountID string) (domain.QRSession, error) {
	l := slogx.FromContext(ctx)

	sess, err := s.Store.ConfirmQRSession(ctx, id, accountID, s.now())
	if err != nil {
		err = mapQRError(err)
		switch {
		case errors.Is(err, ErrSessionAlreadyUsed):
			s.Metrics.QR("conflict")
			l.Warn("qr session confirmed twice", slog.String("account_id", accountID))
		case errors.Is(err, ErrSessionExpired):
			s.Metrics.QR("expired")
			s.watchers.publish(id, domain.QRExpired)
		}
		return domain.QRSession{}, err
	}

	s.Metrics.QR("confirmed")
	s.watchers.publish(id, domain.QRConfirmed)
	l.Info("qr session confirmed", slog.String("account_id", accountID))
	return sess, nil
}

// Claim removes a confirmed session and issues a token pair for the bound
// account.
func (s *QRLoginService) Claim(ctx context.Context, id string) (domain.Principal, domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	sess, err := s.Store.ClaimQRSession(ctx, id, s.now())
	if err != nil {
		err = mapQRError(err)
		if errors.Is(err, ErrSessionExpired) {
			s.Metrics.QR("expired")
			s.watchers.publish(id, domain.QRExpired)
		}
		return domain.Principal{}, domain.TokenPair{}, err
	}

	acct, err := s.Accounts.GetAccountByID(ctx, sess.BoundUser)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, domain.TokenPair{}, ErrAccountNotFound
		}
		return domain.Principal{}, domain.TokenPair{}, err
	}
	if !acct.Active {
		return domain.Principal{}, domain.TokenPair{}, ErrAccountInactive
	}

	pair, err := s.Tokens.IssuePair(ctx, acct.ID)
	if err != nil {
		return domain.Principal{}, domain.TokenPair{}, err
	}

	s.Metrics.QR("claimed")
	l.Info("qr session claimed", slog.String("account_id", acct.ID))
	return acct.Principal(), pair, nil
}

// Reap deletes every session past its deadline, whatever its state.
func (s *QRLoginService) Reap(ctx context.Context, now time.Time) (int, error) {
	n, err := s.Store.DeleteExpiredQRSessions(ctx, now)
	if err != nil {
		return 0, err
	}
	s.Metrics.Reaped("qr_sessions", n)
	return n, nil
}

// Watch subscribes to state changes of session id made through this
// process. The channel keeps only the latest state; call cancel when done.
func (s *QRLoginService) Watch(id string) (<-chan domain.QRState, func()) {
	return s.watchers.subscribe(id)
}

func mapQRError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrSessionAlreadyUsed
	case errors.Is(err, store.ErrExpired):
		return ErrSessionExpired
	case errors.Is(err, store.ErrNotReady):
		return ErrSessionNotConfirmed
	default:
		return err
	}
}

type qrWatchers struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.QRState]struct{}
}

func (w *qrWatchers) subscribe(id string) (<-chan domain.QRState, func()) {
	ch := make(chan domain.QRState, 1)

	w.mu.Lock()
	if w.subs == nil {
		w.subs = make(map[string]map[chan domain.QRState]struct{})
	}
	if w.subs[id] == nil {
		w.subs[id] = make(map[chan domain.QRState]struct{})
	}
	w.subs[id][ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.subs[id], ch)
			if len(w.subs[id]) == 0 {
				delete(w.subs, id)
			}
		})
	}
	return ch, cancel
}

func (w *qrWatchers) publish(id string, state domain.QRState) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for ch := range w.subs[id] {
		// Drop a stale, unread state so the newest one always fits.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}
