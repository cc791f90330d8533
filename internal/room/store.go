package room

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	codeAlphabet       = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	defaultCodeLength  = 6
	minCodeLength      = 6
	maxCodeLength      = 8
	defaultMaxAttempts = 10
	releaseTimeout     = 5 * time.Second
)

// CodeClaimer reserves room codes outside this process so that instances sharing a
// directory never hand out the same code.
type CodeClaimer interface {
	Claim(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}

// Bindings is the connection -> session association kept by the connection registry.
type Bindings interface {
	Bind(connID, code string)
	Unbind(connID string) string
	SessionOf(connID string) (string, bool)
}

// StoreOptions configures a Store. Zero values fall back to defaults.
type StoreOptions struct {
	CodeLength     int
	DefaultProblem string
	TimerSeconds   int
	MaxAttempts    int
	Claimer        CodeClaimer
	Bindings       Bindings
	Logger         *zap.Logger
	Now            func() time.Time
	Random         io.Reader
}

// Store holds live sessions keyed by code.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	codeLen        int
	defaultProblem string
	timerSeconds   int
	maxAttempts    int
	claimer        CodeClaimer
	bindings       Bindings
	logger         *zap.Logger
	now            func() time.Time
	random         io.Reader
}

// NewStore creates an empty session store.
func NewStore(opts StoreOptions) *Store {
	s := &Store{
		sessions:       make(map[string]*Session),
		codeLen:        opts.CodeLength,
		defaultProblem: opts.DefaultProblem,
		timerSeconds:   opts.TimerSeconds,
		maxAttempts:    opts.MaxAttempts,
		claimer:        opts.Claimer,
		bindings:       opts.Bindings,
		logger:         opts.Logger,
		now:            opts.Now,
		random:         opts.Random,
	}
	if s.codeLen < minCodeLength || s.codeLen > maxCodeLength {
		s.codeLen = defaultCodeLength
	}
	if s.defaultProblem == "" {
		s.defaultProblem = DefaultProblem
	}
	if s.timerSeconds <= 0 {
		s.timerSeconds = DefaultTimerSeconds
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.random == nil {
		s.random = rand.Reader
	}
	return s
}

// Create inserts a fully initialized session with a fresh code and creatorConnID as its
// only participant. The creator is bound in the registry before the session becomes visible.
func (s *Store) Create(ctx context.Context, problemSlug, creatorConnID string) (*Session, error) {
	if problemSlug == "" {
		problemSlug = s.defaultProblem
	}
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}

		s.mu.RLock()
		_, taken := s.sessions[code]
		s.mu.RUnlock()
		if taken {
			continue
		}

		claimed := false
		if s.claimer != nil {
			ok, err := s.claimer.Claim(ctx, code)
			switch {
			case err != nil:
				s.logger.Warn("room code claim failed, relying on local uniqueness", zap.String("code", code), zap.Error(err))
			case !ok:
				s.logger.Debug("room code claimed elsewhere", zap.String("code", code))
				continue
			default:
				claimed = true
			}
		}

		sess := newSession(code, problemSlug, creatorConnID, s.now())
		sess.Timer.Duration = s.timerSeconds

		s.mu.Lock()
		if _, taken := s.sessions[code]; taken {
			s.mu.Unlock()
			if claimed {
				s.release(code)
			}
			continue
		}
		s.sessions[code] = sess
		if s.bindings != nil {
			s.bindings.Bind(creatorConnID, code)
		}
		s.mu.Unlock()

		s.logger.Info("room created", zap.String("code", code), zap.String("creator", creatorConnID))
		return sess, nil
	}
	return nil, ErrCodeSpaceExhausted
}

// Get returns the live session for code.
func (s *Store) Get(code string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[code]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return sess, nil
}

// Delete removes code. Deleting an unknown code is a no-op.
func (s *Store) Delete(code string) {
	s.mu.Lock()
	_, ok := s.sessions[code]
	delete(s.sessions, code)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.logger.Info("room deleted", zap.String("code", code))
	if s.claimer != nil {
		go s.release(code)
	}
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Codes returns the live session codes in sorted order.
func (s *Store) Codes() []string {
	s.mu.RLock()
	codes := make([]string, 0, len(s.sessions))
	for code := range s.sessions {
		codes = append(codes, code)
	}
	s.mu.RUnlock()
	sort.Strings(codes)
	return codes
}

// Info returns the public summary of a live session.
func (s *Store) Info(code string) (Info, error) {
	sess, err := s.Get(code)
	if err != nil {
		return Info{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return Info{}, ErrRoomNotFound
	}
	return sess.info(), nil
}

func (s *Store) release(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := s.claimer.Release(ctx, code); err != nil {
		s.logger.Warn("release room code claim", zap.String("code", code), zap.Error(err))
	}
}

// generateCode draws codeLen characters from codeAlphabet. The alphabet has 32 symbols
// so a byte modulo its length is unbiased.
func (s *Store) generateCode() (string, error) {
	b := make([]byte, s.codeLen)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return "", err
	}
	code := make([]byte, s.codeLen)
	for i := range code {
		code[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(code), nil
}
