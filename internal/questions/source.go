// Package questions owns the A/B question pool: a remote store when one is configured
// and reachable, otherwise a local pool backed by a snapshot file.
package questions

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dailypoll/backend/internal/models"
)

// Origin names which pool served or accepted a question.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// Remote is the optional authoritative question store.
type Remote interface {
	GetQuestions(ctx context.Context) ([]models.Question, error)
	AddQuestion(ctx context.Context, q models.Question) error
}

// Defaults is the built-in pool used when no snapshot can be read.
var Defaults = []models.Question{
	{A: "出街食飯", B: "叫外賣返屋企", Tag: "food"},
	{A: "聽歌", B: "追劇", Tag: "entertainment"},
	{A: "搭叮叮", B: "搭小巴", Tag: "transport"},
}

// ErrInvalidQuestion is returned by Add when either option is blank.
var ErrInvalidQuestion = errors.New("both options are required")

// Source hands out questions and accepts new ones.
type Source struct {
	remote   Remote // nil when not configured
	snapshot Snapshot
	timeout  time.Duration
	logger   *zap.Logger

	mu   sync.RWMutex
	pool []models.Question
}

// NewSource loads the local pool from snapshot, falling back to Defaults when the snapshot
// is missing, unreadable or empty. remote may be nil.
func NewSource(ctx context.Context, remote Remote, snapshot Snapshot, timeout time.Duration, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Source{remote: remote, snapshot: snapshot, timeout: timeout, logger: logger}
	pool, err := snapshot.Load(ctx)
	if err != nil || len(pool) == 0 {
		if err != nil {
			logger.Warn("question snapshot unavailable, using built-in defaults", zap.Error(err))
		}
		pool = append([]models.Question(nil), Defaults...)
	}
	s.pool = pool
	logger.Info("question pool loaded", zap.Int("count", len(pool)), zap.Bool("remote", remote != nil))
	return s
}

// Pick returns a uniformly random question, preferring the remote pool.
func (s *Source) Pick(ctx context.Context) (models.Question, Origin) {
	if s.remote != nil {
		list, err := s.fetchRemote(ctx)
		switch {
		case err != nil:
			s.logger.Warn("remote question fetch failed, using local pool", zap.Error(err))
		case len(list) > 0:
			return list[rand.Intn(len(list))], OriginRemote
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.pool) == 0 {
		return Defaults[rand.Intn(len(Defaults))], OriginLocal
	}
	return s.pool[rand.Intn(len(s.pool))], OriginLocal
}

// ReloadResult reports the pool size after a reload and where it came from.
type ReloadResult struct {
	Count  int
	Origin Origin
}

// Reload replaces the local pool with the remote list when available and writes the
// snapshot. Without a usable remote the local pool is kept as is.
func (s *Source) Reload(ctx context.Context) (ReloadResult, error) {
	var remote []models.Question
	if s.remote != nil {
		list, err := s.fetchRemote(ctx)
		if err != nil {
			s.logger.Warn("remote question reload failed, keeping local pool", zap.Error(err))
		}
		remote = normalize(list)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	origin := OriginLocal
	if len(remote) > 0 {
		s.pool = remote
		origin = OriginRemote
	}
	if err := s.snapshot.Save(ctx, s.pool); err != nil {
		return ReloadResult{}, fmt.Errorf("save question snapshot: %w", err)
	}
	return ReloadResult{Count: len(s.pool), Origin: origin}, nil
}

// Add stores q in the remote pool when configured, otherwise (or when the remote
// rejects it) appends it to the local pool and persists the snapshot.
func (s *Source) Add(ctx context.Context, q models.Question) (Origin, error) {
	q.A, q.B, q.Tag = strings.TrimSpace(q.A), strings.TrimSpace(q.B), strings.TrimSpace(q.Tag)
	if q.A == "" || q.B == "" {
		return "", ErrInvalidQuestion
	}

	if s.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.remote.AddQuestion(rctx, q)
		cancel()
		if err == nil {
			return OriginRemote, nil
		}
		s.logger.Warn("remote add question failed, appending locally", zap.Error(err))
	}

	s.mu.Lock()
	s.pool = append(s.pool, q)
	snapshot := append([]models.Question(nil), s.pool...)
	s.mu.Unlock()

	if err := s.snapshot.Save(ctx, snapshot); err != nil {
		// The question is in memory; it is lost only on restart.
		s.logger.Error("persist question snapshot failed", zap.Error(err))
	}
	return OriginLocal, nil
}

// Size returns the number of questions in the local pool.
func (s *Source) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pool)
}

func (s *Source) fetchRemote(ctx context.Context) ([]models.Question, error) {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	list, err := s.remote.GetQuestions(rctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
	return list, nil
}

func normalize(list []models.Question) []models.Question {
	out := make([]models.Question, 0, len(list))
	for _, q := range list {
		if q.A == "" || q.B == "" {
			continue
		}
		out = append(out, models.Question{A: q.A, B: q.B, Tag: q.Tag})
	}
	return out
}
