package tokensync

import (
	"context"
	"errors"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/cheggaaa/mb/v3"
	"go.uber.org/zap"

	"github.com/anyproto/gcm-dispatcher/dispatcher"
	"github.com/anyproto/gcm-dispatcher/repo/tokenrepo"
)

const CName = "gcm.tokensync"

var log = logger.NewNamed(CName)

const (
	minBatch      = 10
	maxBatch      = 500
	flushInterval = time.Second
	addTimeout    = 10 * time.Second
)

func New() TokenSync {
	return &tokenSync{flushInterval: flushInterval}
}

// TokenSync applies token rotations and evictions reported by the gateway to the token store.
// Evictions are buffered and removed in batches.
type TokenSync interface {
	dispatcher.TokenHandler
	app.ComponentRunnable
}

type tokenSync struct {
	tokenRepo     tokenrepo.TokenRepo
	invalidTokens *mb.MB[string]
	flushInterval time.Duration
	runCtx        context.Context
	runCtxCancel  context.CancelFunc
	done          chan struct{}
	started       bool
}

func (s *tokenSync) Init(a *app.App) (err error) {
	s.tokenRepo = a.MustComponent(tokenrepo.CName).(tokenrepo.TokenRepo)
	s.invalidTokens = mb.New[string](maxBatch * 10)
	s.runCtx, s.runCtxCancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	if d, ok := a.Component(dispatcher.CName).(dispatcher.Dispatcher); ok {
		d.SetTokenHandler(s)
	}
	return
}

func (s *tokenSync) Name() (name string) {
	return CName
}

func (s *tokenSync) Run(ctx context.Context) (err error) {
	s.started = true
	go s.removeTokensBatch()
	return
}

func (s *tokenSync) TokenUpdated(ctx context.Context, oldToken, newToken string) error {
	if err := s.tokenRepo.ReplaceToken(ctx, oldToken, newToken); err != nil {
		return err
	}
	log.Info("token replaced", zap.String("old", oldToken), zap.String("new", newToken))
	return nil
}

func (s *tokenSync) TokenInvalid(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, addTimeout)
	defer cancel()
	return s.invalidTokens.Add(ctx, token)
}

func (s *tokenSync) removeTokensBatch() {
	defer close(s.done)
	for {
		ctx := mb.CtxWithTimeLimit(s.runCtx, s.flushInterval)
		tokens, err := s.invalidTokens.NewCond().WithMin(minBatch).WithMax(maxBatch).Wait(ctx)
		if errors.Is(err, mb.ErrClosed) || s.runCtx.Err() != nil {
			return
		}
		if err != nil || len(tokens) == 0 {
			continue
		}
		st := time.Now()
		if err = s.tokenRepo.RemoveTokens(s.runCtx, tokens); err != nil {
			log.Error("remove tokens error", zap.Error(err))
		} else {
			log.Info("remove tokens success", zap.Int("count", len(tokens)), zap.Duration("dur", time.Since(st)))
		}
	}
}

func (s *tokenSync) Close(ctx context.Context) (err error) {
	if s.runCtxCancel != nil {
		s.runCtxCancel()
	}
	err = s.invalidTokens.Close()
	if !s.started {
		return
	}
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return
}
