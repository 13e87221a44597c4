// Package listener turns PostgreSQL NOTIFY events into live queries.
package listener

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"

	"stockroom/internal/domain/item"
	"stockroom/internal/logging"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// ErrStopped is returned by Next after Stop or once the watch context ended.
var ErrStopped = errors.New("document listener stopped")

// Loader reads the full ordered result set of a collection.
type Loader interface {
	Collection() string
	List(ctx context.Context) ([]item.Document, error)
}

// notifier is the part of *pq.Listener a stream uses.
type notifier interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// DocumentListener opens one LISTEN connection per live query and reloads
// the collection whenever the document trigger reports a change.
type DocumentListener struct {
	connStr string
	channel string
	loader  Loader
	logger  logging.Logger

	newNotifier func(connStr string, callback pq.EventCallbackType) notifier
}

func NewDocumentListener(connStr, channel string, loader Loader, logger logging.Logger) *DocumentListener {
	return &DocumentListener{
		connStr: connStr,
		channel: channel,
		loader:  loader,
		logger:  logger,
		newNotifier: func(connStr string, callback pq.EventCallbackType) notifier {
			return pq.NewListener(connStr, minReconnectInterval, maxReconnectInterval, callback)
		},
	}
}

// Watch starts a live query over the loader's collection.
// A failed LISTEN or reload ends the stream with that error.
// The stream stops itself when ctx is done, which also aborts a LISTEN
// still waiting for a connection.
func (l *DocumentListener) Watch(ctx context.Context) item.DocumentStream {
	s := &stream{
		l:          l,
		ctx:        ctx,
		shutdownCh: make(chan struct{}),
	}
	s.n = l.newNotifier(l.connStr, s.onEvent)
	context.AfterFunc(ctx, s.Stop)
	return s
}

type stream struct {
	l          *DocumentListener
	ctx        context.Context
	n          notifier
	shutdownCh chan struct{}
	once       sync.Once
	listening  bool
}

func (s *stream) Next() ([]item.Document, error) {
	select {
	case <-s.shutdownCh:
		return nil, ErrStopped
	default:
	}

	if !s.listening {
		// LISTEN before the initial load so no change falls in between.
		if err := s.n.Listen(s.l.channel); err != nil {
			select {
			case <-s.shutdownCh:
				return nil, ErrStopped
			default:
			}
			return nil, err
		}
		s.listening = true
		s.l.logger.Info(s.ctx, "listening for document changes", "channel", s.l.channel, "collection", s.l.loader.Collection())
		return s.l.loader.List(s.ctx)
	}

	if err := s.wait(); err != nil {
		return nil, err
	}
	return s.l.loader.List(s.ctx)
}

// wait blocks until the collection may have changed. A nil notification
// means the connection was re-established and events may have been missed.
func (s *stream) wait() error {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-s.shutdownCh:
			return ErrStopped
		case <-s.ctx.Done():
			return ErrStopped
		case n, ok := <-s.n.NotificationChannel():
			if !ok {
				return ErrStopped
			}
			if n != nil && n.Extra != s.l.loader.Collection() {
				continue
			}
			s.drain()
			return nil
		case <-ping.C:
			go func() {
				if err := s.n.Ping(); err != nil {
					s.l.logger.Warn(context.Background(), "listener ping failed", "error", err)
				}
			}()
		}
	}
}

// drain discards already queued notifications; the reload that follows covers them.
func (s *stream) drain() {
	for {
		select {
		case _, ok := <-s.n.NotificationChannel():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (s *stream) Stop() {
	s.once.Do(func() {
		close(s.shutdownCh)
		if err := s.n.Close(); err != nil {
			s.l.logger.Warn(context.Background(), "failed to close listener", "error", err)
		}
	})
}

func (s *stream) onEvent(ev pq.ListenerEventType, err error) {
	ctx := context.Background()
	switch ev {
	case pq.ListenerEventConnected:
		s.l.logger.Debug(ctx, "connected to notification channel", "channel", s.l.channel)
	case pq.ListenerEventDisconnected:
		s.l.logger.Warn(ctx, "disconnected from notification channel", "channel", s.l.channel, "error", err)
	case pq.ListenerEventReconnected:
		s.l.logger.Info(ctx, "reconnected to notification channel", "channel", s.l.channel)
	case pq.ListenerEventConnectionAttemptFailed:
		s.l.logger.Warn(ctx, "notification connection attempt failed", "error", err)
	}
}
