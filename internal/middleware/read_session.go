package middleware

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"sync"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/logging"
	"ordergraph/internal/resolver"
)

// ReadSessionMiddleware binds one read session to each request so every fetch
// the request performs runs on the same connection. The connection is acquired
// on the first query, so requests rejected before reaching the store never take one.
func ReadSessionMiddleware(executor dbexec.QueryExecutor, opts dbexec.SessionOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if executor == nil || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			session := &lazySession{executor: executor, opts: opts}
			ctx := resolver.WithSession(r.Context(), session)
			defer func() {
				if err := session.Close(); err != nil {
					logging.FromContext(ctx).Warn("failed to close read session", slog.String("error", err.Error()))
				}
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type lazySession struct {
	executor dbexec.QueryExecutor
	opts     dbexec.SessionOptions

	mu      sync.Mutex
	session dbexec.Session
	closed  bool
}

func (s *lazySession) acquire(ctx context.Context) (dbexec.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, sql.ErrConnDone
	}
	if s.session == nil {
		session, err := s.executor.Session(ctx, s.opts)
		if err != nil {
			return nil, err
		}
		s.session = session
	}
	return s.session, nil
}

func (s *lazySession) QueryContext(ctx context.Context, query string, args ...any) (dbexec.Rows, error) {
	session, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return session.QueryContext(ctx, query, args...)
}

func (s *lazySession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	session, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return session.ExecContext(ctx, query, args...)
}

func (s *lazySession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.session == nil {
		return nil
	}
	return s.session.Close()
}
