package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const commitHooksKey contextKey = "db_commit_hooks"

// TxFromContext returns the request transaction, or nil outside Transaction.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the connection stored in ctx and returns a
// derived context that carries it.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errors.New("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithCommitHooks returns a context collecting AfterCommit callbacks and a
// function running them in registration order.
func WithCommitHooks(ctx context.Context) (context.Context, func()) {
	h := &commitHooks{}
	run := func() {
		h.mu.Lock()
		fns := h.fns
		h.fns = nil
		h.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
	return context.WithValue(ctx, commitHooksKey, h), run
}

// AfterCommit runs fn once the request transaction has committed. Outside a
// transaction fn runs immediately; on rollback it never runs.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(commitHooksKey).(*commitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Transaction wraps every request in a single transaction on the tenant
// connection. The transaction commits when the handler returns nil with a
// status below 400; any error or error status rolls it back.
//
// The response is held back until the outcome is known, so a failed commit
// reaches the client as an error instead of the handler's success body.
func Transaction(logger zerolog.Logger) echo.MiddlewareFunc {
	return transaction(logger, WithTx)
}

type beginFunc func(context.Context) (context.Context, pgx.Tx, error)

func transaction(logger zerolog.Logger, begin beginFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, tx, err := begin(c.Request().Context())
			if err != nil {
				return err
			}
			ctx, runHooks := WithCommitHooks(ctx)
			c.SetRequest(c.Request().WithContext(ctx))

			res := c.Response()
			buf := &bufferedWriter{ResponseWriter: res.Writer}
			res.Writer = buf

			committed := false
			defer func() {
				res.Writer = buf.ResponseWriter
				if committed {
					return
				}
				if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
					logger.Error().Err(rbErr).Msg("transaction rollback failed")
				}
			}()

			if err := next(c); err != nil {
				buf.flush()
				return err
			}
			if res.Status >= http.StatusBadRequest {
				buf.flush()
				return nil
			}
			if err := tx.Commit(ctx); err != nil {
				// drop the success body so the error handler can respond
				buf.discard()
				res.Committed = false
				res.Status = http.StatusOK
				res.Size = 0
				res.Header().Del(echo.HeaderContentLength)
				return fmt.Errorf("commit transaction: %w", err)
			}
			committed = true
			buf.flush()
			runHooks()
			return nil
		}
	}
}

// bufferedWriter holds the status and body until flush. Headers go straight
// to the underlying writer's map, which is only sent on WriteHeader.
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *bufferedWriter) flush() {
	if w.status == 0 {
		return
	}
	w.ResponseWriter.WriteHeader(w.status)
	_, _ = w.ResponseWriter.Write(w.body.Bytes())
	w.discard()
}

func (w *bufferedWriter) discard() {
	w.status = 0
	w.body.Reset()
}
