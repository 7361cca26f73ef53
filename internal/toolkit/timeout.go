package toolkit

import (
	"context"
	"time"

	"github.com/remiblancher/easyca/internal/caerr"
)

// timed bounds every blocking toolkit call with a deadline.
type timed struct {
	next    Toolkit
	timeout time.Duration
}

// WithTimeout wraps tk so that key generation and signing give up after d.
// An expired call returns an error matching caerr.ErrToolkit. The
// abandoned call keeps running in the background until it finishes.
func WithTimeout(tk Toolkit, d time.Duration) Toolkit {
	if d <= 0 {
		return tk
	}
	return &timed{next: tk, timeout: d}
}

type result[T any] struct {
	val T
	err error
}

func run[T any](ctx context.Context, d time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, caerr.Newf("toolkit", op, caerr.ErrToolkit, "gave up after %s: %w", d, ctx.Err())
	}
}

func (t *timed) NewSelfSignedCA(ctx context.Context, req CARequest) (*KeyMaterial, error) {
	return run(ctx, t.timeout, "create-ca", func(ctx context.Context) (*KeyMaterial, error) {
		return t.next.NewSelfSignedCA(ctx, req)
	})
}

func (t *timed) NewCSR(ctx context.Context, req CSRRequest) (*KeyMaterial, error) {
	return run(ctx, t.timeout, "create-csr", func(ctx context.Context) (*KeyMaterial, error) {
		return t.next.NewCSR(ctx, req)
	})
}

func (t *timed) SignCSR(ctx context.Context, req SignRequest) ([]byte, error) {
	return run(ctx, t.timeout, "sign-csr", func(ctx context.Context) ([]byte, error) {
		return t.next.SignCSR(ctx, req)
	})
}

func (t *timed) ParseCertificate(certPEM []byte) (*CertInfo, error) {
	return t.next.ParseCertificate(certPEM)
}

func (t *timed) RenderCertificate(certPEM []byte) (string, error) {
	return t.next.RenderCertificate(certPEM)
}
