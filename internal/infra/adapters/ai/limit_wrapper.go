package ai

import (
	"context"
	"iter"
	"time"

	"void-ai-chat/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AIGateway = (*limitedAI)(nil)

// limitedAI bounds concurrent provider calls and applies a per-call timeout.
// A stream holds its slot and its deadline until the sequence ends.
type limitedAI struct {
	inner   adapter.AIGateway
	sem     chan struct{}
	timeout time.Duration
}

func NewLimitedAI(inner adapter.AIGateway, maxConcurrent int, timeout time.Duration) adapter.AIGateway {
	if maxConcurrent <= 0 && timeout <= 0 {
		return inner
	}
	l := &limitedAI{inner: inner, timeout: timeout}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

func (l *limitedAI) acquire(ctx context.Context) (context.Context, func(), error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	cancel := func() {}
	if l.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
	}
	return ctx, func() {
		cancel()
		if l.sem != nil {
			<-l.sem
		}
	}, nil
}

func (l *limitedAI) Generate(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	ctx, release, err := l.acquire(ctx)
	if err != nil {
		return adapter.GenerateResult{}, classify("generate", err, false)
	}
	defer release()
	res, err := l.inner.Generate(ctx, req)
	return res, timeoutAware(ctx, "generate", err, false)
}

func (l *limitedAI) GenerateStream(ctx context.Context, req adapter.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, release, err := l.acquire(ctx)
		if err != nil {
			yield("", classify("stream", err, true))
			return
		}
		defer release()
		for frag, err := range l.inner.GenerateStream(ctx, req) {
			if err != nil {
				yield("", timeoutAware(ctx, "stream", err, true))
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
		// a stream cut by the deadline may end without an error from the SDK
		if ctx.Err() != nil {
			yield("", classify("stream", ctx.Err(), true))
		}
	}
}

func (l *limitedAI) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, release, err := l.acquire(ctx)
	if err != nil {
		return "", classify("image", err, false)
	}
	defer release()
	uri, err := l.inner.GenerateImage(ctx, prompt)
	return uri, timeoutAware(ctx, "image", err, false)
}

func timeoutAware(ctx context.Context, op string, err error, streaming bool) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return classify(op, context.DeadlineExceeded, streaming)
	}
	return classify(op, err, streaming)
}
