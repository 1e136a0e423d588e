package searchconsole

import "context"

// Observer receives one notification per remote operation and one per
// permission fallback.
type Observer interface {
	StartCall(ctx context.Context, op, siteURL string) (context.Context, func(err error))
	RecordFallback(ctx context.Context, op, from, to string)
}

type nopObserver struct{}

func (nopObserver) StartCall(ctx context.Context, _, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (nopObserver) RecordFallback(context.Context, string, string, string) {}
