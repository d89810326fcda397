package usecase

import (
	"context"
	"errors"
	"sync"

	"PriceProbe/internal/domain/models"
	drepo "PriceProbe/internal/domain/repository"
)

type published struct {
	key  string
	body []byte
}

type fakeSink struct {
	mu          sync.Mutex
	connectErrs []error
	publishErrs []error
	connects    int
	closed      bool
	messages    []published
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeSink) Publish(_ context.Context, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.publishErrs) > 0 {
		err := f.publishErrs[0]
		f.publishErrs = f.publishErrs[1:]
		if err != nil {
			return err
		}
	}
	f.messages = append(f.messages, published{key: key, body: append([]byte(nil), body...)})
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type alwaysDown struct{ fakeSink }

func (a *alwaysDown) Connect(context.Context) error {
	a.mu.Lock()
	a.connects++
	a.mu.Unlock()
	return errors.New("connection refused")
}

type fakeFetcher struct {
	outcomes map[string][]drepo.Outcome
	calls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, in models.Instrument) drepo.Outcome {
	f.calls = append(f.calls, in.SourceSymbol)
	queue := f.outcomes[in.SourceSymbol]
	if len(queue) == 0 {
		return drepo.FallbackOutcome(models.ReasonNetworkError, errors.New("no scripted outcome"))
	}
	out := queue[0]
	if len(queue) > 1 {
		f.outcomes[in.SourceSymbol] = queue[1:]
	}
	return out
}
