package listing

import (
	"context"
	"sync"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/facet"
)

// Result is a published listing: the page fetched for a filter state.
type Result struct {
	Generation uint64
	State      facet.State
	Page       Page
	Err        error
}

// Browser re-fetches the listing every time its filter changes.
// Only the answer to the latest change is published: starting a fetch cancels the
// previous one, and an answer whose generation is no longer current is dropped.
type Browser struct {
	svc  *Service
	sess core.Session
	ctx  context.Context

	filterMu sync.Mutex
	filter   *facet.Filter

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	latest   Result
	onResult func(Result)

	pubMu sync.Mutex
	wg    sync.WaitGroup
}

// NewBrowser returns a Browser fetching with `sess` until `ctx` is done.
func (svc *Service) NewBrowser(ctx context.Context, sess core.Session) *Browser {
	b := &Browser{
		svc:    svc,
		sess:   sess,
		ctx:    ctx,
		filter: facet.New(),
	}
	b.filter.OnChange(b.refresh)
	return b
}

// OnResult registers the function receiving published results.
// It is called from the fetching goroutine, one call at a time.
func (b *Browser) OnResult(fn func(Result)) {
	b.mu.Lock()
	b.onResult = fn
	b.mu.Unlock()
}

func (b *Browser) Toggle(key, value string) {
	b.filterMu.Lock()
	defer b.filterMu.Unlock()
	b.filter.Toggle(key, value)
}

func (b *Browser) Reset() {
	b.filterMu.Lock()
	defer b.filterMu.Unlock()
	b.filter.Reset()
}

func (b *Browser) IsSelected(key, value string) bool {
	b.filterMu.Lock()
	defer b.filterMu.Unlock()
	return b.filter.IsSelected(key, value)
}

// Refresh fetches the current selection again.
func (b *Browser) Refresh() {
	b.filterMu.Lock()
	defer b.filterMu.Unlock()
	b.refresh(b.filter.State())
}

// refresh runs with filterMu held, as the filter's change listener.
func (b *Browser) refresh(state facet.State) {
	pairs := b.filter.QueryPairs()

	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.gen++
	gen := b.gen
	ctx, cancel := context.WithCancel(b.ctx)
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()

		page, err := b.svc.List(ctx, b.sess, pairs)
		b.publish(Result{Generation: gen, State: state, Page: page, Err: err})
	}()
}

func (b *Browser) publish(res Result) {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	if res.Generation != b.gen {
		b.mu.Unlock()
		return
	}
	b.latest = res
	fn := b.onResult
	b.mu.Unlock()

	if fn != nil {
		fn(res)
	}
}

// Latest returns the last published result.
func (b *Browser) Latest() Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// Wait blocks until every started fetch has returned.
func (b *Browser) Wait() {
	b.wg.Wait()
}

// Close cancels the in-flight fetch, if any.
func (b *Browser) Close() {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()
	b.wg.Wait()
}
