package observe

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/constants"
	"github.com/kapu/untranslate-go/internal/realm"
)

// SearchRefresher re-applies original titles to result cards.
type SearchRefresher interface {
	RefreshSearch(ctx context.Context)
}

// SearchSelectors locate the results container and the card renderer that
// marks a batch of results worth patching.
type SearchSelectors struct {
	Container  string
	CardMarker string
}

// SearchWatcher triggers a search-results refresh whenever the host streams
// new result cards into the page.
type SearchWatcher struct {
	realm     *realm.Realm
	refresher SearchRefresher
	selectors SearchSelectors
	poll      time.Duration
	budget    time.Duration
	logger    *zap.Logger

	mu  sync.Mutex
	obs *Observer
}

func NewSearchWatcher(r *realm.Realm, refresher SearchRefresher, selectors SearchSelectors, logger *zap.Logger) *SearchWatcher {
	return &SearchWatcher{
		realm:     r,
		refresher: refresher,
		selectors: selectors,
		poll:      constants.WaitConfig.PollInterval,
		budget:    constants.WaitConfig.Budget,
		logger:    logger,
	}
}

func (w *SearchWatcher) Setup(ctx context.Context) {
	w.Cleanup()

	container := WaitForNode(ctx, w.realm, w.selectors.Container, w.poll, w.budget)
	if container == nil {
		w.logger.Info("Search results container not present, watcher idle",
			zap.String("selector", w.selectors.Container))
		return
	}

	rules := []Rule{
		{Name: "result-cards", Selector: w.selectors.CardMarker, Handle: w.refresher.RefreshSearch},
	}

	w.mu.Lock()
	if w.obs != nil {
		w.obs.Stop()
	}
	w.obs = Watch(ctx, w.realm, container, rules, w.logger)
	w.mu.Unlock()

	w.logger.Debug("Search watcher installed")
}

func (w *SearchWatcher) Cleanup() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.obs != nil {
		w.obs.Stop()
		w.obs = nil
	}
}

func (w *SearchWatcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.obs != nil
}

func (w *SearchWatcher) SetWaitPolicy(poll, budget time.Duration) {
	w.poll = poll
	w.budget = budget
}
