package observe

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/constants"
	"github.com/kapu/untranslate-go/internal/realm"
)

// PanelRefresher is what the panel watcher triggers. Implementations must
// re-derive identifiers from the current location when they run, not from
// whatever event scheduled them.
type PanelRefresher interface {
	RefreshVideo(ctx context.Context)
	RefreshChannel(ctx context.Context)
}

// PanelSelectors are the fixed structural paths the watcher needs: the
// panel container and the marker blocks that classify what it shows.
type PanelSelectors struct {
	Container     string
	VideoMarker   string
	ChannelMarker string
}

// PanelWatcher reacts to the host swapping content in and out of the
// engagement panel. Video info takes precedence over channel info when both
// land in one batch.
type PanelWatcher struct {
	realm     *realm.Realm
	refresher PanelRefresher
	selectors PanelSelectors
	poll      time.Duration
	budget    time.Duration
	logger    *zap.Logger

	mu  sync.Mutex
	obs *Observer
}

func NewPanelWatcher(r *realm.Realm, refresher PanelRefresher, selectors PanelSelectors, logger *zap.Logger) *PanelWatcher {
	return &PanelWatcher{
		realm:     r,
		refresher: refresher,
		selectors: selectors,
		poll:      constants.WaitConfig.PollInterval,
		budget:    constants.WaitConfig.Budget,
		logger:    logger,
	}
}

// Setup tears down any previous subscription, waits (bounded) for the panel
// container to exist, then installs the observer and reconciles the panel's
// current content. A page without the panel leaves the watcher idle; that
// is an expected state, not an error.
func (w *PanelWatcher) Setup(ctx context.Context) {
	w.Cleanup()

	container := WaitForNode(ctx, w.realm, w.selectors.Container, w.poll, w.budget)
	if container == nil {
		w.logger.Info("Panel container not present, watcher idle",
			zap.String("selector", w.selectors.Container))
		return
	}

	rules := []Rule{
		{Name: "video-info", Selector: w.selectors.VideoMarker, Handle: w.refresher.RefreshVideo},
		{Name: "channel-info", Selector: w.selectors.ChannelMarker, Handle: w.refresher.RefreshChannel},
	}

	w.mu.Lock()
	if w.obs != nil {
		// A concurrent Setup got past the wait first; replace its
		// subscription instead of leaking it.
		w.obs.Stop()
	}
	w.obs = Watch(ctx, w.realm, container, rules, w.logger)
	w.mu.Unlock()

	w.logger.Debug("Panel watcher installed")
}

// Cleanup disconnects the watcher. Idempotent; Setup always calls it first.
func (w *PanelWatcher) Cleanup() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.obs != nil {
		w.obs.Stop()
		w.obs = nil
	}
}

// Active reports whether a subscription is currently installed.
func (w *PanelWatcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.obs != nil
}

// SetWaitPolicy overrides the container wait parameters.
func (w *PanelWatcher) SetWaitPolicy(poll, budget time.Duration) {
	w.poll = poll
	w.budget = budget
}
