package session

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/kapu/untranslate-go/internal/audit"
	"github.com/kapu/untranslate-go/internal/dom"
	"github.com/kapu/untranslate-go/internal/domain"
	"github.com/kapu/untranslate-go/internal/guard"
	"github.com/kapu/untranslate-go/internal/observe"
	"github.com/kapu/untranslate-go/internal/realm"
	"github.com/kapu/untranslate-go/internal/resolve"
	"github.com/kapu/untranslate-go/internal/restore"
	"github.com/kapu/untranslate-go/pkg/errors"
)

// Factory builds page sessions around the shared resolver, journal and
// restore settings. Each session still gets its own realm, cache and guard.
type Factory struct {
	Source    restore.TextSource
	Selectors restore.Selectors
	Settings  restore.Settings
	GuardMode domain.GuardMode
	Journal   audit.Journal
	Logger    *zap.Logger
}

// PageSession owns everything attached to one page: the realm, the removal
// guard, the panel and search watchers and the restorer. The current
// location lives behind a mutex because refresh routines read it from
// worker goroutines while navigation rewrites it.
type PageSession struct {
	id        string
	realm     *realm.Realm
	guard     *guard.Injector
	panel     *observe.PanelWatcher
	search    *observe.SearchWatcher
	restorer  *restore.Restorer
	guardMode domain.GuardMode
	selectors restore.Selectors
	journal   audit.Journal
	logger    *zap.Logger

	mu         sync.Mutex
	loc        domain.Location
	suppressed uint64
	stopped    bool

	// lifecycle serializes Start/Navigate/ApplySnapshot. The bridge runs
	// each client message on its own goroutine; without this, two rapid
	// navigations race the watchers' cleanup-before-setup ordering.
	lifecycle sync.Mutex

	stopOnce sync.Once
}

// New builds a session for one page. The document is the page snapshot the
// client sent; rawURL is where the page lives right now.
func (f *Factory) New(id, rawURL string, doc *html.Node) *PageSession {
	logger := f.Logger.With(zap.String("session", id))
	r := realm.New(doc, logger)

	s := &PageSession{
		id:        id,
		realm:     r,
		guard:     guard.NewInjector(r, f.Selectors.PanelContainer, logger),
		guardMode: f.GuardMode,
		selectors: f.Selectors,
		journal:   f.Journal,
		logger:    logger,
		loc:       domain.ParseLocation(rawURL),
	}

	s.restorer = restore.NewRestorer(restore.Deps{
		Session:   id,
		Realm:     r,
		Source:    f.Source,
		Cache:     resolve.NewDescriptionCache(),
		Selectors: f.Selectors,
		Settings:  f.Settings,
		Location:  s.Location,
		Journal:   f.Journal,
		Logger:    logger,
	})
	s.panel = observe.NewPanelWatcher(r, s.restorer, observe.PanelSelectors{
		Container:     f.Selectors.PanelContainer,
		VideoMarker:   f.Selectors.PanelVideoMarker,
		ChannelMarker: f.Selectors.PanelChannelMarker,
	}, logger)
	s.search = observe.NewSearchWatcher(r, s.restorer, observe.SearchSelectors{
		Container:  f.Selectors.SearchContainer,
		CardMarker: f.Selectors.SearchCard,
	}, logger)

	return s
}

func (s *PageSession) ID() string {
	return s.id
}

func (s *PageSession) Realm() *realm.Realm {
	return s.realm
}

// Location returns the page address the session currently believes in.
func (s *PageSession) Location() domain.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Start installs the removal guard and brings up the watchers and the
// first restoration pass.
func (s *PageSession) Start(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	loc := s.Location()
	s.logger.Info("Session started",
		zap.String("url", loc.Raw),
		zap.String("kind", string(loc.Kind)))

	s.installGuard()
	s.setup(ctx)
}

// Navigate points the session at a new page address. Watchers are torn down
// before anything new is set up so a late event from the old page cannot
// fire into the new one.
func (s *PageSession) Navigate(ctx context.Context, rawURL string) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	loc := domain.ParseLocation(rawURL)
	s.mu.Lock()
	s.loc = loc
	s.mu.Unlock()

	s.logger.Info("Session navigated",
		zap.String("url", loc.Raw),
		zap.String("kind", string(loc.Kind)))

	s.panel.Cleanup()
	s.search.Cleanup()
	s.setup(ctx)
}

// ApplySnapshot swaps in a fresh document for the same session, as after a
// full client re-render. Everything bound to nodes of the old document is
// rebuilt against the new one.
func (s *PageSession) ApplySnapshot(ctx context.Context, markup string) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return errors.NewStateError("session already stopped", "session")
	}

	doc, err := dom.Parse(markup)
	if err != nil {
		return errors.NewValidationError("snapshot markup did not parse", "snapshot", "")
	}

	s.collectSuppressions()
	s.guard.Disable()
	s.panel.Cleanup()
	s.search.Cleanup()

	s.realm.Do(func() {
		s.realm.ReplaceDoc(doc)
	})

	s.installGuard()
	s.setup(ctx)
	return nil
}

// Stop flushes guard accounting, disables the guard, and shuts the realm
// down. Safe to call more than once.
func (s *PageSession) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		s.collectSuppressions()

		s.mu.Lock()
		s.stopped = true
		total := s.suppressed
		s.mu.Unlock()
		if total > 0 {
			s.logger.Info("Removal guard suppressed host removals",
				zap.Uint64("suppressed", total))
		}
		s.journal.RecordSuppressions(ctx, s.id, total)

		s.guard.Disable()
		s.panel.Cleanup()
		s.search.Cleanup()
		s.realm.Close()

		s.logger.Info("Session stopped")
	})
}

// setup starts whatever the current page kind needs. The panel wait can
// block for its whole budget, so setup fans out instead of serializing the
// first restoration pass behind it.
func (s *PageSession) setup(ctx context.Context) {
	loc := s.Location()

	p := pool.New()
	if loc.IsWatch() || loc.IsChannel() {
		p.Go(func() { s.panel.Setup(ctx) })
	}
	if loc.IsSearch() {
		p.Go(func() { s.search.Setup(ctx) })
	}
	p.Go(func() { s.restorer.MainPass(ctx) })
	p.Wait()
}

func (s *PageSession) installGuard() {
	s.realm.InjectScript(
		map[string]string{guard.ModeAttr: s.guardMode.String()},
		guard.Runner(s.selectors.PanelContainer, s.logger),
	)
}

// collectSuppressions folds the running guard installation's counter into
// the session total. Called right before the guard is torn down; calling it
// twice for one installation would double count.
func (s *PageSession) collectSuppressions() {
	n := s.guard.Suppressed()
	if n == 0 {
		return
	}
	s.mu.Lock()
	s.suppressed += n
	s.mu.Unlock()
}
