package session

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/dom"
	"github.com/kapu/untranslate-go/internal/domain"
	"github.com/kapu/untranslate-go/internal/resolve"
	"github.com/kapu/untranslate-go/internal/restore"
	apperrors "github.com/kapu/untranslate-go/pkg/errors"
)

const watchMarkup = `<html><body>
<ytm-slim-video-metadata-section-renderer>
  <h1><span class="yt-core-attributed-string">Übersetzter Titel</span></h1>
</ytm-slim-video-metadata-section-renderer>
<ytm-slim-owner-renderer>
  <div class="slim-owner-channel-name"><span class="yt-core-attributed-string">Übersetzter Kanal</span></div>
</ytm-slim-owner-renderer>
<ytm-engagement-panel-section-list-renderer></ytm-engagement-panel-section-list-renderer>
</body></html>`

type stubSource struct {
	videos   map[domain.VideoID]*resolve.VideoText
	channels map[string]*resolve.ChannelText
}

func (s *stubSource) Video(_ context.Context, id domain.VideoID) *resolve.VideoText {
	return s.videos[id]
}

func (s *stubSource) Channel(_ context.Context, ref domain.ChannelRef) *resolve.ChannelText {
	return s.channels[ref.Key()]
}

type recordingJournal struct {
	mu           sync.Mutex
	outcomes     []domain.Outcome
	suppressions map[string]uint64
	suppressCall int
}

func newRecordingJournal() *recordingJournal {
	return &recordingJournal{suppressions: make(map[string]uint64)}
}

func (j *recordingJournal) Record(_ context.Context, outcome domain.Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcomes = append(j.outcomes, outcome)
}

func (j *recordingJournal) RecordSuppressions(_ context.Context, session string, count uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.suppressions[session] += count
	j.suppressCall++
}

func (j *recordingJournal) Close() error { return nil }

func (j *recordingJournal) suppressed(session string) uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.suppressions[session]
}

func (j *recordingJournal) countField(field domain.Field) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, o := range j.outcomes {
		if o.Field == field {
			n++
		}
	}
	return n
}

func newTestFactory(journal *recordingJournal, mode domain.GuardMode) *Factory {
	return &Factory{
		Source: &stubSource{
			videos: map[domain.VideoID]*resolve.VideoText{
				"vid1": {ID: "vid1", Title: "Original Title", Description: "Original description", ChannelID: "UCabc"},
				"vid2": {ID: "vid2", Title: "Original Two", Description: "Second description", ChannelID: "UCabc"},
			},
			channels: map[string]*resolve.ChannelText{
				"UCabc": {ID: "UCabc", Name: "Original Channel", Description: "Original about text"},
			},
		},
		Selectors: restore.DefaultSelectors(),
		Settings:  restore.Settings{Titles: true, Descriptions: true},
		GuardMode: mode,
		Journal:   journal,
		Logger:    zap.NewNop(),
	}
}

func newStartedSession(t *testing.T, mode domain.GuardMode) (*PageSession, *recordingJournal) {
	t.Helper()

	journal := newRecordingJournal()
	factory := newTestFactory(journal, mode)

	doc, err := dom.Parse(watchMarkup)
	if err != nil {
		t.Fatalf("expected parse, got %v", err)
	}
	s := factory.New("sess-1", "https://m.youtube.com/watch?v=vid1", doc)
	t.Cleanup(func() { s.Stop(context.Background()) })

	s.Start(context.Background())
	return s, journal
}

func (s *PageSession) textAt(selector string) string {
	var got string
	s.realm.Do(func() {
		if n := dom.First(s.realm.Doc(), selector); n != nil {
			got = dom.Text(n)
		}
	})
	return got
}

func waitForText(t *testing.T, s *PageSession, selector, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.textAt(selector) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %q at %q, got %q", want, selector, s.textAt(selector))
}

func TestSessionStartRestoresWatchPage(t *testing.T) {
	s, _ := newStartedSession(t, domain.GuardEnable)
	sel := restore.DefaultSelectors()

	if got := s.textAt(sel.WatchTitle); got != "Original Title" {
		t.Fatalf("expected restored title after start, got %q", got)
	}
	if got := s.textAt(sel.WatchChannelName); got != "Original Channel" {
		t.Fatalf("expected restored byline after start, got %q", got)
	}
}

func TestSessionPanelSwapTriggersRestore(t *testing.T) {
	s, _ := newStartedSession(t, domain.GuardEnable)
	sel := restore.DefaultSelectors()

	// Host streams the description panel content in after startup.
	s.realm.Do(func() {
		container := dom.First(s.realm.Doc(), sel.PanelContainer)
		if container == nil {
			t.Error("expected panel container in fixture")
			return
		}
		marker := dom.NewElement("ytm-video-description-header-renderer", nil)
		body := dom.NewElement("ytm-expandable-video-description-body-renderer", nil)
		span := dom.NewElement("span", map[string]string{"class": "yt-core-attributed-string"})
		dom.AppendChild(span, dom.NewText("Übersetzte Beschreibung"))
		dom.AppendChild(body, span)
		s.realm.AppendChild(container, marker)
		s.realm.AppendChild(container, body)
	})

	waitForText(t, s, sel.PanelVideoDescription, "Original description")
}

func TestSessionGuardSuppressesPanelRemoval(t *testing.T) {
	s, journal := newStartedSession(t, domain.GuardEnable)
	sel := restore.DefaultSelectors()

	s.realm.Do(func() {
		container := dom.First(s.realm.Doc(), sel.PanelContainer)
		child := dom.NewElement("div", nil)
		s.realm.AppendChild(container, child)
		if removed := s.realm.RemoveChild(container, child); removed != child {
			t.Error("expected suppressed removal to hand the node back")
		}
		if child.Parent != container {
			t.Error("expected child still attached after suppressed removal")
		}
	})

	s.Stop(context.Background())
	if got := journal.suppressed("sess-1"); got != 1 {
		t.Fatalf("expected one suppression flushed, got %d", got)
	}
}

func TestSessionGuardDisableModeAllowsRemoval(t *testing.T) {
	s, journal := newStartedSession(t, domain.GuardDisable)
	sel := restore.DefaultSelectors()

	s.realm.Do(func() {
		container := dom.First(s.realm.Doc(), sel.PanelContainer)
		child := dom.NewElement("div", nil)
		s.realm.AppendChild(container, child)
		s.realm.RemoveChild(container, child)
		if child.Parent != nil {
			t.Error("expected removal to pass through with guard disabled")
		}
	})

	s.Stop(context.Background())
	if got := journal.suppressed("sess-1"); got != 0 {
		t.Fatalf("expected no suppressions, got %d", got)
	}
}

func TestSessionNavigateRetargets(t *testing.T) {
	s, _ := newStartedSession(t, domain.GuardEnable)
	sel := restore.DefaultSelectors()

	s.Navigate(context.Background(), "https://m.youtube.com/watch?v=vid2")

	if got := s.Location().Video; got != "vid2" {
		t.Fatalf("expected location updated, got %q", got)
	}
	if got := s.textAt(sel.WatchTitle); got != "Original Two" {
		t.Fatalf("expected title for new video, got %q", got)
	}
}

func TestSessionApplySnapshotRebuilds(t *testing.T) {
	s, _ := newStartedSession(t, domain.GuardEnable)
	sel := restore.DefaultSelectors()

	fresh := `<html><body>
<ytm-slim-video-metadata-section-renderer>
  <h1><span class="yt-core-attributed-string">Neu gerendert</span></h1>
</ytm-slim-video-metadata-section-renderer>
<ytm-engagement-panel-section-list-renderer></ytm-engagement-panel-section-list-renderer>
</body></html>`
	if err := s.ApplySnapshot(context.Background(), fresh); err != nil {
		t.Fatalf("expected snapshot applied, got %v", err)
	}

	if got := s.textAt(sel.WatchTitle); got != "Original Title" {
		t.Fatalf("expected restoration re-run on new document, got %q", got)
	}

	// Guard must protect the new document's container, not the old one.
	s.realm.Do(func() {
		container := dom.First(s.realm.Doc(), sel.PanelContainer)
		child := dom.NewElement("div", nil)
		s.realm.AppendChild(container, child)
		s.realm.RemoveChild(container, child)
		if child.Parent != container {
			t.Error("expected guard active on the fresh document")
		}
	})
}

func TestSessionConcurrentNavigateKeepsOneWatcher(t *testing.T) {
	s, journal := newStartedSession(t, domain.GuardEnable)
	sel := restore.DefaultSelectors()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Navigate(context.Background(), "https://m.youtube.com/watch?v=vid2")
		}()
	}
	wg.Wait()
	waitForText(t, s, sel.WatchTitle, "Original Two")
	time.Sleep(50 * time.Millisecond)

	before := journal.countField(domain.FieldDescription)

	s.realm.Do(func() {
		container := dom.First(s.realm.Doc(), sel.PanelContainer)
		if container == nil {
			t.Error("expected panel container in fixture")
			return
		}
		marker := dom.NewElement("ytm-video-description-header-renderer", nil)
		body := dom.NewElement("ytm-expandable-video-description-body-renderer", nil)
		span := dom.NewElement("span", map[string]string{"class": "yt-core-attributed-string"})
		dom.AppendChild(span, dom.NewText("Übersetzte Beschreibung"))
		dom.AppendChild(body, span)
		s.realm.AppendChild(container, marker)
		s.realm.AppendChild(container, body)
	})

	waitForText(t, s, sel.PanelVideoDescription, "Second description")
	time.Sleep(50 * time.Millisecond)

	if got := journal.countField(domain.FieldDescription); got != before+1 {
		t.Fatalf("expected one description outcome for one panel render, got %d", got-before)
	}
}

func TestSessionApplySnapshotAfterStopRejected(t *testing.T) {
	s, _ := newStartedSession(t, domain.GuardEnable)

	s.Stop(context.Background())

	err := s.ApplySnapshot(context.Background(), `<html><body></body></html>`)
	var stateErr *apperrors.StateError
	if !stderrors.As(err, &stateErr) {
		t.Fatalf("expected state conflict for a stopped session, got %v", err)
	}
}

func TestSessionStopIdempotent(t *testing.T) {
	s, journal := newStartedSession(t, domain.GuardEnable)

	s.Stop(context.Background())
	s.Stop(context.Background())

	journal.mu.Lock()
	calls := journal.suppressCall
	journal.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one suppression flush, got %d", calls)
	}
}

func TestManagerLifecycle(t *testing.T) {
	journal := newRecordingJournal()
	factory := newTestFactory(journal, domain.GuardDisable)
	m := NewManager(zap.NewNop())

	for _, id := range []string{"a", "b"} {
		doc, err := dom.Parse(watchMarkup)
		if err != nil {
			t.Fatalf("expected parse, got %v", err)
		}
		s := factory.New(id, "https://m.youtube.com/watch?v=vid1", doc)
		s.Start(context.Background())
		m.Add(s)
	}

	if m.Count() != 2 {
		t.Fatalf("expected two sessions, got %d", m.Count())
	}
	if _, ok := m.Get("a"); !ok {
		t.Fatal("expected session a registered")
	}

	m.Stop(context.Background(), "a")
	if m.Count() != 1 {
		t.Fatalf("expected one session after stop, got %d", m.Count())
	}
	if _, ok := m.Get("a"); ok {
		t.Fatal("expected session a forgotten")
	}

	m.StopAll(context.Background())
	if m.Count() != 0 {
		t.Fatalf("expected no sessions after stop all, got %d", m.Count())
	}

	m.Stop(context.Background(), "missing")
	m.StopAll(context.Background())
}
