package restore

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/kapu/untranslate-go/internal/audit"
	"github.com/kapu/untranslate-go/internal/dom"
	"github.com/kapu/untranslate-go/internal/domain"
	"github.com/kapu/untranslate-go/internal/realm"
	"github.com/kapu/untranslate-go/internal/resolve"
)

const searchResolveWorkers = 4

// TextSource answers original-text lookups. Failures have already been
// absorbed behind it: nil or empty results mean "leave the page alone".
type TextSource interface {
	Video(ctx context.Context, id domain.VideoID) *resolve.VideoText
	Channel(ctx context.Context, ref domain.ChannelRef) *resolve.ChannelText
}

// Settings selects which fields get restored. Titles covers video titles,
// channel names and search results; Descriptions covers video descriptions
// and channel about text.
type Settings struct {
	Titles       bool
	Descriptions bool
}

// Deps carries everything a Restorer needs. Collected in a struct because
// sessions build several of these per page lifetime.
type Deps struct {
	Session   string
	Realm     *realm.Realm
	Source    TextSource
	Cache     *resolve.DescriptionCache
	Selectors Selectors
	Settings  Settings
	Location  func() domain.Location
	Journal   audit.Journal
	Logger    *zap.Logger
}

// Restorer fetches original text and writes it back into the page realm.
// Fetches run outside the realm loop; every write re-checks the current
// location first so a slow fetch can never patch the wrong page.
type Restorer struct {
	session   string
	realm     *realm.Realm
	source    TextSource
	cache     *resolve.DescriptionCache
	selectors Selectors
	settings  Settings
	location  func() domain.Location
	journal   audit.Journal
	logger    *zap.Logger
}

func NewRestorer(deps Deps) *Restorer {
	return &Restorer{
		session:   deps.Session,
		realm:     deps.Realm,
		source:    deps.Source,
		cache:     deps.Cache,
		selectors: deps.Selectors,
		settings:  deps.Settings,
		location:  deps.Location,
		journal:   deps.Journal,
		logger:    deps.Logger,
	}
}

// MainPass restores everything the current page kind supports. Runs on
// session start and after navigation.
func (rs *Restorer) MainPass(ctx context.Context) {
	loc := rs.location()
	switch {
	case loc.IsWatch():
		rs.RestoreWatch(ctx)
		rs.RefreshVideo(ctx)
	case loc.IsChannel():
		rs.RestoreChannelPage(ctx)
	case loc.IsSearch():
		rs.RefreshSearch(ctx)
	default:
		rs.logger.Debug("No restorable fields for page", zap.String("url", loc.Raw))
	}
}

// RestoreWatch restores the title and channel byline on a watch page.
func (rs *Restorer) RestoreWatch(ctx context.Context) {
	if !rs.settings.Titles {
		return
	}

	loc := rs.location()
	if !loc.IsWatch() {
		return
	}

	text := rs.source.Video(ctx, loc.Video)
	if text == nil {
		rs.record(ctx, loc.Video.String(), domain.FieldTitle, domain.ActionUnavailable)
		return
	}
	rs.cache.Set(loc.Video, text.Description)

	var channelName string
	if !text.ChannelID.IsZero() {
		if ch := rs.source.Channel(ctx, domain.ChannelRef{ID: text.ChannelID}); ch != nil {
			channelName = ch.Name
		}
	}

	titleAction := domain.ActionStaleDrop
	nameAction := domain.ActionStaleDrop
	rs.realm.Do(func() {
		if rs.location().Video != loc.Video {
			return
		}
		doc := rs.realm.Doc()
		titleAction = ApplyExact(rs.realm, doc, rs.selectors.WatchTitle, text.Title)
		nameAction = ApplyExact(rs.realm, doc, rs.selectors.WatchChannelName, channelName)
	})

	rs.record(ctx, loc.Video.String(), domain.FieldTitle, titleAction)
	if !text.ChannelID.IsZero() {
		rs.record(ctx, text.ChannelID.String(), domain.FieldChannelName, nameAction)
	}
}

// RefreshVideo restores the video description inside the engagement panel.
// The description is pinned in the session cache after the first successful
// resolve, so panel reopen cycles cost nothing.
func (rs *Restorer) RefreshVideo(ctx context.Context) {
	if !rs.settings.Descriptions {
		return
	}

	loc := rs.location()
	if !loc.IsWatch() {
		rs.logger.Debug("Panel video refresh outside watch page", zap.String("url", loc.Raw))
		return
	}

	desc, ok := rs.cache.Get(loc.Video)
	if !ok {
		if text := rs.source.Video(ctx, loc.Video); text != nil {
			desc = text.Description
			rs.cache.Set(loc.Video, desc)
			ok = true
		}
	}
	if !ok {
		rs.record(ctx, loc.Video.String(), domain.FieldDescription, domain.ActionUnavailable)
		return
	}

	action := domain.ActionStaleDrop
	rs.realm.Do(func() {
		if rs.location().Video != loc.Video {
			return
		}
		container := dom.First(rs.realm.Doc(), rs.selectors.PanelContainer)
		if container == nil {
			action = domain.ActionAbsent
			return
		}
		action = ApplyExact(rs.realm, container, rs.selectors.PanelVideoDescription, desc)
	})

	rs.record(ctx, loc.Video.String(), domain.FieldDescription, action)
}

// RefreshChannel restores the channel about text inside the engagement
// panel. On a watch page the channel is the current video's; on a channel
// page it is the channel itself.
func (rs *Restorer) RefreshChannel(ctx context.Context) {
	if !rs.settings.Descriptions {
		return
	}

	loc := rs.location()
	ref := loc.ChannelRef()
	if ref.IsZero() && loc.IsWatch() {
		if text := rs.source.Video(ctx, loc.Video); text != nil {
			ref = domain.ChannelRef{ID: text.ChannelID}
		}
	}
	if ref.IsZero() {
		rs.logger.Debug("Panel channel refresh with no channel in scope", zap.String("url", loc.Raw))
		return
	}

	ch := rs.source.Channel(ctx, ref)
	if ch == nil {
		rs.record(ctx, ref.Key(), domain.FieldChannelAbout, domain.ActionUnavailable)
		return
	}

	action := domain.ActionStaleDrop
	rs.realm.Do(func() {
		if !sameTarget(rs.location(), loc) {
			return
		}
		container := dom.First(rs.realm.Doc(), rs.selectors.PanelContainer)
		if container == nil {
			action = domain.ActionAbsent
			return
		}
		action = ApplyPrefix(rs.realm, container, rs.selectors.PanelChannelDescription, ch.Description)
	})

	rs.record(ctx, ref.Key(), domain.FieldChannelAbout, action)
}

// RestoreChannelPage restores the header name and about preview on a
// channel page.
func (rs *Restorer) RestoreChannelPage(ctx context.Context) {
	loc := rs.location()
	ref := loc.ChannelRef()
	if ref.IsZero() {
		return
	}

	ch := rs.source.Channel(ctx, ref)
	if ch == nil {
		if rs.settings.Titles {
			rs.record(ctx, ref.Key(), domain.FieldChannelName, domain.ActionUnavailable)
		}
		if rs.settings.Descriptions {
			rs.record(ctx, ref.Key(), domain.FieldChannelAbout, domain.ActionUnavailable)
		}
		return
	}

	nameAction := domain.ActionStaleDrop
	aboutAction := domain.ActionStaleDrop
	rs.realm.Do(func() {
		if !sameTarget(rs.location(), loc) {
			return
		}
		doc := rs.realm.Doc()
		if rs.settings.Titles {
			nameAction = ApplyExact(rs.realm, doc, rs.selectors.ChannelHeaderName, ch.Name)
		}
		if rs.settings.Descriptions {
			aboutAction = ApplyPrefix(rs.realm, doc, rs.selectors.ChannelAboutDescription, ch.Description)
		}
	})

	if rs.settings.Titles {
		rs.record(ctx, ref.Key(), domain.FieldChannelName, nameAction)
	}
	if rs.settings.Descriptions {
		rs.record(ctx, ref.Key(), domain.FieldChannelAbout, aboutAction)
	}
}

type searchCard struct {
	node *html.Node
	id   domain.VideoID
}

// RefreshSearch restores result-card titles on a search page. Cards are
// snapshotted in one realm task, resolved concurrently outside the loop,
// and patched in a second task that drops anything the host removed or
// navigated away from in between.
func (rs *Restorer) RefreshSearch(ctx context.Context) {
	if !rs.settings.Titles {
		return
	}

	loc := rs.location()
	if !loc.IsSearch() {
		return
	}

	var cards []searchCard
	rs.realm.Do(func() {
		container := dom.First(rs.realm.Doc(), rs.selectors.SearchContainer)
		if container == nil {
			return
		}
		for _, card := range dom.All(container, rs.selectors.SearchCard) {
			link := dom.First(card, rs.selectors.SearchCardLink)
			if link == nil {
				continue
			}
			target := domain.ParseLocation(dom.Attr(link, "href"))
			if !target.IsWatch() {
				continue
			}
			cards = append(cards, searchCard{node: card, id: target.Video})
		}
	})
	if len(cards) == 0 {
		rs.logger.Debug("No result cards to restore", zap.String("url", loc.Raw))
		return
	}

	titles := make([]string, len(cards))
	titlesMu := sync.Mutex{}
	p := pool.New().WithMaxGoroutines(searchResolveWorkers)
	for i, card := range cards {
		i, card := i, card
		p.Go(func() {
			text := rs.source.Video(ctx, card.id)
			if text == nil {
				return
			}
			titlesMu.Lock()
			titles[i] = text.Title
			titlesMu.Unlock()
		})
	}
	p.Wait()

	actions := make([]domain.Action, len(cards))
	rs.realm.Do(func() {
		stillHere := sameTarget(rs.location(), loc)
		doc := rs.realm.Doc()
		for i, card := range cards {
			switch {
			case !stillHere, !dom.Contains(doc, card.node):
				actions[i] = domain.ActionStaleDrop
			case titles[i] == "":
				actions[i] = domain.ActionUnavailable
			default:
				actions[i] = ApplyExact(rs.realm, card.node, rs.selectors.SearchCardTitle, titles[i])
			}
		}
	})

	for i, card := range cards {
		rs.record(ctx, card.id.String(), domain.FieldSearchTitle, actions[i])
	}
}

// sameTarget reports whether two locations address the same restorable
// content. Raw URLs are not compared: query churn like timestamps must not
// count as navigation.
func sameTarget(a, b domain.Location) bool {
	return a.Kind == b.Kind &&
		a.Video == b.Video &&
		a.ChannelRef().Key() == b.ChannelRef().Key()
}

func (rs *Restorer) record(ctx context.Context, key string, field domain.Field, action domain.Action) {
	rs.journal.Record(ctx, domain.Outcome{
		Session: rs.session,
		Key:     key,
		Field:   field,
		Action:  action,
		At:      time.Now(),
	})

	fields := []zap.Field{
		zap.String("key", key),
		zap.String("field", string(field)),
	}
	switch action {
	case domain.ActionPatched:
		rs.logger.Info("Restored original text", fields...)
	case domain.ActionStaleDrop:
		rs.logger.Debug("Dropped stale restoration", fields...)
	case domain.ActionUnavailable:
		rs.logger.Debug("Original text unavailable", fields...)
	default:
		rs.logger.Debug("Restoration skipped", append(fields, zap.String("action", string(action)))...)
	}
}
