package resolve

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/domain"
	apperrors "github.com/kapu/untranslate-go/pkg/errors"
)

// Official is the credentialed API surface. Nil when no credential is
// configured, which turns the resolver into fallback-only mode.
type Official interface {
	Video(ctx context.Context, id domain.VideoID) (*VideoText, error)
	ChannelByHandle(ctx context.Context, handle domain.ChannelHandle) (*ChannelText, error)
	ChannelByID(ctx context.Context, id domain.ChannelID) (*ChannelText, error)
}

// Fallback is the uncredentialed internal API surface. Channel text always
// needs a channel id here, so handles go through ResolveHandle first.
type Fallback interface {
	Video(ctx context.Context, id domain.VideoID) (*VideoText, error)
	ResolveHandle(ctx context.Context, handle domain.ChannelHandle) (domain.ChannelID, error)
	ChannelByID(ctx context.Context, id domain.ChannelID) (*ChannelText, error)
}

// Scraper is the last-resort source, reading the public page markup. It
// takes one identifier and needs no discovery step of its own.
type Scraper interface {
	Video(ctx context.Context, id domain.VideoID) (*VideoText, error)
	Channel(ctx context.Context, ref domain.ChannelRef) (*ChannelText, error)
}

// Resolver answers "what was the original text" for videos and channels.
// The official API is tried first when available; any failure there falls
// through to the internal API, and from there to the page scraper. Total
// failure yields the zero value, never an error: a page with translated
// text is strictly better than a page the restorer broke.
type Resolver struct {
	official  Official
	fallback  Fallback
	scraper   Scraper
	lookaside *ChannelLookaside
	logger    *zap.Logger
}

func NewResolver(official Official, fallback Fallback, scraper Scraper, lookaside *ChannelLookaside, logger *zap.Logger) *Resolver {
	return &Resolver{
		official:  official,
		fallback:  fallback,
		scraper:   scraper,
		lookaside: lookaside,
		logger:    logger,
	}
}

// Title returns the original video title, or "" when it cannot be resolved.
func (r *Resolver) Title(ctx context.Context, id domain.VideoID) string {
	text := r.video(ctx, id)
	if text == nil {
		return ""
	}
	return text.Title
}

// Description returns the original video description, or "" when it cannot
// be resolved.
func (r *Resolver) Description(ctx context.Context, id domain.VideoID) string {
	text := r.video(ctx, id)
	if text == nil {
		return ""
	}
	return text.Description
}

// Video returns the full resolved video text, or nil when both sources
// failed. Callers wanting title and description together use this to spend
// one fetch instead of two.
func (r *Resolver) Video(ctx context.Context, id domain.VideoID) *VideoText {
	return r.video(ctx, id)
}

// Channel returns the full resolved channel text, or nil when both sources
// failed. One lookup serves name and description together.
func (r *Resolver) Channel(ctx context.Context, ref domain.ChannelRef) *ChannelText {
	return r.channel(ctx, ref)
}

// ChannelName returns the original channel name, or "" when it cannot be
// resolved.
func (r *Resolver) ChannelName(ctx context.Context, ref domain.ChannelRef) string {
	text := r.channel(ctx, ref)
	if text == nil {
		return ""
	}
	return text.Name
}

// ChannelAbout returns the original channel description plus the channel id
// the source reported, or nil when it cannot be resolved.
func (r *Resolver) ChannelAbout(ctx context.Context, ref domain.ChannelRef) *domain.ChannelAbout {
	text := r.channel(ctx, ref)
	if text == nil {
		return nil
	}
	return &domain.ChannelAbout{ID: text.ID, Description: text.Description}
}

func (r *Resolver) video(ctx context.Context, id domain.VideoID) *VideoText {
	if id.IsZero() {
		return nil
	}

	if r.official != nil {
		text, err := r.official.Video(ctx, id)
		if err == nil {
			r.logger.Debug("Video resolved via official API", zap.String("video", id.String()))
			return text
		}
		r.logResolveFailure("official video lookup failed", err, zap.String("video", id.String()))
	}

	if r.fallback != nil {
		text, err := r.fallback.Video(ctx, id)
		if err == nil {
			r.logger.Debug("Video resolved via internal API", zap.String("video", id.String()))
			return text
		}
		r.logResolveFailure("internal video lookup failed", err, zap.String("video", id.String()))
	}

	if r.scraper != nil {
		text, err := r.scraper.Video(ctx, id)
		if err == nil {
			r.logger.Debug("Video resolved via page scrape", zap.String("video", id.String()))
			return text
		}
		r.logResolveFailure("video page scrape failed", err, zap.String("video", id.String()))
	}

	return nil
}

func (r *Resolver) channel(ctx context.Context, ref domain.ChannelRef) *ChannelText {
	if ref.IsZero() {
		return nil
	}

	if text := r.fromLookaside(ctx, ref); text != nil {
		return text
	}

	if r.official != nil {
		text, err := r.officialChannel(ctx, ref)
		if err == nil {
			r.storeLookaside(ctx, ref, text)
			r.logger.Debug("Channel resolved via official API", zap.String("channel", ref.Key()))
			return text
		}
		r.logResolveFailure("official channel lookup failed", err, zap.String("channel", ref.Key()))
	}

	if r.fallback != nil {
		text, err := r.fallbackChannel(ctx, ref)
		if err == nil {
			r.storeLookaside(ctx, ref, text)
			r.logger.Debug("Channel resolved via internal API", zap.String("channel", ref.Key()))
			return text
		}
		r.logResolveFailure("internal channel lookup failed", err, zap.String("channel", ref.Key()))
	}

	if r.scraper != nil {
		text, err := r.scraper.Channel(ctx, ref)
		if err == nil {
			r.storeLookaside(ctx, ref, text)
			r.logger.Debug("Channel resolved via page scrape", zap.String("channel", ref.Key()))
			return text
		}
		r.logResolveFailure("channel page scrape failed", err, zap.String("channel", ref.Key()))
	}

	return nil
}

func (r *Resolver) officialChannel(ctx context.Context, ref domain.ChannelRef) (*ChannelText, error) {
	if ref.HasID() {
		return r.official.ChannelByID(ctx, ref.ID)
	}
	return r.official.ChannelByHandle(ctx, ref.Handle)
}

func (r *Resolver) fallbackChannel(ctx context.Context, ref domain.ChannelRef) (*ChannelText, error) {
	id := ref.ID
	if id.IsZero() {
		resolved, err := r.fallback.ResolveHandle(ctx, ref.Handle)
		if err != nil {
			return nil, err
		}
		id = resolved
	}
	return r.fallback.ChannelByID(ctx, id)
}

func (r *Resolver) fromLookaside(ctx context.Context, ref domain.ChannelRef) *ChannelText {
	if !r.lookaside.Enabled() {
		return nil
	}
	text, err := r.lookaside.Get(ctx, ref)
	if err != nil {
		r.logger.Debug("Channel lookaside read failed", zap.String("channel", ref.Key()), zap.Error(err))
		return nil
	}
	if text != nil {
		r.logger.Debug("Channel resolved from lookaside", zap.String("channel", ref.Key()))
	}
	return text
}

func (r *Resolver) storeLookaside(ctx context.Context, ref domain.ChannelRef, text *ChannelText) {
	if !r.lookaside.Enabled() {
		return
	}
	if err := r.lookaside.Set(ctx, ref, text); err != nil {
		r.logger.Debug("Channel lookaside write failed", zap.String("channel", ref.Key()), zap.Error(err))
	}
}

// logResolveFailure keeps the noise profile sane: a missing entity is
// routine (debug), everything else is worth a warning.
func (r *Resolver) logResolveFailure(msg string, err error, fields ...zap.Field) {
	var notFound *apperrors.NotFoundError
	if errors.As(err, &notFound) {
		r.logger.Debug(msg, append(fields, zap.Error(err))...)
		return
	}
	r.logger.Warn(msg, append(fields, zap.Error(err))...)
}
