package resolve

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/constants"
	"github.com/kapu/untranslate-go/internal/domain"
	"github.com/kapu/untranslate-go/pkg/errors"
)

const channelKeyPrefix = "untranslate:channel:"

// ChannelLookaside is an optional cross-session cache for resolved channel
// text. Channel names and descriptions barely change, so sharing them
// through Redis spares API quota across restarts. A nil client disables the
// look-aside entirely; every method degrades to a miss or a no-op.
type ChannelLookaside struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewChannelLookaside(rdb *redis.Client, logger *zap.Logger) *ChannelLookaside {
	return &ChannelLookaside{rdb: rdb, logger: logger}
}

func (l *ChannelLookaside) Enabled() bool {
	return l != nil && l.rdb != nil
}

// Get returns the cached channel text for the reference key, or nil on miss.
func (l *ChannelLookaside) Get(ctx context.Context, ref domain.ChannelRef) (*ChannelText, error) {
	if !l.Enabled() || ref.IsZero() {
		return nil, nil
	}

	key := channelKeyPrefix + ref.Key()
	data, err := l.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewCacheError("channel lookaside read failed", "get", key, err)
	}

	var text ChannelText
	if err := json.Unmarshal(data, &text); err != nil {
		return nil, errors.NewCacheError("channel lookaside decode failed", "get", key, err)
	}
	return &text, nil
}

// Set stores resolved channel text under both the reference key and the
// channel id, so a later id-only lookup hits too.
func (l *ChannelLookaside) Set(ctx context.Context, ref domain.ChannelRef, text *ChannelText) error {
	if !l.Enabled() || text == nil {
		return nil
	}

	data, err := json.Marshal(text)
	if err != nil {
		return errors.NewCacheError("channel lookaside encode failed", "set", ref.Key(), err)
	}

	keys := []string{channelKeyPrefix + ref.Key()}
	if !text.ID.IsZero() && text.ID.String() != ref.Key() {
		keys = append(keys, channelKeyPrefix+text.ID.String())
	}
	for _, key := range keys {
		if err := l.rdb.Set(ctx, key, data, constants.CacheTTL.ChannelLookup).Err(); err != nil {
			return errors.NewCacheError("channel lookaside write failed", "set", key, err)
		}
	}
	return nil
}
