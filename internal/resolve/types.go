package resolve

import "github.com/kapu/untranslate-go/internal/domain"

// VideoText is the untranslated text of one video as the upstream stores it.
type VideoText struct {
	ID          domain.VideoID   `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	ChannelID   domain.ChannelID `json:"channel_id,omitempty"`
}

// ChannelText is the untranslated identity of one channel.
type ChannelText struct {
	ID          domain.ChannelID `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
}
