package domain

import "strings"

// ChannelHandle is the public @name of a channel, stored canonically with the
// leading "@". Handles appear in URL paths and byline text.
type ChannelHandle string

// ParseChannelHandle canonicalizes a handle token, accepting it with or
// without the leading "@". Returns the zero handle for empty input.
func ParseChannelHandle(raw string) ChannelHandle {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "@")
	if raw == "" {
		return ""
	}
	return ChannelHandle("@" + raw)
}

func (h ChannelHandle) String() string {
	return string(h)
}

func (h ChannelHandle) IsZero() bool {
	return h == ""
}

// URL returns the channel page URL for the handle, the form the internal
// API's navigation resolver expects.
func (h ChannelHandle) URL() string {
	if h.IsZero() {
		return ""
	}
	return "https://www.youtube.com" + "/" + string(h)
}

// ChannelID is the internal channel identifier ("UC..."). Resolved from a
// handle when needed; never required up front.
type ChannelID string

func (c ChannelID) String() string {
	return string(c)
}

func (c ChannelID) IsZero() bool {
	return c == ""
}

// ChannelRef addresses a channel by whichever identifier the caller has.
// A populated ID lets resolvers skip handle discovery.
type ChannelRef struct {
	Handle ChannelHandle `json:"handle,omitempty"`
	ID     ChannelID     `json:"id,omitempty"`
}

func (r ChannelRef) HasID() bool {
	return !r.ID.IsZero()
}

func (r ChannelRef) IsZero() bool {
	return r.Handle.IsZero() && r.ID.IsZero()
}

// Key returns a stable log/cache key for the reference.
func (r ChannelRef) Key() string {
	if r.HasID() {
		return r.ID.String()
	}
	return r.Handle.String()
}

// ChannelAbout is the resolved channel description, together with the
// channel id when the source reported one in the same response.
type ChannelAbout struct {
	ID          ChannelID `json:"id,omitempty"`
	Description string    `json:"description"`
}

// WithID returns a copy carrying the given id when the original had none.
func (a *ChannelAbout) WithID(id ChannelID) *ChannelAbout {
	if a == nil {
		return nil
	}
	if a.ID.IsZero() && !id.IsZero() {
		return &ChannelAbout{ID: id, Description: a.Description}
	}
	return a
}
