package domain

import (
	"net/url"
	"strings"
)

// PageKind classifies a location by which restore operations apply to it.
type PageKind string

const (
	PageWatch   PageKind = "watch"
	PageChannel PageKind = "channel"
	PageSearch  PageKind = "search"
	PageOther   PageKind = "other"
)

// Location is a parsed page address. Refresh routines always re-derive
// identifiers from the session's current Location, never from the event that
// scheduled them, so late events cannot resurrect identifiers from a page
// already navigated away from.
type Location struct {
	Raw       string        `json:"raw"`
	Kind      PageKind      `json:"kind"`
	Video     VideoID       `json:"video,omitempty"`
	Handle    ChannelHandle `json:"handle,omitempty"`
	ChannelID ChannelID     `json:"channel_id,omitempty"`
}

func (l Location) IsWatch() bool {
	return l.Kind == PageWatch
}

func (l Location) IsChannel() bool {
	return l.Kind == PageChannel
}

func (l Location) IsSearch() bool {
	return l.Kind == PageSearch
}

// ChannelRef returns the channel reference the location carries, if any.
func (l Location) ChannelRef() ChannelRef {
	return ChannelRef{Handle: l.Handle, ID: l.ChannelID}
}

// ParseLocation classifies a page URL and extracts the identifiers it
// carries. Unrecognized URLs come back as PageOther with no identifiers;
// they are never an error.
func ParseLocation(raw string) Location {
	loc := Location{Raw: raw, Kind: PageOther}

	u, err := url.Parse(raw)
	if err != nil {
		return loc
	}

	path := strings.Trim(u.Path, "/")
	segments := strings.Split(path, "/")
	if len(segments) == 0 || segments[0] == "" {
		return loc
	}

	switch {
	case segments[0] == "watch":
		if v := u.Query().Get("v"); v != "" {
			loc.Kind = PageWatch
			loc.Video = VideoID(v)
		}
	case segments[0] == "shorts" || segments[0] == "live":
		if len(segments) > 1 && segments[1] != "" {
			loc.Kind = PageWatch
			loc.Video = VideoID(segments[1])
		}
	case strings.HasPrefix(segments[0], "@"):
		loc.Kind = PageChannel
		loc.Handle = ParseChannelHandle(segments[0])
	case segments[0] == "channel":
		if len(segments) > 1 && segments[1] != "" {
			loc.Kind = PageChannel
			loc.ChannelID = ChannelID(segments[1])
		}
	case segments[0] == "c" || segments[0] == "user":
		// Legacy custom URLs still resolve through the handle path upstream.
		if len(segments) > 1 && segments[1] != "" {
			loc.Kind = PageChannel
			loc.Handle = ParseChannelHandle(segments[1])
		}
	case segments[0] == "results":
		loc.Kind = PageSearch
	}

	return loc
}
