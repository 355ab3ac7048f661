package restore

// Selectors are the fixed structural paths into the host markup. The host
// renders distinct element names per surface, so these rarely need to change
// together; keeping them in one struct makes a markup change a one-file fix.
type Selectors struct {
	// Watch page.
	WatchTitle       string
	WatchChannelName string

	// Engagement panel. The container is also what the removal guard
	// protects; the markers classify which variant the host swapped in.
	PanelContainer          string
	PanelVideoMarker        string
	PanelVideoDescription   string
	PanelChannelMarker      string
	PanelChannelDescription string

	// Channel page.
	ChannelHeaderName       string
	ChannelAboutDescription string

	// Search results.
	SearchContainer string
	SearchCard      string
	SearchCardTitle string
	SearchCardLink  string
}

// DefaultSelectors matches the mobile-web markup the client context targets.
func DefaultSelectors() Selectors {
	return Selectors{
		WatchTitle:       "ytm-slim-video-metadata-section-renderer h1 .yt-core-attributed-string",
		WatchChannelName: "ytm-slim-owner-renderer .slim-owner-channel-name .yt-core-attributed-string",

		PanelContainer:          "ytm-engagement-panel-section-list-renderer",
		PanelVideoMarker:        "ytm-video-description-header-renderer",
		PanelVideoDescription:   "ytm-expandable-video-description-body-renderer .yt-core-attributed-string",
		PanelChannelMarker:      "ytm-channel-about-metadata-renderer",
		PanelChannelDescription: "ytm-channel-about-metadata-renderer .channel-description",

		ChannelHeaderName:       "ytm-channel-header-renderer .channel-header-title",
		ChannelAboutDescription: "ytm-description-preview-view-model .truncated-text",

		SearchContainer: "ytm-section-list-renderer",
		SearchCard:      "ytm-video-with-context-renderer",
		SearchCardTitle: ".media-item-headline .yt-core-attributed-string",
		SearchCardLink:  "a.media-item-thumbnail-container",
	}
}
