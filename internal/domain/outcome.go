package domain

import "time"

// Field names one piece of restorable text.
type Field string

const (
	FieldTitle        Field = "title"
	FieldDescription  Field = "description"
	FieldChannelName  Field = "channel_name"
	FieldChannelAbout Field = "channel_about"
	FieldSearchTitle  Field = "search_title"
)

// Action is what a patch operation did after comparing live text with the
// resolved original.
type Action string

const (
	ActionPatched        Action = "patched"
	ActionAlreadyCorrect Action = "already_correct"
	ActionAbsent         Action = "absent"
	ActionStaleDrop      Action = "stale_drop"
	ActionUnavailable    Action = "unavailable"
)

// Outcome is one audit journal entry: what happened to one field of one page.
type Outcome struct {
	Session string    `json:"session"`
	Key     string    `json:"key"`
	Field   Field     `json:"field"`
	Action  Action    `json:"action"`
	At      time.Time `json:"at"`
}
