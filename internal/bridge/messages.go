// Package bridge is the websocket surface a page client connects to. The
// client streams its location, an initial snapshot and DOM mutations in;
// the bridge streams text patches and script injections back out.
package bridge

import "encoding/json"

// Message types from the client.
const (
	TypeHello    = "hello"
	TypeSnapshot = "snapshot"
	TypeMutation = "mutation"
	TypeNavigate = "navigate"
)

// Message types to the client.
const (
	TypeSession      = "session"
	TypeSetText      = "set-text"
	TypeInjectScript = "inject-script"
)

// Mutation operations.
const (
	OpAdd    = "add"
	OpRemove = "remove"
	OpText   = "text"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps data in an envelope of the given type.
func Encode(typ string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Data: payload})
}

// HelloData opens a session: where the page lives right now.
type HelloData struct {
	URL string `json:"url"`
}

// SessionData acknowledges a hello with the session id the server assigned.
type SessionData struct {
	ID string `json:"id"`
}

// SnapshotData carries the full serialized page. Sent once after hello and
// again whenever the client decides its incremental stream went bad.
type SnapshotData struct {
	HTML string `json:"html"`
}

// MutationData is one DOM change on the client. Nodes are addressed by
// child-index paths from the document root, computed before the change.
type MutationData struct {
	Op         string `json:"op"`
	ParentPath []int  `json:"parent_path,omitempty"`
	Index      int    `json:"index,omitempty"`
	HTML       string `json:"html,omitempty"`
	Path       []int  `json:"path,omitempty"`
	Text       string `json:"text,omitempty"`
}

// NavigateData reports a location change without a page reload.
type NavigateData struct {
	URL string `json:"url"`
}

// SetTextData tells the client to overwrite a node's text.
type SetTextData struct {
	Path []int  `json:"path"`
	Text string `json:"text"`
}

// InjectScriptData tells the client to add a script element with the given
// attributes to its own document.
type InjectScriptData struct {
	Attrs map[string]string `json:"attrs"`
}
