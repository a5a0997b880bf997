package gateway

import (
	"encoding/json"

	"github.com/soyeahso/notebridge/internal/domain"
	"github.com/soyeahso/notebridge/internal/hooks"
)

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// ProtocolVersion is the protocol version spoken by this server.
const ProtocolVersion = 1

// RPC methods.
const (
	MethodConnect          = "connect"
	MethodBridgeConnect    = "bridge.connect"
	MethodBridgeDisconnect = "bridge.disconnect"
	MethodNoteSend         = "note.send"
	MethodWindowState      = "window.state"
	MethodBridgeStatus     = "bridge.status"
)

// Events pushed to clients.
const (
	EventChallenge         = "connect.challenge"
	EventStatusChanged     = "status.changed"
	EventMessageReceived   = "message.received"
	EventBadgeChanged      = "badge.changed"
	EventConnectionChanged = "connection.changed"
)

// Frame is the base envelope for all WebSocket messages.
// The Type field discriminates between request, response, and event frames.
type Frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	// Error (response only)
	Error *ErrorShape `json:"error,omitempty"`
}

// ErrorShape is the standard error format in response frames.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectParams are sent by the client in the initial "connect" request.
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
}

// ClientInfo identifies the connecting widget.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token string `json:"token,omitempty"`
}

// HelloOK is the server's response payload after successful authentication.
type HelloOK struct {
	Protocol int        `json:"protocol"`
	Server   ServerInfo `json:"server"`
	Features Features   `json:"features"`
	Snapshot any        `json:"snapshot"`
}

// ServerInfo identifies the gateway server.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

// Features advertises available RPC methods and events.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// NoteSendParams are the params of note.send.
type NoteSendParams struct {
	Text string `json:"text"`
}

// WindowStateParams are the params of window.state.
type WindowStateParams = domain.WindowState

// StatusEvent is the payload of status.changed.
type StatusEvent struct {
	Message string `json:"message"`
}

// BadgeEvent is the payload of badge.changed. Label is what the widget
// should render; it is empty when the badge is hidden.
type BadgeEvent struct {
	Count   int    `json:"count"`
	Visible bool   `json:"visible"`
	Label   string `json:"label"`
}

// MessageEvent is the payload of message.received.
type MessageEvent = domain.RelevantMessage

// ConnectionEvent is the payload of connection.changed.
type ConnectionEvent = hooks.ConnectionChange

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
		Params: raw,
	}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		OK:      &ok,
		Payload: raw,
	}, nil
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id string, errShape ErrorShape) Frame {
	ok := false
	return Frame{
		Type:  FrameTypeResponse,
		ID:    id,
		OK:    &ok,
		Error: &errShape,
	}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}
