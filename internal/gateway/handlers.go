package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// rpcTimeout bounds a single RPC call.
const rpcTimeout = 2 * time.Minute

// HealthResponse is returned by the public health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Debug().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	if err := rc.Client.RespondError(rc.Frame.ID, ErrorShape{Code: code, Message: message}); err != nil {
		rc.Server.log.Debug().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error response")
	}
}

// Params unmarshals the request params into target.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

func (s *Server) registerRPCHandlers() {
	s.Handle(MethodBridgeConnect, s.rpcConnect)
	s.Handle(MethodBridgeDisconnect, s.rpcDisconnect)
	s.Handle(MethodNoteSend, s.rpcNoteSend)
	s.Handle(MethodWindowState, s.rpcWindowState)
	s.Handle(MethodBridgeStatus, s.rpcStatus)
}

func (s *Server) rpcConnect(rc *RequestContext) {
	ctx, cancel := context.WithTimeout(rc.Ctx, rpcTimeout)
	defer cancel()
	rc.Respond(s.engine.Connect(ctx))
}

func (s *Server) rpcDisconnect(rc *RequestContext) {
	ctx, cancel := context.WithTimeout(rc.Ctx, rpcTimeout)
	defer cancel()
	s.engine.Disconnect(ctx)
	rc.Respond(s.engine.Snapshot())
}

func (s *Server) rpcNoteSend(rc *RequestContext) {
	var p NoteSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(rc.Ctx, rpcTimeout)
	defer cancel()
	rc.Respond(s.engine.SendNote(ctx, p.Text))
}

func (s *Server) rpcWindowState(rc *RequestContext) {
	var p WindowStateParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	s.engine.NotifyFocusChanged(p.Focused, p.Visible, p.Minimized)
	rc.Respond(s.engine.Snapshot())
}

func (s *Server) rpcStatus(rc *RequestContext) {
	rc.Respond(s.engine.Snapshot())
}
