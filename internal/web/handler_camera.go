package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/fridgescan/internal/camera"
)

type cameraResponse struct {
	State     string `json:"state"`
	Status    string `json:"status"`
	CanStart  bool   `json:"can_start"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
}

func toCameraResponse(snap camera.Snapshot) cameraResponse {
	resp := cameraResponse{
		State:     snap.State.String(),
		Status:    snap.Status,
		CanStart:  snap.CanStart,
		SessionID: snap.SessionID,
	}
	if snap.LastError != nil {
		resp.Error = snap.LastError.Error()
		resp.ErrorKind = snap.LastError.Kind.String()
	}
	if snap.Device != nil {
		resp.DeviceID = snap.Device.ID
	}
	return resp
}

func (s *Server) requireScanner(w http.ResponseWriter) bool {
	if s.scanner == nil {
		http.Error(w, "no scanner attached", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) handleCameraStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireScanner(w) {
		return
	}
	s.writeJSON(w, http.StatusOK, toCameraResponse(s.scanner.Snapshot()))
}

func (s *Server) handleCameraStart(w http.ResponseWriter, r *http.Request) {
	if !s.requireScanner(w) {
		return
	}

	_, err := s.scanner.Start(r.Context())
	switch {
	case errors.Is(err, camera.ErrAlreadyRunning):
		s.writeJSON(w, http.StatusConflict, toCameraResponse(s.scanner.Snapshot()))
	case errors.Is(err, camera.ErrStopped):
		s.writeJSON(w, http.StatusOK, toCameraResponse(s.scanner.Snapshot()))
	case err != nil:
		// The controller has already logged and published the failure.
		s.writeJSON(w, http.StatusServiceUnavailable, toCameraResponse(s.scanner.Snapshot()))
	default:
		s.writeJSON(w, http.StatusOK, toCameraResponse(s.scanner.Snapshot()))
	}
}

func (s *Server) handleCameraStop(w http.ResponseWriter, r *http.Request) {
	if !s.requireScanner(w) {
		return
	}
	s.scanner.Stop()
	s.writeJSON(w, http.StatusOK, toCameraResponse(s.scanner.Snapshot()))
}

type cameraErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// handleCameraError classifies a failure raised by the page's own camera
// access, named by its DOMException name, into the message to display.
func (s *Server) handleCameraError(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	camErr := s.service.ReportCameraError(fields["name"], fields["message"])
	s.writeJSON(w, http.StatusOK, cameraErrorResponse{Kind: camErr.Kind.String(), Message: camErr.Error()})
}
