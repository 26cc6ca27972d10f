package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/buildinfo"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/finding"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// StartRunRequest is the body of POST /v1/runs.
type StartRunRequest struct {
	TargetID string            `json:"target_id"`
	Kind     string            `json:"kind"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// HealthBody is the body of GET /healthz.
type HealthBody struct {
	Status     string                 `json:"status"`
	ActiveRuns int                    `json:"active_runs"`
	Version    string                 `json:"version"`
	Findings   map[finding.Status]int `json:"findings"`
}

// WorkflowBody describes one registered kind.
type WorkflowBody struct {
	Kind  workflow.Kind             `json:"kind"`
	Steps []workflow.StepDefinition `json:"steps"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthBody{
		Status:     "ok",
		ActiveRuns: s.engine.ActiveRuns(),
		Version:    buildinfo.Version,
		Findings:   s.findings.Counts(),
	})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("decoding body: %v", err))
		return
	}

	if req.TargetID == "" {
		s.writeEngineError(w, workflow.ErrEmptyTarget)
		return
	}
	kind, err := s.engine.Registry().ParseKind(req.Kind)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	targets, err := finding.ResolveTargets(s.findings, kind, []string{req.TargetID})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if len(targets) != 1 {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("target %q matches %d findings; name exactly one", req.TargetID, len(targets)))
		return
	}

	id, err := s.engine.Start(targets[0], kind, workflow.WithMetadata(req.Metadata))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	run, err := s.engine.GetRun(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+id)
	writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.GetRun(mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.Cancel(mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleClearRun(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Clear(mux.Vars(r)["id"]); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTargetRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.engine.ListRuns(mux.Vars(r)["target"])
	if runs == nil {
		runs = []workflow.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleWorkflows(w http.ResponseWriter, _ *http.Request) {
	reg := s.engine.Registry()
	kinds := reg.Kinds()
	out := make([]WorkflowBody, 0, len(kinds))
	for _, k := range kinds {
		steps, err := reg.Steps(k)
		if err != nil {
			continue
		}
		out = append(out, WorkflowBody{Kind: k, Steps: steps})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	list := s.findings.List()
	if pattern := r.URL.Query().Get("match"); pattern != "" {
		var err error
		list, err = s.findings.Match(pattern)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_pattern", err.Error())
			return
		}
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := list[:0]
		for _, f := range list {
			if string(f.Status) == status {
				filtered = append(filtered, f)
			}
		}
		list = filtered
	}
	if list == nil {
		list = []finding.Finding{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetFinding(w http.ResponseWriter, r *http.Request) {
	f, err := s.findings.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleReopenFinding(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.findings.Reopen(id); err != nil {
		s.writeEngineError(w, err)
		return
	}
	f, err := s.findings.Get(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.conns.List())
}

// --- Responses ---

// statusFor maps engine and store errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, workflow.ErrAlreadyRunning):
		return http.StatusConflict, "already_running"
	case errors.Is(err, workflow.ErrCapacityExceeded):
		return http.StatusTooManyRequests, "capacity_exceeded"
	case errors.Is(err, workflow.ErrUnknownKind):
		return http.StatusBadRequest, "unknown_kind"
	case errors.Is(err, workflow.ErrEmptyTarget):
		return http.StatusBadRequest, "empty_target"
	case errors.Is(err, workflow.ErrRunNotFound), errors.Is(err, finding.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, workflow.ErrRunActive):
		return http.StatusConflict, "run_active"
	case errors.Is(err, finding.ErrNotOpen), errors.Is(err, finding.ErrAlreadyOpen):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, finding.ErrNoMatch):
		return http.StatusNotFound, "no_match"
	case errors.Is(err, workflow.ErrEngineClosed):
		return http.StatusServiceUnavailable, "shutting_down"
	default:
		return http.StatusBadRequest, "bad_request"
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	body := ErrorBody{Error: ErrorDetail{Code: code, Message: err.Error()}}
	var running *workflow.AlreadyRunningError
	if errors.As(err, &running) {
		body.Error.RunID = running.RunID
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
