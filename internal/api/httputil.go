package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gookit/validate"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/model"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("encoding response")
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error      string          `json:"error"`
	Code       string          `json:"code"`
	Violations []violationBody `json:"violations,omitempty"`
	Offending  []string        `json:"offending,omitempty"`
}

type violationBody struct {
	Code        string `json:"code"`
	EntryID     string `json:"entry_id,omitempty"`
	LineNo      int    `json:"line_no,omitempty"`
	Description string `json:"description"`
}

// writeError writes a structured JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorBody{Error: message, Code: code})
}

// writeServiceError maps the error taxonomy to HTTP statuses: validation
// failures are 400, missing entities 404, state conflicts 409 and transient
// store failures 503.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs model.ValidationErrors
		serr  *model.StateError
	)
	switch {
	case errors.As(err, &verrs):
		body := errorBody{Error: "validation failed", Code: string(verrs[0].Code)}
		for _, v := range verrs {
			body.Violations = append(body.Violations, violationBody{
				Code: string(v.Code), EntryID: v.EntryID, LineNo: v.LineNo, Description: v.Description,
			})
		}
		s.writeJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &serr) && serr.Code == model.CodeNotFound:
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: serr.Error(), Code: string(serr.Code)})
	case errors.As(err, &serr):
		s.writeJSON(w, http.StatusConflict, errorBody{Error: serr.Error(), Code: string(serr.Code), Offending: serr.Offending})
	case errors.Is(err, model.ErrNotFound):
		s.writeError(w, http.StatusNotFound, string(model.CodeNotFound), err.Error())
	case model.IsTransient(err):
		s.logRequest(r).WithError(err).Warn("transient store failure")
		s.writeError(w, http.StatusServiceUnavailable, "Unavailable", "storage temporarily unavailable, retry later")
	default:
		s.logRequest(r).WithError(err).Error("internal error")
		s.writeError(w, http.StatusInternalServerError, "Internal", "internal server error")
	}
}

// decodeJSON decodes the request body into v and validates its struct tags.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.Invalid(model.CodeInvalidInput, "invalid JSON body: %v", err)
	}
	return checkPayload(v)
}

// checkPayload runs gookit/validate over v and reports every failed rule.
func checkPayload(v any) error {
	vd := validate.Struct(v)
	if vd.Validate() {
		return nil
	}
	var msgs []string
	for field, errs := range vd.Errors.All() {
		for _, msg := range errs {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, msg))
		}
	}
	sort.Strings(msgs)
	verrs := make(model.ValidationErrors, len(msgs))
	for i, m := range msgs {
		verrs[i] = model.ValidationError{Code: model.CodeInvalidInput, Description: m}
	}
	return verrs
}

// actor extracts the X-Actor header that every mutation must carry.
func (s *Server) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	a := r.Header.Get("X-Actor")
	if a == "" {
		s.writeError(w, http.StatusBadRequest, "MissingActor", "X-Actor header is required")
		return "", false
	}
	return a, true
}

func tenantID(r *http.Request) string {
	return chi.URLParam(r, "tenantID")
}

// parseDay parses an optional YYYY-MM-DD value; "" yields def.
func parseDay(raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	d, err := model.ParseDay(raw)
	if err != nil {
		return time.Time{}, model.Invalid(model.CodeInvalidInput, "invalid date %q, want YYYY-MM-DD", raw)
	}
	return d, nil
}

// parseLimit reads the limit query parameter, capped at 500.
func parseLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 0
	}
	if n > 500 {
		n = 500
	}
	return n
}

func (s *Server) logRequest(r *http.Request) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"tenant": tenantID(r),
	})
}
