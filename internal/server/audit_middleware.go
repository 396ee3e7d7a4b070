package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// auditLogMiddleware runs inside the router, so the matched route name and
// path variables identify the handler and the entity it touched.
func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		skipRequestBody := strings.Contains(contentType, "multipart/form-data")
		entry := AuditLogEntry{
			Timestamp: time.Now().UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Handler:   "unknown",
		}

		if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
			entry.Handler = route.GetName()
		}
		if username, _, ok := r.BasicAuth(); ok {
			entry.Staff = username
		}

		vars := mux.Vars(r)
		entry.EntityID = vars["id"]
		if entry.EntityID == "" {
			entry.EntityID = vars["userID"]
		}

		var requestBody []byte
		if !skipRequestBody && r.Body != nil {
			requestBody, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			entry.Request = string(requestBody)
		}

		if entry.Handler == "handleTransitionParcel" && entry.EntityID != "" {
			var statusRequest struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(requestBody, &statusRequest); err == nil {
				entry.NewStatus = statusRequest.Status
				if parcel, err := s.hub.GetParcel(r.Context(), entry.EntityID); err == nil {
					entry.OldStatus = string(parcel.Status)
				}
			}
		}

		wrw := newResponseWriterWrapper(w)

		next.ServeHTTP(wrw, r)

		entry.StatusCode = wrw.GetStatusCode()
		entry.Response = string(wrw.GetBody())

		s.AuditManager.LogEntry(r.Context(), entry)
	})
}
