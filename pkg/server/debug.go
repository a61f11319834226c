package server

import (
	"encoding/json"
	"net/http"

	"mercator-hq/correlator/pkg/middleware"
	"mercator-hq/correlator/pkg/telemetry/identity"
	"mercator-hq/correlator/pkg/telemetry/propagation"
)

// TraceReport is the body of the debug trace endpoint.
type TraceReport struct {
	// Identity is the span serving this request. Absent when the path is
	// excluded from instrumentation.
	Identity *identity.TraceIdentity `json:"identity,omitempty"`

	RequestID string `json:"request_id,omitempty"`

	// Inspection shows how each inbound header was read.
	Inspection propagation.Report `json:"inspection"`
}

// debugTrace reports how the request's trace headers were resolved. It is
// traced like any other route.
func (s *Server) debugTrace(w http.ResponseWriter, r *http.Request) {
	report := TraceReport{
		Inspection: s.tel.Extractor().Inspect(r.Header),
	}
	if req := middleware.FromContext(r.Context()); req != nil && !req.Skipped() {
		id := req.Identity()
		report.Identity = &id
		report.RequestID = req.ID()
		req.Logger().Debug("trace report served", "selected", string(report.Inspection.Selected))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}
