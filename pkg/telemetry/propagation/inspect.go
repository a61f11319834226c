package propagation

import "mercator-hq/correlator/pkg/telemetry/identity"

// HeaderReport describes one candidate header.
type HeaderReport struct {
	Source       Source `json:"source"`
	Header       string `json:"header"`
	Value        string `json:"value,omitempty"`
	Present      bool   `json:"present"`
	Valid        bool   `json:"valid"`
	TraceID      string `json:"trace_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
	Sampled      *bool  `json:"sampled,omitempty"`
}

// Report explains how an extractor resolves a header set.
type Report struct {
	Headers  []HeaderReport          `json:"headers"`
	Selected Source                  `json:"selected,omitempty"`
	Identity *identity.TraceIdentity `json:"identity,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// Inspect evaluates every candidate header independently and reports which
// one Extract would pick. Used by the debug endpoint and the inspect command.
func (e *Extractor) Inspect(h Getter) Report {
	var r Report
	for _, f := range e.formats {
		hr := HeaderReport{Source: f.source, Header: f.header}
		if h != nil {
			hr.Value = h.Get(f.header)
		}
		if hr.Value != "" {
			hr.Present = true
			if id, ok := f.parse(hr.Value); ok {
				sampled := id.Sampled
				hr.Valid = true
				hr.TraceID = id.TraceID
				hr.ParentSpanID = id.ParentSpanID
				hr.Sampled = &sampled
			}
		}
		r.Headers = append(r.Headers, hr)
	}

	id, src, err := e.Extract(h)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Selected = src
	r.Identity = &id
	return r
}
