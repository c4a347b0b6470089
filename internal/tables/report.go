package tables

import "github.com/homegrid/homegrid/internal/engine"

// Failure records one step that did not complete.
type Failure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report aggregates per-step outcomes of a table or seed run. Steps never
// abort the run; every step lands in exactly one of the two lists.
type Report struct {
	Succeeded []string  `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

func (r *Report) ok(name string) {
	r.Succeeded = append(r.Succeeded, name)
}

func (r *Report) fail(name string, err error) {
	r.Failed = append(r.Failed, Failure{Name: name, Reason: err.Error()})
}

// Status collapses the report into the provisioning status taxonomy:
// everything succeeded, a mix, or nothing succeeded.
func (r *Report) Status() engine.Status {
	switch {
	case len(r.Failed) == 0:
		return engine.StatusSuccess
	case len(r.Succeeded) == 0:
		return engine.StatusError
	default:
		return engine.StatusPartialSuccess
	}
}
