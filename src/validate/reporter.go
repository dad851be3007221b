package validate

import (
	"github.com/zachgrayio/bkvalidate/src/core"
	"github.com/zachgrayio/bkvalidate/src/metrics"
)

// A Reporter decides what happens to the outcome of a validation.
// Hard failures are returned to the caller, unless we're in warn-only mode in which case they're
// logged and swallowed.
type Reporter struct {
	config  *core.Configuration
	metrics *metrics.Metrics
}

// NewReporter returns a new Reporter. The metrics may be nil.
func NewReporter(config *core.Configuration, m *metrics.Metrics) *Reporter {
	return &Reporter{config: config, metrics: m}
}

// Report reports the outcome of one validation of the given kind, returning the error that the
// caller should see.
func (r *Reporter) Report(kind string, err error) error {
	if err == nil {
		r.metrics.RecordValidation(kind, metrics.Passed)
		return nil
	} else if core.IsSoft(err) {
		log.Warning("%s", err)
		r.metrics.RecordValidation(kind, metrics.Skipped)
		return nil
	} else if r.config.Validation.WarnOnly {
		log.Warning("%s", err)
		r.metrics.RecordValidation(kind, metrics.Warned)
		return nil
	}
	r.metrics.RecordValidation(kind, metrics.Failed)
	return err
}

// Skip records a validation that was skipped without being attempted.
func (r *Reporter) Skip(kind string) {
	r.metrics.RecordValidation(kind, metrics.Skipped)
}
