package plan

import (
	"fmt"
	"time"

	"invezgo-pipeline/pkg/endpoint"
)

// DateLayout is the wire format for all date values.
const DateLayout = "2006-01-02"

// PipelineZone is the fixed ingestion timezone (WIB, UTC+7). A fixed offset
// keeps runs reproducible on hosts without tzdata.
var PipelineZone = time.FixedZone("WIB", 7*60*60)

// DateArgs carries the runtime date selection. Either Date or the
// StartDate/EndDate pair may be set, never both.
type DateArgs struct {
	Date      string
	StartDate string
	EndDate   string
}

// window is the resolved inclusive day span for one endpoint run.
type window struct {
	start time.Time
	end   time.Time
}

// Validate rejects conflicting or malformed date arguments before any task
// is planned.
func (a DateArgs) Validate() error {
	if a.Date != "" && (a.StartDate != "" || a.EndDate != "") {
		return &endpoint.ConfigError{Reason: "-date cannot be combined with -start-date/-end-date"}
	}
	if (a.StartDate == "") != (a.EndDate == "") {
		return &endpoint.ConfigError{Reason: "-start-date and -end-date must be given together"}
	}
	for _, d := range []string{a.Date, a.StartDate, a.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.ParseInLocation(DateLayout, d, PipelineZone); err != nil {
			return &endpoint.ConfigError{Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", d)}
		}
	}
	if a.StartDate != "" {
		start, _ := time.ParseInLocation(DateLayout, a.StartDate, PipelineZone)
		end, _ := time.ParseInLocation(DateLayout, a.EndDate, PipelineZone)
		if end.Before(start) {
			return &endpoint.ConfigError{Reason: fmt.Sprintf("end date %s before start date %s", a.EndDate, a.StartDate)}
		}
	}
	return nil
}

// resolveWindow computes the effective day span for a spec with date
// iteration enabled. Runtime arguments override the configured span; a bare
// run defaults to today in the pipeline timezone.
func resolveWindow(spec *endpoint.Spec, args DateArgs, now time.Time) (window, error) {
	di := spec.Batch.DateIteration

	start, end := di.StartDate, di.EndDate
	switch {
	case args.Date != "":
		start, end = args.Date, args.Date
	case args.StartDate != "":
		start, end = args.StartDate, args.EndDate
	case start == "":
		today := now.In(PipelineZone).Format(DateLayout)
		start, end = today, today
	}

	from, err := time.ParseInLocation(DateLayout, start, PipelineZone)
	if err != nil {
		return window{}, &endpoint.ConfigError{Endpoint: spec.Name, Reason: fmt.Sprintf("invalid start_date %q", start)}
	}
	to, err := time.ParseInLocation(DateLayout, end, PipelineZone)
	if err != nil {
		return window{}, &endpoint.ConfigError{Endpoint: spec.Name, Reason: fmt.Sprintf("invalid end_date %q", end)}
	}
	if to.Before(from) {
		return window{}, &endpoint.ConfigError{Endpoint: spec.Name, Reason: fmt.Sprintf("end_date %s before start_date %s", end, start)}
	}

	return window{start: from, end: to}, nil
}

// days expands the window into individual YYYY-MM-DD values in ascending
// order. The remote API aggregates over a submitted range, so a span is
// never sent as-is; one request per day is the only way to get daily values.
func (w window) days() []string {
	var out []string
	for d := w.start; !d.After(w.end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out
}
