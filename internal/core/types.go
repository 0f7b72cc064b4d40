package core

import (
	"time"
)

// OrganizationRef is the store-assigned identity of an Organization.
// It is opaque outside the store that issued it.
type OrganizationRef string

// Organization is an employer keyed by the feed's natural key.
type Organization struct {
	Ref      OrganizationRef `json:"id,omitempty"`
	Key      string          `json:"organizationKey"`
	Name     string          `json:"name"`
	Industry *string         `json:"industry"` // nil when absent or sentinel, never ""
}

// Posting is a single job posting keyed by the feed's natural key.
// Saving a Posting always replaces the stored document in full.
type Posting struct {
	Key             string  `json:"postingKey"`
	Title           string  `json:"title"`
	NormalizedTitle string  `json:"normalizedTitle"`
	Status          string  `json:"status"`
	Industry        *string `json:"industry"`
	City            string  `json:"city"`
	State           string  `json:"state"`
	ZipCode         string  `json:"zipCode"`

	OpeningDate time.Time  `json:"openingDate"`
	ClosingDate *time.Time `json:"closingDate"`

	SalaryRangeText string  `json:"salaryRangeText"`
	SalaryType      *string `json:"salaryType"`
	SalaryAvg       float64 `json:"salaryAvg"`
	SalaryMin       float64 `json:"salaryMin"`
	SalaryMax       float64 `json:"salaryMax"`

	// Label and weight lists are always the same length.
	Skills           []string  `json:"skills"`
	SkillWeights     []float64 `json:"skillWeights"`
	SoftSkills       []string  `json:"softSkills"`
	SoftSkillWeights []float64 `json:"softSkillWeights"`

	Qualifications []string `json:"qualifications"`
	DegreeMin      *string  `json:"degreeMin"`
	DegreeLevels   []string `json:"degreeLevels"`
	Certification  *string  `json:"certification"`

	ClassificationCode        string  `json:"classificationCode"`
	ClassificationProbability float64 `json:"classificationProbability"`

	Organization *OrganizationRef `json:"organizationRef"`
	IngestedAt   time.Time        `json:"ingestedAt"`
}

// Record is one raw row of the source feed: column name to raw cell text.
// Line is the 1-indexed line number in the source, used for log correlation.
type Record struct {
	Line   int
	Fields map[string]string
}

// Get returns the raw value of a column. A missing column reads as "".
func (r Record) Get(column string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[column]
}

// Page selects a window of results. The zero Page means "no pagination".
type Page struct {
	Number int `json:"page"`
	Limit  int `json:"limit"`
}

// IsZero reports whether pagination was not requested.
func (p Page) IsZero() bool {
	return p.Number == 0 && p.Limit == 0
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// Validate requires both values to be positive when either is set.
func (p Page) Validate() error {
	if p.IsZero() {
		return nil
	}
	if p.Number < 1 || p.Limit < 1 {
		return NewError(ErrInvalidCriteria, "invalid page or limit value", nil)
	}
	return nil
}

// FieldFailure describes a single cell that could not be normalized.
// The field falls back to its default value.
type FieldFailure struct {
	Column string `json:"column"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// RecordFailure describes a record that was rejected or failed to persist.
type RecordFailure struct {
	Line       int               `json:"line"`
	PostingKey string            `json:"postingKey,omitempty"`
	Kind       string            `json:"kind"`
	Reason     string            `json:"reason"`
	Raw        map[string]string `json:"raw,omitempty"`
}

// IngestionReport summarizes a single ingestion run.
type IngestionReport struct {
	RunID                string          `json:"runId"`
	Source               string          `json:"source,omitempty"`
	Admitted             int64           `json:"admitted"`
	Processed            int64           `json:"processed"`
	Failed               int64           `json:"failed"`
	Abandoned            int64           `json:"abandoned"` // Admitted but dropped when the run aborted
	OrganizationsCreated int64           `json:"organizationsCreated"`
	CapReached           bool            `json:"capReached"` // Admission stopped at the cap
	Failures             []RecordFailure `json:"failures,omitempty"`
	StartedAt            time.Time       `json:"startedAt"`
	Duration             time.Duration   `json:"duration"`
	Error                string          `json:"error,omitempty"` // Non-empty if the run aborted
}

// Terminal reports whether the run aborted before draining the stream.
func (r *IngestionReport) Terminal() bool {
	return r.Error != ""
}

// RunPhase indicates the current stage of an ingestion run.
type RunPhase string

const (
	PhaseQueued    RunPhase = "queued"
	PhaseRunning   RunPhase = "running"
	PhaseComplete  RunPhase = "complete"
	PhaseFailed    RunPhase = "failed"
	PhaseCancelled RunPhase = "cancelled"
)

// RunStatus is a snapshot of an asynchronous ingestion run.
type RunStatus struct {
	RunID  string           `json:"runId"`
	Source string           `json:"source"`
	Phase  RunPhase         `json:"phase"`
	Report *IngestionReport `json:"report,omitempty"`
}

// ReportRow is one group of a grouped count. A nil Key is the
// group of postings where the field is null or missing.
type ReportRow struct {
	Key   *string `json:"key"`
	Count int64   `json:"count"`
}

// Report is the result of a named aggregation.
type Report struct {
	Name     string      `json:"name"`
	KeyLabel string      `json:"keyLabel"`
	Rows     []ReportRow `json:"rows"`
}

// Total returns the sum of all row counts.
func (r *Report) Total() int64 {
	var total int64
	for _, row := range r.Rows {
		total += row.Count
	}
	return total
}

// Records returns the rows as label/count objects, e.g.
// {"organizationName": "TechCorp", "count": 500}.
func (r *Report) Records() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		var key any
		if row.Key != nil {
			key = *row.Key
		}
		out[i] = map[string]any{r.KeyLabel: key, "count": row.Count}
	}
	return out
}
