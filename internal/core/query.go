package core

import (
	"fmt"
	"strings"
	"time"
)

// Criteria is a set of named filters, usually taken from a query string.
// Keys with empty values are ignored.
type Criteria map[string]string

// Field names a filterable Posting attribute. Stores map these to their
// own column or document paths.
type Field string

const (
	FieldTitle              Field = "title"
	FieldOrganization       Field = "organizationRef"
	FieldPostingKey         Field = "postingKey"
	FieldOpeningDate        Field = "openingDate"
	FieldState              Field = "state"
	FieldCity               Field = "city"
	FieldZipCode            Field = "zipCode"
	FieldSkills             Field = "skills"
	FieldSoftSkills         Field = "softSkills"
	FieldStatus             Field = "status"
	FieldSalaryType         Field = "salaryType"
	FieldDegreeLevels       Field = "degreeLevels"
	FieldQualifications     Field = "qualifications"
	FieldClassificationCode Field = "classificationCode"
)

// Op is a condition operator.
type Op string

const (
	OpEquals       Op = "eq"       // Value equals the field
	OpContainsFold Op = "contains" // field contains Value, case-insensitive
	OpAll          Op = "all"      // list field contains every one of Values
	OpAny          Op = "any"      // list field contains at least one of Values
	OpBetween      Op = "between"  // From <= field <= To
)

// Condition is one term of a Predicate.
type Condition struct {
	Field  Field
	Op     Op
	Value  string
	Values []string
	From   time.Time
	To     time.Time
}

// Predicate is the conjunction of its conditions. An empty Predicate
// matches every posting; only ListPostings passes one to the store.
type Predicate struct {
	Conditions []Condition
}

// IsEmpty reports whether the predicate has no conditions.
func (p Predicate) IsEmpty() bool {
	return len(p.Conditions) == 0
}

// Opening date range keys. Both must be present for the range to apply.
const (
	KeyStartDate = "startDate"
	KeyEndDate   = "endDate"
)

// filterKey maps criteria names to a condition. Names after the first are
// the ones used by the first version of the API.
type filterKey struct {
	keys  []string
	field Field
	op    Op
}

// filterKeys is evaluated in order so predicates are built deterministically.
var filterKeys = []filterKey{
	{[]string{"title"}, FieldTitle, OpContainsFold},
	{[]string{"organizationRef", "companyId"}, FieldOrganization, OpEquals},
	{[]string{"postingKey", "jobID"}, FieldPostingKey, OpEquals},
	{[]string{"state"}, FieldState, OpEquals},
	{[]string{"city"}, FieldCity, OpContainsFold},
	{[]string{"skills", "skill"}, FieldSkills, OpAll},
	{[]string{"softSkills", "softSkill"}, FieldSoftSkills, OpAll},
	{[]string{"status"}, FieldStatus, OpEquals},
	{[]string{"salaryType"}, FieldSalaryType, OpEquals},
	{[]string{"degreeLevels", "degreeLevel"}, FieldDegreeLevels, OpAny},
	{[]string{"qualifications", "qualification"}, FieldQualifications, OpAll},
	{[]string{"classificationCode", "SOC"}, FieldClassificationCode, OpEquals},
	{[]string{"zipCode"}, FieldZipCode, OpEquals},
}

// CriteriaKeys returns every accepted criteria key, canonical names first.
func CriteriaKeys() []string {
	var keys []string
	for _, fk := range filterKeys {
		keys = append(keys, fk.keys[0])
	}
	keys = append(keys, KeyStartDate, KeyEndDate)
	for _, fk := range filterKeys {
		keys = append(keys, fk.keys[1:]...)
	}
	return keys
}

// Builder turns Criteria into a Predicate.
//
// List values are split on "," exactly as given, so "AUTO, ANDROID" looks
// for " ANDROID". Set TrimListValues to trim each element and drop empties.
type Builder struct {
	TrimListValues bool
}

// Build returns the conjunction of every recognized, non-empty criterion.
//
// The opening date range applies only when both startDate and endDate are
// present. A date-only endDate covers that whole day. Build returns
// ErrEmptyCriteria when nothing was recognized and ErrInvalidCriteria when a
// date bound cannot be parsed.
func (b Builder) Build(c Criteria) (Predicate, error) {
	var pred Predicate

	for _, fk := range filterKeys {
		raw, ok := lookup(c, fk.keys)
		if !ok {
			continue
		}

		cond := Condition{Field: fk.field, Op: fk.op}
		switch fk.op {
		case OpAll, OpAny:
			cond.Values = b.splitList(raw)
			if len(cond.Values) == 0 {
				continue
			}
		default:
			cond.Value = raw
		}
		pred.Conditions = append(pred.Conditions, cond)
	}

	rangeCond, ok, err := dateRange(c)
	if err != nil {
		return Predicate{}, err
	}
	if ok {
		pred.Conditions = append(pred.Conditions, rangeCond)
	}

	if pred.IsEmpty() {
		return Predicate{}, NewError(ErrEmptyCriteria, "no valid filters provided", nil)
	}
	return pred, nil
}

func lookup(c Criteria, keys []string) (string, bool) {
	for _, k := range keys {
		if v := c[k]; v != "" {
			return v, true
		}
	}
	return "", false
}

func (b Builder) splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	if !b.TrimListValues {
		return parts
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dateRange(c Criteria) (Condition, bool, error) {
	start, end := c[KeyStartDate], c[KeyEndDate]
	if start == "" || end == "" {
		return Condition{}, false, nil
	}

	from, err := ParseOptionalDate(start)
	if err != nil || from == nil {
		return Condition{}, false, NewError(ErrInvalidCriteria,
			fmt.Sprintf("invalid %s %q", KeyStartDate, start), err)
	}
	to, err := ParseOptionalDate(end)
	if err != nil || to == nil {
		return Condition{}, false, NewError(ErrInvalidCriteria,
			fmt.Sprintf("invalid %s %q", KeyEndDate, end), err)
	}
	if isDateOnly(end, *to) {
		*to = to.Add(24*time.Hour - time.Nanosecond)
	}

	return Condition{Field: FieldOpeningDate, Op: OpBetween, From: *from, To: *to}, true, nil
}

func isDateOnly(raw string, t time.Time) bool {
	return !strings.Contains(raw, ":") && t.Equal(t.Truncate(24*time.Hour))
}

// Match evaluates the predicate against a posting in memory.
func (p Predicate) Match(posting Posting) bool {
	for _, c := range p.Conditions {
		if !c.Match(posting) {
			return false
		}
	}
	return true
}

// Match evaluates a single condition.
func (c Condition) Match(p Posting) bool {
	switch c.Op {
	case OpEquals:
		v, ok := p.FieldValue(c.Field)
		return ok && v == c.Value
	case OpContainsFold:
		v, ok := p.FieldValue(c.Field)
		return ok && strings.Contains(strings.ToLower(v), strings.ToLower(c.Value))
	case OpAll:
		have := toSet(p.FieldValues(c.Field))
		for _, want := range c.Values {
			if _, ok := have[want]; !ok {
				return false
			}
		}
		return true
	case OpAny:
		have := toSet(p.FieldValues(c.Field))
		for _, want := range c.Values {
			if _, ok := have[want]; ok {
				return true
			}
		}
		return false
	case OpBetween:
		if c.Field != FieldOpeningDate {
			return false
		}
		d := p.OpeningDate
		return !d.Before(c.From) && !d.After(c.To)
	}
	return false
}

// FieldValue returns a single-valued field. ok is false for a null value
// or a list field.
func (p Posting) FieldValue(f Field) (string, bool) {
	switch f {
	case FieldTitle:
		return p.Title, true
	case FieldOrganization:
		if p.Organization == nil {
			return "", false
		}
		return string(*p.Organization), true
	case FieldPostingKey:
		return p.Key, true
	case FieldState:
		return p.State, true
	case FieldCity:
		return p.City, true
	case FieldZipCode:
		return p.ZipCode, true
	case FieldStatus:
		return p.Status, true
	case FieldSalaryType:
		if p.SalaryType == nil {
			return "", false
		}
		return *p.SalaryType, true
	case FieldClassificationCode:
		return p.ClassificationCode, true
	}
	return "", false
}

// FieldValues returns a list field, or nil for a single-valued one.
func (p Posting) FieldValues(f Field) []string {
	switch f {
	case FieldSkills:
		return p.Skills
	case FieldSoftSkills:
		return p.SoftSkills
	case FieldDegreeLevels:
		return p.DegreeLevels
	case FieldQualifications:
		return p.Qualifications
	}
	return nil
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
