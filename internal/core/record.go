package core

import (
	"fmt"
	"strings"
)

// Source feed column names. The header row must use these names exactly;
// a missing column is read as an empty cell.
const (
	ColPostingKey       = "Job ID"
	ColTitle            = "JobTitle"
	ColNormalizedTitle  = "Normalized Title"
	ColOpeningDate      = "JobOpeningDate"
	ColClosingDate      = "JobClosingDate"
	ColStatus           = "Status"
	ColSalaryRange      = "salary_calc"
	ColSalaryType       = "salary_type"
	ColSalaryAvg        = "annual_salary_avg"
	ColSalaryMin        = "annual_salary_min"
	ColSalaryMax        = "annual_salary_max"
	ColIndustry         = "Industry"
	ColZipCode          = "ZipCode"
	ColCity             = "City"
	ColState            = "State"
	ColCertification    = "Certification"
	ColSkill            = "Skill"
	ColSkillWeights     = "Skill Weights"
	ColSoftSkill        = "SoftSkill"
	ColSoftSkillWeights = "SoftSkill Weights"
	ColQualification    = "Qualification"
	ColDegreeMin        = "Degree Min"
	ColDegreeLevel      = "Degree Level"
	ColClassification   = "SOC"
	ColClassificationP  = "SOC Probability"
	ColOrganizationKey  = "CompanyID"
	ColOrganizationName = "CompanyName"
)

// Columns lists every column the normalizer reads, in feed order.
var Columns = []string{
	ColPostingKey, ColTitle, ColNormalizedTitle, ColOpeningDate, ColClosingDate,
	ColStatus, ColSalaryRange, ColSalaryType, ColSalaryAvg, ColSalaryMin, ColSalaryMax,
	ColIndustry, ColZipCode, ColCity, ColState, ColCertification,
	ColSkill, ColSkillWeights, ColSoftSkill, ColSoftSkillWeights,
	ColQualification, ColDegreeMin, ColDegreeLevel,
	ColClassification, ColClassificationP, ColOrganizationKey, ColOrganizationName,
}

// OrganizationInput is the organization part of a normalized record.
type OrganizationInput struct {
	Key      string
	Name     string
	Industry *string
}

// PostingDraft is a normalized record before the organization is resolved.
type PostingDraft struct {
	Posting      Posting
	Organization OrganizationInput
}

// NormalizeRecord converts a raw record into a PostingDraft.
//
// Per-field problems are returned as FieldFailures and the field keeps its
// default. The whole record is rejected (ErrRecordRejected) only when the
// posting key is empty or the opening date is missing or unparsable.
func NormalizeRecord(rec Record) (PostingDraft, []FieldFailure, error) {
	var failures []FieldFailure
	fail := func(column, reason string) {
		failures = append(failures, FieldFailure{
			Column: column,
			Raw:    rec.Get(column),
			Reason: reason,
		})
	}

	key := strings.TrimSpace(rec.Get(ColPostingKey))
	if key == "" {
		return PostingDraft{}, nil, NewError(ErrRecordRejected,
			fmt.Sprintf("line %d: empty %q", rec.Line, ColPostingKey), nil)
	}

	opening, err := ParseOptionalDate(rec.Get(ColOpeningDate))
	if err != nil {
		return PostingDraft{}, nil, NewError(ErrRecordRejected,
			fmt.Sprintf("line %d: unparsable %q", rec.Line, ColOpeningDate), err)
	}
	if opening == nil {
		return PostingDraft{}, nil, NewError(ErrRecordRejected,
			fmt.Sprintf("line %d: empty %q", rec.Line, ColOpeningDate), nil)
	}

	closing, err := ParseOptionalDate(rec.Get(ColClosingDate))
	if err != nil {
		fail(ColClosingDate, err.Error())
		closing = nil
	}

	industry := ParseSentinelString(rec.Get(ColIndustry))

	p := Posting{
		Key:             key,
		Title:           strings.TrimSpace(rec.Get(ColTitle)),
		NormalizedTitle: strings.TrimSpace(rec.Get(ColNormalizedTitle)),
		Status:          strings.TrimSpace(rec.Get(ColStatus)),
		Industry:        industry,
		City:            strings.TrimSpace(rec.Get(ColCity)),
		State:           strings.TrimSpace(rec.Get(ColState)),
		ZipCode:         strings.TrimSpace(rec.Get(ColZipCode)),
		OpeningDate:     *opening,
		ClosingDate:     closing,
		SalaryRangeText: strings.TrimSpace(rec.Get(ColSalaryRange)),
		SalaryType:      ParseSentinelString(rec.Get(ColSalaryType)),
		DegreeMin:       ParseSentinelString(rec.Get(ColDegreeMin)),
		Certification:   ParseSentinelString(rec.Get(ColCertification)),
	}

	p.ClassificationCode = strings.TrimSpace(rec.Get(ColClassification))
	p.SalaryAvg = numberField(rec, ColSalaryAvg, fail)
	p.SalaryMin = numberField(rec, ColSalaryMin, fail)
	p.SalaryMax = numberField(rec, ColSalaryMax, fail)

	prob := numberField(rec, ColClassificationP, fail)
	if prob < 0 || prob > 1 {
		fail(ColClassificationP, fmt.Sprintf("probability %v outside [0,1]", prob))
		prob = 0
	}
	p.ClassificationProbability = prob

	p.Skills, p.SkillWeights = weightedPair(rec, ColSkill, ColSkillWeights, fail)
	p.SoftSkills, p.SoftSkillWeights = weightedPair(rec, ColSoftSkill, ColSoftSkillWeights, fail)
	p.Qualifications = stringListField(rec, ColQualification, fail)
	p.DegreeLevels = stringListField(rec, ColDegreeLevel, fail)

	org := OrganizationInput{
		Key:      strings.TrimSpace(rec.Get(ColOrganizationKey)),
		Name:     strings.TrimSpace(rec.Get(ColOrganizationName)),
		Industry: industry,
	}

	return PostingDraft{Posting: p, Organization: org}, failures, nil
}

// numberField parses an optional number, defaulting to 0. Only non-empty
// unparsable input is reported.
func numberField(rec Record, column string, fail func(string, string)) float64 {
	raw := rec.Get(column)
	n, ok := parseNumber(raw)
	if !ok {
		if trimmed := strings.TrimSpace(raw); trimmed != "" && trimmed != Sentinel {
			fail(column, fmt.Sprintf("invalid number %q", raw))
		}
		return 0
	}
	return n
}

func stringListField(rec Record, column string, fail func(string, string)) []string {
	items, err := parseStringList(rec.Get(column))
	if err != nil {
		fail(column, err.Error())
		return []string{}
	}
	return items
}

// weightedPair parses a label list and its weight list together. If either
// side is malformed or the lengths differ, both come back empty.
func weightedPair(rec Record, labelCol, weightCol string, fail func(string, string)) ([]string, []float64) {
	labels, labelErr := parseStringList(rec.Get(labelCol))
	weights, weightErr := parseNumberList(rec.Get(weightCol))

	switch {
	case labelErr != nil:
		fail(labelCol, labelErr.Error())
	case weightErr != nil:
		fail(weightCol, weightErr.Error())
	case len(labels) != len(weights):
		fail(weightCol, fmt.Sprintf("%d weights for %d labels", len(weights), len(labels)))
	default:
		return labels, weights
	}
	return []string{}, []float64{}
}
