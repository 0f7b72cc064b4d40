package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

/* ----------------------------------------
	Pgx Helpers
---------------------------------------- */

// toPgText maps a nil pointer to SQL NULL. An empty string is stored as is.
func toPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func fromPgText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func toPgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func fromPgTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func toPgRef(ref *core.OrganizationRef) pgtype.Text {
	if ref == nil || *ref == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: string(*ref), Valid: true}
}

func fromPgRef(t pgtype.Text) *core.OrganizationRef {
	if !t.Valid {
		return nil
	}
	ref := core.OrganizationRef(t.String)
	return &ref
}

// Array columns are NOT NULL; pgx encodes a nil slice as NULL.
func textArray(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func floatArray(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

// postingArgs returns the INSERT arguments in postingColumns order.
func postingArgs(p core.Posting) []any {
	return []any{
		p.Key,
		p.Title,
		p.NormalizedTitle,
		p.Status,
		toPgText(p.Industry),
		p.City,
		p.State,
		p.ZipCode,
		p.OpeningDate.UTC(),
		toPgTimestamptz(p.ClosingDate),
		p.SalaryRangeText,
		toPgText(p.SalaryType),
		p.SalaryAvg,
		p.SalaryMin,
		p.SalaryMax,
		textArray(p.Skills),
		floatArray(p.SkillWeights),
		textArray(p.SoftSkills),
		floatArray(p.SoftSkillWeights),
		textArray(p.Qualifications),
		toPgText(p.DegreeMin),
		textArray(p.DegreeLevels),
		toPgText(p.Certification),
		p.ClassificationCode,
		p.ClassificationProbability,
		toPgRef(p.Organization),
		p.IngestedAt.UTC(),
	}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPosting reads one row selected with selectPostingColumns.
func scanPosting(row rowScanner) (core.Posting, error) {
	var p core.Posting
	var industry, salaryType, degreeMin, cert, org pgtype.Text
	var closing pgtype.Timestamptz

	err := row.Scan(
		&p.Key,
		&p.Title,
		&p.NormalizedTitle,
		&p.Status,
		&industry,
		&p.City,
		&p.State,
		&p.ZipCode,
		&p.OpeningDate,
		&closing,
		&p.SalaryRangeText,
		&salaryType,
		&p.SalaryAvg,
		&p.SalaryMin,
		&p.SalaryMax,
		&p.Skills,
		&p.SkillWeights,
		&p.SoftSkills,
		&p.SoftSkillWeights,
		&p.Qualifications,
		&degreeMin,
		&p.DegreeLevels,
		&cert,
		&p.ClassificationCode,
		&p.ClassificationProbability,
		&org,
		&p.IngestedAt,
	)
	if err != nil {
		return core.Posting{}, err
	}

	p.Industry = fromPgText(industry)
	p.SalaryType = fromPgText(salaryType)
	p.DegreeMin = fromPgText(degreeMin)
	p.Certification = fromPgText(cert)
	p.ClosingDate = fromPgTimestamptz(closing)
	p.Organization = fromPgRef(org)
	p.OpeningDate = p.OpeningDate.UTC()
	p.IngestedAt = p.IngestedAt.UTC()
	return p, nil
}
