package postgres

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

// columns maps query fields to posting columns.
var columns = map[core.Field]string{
	core.FieldTitle:              "title",
	core.FieldOrganization:       "organization_id::text",
	core.FieldPostingKey:         "posting_key",
	core.FieldOpeningDate:        "opening_date",
	core.FieldState:              "state",
	core.FieldCity:               "city",
	core.FieldZipCode:            "zip_code",
	core.FieldSkills:             "skills",
	core.FieldSoftSkills:         "soft_skills",
	core.FieldStatus:             "status",
	core.FieldSalaryType:         "salary_type",
	core.FieldDegreeLevels:       "degree_levels",
	core.FieldQualifications:     "qualifications",
	core.FieldClassificationCode: "classification_code",
}

// queryArgs accumulates positional parameters.
type queryArgs []any

func (a *queryArgs) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// buildWhere renders pred as a WHERE clause. An empty predicate renders
// as "" so the query matches every row.
func buildWhere(pred core.Predicate, args *queryArgs) (string, error) {
	if pred.IsEmpty() {
		return "", nil
	}

	clauses := make([]string, 0, len(pred.Conditions))
	for _, c := range pred.Conditions {
		clause, err := buildCondition(c, args)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	return "WHERE " + strings.Join(clauses, " AND "), nil
}

func buildCondition(c core.Condition, args *queryArgs) (string, error) {
	col, ok := columns[c.Field]
	if !ok {
		return "", fmt.Errorf("no column for field %q", c.Field)
	}

	switch c.Op {
	case core.OpEquals:
		return col + " = " + args.add(c.Value), nil
	case core.OpContainsFold:
		return col + " ILIKE " + args.add("%"+escapeLike(c.Value)+"%"), nil
	case core.OpAll:
		return col + " @> " + args.add(c.Values) + "::text[]", nil
	case core.OpAny:
		return col + " && " + args.add(c.Values) + "::text[]", nil
	case core.OpBetween:
		from := args.add(c.From.UTC())
		to := args.add(c.To.UTC())
		return col + " BETWEEN " + from + " AND " + to, nil
	}
	return "", fmt.Errorf("unsupported operator %q", c.Op)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// findPostingsSQL renders the FindPostings query.
func findPostingsSQL(pred core.Predicate, page core.Page) (string, []any, error) {
	var args queryArgs
	where, err := buildWhere(pred, &args)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(selectPostingColumns)
	b.WriteString(" FROM postings")
	if where != "" {
		b.WriteString(" ")
		b.WriteString(where)
	}
	b.WriteString(" ORDER BY posting_key")
	if !page.IsZero() {
		b.WriteString(" LIMIT " + args.add(page.Limit))
		b.WriteString(" OFFSET " + args.add(page.Offset()))
	}
	return b.String(), args, nil
}

// aggregateSQL renders a grouped count for spec.
func aggregateSQL(spec core.ReportSpec) (string, error) {
	if spec.JoinOrganization {
		return `SELECT o.name, count(*) FROM postings p
	JOIN organizations o ON o.id = p.organization_id
	GROUP BY o.id, o.name`, nil
	}

	col, ok := columns[spec.Field]
	if !ok {
		return "", fmt.Errorf("no column for field %q", spec.Field)
	}
	if spec.Unwind {
		return fmt.Sprintf(`SELECT v, count(*) FROM postings, unnest(%s) AS v GROUP BY v`, col), nil
	}
	return fmt.Sprintf(`SELECT %s, count(*) FROM postings GROUP BY %s`, col, col), nil
}
