package postgres

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

func TestFindPostingsSQL(t *testing.T) {
	from := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 1, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name      string
		pred      core.Predicate
		page      core.Page
		wantWhere string
		wantTail  string
		wantArgs  []any
	}{
		{
			name:     "list all",
			wantTail: "ORDER BY posting_key",
		},
		{
			name:     "paged",
			page:     core.Page{Number: 3, Limit: 20},
			wantTail: "ORDER BY posting_key LIMIT $1 OFFSET $2",
			wantArgs: []any{20, 40},
		},
		{
			name: "conjunction",
			pred: core.Predicate{Conditions: []core.Condition{
				{Field: core.FieldState, Op: core.OpEquals, Value: "NC"},
				{Field: core.FieldSkills, Op: core.OpAll, Values: []string{"AUTO", "ANDROID"}},
				{Field: core.FieldDegreeLevels, Op: core.OpAny, Values: []string{"BA"}},
			}},
			wantWhere: "WHERE state = $1 AND skills @> $2::text[] AND degree_levels && $3::text[]",
			wantTail:  "ORDER BY posting_key",
			wantArgs:  []any{"NC", []string{"AUTO", "ANDROID"}, []string{"BA"}},
		},
		{
			name: "contains and range",
			pred: core.Predicate{Conditions: []core.Condition{
				{Field: core.FieldTitle, Op: core.OpContainsFold, Value: "50%_off"},
				{Field: core.FieldOpeningDate, Op: core.OpBetween, From: from, To: to},
			}},
			page:      core.Page{Number: 1, Limit: 10},
			wantWhere: "WHERE title ILIKE $1 AND opening_date BETWEEN $2 AND $3",
			wantTail:  "ORDER BY posting_key LIMIT $4 OFFSET $5",
			wantArgs:  []any{`%50\%\_off%`, from, to, 10, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := findPostingsSQL(tt.pred, tt.page)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantWhere == "" && strings.Contains(query, "WHERE") {
				t.Errorf("unexpected WHERE in %q", query)
			}
			if tt.wantWhere != "" && !strings.Contains(query, tt.wantWhere) {
				t.Errorf("query %q missing %q", query, tt.wantWhere)
			}
			if !strings.HasSuffix(query, tt.wantTail) {
				t.Errorf("query %q does not end with %q", query, tt.wantTail)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if !reflect.DeepEqual(args[i], tt.wantArgs[i]) {
					t.Errorf("arg %d = %#v, want %#v", i+1, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestBuildWhere_UnknownField(t *testing.T) {
	var args queryArgs
	_, err := buildWhere(core.Predicate{Conditions: []core.Condition{
		{Field: "color", Op: core.OpEquals, Value: "red"},
	}}, &args)
	if err == nil {
		t.Error("expected error for unmapped field")
	}
}

func TestAggregateSQL(t *testing.T) {
	tests := []struct {
		report string
		want   string
	}{
		{core.ReportByState, "SELECT state, count(*) FROM postings GROUP BY state"},
		{core.ReportBySalaryType, "SELECT salary_type, count(*) FROM postings GROUP BY salary_type"},
		{core.ReportBySkill, "SELECT v, count(*) FROM postings, unnest(skills) AS v GROUP BY v"},
		{core.ReportByQualification, "SELECT v, count(*) FROM postings, unnest(qualifications) AS v GROUP BY v"},
		{core.ReportByOrganization, "JOIN organizations o ON o.id = p.organization_id"},
	}

	for _, tt := range tests {
		t.Run(tt.report, func(t *testing.T) {
			spec, err := core.LookupReport(tt.report)
			if err != nil {
				t.Fatal(err)
			}
			got, err := aggregateSQL(spec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("got %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestPostingArgsMatchColumns(t *testing.T) {
	cols := strings.Split(postingColumns, ",")
	args := postingArgs(core.Posting{Key: "J1"})
	if len(args) != len(cols) {
		t.Fatalf("%d args for %d columns", len(args), len(cols))
	}
	if n := strings.Count(upsertPostingSQL, "$"); n != len(cols) {
		t.Errorf("%d placeholders for %d columns", n, len(cols))
	}

	// Nil lists must not reach NOT NULL array columns.
	for _, name := range []string{"skills", "skill_weights", "qualifications"} {
		idx := columnIndex(cols, name)
		if reflect.ValueOf(args[idx]).IsNil() {
			t.Errorf("%s arg is nil", name)
		}
	}
}

func columnIndex(cols []string, name string) int {
	for i, c := range cols {
		if strings.TrimSpace(c) == name {
			return i
		}
	}
	return -1
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			if got := errors.Is(err, core.ErrStoreUnavailable); got != tt.want {
				t.Errorf("unavailable = %v, want %v (err %v)", got, tt.want, err)
			}
			if !errors.Is(err, tt.err) {
				t.Error("cause not preserved")
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`a\b%c_d`); got != `a\\b\%c\_d` {
		t.Errorf("escapeLike = %q", got)
	}
}
