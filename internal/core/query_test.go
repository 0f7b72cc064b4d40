package core

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestBuilder_EmptyCriteria(t *testing.T) {
	tests := []struct {
		name string
		c    Criteria
	}{
		{"nil", nil},
		{"empty", Criteria{}},
		{"unknown keys only", Criteria{"color": "blue", "page": "2"}},
		{"empty values", Criteria{"state": "", "title": ""}},
		{"lone start date", Criteria{KeyStartDate: "2023-01-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Builder{}.Build(tt.c)
			if !errors.Is(err, ErrEmptyCriteria) {
				t.Errorf("err = %v, want ErrEmptyCriteria", err)
			}
		})
	}
}

func TestBuilder_Conditions(t *testing.T) {
	tests := []struct {
		name string
		b    Builder
		c    Criteria
		want []Condition
	}{
		{
			name: "state equals",
			c:    Criteria{"state": "NC"},
			want: []Condition{{Field: FieldState, Op: OpEquals, Value: "NC"}},
		},
		{
			name: "skills all-of, untrimmed",
			c:    Criteria{"skills": "AUTO, ANDROID"},
			want: []Condition{{Field: FieldSkills, Op: OpAll, Values: []string{"AUTO", " ANDROID"}}},
		},
		{
			name: "skills all-of, trimmed",
			b:    Builder{TrimListValues: true},
			c:    Criteria{"skills": "AUTO, ANDROID,"},
			want: []Condition{{Field: FieldSkills, Op: OpAll, Values: []string{"AUTO", "ANDROID"}}},
		},
		{
			name: "legacy aliases",
			c:    Criteria{"skill": "AUTO", "degreeLevel": "BA,MS", "SOC": "41-1011", "jobID": "J1", "companyId": "org-1"},
			want: []Condition{
				{Field: FieldOrganization, Op: OpEquals, Value: "org-1"},
				{Field: FieldPostingKey, Op: OpEquals, Value: "J1"},
				{Field: FieldSkills, Op: OpAll, Values: []string{"AUTO"}},
				{Field: FieldDegreeLevels, Op: OpAny, Values: []string{"BA", "MS"}},
				{Field: FieldClassificationCode, Op: OpEquals, Value: "41-1011"},
			},
		},
		{
			name: "canonical key wins over alias",
			c:    Criteria{"skills": "AUTO", "skill": "ANDROID"},
			want: []Condition{{Field: FieldSkills, Op: OpAll, Values: []string{"AUTO"}}},
		},
		{
			name: "title and city contain",
			c:    Criteria{"title": "grocery", "city": "zeb"},
			want: []Condition{
				{Field: FieldTitle, Op: OpContainsFold, Value: "grocery"},
				{Field: FieldCity, Op: OpContainsFold, Value: "zeb"},
			},
		},
		{
			name: "date range with whole end day",
			c:    Criteria{KeyStartDate: "2023-01-01", KeyEndDate: "2023-01-31"},
			want: []Condition{{
				Field: FieldOpeningDate,
				Op:    OpBetween,
				From:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				To:    time.Date(2023, 1, 31, 23, 59, 59, 999999999, time.UTC),
			}},
		},
		{
			name: "date range with exact end time",
			c:    Criteria{KeyStartDate: "2023-01-01", KeyEndDate: "2023-01-31T12:00:00Z"},
			want: []Condition{{
				Field: FieldOpeningDate,
				Op:    OpBetween,
				From:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				To:    time.Date(2023, 1, 31, 12, 0, 0, 0, time.UTC),
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := tt.b.Build(tt.c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !conditionsEqual(pred.Conditions, tt.want) {
				t.Errorf("conditions =\n%+v\nwant\n%+v", pred.Conditions, tt.want)
			}
		})
	}
}

func conditionsEqual(got, want []Condition) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		g, w := got[i], want[i]
		if g.Field != w.Field || g.Op != w.Op || g.Value != w.Value ||
			!reflect.DeepEqual(g.Values, w.Values) ||
			!g.From.Equal(w.From) || !g.To.Equal(w.To) {
			return false
		}
	}
	return true
}

func TestBuilder_InvalidDate(t *testing.T) {
	_, err := Builder{}.Build(Criteria{KeyStartDate: "last week", KeyEndDate: "2023-01-31"})
	if !errors.Is(err, ErrInvalidCriteria) {
		t.Errorf("err = %v, want ErrInvalidCriteria", err)
	}
}

func TestPredicateMatch(t *testing.T) {
	ref := OrganizationRef("org-1")
	yearly := "yearly"
	posting := Posting{
		Key:          "J1",
		Title:        "Walmart Grocery Delivery",
		City:         "Zebulon",
		State:        "NC",
		SalaryType:   &yearly,
		Skills:       []string{"AUTO", "ANDROID", "JAVA"},
		DegreeLevels: []string{"BA"},
		OpeningDate:  time.Date(2023, 1, 15, 8, 0, 0, 0, time.UTC),
		Organization: &ref,
	}

	tests := []struct {
		name string
		c    Criteria
		want bool
	}{
		{"state match", Criteria{"state": "NC"}, true},
		{"state mismatch", Criteria{"state": "VA"}, false},
		{"state is case sensitive", Criteria{"state": "nc"}, false},
		{"title contains fold", Criteria{"title": "GROCERY"}, true},
		{"all skills present", Criteria{"skills": "AUTO,ANDROID"}, true},
		{"one skill missing", Criteria{"skills": "AUTO,RUST"}, false},
		{"untrimmed skill misses", Criteria{"skills": "AUTO, ANDROID"}, false},
		{"any degree level", Criteria{"degreeLevels": "MS,BA"}, true},
		{"no degree level", Criteria{"degreeLevels": "MS,PHD"}, false},
		{"salary type", Criteria{"salaryType": "yearly"}, true},
		{"organization", Criteria{"organizationRef": "org-1"}, true},
		{"date inside range", Criteria{KeyStartDate: "2023-01-01", KeyEndDate: "2023-01-15"}, true},
		{"date outside range", Criteria{KeyStartDate: "2023-02-01", KeyEndDate: "2023-02-28"}, false},
		{"conjunction fails", Criteria{"state": "NC", "city": "Raleigh"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := Builder{}.Build(tt.c)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got := pred.Match(posting); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}

	// A null salary type never matches an equality filter.
	posting.SalaryType = nil
	pred, _ := Builder{}.Build(Criteria{"salaryType": "yearly"})
	if pred.Match(posting) {
		t.Error("nil salary type matched")
	}
}

func TestCriteriaKeys(t *testing.T) {
	keys := CriteriaKeys()
	if keys[0] != "title" {
		t.Errorf("first key = %q, want title", keys[0])
	}
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
	for _, want := range []string{"startDate", "endDate", "companyId", "SOC", "degreeLevels"} {
		if !seen[want] {
			t.Errorf("missing key %q", want)
		}
	}
}
