package core_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
	"github.com/JonMunkholm/Jobalyzer/internal/store/memory"
)

const feedCSV = `Job ID,JobTitle,JobOpeningDate,State,City,Skill,Skill Weights,CompanyID,CompanyName,Industry
63f9809ffa5806817fc724c9,Walmart Grocery Delivery,2023-01-01T15:37:46.000Z,NC,Zebulon,"['AUTO','ANDROID']","[0.0007, 0.0045]",ABC123,Walmart,NAN
63f9809ffa5806817fc724ca,Mobile Developer,2023-01-02,VA,Richmond,"['ANDROID','JAVA']","[0.1, 0.2]",XYZ9,Acme,Software
63f9809ffa5806817fc724cb,Broken Date,someday,NC,Raleigh,[],[],ABC123,Walmart,NAN
`

func newTestService(t *testing.T, cfg core.ServiceConfig) (*core.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return core.NewService(store, cfg), store
}

func ingestFeed(t *testing.T, svc *core.Service) *core.IngestionReport {
	t.Helper()
	src, err := core.NewCSVSource(strings.NewReader(feedCSV), int64(len(feedCSV)))
	if err != nil {
		t.Fatalf("NewCSVSource: %v", err)
	}
	report, err := svc.Ingest(context.Background(), src, core.RunOptions{Source: "feed.csv"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return report
}

func TestService_IngestThenFilter(t *testing.T) {
	svc, _ := newTestService(t, core.ServiceConfig{})
	report := ingestFeed(t, svc)

	if report.Processed != 2 || report.Failed != 1 {
		t.Fatalf("processed=%d failed=%d, want 2, 1", report.Processed, report.Failed)
	}
	if report.Failures[0].Line != 4 {
		t.Errorf("failure line = %d, want 4", report.Failures[0].Line)
	}

	ctx := context.Background()

	got, err := svc.FilterPostings(ctx, core.Criteria{"skills": "AUTO,ANDROID"}, core.Page{})
	if err != nil {
		t.Fatalf("FilterPostings: %v", err)
	}
	if len(got) != 1 || got[0].Key != "63f9809ffa5806817fc724c9" {
		t.Errorf("got %d postings, want the Walmart posting", len(got))
	}

	got, err = svc.FilterPostings(ctx, core.Criteria{"skills": "ANDROID"}, core.Page{})
	if err != nil {
		t.Fatalf("FilterPostings: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ANDROID matched %d postings, want 2", len(got))
	}

	got, err = svc.FilterPostings(ctx, core.Criteria{"skills": "ANDROID"}, core.Page{Number: 2, Limit: 1})
	if err != nil {
		t.Fatalf("FilterPostings page 2: %v", err)
	}
	if len(got) != 1 || got[0].Key != "63f9809ffa5806817fc724ca" {
		t.Errorf("page 2 = %v", got)
	}
}

func TestService_FilterErrors(t *testing.T) {
	svc, _ := newTestService(t, core.ServiceConfig{})
	ingestFeed(t, svc)
	ctx := context.Background()

	tests := []struct {
		name     string
		criteria core.Criteria
		page     core.Page
		want     error
	}{
		{"empty criteria", core.Criteria{}, core.Page{}, core.ErrEmptyCriteria},
		{"unknown keys only", core.Criteria{"color": "red"}, core.Page{}, core.ErrEmptyCriteria},
		{"no match", core.Criteria{"state": "AK"}, core.Page{}, core.ErrNoData},
		{"bad date", core.Criteria{"startDate": "x", "endDate": "y"}, core.Page{}, core.ErrInvalidCriteria},
		{"bad page", core.Criteria{"state": "NC"}, core.Page{Number: 0, Limit: 5}, core.ErrInvalidCriteria},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.FilterPostings(ctx, tt.criteria, tt.page)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestService_ListPostings(t *testing.T) {
	svc, _ := newTestService(t, core.ServiceConfig{MaxPageSize: 1})
	ctx := context.Background()

	empty, err := svc.ListPostings(ctx, core.Page{})
	if err != nil {
		t.Fatalf("ListPostings on empty store: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", empty)
	}

	ingestFeed(t, svc)

	all, err := svc.ListPostings(ctx, core.Page{})
	if err != nil || len(all) != 2 {
		t.Fatalf("ListPostings = %d, %v", len(all), err)
	}

	capped, err := svc.ListPostings(ctx, core.Page{Number: 1, Limit: 50})
	if err != nil || len(capped) != 1 {
		t.Errorf("page limit not capped: %d, %v", len(capped), err)
	}
}

func TestService_Reports(t *testing.T) {
	cache := newMapCache()
	svc, _ := newTestService(t, core.ServiceConfig{Cache: cache})
	ctx := context.Background()

	if _, err := svc.GetReport(ctx, core.ReportByState); !errors.Is(err, core.ErrNoData) {
		t.Errorf("empty store err = %v, want ErrNoData", err)
	}

	ingestFeed(t, svc)
	if cache.invalidations() != 1 {
		t.Errorf("invalidations = %d, want 1", cache.invalidations())
	}

	r, err := svc.GetReport(ctx, core.ReportByOrganization)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	got := rowMap(r)
	if got["Walmart"] != 1 || got["Acme"] != 1 {
		t.Errorf("rows = %v", got)
	}

	if n := len(svc.ListReports()); n != 8 {
		t.Errorf("ListReports = %d, want 8", n)
	}
}

func TestService_OrganizationUpdatedByLaterRecord(t *testing.T) {
	svc, store := newTestService(t, core.ServiceConfig{})
	ingestFeed(t, svc)

	org, ok := store.Organization("ABC123")
	if !ok {
		t.Fatal("organization ABC123 missing")
	}
	if org.Name != "Walmart" || org.Industry != nil {
		t.Errorf("organization = %+v", org)
	}

	orgs, _ := store.Counts()
	if orgs != 2 {
		t.Errorf("organizations = %d, want 2", orgs)
	}
}

func TestService_StartIngest(t *testing.T) {
	svc, store := newTestService(t, core.ServiceConfig{})
	ctx := context.Background()

	runID, err := svc.StartIngest(ctx, io.NopCloser(strings.NewReader(feedCSV)), int64(len(feedCSV)),
		core.RunOptions{Source: "feed.csv"})
	if err != nil {
		t.Fatalf("StartIngest: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	status, err := svc.WaitIngestRun(waitCtx, runID)
	if err != nil {
		t.Fatalf("WaitIngestRun: %v", err)
	}
	if status.Phase != core.PhaseComplete {
		t.Errorf("phase = %s, want complete", status.Phase)
	}
	if status.Report == nil || status.Report.Processed != 2 {
		t.Errorf("report = %+v", status.Report)
	}
	if _, postings := store.Counts(); postings != 2 {
		t.Errorf("stored %d postings, want 2", postings)
	}

	if err := svc.WaitForRuns(waitCtx); err != nil {
		t.Fatalf("WaitForRuns: %v", err)
	}
	if st := svc.RunLimiterStatus(); st.Active != 0 {
		t.Errorf("active runs = %d, want 0", st.Active)
	}
}

func TestService_StartIngestEmptyBody(t *testing.T) {
	svc, _ := newTestService(t, core.ServiceConfig{})

	_, err := svc.StartIngest(context.Background(), io.NopCloser(strings.NewReader("")), 0, core.RunOptions{})
	if !errors.Is(err, core.ErrStream) {
		t.Errorf("err = %v, want ErrStream", err)
	}
	if st := svc.RunLimiterStatus(); st.Active != 0 {
		t.Errorf("slot leaked: active = %d", st.Active)
	}
}

func TestService_UnknownRun(t *testing.T) {
	svc, _ := newTestService(t, core.ServiceConfig{})

	if _, err := svc.GetIngestRun("nope"); !errors.Is(err, core.ErrNoData) {
		t.Errorf("GetIngestRun err = %v, want ErrNoData", err)
	}
	if err := svc.CancelIngestRun("nope"); !errors.Is(err, core.ErrNoData) {
		t.Errorf("CancelIngestRun err = %v, want ErrNoData", err)
	}
}

func TestService_Ping(t *testing.T) {
	svc, store := newTestService(t, core.ServiceConfig{})
	if err := svc.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	store.Close()
	if err := svc.Ping(context.Background()); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Errorf("Ping after close = %v, want ErrStoreUnavailable", err)
	}
}
