package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/Jobalyzer/internal/config"
	"github.com/JonMunkholm/Jobalyzer/internal/core"
	"github.com/JonMunkholm/Jobalyzer/internal/store/memory"
)

const feedCSV = `Job ID,JobTitle,JobOpeningDate,State,City,Skill,Skill Weights,CompanyID,CompanyName,Industry
63f9809ffa5806817fc724c9,Walmart Grocery Delivery,2023-01-01T15:37:46.000Z,NC,Zebulon,"['AUTO','ANDROID']","[0.0007, 0.0045]",ABC123,Walmart,NAN
63f9809ffa5806817fc724ca,Mobile Developer,2023-01-02,VA,Richmond,"['ANDROID','JAVA']","[0.1, 0.2]",XYZ9,Acme,Software
63f9809ffa5806817fc724cb,Broken Date,someday,NC,Raleigh,[],[],ABC123,Walmart,NAN
`

func newTestServer(t *testing.T, env map[string]string) *Server {
	t.Helper()
	vars := map[string]string{"STORE_DRIVER": "memory"}
	for k, v := range env {
		vars[k] = v
	}
	cfg, err := config.LoadFrom(func(k string) string { return vars[k] })
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return NewServer(core.NewService(memory.New(), cfg.ServiceConfig()), cfg)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, httptest.NewRequest(http.MethodGet, target, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

// ingest uploads feedCSV as a raw body and waits for the run to finish.
func ingest(t *testing.T, s *Server) core.RunStatus {
	t.Helper()
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/ingest?source=feed.csv", strings.NewReader(feedCSV)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /api/ingest = %d: %s", rec.Code, rec.Body.String())
	}
	var accepted IngestAccepted
	decode(t, rec, &accepted)

	rec = get(t, s, accepted.StatusURL+"?wait=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s = %d: %s", accepted.StatusURL, rec.Code, rec.Body.String())
	}
	var status core.RunStatus
	decode(t, rec, &status)
	return status
}

func TestIngest_RawBody(t *testing.T) {
	s := newTestServer(t, nil)
	status := ingest(t, s)

	if status.Phase != core.PhaseComplete {
		t.Fatalf("phase = %s, want %s", status.Phase, core.PhaseComplete)
	}
	if status.Source != "feed.csv" {
		t.Errorf("source = %q, want feed.csv", status.Source)
	}
	if status.Report == nil || status.Report.Processed != 2 || status.Report.Failed != 1 {
		t.Errorf("report = %+v, want 2 processed and 1 failed", status.Report)
	}
}

func TestIngest_Multipart(t *testing.T) {
	s := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(feedCSV))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest?max=1", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var accepted IngestAccepted
	decode(t, rec, &accepted)

	var status core.RunStatus
	decode(t, get(t, s, accepted.StatusURL+"?wait=true"), &status)
	if status.Source != "upload.csv" {
		t.Errorf("source = %q, want upload.csv", status.Source)
	}
	if status.Report == nil || status.Report.Admitted != 1 || !status.Report.CapReached {
		t.Errorf("report = %+v, want 1 admitted with the cap reached", status.Report)
	}
}

func TestIngest_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		target string
		body   string
		header map[string]string
		want   int
	}{
		{"empty body", nil, "/api/ingest", "", nil, http.StatusBadRequest},
		{"bad max", nil, "/api/ingest?max=lots", feedCSV, nil, http.StatusBadRequest},
		{"max below -1", nil, "/api/ingest?max=-5", feedCSV, nil, http.StatusBadRequest},
		{"too large", map[string]string{"INGEST_MAX_FILE_SIZE": "16"}, "/api/ingest", feedCSV, nil, http.StatusRequestEntityTooLarge},
		{
			"missing api key",
			map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "secret"},
			"/api/ingest", feedCSV, nil, http.StatusUnauthorized,
		},
		{
			"multipart without file",
			nil, "/api/ingest", "--x--\r\n",
			map[string]string{"Content-Type": "multipart/form-data; boundary=x"},
			http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.env)
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := do(t, s, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestIngest_UnknownRun(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := get(t, s, "/api/ingest/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/ingest/nope/cancel", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("cancel status = %d, want 404", rec.Code)
	}
}

func TestPostings(t *testing.T) {
	s := newTestServer(t, nil)
	ingest(t, s)

	tests := []struct {
		target    string
		want      int
		wantCount int
		wantCode  string
	}{
		{"/api/postings", http.StatusOK, 2, ""},
		{"/api/postings?page=2&limit=1", http.StatusOK, 1, ""},
		{"/api/postings?page=0&limit=5", http.StatusBadRequest, 0, "QRY002"},
		{"/api/postings?page=1", http.StatusBadRequest, 0, "QRY002"},
		{"/api/postings?page=abc&limit=1", http.StatusBadRequest, 0, "QRY002"},
		{"/api/postings/filter", http.StatusBadRequest, 0, "QRY001"},
		{"/api/postings/filter?color=red", http.StatusBadRequest, 0, "QRY001"},
		{"/api/postings/filter?state=NC", http.StatusOK, 1, ""},
		{"/api/postings/filter?skills=ANDROID", http.StatusOK, 2, ""},
		{"/api/postings/filter?skills=AUTO,ANDROID", http.StatusOK, 1, ""},
		{"/api/postings/filter?state=TX", http.StatusNotFound, 0, "QRY003"},
		{"/api/postings/filter?startDate=yesterday&endDate=2023-01-02", http.StatusBadRequest, 0, "QRY002"},
		{"/api/postings/filter?startDate=2023-01-02&endDate=2023-01-02", http.StatusOK, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, s, tt.target)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.wantCode != "" {
				var errResp ErrorResponse
				decode(t, rec, &errResp)
				if errResp.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", errResp.Code, tt.wantCode)
				}
				return
			}
			var resp PostingsResponse
			decode(t, rec, &resp)
			if resp.Count != tt.wantCount || len(resp.Postings) != tt.wantCount {
				t.Errorf("count = %d (%d postings), want %d", resp.Count, len(resp.Postings), tt.wantCount)
			}
		})
	}
}

func TestPostings_EmptyStore(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(t, s, "/api/postings")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"postings":[]`) {
		t.Errorf("body = %s, want an empty array", rec.Body.String())
	}
}

func TestReports(t *testing.T) {
	s := newTestServer(t, nil)

	if rec := get(t, s, "/api/reports/countsByState"); rec.Code != http.StatusNotFound {
		t.Errorf("empty store status = %d, want 404", rec.Code)
	}

	ingest(t, s)

	rec := get(t, s, "/api/reports/countsByState")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var report core.Report
	decode(t, rec, &report)
	if report.Total() != 2 || len(report.Rows) != 2 {
		t.Errorf("report = %+v, want 2 states", report)
	}

	rec = get(t, s, "/api/reports/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown report status = %d, want 404", rec.Code)
	}

	var specs []core.ReportSpec
	decode(t, get(t, s, "/api/reports"), &specs)
	if len(specs) != len(core.Reports()) {
		t.Errorf("listed %d reports, want %d", len(specs), len(core.Reports()))
	}
}

func TestLegacyRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	ingest(t, s)

	var all []map[string]any
	decode(t, get(t, s, "/jobs"), &all)
	if len(all) != 2 {
		t.Errorf("/jobs returned %d postings, want 2", len(all))
	}

	if rec := get(t, s, "/jobs/jobs-paginated"); rec.Code != http.StatusBadRequest {
		t.Errorf("/jobs/jobs-paginated without params = %d, want 400", rec.Code)
	}
	var page []map[string]any
	decode(t, get(t, s, "/jobs/jobs-paginated?page=1&limit=1"), &page)
	if len(page) != 1 {
		t.Errorf("paginated returned %d postings, want 1", len(page))
	}

	var filtered []map[string]any
	decode(t, get(t, s, "/jobs/filter?state=VA"), &filtered)
	if len(filtered) != 1 {
		t.Errorf("/jobs/filter returned %d postings, want 1", len(filtered))
	}

	var stats []map[string]any
	decode(t, get(t, s, "/stats/jobs-per-company"), &stats)
	if len(stats) != 2 {
		t.Fatalf("stats = %v, want 2 organizations", stats)
	}
	for _, row := range stats {
		if _, ok := row["organizationName"]; !ok {
			t.Errorf("row %v has no organizationName", row)
		}
	}
}

func TestReportPages(t *testing.T) {
	s := newTestServer(t, nil)
	ingest(t, s)

	rec := get(t, s, "/reports/countsBySkill")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<td>ANDROID</td><td>2</td>") {
		t.Errorf("page missing ANDROID row: %s", rec.Body.String())
	}

	rec = get(t, s, "/reports/nope")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "QRY004") {
		t.Errorf("unknown report page = %d: %s", rec.Code, rec.Body.String())
	}

	if rec := get(t, s, "/reports"); !strings.Contains(rec.Body.String(), "countsByOrganization") {
		t.Errorf("index = %s", rec.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, s, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("/metrics = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.NewError(core.ErrEmptyCriteria, "", nil), http.StatusBadRequest},
		{core.NewError(core.ErrInvalidCriteria, "", nil), http.StatusBadRequest},
		{core.NewError(core.ErrNoData, "", nil), http.StatusNotFound},
		{core.NewError(core.ErrUnknownReport, "", nil), http.StatusNotFound},
		{core.Unavailable("down", nil), http.StatusServiceUnavailable},
		{core.ErrTooManyRuns, http.StatusServiceUnavailable},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{core.Persistence("write", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
