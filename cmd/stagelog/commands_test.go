package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/stagelog/internal/config"
	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/shows"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	Auth        string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// run executes the root command against ts.
func (ts *testServer) run(t *testing.T, args ...string) error {
	t.Helper()
	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	defer func() {
		newAPIClient = orig
		rootCmd.SetArgs(nil)
	}()

	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

var ctx = context.Background()

func TestAddCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /shows": `{"id":"show-1","title":"Hamlet","date":"2024-06-01","status":"watched","cast":[]}`,
	})

	err := ts.run(t, "add",
		"--title", "Hamlet",
		"--date", "2024-06-01",
		"--time", "19:30",
		"--price", "380",
		"--cast", "Hamlet=Hu Ge",
		"--cast", "Ensemble Member",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var rec journal.Record
	if err := json.Unmarshal([]byte(r.Body), &rec); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if rec.Title != "Hamlet" || rec.Date != "2024-06-01" || rec.Time != "19:30" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Price != 380 {
		t.Errorf("price = %v, want 380", rec.Price)
	}
	want := []journal.CastMember{{Role: "Hamlet", Actor: "Hu Ge"}, {Actor: "Ensemble Member"}}
	if len(rec.Cast) != len(want) {
		t.Fatalf("cast = %+v, want %+v", rec.Cast, want)
	}
	for i := range want {
		if rec.Cast[i] != want[i] {
			t.Errorf("cast[%d] = %+v, want %+v", i, rec.Cast[i], want[i])
		}
	}
}

func TestEditCommand_OnlyChangedFields(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /shows/show-1": `{"id":"show-1","title":"Hamlet","date":"2024-06-01","location":"Grand","price":100,"cast":[]}`,
		"PUT /shows/show-1": `{"id":"show-1","title":"Hamlet","date":"2024-06-01","status":"watched","cast":[]}`,
	})

	if err := ts.run(t, "edit", "show-1", "--price", "120"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(ts.requests))
	}
	put := ts.requests[1]
	if put.Method != "PUT" {
		t.Errorf("method = %q, want PUT", put.Method)
	}

	var rec journal.Record
	if err := json.Unmarshal([]byte(put.Body), &rec); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if rec.Price != 120 {
		t.Errorf("price = %v, want 120", rec.Price)
	}
	if rec.Location != "Grand" || rec.Title != "Hamlet" {
		t.Errorf("untouched fields changed: %+v", rec)
	}
}

func TestClearCommand_RequiresConfirm(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /shows": `{"status":"cleared","count":3}`,
	})

	if err := ts.run(t, "clear"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 0 {
		t.Fatalf("clear without --confirm sent %d requests", len(ts.requests))
	}

	if err := ts.run(t, "clear", "--confirm"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Path != "/shows?confirm=true" {
		t.Errorf("path = %q, want /shows?confirm=true", ts.requests[0].Path)
	}
}

func TestListCommand_Buckets(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /shows/history": `{"records":[],"count":0,"warnings":[]}`,
	})

	if err := ts.run(t, "list", "--bucket", "history"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 1 || ts.requests[0].Path != "/shows/history" {
		t.Fatalf("requests = %+v, want one GET /shows/history", ts.requests)
	}

	if err := ts.run(t, "list", "--bucket", "someday"); err == nil {
		t.Error("expected error for unknown bucket")
	}
}

func TestStatsCommand_Query(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /stats": `{"totalShows":1,"totalSpent":380,"uniqueShows":1,"label":"2024","previous":"2023-01-01","next":"2025-01-01","warnings":[]}`,
	})

	if err := ts.run(t, "stats", "--range", "year", "--anchor", "2024-03-01", "--shift", "-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	path := ts.requests[0].Path
	for _, want := range []string{"range=year", "anchor=2024-03-01", "shift=-1"} {
		if !strings.Contains(path, want) {
			t.Errorf("path = %q, want it to contain %q", path, want)
		}
	}
}

func TestSummaryCommand_Failure(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /summary": `{"success":false,"error":"boom"}`,
	})

	err := ts.run(t, "summary", "--year", "2024", "--month", "6")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want it to mention boom", err)
	}
	if got := ts.requests[0].Path; got != "/summary?month=6&year=2024" {
		t.Errorf("path = %q, want /summary?month=6&year=2024", got)
	}
}

func TestMirrorRetryCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /mirror/retry": `{"retried":2}`,
	})

	if err := ts.run(t, "mirror", "retry"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ts.requests) != 1 || ts.requests[0].Method != "POST" {
		t.Fatalf("requests = %+v, want one POST", ts.requests)
	}
}

func TestSettingsLogout(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PATCH /settings": `{"username":"","isLoggedIn":false,"theme":"light"}`,
	})

	if err := ts.run(t, "settings", "logout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Body != `{"isLoggedIn":false}` {
		t.Errorf("body = %q, want {\"isLoggedIn\":false}", ts.requests[0].Body)
	}
}

func TestSettingsTheme_RejectsUnknown(t *testing.T) {
	ts := newTestServer(t, nil)

	if err := ts.run(t, "settings", "theme", "sepia"); err == nil {
		t.Fatal("expected error for unknown theme")
	}
	if len(ts.requests) != 0 {
		t.Errorf("unknown theme sent %d requests", len(ts.requests))
	}
}

func TestParseTicketFile(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /tickets/parse": `{"date":"2024-06-01","time":"19:30","location":"上海大剧院","price":380}`,
	})
	dir := t.TempDir()

	txt := filepath.Join(dir, "ticket.txt")
	if err := os.WriteFile(txt, []byte("2024年6月1日 19:30 上海大剧院 票价380"), 0o644); err != nil {
		t.Fatal(err)
	}
	draft, err := parseTicketFile(ctx, ts.client(), txt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Date != "2024-06-01" || draft.Price == nil || *draft.Price != 380 {
		t.Errorf("draft = %+v", draft)
	}
	if ts.requests[0].ContentType != "application/json" {
		t.Errorf("content type = %q, want application/json", ts.requests[0].ContentType)
	}

	pdfPath := filepath.Join(dir, "ticket.PDF")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := parseTicketFile(ctx, ts.client(), pdfPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := ts.requests[1]
	if r.ContentType != "application/pdf" {
		t.Errorf("content type = %q, want application/pdf", r.ContentType)
	}
	if r.Body != "%PDF-1.4" {
		t.Errorf("body = %q, want raw file", r.Body)
	}
}

func TestParseCast(t *testing.T) {
	tests := []struct {
		in      []string
		want    []journal.CastMember
		wantErr bool
	}{
		{in: nil, want: []journal.CastMember{}},
		{in: []string{"Hamlet = Hu Ge"}, want: []journal.CastMember{{Role: "Hamlet", Actor: "Hu Ge"}}},
		{in: []string{"Hu Ge"}, want: []journal.CastMember{{Actor: "Hu Ge"}}},
		{in: []string{"Hamlet="}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseCast(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCast(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("parseCast(%q) = %+v, want %+v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseCast(%q)[%d] = %+v, want %+v", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestNoColorFlag(t *testing.T) {
	defer func() { noColor = false }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("colorize = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	_, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(409)
		w.Write([]byte(`{"error":{"message":"show already exists","type":"conflict"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.post(ctx, "/shows", journal.Record{Title: "Hamlet"})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 409 response")
	}
	if !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "show already exists") {
		t.Errorf("error = %q, want status and message", err.Error())
	}
}

func TestAPIClient_NotReachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	client := &apiClient{baseURL: url, token: "t", httpClient: &http.Client{Timeout: time.Second}}
	_, err := client.get(ctx, "/health")
	if err == nil || !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("err = %v, want not reachable", err)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Journal.Timezone = "Asia/Shanghai"
	cfg.Summary.APIKey = "secret"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	got := map[string]string{}
	for _, k := range keys {
		got[k.Key] = k.Value
	}
	if got["server.port"] != "4000" {
		t.Errorf("server.port = %q, want 4000", got["server.port"])
	}
	if got["journal.timezone"] != "Asia/Shanghai" {
		t.Errorf("journal.timezone = %q, want Asia/Shanghai", got["journal.timezone"])
	}
	if got["summary.api_key"] != "(set)" {
		t.Errorf("summary.api_key = %q, want (set)", got["summary.api_key"])
	}
}

func TestRecordsMarkdown(t *testing.T) {
	md := recordsMarkdown("History", []journal.Record{
		{ID: "show-1", Title: "A|B", Date: "2024-06-01", Location: "Grand", Price: 99.5, Status: journal.StatusWatched},
	})
	for _, want := range []string{"# History", `A\|B`, "99.5", "show-1"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	if md := recordsMarkdown("Upcoming", nil); !strings.Contains(md, "No shows") {
		t.Errorf("empty markdown = %q", md)
	}
}

func TestCalendarMarkdown(t *testing.T) {
	// June 2024 starts on a Saturday.
	cal := shows.CalendarMonth{
		Grid: journal.Grid{
			Year:    2024,
			Month:   time.June,
			Leading: 6,
			Days:    make([]journal.Day, 30),
		},
		TotalShows: 2,
		TotalSpent: 300,
	}
	for i := range cal.Days {
		cal.Days[i] = journal.Day{Date: journal.NewDate(2024, time.June, i+1).String(), Day: i + 1}
	}
	cal.Days[0].HasRecord = true
	cal.Days[0].Multiple = true
	cal.Days[0].Records = []journal.Record{{Title: "A"}, {Title: "B"}}

	md := calendarMarkdown(cal)
	if !strings.Contains(md, "# June 2024") {
		t.Errorf("missing heading:\n%s", md)
	}
	if !strings.Contains(md, "|  |  |  |  |  |  | **1**+ |") {
		t.Errorf("first week should put day 1 on Saturday:\n%s", md)
	}
	if !strings.Contains(md, "**2 shows, 300 spent**") {
		t.Errorf("missing totals:\n%s", md)
	}
}
