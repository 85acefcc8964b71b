package norma

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/normgate/internal/domain"
	domnorma "github.com/kailas-cloud/normgate/internal/domain/norma"
	"github.com/kailas-cloud/normgate/internal/domain/search/query"
	"github.com/kailas-cloud/normgate/internal/domain/search/request"
)

// --- Mocks ---

type searchCall struct {
	documentType string
	filters      string
}

type mockRegistry struct {
	mu       sync.Mutex
	searches []searchCall
	pages    map[string]domnorma.Page // keyed by publicacion_desde, "" for plain searches
	record   domnorma.Record
	pubPage  domnorma.Page
	err      error

	lastID      string
	lastSummary bool
}

func (m *mockRegistry) Search(_ context.Context, documentType, encoded string) (domnorma.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, searchCall{documentType: documentType, filters: encoded})
	if m.err != nil {
		return domnorma.Page{}, m.err
	}
	values, _ := url.ParseQuery(encoded)
	return m.pages[values.Get(request.KeyPublishedFrom)], nil
}

func (m *mockRegistry) GetByID(_ context.Context, id string, summaryOnly bool) (domnorma.Record, error) {
	m.lastID = id
	m.lastSummary = summaryOnly
	return m.record, m.err
}

func (m *mockRegistry) GetByPublication(_ context.Context, _ string) (domnorma.Page, error) {
	return m.pubPage, m.err
}

// --- Helpers ---

func mustPage(t *testing.T, raw string) domnorma.Page {
	t.Helper()
	var p domnorma.Page
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	return p
}

func mustRecord(t *testing.T, raw string) domnorma.Record {
	t.Helper()
	var r domnorma.Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	return r
}

func newService(t *testing.T, reg Registry) *Service {
	t.Helper()
	rw, err := domnorma.NewRewriter("%%server_name%%", "/api/v1/recursos")
	if err != nil {
		t.Fatalf("rewriter: %v", err)
	}
	svc := New(reg, domnorma.DefaultPolicy(), rw)
	svc.now = func() time.Time { return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func mustSearch(t *testing.T, body string) request.Search {
	t.Helper()
	req, err := request.Parse([]byte(body), time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("parse request: %v", err)
	}
	return req
}

// --- Tests ---

func TestSearch_Plain(t *testing.T) {
	reg := &mockRegistry{pages: map[string]domnorma.Page{
		"": mustPage(t, `{"metadata":{"resultset":{"count":1,"offset":1,"limit":10}},
			"results":[{"id":1,"tipoNorma":"Resolución","idNormas":[{"numero":"5"}],"sancion":"2020-03-01"}]}`),
	}}
	svc := newService(t, reg)

	page, err := svc.Search(context.Background(), mustSearch(t, `{"tipo":"resoluciones","texto":"agua","dependencia":""}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.searches) != 1 {
		t.Fatalf("expected 1 registry call, got %d", len(reg.searches))
	}
	if reg.searches[0].documentType != "resoluciones" || reg.searches[0].filters != "texto=agua" {
		t.Errorf("unexpected call %+v", reg.searches[0])
	}
	if len(page.Results) != 1 || page.Results[0].DisplayName != "Resolución 5/2020" {
		t.Errorf("unexpected results %+v", page.Results)
	}
	if page.ResultSet.Count != 1 {
		t.Errorf("expected count 1, got %d", page.ResultSet.Count)
	}
}

func TestSearch_YearBuckets(t *testing.T) {
	reg := &mockRegistry{pages: map[string]domnorma.Page{
		"1923-01-01": mustPage(t, `{"results":[{"id":10,"tipoNorma":"Ley","idNormas":[{"numero":"70"}]}]}`),
		"2023-01-01": mustPage(t, `{"results":[{"id":20,"tipoNorma":"Ley","idNormas":[{"numero":"70"}]},
			{"id":21,"tipoNorma":"Ley","idNormas":[{"numero":"70"}]}]}`),
	}}
	svc := newService(t, reg)

	page, err := svc.Search(context.Background(), mustSearch(t, `{"tipo":"leyes","numero":"70/23","limit":50}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1823, 1923 and 2023 are all candidates.
	if len(reg.searches) != 3 {
		t.Fatalf("expected 3 registry calls, got %d", len(reg.searches))
	}
	var filters []string
	for _, c := range reg.searches {
		filters = append(filters, c.filters)
	}
	sort.Strings(filters)
	want := "numero=70&limit=50&publicacion_desde=2023-01-01&publicacion_hasta=2023-12-31"
	if filters[2] != want {
		t.Errorf("unexpected filters:\ngot:  %s\nwant: %s", filters[2], want)
	}

	ids := make([]string, len(page.Results))
	for i, r := range page.Results {
		ids[i] = r.ID
	}
	if strings.Join(ids, ",") != "10,20,21" {
		t.Errorf("expected results in year order, got %v", ids)
	}
	if page.ResultSet != (domnorma.ResultSet{Count: 3, Offset: 1, Limit: 50}) {
		t.Errorf("unexpected resultset %+v", page.ResultSet)
	}
}

func TestSearch_CurrentYearEndsToday(t *testing.T) {
	reg := &mockRegistry{}
	svc := newService(t, reg)

	if _, err := svc.Search(context.Background(), mustSearch(t, `{"tipo":"decretos","numero":"12/24"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.searches) != 3 {
		t.Fatalf("expected 3 registry calls, got %d", len(reg.searches))
	}
	var current string
	for _, c := range reg.searches {
		if strings.Contains(c.filters, "publicacion_desde=2024-01-01") {
			current = c.filters
		}
	}
	if !strings.HasSuffix(current, "publicacion_hasta=2024-06-15") {
		t.Errorf("expected range to end today, got %q", current)
	}
}

func TestSearch_SingleYearUsesSanction(t *testing.T) {
	reg := &mockRegistry{pages: map[string]domnorma.Page{
		"": mustPage(t, `{"metadata":{"resultset":{"count":1,"offset":1,"limit":10}},
			"results":[{"id":5,"tipoNorma":"Decreto","idNormas":[{"numero":"12"}],"sancion":"2024-01-03"}]}`),
	}}
	svc := newService(t, reg)

	page, err := svc.Search(context.Background(), mustSearch(t, `{"tipo":"decretos","numero":"12/2024"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.searches) != 1 {
		t.Fatalf("expected 1 registry call, got %d", len(reg.searches))
	}
	if got := reg.searches[0].filters; got != "numero=12&sancion=2024" {
		t.Errorf("unexpected filters %q", got)
	}
	// Registry paging is passed through untouched.
	if page.ResultSet.Limit != 10 || len(page.Results) != 1 || page.Results[0].DisplayName != "Decreto 12/2024" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestSearch_BucketFailureFailsSearch(t *testing.T) {
	reg := &mockRegistry{err: domain.NewUpstreamError(503, nil)}
	svc := newService(t, reg)

	_, err := svc.Search(context.Background(), mustSearch(t, `{"tipo":"leyes","numero":"70/23"}`))
	if !errors.Is(err, domain.ErrUpstreamRejected) {
		t.Fatalf("expected ErrUpstreamRejected, got %v", err)
	}
}

func TestSearch_UpstreamErrorKeepsStatus(t *testing.T) {
	reg := &mockRegistry{err: domain.NewUpstreamError(404, []byte(`{"mensaje":"sin datos"}`))}
	svc := newService(t, reg)

	f := query.Filters{}
	f.Set("texto", "agua")
	req, err := request.New("leyes", f, time.Now())
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	_, err = svc.Search(context.Background(), req)

	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != 404 {
		t.Fatalf("expected UpstreamError 404, got %v", err)
	}
}

func TestGet_RewritesBothTexts(t *testing.T) {
	reg := &mockRegistry{record: mustRecord(t, `{"id":99,"tipoNorma":"Ley","idNormas":[{"numero":"26994"}],
		"textoNorma":"<img src=\"%%server_name%%/a.png\">","textoNormaAct":"<a href=\"%%server_name%%/b\">"}`)}
	svc := newService(t, reg)

	e, err := svc.Get(context.Background(), " 99 ", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.lastID != "99" || reg.lastSummary {
		t.Errorf("unexpected lookup id=%q summary=%v", reg.lastID, reg.lastSummary)
	}
	if e.Text != `<img src="/api/v1/recursos/a.png">` {
		t.Errorf("unexpected text %q", e.Text)
	}
	if e.UpdatedText != `<a href="/api/v1/recursos/b">` {
		t.Errorf("unexpected updated text %q", e.UpdatedText)
	}
	if e.DisplayName != "Ley 26994" {
		t.Errorf("unexpected display name %q", e.DisplayName)
	}
}

func TestGet_InvalidID(t *testing.T) {
	reg := &mockRegistry{}
	svc := newService(t, reg)

	for _, id := range []string{"", "abc", "-1", "0", "12a"} {
		if _, err := svc.Get(context.Background(), id, false); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("id %q: expected ErrInvalidRequest, got %v", id, err)
		}
	}
	if reg.lastID != "" {
		t.Error("registry must not be called for invalid ids")
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := newService(t, &mockRegistry{err: domain.ErrNotFound})

	if _, err := svc.Get(context.Background(), "5", true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestByPublication(t *testing.T) {
	reg := &mockRegistry{pubPage: mustPage(t, `{"results":[{"id":1,"tipoNorma":"Aviso Oficial"}]}`)}
	svc := newService(t, reg)

	page, err := svc.ByPublication(context.Background(), "20240102")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].DisplayName != "Aviso Oficial" || page.Results[0].Numbered {
		t.Errorf("unexpected results %+v", page.Results)
	}

	if _, err := svc.ByPublication(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty id, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	reg := &mockRegistry{record: mustRecord(t, `{"id":7,"tipoNorma":"Decreto",
		"idNormas":[{"numero":"70","dependencia":"PODER EJECUTIVO NACIONAL"}],
		"publicacion":"2023-12-21","nroBoletin":"35326","pagBoletin":"3",
		"tituloSumario":"<p>EMERGENCIA  PÚBLICA &amp; <b>desregulación</b></p>"}`)}
	svc := newService(t, reg)

	p, err := svc.Preview(context.Background(), "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reg.lastSummary {
		t.Error("preview must use the summary lookup")
	}
	want := domnorma.Preview{
		ID:          "7",
		Title:       "Decreto 70/2023",
		Summary:     "EMERGENCIA PÚBLICA & desregulación",
		Dependencia: "PODER EJECUTIVO NACIONAL",
		Publicacion: "2023-12-21",
		Boletin:     "B.O.R.A 35326 • pág 3",
	}
	if p != want {
		t.Errorf("unexpected preview:\ngot:  %+v\nwant: %+v", p, want)
	}
}

func TestPreview_FallbacksWithoutBulletin(t *testing.T) {
	reg := &mockRegistry{record: mustRecord(t, `{"id":8,"tituloResumido":"Texto breve","nroBoletin":"1"}`)}
	svc := newService(t, reg)

	p, err := svc.Preview(context.Background(), "8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Title != "Norma" {
		t.Errorf("expected generic title, got %q", p.Title)
	}
	if p.Summary != "Texto breve" {
		t.Errorf("expected short title as summary, got %q", p.Summary)
	}
	if p.Boletin != "" {
		t.Errorf("expected no bulletin without page, got %q", p.Boletin)
	}
}
