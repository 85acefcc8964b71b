package normgate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	domnorma "github.com/kailas-cloud/normgate/internal/domain/norma"
	"github.com/kailas-cloud/normgate/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/normgate/internal/usecase/health"
)

const leyJSON = `{"id":1234,"tipoNorma":"Ley","idNormas":[{"numero":27430,"dependencia":"HONORABLE CONGRESO"}],` +
	`"publicacion":"2017-12-29","textoNorma":"<a href=\"%%server_name%%/anexos/1.htm\">ver</a>",` +
	`"tituloSumario":"<b>IMPUESTOS</b>  Reforma","nroBoletin":"33781","pagBoletin":"3"}`

func newRegistry(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Defaults(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.normas == nil || c.health == nil {
		t.Fatal("client not wired")
	}
}

func TestNew_InvalidBaseURL(t *testing.T) {
	if _, err := New(WithBaseURL("servicios.infoleg.gob.ar")); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestNew_PrefixContainsPlaceholder(t *testing.T) {
	if _, err := New(WithLinkRewrite("%%server_name%%", "/r/%%server_name%%")); err == nil {
		t.Fatal("expected error when prefix contains the placeholder")
	}
}

func TestClient_Get(t *testing.T) {
	var gotURI string
	srv := newRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(leyJSON))
	})

	c, err := New(WithBaseURL(srv.URL), WithAPIPath("api"), WithLinkRewrite("%%server_name%%", "/recursos"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n, err := c.Get(context.Background(), 1234)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotURI != "/api?id=1234" {
		t.Errorf("upstream uri = %q", gotURI)
	}
	if n.DisplayName != "Ley 27430" || !n.Numbered {
		t.Errorf("display = %q numbered=%v", n.DisplayName, n.Numbered)
	}
	if !strings.Contains(n.Text, `href="/recursos/anexos/1.htm"`) {
		t.Errorf("text not rewritten: %q", n.Text)
	}
	if n.Bulletin != "33781" || n.BulletinPage != "3" {
		t.Errorf("bulletin = %q page %q", n.Bulletin, n.BulletinPage)
	}

	var raw map[string]any
	if err := json.Unmarshal(n.Raw, &raw); err != nil {
		t.Fatalf("raw: %v", err)
	}
	if raw["nombreNorma"] != "Ley 27430" || raw["tituloSumario"] == nil {
		t.Errorf("raw record incomplete: %v", raw)
	}
}

func TestClient_GetSummary(t *testing.T) {
	var gotURI string
	srv := newRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		_, _ = w.Write([]byte(leyJSON))
	})
	c, err := New(WithBaseURL(srv.URL), WithAPIPath("api"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n, err := c.GetSummary(context.Background(), 1234)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if gotURI != "/api?id=1234&resumen=true" {
		t.Errorf("upstream uri = %q", gotURI)
	}
	// Default rewrite points links back at the registry.
	if !strings.Contains(n.Text, srv.URL+"/anexos/1.htm") {
		t.Errorf("text = %q", n.Text)
	}
}

func TestClient_Get_NotFound(t *testing.T) {
	srv := newRegistry(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	c, _ := New(WithBaseURL(srv.URL), WithAPIPath("api"))

	_, err := c.Get(context.Background(), 9)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_Get_InvalidID(t *testing.T) {
	srv := newRegistry(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("registry must not be called")
	})
	c, _ := New(WithBaseURL(srv.URL))

	if _, err := c.Get(context.Background(), 0); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestClient_Search_Rejected(t *testing.T) {
	srv := newRegistry(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"tipo desconocido"}`))
	})
	c, _ := New(WithBaseURL(srv.URL), WithAPIPath("api"))

	_, err := c.Search(context.Background(), "otros")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusBadRequest || string(ue.Body) != `{"error":"tipo desconocido"}` {
		t.Errorf("status %d body %s", ue.StatusCode, ue.Body)
	}
	if !errors.Is(err, ErrUpstreamRejected) {
		t.Error("expected ErrUpstreamRejected in chain")
	}
}

func TestClient_Search_RequiresType(t *testing.T) {
	c, _ := New()
	if _, err := c.Search(context.Background(), ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestClient_Search_Filters(t *testing.T) {
	mock := &mockNormaUC{
		searchFn: func(_ context.Context, req request.Search) (domnorma.EnrichedPage, error) {
			if req.DocumentType() != "leyes" {
				t.Errorf("type = %q", req.DocumentType())
			}
			if got := req.Filters().Encode(); got != "numero=70&texto=agua%20potable" {
				t.Errorf("filters = %q", got)
			}
			if years := req.Years(); len(years) != 1 || years[0] != 2023 {
				t.Errorf("years = %v", years)
			}
			return domnorma.EnrichedPage{ResultSet: domnorma.ResultSet{Count: 1, Offset: 1, Limit: 50}}, nil
		},
	}
	c := &Client{normas: mock, now: fixedNow}

	res, err := c.Search(context.Background(), "leyes",
		F("numero", "1"), F("texto", "agua potable"), F("numero", "70/2023"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Count != 1 || res.Limit != 50 || len(res.Normas) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestClient_ByPublication(t *testing.T) {
	var gotPath string
	srv := newRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"metadata":{"resultset":{"count":1,"offset":1,"limit":1}},"results":[` + leyJSON + `]}`))
	})
	c, _ := New(WithBaseURL(srv.URL), WithAPIPath("api"))

	res, err := c.ByPublication(context.Background(), "33781")
	if err != nil {
		t.Fatalf("ByPublication: %v", err)
	}
	if gotPath != "/api/publicaciones/33781" {
		t.Errorf("path = %q", gotPath)
	}
	if res.Count != 1 || len(res.Normas) != 1 || res.Normas[0].ID != "1234" {
		t.Errorf("result = %+v", res)
	}
}

func TestClient_Preview(t *testing.T) {
	srv := newRegistry(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(leyJSON))
	})
	c, _ := New(WithBaseURL(srv.URL), WithAPIPath("api"))

	p, err := c.Preview(context.Background(), 1234)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	want := Preview{
		ID:          "1234",
		Title:       "Ley 27430",
		Summary:     "IMPUESTOS Reforma",
		Dependencia: "HONORABLE CONGRESO",
		Publication: "2017-12-29",
		Bulletin:    "B.O.R.A 33781 • pág 3",
	}
	if *p != want {
		t.Errorf("preview = %+v, want %+v", *p, want)
	}
}

func TestClient_Ping(t *testing.T) {
	c := &Client{health: &mockHealthUC{status: healthuc.Healthy}}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c = &Client{health: &mockHealthUC{status: healthuc.Unhealthy}}
	if err := c.Ping(context.Background()); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestClient_ObservesOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	mock := &mockNormaUC{
		previewFn: func(_ context.Context, _ string) (domnorma.Preview, error) {
			return domnorma.Preview{}, ErrNotFound
		},
	}
	c := &Client{normas: mock, obs: obs, now: fixedNow}

	_, _ = c.Preview(context.Background(), 5)

	got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("preview", "not_found"))
	if got != 1 {
		t.Errorf("preview not_found = %v, want 1", got)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("get: %w", ErrInvalidRequest), "invalid"},
		{fmt.Errorf("get: %w", ErrNotFound), "not_found"},
		{fmt.Errorf("search: %w", &UpstreamError{StatusCode: 500}), "rejected"},
		{errors.Join(ErrUpstreamMalformed, errors.New("eof")), "malformed"},
		{errors.Join(ErrUpstreamUnavailable, context.DeadlineExceeded), "unavailable"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestNewObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.metrics.operations != second.metrics.operations {
		t.Error("expected the registered collector to be reused")
	}
}

func fixedNow() time.Time {
	return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
}
