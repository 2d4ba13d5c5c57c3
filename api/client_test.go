package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/synum-dev/synum/internal/errors"
)

func TestNewClient(t *testing.T) {
	c := NewClient()
	if c.BaseURL != TestBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL, TestBaseURL)
	}

	c = NewClient(WithDevelopmentService(false))
	if c.BaseURL != ProductionBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL, ProductionBaseURL)
	}

	c = NewClient(
		WithBaseURL("https://example.com/"),
		WithCredentials("Webin-1", "secret"),
	)
	if c.BaseURL != "https://example.com" {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL, "https://example.com")
	}
	if c.Username != "Webin-1" || c.Password != "secret" {
		t.Errorf("credentials = %q/%q", c.Username, c.Password)
	}
}

const sampleReceipt = `<?xml version="1.0" encoding="UTF-8"?>
<RECEIPT receiptDate="2024-01-01T00:00:00.000Z" submissionFile="submission.xml" success="true">
  <SAMPLE accession="ERS0000001" alias="bin.1_ab12cd34" status="PRIVATE">
    <EXT_ID accession="SAMEA0000001" type="biosample"/>
  </SAMPLE>
  <SUBMISSION accession="ERA0000001" alias="synum_ab12cd34"/>
</RECEIPT>`

func TestClient_DropBoxSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %q, want POST", r.Method)
		}
		if r.URL.Path != dropBoxPath {
			t.Errorf("Path = %q, want %q", r.URL.Path, dropBoxPath)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "Webin-1" || pass != "secret" {
			t.Errorf("BasicAuth = %q/%q/%v", user, pass, ok)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		for key, want := range map[string]string{"SUBMISSION": "<SUBMISSION/>", "SAMPLE": "<SAMPLE_SET/>"} {
			f, _, err := r.FormFile(key)
			if err != nil {
				t.Fatalf("FormFile(%s) error = %v", key, err)
			}
			got, _ := io.ReadAll(f)
			if string(got) != want {
				t.Errorf("%s = %q, want %q", key, got, want)
			}
		}
		_, _ = io.WriteString(w, sampleReceipt)
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithCredentials("Webin-1", "secret"))
	data, err := c.DropBoxSubmit(context.Background(), []byte("<SUBMISSION/>"), []byte("<SAMPLE_SET/>"))
	if err != nil {
		t.Fatalf("DropBoxSubmit() error = %v", err)
	}

	receipt, err := ParseReceipt(data)
	if err != nil {
		t.Fatalf("ParseReceipt() error = %v", err)
	}
	if got := receipt.SampleAccessions()["bin.1_ab12cd34"]; got != "ERS0000001" {
		t.Errorf("accession = %q, want ERS0000001", got)
	}
}

func TestClient_DropBoxSubmit_Status(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		kind     StatusKind
		category errors.Category
	}{
		{http.StatusBadRequest, "bad xml", KindMalformed, errors.CategoryNetwork},
		{http.StatusForbidden, "", KindAuth, errors.CategoryAuth},
		{http.StatusUnauthorized, "", KindAuth, errors.CategoryAuth},
		{http.StatusRequestTimeout, "", KindTimeout, errors.CategoryNetwork},
		{http.StatusInternalServerError, "oops", KindOther, errors.CategoryNetwork},
		{http.StatusOK, "  \n", KindEmpty, errors.CategoryNetwork},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			c := NewClient(WithBaseURL(server.URL))
			_, err := c.DropBoxSubmit(context.Background(), []byte("<a/>"), []byte("<b/>"))
			if err == nil {
				t.Fatal("DropBoxSubmit() should fail")
			}
			if got := errors.CategoryOf(err); got != tt.category {
				t.Errorf("category = %q, want %q", got, tt.category)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.Kind != tt.kind {
				t.Errorf("StatusError kind = %v, want %q", se, tt.kind)
			}
			if calls.Load() != 1 {
				t.Errorf("calls = %d, want exactly 1 (no retry)", calls.Load())
			}
		})
	}
}

func TestClient_Search(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != searchPath {
			t.Errorf("Path = %q, want %q", r.URL.Path, searchPath)
		}
		q := r.URL.Query()
		if q.Get("result") != "analysis" {
			t.Errorf("result = %q, want analysis", q.Get("result"))
		}
		if q.Get("query") != `analysis_accession="ERZ1049590"` {
			t.Errorf("query = %q", q.Get("query"))
		}
		if q.Get("fields") != "analysis_accession,sample_accession" {
			t.Errorf("fields = %q", q.Get("fields"))
		}
		_, _ = io.WriteString(w, "analysis_accession\tsample_accession\nERZ1049590\tSAMEA7654321\n")
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL))
	q := NewQuery().Eq("analysis_accession", "ERZ1049590").Select("analysis_accession", "sample_accession")

	for i := 0; i < 2; i++ {
		rows, err := c.Search(context.Background(), "assembly", q)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(rows) != 1 || rows[0]["sample_accession"] != "SAMEA7654321" {
			t.Errorf("rows = %v", rows)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (memoized)", calls.Load())
	}
}

func TestClient_Search_EmptyAndMalformed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"empty body", "", false},
		{"header only", "sample_accession\tscientific_name\n", false},
		{"malformed header", "<html>error</html>\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			c := NewClient(WithBaseURL(server.URL))
			rows, err := c.Search(context.Background(), "sample",
				NewQuery().Eq("sample_accession", "ERS1").Select("sample_accession", "scientific_name"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Search() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.IsCategory(err, errors.CategoryNetwork) {
					t.Errorf("category = %q, want network", errors.CategoryOf(err))
				}
				return
			}
			if rows == nil || len(rows) != 0 {
				t.Errorf("rows = %#v, want empty non-nil", rows)
			}
		})
	}
}

func TestClient_TaxonomySuggest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, taxonomyPath) {
			t.Errorf("Path = %q", r.URL.Path)
		}
		if got := strings.TrimPrefix(r.URL.Path, taxonomyPath); got != "Bacillus sp." {
			t.Errorf("query = %q, want %q", got, "Bacillus sp.")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"taxId":"1409","scientificName":"Bacillus sp.","displayName":"Bacillus sp."}]`)
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL))
	got, err := c.TaxonomySuggest(context.Background(), "Bacillus sp.")
	if err != nil {
		t.Fatalf("TaxonomySuggest() error = %v", err)
	}
	if len(got) != 1 || got[0].TaxID != "1409" || got[0].ScientificName != "Bacillus sp." {
		t.Errorf("suggestions = %+v", got)
	}
}

func TestParseReceipt_Failures(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"success false", `<RECEIPT success="false"><MESSAGES><ERROR>alias already exists</ERROR></MESSAGES></RECEIPT>`},
		{"missing accession", `<RECEIPT success="true"><ANALYSIS alias="x"/></RECEIPT>`},
		{"missing ext id", `<RECEIPT success="true"><SAMPLE alias="x" accession="ERS1"/></RECEIPT>`},
		{"not xml", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReceipt([]byte(tt.xml))
			if err == nil {
				t.Fatal("ParseReceipt() should fail")
			}
			if !errors.IsCategory(err, errors.CategorySubmission) {
				t.Errorf("category = %q, want submission", errors.CategoryOf(err))
			}
		})
	}

	_, err := ParseReceipt([]byte(tests[0].xml))
	if !strings.Contains(err.Error(), "alias already exists") {
		t.Errorf("error = %v, want receipt message", err)
	}
}

func TestReceipt_First(t *testing.T) {
	r, err := ParseReceipt([]byte(`<RECEIPT success="true"><ANALYSIS accession="ERZ1" alias="webin-genome-asm"/></RECEIPT>`))
	if err != nil {
		t.Fatalf("ParseReceipt() error = %v", err)
	}
	if acc, ok := r.First("ANALYSIS"); !ok || acc != "ERZ1" {
		t.Errorf("First(ANALYSIS) = %q, %v", acc, ok)
	}
	if _, ok := r.First("RUN"); ok {
		t.Error("First(RUN) should be absent")
	}
}

func TestClient_Search_RequiresFilter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL))
	_, err := c.Search(context.Background(), "sample", NewQuery().Select("sample_accession").Limit(1))
	if !errors.IsCategory(err, errors.CategoryConfig) {
		t.Fatalf("Search() error = %v, want config error", err)
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
}

func TestClient_Search_Limit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "1" {
			t.Errorf("limit = %q, want 1", got)
		}
		_, _ = io.WriteString(w, "analysis_accession\nERZ1\n")
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL))
	rows, err := c.Search(context.Background(), ResultAnalysis,
		NewQuery().Select(GetIDColumn(ResultAnalysis)).Eq(GetIDColumn(ResultAnalysis), "ERZ1").Limit(1))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["analysis_accession"] != "ERZ1" {
		t.Errorf("rows = %v", rows)
	}
}
