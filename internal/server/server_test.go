package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/phylotrace/phylotrace/pkg/cache"
	"github.com/phylotrace/phylotrace/pkg/pipeline"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	h := New(pipeline.NewRunner(cache.NewNullCache()), logger)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func postLabel(t *testing.T, srv *httptest.Server, body any) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(srv.URL+"/v1/label", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /v1/label error: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestLabelEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, data := postLabel(t, srv, map[string]any{
		"newick": "(((A,C),G),(C2,G2));",
		"tips":   map[string]string{"A": "A", "C": "C", "G": "G", "C2": "C", "G2": "G"},
		"matrix_csv": `,A,C,G,T
A,0,2,1,2
C,2,0,2,1
G,1,2,0,2
T,2,1,2,0
`,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, data)
	}

	var out labelResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if out.RootState != "G" || out.MinCost != 5 {
		t.Errorf("root=%q cost=%v, want G/5", out.RootState, out.MinCost)
	}
	if out.Labeled != "(((A,C)A,G)G,(C2,G2)G)G;" {
		t.Errorf("labeled = %q", out.Labeled)
	}
	if out.RunID == "" {
		t.Error("run_id is empty")
	}
	if out.Stats.NodeCount != 9 {
		t.Errorf("node_count = %d, want 9", out.Stats.NodeCount)
	}
}

func TestLabelEndpointEqualCost(t *testing.T) {
	srv := newTestServer(t)
	resp, data := postLabel(t, srv, map[string]any{
		"newick": "(a,b);",
		"tips":   map[string]string{"a": "X", "b": "Y"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, data)
	}
	var out labelResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if out.MinCost != 1 {
		t.Errorf("min_cost = %v, want 1", out.MinCost)
	}
}

func TestLabelEndpointErrors(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{
			"malformed topology",
			map[string]any{"newick": "((a,b);", "tips": map[string]string{"a": "X", "b": "Y"}},
			http.StatusBadRequest, "MALFORMED_TOPOLOGY",
		},
		{
			"missing tips",
			map[string]any{"newick": "(a,b);"},
			http.StatusBadRequest, "INVALID_INPUT",
		},
		{
			"bad delimiter",
			map[string]any{"newick": "(a,b);", "tips": map[string]string{"a": "X", "b": "Y"}, "delimiter": "ab"},
			http.StatusBadRequest, "INVALID_INPUT",
		},
		{
			"unreachable",
			map[string]any{
				"newick":     "(a,b);",
				"tips":       map[string]string{"a": "A", "b": "B"},
				"matrix_csv": ",A,B\nA,0,inf\nB,inf,0\n",
			},
			http.StatusUnprocessableEntity, "UNREACHABLE",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, data := postLabel(t, srv, tc.body)
			if resp.StatusCode != tc.status {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tc.status, data)
			}
			var out errorResponse
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("unmarshal error response: %v", err)
			}
			if out.Code != tc.code {
				t.Errorf("code = %q, want %q", out.Code, tc.code)
			}
		})
	}
}

func TestLabelEndpointRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/v1/label", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
