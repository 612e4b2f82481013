package api

import (
	"bytes"
	"encoding/binary"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/weightdecode/internal/logger"
	"github.com/samcharles93/weightdecode/pkg/layout"
	"github.com/samcharles93/weightdecode/pkg/wdb"
	"github.com/samcharles93/weightdecode/pkg/weights"
)

const fourWeights = `{"total_size":4,"allocations":{"0":{"name":"w","offset":0,"size":4}}}`

func newTestEcho(maxBody int64) *echo.Echo {
	server := NewServer(Config{MaxBodyBytes: maxBody, Logger: logger.Discard()})
	e := echo.New()
	server.Register(e)
	return e
}

func f32le(vals ...float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func multipartBody(t *testing.T, layoutJSON string, weightsData []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if layoutJSON != "" {
		if err := mw.WriteField("layout", layoutJSON); err != nil {
			t.Fatalf("write layout field: %v", err)
		}
	}
	if weightsData != nil {
		fw, err := mw.CreateFormFile("weights", "weights.bin")
		if err != nil {
			t.Fatalf("create weights part: %v", err)
		}
		if _, err := fw.Write(weightsData); err != nil {
			t.Fatalf("write weights part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func doDecode(t *testing.T, e *echo.Echo, query, layoutJSON string, weightsData []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, layoutJSON, weightsData)
	req := httptest.NewRequest(http.MethodPost, "/v1/decode"+query, body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return out.Error.Type
}

func TestDecodeEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestEcho(0)
	rec := doDecode(t, e, "", fourWeights, f32le(1, 2, 3, 4))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), f32le(1, 2, 3, 4)) {
		t.Fatalf("body: got %v", rec.Body.Bytes())
	}
	if got := rec.Header().Get(HeaderTotalSize); got != "4" {
		t.Fatalf("total size header: %q", got)
	}
	if rec.Header().Get(HeaderDecodeID) == "" {
		t.Fatal("missing decode id header")
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != echo.MIMEOctetStream {
		t.Fatalf("content type: %q", got)
	}
}

func TestDecodeEndpointQueryOverrides(t *testing.T) {
	t.Parallel()

	ml := &layout.MemoryLayout{TotalSize: 3, Allocations: map[string]layout.Allocation{
		"a": {Name: "a", Offset: 0, Size: 3},
	}}
	image := []float32{0, -1.5, 0}
	var container bytes.Buffer
	if err := weights.EncodeContainer(&container, ml, image, weights.Uniform(wdb.EncodingSparse, wdb.CompressionZstd)); err != nil {
		t.Fatalf("encode container: %v", err)
	}
	layoutJSON, err := ml.MarshalIndent()
	if err != nil {
		t.Fatal(err)
	}

	e := newTestEcho(0)
	rec := doDecode(t, e, "?format=auto", string(layoutJSON), container.Bytes())
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), f32le(image...)) {
		t.Fatalf("body: got %v", rec.Body.Bytes())
	}

	lookup, err := weights.EncodeLookupCodes([]float32{2}, []uint8{0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	rec = doDecode(t, e, "?encoding=lookup", string(layoutJSON), lookup)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), f32le(2, 2, 2)) {
		t.Fatalf("lookup body: got %v", rec.Body.Bytes())
	}
}

func TestDecodeEndpointErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho(0)
	cases := []struct {
		name     string
		query    string
		layout   string
		weights  []byte
		status   int
		wantType string
	}{
		{"truncated", "", fourWeights, f32le(1, 2), http.StatusUnprocessableEntity, "truncated_data"},
		{"bad layout", "", `{"total_size":2,"allocations":{"0":{"name":"w","offset":1,"size":4}}}`, f32le(1, 2, 3, 4), http.StatusUnprocessableEntity, "layout_error"},
		{"unparsable layout", "", `{"total_size":`, f32le(1), http.StatusBadRequest, "invalid_request_error"},
		{"missing layout", "", "", f32le(1), http.StatusBadRequest, "invalid_request_error"},
		{"missing weights", "", fourWeights, nil, http.StatusBadRequest, "invalid_request_error"},
		{"bad encoding param", "?encoding=q2", fourWeights, f32le(1, 2, 3, 4), http.StatusBadRequest, "invalid_request_error"},
		{"bad format param", "?format=zip", fourWeights, f32le(1, 2, 3, 4), http.StatusBadRequest, "invalid_request_error"},
		{"container garbage", "?format=container", fourWeights, []byte("WDB\x00garbage"), http.StatusUnprocessableEntity, "truncated_data"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := doDecode(t, e, tc.query, tc.layout, tc.weights)
			if rec.Code != tc.status {
				t.Fatalf("status: got %d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if got := errorType(t, rec); got != tc.wantType {
				t.Fatalf("error type: got %q want %q", got, tc.wantType)
			}
		})
	}
}

func TestDecodeEndpointTooLarge(t *testing.T) {
	t.Parallel()

	e := newTestEcho(256)
	rec := doDecode(t, e, "", fourWeights, make([]byte, 1024))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := errorType(t, rec); got != "request_too_large" {
		t.Fatalf("error type: %q", got)
	}
}

func TestInspectEndpoint(t *testing.T) {
	t.Parallel()

	ml := &layout.MemoryLayout{TotalSize: 6, Allocations: map[string]layout.Allocation{
		"0": {Name: "fc/W", Offset: 0, Size: 4},
		"1": {Name: "fc/b", Offset: 4, Size: 2},
	}}
	var container bytes.Buffer
	if err := weights.EncodeContainer(&container, ml, make([]float32, 6), weights.Uniform(wdb.EncodingRawF16, wdb.CompressionNone)); err != nil {
		t.Fatalf("encode container: %v", err)
	}

	e := newTestEcho(0)
	req := httptest.NewRequest(http.MethodPost, "/v1/inspect", bytes.NewReader(container.Bytes()))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var out InspectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode inspect body: %v", err)
	}
	if out.Major != wdb.CurrentMajor || len(out.Blocks) != 2 {
		t.Fatalf("unexpected listing: %+v", out)
	}
	w := out.Blocks[0]
	if w.Name != "fc/W" || w.Encoding != "raw-f16" || w.Compression != "none" || w.Count != 4 || w.PayloadBytes != 8 {
		t.Fatalf("unexpected block: %+v", w)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/inspect", strings.NewReader("not a container at all"))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity || errorType(t, rec) != "corrupt_header" {
		t.Fatalf("garbage inspect: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	e := newTestEcho(0)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHumanBytes(t *testing.T) {
	t.Parallel()

	for n, want := range map[int64]string{512: "512 B", 2048: "2.0 KiB", 1 << 30: "1.0 GiB"} {
		if got := humanBytes(n); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
