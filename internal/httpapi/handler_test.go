package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/design-spec-mcp/internal/assets"
	"github.com/ironsheep/design-spec-mcp/internal/colors"
	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/export"
	"github.com/ironsheep/design-spec-mcp/internal/geometry"
	"github.com/ironsheep/design-spec-mcp/internal/remote"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFetcher struct {
	data []byte
	err  error
	urls []string
}

func (f *stubFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	f.urls = append(f.urls, imageURL)
	return f.data, f.err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestHandler(f remote.Fetcher) (http.Handler, *assets.MemoryStore) {
	n := 0
	store := assets.NewMemoryStore(func() string {
		n++
		return fmt.Sprintf("asset-%d", n)
	}, func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) })
	return NewHandler(Options{
		Fetcher:      f,
		Assets:       store,
		MaxBodyBytes: 1 << 20,
		ProjectName:  "Acme",
		Version:      "1.2.3",
	}), store
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(nil)
	w := do(h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "available" || body["version"] != "1.2.3" {
		t.Errorf("body = %v", body)
	}
}

func TestImageProxy(t *testing.T) {
	img := pngBytes(t)

	tests := []struct {
		name       string
		fetcher    *stubFetcher
		body       string
		wantStatus int
		wantType   string
	}{
		{"relays image", &stubFetcher{data: img}, `{"imageUrl":"https://cdn.example.com/a.png"}`, http.StatusOK, ""},
		{"missing url", &stubFetcher{data: img}, `{}`, http.StatusBadRequest, "validation"},
		{"bad scheme", &stubFetcher{data: img}, `{"imageUrl":"file:///etc/passwd"}`, http.StatusBadRequest, "validation"},
		{"upstream failure", &stubFetcher{err: &remote.StatusError{StatusCode: 404}}, `{"imageUrl":"https://cdn.example.com/a.png"}`, http.StatusBadGateway, "image_fetch_failed"},
		{"timeout", &stubFetcher{err: context.DeadlineExceeded}, `{"imageUrl":"https://cdn.example.com/a.png"}`, http.StatusGatewayTimeout, "image_fetch_failed"},
		{"not an image", &stubFetcher{data: []byte("<html><body>login</body></html>")}, `{"imageUrl":"https://cdn.example.com/a.png"}`, http.StatusBadGateway, "image_fetch_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(tt.fetcher)
			w := do(h, http.MethodPost, "/api/image-proxy", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if ct := w.Header().Get("Content-Type"); ct != "image/png" {
					t.Errorf("Content-Type = %q", ct)
				}
				if !bytes.Equal(w.Body.Bytes(), img) {
					t.Error("body differs from upstream bytes")
				}
				return
			}
			if got := decodeError(t, w); string(got.Type) != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}
}

func TestImageProxy_NoFetcher(t *testing.T) {
	h, _ := newTestHandler(nil)
	w := do(h, http.MethodPost, "/api/image-proxy", `{"imageUrl":"https://cdn.example.com/a.png"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d", w.Code)
	}
}

func TestImageProxy_AllowedHosts(t *testing.T) {
	h := NewHandler(Options{
		Fetcher:   &stubFetcher{data: pngBytes(t)},
		Validator: remote.NewURLValidatorWithOptions(nil, []string{".example.com"}),
	})

	if w := do(h, http.MethodPost, "/api/image-proxy", `{"imageUrl":"https://cdn.example.com/a.png"}`); w.Code != http.StatusOK {
		t.Errorf("allowed host: status = %d, body %s", w.Code, w.Body.String())
	}
	w := do(h, http.MethodPost, "/api/image-proxy", `{"imageUrl":"https://cdn.example.net/a.png"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("other host: status = %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Type != apperrors.ErrorTypeValidation {
		t.Errorf("type = %s", resp.Type)
	}
}

func savedSpec(t *testing.T) string {
	t.Helper()
	red, _ := colors.ParseHex("#FF0000")
	spec := export.Build(export.Source{
		FileName:   "Home.png",
		Dimensions: geometry.Size{Width: 1440, Height: 900},
		Colors: []colors.Sample{{
			ID:         "c1",
			Descriptor: colors.Analyze(red),
		}},
	}, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	data, err := export.JSON(spec, export.IncludeAll())
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestExport(t *testing.T) {
	h, _ := newTestHandler(nil)
	body := savedSpec(t)

	w := do(h, http.MethodPost, "/api/export/css", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Content-Type = %q", ct)
	}
	want := `attachment; filename="acme-home-2024-05-01T08-00-00Z.css"`
	if cd := w.Header().Get("Content-Disposition"); cd != want {
		t.Errorf("Content-Disposition = %q, want %q", cd, want)
	}
	if !strings.Contains(w.Body.String(), "--color-1: #FF0000;") {
		t.Errorf("css:\n%s", w.Body.String())
	}

	w = do(h, http.MethodPost, "/api/export/json?include=metadata&name=Brief", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), `"colors"`) {
		t.Error("colors were not filtered out")
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "acme-brief-") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestExport_Errors(t *testing.T) {
	h, _ := newTestHandler(nil)
	body := savedSpec(t)

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
	}{
		{"unknown format", "/api/export/pptx", body, http.StatusBadRequest},
		{"unknown section", "/api/export/css?include=shadows", body, http.StatusBadRequest},
		{"not json", "/api/export/css", "{", http.StatusBadRequest},
		{"injected color", "/api/export/css", `{"colors":[{"id":"c1","hex":"#FF0000;}*{x:y"}]}`, http.StatusBadRequest},
		{"too large", "/api/export/css", `{"pad":"` + strings.Repeat("x", 2<<20) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, tt.target, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestAssets(t *testing.T) {
	h, _ := newTestHandler(nil)

	w := do(h, http.MethodPost, "/api/assets",
		`{"name":"Hero","format":"png","scale":2,"width":40,"height":20,"file_size":2048,"file_url":"data:image/png;base64,AAAA"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created assets.Asset
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID != "asset-1" {
		t.Errorf("created = %+v", created)
	}

	w = do(h, http.MethodPost, "/api/assets", `{"name":"","format":"png"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid create status = %d", w.Code)
	}

	w = do(h, http.MethodGet, "/api/assets", "")
	var list struct {
		Assets []struct {
			ID   string `json:"id"`
			Size string `json:"size"`
		} `json:"assets"`
		Count int `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Count != 1 || list.Assets[0].Size != "2.0 kB" {
		t.Errorf("list = %+v", list)
	}

	if w = do(h, http.MethodDelete, "/api/assets/asset-1", ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	w = do(h, http.MethodDelete, "/api/assets/asset-1", "")
	if w.Code != http.StatusNotFound || decodeError(t, w).Type != "not_found" {
		t.Errorf("second delete = %d %s", w.Code, w.Body.String())
	}
}

func TestStatusCode(t *testing.T) {
	if got := statusCode(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("plain error = %d", got)
	}
	if got := statusCode(fmt.Errorf("wrapped: %w", &http.MaxBytesError{Limit: 1})); got != http.StatusRequestEntityTooLarge {
		t.Errorf("max bytes = %d", got)
	}
}
