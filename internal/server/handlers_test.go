package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
)

// createTestImageFile writes a 200x100 PNG: red for x < 100, blue otherwise.
func createTestImageFile(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	draw.Draw(img, image.Rect(0, 0, 100, 100), image.NewUniform(color.RGBA{255, 0, 0, 255}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(100, 0, 200, 100), image.NewUniform(color.RGBA{0, 0, 255, 255}), image.Point{}, draw.Src)

	path := filepath.Join(t.TempDir(), "two-tone.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// surface draws the 200x100 image at double size, offset by (10, 20).
var surface = map[string]interface{}{
	"natural":  map[string]float64{"width": 200, "height": 100},
	"rendered": map[string]float64{"x": 10, "y": 20, "width": 400, "height": 200},
}

// call runs a tool and decodes its text result into out.
func call(t *testing.T, s *Server, name string, args map[string]interface{}, out interface{}) *MCPError {
	t.Helper()

	params, _ := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatalf("%s: handleRequest returned nil", name)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out != nil {
		content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
		text := content[0]["text"].(string)
		if err := json.Unmarshal([]byte(text), out); err != nil {
			t.Fatalf("%s: failed to decode result %q: %v", name, text, err)
		}
	}
	return nil
}

func mustCall(t *testing.T, s *Server, name string, args map[string]interface{}, out interface{}) {
	t.Helper()
	if err := call(t, s, name, args, out); err != nil {
		t.Fatalf("%s failed: %+v", name, err.Data)
	}
}

func errorType(t *testing.T, e *MCPError) apperrors.ErrorType {
	t.Helper()
	if e == nil {
		t.Fatal("expected an error")
	}
	if e.Code != ToolErrorCode {
		t.Errorf("code: got %d, want %d", e.Code, ToolErrorCode)
	}
	data, ok := e.Data.(ToolErrorData)
	if !ok {
		t.Fatalf("data: got %T", e.Data)
	}
	return data.Type
}

func openSession(t *testing.T, s *Server) string {
	t.Helper()
	var st struct {
		ID        string `json:"id"`
		ColorMode struct {
			Enabled bool `json:"enabled"`
		} `json:"color_mode"`
	}
	mustCall(t, s, "session_open", map[string]interface{}{"image_url": createTestImageFile(t)}, &st)
	if st.ID == "" || !st.ColorMode.Enabled {
		t.Fatalf("session_open: %+v", st)
	}
	return st.ID
}

func drawSelection(t *testing.T, s *Server, sid string) string {
	t.Helper()
	for _, ev := range []struct {
		phase string
		x, y  float64
	}{{"down", 50, 40}, {"move", 150, 90}, {"up", 250, 140}} {
		var res struct {
			Changed *struct {
				ID string `json:"id"`
			} `json:"changed"`
		}
		mustCall(t, s, "selection_pointer", map[string]interface{}{
			"session_id": sid, "phase": ev.phase, "x": ev.x, "y": ev.y, "surface": surface,
		}, &res)
		if ev.phase == "up" {
			if res.Changed == nil {
				t.Fatal("selection was not committed")
			}
			return res.Changed.ID
		}
	}
	return ""
}

func TestHandleToolsCall_SelectionAndCrop(t *testing.T) {
	s := newTestServer(t)
	sid := openSession(t, s)
	sel := drawSelection(t, s, sid)

	var renamed struct {
		Name   string `json:"name"`
		Format string `json:"format"`
	}
	mustCall(t, s, "selection_rename", map[string]interface{}{
		"session_id": sid, "selection_id": sel, "name": "Hero", "format": "png",
	}, &renamed)
	if renamed.Name != "Hero" {
		t.Errorf("rename: %+v", renamed)
	}

	var crop struct {
		Width   int    `json:"width"`
		Height  int    `json:"height"`
		DataURL string `json:"data_url"`
		Name    string `json:"name"`
		Asset   *struct {
			ID        string `json:"id"`
			SessionID string `json:"session_id"`
		} `json:"asset"`
	}
	mustCall(t, s, "selection_crop", map[string]interface{}{
		"session_id": sid, "selection_id": sel, "scale": 2, "save": true,
	}, &crop)
	if crop.Width != 200 || crop.Height != 100 {
		t.Errorf("crop size: %dx%d, want 200x100", crop.Width, crop.Height)
	}
	if !strings.HasPrefix(crop.DataURL, "data:image/png;base64,") || crop.Name != "Hero" {
		t.Errorf("crop: %q %q", crop.DataURL[:min(len(crop.DataURL), 30)], crop.Name)
	}
	if crop.Asset == nil || crop.Asset.SessionID != sid {
		t.Fatalf("asset: %+v", crop.Asset)
	}

	var list []struct {
		ID string `json:"id"`
	}
	mustCall(t, s, "asset_list", nil, &list)
	if len(list) != 1 || list[0].ID != crop.Asset.ID {
		t.Errorf("asset_list: %+v", list)
	}
	mustCall(t, s, "asset_delete", map[string]interface{}{"asset_id": crop.Asset.ID}, nil)
	if got := errorType(t, call(t, s, "asset_delete", map[string]interface{}{"asset_id": crop.Asset.ID}, nil)); got != apperrors.ErrorTypeNotFound {
		t.Errorf("second delete: %s", got)
	}

	mustCall(t, s, "selection_delete", map[string]interface{}{"session_id": sid, "selection_id": sel}, nil)
	if got := errorType(t, call(t, s, "selection_crop", map[string]interface{}{"session_id": sid, "selection_id": sel}, nil)); got != apperrors.ErrorTypeNotFound {
		t.Errorf("crop after delete: %s", got)
	}
}

func TestHandleToolsCall_SaveUnnamedSelection(t *testing.T) {
	s := newTestServer(t)
	sid := openSession(t, s)
	sel := drawSelection(t, s, sid)

	var crop struct {
		Format   string `json:"format"`
		MimeType string `json:"mime_type"`
		Name     string `json:"name"`
		Asset    *struct {
			Name   string `json:"name"`
			Format string `json:"format"`
		} `json:"asset"`
	}
	mustCall(t, s, "selection_crop", map[string]interface{}{
		"session_id": sid, "selection_id": sel, "format": "webp", "quality": 0, "save": true,
	}, &crop)
	if crop.Name != "" {
		t.Errorf("selection should still be unnamed, got %q", crop.Name)
	}
	if crop.Format != "webp" || crop.MimeType != "image/webp" {
		t.Errorf("crop format: %s (%s)", crop.Format, crop.MimeType)
	}
	if crop.Asset == nil {
		t.Fatal("unnamed selection was not saved")
	}
	if crop.Asset.Name != "selection-"+sel || crop.Asset.Format != "webp" {
		t.Errorf("asset: %+v", crop.Asset)
	}
}

func TestHandleToolsCall_Colors(t *testing.T) {
	s := newTestServer(t)
	sid := openSession(t, s)

	type sample struct {
		ID  string `json:"id"`
		Hex string `json:"hex"`
	}
	var red sample
	mustCall(t, s, "color_sample", map[string]interface{}{"session_id": sid, "x": 10, "y": 10}, &red)
	if red.Hex != "#FF0000" {
		t.Errorf("image-space sample: %s", red.Hex)
	}

	// Screen (350, 60) maps to image (170, 20).
	var blue sample
	mustCall(t, s, "color_sample", map[string]interface{}{"session_id": sid, "x": 350, "y": 60, "surface": surface}, &blue)
	if blue.Hex != "#0000FF" {
		t.Errorf("screen-space sample: %s", blue.Hex)
	}

	e := call(t, s, "color_sample", map[string]interface{}{"session_id": sid, "x": 50, "y": 50}, nil)
	if got := errorType(t, e); got != apperrors.ErrorTypeDuplicateColor {
		t.Fatalf("duplicate: %s", got)
	}
	if e.Data.(ToolErrorData).Details != red.ID {
		t.Errorf("duplicate details: got %q, want %q", e.Data.(ToolErrorData).Details, red.ID)
	}

	sel := drawSelection(t, s, sid)
	var palette struct {
		Colors []struct {
			Hex        string  `json:"hex"`
			Percentage float64 `json:"percentage"`
		} `json:"colors"`
	}
	mustCall(t, s, "color_palette", map[string]interface{}{"session_id": sid, "selection_id": sel}, &palette)
	if len(palette.Colors) != 2 || palette.Colors[0].Hex != "#FF0000" {
		t.Errorf("palette: %+v", palette.Colors)
	}

	mustCall(t, s, "color_remove", map[string]interface{}{"session_id": sid, "color_id": red.ID}, nil)
	mustCall(t, s, "color_sample", map[string]interface{}{"session_id": sid, "x": 50, "y": 50}, &red)
}

func TestHandleToolsCall_Typography(t *testing.T) {
	s := newTestServer(t)
	sid := openSession(t, s)

	var added struct {
		ID             string  `json:"id"`
		LineHeight     float64 `json:"line_height"`
		Classification string  `json:"classification"`
	}
	mustCall(t, s, "typography_add", map[string]interface{}{
		"session_id": sid,
		"sample":     map[string]interface{}{"font_family": "Inter", "font_size": 32, "font_weight": 700},
	}, &added)
	if added.LineHeight != 38.4 || added.Classification != "heading" {
		t.Errorf("typography_add: %+v", added)
	}

	e := call(t, s, "typography_add", map[string]interface{}{
		"session_id": sid, "sample": map[string]interface{}{"font_size": 16, "font_weight": 450},
	}, nil)
	if got := errorType(t, e); got != apperrors.ErrorTypeValidation {
		t.Errorf("bad weight: %s", got)
	}

	// No recognizer is configured in tests.
	sel := drawSelection(t, s, sid)
	e = call(t, s, "typography_extract", map[string]interface{}{"session_id": sid, "selection_id": sel}, nil)
	if got := errorType(t, e); got != apperrors.ErrorTypeValidation {
		t.Errorf("extract without ocr: %s", got)
	}

	mustCall(t, s, "typography_remove", map[string]interface{}{"session_id": sid, "typography_id": added.ID}, nil)
}

func TestHandleToolsCall_Measurements(t *testing.T) {
	s := newTestServer(t)
	sid := openSession(t, s)

	var first struct {
		Pending []interface{} `json:"pending"`
	}
	mustCall(t, s, "measure_point", map[string]interface{}{"session_id": sid, "x": 0, "y": 0}, &first)
	if len(first.Pending) != 1 {
		t.Errorf("pending: %+v", first.Pending)
	}
	var second struct {
		Measurement *struct {
			ID       string `json:"id"`
			Distance int    `json:"distance"`
		} `json:"measurement"`
	}
	mustCall(t, s, "measure_point", map[string]interface{}{"session_id": sid, "x": 30, "y": 40}, &second)
	if second.Measurement == nil || second.Measurement.Distance != 50 {
		t.Fatalf("distance: %+v", second.Measurement)
	}

	var settings struct {
		Mode       string  `json:"mode"`
		Constraint string  `json:"constraint"`
		GridSize   float64 `json:"grid_size"`
	}
	mustCall(t, s, "measure_configure", map[string]interface{}{"session_id": sid, "mode": "spacing"}, &settings)
	if settings.Mode != "spacing" || settings.Constraint != "free" || settings.GridSize != 8 {
		t.Errorf("configure keeps unspecified settings: %+v", settings)
	}
	if got := errorType(t, call(t, s, "measure_configure", map[string]interface{}{"session_id": sid, "mode": "angles"}, nil)); got != apperrors.ErrorTypeValidation {
		t.Errorf("bad mode: %s", got)
	}

	mustCall(t, s, "measure_point", map[string]interface{}{"session_id": sid, "x": 10, "y": 10}, nil)
	if got := errorType(t, call(t, s, "measure_complete", map[string]interface{}{"session_id": sid}, nil)); got != apperrors.ErrorTypeValidation {
		t.Errorf("complete with one point: %s", got)
	}
	mustCall(t, s, "measure_point", map[string]interface{}{"session_id": sid, "x": 110, "y": 10}, nil)
	var spacing struct {
		Label string `json:"label"`
		Spans struct {
			Horizontal int `json:"horizontal"`
		} `json:"spans"`
	}
	mustCall(t, s, "measure_complete", map[string]interface{}{"session_id": sid, "label": "gutter"}, &spacing)
	if spacing.Label != "gutter" || spacing.Spans.Horizontal != 100 {
		t.Errorf("spacing: %+v", spacing)
	}

	mustCall(t, s, "measure_point", map[string]interface{}{"session_id": sid, "x": 5, "y": 5}, nil)
	var cancelled map[string]int
	mustCall(t, s, "measure_cancel", map[string]interface{}{"session_id": sid}, &cancelled)
	if cancelled["discarded"] != 1 {
		t.Errorf("cancel: %+v", cancelled)
	}

	mustCall(t, s, "measure_remove", map[string]interface{}{"session_id": sid, "measurement_id": second.Measurement.ID}, nil)
}

func TestHandleToolsCall_ExportAndOverlay(t *testing.T) {
	s := newTestServer(t)
	sid := openSession(t, s)
	mustCall(t, s, "color_sample", map[string]interface{}{"session_id": sid, "x": 10, "y": 10}, nil)

	var res struct {
		Format   string `json:"format"`
		Filename string `json:"filename"`
		MimeType string `json:"mime_type"`
		Bytes    int    `json:"bytes"`
		Content  string `json:"content"`
	}
	mustCall(t, s, "spec_export", map[string]interface{}{"session_id": sid, "format": "css"}, &res)
	if res.Filename != "acme-two-tone-2024-05-01T12-00-00Z.css" || res.MimeType != "text/css" {
		t.Errorf("export: %s %s", res.Filename, res.MimeType)
	}
	if !strings.Contains(res.Content, "--color-1: #FF0000;") || res.Bytes != len(res.Content) {
		t.Errorf("css content:\n%s", res.Content)
	}

	mustCall(t, s, "spec_export", map[string]interface{}{
		"session_id": sid, "format": "json", "include": []string{"metadata"},
	}, &res)
	if strings.Contains(res.Content, `"colors"`) || !strings.Contains(res.Content, `"metadata"`) {
		t.Errorf("filtered json:\n%s", res.Content)
	}

	if got := errorType(t, call(t, s, "spec_export", map[string]interface{}{"session_id": sid, "format": "pptx"}, nil)); got != apperrors.ErrorTypeValidation {
		t.Errorf("bad format: %s", got)
	}

	var overlay struct {
		Width   int    `json:"width"`
		DataURL string `json:"data_url"`
	}
	mustCall(t, s, "overlay_render", map[string]interface{}{"session_id": sid, "show_grid": true}, &overlay)
	if overlay.Width != 200 || !strings.HasPrefix(overlay.DataURL, "data:image/png;base64,") {
		t.Errorf("overlay: width %d", overlay.Width)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := newTestServer(t)
	sid := openSession(t, s)
	sel := drawSelection(t, s, sid)

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
		want apperrors.ErrorType
	}{
		{"unknown tool", "image_load", nil, apperrors.ErrorTypeNotFound},
		{"missing session id", "session_state", nil, apperrors.ErrorTypeValidation},
		{"unknown session", "session_state", map[string]interface{}{"session_id": "nope"}, apperrors.ErrorTypeNotFound},
		{"unknown argument", "session_state", map[string]interface{}{"session_id": sid, "path": "/x"}, apperrors.ErrorTypeValidation},
		{"wrong argument type", "color_sample", map[string]interface{}{"session_id": sid, "x": "ten", "y": 1}, apperrors.ErrorTypeValidation},
		{"bad phase", "selection_pointer", map[string]interface{}{"session_id": sid, "phase": "hover", "x": 1, "y": 1, "surface": surface}, apperrors.ErrorTypeValidation},
		{"missing surface", "selection_pointer", map[string]interface{}{"session_id": sid, "phase": "down", "x": 1, "y": 1}, apperrors.ErrorTypeGeometry},
		{"bad crop scale", "selection_crop", map[string]interface{}{"session_id": sid, "selection_id": sel, "scale": 5}, apperrors.ErrorTypeValidation},
		{"empty image", "session_set_image", map[string]interface{}{"session_id": sid, "image_url": " "}, apperrors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorType(t, call(t, s, tt.tool, tt.args, nil)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHandleToolsCall_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	sid := openSession(t, s)

	var st struct {
		ImageURL string `json:"image_url"`
		FileName string `json:"file_name"`
	}
	other := createTestImageFile(t)
	mustCall(t, s, "session_set_image", map[string]interface{}{"session_id": sid, "image_url": other}, &st)
	if st.ImageURL != other {
		t.Errorf("image_url: %s", st.ImageURL)
	}

	mustCall(t, s, "session_close", map[string]interface{}{"session_id": sid}, nil)
	if got := errorType(t, call(t, s, "session_state", map[string]interface{}{"session_id": sid}, nil)); got != apperrors.ErrorTypeNotFound {
		t.Errorf("state after close: %s", got)
	}
}
