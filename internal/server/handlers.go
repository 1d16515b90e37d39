package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/design-spec-mcp/internal/assets"
	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/export"
	"github.com/ironsheep/design-spec-mcp/internal/geometry"
	"github.com/ironsheep/design-spec-mcp/internal/imaging"
	"github.com/ironsheep/design-spec-mcp/internal/logger"
	"github.com/ironsheep/design-spec-mcp/internal/measure"
	"github.com/ironsheep/design-spec-mcp/internal/session"
	"github.com/ironsheep/design-spec-mcp/internal/typography"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "session_open", "color_sample").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// ToolErrorCode is the JSON-RPC code of every failed tool call.
const ToolErrorCode = -32000

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool failures return code -32000 with data {type, message, details} taken
// from the *AppError, so clients can show a short notice and carry on.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		data := toolError(err)
		logger.WithFields(map[string]interface{}{
			"tool": params.Name,
			"type": data.Type,
		}).WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, ToolErrorCode, data.Message, data)
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// ToolErrorData is the error payload of a failed tool call.
type ToolErrorData struct {
	Type    apperrors.ErrorType `json:"type"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
}

func toolError(err error) ToolErrorData {
	if appErr, ok := apperrors.As(err); ok {
		return ToolErrorData{Type: appErr.Type, Message: appErr.Message, Details: appErr.Details}
	}
	return ToolErrorData{Type: apperrors.ErrorTypeValidation, Message: err.Error()}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Sessions
	case "session_open":
		return s.handleSessionOpen(ctx, args)
	case "session_set_image":
		return s.handleSessionSetImage(ctx, args)
	case "session_state":
		return s.handleSessionState(args)
	case "session_close":
		return s.handleSessionClose(args)

	// Selections
	case "selection_pointer":
		return s.handleSelectionPointer(args)
	case "selection_rename":
		return s.handleSelectionRename(args)
	case "selection_delete":
		return s.handleSelectionDelete(args)
	case "selection_crop":
		return s.handleSelectionCrop(ctx, args)

	// Colors
	case "color_sample":
		return s.handleColorSample(ctx, args)
	case "color_remove":
		return s.handleColorRemove(args)
	case "color_palette":
		return s.handleColorPalette(ctx, args)

	// Typography
	case "typography_add":
		return s.handleTypographyAdd(args)
	case "typography_extract":
		return s.handleTypographyExtract(ctx, args)
	case "typography_remove":
		return s.handleTypographyRemove(args)

	// Measurements
	case "measure_configure":
		return s.handleMeasureConfigure(args)
	case "measure_point":
		return s.handleMeasurePoint(args)
	case "measure_complete":
		return s.handleMeasureComplete(args)
	case "measure_cancel":
		return s.handleMeasureCancel(args)
	case "measure_remove":
		return s.handleMeasureRemove(args)

	// Export
	case "spec_export":
		return s.handleSpecExport(args)
	case "overlay_render":
		return s.handleOverlayRender(ctx, args)

	// Assets
	case "asset_list":
		return s.assets.List(ctx)
	case "asset_delete":
		return s.handleAssetDelete(ctx, args)

	default:
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("unknown tool: %s", name), nil)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decode unmarshals tool arguments, rejecting unknown fields.
func decode(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("invalid arguments: %v", err), err)
	}
	return nil
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

func (s *Server) session(id string) (*session.Session, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("session_id is required", nil)
	}
	return s.sessions.Get(id)
}

// done is the result of tools that only change state.
type done struct {
	OK bool   `json:"ok"`
	ID string `json:"id,omitempty"`
}

// === Session Handlers ===

type sessionOpenArgs struct {
	ImageURL    string `json:"image_url"`
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	ProjectName string `json:"project_name"`
}

func (s *Server) handleSessionOpen(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sessionOpenArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Open(ctx, session.OpenRequest{
		ImageURL:    a.ImageURL,
		FileID:      a.FileID,
		FileName:    a.FileName,
		ProjectName: a.ProjectName,
	})
	if err != nil {
		return nil, err
	}
	return s.sessionState(sess)
}

// sessionState returns the state and warns the client when the image cannot
// be sampled.
func (s *Server) sessionState(sess *session.Session) (*session.State, error) {
	st, err := sess.State()
	if err != nil {
		return nil, err
	}
	if !st.ColorMode.Enabled {
		s.notify("warning", map[string]string{
			"session_id": st.ID,
			"message":    "color sampling disabled: " + st.ColorMode.Reason,
		})
	}
	return st, nil
}

type sessionSetImageArgs struct {
	SessionID string `json:"session_id"`
	ImageURL  string `json:"image_url"`
}

func (s *Server) handleSessionSetImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sessionSetImageArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.ChangeImage(ctx, a.ImageURL); err != nil {
		return nil, err
	}
	return s.sessionState(sess)
}

func (s *Server) handleSessionState(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.State()
}

func (s *Server) handleSessionClose(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := s.sessions.Close(a.SessionID); err != nil {
		return nil, err
	}
	return done{OK: true, ID: a.SessionID}, nil
}

// === Selection Handlers ===

type selectionPointerArgs struct {
	SessionID string           `json:"session_id"`
	Phase     session.Phase    `json:"phase"`
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
	Surface   geometry.Surface `json:"surface"`
}

func (s *Server) handleSelectionPointer(args json.RawMessage) (interface{}, error) {
	var a selectionPointerArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.Pointer(a.Phase, geometry.Point{X: a.X, Y: a.Y}, a.Surface)
}

type selectionArgs struct {
	SessionID   string `json:"session_id"`
	SelectionID string `json:"selection_id"`
}

type selectionRenameArgs struct {
	SessionID   string `json:"session_id"`
	SelectionID string `json:"selection_id"`
	Name        string `json:"name"`
	Format      string `json:"format"`
}

func (s *Server) handleSelectionRename(args json.RawMessage) (interface{}, error) {
	var a selectionRenameArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.RenameSelection(a.SelectionID, a.Name, a.Format)
}

func (s *Server) handleSelectionDelete(args json.RawMessage) (interface{}, error) {
	var a selectionArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.DeleteSelection(a.SelectionID); err != nil {
		return nil, err
	}
	return done{OK: true, ID: a.SelectionID}, nil
}

type selectionCropArgs struct {
	SessionID   string   `json:"session_id"`
	SelectionID string   `json:"selection_id"`
	Scale       float64  `json:"scale"`
	Format      string   `json:"format"`
	Quality     *float64 `json:"quality"`
	Save        bool     `json:"save"`
}

type cropResult struct {
	*imaging.CropResult
	SelectionID string        `json:"selection_id"`
	Name        string        `json:"name"`
	Asset       *assets.Asset `json:"asset,omitempty"`
}

func (s *Server) handleSelectionCrop(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a selectionCropArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	res, sel, err := sess.CropSelection(ctx, a.SelectionID, imaging.CropOptions{
		Scale:   a.Scale,
		Format:  a.Format,
		Quality: a.Quality,
	})
	if err != nil {
		return nil, err
	}

	out := cropResult{CropResult: res, SelectionID: sel.ID, Name: sel.Name}
	if a.Save {
		asset := assets.FromCrop(assets.DefaultName(sel.Name, sel.ID), res)
		asset.SessionID = sess.ID()
		saved, err := s.assets.Create(ctx, asset)
		if err != nil {
			return nil, err
		}
		out.Asset = &saved
	}
	return out, nil
}

// === Color Handlers ===

type pointArgs struct {
	SessionID string            `json:"session_id"`
	X         float64           `json:"x"`
	Y         float64           `json:"y"`
	Surface   *geometry.Surface `json:"surface"`
}

func (s *Server) handleColorSample(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.SampleColor(ctx, geometry.Point{X: a.X, Y: a.Y}, a.Surface)
}

type colorRemoveArgs struct {
	SessionID string `json:"session_id"`
	ColorID   string `json:"color_id"`
}

func (s *Server) handleColorRemove(args json.RawMessage) (interface{}, error) {
	var a colorRemoveArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RemoveColor(a.ColorID); err != nil {
		return nil, err
	}
	return done{OK: true, ID: a.ColorID}, nil
}

type colorPaletteArgs struct {
	SessionID   string `json:"session_id"`
	SelectionID string `json:"selection_id"`
	Count       int    `json:"count"`
}

func (s *Server) handleColorPalette(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a colorPaletteArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	suggestions, err := sess.Palette(ctx, a.SelectionID, a.Count)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"colors": suggestions}, nil
}

// === Typography Handlers ===

type typographyAddArgs struct {
	SessionID string            `json:"session_id"`
	Sample    typography.Sample `json:"sample"`
}

func (s *Server) handleTypographyAdd(args json.RawMessage) (interface{}, error) {
	var a typographyAddArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.AddTypography(a.Sample)
}

func (s *Server) handleTypographyExtract(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a selectionArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.ExtractTypography(ctx, a.SelectionID)
}

type typographyRemoveArgs struct {
	SessionID    string `json:"session_id"`
	TypographyID string `json:"typography_id"`
}

func (s *Server) handleTypographyRemove(args json.RawMessage) (interface{}, error) {
	var a typographyRemoveArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RemoveTypography(a.TypographyID); err != nil {
		return nil, err
	}
	return done{OK: true, ID: a.TypographyID}, nil
}

// === Measurement Handlers ===

type measureConfigureArgs struct {
	SessionID   string   `json:"session_id"`
	Mode        *string  `json:"mode"`
	Constraint  *string  `json:"constraint"`
	GridEnabled *bool    `json:"grid_enabled"`
	GridSize    *float64 `json:"grid_size"`
}

// handleMeasureConfigure changes only the settings that are present.
func (s *Server) handleMeasureConfigure(args json.RawMessage) (interface{}, error) {
	var a measureConfigureArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	state, err := sess.State()
	if err != nil {
		return nil, err
	}

	settings := state.MeasureSettings
	if a.Mode != nil {
		if settings.Mode, err = measure.ParseMode(*a.Mode); err != nil {
			return nil, apperrors.NewValidationError(err.Error(), err)
		}
	}
	if a.Constraint != nil {
		if settings.Constraint, err = measure.ParseConstraint(*a.Constraint); err != nil {
			return nil, apperrors.NewValidationError(err.Error(), err)
		}
	}
	if a.GridEnabled != nil {
		settings.GridEnabled = *a.GridEnabled
	}
	if a.GridSize != nil {
		settings.GridSize = *a.GridSize
	}
	return sess.ConfigureMeasure(settings)
}

func (s *Server) handleMeasurePoint(args json.RawMessage) (interface{}, error) {
	var a pointArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.MeasurePoint(geometry.Point{X: a.X, Y: a.Y}, a.Surface)
}

type measureCompleteArgs struct {
	SessionID string `json:"session_id"`
	Label     string `json:"label"`
}

func (s *Server) handleMeasureComplete(args json.RawMessage) (interface{}, error) {
	var a measureCompleteArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.CompleteMeasure(a.Label)
}

func (s *Server) handleMeasureCancel(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	n, err := sess.CancelMeasure()
	if err != nil {
		return nil, err
	}
	return map[string]int{"discarded": n}, nil
}

type measureRemoveArgs struct {
	SessionID     string `json:"session_id"`
	MeasurementID string `json:"measurement_id"`
}

func (s *Server) handleMeasureRemove(args json.RawMessage) (interface{}, error) {
	var a measureRemoveArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RemoveMeasurement(a.MeasurementID); err != nil {
		return nil, err
	}
	return done{OK: true, ID: a.MeasurementID}, nil
}

// === Export Handlers ===

type specExportArgs struct {
	SessionID string   `json:"session_id"`
	Format    string   `json:"format"`
	Include   []string `json:"include"`
	Name      string   `json:"name"`
}

type exportResult struct {
	Format   export.Format `json:"format"`
	Filename string        `json:"filename"`
	MimeType string        `json:"mime_type"`
	Bytes    int           `json:"bytes"`
	Content  string        `json:"content"`
}

func (s *Server) handleSpecExport(args json.RawMessage) (interface{}, error) {
	var a specExportArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	f, err := export.ParseFormat(a.Format)
	if err != nil {
		return nil, err
	}
	inc, err := export.ParseInclude(a.Include)
	if err != nil {
		return nil, err
	}
	res, err := sess.Export(f, inc, a.Name)
	if err != nil {
		return nil, err
	}
	return exportResult{
		Format:   res.Format,
		Filename: res.Filename,
		MimeType: res.MimeType,
		Bytes:    len(res.Data),
		Content:  string(res.Data),
	}, nil
}

type overlayArgs struct {
	SessionID string `json:"session_id"`
	session.OverlayOptions
}

func (s *Server) handleOverlayRender(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a overlayArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.Overlay(ctx, a.OverlayOptions)
}

// === Asset Handlers ===

type assetDeleteArgs struct {
	AssetID string `json:"asset_id"`
}

func (s *Server) handleAssetDelete(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a assetDeleteArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := s.assets.Delete(ctx, a.AssetID); err != nil {
		return nil, err
	}
	return done{OK: true, ID: a.AssetID}, nil
}
