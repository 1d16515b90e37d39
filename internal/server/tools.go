package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func enum(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "enum": values, "description": description}
}

var sessionIDProp = prop("string", "Session id returned by session_open")

// surfaceProp describes where the image is drawn on screen. Coordinates that
// come with a surface are screen pixels; without one they are image pixels.
var surfaceProp = object(map[string]interface{}{
	"natural": object(map[string]interface{}{
		"width":  prop("number", "Natural image width in pixels"),
		"height": prop("number", "Natural image height in pixels"),
	}, "width", "height"),
	"rendered": object(map[string]interface{}{
		"x":      prop("number", "Left edge of the drawn image on screen"),
		"y":      prop("number", "Top edge of the drawn image on screen"),
		"width":  prop("number", "Drawn width on screen"),
		"height": prop("number", "Drawn height on screen"),
	}, "x", "y", "width", "height"),
}, "natural", "rendered")

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Sessions
		{
			Name:        "session_open",
			Description: "Open an inspection session on an image (file path, http(s) URL or data URL). The image is drawn once; if its pixels cannot be read the session opens with color sampling disabled and says why.",
			InputSchema: object(map[string]interface{}{
				"image_url":    prop("string", "Image location"),
				"file_id":      prop("string", "Optional id of the design file the image belongs to"),
				"file_name":    prop("string", "Display name used in exports. Defaults to the last path segment of image_url"),
				"project_name": prop("string", "Project name used in export file names"),
			}, "image_url"),
		},
		{
			Name:        "session_set_image",
			Description: "Point the session at a different image. Collections are kept; results still in flight for the old image are dropped.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
				"image_url":  prop("string", "New image location"),
			}, "session_id", "image_url"),
		},
		{
			Name:        "session_state",
			Description: "Return everything collected in a session: selections, colors, typography, measurements, pending points and color mode.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
			}, "session_id"),
		},
		{
			Name:        "session_close",
			Description: "Close a session and release its decoded image.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
			}, "session_id"),
		},

		// Selections
		{
			Name:        "selection_pointer",
			Description: "Feed a pointer event to the selection editor. down on a handle resizes, inside a selection moves, elsewhere starts drawing. up commits.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
				"phase":      enum("Pointer event kind", "down", "move", "up"),
				"x":          prop("number", "Screen X"),
				"y":          prop("number", "Screen Y"),
				"surface":    surfaceProp,
			}, "session_id", "phase", "x", "y", "surface"),
		},
		{
			Name:        "selection_rename",
			Description: "Set the name and export format of a selection.",
			InputSchema: object(map[string]interface{}{
				"session_id":   sessionIDProp,
				"selection_id": prop("string", "Selection id"),
				"name":         prop("string", "New name"),
				"format":       enum("Export format", "png", "jpeg", "webp"),
			}, "session_id", "selection_id", "name"),
		},
		{
			Name:        "selection_delete",
			Description: "Delete a selection.",
			InputSchema: object(map[string]interface{}{
				"session_id":   sessionIDProp,
				"selection_id": prop("string", "Selection id"),
			}, "session_id", "selection_id"),
		},
		{
			Name:        "selection_crop",
			Description: "Export the pixels under a selection as a data URL. With save=true the crop is also stored as an asset.",
			InputSchema: object(map[string]interface{}{
				"session_id":   sessionIDProp,
				"selection_id": prop("string", "Selection id"),
				"scale":        map[string]interface{}{"type": "number", "enum": []float64{0.5, 1, 2, 3}, "description": "Output scale. Default 1"},
				"format":       enum("Output format. Defaults to the selection's format", "png", "jpeg", "webp"),
				"quality":      prop("number", "JPEG or WebP quality between 0 and 1. Default 0.92"),
				"save":         prop("boolean", "Store the crop as an asset"),
			}, "session_id", "selection_id"),
		},

		// Colors
		{
			Name:        "color_sample",
			Description: "Sample the pixel at a point and add it to the palette with hex, RGB, HSL, brightness and WCAG contrast. Near duplicates are rejected with the id of the existing sample.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
				"x":          prop("number", "X coordinate"),
				"y":          prop("number", "Y coordinate"),
				"surface":    surfaceProp,
			}, "session_id", "x", "y"),
		},
		{
			Name:        "color_remove",
			Description: "Remove a color from the palette.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
				"color_id":   prop("string", "Color sample id"),
			}, "session_id", "color_id"),
		},
		{
			Name:        "color_palette",
			Description: "Suggest the most common colors under a selection. Suggestions are not added to the palette.",
			InputSchema: object(map[string]interface{}{
				"session_id":   sessionIDProp,
				"selection_id": prop("string", "Selection id"),
				"count":        prop("integer", "Number of colors. Default 5"),
			}, "session_id", "selection_id"),
		},

		// Typography
		{
			Name:        "typography_add",
			Description: "Record a typography sample from explicit values.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
				"sample": object(map[string]interface{}{
					"font_family":     prop("string", "Font family"),
					"font_size":       prop("number", "Font size in px"),
					"font_weight":     prop("integer", "100 to 900. Default 400"),
					"line_height":     prop("number", "Line height in px. Default 1.2 x font size"),
					"letter_spacing":  prop("number", "Letter spacing in px"),
					"color":           prop("string", "Text color as hex"),
					"text_align":      enum("Alignment", "left", "center", "right", "justify"),
					"text_decoration": enum("Decoration", "none", "underline", "line-through", "overline"),
					"text_transform":  enum("Transform", "none", "uppercase", "lowercase", "capitalize"),
					"classification":  enum("Role. Derived from size when omitted", "heading", "body", "caption", "button", "label", "code"),
					"label":           prop("string", "Label"),
					"position": object(map[string]interface{}{
						"x": prop("number", "Image X"),
						"y": prop("number", "Image Y"),
					}),
				}, "font_size"),
			}, "session_id", "sample"),
		},
		{
			Name:        "typography_extract",
			Description: "Read the text under a selection with OCR and record a typography sample derived from it.",
			InputSchema: object(map[string]interface{}{
				"session_id":   sessionIDProp,
				"selection_id": prop("string", "Selection id"),
			}, "session_id", "selection_id"),
		},
		{
			Name:        "typography_remove",
			Description: "Remove a typography sample.",
			InputSchema: object(map[string]interface{}{
				"session_id":    sessionIDProp,
				"typography_id": prop("string", "Typography sample id"),
			}, "session_id", "typography_id"),
		},

		// Measurements
		{
			Name:        "measure_configure",
			Description: "Set the measurement mode, axis constraint and grid snapping.",
			InputSchema: object(map[string]interface{}{
				"session_id":   sessionIDProp,
				"mode":         enum("distance makes two-point rulers, spacing collects points until measure_complete", "distance", "spacing"),
				"constraint":   enum("Axis lock for the second point", "free", "horizontal", "vertical"),
				"grid_enabled": prop("boolean", "Snap points to the grid"),
				"grid_size":    prop("number", "Grid size in px"),
			}, "session_id"),
		},
		{
			Name:        "measure_point",
			Description: "Capture a measurement point. In distance mode the second point completes a measurement.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
				"x":          prop("number", "X coordinate"),
				"y":          prop("number", "Y coordinate"),
				"surface":    surfaceProp,
			}, "session_id", "x", "y"),
		},
		{
			Name:        "measure_complete",
			Description: "Finish the pending spacing measurement. Needs at least two points.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
				"label":      prop("string", "Optional label"),
			}, "session_id"),
		},
		{
			Name:        "measure_cancel",
			Description: "Discard pending measurement points.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
			}, "session_id"),
		},
		{
			Name:        "measure_remove",
			Description: "Remove a distance or spacing measurement.",
			InputSchema: object(map[string]interface{}{
				"session_id":     sessionIDProp,
				"measurement_id": prop("string", "Measurement id"),
			}, "session_id", "measurement_id"),
		},

		// Export
		{
			Name:        "spec_export",
			Description: "Export the session as a design specification file. Returns the file name, MIME type and content.",
			InputSchema: object(map[string]interface{}{
				"session_id": sessionIDProp,
				"format":     enum("Output format", "json", "css", "tokens", "html", "markdown"),
				"include": map[string]interface{}{
					"type":        "array",
					"items":       enum("Section", "colors", "typography", "measurements", "metadata", "all"),
					"description": "Sections to include. Default all",
				},
				"name": prop("string", "Base file name. Defaults to the image file name"),
			}, "session_id", "format"),
		},
		{
			Name:        "overlay_render",
			Description: "Render a PNG preview of the image with the grid, selections and measurements drawn on top.",
			InputSchema: object(map[string]interface{}{
				"session_id":        sessionIDProp,
				"show_grid":         prop("boolean", "Draw the measurement grid"),
				"show_selections":   prop("boolean", "Outline selections"),
				"show_measurements": prop("boolean", "Draw measurement lines and pending points"),
				"dim":               prop("boolean", "Darken the image outside selections"),
			}, "session_id"),
		},

		// Assets
		{
			Name:        "asset_list",
			Description: "List saved crops.",
			InputSchema: object(map[string]interface{}{}),
		},
		{
			Name:        "asset_delete",
			Description: "Delete a saved crop.",
			InputSchema: object(map[string]interface{}{
				"asset_id": prop("string", "Asset id"),
			}, "asset_id"),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
