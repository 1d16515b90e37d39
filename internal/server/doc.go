// Package server implements the MCP (Model Context Protocol) server for
// design-spec extraction.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Tools
//
// Every inspection happens inside a session opened on one image. The client
// plays the part of the viewport: it reports pointer events and the rectangle
// the image is drawn in, and gets bitmaps and files back.
//
// Sessions:
//   - session_open, session_set_image, session_state, session_close
//
// Selections:
//   - selection_pointer: down/move/up events driving draw, move and resize
//   - selection_rename, selection_delete
//   - selection_crop: PNG, JPEG or WebP crop at 0.5x to 3x, optionally saved
//     as an asset (unnamed selections are saved as selection-<id>)
//
// Colors:
//   - color_sample: pick a pixel into the palette
//   - color_remove
//   - color_palette: dominant colors under a selection
//
// Typography:
//   - typography_add, typography_extract (OCR), typography_remove
//
// Measurements:
//   - measure_configure, measure_point, measure_complete, measure_cancel,
//     measure_remove
//
// Output:
//   - spec_export: json, css, tokens, html or markdown
//   - overlay_render: annotated preview
//   - asset_list, asset_delete
//
// # Error Handling
//
// Tool failures return code -32000 and a data object {type, message,
// details}. type is one of the internal/errors kinds; a duplicate_color
// error carries the id of the existing sample in details. When an image
// opens but cannot be sampled the server also sends a notifications/message
// warning.
//
// # Usage
//
//	srv := server.New(manager, store, version)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
