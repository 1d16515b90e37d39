package server

import (
	"context"
	"encoding/json"
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"session_open",
		"session_set_image",
		"session_state",
		"session_close",
		"selection_pointer",
		"selection_rename",
		"selection_delete",
		"selection_crop",
		"color_sample",
		"color_remove",
		"color_palette",
		"typography_add",
		"typography_extract",
		"typography_remove",
		"measure_configure",
		"measure_point",
		"measure_complete",
		"measure_cancel",
		"measure_remove",
		"spec_export",
		"overlay_render",
		"asset_list",
		"asset_delete",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(tools), len(expectedTools))
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}

			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema missing 'properties' map")
			}

			// Every required field must be described.
			required, _ := tool.InputSchema["required"].([]string)
			for _, r := range required {
				if _, ok := props[r]; !ok {
					t.Errorf("required field %q has no property", r)
				}
			}
		})
	}
}

// Every tool that works on a session requires session_id, and the
// dispatcher knows every listed tool.
func TestToolDefinitions_SessionScoped(t *testing.T) {
	s := newTestServer(t)
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			props := tool.InputSchema["properties"].(map[string]interface{})
			if _, scoped := props["session_id"]; scoped {
				required, _ := tool.InputSchema["required"].([]string)
				found := false
				for _, r := range required {
					found = found || r == "session_id"
				}
				if !found {
					t.Error("session_id should be required")
				}
			}

			_, err := s.executeTool(context.Background(), tool.Name, json.RawMessage(`{}`))
			if data := toolError(err); err != nil && data.Message == "unknown tool: "+tool.Name {
				t.Error("tool is listed but not dispatched")
			}
		})
	}
}
