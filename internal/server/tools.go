package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The decoded image is cached for later analyses.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_capture_year",
			Description: "Read the capture year printed on a satellite image (for example an \"Imagery 2019\" attribution) using OCR.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},

		// Land Cover
		{
			Name:        "landcover_labels",
			Description: "List the land-cover classes in model output order with their critical-change groups (forest, urban, water).",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "landcover_classify_image",
			Description: "Classify an image tile by tile and return the share of each land-cover class plus confidence statistics.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name: "landcover_detect_changes",
			Description: "Compare two satellite images of the same area. Returns per-class before/after percentages, " +
				"the changed share of the area and the deforestation, urbanization and water change percentages. " +
				"The after image is resized to the before image when their sizes differ.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"before_path": pathProperty("Absolute path to the earlier image"),
					"after_path":  pathProperty("Absolute path to the later image"),
					"before_year": map[string]interface{}{
						"type":        "integer",
						"description": "Capture year of the earlier image. Read by OCR when omitted and OCR is enabled",
					},
					"after_year": map[string]interface{}{
						"type":        "integer",
						"description": "Capture year of the later image. Read by OCR when omitted and OCR is enabled",
					},
					"include_mask": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the cleaned change mask as a base64 PNG. Default false",
						"default":     false,
					},
				},
				"required": []string{"before_path", "after_path"},
			},
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
