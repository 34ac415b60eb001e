package server

import (
	"context"
	"encoding/json"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/landcover-change-mcp/internal/analysis"
	"github.com/ironsheep/landcover-change-mcp/internal/imaging"
	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
	"github.com/ironsheep/landcover-change-mcp/internal/ocr"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "landcover_detect_changes").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000
// and the error text as data.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
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

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_capture_year":
		return s.handleCaptureYear(args)

	case "landcover_labels":
		return s.handleLabels()
	case "landcover_classify_image":
		return s.handleClassifyImage(ctx, args)
	case "landcover_detect_changes":
		return s.handleDetectChanges(ctx, args)

	default:
		return nil, errors.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return errors.Wrap(json.Unmarshal(args, v), "invalid arguments")
}

func (s *Server) requireDetector() error {
	if s.detector == nil {
		return errors.Wrap(landcover.ErrModelUnavailable, "no detector configured")
	}
	return nil
}

// === Basic Image Information Handlers ===

type imagePathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

type captureYearResult struct {
	Path string `json:"path"`
	Year int    `json:"year"`
}

func (s *Server) handleCaptureYear(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	year, err := s.readYear(img)
	if err != nil {
		return nil, err
	}
	return &captureYearResult{Path: a.Path, Year: year}, nil
}

func (s *Server) readYear(img image.Image) (int, error) {
	return ocr.ReadCaptureYear(img, s.ocr.Options(img.Bounds()))
}

// === Land Cover Handlers ===

type labelInfo struct {
	Index  int               `json:"index"`
	Name   string            `json:"name"`
	Groups []landcover.Group `json:"groups"`
}

type labelsResult struct {
	Labels []labelInfo `json:"labels"`
}

func (s *Server) handleLabels() (interface{}, error) {
	if err := s.requireDetector(); err != nil {
		return nil, err
	}
	ls := s.detector.Labels()
	out := &labelsResult{Labels: make([]labelInfo, ls.Len())}
	for i, l := range ls.Labels() {
		groups := l.Groups
		if groups == nil {
			groups = []landcover.Group{}
		}
		out.Labels[i] = labelInfo{Index: i, Name: l.Name, Groups: groups}
	}
	return out, nil
}

func (s *Server) handleClassifyImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.requireDetector(); err != nil {
		return nil, err
	}
	c, err := s.detector.ClassifyImage(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	return c.Summary(), nil
}

type detectChangesArgs struct {
	BeforePath  string `json:"before_path"`
	AfterPath   string `json:"after_path"`
	BeforeYear  int    `json:"before_year"`
	AfterYear   int    `json:"after_year"`
	IncludeMask bool   `json:"include_mask"`
}

type detectChangesResult struct {
	BeforePath string `json:"before_path"`
	AfterPath  string `json:"after_path"`
	*analysis.Summary
	Mask *imaging.MaskPNG `json:"change_mask,omitempty"`
}

func (s *Server) handleDetectChanges(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectChangesArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.requireDetector(); err != nil {
		return nil, err
	}

	res, err := s.detector.Detect(ctx, a.BeforePath, a.AfterPath)
	if err != nil {
		return nil, err
	}

	beforeYear, afterYear := a.BeforeYear, a.AfterYear
	if s.ocr.Enabled {
		if beforeYear == 0 {
			beforeYear = s.optionalYear(res.Before.Image, a.BeforePath)
		}
		if afterYear == 0 {
			afterYear = s.optionalYear(res.After.Image, a.AfterPath)
		}
	}
	res.SetYears(beforeYear, afterYear)

	out := &detectChangesResult{
		BeforePath: a.BeforePath,
		AfterPath:  a.AfterPath,
		Summary:    res.Summary(),
	}
	if a.IncludeMask {
		mask, err := imaging.EncodeMaskPNG(res.Change.Mask)
		if err != nil {
			return nil, err
		}
		out.Mask = mask
	}
	return out, nil
}

// optionalYear reads a capture year, returning 0 when OCR finds none or
// fails. Years are annotations and never fail an analysis.
func (s *Server) optionalYear(img image.Image, path string) int {
	year, err := s.readYear(img)
	if err != nil {
		s.logger.Debug("no capture year", zap.String("path", path), zap.Error(err))
		return 0
	}
	return year
}
