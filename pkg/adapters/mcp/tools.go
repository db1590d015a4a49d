package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// itemConverter turns one tool item (caller units) into a host item (host units).
type itemConverter func(item map[string]any) (map[string]any, error)

type batchTool struct {
	name        string
	description string
	itemSchema  map[string]any
	convert     itemConverter
}

func point2D() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "number"},
			"y": map[string]any{"type": "number"},
		},
	}
}

func point3D() map[string]any {
	p := point2D()
	p["properties"].(map[string]any)["z"] = map[string]any{"type": "number"}
	return p
}

func object(required []string, props map[string]any) map[string]any {
	return map[string]any{"type": "object", "required": required, "properties": props}
}

var elementID = map[string]any{"type": "integer", "description": "Element id"}

func batchTools() []batchTool {
	return []batchTool{
		{
			name:        "set_parameters",
			description: "Set element parameters. Give 'unit' (length, angle, area, volume) to convert a numeric value from mm/degrees; without it the value is sent as is.",
			itemSchema: object([]string{"element_id", "name", "value"}, map[string]any{
				"element_id": elementID,
				"name":       map[string]any{"type": "string"},
				"value":      map[string]any{"description": "New value"},
				"unit":       map[string]any{"type": "string"},
			}),
			convert: convertParameter,
		},
		{
			name:        "move_elements",
			description: "Move elements by a translation in millimeters.",
			itemSchema: object([]string{"element_id", "translation"}, map[string]any{
				"element_id":  elementID,
				"translation": point3D(),
			}),
			convert: convertMove,
		},
		{
			name:        "rotate_elements",
			description: "Rotate elements by an angle in degrees about a vertical axis through center (mm).",
			itemSchema: object([]string{"element_id", "angle"}, map[string]any{
				"element_id": elementID,
				"angle":      map[string]any{"type": "number"},
				"center":     point2D(),
			}),
			convert: convertRotate,
		},
		{
			name:        "copy_elements",
			description: "Copy elements, each copy offset by translation (mm) from the previous one.",
			itemSchema: object([]string{"element_id", "translation"}, map[string]any{
				"element_id":  elementID,
				"translation": point3D(),
				"count":       map[string]any{"type": "integer", "minimum": 1},
			}),
			convert: convertCopy,
		},
		{
			name:        "create_tags",
			description: "Tag elements. The tag is placed at the element location plus offset (mm).",
			itemSchema: object([]string{"element_id", "tag_type"}, map[string]any{
				"element_id": elementID,
				"tag_type":   map[string]any{"type": "string"},
				"offset":     point3D(),
			}),
			convert: convertTag,
		},
		{
			name:        "create_dimensions",
			description: "Create linear dimensions through points (mm). text_override replaces the displayed text of every segment.",
			itemSchema: object([]string{"points"}, map[string]any{
				"points":        map[string]any{"type": "array", "items": point3D(), "minItems": 2},
				"text_override": map[string]any{"type": "string"},
			}),
			convert: convertDimension,
		},
	}
}

func (s *Server) registerTools() {
	for _, bt := range batchTools() {
		tool := mcp.NewTool(bt.name,
			mcp.WithDescription(bt.description+" Items are applied in one transaction; failed items are reported individually."),
			mcp.WithArray("items", mcp.Required(), mcp.Description("Operations to apply"), mcp.Items(bt.itemSchema)),
		)
		s.mcpServer.AddTool(tool, s.batchHandler(bt))
	}

	s.mcpServer.AddTool(mcp.NewTool("get_element",
		mcp.WithDescription("Get one element. Lengths are reported in millimeters and angles in degrees."),
		mcp.WithNumber("element_id", mcp.Required(), mcp.Description("Element id")),
	), s.handleGetElement)

	s.mcpServer.AddTool(mcp.NewTool("list_elements",
		mcp.WithDescription("List elements, optionally filtered by category."),
		mcp.WithString("category", mcp.Description("Category name, e.g. Walls")),
	), s.handleListElements)

	s.mcpServer.AddTool(mcp.NewTool("get_journal",
		mcp.WithDescription("List the most recent committed batches."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries")),
	), s.handleGetJournal)
}

func (s *Server) batchHandler(bt batchTool) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, ok := request.GetArguments()["items"].([]any)
		if !ok {
			return mcp.NewToolResultError("items must be an array of objects"), nil
		}

		// Items that cannot be converted fail in place; the rest still reach the host.
		items := make([]map[string]any, 0, len(raw))
		sent := make([]int, 0, len(raw))
		local := make(map[int]error)
		for i, r := range raw {
			item, ok := r.(map[string]any)
			if !ok {
				local[i] = fmt.Errorf("%w: item must be an object", domain.ErrInvalidArgument)
				continue
			}
			converted, err := bt.convert(item)
			if err != nil {
				local[i] = fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
				continue
			}
			items = append(items, converted)
			sent = append(sent, i)
		}

		reply := domain.BatchReply{Success: true}
		if len(items) > 0 || len(raw) == 0 {
			res, err := s.sender.Send(ctx, bt.name, domain.BatchRequest{Items: items}, s.timeout)
			if err != nil {
				s.logger.Warn("MCP tool failed", "tool", bt.name, "error", err)
				return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", bt.name, err)), nil
			}
			if err := json.Unmarshal(res, &reply); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("unexpected reply from host: %v", err)), nil
			}
			if len(reply.Results) != len(items) {
				return mcp.NewToolResultError(fmt.Sprintf("unexpected reply from host: %d results for %d items",
					len(reply.Results), len(items))), nil
			}
		}
		if len(local) > 0 {
			reply.Results = mergeOutcomes(len(raw), sent, reply.Results, local)
		}

		text, err := formatBatch(reply)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(text), nil
	}
}

// mergeOutcomes places the host outcomes back at their original indices and
// fills the gaps with the local conversion failures.
func mergeOutcomes(n int, sent []int, remote []domain.Outcome, local map[int]error) []domain.Outcome {
	out := make([]domain.Outcome, n)
	for j, o := range remote {
		o.Index = sent[j]
		out[sent[j]] = o
	}
	for i, err := range local {
		out[i] = domain.Failed(i, err)
	}
	return out
}

func (s *Server) query(ctx context.Context, method string, params map[string]any) (json.RawMessage, *mcp.CallToolResult) {
	res, err := s.sender.Send(ctx, method, params, s.timeout)
	if err != nil {
		s.logger.Warn("MCP query failed", "tool", method, "error", err)
		return nil, mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", method, err))
	}
	return res, nil
}

func (s *Server) handleGetElement(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		ElementID int64 `mapstructure:"element_id"`
	}
	if err := decodeArgs(request.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, failed := s.query(ctx, "get_element", map[string]any{"element_id": args.ElementID})
	if failed != nil {
		return failed, nil
	}
	return mcp.NewToolResultText(string(presentJSON(res))), nil
}

func (s *Server) handleListElements(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Category string `mapstructure:"category"`
	}
	if err := decodeArgs(request.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, failed := s.query(ctx, "list_elements", map[string]any{"category": args.Category})
	if failed != nil {
		return failed, nil
	}
	return mcp.NewToolResultText(string(presentJSON(res))), nil
}

func (s *Server) handleGetJournal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Limit int `mapstructure:"limit"`
	}
	if err := decodeArgs(request.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	params := map[string]any{}
	if args.Limit > 0 {
		params["limit"] = args.Limit
	}
	res, failed := s.query(ctx, "get_journal", params)
	if failed != nil {
		return failed, nil
	}
	return mcp.NewToolResultText(string(res)), nil
}
