package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/aretw0/cadbridge/pkg/units"
	"github.com/mitchellh/mapstructure"
)

func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type parameterArgs struct {
	ElementID int64  `mapstructure:"element_id"`
	Name      string `mapstructure:"name"`
	Value     any    `mapstructure:"value"`
	Unit      string `mapstructure:"unit"`
}

func convertParameter(item map[string]any) (map[string]any, error) {
	var a parameterArgs
	if err := decodeArgs(item, &a); err != nil {
		return nil, err
	}
	return map[string]any{
		"element_id": a.ElementID,
		"name":       a.Name,
		"value":      units.ToHostValue(a.Value, units.ParseKind(a.Unit)),
	}, nil
}

type moveArgs struct {
	ElementID   int64       `mapstructure:"element_id"`
	Translation units.Point `mapstructure:"translation"`
}

func convertMove(item map[string]any) (map[string]any, error) {
	var a moveArgs
	if err := decodeArgs(item, &a); err != nil {
		return nil, err
	}
	return map[string]any{
		"element_id":  a.ElementID,
		"translation": units.ToHostPoint(a.Translation),
	}, nil
}

type rotateArgs struct {
	ElementID int64       `mapstructure:"element_id"`
	Angle     float64     `mapstructure:"angle"`
	Center    units.Point `mapstructure:"center"`
}

func convertRotate(item map[string]any) (map[string]any, error) {
	var a rotateArgs
	if err := decodeArgs(item, &a); err != nil {
		return nil, err
	}
	return map[string]any{
		"element_id": a.ElementID,
		"angle":      units.ToHostAngle(a.Angle),
		"center":     units.ToHostPoint(a.Center),
	}, nil
}

type copyArgs struct {
	ElementID   int64       `mapstructure:"element_id"`
	Translation units.Point `mapstructure:"translation"`
	Count       int         `mapstructure:"count"`
}

func convertCopy(item map[string]any) (map[string]any, error) {
	a := copyArgs{Count: 1}
	if err := decodeArgs(item, &a); err != nil {
		return nil, err
	}
	return map[string]any{
		"element_id":  a.ElementID,
		"translation": units.ToHostPoint(a.Translation),
		"count":       a.Count,
	}, nil
}

type tagArgs struct {
	ElementID int64       `mapstructure:"element_id"`
	TagType   string      `mapstructure:"tag_type"`
	Offset    units.Point `mapstructure:"offset"`
}

func convertTag(item map[string]any) (map[string]any, error) {
	var a tagArgs
	if err := decodeArgs(item, &a); err != nil {
		return nil, err
	}
	return map[string]any{
		"element_id": a.ElementID,
		"tag_type":   a.TagType,
		"offset":     units.ToHostPoint(a.Offset),
	}, nil
}

type dimensionArgs struct {
	Points       []units.Point `mapstructure:"points"`
	TextOverride string        `mapstructure:"text_override"`
}

func convertDimension(item map[string]any) (map[string]any, error) {
	var a dimensionArgs
	if err := decodeArgs(item, &a); err != nil {
		return nil, err
	}
	points := make([]units.Point, len(a.Points))
	for i, p := range a.Points {
		points[i] = units.ToHostPoint(p)
	}
	out := map[string]any{"points": points}
	if a.TextOverride != "" {
		out["text_override"] = a.TextOverride
	}
	return out, nil
}

// Keys whose values are reported back in caller units.
var (
	pointKeys  = map[string]bool{"location": true, "translation": true, "center": true, "offset": true}
	angleKeys  = map[string]bool{"rotation": true, "angle": true}
	lengthKeys = map[string]bool{"value": true}
)

// present rewrites host values (feet, radians) into caller units.
// lengthScope is true inside dimension segments, where "value" is a length.
func present(v any, lengthScope bool) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			switch {
			case pointKeys[k]:
				t[k] = presentPoint(val)
			case angleKeys[k]:
				if f, ok := val.(float64); ok {
					t[k] = units.FromHostAngle(f)
				}
			case lengthScope && lengthKeys[k]:
				if f, ok := val.(float64); ok {
					t[k] = units.FromHostLength(f)
				}
			case k == "segments":
				t[k] = present(val, true)
			case k == "parameters":
				// Parameter values carry no unit information.
			default:
				t[k] = present(val, false)
			}
		}
		return t
	case []any:
		for i := range t {
			t[i] = present(t[i], lengthScope)
		}
		return t
	default:
		return v
	}
}

func presentPoint(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for _, axis := range []string{"x", "y", "z"} {
		if f, ok := m[axis].(float64); ok {
			m[axis] = units.FromHostLength(f)
		}
	}
	return m
}

// presentJSON converts a host JSON document into caller units, leaving it
// untouched if it cannot be decoded.
func presentJSON(raw json.RawMessage) json.RawMessage {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	out, err := json.MarshalIndent(present(v, false), "", "  ")
	if err != nil {
		return raw
	}
	return out
}

// formatBatch renders a one-line summary followed by the reply in caller units.
func formatBatch(reply domain.BatchReply) (string, error) {
	for i, o := range reply.Results {
		if o.Success {
			reply.Results[i].Value = presentJSON(o.Value)
		}
	}
	data, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode reply: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d items succeeded", reply.Succeeded(), len(reply.Results))
	if failed := reply.Failed(); failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", failed)
	}
	b.WriteString("\n")
	b.Write(data)
	return b.String(), nil
}
