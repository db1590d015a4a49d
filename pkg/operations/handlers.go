// Package operations implements the host-side operation handlers run by the
// batch executor, and the query methods served next to them.
// All values are in host units: feet and radians.
package operations

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/cadbridge/pkg/adapters/memory"
	"github.com/aretw0/cadbridge/pkg/batch"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/aretw0/cadbridge/pkg/units"
)

// Item kinds.
const (
	KindSetParameter    = "set_parameter"
	KindMoveElement     = "move_element"
	KindRotateElement   = "rotate_element"
	KindCopyElement     = "copy_element"
	KindCreateTag       = "create_tag"
	KindCreateDimension = "create_dimension"
)

// BatchMethod pairs a batch method with the kind its items default to.
type BatchMethod struct {
	Method string
	Kind   string
}

// BatchMethods lists every batch method. execute_batch has no default kind:
// each of its items names its own.
var BatchMethods = []BatchMethod{
	{Method: "set_parameters", Kind: KindSetParameter},
	{Method: "move_elements", Kind: KindMoveElement},
	{Method: "rotate_elements", Kind: KindRotateElement},
	{Method: "copy_elements", Kind: KindCopyElement},
	{Method: "create_tags", Kind: KindCreateTag},
	{Method: "create_dimensions", Kind: KindCreateDimension},
	{Method: "execute_batch", Kind: ""},
}

// Handlers runs operations against a document.
type Handlers struct {
	doc *memory.Document
}

// NewHandlers creates handlers for doc.
func NewHandlers(doc *memory.Document) *Handlers {
	return &Handlers{doc: doc}
}

// Register adds every operation kind to reg.
func (h *Handlers) Register(reg *batch.Registry) {
	reg.Register(KindSetParameter, h.SetParameter)
	reg.Register(KindMoveElement, h.MoveElement)
	reg.Register(KindRotateElement, h.RotateElement)
	reg.Register(KindCopyElement, h.CopyElement)
	reg.Register(KindCreateTag, h.CreateTag)
	reg.Register(KindCreateDimension, h.CreateDimension, h.ApplyTextOverride)
}

type setParameterParams struct {
	ElementID int64  `mapstructure:"element_id"`
	Name      string `mapstructure:"name"`
	Value     any    `mapstructure:"value"`
}

// SetParameterResult is the value of a set_parameter item.
type SetParameterResult struct {
	ElementID int64  `json:"element_id"`
	Name      string `json:"name"`
	Value     any    `json:"value"`
}

// SetParameter writes one parameter value.
func (h *Handlers) SetParameter(ctx context.Context, spec domain.OperationSpec) (any, error) {
	var p setParameterParams
	if err := decode(spec.Params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, required("name")
	}
	if err := h.doc.SetParameter(p.ElementID, p.Name, p.Value); err != nil {
		return nil, err
	}
	e, err := h.doc.Element(p.ElementID)
	if err != nil {
		return nil, err
	}
	return SetParameterResult{ElementID: p.ElementID, Name: p.Name, Value: e.Parameters[p.Name].Value}, nil
}

type moveParams struct {
	ElementID   int64       `mapstructure:"element_id"`
	Translation units.Point `mapstructure:"translation"`
}

// PlacementResult is the value of move and rotate items.
type PlacementResult struct {
	ElementID int64       `json:"element_id"`
	Location  units.Point `json:"location"`
	Rotation  *float64    `json:"rotation,omitempty"`
}

// MoveElement translates an element.
func (h *Handlers) MoveElement(ctx context.Context, spec domain.OperationSpec) (any, error) {
	var p moveParams
	if err := decode(spec.Params, &p); err != nil {
		return nil, err
	}
	e, err := h.doc.Move(p.ElementID, p.Translation)
	if err != nil {
		return nil, err
	}
	return PlacementResult{ElementID: e.ID, Location: e.Location}, nil
}

type rotateParams struct {
	ElementID int64       `mapstructure:"element_id"`
	Angle     float64     `mapstructure:"angle"`
	Center    units.Point `mapstructure:"center"`
}

// RotateElement turns an element about a vertical axis through center.
func (h *Handlers) RotateElement(ctx context.Context, spec domain.OperationSpec) (any, error) {
	var p rotateParams
	if err := decode(spec.Params, &p); err != nil {
		return nil, err
	}
	e, err := h.doc.Rotate(p.ElementID, p.Angle, p.Center)
	if err != nil {
		return nil, err
	}
	rotation := e.Rotation
	return PlacementResult{ElementID: e.ID, Location: e.Location, Rotation: &rotation}, nil
}

type copyParams struct {
	ElementID   int64       `mapstructure:"element_id"`
	Translation units.Point `mapstructure:"translation"`
	Count       int         `mapstructure:"count"`
}

// CopyResult is the value of a copy_element item.
type CopyResult struct {
	SourceID int64   `json:"source_id"`
	NewIDs   []int64 `json:"new_ids"`
}

// CopyElement places count copies of an element. Count defaults to 1.
func (h *Handlers) CopyElement(ctx context.Context, spec domain.OperationSpec) (any, error) {
	p := copyParams{Count: 1}
	if err := decode(spec.Params, &p); err != nil {
		return nil, err
	}
	ids, err := h.doc.Copy(p.ElementID, p.Translation, p.Count)
	if err != nil {
		return nil, err
	}
	return CopyResult{SourceID: p.ElementID, NewIDs: ids}, nil
}

type tagParams struct {
	ElementID int64       `mapstructure:"element_id"`
	TagType   string      `mapstructure:"tag_type"`
	Offset    units.Point `mapstructure:"offset"`
}

// TagResult is the value of a create_tag item.
type TagResult struct {
	TagID     int64 `json:"tag_id"`
	ElementID int64 `json:"element_id"`
}

// CreateTag tags an element.
func (h *Handlers) CreateTag(ctx context.Context, spec domain.OperationSpec) (any, error) {
	var p tagParams
	if err := decode(spec.Params, &p); err != nil {
		return nil, err
	}
	tag, err := h.doc.CreateTag(p.ElementID, p.TagType, p.Offset)
	if err != nil {
		return nil, err
	}
	return TagResult{TagID: tag.ID, ElementID: p.ElementID}, nil
}

type dimensionParams struct {
	Points       []units.Point `mapstructure:"points"`
	TextOverride string        `mapstructure:"text_override"`
}

// DimensionResult is the value of a create_dimension item.
type DimensionResult struct {
	DimensionID int64            `json:"dimension_id"`
	Segments    []memory.Segment `json:"segments"`
}

// CreateDimension measures the spans between consecutive points.
func (h *Handlers) CreateDimension(ctx context.Context, spec domain.OperationSpec) (any, error) {
	var p dimensionParams
	if err := decode(spec.Params, &p); err != nil {
		return nil, err
	}
	dim, err := h.doc.CreateDimension(p.Points)
	if err != nil {
		return nil, err
	}
	return DimensionResult{DimensionID: dim.ID, Segments: dim.Segments}, nil
}

// ApplyTextOverride is the post step of create_dimension: it applies the
// item's text_override to every segment of the new dimension.
// Override text must fit on one line.
func (h *Handlers) ApplyTextOverride(ctx context.Context, spec domain.OperationSpec, value any) (any, error) {
	res, ok := value.(DimensionResult)
	if !ok {
		return nil, fmt.Errorf("unexpected dimension value %T", value)
	}
	var p dimensionParams
	if err := decode(spec.Params, &p); err != nil {
		return nil, err
	}
	if p.TextOverride == "" {
		return res, nil
	}
	if strings.ContainsAny(p.TextOverride, "\r\n") {
		return nil, fmt.Errorf("%w: text_override must be a single line", domain.ErrInvalidArgument)
	}
	dim, err := h.doc.OverrideSegments(res.DimensionID, p.TextOverride)
	if err != nil {
		return nil, err
	}
	res.Segments = dim.Segments
	return res, nil
}
