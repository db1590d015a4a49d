package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/aretw0/cadbridge/pkg/ports"
	"github.com/aretw0/cadbridge/pkg/units"
	"github.com/google/uuid"
)

var (
	// ErrTransactionActive is returned by Begin while another transaction is open.
	ErrTransactionActive = errors.New("a transaction is already open")
	// ErrNoTransaction is returned when a mutation is attempted outside a transaction.
	ErrNoTransaction = errors.New("modification requires an open transaction")
	// ErrTransactionClosed is returned when a finished transaction or savepoint is used.
	ErrTransactionClosed = errors.New("transaction already finished")
)

// Categories used by elements the document creates itself.
const (
	CategoryTags       = "Tags"
	CategoryDimensions = "Dimensions"
)

// Parameter is a named element value. Values are stored in host units.
type Parameter struct {
	Value    any  `yaml:"value" json:"value"`
	ReadOnly bool `yaml:"read_only" json:"read_only,omitempty"`
}

// Segment is one measured span of a dimension.
type Segment struct {
	Value        float64 `json:"value"`
	TextOverride string  `json:"text_override,omitempty"`
}

// Element is a document element. Lengths are in feet, angles in radians.
type Element struct {
	ID         int64                `yaml:"id" json:"id"`
	UniqueID   string               `yaml:"unique_id" json:"unique_id"`
	Category   string               `yaml:"category" json:"category"`
	Name       string               `yaml:"name" json:"name"`
	Location   units.Point          `yaml:"location" json:"location"`
	Rotation   float64              `yaml:"rotation" json:"rotation"`
	Parameters map[string]Parameter `yaml:"parameters" json:"parameters,omitempty"`
	HostID     int64                `yaml:"host_id" json:"host_id,omitempty"`
	Segments   []Segment            `yaml:"-" json:"segments,omitempty"`
}

func (e Element) clone() Element {
	out := e
	if e.Parameters != nil {
		out.Parameters = make(map[string]Parameter, len(e.Parameters))
		for k, v := range e.Parameters {
			out.Parameters[k] = v
		}
	}
	if e.Segments != nil {
		out.Segments = append([]Segment(nil), e.Segments...)
	}
	return out
}

type snapshot struct {
	elements map[int64]Element
	nextID   int64
}

// Document is an in-memory host document.
// Mutations require an open transaction; queries are always allowed.
// Safe for concurrent use.
type Document struct {
	mu       sync.RWMutex
	elements map[int64]Element
	nextID   int64
	active   *transaction
	revision int
}

// NewDocument creates a document holding the given elements.
// Elements without an ID or UniqueID get one assigned.
func NewDocument(elements ...Element) *Document {
	d := &Document{
		elements: make(map[int64]Element),
		nextID:   1,
	}
	for _, e := range elements {
		if e.ID >= d.nextID {
			d.nextID = e.ID + 1
		}
	}
	for _, e := range elements {
		if e.ID == 0 {
			e.ID = d.allocID()
		}
		if e.UniqueID == "" {
			e.UniqueID = uuid.NewString()
		}
		d.elements[e.ID] = e.clone()
	}
	return d
}

func (d *Document) allocID() int64 {
	id := d.nextID
	d.nextID++
	return id
}

func (d *Document) snapshot() snapshot {
	s := snapshot{elements: make(map[int64]Element, len(d.elements)), nextID: d.nextID}
	for id, e := range d.elements {
		s.elements[id] = e.clone()
	}
	return s
}

func (d *Document) restore(s snapshot) {
	d.elements = s.elements
	d.nextID = s.nextID
}

// Revision counts committed transactions.
func (d *Document) Revision() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// Element returns a copy of the element with the given id.
func (d *Document) Element(id int64) (Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.elements[id]
	if !ok {
		return Element{}, domain.ElementNotFound(id)
	}
	return e.clone(), nil
}

// Elements lists elements ordered by id. An empty category lists all of them.
func (d *Document) Elements(category string) []Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Element, 0, len(d.elements))
	for _, e := range d.elements {
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mutate runs fn under the write lock, inside the open transaction.
func (d *Document) mutate(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return ErrNoTransaction
	}
	return fn()
}

func (d *Document) lookup(id int64) (Element, error) {
	e, ok := d.elements[id]
	if !ok {
		return Element{}, domain.ElementNotFound(id)
	}
	return e, nil
}

// SetParameter changes a writable parameter of an element.
func (d *Document) SetParameter(id int64, name string, value any) error {
	return d.mutate(func() error {
		e, err := d.lookup(id)
		if err != nil {
			return err
		}
		p, ok := e.Parameters[name]
		if !ok {
			return fmt.Errorf("%w: %q on element %d", domain.ErrParameterNotFound, name, id)
		}
		if p.ReadOnly {
			return fmt.Errorf("%w: %q", domain.ErrReadOnly, name)
		}
		value, err = coerce(p.Value, value)
		if err != nil {
			return fmt.Errorf("%w: parameter %q: %v", domain.ErrInvalidArgument, name, err)
		}
		e = e.clone()
		e.Parameters[name] = Parameter{Value: value}
		d.elements[id] = e
		return nil
	})
}

// coerce keeps a parameter's storage type stable: numeric parameters only accept numbers.
func coerce(current, value any) (any, error) {
	if _, numeric := toFloat(current); !numeric {
		return value, nil
	}
	f, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("expected a number, got %T", value)
	}
	return f, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

// Move translates an element.
func (d *Document) Move(id int64, delta units.Point) (Element, error) {
	var moved Element
	err := d.mutate(func() error {
		e, err := d.lookup(id)
		if err != nil {
			return err
		}
		e = e.clone()
		e.Location = units.Point{X: e.Location.X + delta.X, Y: e.Location.Y + delta.Y, Z: e.Location.Z + delta.Z}
		d.elements[id] = e
		moved = e.clone()
		return nil
	})
	return moved, err
}

// Rotate turns an element by angle radians about a vertical axis through center.
func (d *Document) Rotate(id int64, angle float64, center units.Point) (Element, error) {
	var rotated Element
	err := d.mutate(func() error {
		e, err := d.lookup(id)
		if err != nil {
			return err
		}
		sin, cos := math.Sincos(angle)
		dx, dy := e.Location.X-center.X, e.Location.Y-center.Y
		e = e.clone()
		e.Location.X = center.X + dx*cos - dy*sin
		e.Location.Y = center.Y + dx*sin + dy*cos
		e.Rotation = math.Mod(e.Rotation+angle, 2*math.Pi)
		d.elements[id] = e
		rotated = e.clone()
		return nil
	})
	return rotated, err
}

// MaxCopyCount bounds the copies a single Copy may place.
const MaxCopyCount = 10000

// Copy places count copies of an element, each offset by delta from the previous one.
func (d *Document) Copy(id int64, delta units.Point, count int) ([]int64, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be at least 1, got %d", domain.ErrInvalidArgument, count)
	}
	if count > MaxCopyCount {
		return nil, fmt.Errorf("%w: count must be at most %d, got %d", domain.ErrInvalidArgument, MaxCopyCount, count)
	}
	var ids []int64
	err := d.mutate(func() error {
		src, err := d.lookup(id)
		if err != nil {
			return err
		}
		for i := 1; i <= count; i++ {
			c := src.clone()
			c.ID = d.allocID()
			c.UniqueID = uuid.NewString()
			f := float64(i)
			c.Location = units.Point{
				X: src.Location.X + delta.X*f,
				Y: src.Location.Y + delta.Y*f,
				Z: src.Location.Z + delta.Z*f,
			}
			d.elements[c.ID] = c
			ids = append(ids, c.ID)
		}
		return nil
	})
	return ids, err
}

// CreateTag places a tag of tagType next to its host element.
func (d *Document) CreateTag(hostID int64, tagType string, offset units.Point) (Element, error) {
	if tagType == "" {
		return Element{}, fmt.Errorf("%w: tag type is required", domain.ErrInvalidArgument)
	}
	var tag Element
	err := d.mutate(func() error {
		host, err := d.lookup(hostID)
		if err != nil {
			return err
		}
		tag = Element{
			ID:       d.allocID(),
			UniqueID: uuid.NewString(),
			Category: CategoryTags,
			Name:     tagType,
			Location: units.Point{
				X: host.Location.X + offset.X,
				Y: host.Location.Y + offset.Y,
				Z: host.Location.Z + offset.Z,
			},
			HostID: hostID,
		}
		d.elements[tag.ID] = tag
		return nil
	})
	return tag.clone(), err
}

// CreateDimension measures the consecutive spans between points.
func (d *Document) CreateDimension(points []units.Point) (Element, error) {
	if len(points) < 2 {
		return Element{}, fmt.Errorf("%w: a dimension needs at least 2 points, got %d", domain.ErrInvalidArgument, len(points))
	}
	var dim Element
	err := d.mutate(func() error {
		segments := make([]Segment, len(points)-1)
		for i := range segments {
			a, b := points[i], points[i+1]
			segments[i] = Segment{Value: math.Sqrt((b.X-a.X)*(b.X-a.X) + (b.Y-a.Y)*(b.Y-a.Y) + (b.Z-a.Z)*(b.Z-a.Z))}
		}
		dim = Element{
			ID:       d.allocID(),
			UniqueID: uuid.NewString(),
			Category: CategoryDimensions,
			Name:     "Linear Dimension",
			Location: points[0],
			Segments: segments,
		}
		d.elements[dim.ID] = dim
		return nil
	})
	return dim.clone(), err
}

// OverrideSegments sets the display text of every segment of a dimension.
func (d *Document) OverrideSegments(id int64, text string) (Element, error) {
	var dim Element
	err := d.mutate(func() error {
		e, err := d.lookup(id)
		if err != nil {
			return err
		}
		if e.Category != CategoryDimensions {
			return fmt.Errorf("%w: element %d is not a dimension", domain.ErrInvalidArgument, id)
		}
		e = e.clone()
		for i := range e.Segments {
			e.Segments[i].TextOverride = text
		}
		d.elements[id] = e
		dim = e.clone()
		return nil
	})
	return dim, err
}

// Begin opens the document transaction.
func (d *Document) Begin(ctx context.Context, name string) (ports.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionActive, d.active.name)
	}
	tx := &transaction{doc: d, name: name, start: d.snapshot()}
	d.active = tx
	return tx, nil
}

type transaction struct {
	doc   *Document
	name  string
	start snapshot
	done  bool
}

func (tx *transaction) Savepoint(name string) (ports.Savepoint, error) {
	tx.doc.mu.Lock()
	defer tx.doc.mu.Unlock()
	if tx.done {
		return nil, ErrTransactionClosed
	}
	return &savepoint{tx: tx, name: name, mark: tx.doc.snapshot()}, nil
}

func (tx *transaction) Commit(ctx context.Context) error {
	tx.doc.mu.Lock()
	defer tx.doc.mu.Unlock()
	if tx.done {
		return ErrTransactionClosed
	}
	tx.done = true
	tx.doc.active = nil
	tx.doc.revision++
	return nil
}

func (tx *transaction) Rollback(ctx context.Context) error {
	tx.doc.mu.Lock()
	defer tx.doc.mu.Unlock()
	if tx.done {
		return ErrTransactionClosed
	}
	tx.done = true
	tx.doc.restore(tx.start)
	tx.doc.active = nil
	return nil
}

type savepoint struct {
	tx   *transaction
	name string
	mark snapshot
	done bool
}

func (sp *savepoint) finish() error {
	if sp.done || sp.tx.done {
		return ErrTransactionClosed
	}
	sp.done = true
	return nil
}

func (sp *savepoint) Release() error {
	sp.tx.doc.mu.Lock()
	defer sp.tx.doc.mu.Unlock()
	return sp.finish()
}

func (sp *savepoint) RollbackTo() error {
	sp.tx.doc.mu.Lock()
	defer sp.tx.doc.mu.Unlock()
	if err := sp.finish(); err != nil {
		return err
	}
	sp.tx.doc.restore(sp.mark)
	return nil
}
