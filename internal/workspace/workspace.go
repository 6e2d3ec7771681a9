package workspace

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rendis/flowgame/pkg/schema"
)

// Workspace is the learner's mutable diagram for one stage attempt. It owns
// its blocks and edges exclusively and is not safe for concurrent use: the
// front-end's control loop is its only caller.
type Workspace struct {
	palette   map[schema.BlockKind]bool
	exclusive bool
	logger    *slog.Logger

	blocks map[BlockID]*Block
	order  []BlockID
	edges  []*Edge // insertion order; the tail is the next undo target
	keys   map[edgeKey]EdgeID

	nextBlock int
	nextEdge  int
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithExclusiveCells makes placement and moves reject a cell that already
// holds another block.
func WithExclusiveCells() Option {
	return func(w *Workspace) { w.exclusive = true }
}

// WithLogger sets the logger used for rejected commands.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates an empty workspace that accepts blocks of the given kinds.
func New(palette []schema.BlockKind, opts ...Option) *Workspace {
	w := &Workspace{
		palette: make(map[schema.BlockKind]bool, len(palette)),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		blocks:  make(map[BlockID]*Block),
		keys:    make(map[edgeKey]EdgeID),
	}
	for _, k := range palette {
		w.palette[k] = true
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ForStage creates an empty workspace using the stage palette.
func ForStage(stage *schema.Stage, opts ...Option) *Workspace {
	return New(stage.PaletteKinds(), opts...)
}

// PlaceOption sets optional block attributes at placement.
type PlaceOption func(*Block)

// Label sets the block label.
func Label(label string) PlaceOption {
	return func(b *Block) { b.Label = strings.TrimSpace(label) }
}

// Lane sets the block's swimlane tag.
func Lane(lane string) PlaceOption {
	return func(b *Block) { b.Lane = strings.TrimSpace(lane) }
}

// PlaceBlock adds a block and returns its fresh id.
func (w *Workspace) PlaceBlock(kind schema.BlockKind, pos Position, opts ...PlaceOption) (BlockID, error) {
	if !w.palette[kind] {
		w.logger.Debug("placement rejected", slog.String("kind", string(kind)))
		return "", schema.NewErrorf(schema.ErrCodeInvalidKind,
			"block kind %q is not in this stage's palette", kind).
			WithDetails(map[string]any{"kind": string(kind)})
	}
	if w.exclusive {
		if other, ok := w.occupant(pos); ok {
			return "", occupied(pos, other)
		}
	}

	w.nextBlock++
	b := &Block{
		ID:   BlockID("B" + strconv.Itoa(w.nextBlock)),
		Kind: kind,
		Pos:  pos,
	}
	for _, opt := range opts {
		opt(b)
	}
	w.blocks[b.ID] = b
	w.order = append(w.order, b.ID)
	return b.ID, nil
}

// MoveBlock changes a block's position only.
func (w *Workspace) MoveBlock(id BlockID, pos Position) error {
	b, ok := w.blocks[id]
	if !ok {
		return unknownBlock(id)
	}
	if w.exclusive {
		if other, taken := w.occupant(pos); taken && other != id {
			return occupied(pos, other)
		}
	}
	b.Pos = pos
	return nil
}

// RemoveBlock deletes a block and every edge that references it.
func (w *Workspace) RemoveBlock(id BlockID) error {
	if _, ok := w.blocks[id]; !ok {
		return unknownBlock(id)
	}
	delete(w.blocks, id)
	for i, bid := range w.order {
		if bid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}

	kept := w.edges[:0]
	for _, e := range w.edges {
		if e.Source == id || e.Target == id {
			delete(w.keys, keyOf(e.Source, e.Target, e.Condition))
			continue
		}
		kept = append(kept, e)
	}
	w.edges = kept
	return nil
}

// Connect adds a directed edge. A decision source requires a condition.
func (w *Workspace) Connect(source, target BlockID, condition string) (EdgeID, error) {
	src, ok := w.blocks[source]
	if !ok {
		return "", unknownBlock(source)
	}
	if _, ok := w.blocks[target]; !ok {
		return "", unknownBlock(target)
	}
	if source == target {
		return "", schema.NewErrorf(schema.ErrCodeSelfLoop,
			"block %s cannot connect to itself", source).WithSubject(string(source))
	}
	condition = strings.TrimSpace(condition)
	if src.Kind.RequiresCondition() && condition == "" {
		return "", schema.NewErrorf(schema.ErrCodeMissingCondition,
			"edges leaving decision %s need a branch label such as yes or no", source).
			WithSubject(string(source))
	}
	key := keyOf(source, target, condition)
	if existing, dup := w.keys[key]; dup {
		return "", schema.NewErrorf(schema.ErrCodeDuplicateEdge,
			"edge %s already connects %s to %s", existing, source, target).
			WithSubject(string(existing))
	}

	w.nextEdge++
	e := &Edge{
		ID:        EdgeID("E" + strconv.Itoa(w.nextEdge)),
		Source:    source,
		Target:    target,
		Condition: condition,
	}
	w.edges = append(w.edges, e)
	w.keys[key] = e.ID
	return e.ID, nil
}

// Disconnect removes one edge by id.
func (w *Workspace) Disconnect(id EdgeID) error {
	for i, e := range w.edges {
		if e.ID == id {
			w.dropEdge(i)
			return nil
		}
	}
	return schema.NewErrorf(schema.ErrCodeUnknownEdge, "edge %s not in workspace", id).
		WithSubject(string(id))
}

// RemoveLastEdge removes the most recently created edge that still exists.
func (w *Workspace) RemoveLastEdge() (Edge, error) {
	if len(w.edges) == 0 {
		return Edge{}, schema.NewError(schema.ErrCodeUnknownEdge, "there is no connection to undo")
	}
	last := *w.edges[len(w.edges)-1]
	w.dropEdge(len(w.edges) - 1)
	return last, nil
}

// FindEdge returns the edge matching source, target and condition.
func (w *Workspace) FindEdge(source, target BlockID, condition string) (Edge, bool) {
	id, ok := w.keys[keyOf(source, target, condition)]
	if !ok {
		return Edge{}, false
	}
	for _, e := range w.edges {
		if e.ID == id {
			return *e, true
		}
	}
	return Edge{}, false
}

// Clear destroys all blocks and edges. Ids restart from 1.
func (w *Workspace) Clear() {
	w.blocks = make(map[BlockID]*Block)
	w.order = nil
	w.edges = nil
	w.keys = make(map[edgeKey]EdgeID)
	w.nextBlock = 0
	w.nextEdge = 0
}

// Block returns a copy of the block with the given id.
func (w *Workspace) Block(id BlockID) (Block, bool) {
	b, ok := w.blocks[id]
	if !ok {
		return Block{}, false
	}
	return *b, true
}

// Blocks returns copies of all blocks in placement order.
func (w *Workspace) Blocks() []Block {
	out := make([]Block, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, *w.blocks[id])
	}
	return out
}

// Edges returns copies of all edges in creation order.
func (w *Workspace) Edges() []Edge {
	out := make([]Edge, 0, len(w.edges))
	for _, e := range w.edges {
		out = append(out, *e)
	}
	return out
}

// Len returns the number of blocks and edges.
func (w *Workspace) Len() (blocks, edges int) {
	return len(w.blocks), len(w.edges)
}

// Palette returns the placeable kinds in canonical order.
func (w *Workspace) Palette() []schema.BlockKind {
	out := make([]schema.BlockKind, 0, len(w.palette))
	for _, k := range schema.AllKinds {
		if w.palette[k] {
			out = append(out, k)
		}
	}
	return out
}

// NextFreeCell returns the first unoccupied cell scanning rows of the given width.
func (w *Workspace) NextFreeCell(width int) Position {
	if width <= 0 {
		width = 1
	}
	for i := 0; ; i++ {
		p := Position{X: i % width, Y: i / width}
		if _, taken := w.occupant(p); !taken {
			return p
		}
	}
}

func (w *Workspace) dropEdge(i int) {
	e := w.edges[i]
	delete(w.keys, keyOf(e.Source, e.Target, e.Condition))
	w.edges = append(w.edges[:i], w.edges[i+1:]...)
}

func (w *Workspace) occupant(pos Position) (BlockID, bool) {
	for _, id := range w.order {
		if w.blocks[id].Pos == pos {
			return id, true
		}
	}
	return "", false
}

func unknownBlock(id BlockID) error {
	return schema.NewErrorf(schema.ErrCodeUnknownBlock, "block %s not in workspace", id).
		WithSubject(string(id))
}

func occupied(pos Position, by BlockID) error {
	return schema.NewErrorf(schema.ErrCodeOccupiedSlot, "cell %s already holds %s", pos, by).
		WithSubject(string(by))
}
