// Package stages holds the ordered stage catalog and its loaders.
package stages

import (
	"fmt"

	"github.com/rendis/flowgame/internal/validation"
	"github.com/rendis/flowgame/pkg/schema"
)

// Catalog is an ordered, read-only list of stages plus the bonus badge
// rules that apply to them. Stages outlive every workspace built from them.
type Catalog struct {
	name   string
	stages []schema.Stage
	rules  []schema.BadgeRule
	index  map[string]int
}

// New validates pack and builds a Catalog from it. The pack is copied.
func New(pack *schema.StagePack) (*Catalog, error) {
	pv, err := validation.NewPackValidator()
	if err != nil {
		return nil, fmt.Errorf("create pack validator: %w", err)
	}
	result := pv.Validate(pack)
	if err := result.ToError(); err != nil {
		return nil, err
	}

	c := &Catalog{
		name:   pack.Name,
		stages: make([]schema.Stage, len(pack.Stages)),
		rules:  append([]schema.BadgeRule(nil), pack.Rules...),
		index:  make(map[string]int, len(pack.Stages)),
	}
	copy(c.stages, pack.Stages)
	for i, st := range c.stages {
		c.index[st.ID] = i
	}
	return c, nil
}

// MustNew is New for packs known to be valid at compile time.
func MustNew(pack *schema.StagePack) *Catalog {
	c, err := New(pack)
	if err != nil {
		panic(fmt.Sprintf("stages: invalid builtin pack: %v", err))
	}
	return c
}

// Name returns the pack name.
func (c *Catalog) Name() string { return c.name }

// Len returns the number of stages.
func (c *Catalog) Len() int { return len(c.stages) }

// Stage returns the stage at index i.
func (c *Catalog) Stage(i int) (*schema.Stage, error) {
	if i < 0 || i >= len(c.stages) {
		return nil, schema.NewErrorf(schema.ErrCodeUnknownStage,
			"stage %d does not exist (catalog has %d stages)", i, len(c.stages))
	}
	return &c.stages[i], nil
}

// Index returns the position of the stage with the given id.
func (c *Catalog) Index(id string) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// Rules returns the bonus badge rules.
func (c *Catalog) Rules() []schema.BadgeRule {
	return c.rules
}

// Pack returns a serialisable copy of the catalog.
func (c *Catalog) Pack() *schema.StagePack {
	return &schema.StagePack{
		Name:   c.name,
		Stages: append([]schema.Stage(nil), c.stages...),
		Rules:  append([]schema.BadgeRule(nil), c.rules...),
	}
}
