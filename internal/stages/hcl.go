package stages

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/rendis/flowgame/pkg/schema"
)

// hclFile is the top-level shape of an HCL stage pack file:
//
//	name = "my-pack"
//
//	stage "first-flow" {
//	  title = "First Flow"
//	  task  = "..."
//	  badge = "Badge: Flow Starter"
//	  role "START" { kind = kind.start }
//	  role "END"   { kind = kind.end }
//	  edge "START" "END" {}
//	}
//
//	rule "First Try: {stage}" {
//	  engine = "expr"
//	  when   = "attempts == 1"
//	}
type hclFile struct {
	Name   string     `hcl:"name,optional"`
	Stages []hclStage `hcl:"stage,block"`
	Rules  []hclRule  `hcl:"rule,block"`
}

type hclStage struct {
	ID           string    `hcl:"id,label"`
	Title        string    `hcl:"title"`
	Task         string    `hcl:"task"`
	LearningGoal string    `hcl:"learning_goal,optional"`
	Hint         string    `hcl:"hint,optional"`
	Badge        string    `hcl:"badge"`
	Palette      []string  `hcl:"palette,optional"`
	Lanes        []string  `hcl:"lanes,optional"`
	StrictLabels bool      `hcl:"strict_labels,optional"`
	Roles        []hclRole `hcl:"role,block"`
	Edges        []hclEdge `hcl:"edge,block"`
}

type hclRole struct {
	ID    string `hcl:"id,label"`
	Kind  string `hcl:"kind"`
	Label string `hcl:"label,optional"`
	Lane  string `hcl:"lane,optional"`
}

type hclEdge struct {
	From      string `hcl:"from,label"`
	To        string `hcl:"to,label"`
	Condition string `hcl:"condition,optional"`
}

type hclRule struct {
	Name   string `hcl:"name,label"`
	Engine string `hcl:"engine"`
	When   string `hcl:"when"`
}

// hclEvalContext exposes kind.start, kind.process, kind.decision and
// kind.end so packs can reference block kinds without quoting.
func hclEvalContext() *hcl.EvalContext {
	kinds := make(map[string]cty.Value, len(schema.AllKinds))
	for _, k := range schema.AllKinds {
		kinds[string(k)] = cty.StringVal(string(k))
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"kind": cty.ObjectVal(kinds),
		},
	}
}

// LoadHCL loads every .hcl file under paths (files or directories) into one
// catalog. Stages keep file order, then declaration order.
func LoadHCL(paths ...string) (*Catalog, error) {
	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no .hcl stage files found in %v", paths)
	}

	parser := hclparse.NewParser()
	pack := &schema.StagePack{}
	for _, path := range files {
		f, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, schema.NewErrorf(schema.ErrCodeParse, "parse %s", path).WithCause(diags)
		}
		if err := decodeHCLInto(f.Body, path, pack); err != nil {
			return nil, err
		}
	}
	return New(pack)
}

// ParseHCL loads a catalog from HCL source held in memory.
func ParseHCL(src []byte, filename string) (*Catalog, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, schema.NewErrorf(schema.ErrCodeParse, "parse %s", filename).WithCause(diags)
	}
	pack := &schema.StagePack{}
	if err := decodeHCLInto(f.Body, filename, pack); err != nil {
		return nil, err
	}
	return New(pack)
}

func decodeHCLInto(body hcl.Body, filename string, pack *schema.StagePack) error {
	var root hclFile
	if diags := gohcl.DecodeBody(body, hclEvalContext(), &root); diags.HasErrors() {
		return schema.NewErrorf(schema.ErrCodeParse, "decode %s", filename).WithCause(diags)
	}

	if root.Name != "" && pack.Name == "" {
		pack.Name = root.Name
	}
	for _, hs := range root.Stages {
		st, err := hs.toStage()
		if err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
		pack.Stages = append(pack.Stages, st)
	}
	for _, r := range root.Rules {
		pack.Rules = append(pack.Rules, schema.BadgeRule{Name: r.Name, Engine: r.Engine, When: r.When})
	}
	return nil
}

func (hs hclStage) toStage() (schema.Stage, error) {
	st := schema.Stage{
		ID:           hs.ID,
		Title:        hs.Title,
		Task:         hs.Task,
		LearningGoal: hs.LearningGoal,
		Hint:         hs.Hint,
		Badge:        hs.Badge,
		Lanes:        hs.Lanes,
		StrictLabels: hs.StrictLabels,
		Roles:        make([]schema.Role, 0, len(hs.Roles)),
		Edges:        make([]schema.ExpectedEdge, 0, len(hs.Edges)),
	}
	for _, p := range hs.Palette {
		k, err := schema.ParseBlockKind(p)
		if err != nil {
			return st, err
		}
		st.Palette = append(st.Palette, k)
	}
	for _, r := range hs.Roles {
		k, err := schema.ParseBlockKind(r.Kind)
		if err != nil {
			return st, err
		}
		st.Roles = append(st.Roles, schema.Role{ID: r.ID, Kind: k, Label: r.Label, Lane: r.Lane})
	}
	for _, e := range hs.Edges {
		st.Edges = append(st.Edges, schema.ExpectedEdge{From: e.From, To: e.To, Condition: e.Condition})
	}
	return st, nil
}

// findHCLFiles walks paths and returns every .hcl file, sorted per directory.
// Missing paths are skipped.
func findHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			all = append(all, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}
