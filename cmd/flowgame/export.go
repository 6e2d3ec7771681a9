package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rendis/flowgame/internal/diagram"
	"github.com/rendis/flowgame/internal/stages"
	"github.com/rendis/flowgame/pkg/schema"
)

// runExport renders a stage's expected graph. Stage authors use it to
// review a pack; learners never see it in play.
func runExport(args []string) {
	cfg := loadConfig()
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.StringVar(&cfg.StagesPath, "stages", cfg.StagesPath, "stage pack (.json, .hcl or a directory of .hcl files; default: builtin)")
	fs.StringVar(&cfg.DiagramDir, "dir", cfg.DiagramDir, "output directory")
	stageRef := fs.String("stage", "1", "stage number (1-based) or stage id")
	format := fs.String("format", "mermaid", "output format: mermaid, ascii, png")
	toStdout := fs.Bool("stdout", false, "write text formats to stdout instead of a file")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	catalog, err := stages.LoadFile(cfg.StagesPath)
	if err != nil {
		fatalf("%v", err)
	}
	st, err := resolveStage(catalog, *stageRef)
	if err != nil {
		fatalf("%v", err)
	}

	data, ext, err := renderStage(context.Background(), st, *format)
	if err != nil {
		fatalf("%v", err)
	}
	if *toStdout && ext != "png" {
		fmt.Print(string(data))
		return
	}

	if err := os.MkdirAll(cfg.DiagramDir, 0o755); err != nil {
		fatalf("cannot create %s: %v", cfg.DiagramDir, err)
	}
	path := filepath.Join(cfg.DiagramDir, st.ID+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fatalf("cannot write %s: %v", path, err)
	}
	fmt.Printf("Diagram written to %s\n", path)
}

// resolveStage accepts a 1-based stage number or a stage id.
func resolveStage(catalog *stages.Catalog, ref string) (*schema.Stage, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		return catalog.Stage(n - 1)
	}
	i, ok := catalog.Index(ref)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUnknownStage, "no stage %q", ref).WithSubject(ref)
	}
	return catalog.Stage(i)
}

// renderStage returns the rendered diagram and its file extension.
func renderStage(ctx context.Context, st *schema.Stage, format string) ([]byte, string, error) {
	model := diagram.FromStage(st)
	switch format {
	case "mermaid":
		return []byte(diagram.RenderMermaid(model)), "mmd", nil
	case "ascii":
		return []byte(diagram.RenderASCII(model)), "txt", nil
	case "png", "image":
		png, err := diagram.RenderImage(ctx, model)
		return png, "png", err
	default:
		return nil, "", schema.NewErrorf(schema.ErrCodeParse, "format must be mermaid, ascii or png, got %q", format)
	}
}
