// gen-diagrams renders the builtin stage solutions for the README.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/flowgame/internal/diagram"
	"github.com/rendis/flowgame/internal/stages"
)

func main() {
	outDir := filepath.Join("docs", "assets")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir error: %v\n", err)
		os.Exit(1)
	}

	catalog := stages.Builtin()
	for i := 0; i < catalog.Len(); i++ {
		st, err := catalog.Stage(i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stage error: %v\n", err)
			os.Exit(1)
		}
		model := diagram.FromStage(st)
		base := filepath.Join(outDir, fmt.Sprintf("stage-%d-%s", i+1, st.ID))

		ascii := diagram.RenderASCII(model)
		writeFile(base+".txt", []byte(ascii))
		fmt.Printf("=== %s (ascii) ===\n%s\n", st.Title, ascii)

		mermaid := diagram.RenderMermaid(model)
		writeFile(base+".md", []byte("```mermaid\n"+mermaid+"```\n"))

		png, imgErr := diagram.RenderImage(context.Background(), model)
		if imgErr != nil {
			fmt.Fprintf(os.Stderr, "image error for %s: %v\n", st.ID, imgErr)
			continue
		}
		writeFile(base+".png", png)
	}
	fmt.Printf("Diagrams written to %s\n", outDir)
}

func writeFile(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
	}
}
