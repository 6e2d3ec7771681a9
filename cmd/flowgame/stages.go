package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rendis/flowgame/internal/stages"
	"github.com/rendis/flowgame/internal/validation"
)

// runStages lists the catalog and reports stage-definition issues.
// With -dump the catalog is written as a JSON pack instead.
func runStages(args []string) {
	cfg := loadConfig()
	fs := flag.NewFlagSet("stages", flag.ExitOnError)
	fs.StringVar(&cfg.StagesPath, "stages", cfg.StagesPath, "stage pack (.json, .hcl or a directory of .hcl files; default: builtin)")
	dump := fs.Bool("dump", false, "write the catalog as a JSON stage pack to stdout")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	catalog, err := stages.LoadFile(cfg.StagesPath)
	if err != nil {
		fatalf("%v", err)
	}
	if *dump {
		if err := stages.WriteJSON(os.Stdout, catalog); err != nil {
			fatalf("%v", err)
		}
		return
	}

	fmt.Printf("Pack: %s (%d stages)\n\n", packKey(catalog, cfg.StagesPath), catalog.Len())
	for i := 0; i < catalog.Len(); i++ {
		st, _ := catalog.Stage(i)
		fmt.Printf("%2d. %-22s %s\n", i+1, st.Title, st.ID)
		fmt.Printf("    roles: %d, edges: %d, badge: %s\n", len(st.Roles), len(st.Edges), st.Badge)
		if st.HasLanes() {
			fmt.Printf("    lanes: %s\n", strings.Join(st.Lanes, ", "))
		}
	}
	if rules := catalog.Rules(); len(rules) > 0 {
		fmt.Printf("\nBonus badges:\n")
		for _, r := range rules {
			fmt.Printf("  %-28s [%s] %s\n", r.Name, r.Engine, r.When)
		}
	}

	pv, err := validation.NewPackValidator()
	if err != nil {
		fatalf("%v", err)
	}
	result := pv.Validate(catalog.Pack())
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s: %s\n", w.Path, w.Message)
	}
	for _, e := range result.Errors {
		fmt.Printf("error: %s: %s\n", e.Path, e.Message)
	}
	if !result.Valid() {
		os.Exit(1)
	}
}
