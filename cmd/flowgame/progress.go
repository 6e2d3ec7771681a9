package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rendis/flowgame/internal/expressions"
	"github.com/rendis/flowgame/internal/store"
	"github.com/rendis/flowgame/pkg/schema"
)

// runProgress prints the learner's stored progress, the attempt history
// replayed from the log, or the result of a jq query over both.
func runProgress(args []string) {
	cfg := loadConfig()
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	bindCommon(fs, &cfg)
	query := fs.String("query", "", "jq program run over {learner, pack, snapshot, history}")
	list := fs.Bool("learners", false, "list registered learners")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := openApp(ctx, cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()
	ctx = a.context(ctx)

	if *list {
		learners, err := a.store.ListLearners(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		for _, l := range learners {
			fmt.Printf("%-20s %s\n", l.Name, l.ID)
		}
		return
	}

	snap := schema.ProgressSnapshot{Unlocked: []int{0}}
	rec, err := a.store.LoadProgress(ctx, a.learner.ID, a.pack)
	if err == nil {
		snap = rec.Snapshot
	} else if !schema.IsCode(err, schema.ErrCodeNotFound) {
		fatalf("%v", err)
	}
	history, err := a.store.ReplayAttempts(ctx, a.learner.ID)
	if err != nil {
		fatalf("%v", err)
	}

	if *query != "" {
		out, err := queryProgress(ctx, *query, a.learner, a.pack, snap, history)
		if err != nil {
			fatalf("%v", err)
		}
		for _, v := range out {
			data, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(data))
		}
		return
	}

	fmt.Printf("Learner: %s\nPack: %s\n", a.learner.Name, a.pack)
	fmt.Printf("Current stage: %d of %d\n", snap.CurrentStage+1, a.catalog.Len())
	if snap.Completed {
		fmt.Printf("All stages complete.\n")
	}
	badges := append([]string(nil), snap.Badges...)
	sort.Strings(badges)
	if len(badges) > 0 {
		fmt.Printf("Badges: %s\n", strings.Join(badges, ", "))
	}

	fmt.Printf("\nHistory:\n")
	for i := 0; i < a.catalog.Len(); i++ {
		st, _ := a.catalog.Stage(i)
		sh, ok := history.Stages[st.ID]
		if !ok {
			fmt.Printf("  %-22s not attempted\n", st.Title)
			continue
		}
		status := "in progress"
		if sh.FirstPassAt != nil {
			status = fmt.Sprintf("passed in %d attempt(s)", sh.AttemptsToPass)
		}
		fmt.Printf("  %-22s %s, %d failed\n", st.Title, status, sh.Failed)
	}
	if history.Resets > 0 {
		fmt.Printf("Resets: %d\n", history.Resets)
	}
}

// queryProgress runs a jq program over the learner's progress document.
func queryProgress(ctx context.Context, program string, learner *store.Learner, pack string, snap schema.ProgressSnapshot, history *store.History) ([]any, error) {
	doc, err := toMap(map[string]any{
		"learner":  learner,
		"pack":     pack,
		"snapshot": snap,
		"history":  history,
	})
	if err != nil {
		return nil, err
	}
	return expressions.NewGoJQEngine().EvaluateAll(ctx, program, doc)
}

// toMap round-trips v through JSON so jq sees plain maps and slices.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
