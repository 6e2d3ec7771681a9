// flowgame is a flow diagram learning game: learners build flowcharts from
// written system tasks and are checked against each stage's expected graph.
package main

import (
	"fmt"
	"os"
)

const usage = `Usage: flowgame <command> [flags]

Commands:
  play       play in the terminal
  serve      serve the game as MCP tools over stdio
  stages     list and check the stage catalog
  progress   show a learner's progress and attempt history
  export     render a workspace-free stage solution diagram
  init       write ~/.flowgame/settings.json
  version    print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "play":
		runPlay(args)
	case "serve":
		runServe(args)
	case "stages":
		runStages(args)
	case "progress":
		runProgress(args)
	case "export":
		runExport(args)
	case "init":
		runInit(args)
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}
