package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/rendis/flowgame/internal/diagram"
	"github.com/rendis/flowgame/internal/game"
	"github.com/rendis/flowgame/internal/logging"
	"github.com/rendis/flowgame/internal/workspace"
	"github.com/rendis/flowgame/pkg/schema"
)

// gridWidth is the number of columns auto-placed blocks fill before
// wrapping to the next row.
const gridWidth = 4

// SaveFunc persists a progression snapshot after it changes.
type SaveFunc func(ctx context.Context, snap schema.ProgressSnapshot) error

// Console reads commands line by line and drives a game session. Learners
// name their blocks; the console maps those names to workspace ids.
type Console struct {
	session *game.Session
	out     io.Writer
	logger  *slog.Logger
	save    SaveFunc

	ws    *workspace.Workspace // workspace the names below belong to
	names map[string]workspace.BlockID
}

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSave sets the hook called after progression changes.
func WithSave(fn SaveFunc) Option {
	return func(c *Console) { c.save = fn }
}

// NewConsole creates a console writing to out.
func NewConsole(session *game.Session, out io.Writer, opts ...Option) *Console {
	c := &Console{session: session, out: out, logger: logging.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	c.sync()
	return c
}

// Run reads commands from in until "quit", end of input or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	c.printf("Flow Diagram Learning Game\n")
	c.printf("Build diagrams from written system tasks and earn badges. Type 'help' for commands.\n\n")
	c.showStage()

	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.printf("> ")
		if !scanner.Scan() {
			c.printf("\n")
			return scanner.Err()
		}
		if quit := c.Exec(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the learner asked to quit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	c.sync()

	var err error
	switch strings.ToLower(cmd) {
	case "quit", "exit":
		c.printf("Exiting game.\n")
		return true
	case "help":
		c.help()
	case "stage":
		c.showStage()
	case "hint":
		c.printf("Hint: %s\n", c.session.Hint())
	case "node":
		err = c.node(arg)
	case "edge":
		err = c.edge(arg)
	case "move":
		err = c.move(arg)
	case "rm":
		err = c.remove(arg)
	case "disconnect":
		err = c.disconnect(arg)
	case "undo":
		err = c.undo()
	case "clear":
		c.session.Clear()
		c.names = make(map[string]workspace.BlockID)
		c.printf("Workspace cleared.\n")
	case "show":
		c.show()
	case "check":
		err = c.check(ctx)
	case "progress":
		c.progress()
	case "goto":
		err = c.gotoStage(ctx, arg)
	case "restart":
		c.session.RestartStage(ctx)
		c.sync()
		c.printf("Stage restarted.\n")
	case "reset":
		c.session.ResetGame(ctx)
		c.sync()
		c.persist(ctx)
		c.printf("Game reset.\n\n")
		c.showStage()
	default:
		err = schema.NewErrorf(schema.ErrCodeParse, "unknown command %q, type 'help'", cmd)
	}
	if err != nil {
		c.printf("Error: %s\n", err)
	}
	return false
}

// sync drops the name table when the session replaced its workspace.
func (c *Console) sync() {
	if ws := c.session.Workspace(); ws != c.ws {
		c.ws = ws
		c.names = make(map[string]workspace.BlockID)
	}
}

func (c *Console) lookup(name string) (workspace.BlockID, error) {
	id, ok := c.names[schema.NormalizeID(name)]
	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeUnknownBlock, "no block named %s", schema.NormalizeID(name))
	}
	return id, nil
}

func (c *Console) nameOf(id workspace.BlockID) string {
	for name, bid := range c.names {
		if bid == id {
			return name
		}
	}
	return string(id)
}

func (c *Console) node(arg string) error {
	spec, err := ParseNodeLine(arg)
	if err != nil {
		return err
	}
	if _, taken := c.names[spec.ID]; taken {
		return schema.NewErrorf(schema.ErrCodeValidation, "a block named %s already exists", spec.ID)
	}
	pos := c.session.Workspace().NextFreeCell(gridWidth)
	id, err := c.session.PlaceBlock(spec.Kind, pos, workspace.Label(spec.Label), workspace.Lane(spec.Lane))
	if err != nil {
		return err
	}
	c.names[spec.ID] = id
	c.printf("Placed %s (%s) at %d,%d.\n", spec.ID, spec.Kind, pos.X, pos.Y)
	return nil
}

func (c *Console) edge(arg string) error {
	spec, err := ParseEdgeLine(arg)
	if err != nil {
		return err
	}
	src, err := c.lookup(spec.From)
	if err != nil {
		return err
	}
	dst, err := c.lookup(spec.To)
	if err != nil {
		return err
	}
	if _, err := c.session.Connect(src, dst, spec.Label); err != nil {
		return err
	}
	c.printf("Edge added: %s -> %s\n", spec.From, spec.To)
	return nil
}

func (c *Console) move(arg string) error {
	fields := strings.Fields(arg)
	if len(fields) != 3 {
		return schema.NewError(schema.ErrCodeParse, "usage: move NODE_ID X Y")
	}
	id, err := c.lookup(fields[0])
	if err != nil {
		return err
	}
	x, errX := strconv.Atoi(fields[1])
	y, errY := strconv.Atoi(fields[2])
	if errX != nil || errY != nil {
		return schema.NewError(schema.ErrCodeParse, "move: X and Y must be integers")
	}
	return c.session.MoveBlock(id, workspace.Position{X: x, Y: y})
}

func (c *Console) remove(arg string) error {
	id, err := c.lookup(arg)
	if err != nil {
		return err
	}
	if err := c.session.RemoveBlock(id); err != nil {
		return err
	}
	delete(c.names, schema.NormalizeID(arg))
	c.printf("Removed %s.\n", schema.NormalizeID(arg))
	return nil
}

func (c *Console) disconnect(arg string) error {
	spec, err := ParseEdgeLine(arg)
	if err != nil {
		return err
	}
	src, err := c.lookup(spec.From)
	if err != nil {
		return err
	}
	dst, err := c.lookup(spec.To)
	if err != nil {
		return err
	}
	e, ok := c.session.Workspace().FindEdge(src, dst, spec.Label)
	if !ok {
		return schema.NewErrorf(schema.ErrCodeUnknownEdge, "no edge %s -> %s", spec.From, spec.To)
	}
	return c.session.Disconnect(e.ID)
}

func (c *Console) undo() error {
	e, err := c.session.RemoveLastEdge()
	if err != nil {
		return err
	}
	c.printf("Removed edge %s -> %s\n", c.nameOf(e.Source), c.nameOf(e.Target))
	return nil
}

func (c *Console) show() {
	c.printf("%s", diagram.RenderASCII(c.session.Diagram()))
	if len(c.names) == 0 {
		return
	}
	c.printf("\nNames:\n")
	for _, name := range schema.SortedKeys(c.names) {
		c.printf("  %s = %s\n", name, c.names[name])
	}
}

func (c *Console) check(ctx context.Context) error {
	st := c.session.CurrentStage()
	out, err := c.session.ValidateCurrent(ctx)
	if err != nil {
		return err
	}
	if !out.Verdict.Passed {
		c.printf("\nNot correct yet:\n")
		for _, r := range out.Verdict.Reasons {
			c.printf("- %s\n", r.Message)
		}
		if !out.Completed {
			c.printf("Hint: %s\n\n", st.Hint)
		}
		return nil
	}

	c.printf("\nCorrect diagram.\n")
	for _, w := range out.Verdict.Warnings {
		c.printf("  note: %s\n", w.Message)
	}
	for _, b := range out.Badges {
		c.printf("Earned badge: %s\n", b)
	}
	c.persist(ctx)
	if out.Completed {
		c.printf("\nYou completed all stages.\n")
		c.progress()
		return nil
	}
	if out.Advanced {
		c.sync()
		c.printf("Next stage unlocked.\n\n")
		c.showStage()
	}
	return nil
}

func (c *Console) progress() {
	snap := c.session.Progress()
	total := c.session.Catalog().Len()
	c.printf("Stage %d of %d, unlocked: %s\n", snap.CurrentStage+1, total, oneBased(snap.Unlocked))
	if len(snap.Badges) == 0 {
		c.printf("No badges yet.\n")
		return
	}
	badges := append([]string(nil), snap.Badges...)
	sort.Strings(badges)
	c.printf("All badges:\n")
	for _, b := range badges {
		c.printf("- %s\n", b)
	}
}

func (c *Console) gotoStage(ctx context.Context, arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return schema.NewError(schema.ErrCodeParse, "usage: goto STAGE_NUMBER")
	}
	if err := c.session.AdvanceTo(ctx, n-1); err != nil {
		return err
	}
	c.sync()
	c.persist(ctx)
	c.showStage()
	return nil
}

func (c *Console) persist(ctx context.Context) {
	if c.save == nil {
		return
	}
	if err := c.save(ctx, c.session.Progress()); err != nil {
		logging.LogWith(ctx, c.logger).Warn("progress not saved", slog.String("error", err.Error()))
		c.printf("Warning: progress not saved: %s\n", err)
	}
}

func (c *Console) showStage() {
	st := c.session.CurrentStage()
	c.printf("Stage %d: %s\n", c.session.CurrentIndex()+1, st.Title)
	c.printf("Task: %s\n", st.Task)
	if st.LearningGoal != "" {
		c.printf("Learning goal: %s\n", st.LearningGoal)
	}
	kinds := make([]string, 0, len(st.PaletteKinds()))
	for _, k := range st.PaletteKinds() {
		kinds = append(kinds, string(k))
	}
	c.printf("Blocks: %s\n", strings.Join(kinds, ", "))
	if st.HasLanes() {
		c.printf("Required swimlanes: %s\n", strings.Join(st.Lanes, ", "))
	}
	c.printf("\n")
}

func (c *Console) help() {
	c.printf(`Commands:
  node NODE_ID;kind;label[;lane]   place a block (kinds: start, process, decision, end, start_end)
  edge SOURCE->TARGET[;label]      connect two blocks; decisions need a label
  move NODE_ID X Y                 move a block to a grid cell
  rm NODE_ID                       remove a block and its edges
  disconnect SOURCE->TARGET[;label] remove one edge
  undo                             remove the most recent edge
  clear                            empty the workspace
  show                             draw the workspace
  check                            validate the diagram
  hint | stage | progress          stage help and progression
  goto N                           switch to an unlocked stage
  restart | reset                  restart this stage | the whole game
  quit                             leave
`)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func oneBased(idx []int) string {
	parts := make([]string, len(idx))
	for i, n := range idx {
		parts[i] = strconv.Itoa(n + 1)
	}
	return strings.Join(parts, ", ")
}
