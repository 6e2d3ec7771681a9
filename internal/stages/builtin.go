package stages

import "github.com/rendis/flowgame/pkg/schema"

const (
	start    = schema.KindStart
	process  = schema.KindProcess
	decision = schema.KindDecision
	end      = schema.KindEnd
)

// Builtin returns the catalog that ships with the game.
func Builtin() *Catalog {
	return MustNew(BuiltinPack())
}

// BuiltinPack returns the builtin stages and rules as a pack.
func BuiltinPack() *schema.StagePack {
	return &schema.StagePack{
		Name: "flowgame-basics",
		Stages: []schema.Stage{
			{
				ID:           "first-flow",
				Title:        "First Flow",
				Task:         "System task: a program starts, does one thing and stops. Build Start -> Process -> End.",
				LearningGoal: "Recognise start, process and end blocks and connect them in order.",
				Hint:         "Every flow begins at a start block and finishes at an end block.",
				Badge:        "Badge: Flow Starter",
				Roles: []schema.Role{
					{ID: "START", Kind: start, Label: "Start"},
					{ID: "WORK", Kind: process, Label: "Do the work"},
					{ID: "END", Kind: end, Label: "End"},
				},
				Edges: []schema.ExpectedEdge{
					{From: "START", To: "WORK"},
					{From: "WORK", To: "END"},
				},
			},
			{
				ID:           "block-basics",
				Title:        "Block Basics",
				Task:         "System task: one LED blinks on/off every second forever. Build a loop with start and process blocks.",
				LearningGoal: "Understand process block sequencing and loops.",
				Hint:         "You need a loop from the final wait block back to LED on.",
				Badge:        "Badge: Blink Builder",
				Roles: []schema.Role{
					{ID: "START", Kind: start, Label: "Start"},
					{ID: "LED_ON", Kind: process, Label: "LED on"},
					{ID: "WAIT_1", Kind: process, Label: "Wait 1 second"},
					{ID: "LED_OFF", Kind: process, Label: "LED off"},
					{ID: "WAIT_2", Kind: process, Label: "Wait 1 second"},
				},
				Edges: []schema.ExpectedEdge{
					{From: "START", To: "LED_ON"},
					{From: "LED_ON", To: "WAIT_1"},
					{From: "WAIT_1", To: "LED_OFF"},
					{From: "LED_OFF", To: "WAIT_2"},
					{From: "WAIT_2", To: "LED_ON"},
				},
			},
			{
				ID:    "decision-branching",
				Title: "Decision Branching",
				Task: "System task: read the temperature and decide the fan state. If the temperature is above 25 C " +
					"turn the fan on, otherwise turn it off, then measure again.",
				LearningGoal: "Use a decision block with yes/no outgoing paths.",
				Hint: "The decision block should branch to two actions labelled yes and no. " +
					"Name the blocks Measure temperature, Temperature > 25 C?, Fan on and Fan off.",
				Badge:        "Badge: Branch Navigator",
				StrictLabels: true,
				Roles: []schema.Role{
					{ID: "START", Kind: start, Label: "Start"},
					{ID: "MEASURE", Kind: process, Label: "Measure temperature"},
					{ID: "HOT", Kind: decision, Label: "Temperature > 25 C?"},
					{ID: "FAN_ON", Kind: process, Label: "Fan on"},
					{ID: "FAN_OFF", Kind: process, Label: "Fan off"},
				},
				Edges: []schema.ExpectedEdge{
					{From: "START", To: "MEASURE"},
					{From: "MEASURE", To: "HOT"},
					{From: "HOT", To: "FAN_ON", Condition: "yes"},
					{From: "HOT", To: "FAN_OFF", Condition: "no"},
					{From: "FAN_ON", To: "MEASURE"},
					{From: "FAN_OFF", To: "MEASURE"},
				},
			},
			{
				ID:    "thermostat-loop",
				Title: "Thermostat Loop",
				Task: "System task: like the reference thermostat diagram. Measure the temperature, check T > 20 C " +
					"and toggle the heating with a loop back.",
				LearningGoal: "Model a full control loop from measurement to action.",
				Hint: "Both heating states should return to the measurement step. The branches are labelled ja and nee; " +
					"the blocks are Meet temperatuur, T > 20 C, Verwarming uit and Verwarming aan.",
				Badge:        "Badge: Control Loop Crafter",
				StrictLabels: true,
				Roles: []schema.Role{
					{ID: "START", Kind: start, Label: "Start"},
					{ID: "MEASURE_TEMP", Kind: process, Label: "Meet temperatuur"},
					{ID: "ABOVE_20", Kind: decision, Label: "T > 20 C"},
					{ID: "HEATING_OFF", Kind: process, Label: "Verwarming uit"},
					{ID: "HEATING_ON", Kind: process, Label: "Verwarming aan"},
				},
				Edges: []schema.ExpectedEdge{
					{From: "START", To: "MEASURE_TEMP"},
					{From: "MEASURE_TEMP", To: "ABOVE_20"},
					{From: "ABOVE_20", To: "HEATING_OFF", Condition: "ja"},
					{From: "ABOVE_20", To: "HEATING_ON", Condition: "nee"},
					{From: "HEATING_OFF", To: "MEASURE_TEMP"},
					{From: "HEATING_ON", To: "MEASURE_TEMP"},
				},
			},
			{
				ID:    "swimlanes",
				Title: "Swimlanes",
				Task: "System task: an automatic door request split across lanes. The user presses a button; " +
					"the controller validates the request and opens the door or shows an error.",
				LearningGoal: "Place blocks in the correct swimlanes without over-complicating the logic.",
				Hint: "Use two lanes: User and Controller. " +
					"Name the controller blocks Read input, Request valid?, Open door and Show error.",
				Badge:        "Badge: Swimlane Starter",
				StrictLabels: true,
				Lanes:        []string{"User", "Controller"},
				Roles: []schema.Role{
					{ID: "START", Kind: start, Label: "Start", Lane: "User"},
					{ID: "PRESS", Kind: process, Label: "Press button", Lane: "User"},
					{ID: "READ", Kind: process, Label: "Read input", Lane: "Controller"},
					{ID: "VALID", Kind: decision, Label: "Request valid?", Lane: "Controller"},
					{ID: "OPEN", Kind: process, Label: "Open door", Lane: "Controller"},
					{ID: "ERROR", Kind: process, Label: "Show error", Lane: "Controller"},
					{ID: "END", Kind: end, Label: "End", Lane: "User"},
				},
				Edges: []schema.ExpectedEdge{
					{From: "START", To: "PRESS"},
					{From: "PRESS", To: "READ"},
					{From: "READ", To: "VALID"},
					{From: "VALID", To: "OPEN", Condition: "yes"},
					{From: "VALID", To: "ERROR", Condition: "no"},
					{From: "OPEN", To: "END"},
					{From: "ERROR", To: "END"},
				},
			},
		},
		Rules: []schema.BadgeRule{
			{Name: "First Try: {stage}", Engine: "expr", When: "attempts == 1"},
			{Name: "Flow Architect", Engine: "cel", When: "progress.completed"},
		},
	}
}
