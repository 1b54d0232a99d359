package flash

import "fmt"

type ConfirmStage int

const (
	StageWarning ConfirmStage = iota
	StageFinal
)

type Decision int

const (
	DecisionPending Decision = iota
	DecisionAccepted
	DecisionRejected
)

func (d Decision) String() string {
	switch d {
	case DecisionAccepted:
		return "accepted"
	case DecisionRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Prompter asks the user one yes/no question and reports whether the answer
// was affirmative.
type Prompter func(stage ConfirmStage, title, message string) bool

// Gate requires two affirmative answers, warning first and final second.
// The first negative answer rejects and the gate stays rejected.
type Gate struct {
	stage    ConfirmStage
	decision Decision
}

func NewGate() *Gate {
	return &Gate{stage: StageWarning}
}

func (g *Gate) Stage() ConfirmStage { return g.stage }

func (g *Gate) Decision() Decision { return g.decision }

// Respond records the answer for the current stage.
func (g *Gate) Respond(affirmative bool) Decision {
	if g.decision != DecisionPending {
		return g.decision
	}
	if !affirmative {
		g.decision = DecisionRejected
		return g.decision
	}
	if g.stage == StageWarning {
		g.stage = StageFinal
		return DecisionPending
	}
	g.decision = DecisionAccepted
	return g.decision
}

// RequestConfirmation drives a fresh gate with prompt until it decides.
func RequestConfirmation(req Request, prompt Prompter) Decision {
	g := NewGate()
	for g.Decision() == DecisionPending {
		title, message := ConfirmText(g.Stage(), req)
		g.Respond(prompt(g.Stage(), title, message))
	}
	return g.Decision()
}

// ConfirmText returns the dialog title and body for a stage.
func ConfirmText(stage ConfirmStage, req Request) (string, string) {
	if stage == StageFinal {
		return "FINAL WARNING", fmt.Sprintf("Last chance! Answering yes will START ERASING %s!\n\n"+
			"This CANNOT be undone!", req.Disk)
	}
	return "Confirm Installation", fmt.Sprintf("THIS WILL COMPLETELY ERASE %s!\n\n"+
		"All data on this disk will be PERMANENTLY DELETED.\n\n"+
		"Partition layout:\n"+
		"  • EFI:   512 MB\n"+
		"  • BOOT:  1 GB\n"+
		"  • ROOT:  1.8 TB\n"+
		"  • DATA:  Remaining space\n\n"+
		"Are you ABSOLUTELY SURE?", req.Disk)
}

// CancelWarning must be shown before Cancel is invoked.
const CancelWarning = "Are you sure you want to cancel the installation?\n" +
	"This may leave your disk in an inconsistent state!"
