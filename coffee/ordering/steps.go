package ordering

import "github.com/m3rciful/coffeebot/core/telegram/state"

// Step names. A user with no session is state.StateIdle.
const (
	StepAwaitingDrink state.State = "awaiting_drink"
	StepAwaitingSugar state.State = "awaiting_sugar"
	StepAwaitingName  state.State = "awaiting_name"
)

// Step is the tagged session variant. Each variant carries only the
// selections already made, so a later step cannot observe a missing field.
type Step interface {
	state.Step
	step()
}

// AwaitingDrink waits for a tap on the drink menu.
type AwaitingDrink struct{}

// AwaitingSugar waits for a sugar choice for Drink.
type AwaitingSugar struct {
	Drink string
}

// AwaitingName waits for a first-time customer to type their name.
type AwaitingName struct {
	Drink string
	Sugar int
}

func (AwaitingDrink) State() state.State { return StepAwaitingDrink }
func (AwaitingSugar) State() state.State { return StepAwaitingSugar }
func (AwaitingName) State() state.State  { return StepAwaitingName }

func (AwaitingDrink) step() {}
func (AwaitingSugar) step() {}
func (AwaitingName) step()  {}
