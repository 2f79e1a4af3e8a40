package manager

// State is the lifecycle state of the active slot.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
)

var allStates = []State{StateUnloaded, StateLoading, StateLoaded}
