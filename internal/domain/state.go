package domain

// TokenState is the lifecycle state of a tracked token.
// Lowercase snake is the single canonical representation: the classifier,
// the tokens table and the Redis index keys all use these exact strings.
type TokenState string

const (
	// StateLaunching covers tokens with no trades yet, or too little
	// activity to qualify as active.
	StateLaunching TokenState = "launching"
	// StateAboutToBond covers tokens near the end of the bonding curve
	// with a recent trade.
	StateAboutToBond TokenState = "about_to_bond"
	// StateBonded covers tokens that graduated to a liquidity pool.
	StateBonded TokenState = "bonded"
	// StateActive covers tokens with sustained trading activity.
	StateActive TokenState = "active"
	// StateDead covers tokens with no recent trades or negligible volume.
	StateDead TokenState = "dead"
)

// AllStates lists every lifecycle state, for index maintenance and
// validation.
var AllStates = []TokenState{
	StateLaunching,
	StateAboutToBond,
	StateBonded,
	StateActive,
	StateDead,
}

// Valid reports whether s is one of the known lifecycle states.
func (s TokenState) Valid() bool {
	switch s {
	case StateLaunching, StateAboutToBond, StateBonded, StateActive, StateDead:
		return true
	}
	return false
}

func (s TokenState) String() string {
	return string(s)
}
