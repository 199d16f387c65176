package orchestrator

// State is a step of a comparison run.
type State int

const (
	StateResolveV1 State = iota + 1
	StateProvisionV1
	StateRunNotebooksV1
	StateLocateV1
	StateResolveV2
	StateProvisionV2
	StateRunNotebooksV2
	StateLocateV2
	StatePairwiseCompare
	StateDone
	StateAborted
)

var stateNames = map[State]string{
	StateResolveV1:       "ResolveV1",
	StateProvisionV1:     "ProvisionV1",
	StateRunNotebooksV1:  "RunNotebooksV1",
	StateLocateV1:        "LocateV1",
	StateResolveV2:       "ResolveV2",
	StateProvisionV2:     "ProvisionV2",
	StateRunNotebooksV2:  "RunNotebooksV2",
	StateLocateV2:        "LocateV2",
	StatePairwiseCompare: "PairwiseCompare",
	StateDone:            "Done",
	StateAborted:         "Aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}
