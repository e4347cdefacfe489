package domain

// transitions maps a current status to the set of statuses it may move to.
// A status with an empty set is terminal.
type transitions[S ~string] map[S]map[S]struct{}

func (t transitions[S]) allows(from, to S) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

func (t transitions[S]) terminal(s S) bool {
	allowed, ok := t[s]
	return ok && len(allowed) == 0
}

func (t transitions[S]) check(machine string, from, to S) error {
	if !t.allows(from, to) {
		return &StateTransitionError{Machine: machine, From: string(from), To: string(to)}
	}
	return nil
}
