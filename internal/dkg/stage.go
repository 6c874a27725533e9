package dkg

import "context"

// Status is a participant's position in the per-epoch stage sequence,
// following the same Status-as-uint32-with-String idiom as drand's DKG
// state machine (internal/dkg/state_machine.go).
type Status uint32

const (
	// AwaitingDealings is the state every participant starts an epoch in:
	// dealers have posted (or are posting) their dealings, but this
	// participant hasn't filtered them yet.
	AwaitingDealings Status = iota
	// Filtered means the Dealer Filter has run at least once this epoch.
	Filtered
	// DerivedAndSubmitted means the Share Deriver has completed: a keypair
	// is persisted and its verification-key share is on-chain.
	DerivedAndSubmitted
	// Voted means the Peer Validator has cast every vote it's going to cast
	// this epoch.
	Voted
	// Executed means the Finalizer has executed this participant's own
	// proposal.
	Executed
	// Done is the terminal state.
	Done
)

func (s Status) String() string {
	switch s {
	case AwaitingDealings:
		return "AwaitingDealings"
	case Filtered:
		return "Filtered"
	case DerivedAndSubmitted:
		return "Derived&Submitted"
	case Voted:
		return "Voted"
	case Executed:
		return "Executed"
	case Done:
		return "Done"
	default:
		panic("dkg: unknown status")
	}
}

// Pipeline wires the four stages together behind a single idempotent
// Advance call, implementing spec.md §4.5's stage machine. Each stage's own
// idempotency flag (not the Status Advance returns) is the actual source of
// truth for what has run; Status only reports progress to callers.
type Pipeline struct {
	Filter    *Filter
	Deriver   *Deriver
	Validator *Validator
	Finalizer *Finalizer
}

// Advance runs the Dealer Filter and then every later stage that hasn't
// completed yet, in order, and returns the resulting Status. The Filter has
// no completion flag and re-reads the ledger on every call; the Deriver,
// Validator and Finalizer short-circuit on their own flags, so calling
// Advance again after it returns Done submits, votes and executes nothing.
func (p *Pipeline) Advance(ctx context.Context, state *State) (Status, error) {
	dealingsMaps, err := p.Filter.Run(ctx, state)
	if err != nil {
		return AwaitingDealings, err
	}
	status := Filtered

	if err := p.Deriver.Run(ctx, state, dealingsMaps); err != nil {
		return status, err
	}
	status = DerivedAndSubmitted

	if err := p.Validator.Run(ctx, state); err != nil {
		return status, err
	}
	status = Voted

	if err := p.Finalizer.Run(ctx, state); err != nil {
		return status, err
	}

	return Done, nil
}
