package dkg

import (
	"context"

	"github.com/nymtech/dkg-vkshare/internal/ledger"
	"github.com/nymtech/dkg-vkshare/internal/log"
)

// Finalizer implements spec.md §4.4: it executes this participant's own
// passed proposal exactly once per epoch.
type Finalizer struct {
	Ledger ledger.Ledger
	Logger log.Logger
}

// Run executes the Finalizer, short-circuiting on state.ExecutedProposal
// per I6. It does not inspect proposal status first: executing a proposal
// that has not passed is a fatal ledger error by design, and the caller's
// surrounding epoch orchestration is relied on to only invoke this after
// voting has concluded.
func (f *Finalizer) Run(ctx context.Context, state *State) error {
	if state.ExecutedProposal {
		return nil
	}

	proposalID, err := state.ProposalIDValue()
	if err != nil {
		return err
	}

	if _, err := f.Ledger.ExecuteVerificationKeyShare(ctx, proposalID); err != nil {
		return err
	}

	state.ExecutedProposal = true
	f.Logger.Infow("dkg: finalized own verification key on chain", "proposal_id", proposalID)

	return nil
}
