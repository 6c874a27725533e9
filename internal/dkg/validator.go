package dkg

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/nymtech/dkg-vkshare/internal/crypto/coconut"
	"github.com/nymtech/dkg-vkshare/internal/ledger"
	"github.com/nymtech/dkg-vkshare/internal/log"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

// Validator implements spec.md §4.3's Peer Validator: it votes on every
// open verification-key-share proposal on the ledger, this participant's
// own included, by comparing the submitted share against the locally
// recovered public partials. Vote failures against different proposals are independent of
// one another, so they're aggregated with go-multierror rather than
// aborting the whole pass on the first ledger hiccup.
type Validator struct {
	Constants types.Constants
	Ledger    ledger.Ledger
	Logger    log.Logger
}

// Run executes one invocation of the Peer Validator, short-circuiting on
// state.VotedVKs per I6.
func (v *Validator) Run(ctx context.Context, state *State) error {
	if state.VotedVKs {
		return nil
	}

	shares, err := v.Ledger.GetVerificationKeyShares(ctx)
	if err != nil {
		return err
	}

	proposals, err := v.Ledger.ListProposals(ctx)
	if err != nil {
		return err
	}

	proposalIDs := make(map[types.DealerAddress]uint64)
	for _, p := range proposals {
		if p.Status != ledger.ProposalOpen {
			continue
		}
		owner, ok := ledger.OwnerFromCosmosMsgs(p.Msgs)
		if !ok {
			continue
		}
		proposalIDs[owner] = p.ID
	}

	receivers := state.SortedReceiverIndices()
	perPolynomial := coconut.RecoveredPartialsOf(state.RecoveredVKs)
	transposed := coconut.TransposeMatrix(perPolynomial)

	params, err := coconut.NewParameters(v.Constants.PublicAttributes + v.Constants.PrivateAttributes)
	if err != nil {
		return err
	}

	var result *multierror.Error

	for _, share := range shares {
		proposalID, ok := proposalIDs[share.Owner]
		if !ok {
			continue
		}

		vk, err := coconut.FromBase58(params, v.Constants.PublicAttributes+v.Constants.PrivateAttributes, share.Share)
		if err != nil {
			if _, voteErr := v.Ledger.VoteVerificationKeyShare(ctx, proposalID, false); voteErr != nil {
				result = multierror.Append(result, voteErr)
			}
			continue
		}

		idx := indexOf(receivers, share.NodeIndex)
		if idx < 0 {
			continue
		}
		if idx >= len(transposed) {
			continue
		}

		matches := coconut.CheckVKPairing(transposed[idx], vk)
		if _, voteErr := v.Ledger.VoteVerificationKeyShare(ctx, proposalID, matches); voteErr != nil {
			result = multierror.Append(result, voteErr)
		}
	}

	state.VotedVKs = true
	v.Logger.Infow("dkg: validated peer verification keys")

	return result.ErrorOrNil()
}

func indexOf(s []types.NodeIndex, v types.NodeIndex) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
