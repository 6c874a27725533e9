package dkg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nymtech/dkg-vkshare/internal/ledger"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

// runThroughSubmission drives every participant's state through the Dealer
// Filter and Share Deriver, returning the resulting states keyed by address.
// Shared test scaffolding for the Peer Validator tests below.
func runThroughSubmission(t *testing.T, e *testEpoch) map[types.DealerAddress]*State {
	t.Helper()
	ctx := context.Background()
	states := make(map[types.DealerAddress]*State, len(e.addresses))

	for _, addr := range e.addresses {
		state := e.newState(addr)
		filter := newTestFilter(t, e)
		deriver := newTestDeriver(t, e)

		maps, err := filter.Run(ctx, state)
		require.NoError(t, err)
		require.NoError(t, deriver.Run(ctx, state, maps))

		states[addr] = state
	}

	return states
}

func newTestValidator(e *testEpoch) *Validator {
	return &Validator{Constants: e.constants, Ledger: e.ledger, Logger: e.logger}
}

// TestValidatorHonestConsensus covers P6/scenario 1's validation phase:
// with every share honestly derived, every cross-vote resolves yes and
// every proposal passes.
func TestValidatorHonestConsensus(t *testing.T) {
	e := newTestEpoch(t)
	e.seedAllGood(t)
	states := runThroughSubmission(t, e)

	ctx := context.Background()
	for _, addr := range e.addresses {
		validator := newTestValidator(e)
		require.NoError(t, validator.Run(ctx, states[addr]))
		require.True(t, states[addr].VotedVKs)
	}

	for _, addr := range e.addresses {
		status, ok := e.ledger.ProposalStatusFor(addr)
		require.True(t, ok)
		require.Equal(t, ledger.ProposalPassed, status)
	}
}

// TestValidatorMalformedPeerShare covers P7/scenario 5: a peer's share
// that isn't valid base58 gets voted no by everyone else, and its
// proposal ends Rejected while the honest ones pass.
func TestValidatorMalformedPeerShare(t *testing.T) {
	e := newTestEpoch(t)
	e.seedAllGood(t)
	states := runThroughSubmission(t, e)

	shares, err := e.ledger.GetVerificationKeyShares(context.Background())
	require.NoError(t, err)
	var targetIdx types.NodeIndex
	for _, s := range shares {
		if s.Owner == "dealer-a" {
			targetIdx = s.NodeIndex
		}
	}
	_, err = e.ledger.SubmitVerificationKeyShare(context.Background(), "dealer-a", targetIdx, "not-valid-base58!!!")
	require.NoError(t, err)

	ctx := context.Background()
	for _, addr := range []types.DealerAddress{"dealer-b", "dealer-c"} {
		validator := newTestValidator(e)
		require.NoError(t, validator.Run(ctx, states[addr]))
	}

	status, ok := e.ledger.ProposalStatusFor("dealer-a")
	require.True(t, ok)
	require.Equal(t, ledger.ProposalRejected, status)

	for _, addr := range []types.DealerAddress{"dealer-b", "dealer-c"} {
		status, ok := e.ledger.ProposalStatusFor(addr)
		require.True(t, ok)
		require.Equal(t, ledger.ProposalPassed, status)
	}
}

// TestValidatorUnpairedShare covers P8/scenario 6: a peer's share parses
// but doesn't match the recovered public partials (here, it's literally
// another participant's share). Every other participant votes no on it;
// the honest proposals still pass.
func TestValidatorUnpairedShare(t *testing.T) {
	e := newTestEpoch(t)
	e.seedAllGood(t)
	states := runThroughSubmission(t, e)

	ctx := context.Background()
	shares, err := e.ledger.GetVerificationKeyShares(ctx)
	require.NoError(t, err)

	var aIdx types.NodeIndex
	var bShare string
	for _, s := range shares {
		if s.Owner == "dealer-a" {
			aIdx = s.NodeIndex
		}
		if s.Owner == "dealer-b" {
			bShare = s.Share
		}
	}
	_, err = e.ledger.SubmitVerificationKeyShare(ctx, "dealer-a", aIdx, bShare)
	require.NoError(t, err)

	for _, addr := range []types.DealerAddress{"dealer-b", "dealer-c"} {
		validator := newTestValidator(e)
		require.NoError(t, validator.Run(ctx, states[addr]))
	}

	status, ok := e.ledger.ProposalStatusFor("dealer-a")
	require.True(t, ok)
	require.Equal(t, ledger.ProposalRejected, status)

	for _, addr := range []types.DealerAddress{"dealer-b", "dealer-c"} {
		status, ok := e.ledger.ProposalStatusFor(addr)
		require.True(t, ok)
		require.Equal(t, ledger.ProposalPassed, status)
	}
}

func TestValidatorIsIdempotent(t *testing.T) {
	e := newTestEpoch(t)
	e.seedAllGood(t)
	states := runThroughSubmission(t, e)

	ctx := context.Background()
	validator := newTestValidator(e)
	require.NoError(t, validator.Run(ctx, states["dealer-b"]))
	require.NoError(t, validator.Run(ctx, states["dealer-b"]))
}
