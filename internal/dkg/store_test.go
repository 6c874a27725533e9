package dkg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nymtech/dkg-vkshare/internal/crypto/coconut"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

// TestBoltStoreRoundTripsDerivedState covers the checkpoint path once a
// participant has actually derived a keypair: RecoveredVKs, the Coconut
// keypair, and every flag the stages gate on all have to survive a
// save/Get cycle intact for I6 to hold across a restart.
func TestBoltStoreRoundTripsDerivedState(t *testing.T) {
	e := newTestEpoch(t)
	e.seedAllGood(t)
	ctx := context.Background()

	state := e.newState("dealer-b")
	maps, err := newTestFilter(t, e).Run(ctx, state)
	require.NoError(t, err)
	require.NoError(t, newTestDeriver(t, e).Run(ctx, state, maps))
	require.NoError(t, newTestValidator(e).Run(ctx, state))

	params, err := coconut.NewParameters(e.constants.PublicAttributes + e.constants.PrivateAttributes)
	require.NoError(t, err)

	store, err := NewBoltStore(t.TempDir(), e.params.Suite, params.Group(), e.logger)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save("epoch-1", state))

	restored, err := store.Get("epoch-1", e.dkgKeys["dealer-b"])
	require.NoError(t, err)
	require.NotNil(t, restored)

	require.Equal(t, state.OwnAddress, restored.OwnAddress)
	require.Equal(t, state.ThresholdValue, restored.ThresholdValue)
	require.Equal(t, state.VotedVKs, restored.VotedVKs)
	require.Equal(t, state.ExecutedProposal, restored.ExecutedProposal)
	require.Equal(t, state.BadDealers, restored.BadDealers)

	id, err := state.ProposalIDValue()
	require.NoError(t, err)
	restoredID, err := restored.ProposalIDValue()
	require.NoError(t, err)
	require.Equal(t, id, restoredID)

	require.True(t, restored.CoconutKeyPairIsSome())
	require.True(t, state.CoconutKeyPair.X.Equal(restored.CoconutKeyPair.X))
	require.True(t, state.VerificationKey.Alpha.Equal(restored.VerificationKey.Alpha))
	require.Len(t, restored.VerificationKey.Beta, len(state.VerificationKey.Beta))
	for i := range state.VerificationKey.Beta {
		require.True(t, state.VerificationKey.Beta[i].Equal(restored.VerificationKey.Beta[i]))
	}

	require.Len(t, restored.RecoveredVKs, len(state.RecoveredVKs))
	for i := range state.RecoveredVKs {
		require.Equal(t, state.RecoveredVKs[i].ReceiverIndexOrder, restored.RecoveredVKs[i].ReceiverIndexOrder)
		require.Len(t, restored.RecoveredVKs[i].Coefficients, len(state.RecoveredVKs[i].Coefficients))
		for j := range state.RecoveredVKs[i].Coefficients {
			require.True(t, state.RecoveredVKs[i].Coefficients[j].Equal(restored.RecoveredVKs[i].Coefficients[j]))
		}
	}
}

// TestBoltStoreGetMissingEpochReturnsNil covers the not-yet-checkpointed
// case: Get on an epoch id nothing has saved returns a nil state and no
// error, so callers know to start a fresh one.
func TestBoltStoreGetMissingEpochReturnsNil(t *testing.T) {
	e := newTestEpoch(t)
	params, err := coconut.NewParameters(e.constants.PublicAttributes + e.constants.PrivateAttributes)
	require.NoError(t, err)

	store, err := NewBoltStore(t.TempDir(), e.params.Suite, params.Group(), e.logger)
	require.NoError(t, err)
	defer store.Close()

	state, err := store.Get("never-saved", e.dkgKeys["dealer-a"])
	require.NoError(t, err)
	require.Nil(t, state)
}

// TestBoltStorePersistsAcrossReopen covers the actual restart scenario the
// store exists for: closing the db and reopening the same file finds what
// was saved before the close.
func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	e := newTestEpoch(t)
	e.seedWithRawCorruption(t, "dealer-a", truncateLastByte)

	state := e.newState("dealer-b")
	filter := newTestFilter(t, e)
	_, err := filter.Run(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, types.MissingDealing, state.BadDealers["dealer-a"])

	params, err := coconut.NewParameters(e.constants.PublicAttributes + e.constants.PrivateAttributes)
	require.NoError(t, err)

	dir := t.TempDir()
	store, err := NewBoltStore(dir, e.params.Suite, params.Group(), e.logger)
	require.NoError(t, err)
	require.NoError(t, store.Save("epoch-2", state))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir, e.params.Suite, params.Group(), e.logger)
	require.NoError(t, err)
	defer reopened.Close()

	restored, err := reopened.Get("epoch-2", e.dkgKeys["dealer-b"])
	require.NoError(t, err)
	require.NotNil(t, restored)
	require.Equal(t, types.MissingDealing, restored.BadDealers["dealer-a"])
}
