package dkg

import (
	"context"
	"strconv"

	"github.com/drand/kyber"
	"github.com/pkg/errors"

	"github.com/nymtech/dkg-vkshare/internal/crypto/bte"
	"github.com/nymtech/dkg-vkshare/internal/crypto/coconut"
	"github.com/nymtech/dkg-vkshare/internal/crypto/dkgshare"
	"github.com/nymtech/dkg-vkshare/internal/keystore"
	"github.com/nymtech/dkg-vkshare/internal/ledger"
	"github.com/nymtech/dkg-vkshare/internal/log"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

// Deriver implements spec.md §4.2's Share Deriver: it combines the
// surviving dealings into this participant's Coconut keypair, persists it,
// and submits the verification-key share proposal.
type Deriver struct {
	Params      bte.Params
	Constants   types.Constants
	Ledger      ledger.Ledger
	Logger      log.Logger
	KeyPairPath keystore.KeyPairPath
}

func parseProposalID(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}

// Run executes one invocation of the Share Deriver against the
// already-filtered dealingsMaps, implementing I6 via
// State.CoconutKeyPairIsSome as the idempotency gate.
func (d *Deriver) Run(ctx context.Context, state *State, dealingsMaps []map[types.NodeIndex]DealerDealing) error {
	if state.CoconutKeyPairIsSome() {
		return nil
	}

	threshold, err := state.Threshold()
	if err != nil {
		return err
	}

	filteredByAddr := state.CurrentDealersByAddr()
	receivers := state.SortedReceiverIndices()
	ownIndex, err := state.ReceiverIndexValue()
	if err != nil {
		return err
	}

	scalars := make([]kyber.Scalar, 0, len(dealingsMaps))
	recoveredVKs := make([]dkgshare.RecoveredVerificationKeys, 0, len(dealingsMaps))

	for _, dealingsMap := range dealingsMaps {
		filtered := make([]*dkgshare.Dealing, 0, len(dealingsMap))
		for _, dd := range dealingsMap {
			if _, ok := filteredByAddr[dd.Dealer]; ok {
				filtered = append(filtered, dd.Dealing)
			}
		}

		if len(filtered) < threshold {
			return errors.Errorf("dkg: only %d surviving dealings, threshold is %d", len(filtered), threshold)
		}

		recovered, err := dkgshare.TryRecoverVerificationKeys(d.Params.Suite, filtered, threshold, receivers)
		if err != nil {
			return errors.Wrap(err, "dkg: recovering verification keys")
		}
		recoveredVKs = append(recoveredVKs, recovered)

		shares := make([]dkgshare.PriShare, 0, len(filtered))
		for _, dealing := range filtered {
			ct, ok := dealing.Ciphertexts[ownIndex]
			if !ok {
				return errors.Errorf("dkg: no ciphertext addressed to our own index %d", ownIndex)
			}
			value, err := bte.DecryptShare(d.Params, state.DKGKeyPair.Private, ct, nil)
			if err != nil {
				return errors.Wrap(err, "dkg: decrypting own share")
			}
			shares = append(shares, dkgshare.PriShare{Index: ownIndex, Value: value})
		}

		scalar, err := dkgshare.CombineShares(d.Params.Suite, shares)
		if err != nil {
			return errors.Wrap(err, "dkg: combining shares")
		}
		scalars = append(scalars, scalar)
	}

	state.SetRecoveredVKs(recoveredVKs)

	if len(scalars) != d.Constants.TotalDealings {
		return errors.Errorf(
			"dkg: recovered %d polynomial scalars, want %d (TOTAL_DEALINGS)", len(scalars), d.Constants.TotalDealings,
		)
	}

	// By convention the last polynomial's recovered scalar is the top-level
	// secret-key component x; the rest become the per-attribute y_i.
	x := scalars[len(scalars)-1]
	y := scalars[:len(scalars)-1]

	params, err := coconut.NewParameters(d.Constants.PublicAttributes + d.Constants.PrivateAttributes)
	if err != nil {
		return errors.Wrap(err, "dkg: constructing coconut parameters")
	}

	sk := coconut.FromRaw(x, y)
	vk := sk.VerificationKey(params)

	if err := keystore.StoreKeyPair(keystore.KeyPair{SecretKey: sk, VerificationKey: vk}, d.KeyPairPath); err != nil {
		return errors.Wrap(err, "dkg: persisting keypair")
	}

	encoded, err := vk.ToBase58()
	if err != nil {
		return errors.Wrap(err, "dkg: encoding verification key")
	}

	res, err := d.Ledger.SubmitVerificationKeyShare(ctx, state.OwnAddress, ownIndex, encoded)
	if err != nil {
		return errors.Wrap(err, "dkg: submitting verification key share")
	}

	raw, ok := ledger.FindAttribute(res.Logs, "wasm", "DKG_PROPOSAL_ID")
	if !ok {
		return errors.New("dkg: proposal id not found in submission logs")
	}
	proposalID, err := parseProposalID(raw)
	if err != nil {
		return errors.Wrap(err, "dkg: proposal id could not be parsed")
	}
	state.SetProposalID(proposalID)

	// Only becomes observable to CoconutKeyPairIsSome once submission has
	// succeeded, so a crash between persistence and submission is retried
	// by the next invocation rather than silently skipped (I6).
	state.SetCoconutKeyPair(sk, vk)

	d.Logger.Infow("dkg: submitted own verification key", "proposal_id", proposalID)

	return nil
}
