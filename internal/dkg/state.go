// Package dkg implements the four-stage verification-key pipeline: Dealer
// Filter, Share Deriver, Peer Validator, Finalizer, driven by a persistent
// per-epoch State. Grounded in the algorithm of
// validator-api/src/coconut/dkg/verification_key.rs (original_source) and in
// drand's epoch state-machine idiom (internal/dkg/dkg.go,
// internal/dkg/state_machine.go) for the Go shape of a checkpointed,
// idempotent stage sequence.
package dkg

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/nymtech/dkg-vkshare/internal/crypto/bte"
	"github.com/nymtech/dkg-vkshare/internal/crypto/coconut"
	"github.com/nymtech/dkg-vkshare/internal/crypto/dkgshare"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

// State is the per-participant, per-epoch state the four stages read and
// mutate, matching spec.md §3's State table.
type State struct {
	DKGKeyPair bte.KeyPair

	DealersByAddr map[types.DealerAddress]types.NodeIndex
	// DealersByIdx is the initial registration's reverse index, fixed at
	// NewState time. CurrentDealersByIdx, not this field, is what the stages
	// actually read once dealers start getting excluded.
	DealersByIdx map[types.NodeIndex]types.DealerAddress

	BadDealers map[types.DealerAddress]types.ComplaintReason

	RecoveredVKs []dkgshare.RecoveredVerificationKeys

	CoconutKeyPair  *coconut.SecretKey
	VerificationKey *coconut.VerificationKey

	ProposalID    uint64
	HasProposalID bool

	VotedVKs         bool
	ExecutedProposal bool

	OwnAddress types.DealerAddress

	// ThresholdValue is the epoch's reconstruction threshold t, fixed by the
	// upstream dealer-registration phase before this core ever runs.
	ThresholdValue int
}

// NewState constructs an empty State for a single epoch, seeded with the
// initial dealer registration, this participant's own BTE keypair, and the
// epoch's reconstruction threshold.
func NewState(
	own types.DealerAddress,
	dealersByAddr map[types.DealerAddress]types.NodeIndex,
	dkgKeyPair bte.KeyPair,
	threshold int,
) *State {
	dealersByIdx := make(map[types.NodeIndex]types.DealerAddress, len(dealersByAddr))
	for addr, idx := range dealersByAddr {
		dealersByIdx[idx] = addr
	}
	return &State{
		DKGKeyPair:     dkgKeyPair,
		DealersByAddr:  dealersByAddr,
		DealersByIdx:   dealersByIdx,
		BadDealers:     make(map[types.DealerAddress]types.ComplaintReason),
		OwnAddress:     own,
		ThresholdValue: threshold,
	}
}

// CurrentDealersByAddr returns the surviving dealer set: the initial
// registration minus every address currently in BadDealers. It is a
// snapshot of "as of now"; callers that need a stable view across a single
// stage invocation (e.g. the Dealer Filter) must take it once at the start
// of that invocation, not re-derive it mid-pass.
func (s *State) CurrentDealersByAddr() map[types.DealerAddress]types.NodeIndex {
	out := make(map[types.DealerAddress]types.NodeIndex, len(s.DealersByAddr))
	for addr, idx := range s.DealersByAddr {
		if _, bad := s.BadDealers[addr]; bad {
			continue
		}
		out[addr] = idx
	}
	return out
}

// CurrentDealersByIdx is CurrentDealersByAddr reindexed by NodeIndex.
func (s *State) CurrentDealersByIdx() map[types.NodeIndex]types.DealerAddress {
	byAddr := s.CurrentDealersByAddr()
	out := make(map[types.NodeIndex]types.DealerAddress, len(byAddr))
	for addr, idx := range byAddr {
		out[idx] = addr
	}
	return out
}

// ReceiverIndexValue returns this participant's own NodeIndex, looked up
// from DealersByAddr by OwnAddress.
func (s *State) ReceiverIndexValue() (types.NodeIndex, error) {
	idx, ok := s.DealersByAddr[s.OwnAddress]
	if !ok {
		return 0, errors.Errorf("dkg: own address %q not found among dealers", s.OwnAddress)
	}
	return idx, nil
}

// Threshold returns the epoch's reconstruction threshold, implementing
// spec.md §6's `state.threshold()`. It fails fatally if the upstream phase
// never set one, mirroring the Rust original's `Result`-returning accessor.
func (s *State) Threshold() (int, error) {
	if s.ThresholdValue <= 0 {
		return 0, errors.New("dkg: threshold not set on state")
	}
	return s.ThresholdValue, nil
}

// SortedReceiverIndices returns the surviving receivers' NodeIndex values in
// ascending order, the canonical iteration order every invariant in
// spec.md §3 assumes ("iteration is sorted by key for determinism").
func (s *State) SortedReceiverIndices() []types.NodeIndex {
	byIdx := s.CurrentDealersByIdx()
	out := make([]types.NodeIndex, 0, len(byIdx))
	for idx := range byIdx {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetRecoveredVKs records the per-polynomial recovered verification-key
// coefficients produced by the Share Deriver.
func (s *State) SetRecoveredVKs(recovered []dkgshare.RecoveredVerificationKeys) {
	s.RecoveredVKs = recovered
}

// SetCoconutKeyPair records the derived keypair. By contract (spec.md
// §4.2's Failure clause) this must only be called after the verification
// key share has been successfully submitted to the ledger, so that
// CoconutKeyPairIsSome only becomes true once the stage has fully
// committed — preserving I6 across a crash between persistence and
// submission.
func (s *State) SetCoconutKeyPair(sk coconut.SecretKey, vk coconut.VerificationKey) {
	s.CoconutKeyPair = &sk
	s.VerificationKey = &vk
}

// CoconutKeyPairIsSome reports whether the Share Deriver has already
// completed for this epoch.
func (s *State) CoconutKeyPairIsSome() bool {
	return s.CoconutKeyPair != nil
}

// SetProposalID records the on-chain id of this participant's own
// submitted verification-key-share proposal.
func (s *State) SetProposalID(id uint64) {
	s.ProposalID = id
	s.HasProposalID = true
}

// ProposalIDValue returns the stored proposal id, failing if the Share
// Deriver has not yet run.
func (s *State) ProposalIDValue() (uint64, error) {
	if !s.HasProposalID {
		return 0, errors.New("dkg: no proposal id recorded yet")
	}
	return s.ProposalID, nil
}
