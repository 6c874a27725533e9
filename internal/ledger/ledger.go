// Package ledger defines the coordination-ledger capability interface
// consumed by the verification-key pipeline (spec.md §6) and an in-memory
// mock implementation of it for tests and the demo harness. Production
// callers are expected to supply their own Ledger backed by a real chain
// client; this package never dials one, mirroring how drand's
// client/mock.Client stands in for a real randomness-beacon client in
// tests without ever touching the network.
package ledger

import (
	"context"

	"github.com/nymtech/dkg-vkshare/internal/types"
)

// ProposalStatus mirrors cw3's governance proposal status enum closely
// enough for this module's purposes.
type ProposalStatus int

const (
	ProposalOpen ProposalStatus = iota + 1
	ProposalPassed
	ProposalRejected
	ProposalExecuted
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalOpen:
		return "Open"
	case ProposalPassed:
		return "Passed"
	case ProposalRejected:
		return "Rejected"
	case ProposalExecuted:
		return "Executed"
	default:
		panic("ledger: unknown proposal status")
	}
}

// ContractDealing is one dealer's raw posting for a single polynomial.
type ContractDealing struct {
	Dealer types.DealerAddress
	Bytes  []byte
}

// CosmosMsg is a minimal stand-in for a governance proposal's wrapped
// execute message: protocol-specific encoding, treated as opaque except for
// the owner field OwnerFromCosmosMsgs extracts.
type CosmosMsg struct {
	Owner types.DealerAddress
}

// Proposal is a governance proposal gating acceptance of a submitted
// verification-key share.
type Proposal struct {
	ID     uint64
	Status ProposalStatus
	Msgs   []CosmosMsg
}

// ContractVKShare is one participant's published verification-key share.
type ContractVKShare struct {
	Owner     types.DealerAddress
	NodeIndex types.NodeIndex
	Share     string // base58-encoded
}

// TxResult is the subset of a transaction's result this module reads: the
// "wasm" event's attributes, used to recover DKG_PROPOSAL_ID.
type TxResult struct {
	Logs []EventLog
}

// EventLog groups attributes under one event type, e.g. "wasm".
type EventLog struct {
	EventType  string
	Attributes map[string]string
}

// FindAttribute implements spec.md §6's `find_attribute(logs, "wasm",
// "DKG_PROPOSAL_ID") -> string`.
func FindAttribute(logs []EventLog, eventType, key string) (string, bool) {
	for _, l := range logs {
		if l.EventType != eventType {
			continue
		}
		if v, ok := l.Attributes[key]; ok {
			return v, true
		}
	}
	return "", false
}

// OwnerFromCosmosMsgs implements spec.md §6's `owner_from_cosmos_msgs(msgs)`:
// it extracts the owner address a proposal's execute message targets. Real
// proposals carry exactly one relevant wasm-execute message; this returns
// the first msg's owner, mirroring the protocol-specific single-message
// convention the spec treats as given.
func OwnerFromCosmosMsgs(msgs []CosmosMsg) (types.DealerAddress, bool) {
	if len(msgs) == 0 {
		return "", false
	}
	return msgs[0].Owner, true
}

// Ledger is the capability interface consumed by the four pipeline stages.
// It corresponds one-to-one with spec.md §6's required operation set.
type Ledger interface {
	GetDealings(ctx context.Context, polynomial int) ([]ContractDealing, error)
	GetVerificationKeyShares(ctx context.Context) ([]ContractVKShare, error)
	ListProposals(ctx context.Context) ([]Proposal, error)
	SubmitVerificationKeyShare(ctx context.Context, owner types.DealerAddress, nodeIndex types.NodeIndex, share string) (TxResult, error)
	VoteVerificationKeyShare(ctx context.Context, proposalID uint64, vote bool) (TxResult, error)
	ExecuteVerificationKeyShare(ctx context.Context, proposalID uint64) (TxResult, error)
}
