package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nymtech/dkg-vkshare/internal/types"
)

// MockLedger is an in-memory Ledger shared by every simulated participant in
// a test or the demo harness, grounded in drand's client/mock.Client idiom:
// a plain mutex-guarded struct standing in for a real chain client, with no
// network or consensus machinery behind it.
//
// A proposal is rejected as soon as one "no" vote lands, and passes once it
// has collected RequiredYesVotes "yes" votes; NewMockLedger sets
// RequiredYesVotes to participantCount-1. Any caller may vote on any
// proposal, its owner included.
type MockLedger struct {
	mu sync.Mutex

	RequiredYesVotes int

	dealings   map[int]map[types.DealerAddress][]byte
	vkShares   map[types.DealerAddress]ContractVKShare
	proposals  map[uint64]*mockProposal
	byOwner    map[types.DealerAddress]uint64
	nextSeqNum uint64
}

type mockProposal struct {
	proposal Proposal
	yes      int
	no       int
	executed bool
}

// NewMockLedger constructs an empty MockLedger for a DKG epoch with the
// given number of participants.
func NewMockLedger(participantCount int) *MockLedger {
	required := participantCount - 1
	if required < 0 {
		required = 0
	}
	return &MockLedger{
		RequiredYesVotes: required,
		dealings:         make(map[int]map[types.DealerAddress][]byte),
		vkShares:         make(map[types.DealerAddress]ContractVKShare),
		proposals:        make(map[uint64]*mockProposal),
		byOwner:          make(map[types.DealerAddress]uint64),
	}
}

// PostDealing registers dealer's contribution to polynomial on the ledger,
// the test/harness-side counterpart of a dealer broadcasting its dealing in
// an earlier, out-of-scope DKG phase.
func (m *MockLedger) PostDealing(dealer types.DealerAddress, polynomial int, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dealings[polynomial] == nil {
		m.dealings[polynomial] = make(map[types.DealerAddress][]byte)
	}
	m.dealings[polynomial][dealer] = raw
}

func (m *MockLedger) GetDealings(_ context.Context, polynomial int) ([]ContractDealing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDealer := m.dealings[polynomial]
	out := make([]ContractDealing, 0, len(byDealer))
	dealers := make([]types.DealerAddress, 0, len(byDealer))
	for d := range byDealer {
		dealers = append(dealers, d)
	}
	sort.Slice(dealers, func(i, j int) bool { return dealers[i] < dealers[j] })
	for _, d := range dealers {
		out = append(out, ContractDealing{Dealer: d, Bytes: byDealer[d]})
	}
	return out, nil
}

func (m *MockLedger) GetVerificationKeyShares(_ context.Context) ([]ContractVKShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owners := make([]types.DealerAddress, 0, len(m.vkShares))
	for o := range m.vkShares {
		owners = append(owners, o)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	out := make([]ContractVKShare, 0, len(owners))
	for _, o := range owners {
		out = append(out, m.vkShares[o])
	}
	return out, nil
}

func (m *MockLedger) ListProposals(_ context.Context) ([]Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]uint64, 0, len(m.proposals))
	for id := range m.proposals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Proposal, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.proposals[id].proposal)
	}
	return out, nil
}

func (m *MockLedger) SubmitVerificationKeyShare(
	_ context.Context,
	owner types.DealerAddress,
	nodeIndex types.NodeIndex,
	share string,
) (TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.vkShares[owner] = ContractVKShare{Owner: owner, NodeIndex: nodeIndex, Share: share}

	m.nextSeqNum++
	id := m.nextSeqNum
	m.proposals[id] = &mockProposal{
		proposal: Proposal{
			ID:     id,
			Status: ProposalOpen,
			Msgs:   []CosmosMsg{{Owner: owner}},
		},
	}
	m.byOwner[owner] = id

	return TxResult{Logs: []EventLog{{
		EventType:  "wasm",
		Attributes: map[string]string{"DKG_PROPOSAL_ID": fmt.Sprintf("%d", id)},
	}}}, nil
}

func (m *MockLedger) VoteVerificationKeyShare(_ context.Context, proposalID uint64, vote bool) (TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proposals[proposalID]
	if !ok {
		return TxResult{}, fmt.Errorf("ledger: unknown proposal %d", proposalID)
	}
	if p.proposal.Status != ProposalOpen {
		return TxResult{}, nil
	}

	if vote {
		p.yes++
		if p.yes >= m.RequiredYesVotes {
			p.proposal.Status = ProposalPassed
		}
	} else {
		p.no++
		p.proposal.Status = ProposalRejected
	}

	return TxResult{}, nil
}

func (m *MockLedger) ExecuteVerificationKeyShare(_ context.Context, proposalID uint64) (TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proposals[proposalID]
	if !ok {
		return TxResult{}, fmt.Errorf("ledger: unknown proposal %d", proposalID)
	}
	if p.proposal.Status != ProposalPassed {
		return TxResult{}, fmt.Errorf("ledger: proposal %d has not passed (status %s)", proposalID, p.proposal.Status)
	}
	p.proposal.Status = ProposalExecuted
	p.executed = true

	return TxResult{}, nil
}

// ProposalStatusFor returns the current status of owner's submitted
// proposal, for test/harness assertions.
func (m *MockLedger) ProposalStatusFor(owner types.DealerAddress) (ProposalStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byOwner[owner]
	if !ok {
		return 0, false
	}
	return m.proposals[id].proposal.Status, true
}
