package dkg

import "github.com/nymtech/dkg-vkshare/internal/types"

// MarkBadDealer records addr as having committed reason. The call always
// overwrites any previous reason for addr: invariant I1 (once bad, always
// bad) only requires that addr stay present in BadDealers, not that the
// reason be sticky. The filter's two-pass classification (P2) falls out of
// this together with CurrentDealersByAddr's snapshot-at-call-start
// semantics, not from any stickiness here: a dealer already bad when a
// filter pass begins is excluded from that pass's cross-polynomial
// completeness recheck, so only a freshly-observed verification failure can
// overwrite its reason on a later pass.
func (s *State) MarkBadDealer(addr types.DealerAddress, reason types.ComplaintReason) {
	if s.BadDealers == nil {
		s.BadDealers = make(map[types.DealerAddress]types.ComplaintReason)
	}
	s.BadDealers[addr] = reason
}
