package dkg

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/nymtech/dkg-vkshare/internal/crypto/bte"
	"github.com/nymtech/dkg-vkshare/internal/crypto/dkgshare"
	"github.com/nymtech/dkg-vkshare/internal/ledger"
	"github.com/nymtech/dkg-vkshare/internal/log"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

// dealingCacheSize bounds the ARC cache below; dealings are small and a
// single epoch's worth easily fits, but an unbounded map would let a
// pathological ledger (many dealers x many polynomials, repeatedly
// refetched across restarts) grow the cache without limit.
const dealingCacheSize = 4096

type cachedDealing struct {
	rawHash [sha256.Size]byte
	dealing *dkgshare.Dealing
}

// Filter implements spec.md §4.1's Dealer Filter: for each of
// TOTAL_DEALINGS polynomials, fetch every dealer's posting from the
// ledger, parse and verify it, and drop anything that doesn't survive.
// Repeated calls re-fetch from the ledger and re-verify (the filter has no
// cache of "already decided" dealers); a small ARC cache keyed by
// (dealer, polynomial) only spares re-parsing bytes that haven't changed
// since the previous call, mirroring the caching idiom in
// client/cache.go's typedCache without changing the algorithm's observable
// behavior.
type Filter struct {
	Params        bte.Params
	TotalDealings int
	Ledger        ledger.Ledger
	Logger        log.Logger

	cache *lru.ARCCache
}

// NewFilter constructs a Filter. totalDealings is the protocol's
// TOTAL_DEALINGS constant.
func NewFilter(params bte.Params, totalDealings int, l ledger.Ledger, logger log.Logger) (*Filter, error) {
	cache, err := lru.NewARC(dealingCacheSize)
	if err != nil {
		return nil, err
	}
	return &Filter{
		Params:        params,
		TotalDealings: totalDealings,
		Ledger:        l,
		Logger:        logger,
		cache:         cache,
	}, nil
}

// Run executes one invocation of the Dealer Filter, implementing spec.md
// §4.1's algorithm including the cross-polynomial completeness pass (I3).
// It returns one DealingsMap per polynomial, indexed 0..TotalDealings.
func (f *Filter) Run(ctx context.Context, state *State) ([]map[types.NodeIndex]DealerDealing, error) {
	initialDealersByAddr := state.CurrentDealersByAddr()
	initialReceivers := state.SortedReceiverIndices()
	threshold, err := state.Threshold()
	if err != nil {
		return nil, err
	}

	dealingsMaps := make([]map[types.NodeIndex]DealerDealing, f.TotalDealings)

	for p := 0; p < f.TotalDealings; p++ {
		postings, err := f.Ledger.GetDealings(ctx, p)
		if err != nil {
			return nil, err
		}

		dealingsMap := make(map[types.NodeIndex]DealerDealing)
		for _, posting := range postings {
			dealing, err := f.parseOrCached(posting.Dealer, p, posting.Bytes)
			if err != nil {
				f.Logger.Debugw("dkg: dropping unparseable dealing", "dealer", posting.Dealer, "polynomial", p, "err", err)
				state.MarkBadDealer(posting.Dealer, types.MalformedDealing)
				continue
			}

			if err := dealing.Verify(f.Params, threshold, initialReceivers); err != nil {
				f.Logger.Debugw("dkg: dropping unverifiable dealing", "dealer", posting.Dealer, "polynomial", p, "err", err)
				state.MarkBadDealer(posting.Dealer, types.DealingVerificationError)
				continue
			}

			idx, ok := initialDealersByAddr[posting.Dealer]
			if !ok {
				continue
			}
			dealingsMap[idx] = DealerDealing{Dealer: posting.Dealer, Dealing: dealing}
		}

		dealingsMaps[p] = dealingsMap
	}

	for addr := range initialDealersByAddr {
		for _, dealingsMap := range dealingsMaps {
			if !containsDealer(dealingsMap, addr) {
				f.Logger.Debugw("dkg: dealer missing from at least one polynomial", "dealer", addr)
				state.MarkBadDealer(addr, types.MissingDealing)
				break
			}
		}
	}

	return dealingsMaps, nil
}

// DealerDealing pairs a parsed Dealing with the address that posted it, the
// value type of a DealingsMap.
type DealerDealing struct {
	Dealer  types.DealerAddress
	Dealing *dkgshare.Dealing
}

func containsDealer(m map[types.NodeIndex]DealerDealing, addr types.DealerAddress) bool {
	for _, dd := range m {
		if dd.Dealer == addr {
			return true
		}
	}
	return false
}

func (f *Filter) parseOrCached(dealer types.DealerAddress, polynomial int, raw []byte) (*dkgshare.Dealing, error) {
	key := dealerCacheKey(dealer, polynomial)
	hash := sha256.Sum256(raw)

	if cachedVal, ok := f.cache.Get(key); ok {
		cached := cachedVal.(cachedDealing)
		if cached.rawHash == hash {
			return cached.dealing, nil
		}
	}

	dealing, err := dkgshare.Parse(f.Params.Suite, raw)
	if err != nil {
		return nil, err
	}

	f.cache.Add(key, cachedDealing{rawHash: hash, dealing: dealing})
	return dealing, nil
}

func dealerCacheKey(dealer types.DealerAddress, polynomial int) string {
	return fmt.Sprintf("%s:%d", dealer, polynomial)
}
