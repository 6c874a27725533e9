package dkg

import (
	"testing"

	"github.com/drand/kyber"
	"github.com/drand/kyber/util/random"
	"github.com/stretchr/testify/require"

	"github.com/nymtech/dkg-vkshare/internal/crypto/bte"
	"github.com/nymtech/dkg-vkshare/internal/crypto/dkgshare"
	"github.com/nymtech/dkg-vkshare/internal/ledger"
	"github.com/nymtech/dkg-vkshare/internal/log"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

// testEpoch bundles everything three simulated participants need to drive
// the pipeline against one shared mock ledger, the Go-test-local
// counterpart of cmd/dkg-harness's wiring.
type testEpoch struct {
	params        bte.Params
	threshold     int
	constants     types.Constants
	addresses     []types.DealerAddress
	dealersByAddr map[types.DealerAddress]types.NodeIndex
	dkgKeys       map[types.DealerAddress]bte.KeyPair
	ledger        *ledger.MockLedger
	logger        log.Logger
}

func newTestEpoch(t *testing.T) *testEpoch {
	t.Helper()

	params := bte.Setup()
	addresses := []types.DealerAddress{"dealer-a", "dealer-b", "dealer-c"}
	dealersByAddr := make(map[types.DealerAddress]types.NodeIndex, len(addresses))
	dkgKeys := make(map[types.DealerAddress]bte.KeyPair, len(addresses))
	for i, addr := range addresses {
		dealersByAddr[addr] = types.NodeIndex(i + 1)
		dkgKeys[addr] = bte.NewKeyPair(params)
	}

	return &testEpoch{
		params:        params,
		threshold:     2,
		constants:     types.DefaultConstants(),
		addresses:     addresses,
		dealersByAddr: dealersByAddr,
		dkgKeys:       dkgKeys,
		ledger:        ledger.NewMockLedger(len(addresses)),
		logger:        log.DefaultLogger(),
	}
}

func (e *testEpoch) newState(addr types.DealerAddress) *State {
	return NewState(addr, e.dealersByAddr, e.dkgKeys[addr], e.threshold)
}

func (e *testEpoch) receivers() map[types.NodeIndex]bte.KeyPair {
	out := make(map[types.NodeIndex]bte.KeyPair, len(e.dkgKeys))
	for addr, idx := range e.dealersByAddr {
		out[idx] = e.dkgKeys[addr]
	}
	return out
}

// generateTestDealing is the test-local twin of
// cmd/dkg-harness/dealing_gen.go's generateDealing: a random degree-(threshold-1) polynomial, its
// Feldman commitments, and a BTE-encrypted evaluation per receiver.
func generateTestDealing(t *testing.T, e *testEpoch) *dkgshare.Dealing {
	t.Helper()

	group := e.params.Suite
	coeffs := make([]kyber.Scalar, e.threshold)
	for i := range coeffs {
		coeffs[i] = group.Scalar().Pick(random.New())
	}

	commits := make([]kyber.Point, e.threshold)
	for i, c := range coeffs {
		commits[i] = group.Point().Mul(c, nil)
	}

	ciphertexts := make(map[types.NodeIndex]bte.Ciphertext, len(e.dealersByAddr))
	for idx, kp := range e.receivers() {
		share := evalTestPoly(group, coeffs, int(idx))
		ct, err := bte.Encrypt(e.params, kp.Public, share, nil)
		require.NoError(t, err)
		ciphertexts[idx] = ct
	}

	return &dkgshare.Dealing{Commits: commits, Ciphertexts: ciphertexts}
}

func evalTestPoly(group kyber.Group, coeffs []kyber.Scalar, i int) kyber.Scalar {
	xi := group.Scalar().SetInt64(1 + int64(i))
	v := group.Scalar().Zero()
	for j := len(coeffs) - 1; j >= 0; j-- {
		v.Mul(v, xi)
		v.Add(v, coeffs[j])
	}
	return v
}

// seedAllGood posts a well-formed dealing from every address for every
// polynomial.
func (e *testEpoch) seedAllGood(t *testing.T) {
	t.Helper()
	for p := 0; p < e.constants.TotalDealings; p++ {
		for _, addr := range e.addresses {
			dealing := generateTestDealing(t, e)
			raw, err := dealing.Marshal()
			require.NoError(t, err)
			e.ledger.PostDealing(addr, p, raw)
		}
	}
}

// seedWithRawCorruption posts well-formed dealings for every address and
// polynomial, then applies corrupt to target's raw posted bytes on every
// polynomial. Use for corruptions that make Parse fail (e.g. truncation).
func (e *testEpoch) seedWithRawCorruption(t *testing.T, target types.DealerAddress, corrupt func(raw []byte) []byte) {
	t.Helper()
	for p := 0; p < e.constants.TotalDealings; p++ {
		for _, addr := range e.addresses {
			dealing := generateTestDealing(t, e)
			raw, err := dealing.Marshal()
			require.NoError(t, err)
			if addr == target {
				raw = corrupt(raw)
			}
			e.ledger.PostDealing(addr, p, raw)
		}
	}
}

// seedWithRawCorruptionOnPolynomial is like seedWithRawCorruption but only
// mangles target's posting for a single polynomial index.
func (e *testEpoch) seedWithRawCorruptionOnPolynomial(
	t *testing.T,
	target types.DealerAddress,
	polynomial int,
	corrupt func(raw []byte) []byte,
) {
	t.Helper()
	for p := 0; p < e.constants.TotalDealings; p++ {
		for _, addr := range e.addresses {
			dealing := generateTestDealing(t, e)
			raw, err := dealing.Marshal()
			require.NoError(t, err)
			if addr == target && p == polynomial {
				raw = corrupt(raw)
			}
			e.ledger.PostDealing(addr, p, raw)
		}
	}
}

// seedWithVerificationFailureOnPolynomial posts well-formed dealings
// everywhere, except target's posting on polynomial gets one Feldman
// commitment replaced with an unrelated point: bytes still parse cleanly,
// but Dealing.Verify's commitment check fails for every receiver.
func (e *testEpoch) seedWithVerificationFailureOnPolynomial(t *testing.T, target types.DealerAddress, polynomial int) {
	t.Helper()
	group := e.params.Suite
	for p := 0; p < e.constants.TotalDealings; p++ {
		for _, addr := range e.addresses {
			dealing := generateTestDealing(t, e)
			if addr == target && p == polynomial {
				dealing.Commits[0] = group.Point().Pick(random.New())
			}
			raw, err := dealing.Marshal()
			require.NoError(t, err)
			e.ledger.PostDealing(addr, p, raw)
		}
	}
}

func truncateLastByte(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	return raw[:len(raw)-1]
}
