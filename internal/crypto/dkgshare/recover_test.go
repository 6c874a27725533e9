package dkgshare

import (
	"testing"

	"github.com/drand/kyber"
	"github.com/drand/kyber/util/random"
	"github.com/stretchr/testify/require"

	"github.com/nymtech/dkg-vkshare/internal/crypto/bte"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

func TestCombineSharesRecoversSecret(t *testing.T) {
	params := testBTEParams()
	group := params.Suite

	secret := group.Scalar().Pick(random.New())
	coeffs := []kyber.Scalar{secret, group.Scalar().Pick(random.New())}

	shares := []PriShare{
		{Index: 1, Value: evalForTest(group, coeffs, 1)},
		{Index: 2, Value: evalForTest(group, coeffs, 2)},
	}

	recovered, err := CombineShares(group, shares)
	require.NoError(t, err)
	require.True(t, recovered.Equal(secret))
}

func TestCombineSharesEmptyInputErrors(t *testing.T) {
	params := testBTEParams()
	_, err := CombineShares(params.Suite, nil)
	require.Error(t, err)
}

func TestTryRecoverVerificationKeysAcrossDealers(t *testing.T) {
	params := testBTEParams()
	threshold := 2
	receivers := testReceivers(t, params, 3)
	indices := sortedIndices(receivers)

	dealerA := buildDealing(t, params, threshold, receivers)
	dealerB := buildDealing(t, params, threshold, receivers)

	recovered, err := TryRecoverVerificationKeys(params.Suite, []*Dealing{dealerA, dealerB}, threshold, indices)
	require.NoError(t, err)
	require.Len(t, recovered.Coefficients, threshold)
	require.Len(t, recovered.RecoveredPartials, len(indices))
	require.Len(t, recovered.ReceiverIndexOrder, len(indices))

	for i, idx := range recovered.ReceiverIndexOrder {
		combinedShare := combinedShareAt(t, params, []*Dealing{dealerA, dealerB}, idx)
		require.True(t, recovered.RecoveredPartials[i].Equal(combinedShare))
	}
}

func TestTryRecoverVerificationKeysRejectsNoDealings(t *testing.T) {
	params := testBTEParams()
	_, err := TryRecoverVerificationKeys(params.Suite, nil, 2, []types.NodeIndex{1, 2})
	require.Error(t, err)
}

// combinedShareAt evaluates every dealing's public polynomial at idx and
// sums the results, the direct (non-Lagrange) way of computing what
// TryRecoverVerificationKeys's combined polynomial should evaluate to.
func combinedShareAt(t *testing.T, params bte.Params, dealings []*Dealing, idx types.NodeIndex) kyber.Point {
	t.Helper()
	group := params.Suite
	acc := group.Point().Null()
	for _, d := range dealings {
		pub := NewPubPoly(group, d.Commits)
		acc = group.Point().Add(acc, pub.Eval(int(idx)))
	}
	return acc
}
