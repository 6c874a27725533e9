package main

import (
	"github.com/drand/kyber"
	"github.com/drand/kyber/util/random"

	"github.com/nymtech/dkg-vkshare/internal/crypto/bte"
	"github.com/nymtech/dkg-vkshare/internal/crypto/dkgshare"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

// generateDealing builds one dealer's contribution to a single polynomial:
// a random degree-(threshold-1) secret polynomial, its Feldman commitments,
// and a BTE-encrypted evaluation for every receiver. This stands in for the
// earlier, out-of-scope dealing-generation phase (spec.md non-goals), the
// same way the pedersen DKG's Dealer.EncryptedDeals does for kyber's own
// DistKeyGenerator demo flow.
func generateDealing(
	params bte.Params,
	threshold int,
	receivers map[types.NodeIndex]bte.KeyPair,
) (*dkgshare.Dealing, error) {
	suite := params.Suite
	coeffs := make([]kyber.Scalar, threshold)
	for i := range coeffs {
		coeffs[i] = suite.Scalar().Pick(random.New())
	}

	commits := make([]kyber.Point, threshold)
	for i, c := range coeffs {
		commits[i] = suite.Point().Mul(c, nil)
	}

	ciphertexts := make(map[types.NodeIndex]bte.Ciphertext, len(receivers))
	for idx, kp := range receivers {
		share := evalPoly(suite, coeffs, int(idx))
		ct, err := bte.Encrypt(params, kp.Public, share, nil)
		if err != nil {
			return nil, err
		}
		ciphertexts[idx] = ct
	}

	return &dkgshare.Dealing{Commits: commits, Ciphertexts: ciphertexts}, nil
}

// evalPoly evaluates a secret polynomial (given by its coefficients,
// lowest degree first) at x = 1+i, matching dkgshare.PubPoly.Eval's
// indexing so dealing.Verify's Feldman check lines up.
func evalPoly(group kyber.Group, coeffs []kyber.Scalar, i int) kyber.Scalar {
	xi := group.Scalar().SetInt64(1 + int64(i))
	v := group.Scalar().Zero()
	for j := len(coeffs) - 1; j >= 0; j-- {
		v.Mul(v, xi)
		v.Add(v, coeffs[j])
	}
	return v
}
