package dkgshare

import (
	"sort"

	"github.com/drand/kyber"
	"github.com/pkg/errors"

	"github.com/nymtech/dkg-vkshare/internal/types"
)

// PriShare is a private evaluation p(i) of a secret-sharing polynomial,
// Lagrange-combinable with others of the same polynomial.
type PriShare struct {
	Index types.NodeIndex
	Value kyber.Scalar
}

// CombineShares Lagrange-interpolates the secret p(0) from a set of private
// shares, implementing spec.md §6's `combine_shares(shares,
// receiver_indices)`. The group's arithmetic is kyber's; the interpolation
// itself follows the classic numerator/denominator accumulation in
// DeDiS-crypto/share.RecoverSecret.
func CombineShares(group kyber.Group, shares []PriShare) (kyber.Scalar, error) {
	if len(shares) == 0 {
		return nil, errors.New("dkgshare: no shares to combine")
	}

	xs := make(map[types.NodeIndex]kyber.Scalar, len(shares))
	for _, s := range shares {
		xs[s.Index] = group.Scalar().SetInt64(1 + int64(s.Index))
	}

	acc := group.Scalar().Zero()
	num := group.Scalar()
	den := group.Scalar()
	tmp := group.Scalar()

	for _, si := range shares {
		num.Set(si.Value)
		den.One()
		xi := xs[si.Index]
		for _, sj := range shares {
			if sj.Index == si.Index {
				continue
			}
			xj := xs[sj.Index]
			num.Mul(num, xj)
			den.Mul(den, tmp.Sub(xj, xi))
		}
		acc.Add(acc, num.Div(num, den))
	}

	return acc, nil
}

// RecoveredVerificationKeys is the public output of recovering one
// polynomial's joint commitments: the combined Feldman coefficients, and
// the evaluation of the combined polynomial at each surviving receiver
// ("recovered partials"), in receiver order.
type RecoveredVerificationKeys struct {
	Coefficients       []kyber.Point
	RecoveredPartials  []kyber.Point
	ReceiverIndexOrder []types.NodeIndex
}

// TryRecoverVerificationKeys combines the public (Feldman) polynomials of
// every surviving dealing for one of the TOTAL_DEALINGS polynomials into a
// single joint public polynomial, then evaluates it at every surviving
// receiver index. It implements spec.md §6's
// `try_recover_verification_keys(dealings, threshold, receivers_by_idx)` and
// enforces invariant I5 (exactly `threshold` coefficients, one partial per
// receiver).
func TryRecoverVerificationKeys(
	group kyber.Group,
	dealings []*Dealing,
	threshold int,
	receivers []types.NodeIndex,
) (RecoveredVerificationKeys, error) {
	if len(dealings) == 0 {
		return RecoveredVerificationKeys{}, errors.New("dkgshare: no surviving dealings to recover from")
	}

	combined := NewPubPoly(group, dealings[0].Commits)
	for _, d := range dealings[1:] {
		if len(d.Commits) != threshold {
			return RecoveredVerificationKeys{}, errors.Errorf(
				"dkgshare: dealing has %d commitments, want %d", len(d.Commits), threshold,
			)
		}
		combined = combined.Add(NewPubPoly(group, d.Commits))
	}
	if combined.Threshold() != threshold {
		return RecoveredVerificationKeys{}, errors.Errorf(
			"dkgshare: combined polynomial has %d commitments, want %d", combined.Threshold(), threshold,
		)
	}

	ordered := make([]types.NodeIndex, len(receivers))
	copy(ordered, receivers)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	partials := make([]kyber.Point, len(ordered))
	for i, idx := range ordered {
		partials[i] = combined.Eval(int(idx))
	}

	return RecoveredVerificationKeys{
		Coefficients:       combined.Commits(),
		RecoveredPartials:  partials,
		ReceiverIndexOrder: ordered,
	}, nil
}
