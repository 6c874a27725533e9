package dkgshare

import "github.com/drand/kyber"

// PubPoly is a public commitment polynomial: the Feldman commitments
// g^{a_0},...,g^{a_{t-1}} to a dealer's (or a combined) secret polynomial.
// It mirrors kyber/share.PubPoly's Eval/Commit idiom (and, before it,
// DeDiS-crypto/share's PubPoly) specialised to the NodeIndex-keyed
// receivers this protocol evaluates at.
type PubPoly struct {
	group   kyber.Group
	commits []kyber.Point
}

// NewPubPoly wraps a set of Feldman commitments as a public polynomial over
// group.
func NewPubPoly(group kyber.Group, commits []kyber.Point) *PubPoly {
	return &PubPoly{group: group, commits: commits}
}

// Threshold returns the number of coefficients (i.e. the reconstruction
// threshold) of the polynomial.
func (p *PubPoly) Threshold() int {
	return len(p.commits)
}

// Eval evaluates the public polynomial at x = i+1, the same indexing
// kyber/share uses so that index 0 never coincides with the secret itself.
func (p *PubPoly) Eval(i int) kyber.Point {
	xi := p.group.Scalar().SetInt64(1 + int64(i))
	v := p.group.Point().Null()
	for j := p.Threshold() - 1; j >= 0; j-- {
		v.Mul(xi, v)
		v.Add(v, p.commits[j])
	}
	return v
}

// Add returns the coefficient-wise sum of p and q: the combined public
// polynomial of two dealers contributing to the same receiver set.
func (p *PubPoly) Add(q *PubPoly) *PubPoly {
	sum := make([]kyber.Point, len(p.commits))
	for i := range p.commits {
		sum[i] = p.group.Point().Add(p.commits[i], q.commits[i])
	}
	return &PubPoly{group: p.group, commits: sum}
}

// Commits returns the raw Feldman coefficients.
func (p *PubPoly) Commits() []kyber.Point {
	return p.commits
}
