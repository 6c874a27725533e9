// Package coconut implements the thin slice of the Coconut threshold
// credential scheme this module's core needs: assembling the participant's
// secret-key components into a SecretKey/VerificationKey pair, and checking
// a peer's published VerificationKey against the locally recovered public
// polynomial coefficients. The full anonymous-credential issuance/showing
// protocol is out of scope (spec.md non-goals); this package only carries
// the §6 contract: `Parameters::new`, `SecretKey::from_raw`,
// `sk.verification_key`, `VerificationKey::{to_bs58,try_from_bs58}`,
// `check_vk_pairing`.
package coconut

import (
	"github.com/drand/kyber"
	bls12381 "github.com/drand/kyber-bls12381"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/nymtech/dkg-vkshare/internal/crypto/dkgshare"
)

// Parameters fixes the pairing group a credential scheme's keys live in:
// G2 for verification-key components, matching the pairing group used by
// kevincharm-kyber's bn254 adapter and DeDiS-crypto's BLS scheme, here
// backed by BLS12-381 (the same curve drand's randomness beacon uses).
type Parameters struct {
	Attributes int
	group      kyber.Group
}

// NewParameters constructs Parameters for a credential with the given
// number of (public+private) attributes, implementing
// `Parameters::new(n)`.
func NewParameters(attributes int) (Parameters, error) {
	if attributes < 0 {
		return Parameters{}, errors.New("coconut: attribute count must be non-negative")
	}
	suite := bls12381.NewBLS12381Suite()
	return Parameters{Attributes: attributes, group: suite.G2().(kyber.Group)}, nil
}

// Group returns the G2 group the verification key components live in.
func (p Parameters) Group() kyber.Group {
	return p.group
}

// SecretKey is this participant's share of the threshold Coconut secret
// key: the top-level scalar x, and one y_i per attribute.
type SecretKey struct {
	X kyber.Scalar
	Y []kyber.Scalar
}

// FromRaw builds a SecretKey from the recombined polynomial scalars,
// implementing `SecretKey::from_raw(x, y_vec)`.
func FromRaw(x kyber.Scalar, y []kyber.Scalar) SecretKey {
	return SecretKey{X: x, Y: y}
}

// VerificationKey is the public counterpart of a SecretKey: g2, alpha =
// g2^x, and beta_i = g2^{y_i}.
type VerificationKey struct {
	G2    kyber.Point
	Alpha kyber.Point
	Beta  []kyber.Point
}

// VerificationKey derives the public verification key matching sk under the
// given parameters, implementing `sk.verification_key(params)`.
func (sk SecretKey) VerificationKey(params Parameters) VerificationKey {
	g2 := params.group.Point().Base()
	alpha := params.group.Point().Mul(sk.X, g2)
	beta := make([]kyber.Point, len(sk.Y))
	for i, y := range sk.Y {
		beta[i] = params.group.Point().Mul(y, g2)
	}
	return VerificationKey{G2: g2, Alpha: alpha, Beta: beta}
}

// ToBase58 encodes a VerificationKey for publication on the ledger,
// implementing `VerificationKey::to_bs58`.
func (vk VerificationKey) ToBase58() (string, error) {
	parts := make([][]byte, 0, len(vk.Beta)+1)

	alphaBytes, err := vk.Alpha.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "coconut: marshalling alpha")
	}
	parts = append(parts, alphaBytes)

	for i, b := range vk.Beta {
		bBytes, err := b.MarshalBinary()
		if err != nil {
			return "", errors.Wrapf(err, "coconut: marshalling beta[%d]", i)
		}
		parts = append(parts, bBytes)
	}

	return base58.Encode(joinFixedWidth(parts)), nil
}

// FromBase58 decodes a VerificationKey published on the ledger,
// implementing `VerificationKey::try_from_bs58`. attributes must match the
// number of y_i components the key was published with.
func FromBase58(params Parameters, attributes int, encoded string) (VerificationKey, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return VerificationKey{}, errors.Wrap(err, "coconut: invalid base58 verification key")
	}

	pointLen := params.group.PointLen()
	wantLen := pointLen * (attributes + 1)
	if len(raw) != wantLen {
		return VerificationKey{}, errors.Errorf(
			"coconut: verification key has %d bytes, want %d", len(raw), wantLen,
		)
	}

	alpha := params.group.Point()
	if err := alpha.UnmarshalBinary(raw[:pointLen]); err != nil {
		return VerificationKey{}, errors.Wrap(err, "coconut: unmarshalling alpha")
	}

	beta := make([]kyber.Point, attributes)
	for i := 0; i < attributes; i++ {
		chunk := raw[pointLen*(i+1) : pointLen*(i+2)]
		p := params.group.Point()
		if err := p.UnmarshalBinary(chunk); err != nil {
			return VerificationKey{}, errors.Wrapf(err, "coconut: unmarshalling beta[%d]", i)
		}
		beta[i] = p
	}

	return VerificationKey{G2: params.group.Point().Base(), Alpha: alpha, Beta: beta}, nil
}

func joinFixedWidth(parts [][]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// CheckVKPairing compares a peer's submitted VerificationKey against the
// locally recovered public polynomial partials for that peer's receiver
// position, implementing `check_vk_pairing(params, partials, vk)`. partials
// is ordered exactly like dkgshare.TryRecoverVerificationKeys's output:
// one coefficient per polynomial, with the last polynomial's partial
// corresponding to alpha (x) and the rest to beta (y_i), mirroring the
// Share Deriver's own x/y split.
func CheckVKPairing(partials []kyber.Point, vk VerificationKey) bool {
	if len(partials) != len(vk.Beta)+1 {
		return false
	}

	alphaPartial := partials[len(partials)-1]
	if !alphaPartial.Equal(vk.Alpha) {
		return false
	}

	for i, beta := range vk.Beta {
		if !partials[i].Equal(beta) {
			return false
		}
	}

	return true
}

// TransposeMatrix turns a per-polynomial list of per-receiver partials into
// a per-receiver list of per-polynomial partials, so every receiver's
// expected verification-key components can be compared against a single
// submitted VerificationKey in one pass. It mirrors
// `nymcoconut::tests::helpers::transpose_matrix` used by the Peer Validator.
func TransposeMatrix(perPolynomial [][]kyber.Point) [][]kyber.Point {
	if len(perPolynomial) == 0 {
		return nil
	}
	numReceivers := len(perPolynomial[0])
	out := make([][]kyber.Point, numReceivers)
	for r := 0; r < numReceivers; r++ {
		row := make([]kyber.Point, len(perPolynomial))
		for p := range perPolynomial {
			row[p] = perPolynomial[p][r]
		}
		out[r] = row
	}
	return out
}

// RecoveredPartialsOf extracts the RecoveredPartials column from a slice of
// dkgshare.RecoveredVerificationKeys, the shape TransposeMatrix expects.
func RecoveredPartialsOf(recovered []dkgshare.RecoveredVerificationKeys) [][]kyber.Point {
	out := make([][]kyber.Point, len(recovered))
	for i, r := range recovered {
		out[i] = r.RecoveredPartials
	}
	return out
}
