// Package dkgshare implements the Dealing type and the Shamir-share
// recombination/recovery contracts of spec.md §6: `Dealing.parse`,
// `Dealing.verify`, `combine_shares`, and `try_recover_verification_keys`.
// The polynomial arithmetic is grounded in kyber's share package (the same
// Lagrange-interpolation idiom as DeDiS-crypto/share and the Pedersen VSS
// dealer in TesraSupernet-TesraPoW/share/dkg/pedersen): each dealer commits
// to a degree-(t-1) polynomial with public coefficients (Feldman
// commitments) and hands every receiver an encrypted evaluation of it.
package dkgshare

import (
	"bytes"
	"sort"

	"github.com/drand/kyber"
	"github.com/pkg/errors"

	"github.com/nymtech/dkg-vkshare/internal/crypto/bte"
	"github.com/nymtech/dkg-vkshare/internal/types"
)

// ErrMalformedDealing is returned by Parse when the bytes cannot be decoded.
var ErrMalformedDealing = errors.New("dkgshare: malformed dealing")

// ErrVerificationFailed is returned by Verify when a dealing parses but its
// Feldman commitments are inconsistent with its encrypted shares, or its
// shape doesn't match the expected receiver set.
var ErrVerificationFailed = errors.New("dkgshare: dealing verification failed")

// Dealing is one dealer's contribution to a single polynomial: an encrypted
// evaluation for every receiver, plus the public (Feldman) commitments to
// the polynomial's coefficients.
type Dealing struct {
	// Commits are the Feldman commitments g^{a_0},...,g^{a_{t-1}}; len ==
	// threshold.
	Commits []kyber.Point
	// Ciphertexts holds, per receiver NodeIndex, the BTE-encrypted
	// evaluation of the dealer's polynomial at that receiver's index.
	Ciphertexts map[types.NodeIndex]bte.Ciphertext
}

// Marshal encodes a Dealing to bytes for posting to the ledger.
func (d *Dealing) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	if err := writeUint32(&buf, uint32(len(d.Commits))); err != nil {
		return nil, err
	}
	for _, c := range d.Commits {
		if err := writePoint(&buf, c); err != nil {
			return nil, err
		}
	}

	receivers := make([]types.NodeIndex, 0, len(d.Ciphertexts))
	for idx := range d.Ciphertexts {
		receivers = append(receivers, idx)
	}
	sort.Slice(receivers, func(i, j int) bool { return receivers[i] < receivers[j] })

	if err := writeUint32(&buf, uint32(len(receivers))); err != nil {
		return nil, err
	}
	for _, idx := range receivers {
		ct := d.Ciphertexts[idx]
		if err := writeUint64(&buf, uint64(idx)); err != nil {
			return nil, err
		}
		if err := writePoint(&buf, ct.Ephemeral); err != nil {
			return nil, err
		}
		if err := writeBytes(&buf, ct.Sealed); err != nil {
			return nil, err
		}
		if err := writeBytes(&buf, ct.Tag); err != nil {
			return nil, err
		}
		if err := writePoint(&buf, ct.Commitment); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Parse decodes a Dealing posted on the ledger. It implements spec.md §6's
// `parse(bytes) -> Dealing | MalformedError`.
func Parse(group kyber.Group, raw []byte) (*Dealing, error) {
	r := bytes.NewReader(raw)

	numCommits, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedDealing, err.Error())
	}
	commits := make([]kyber.Point, numCommits)
	for i := range commits {
		p, err := readPoint(r, group)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedDealing, err.Error())
		}
		commits[i] = p
	}

	numReceivers, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedDealing, err.Error())
	}
	ciphertexts := make(map[types.NodeIndex]bte.Ciphertext, numReceivers)
	for i := uint32(0); i < numReceivers; i++ {
		idx, err := readUint64(r)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedDealing, err.Error())
		}
		ephemeral, err := readPoint(r, group)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedDealing, err.Error())
		}
		sealed, err := readBytes(r)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedDealing, err.Error())
		}
		tag, err := readBytes(r)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedDealing, err.Error())
		}
		commitment, err := readPoint(r, group)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedDealing, err.Error())
		}
		ciphertexts[types.NodeIndex(idx)] = bte.Ciphertext{
			Ephemeral:  ephemeral,
			Sealed:     sealed,
			Tag:        tag,
			Commitment: commitment,
		}
	}

	if r.Len() != 0 {
		return nil, errors.Wrap(ErrMalformedDealing, "trailing bytes")
	}

	return &Dealing{Commits: commits, Ciphertexts: ciphertexts}, nil
}

// Verify checks a dealing's internal consistency: it must carry exactly
// `threshold` commitments, a ciphertext for every receiver currently in
// receivers, and every one of those ciphertexts' declared commitment point
// must match the dealer's public polynomial evaluated at that receiver's
// index. receivers may be a strict subset of the dealer's original
// ciphertext map — as the filter excludes dealers across successive
// invocations, stale ciphertexts addressed to now-excluded receivers are
// ignored rather than treated as a shape mismatch. Implements spec.md §6's
// `verify(params, threshold, receivers_by_index)`.
func (d *Dealing) Verify(params bte.Params, threshold int, receivers []types.NodeIndex) error {
	if len(d.Commits) != threshold {
		return errors.Wrapf(ErrVerificationFailed, "expected %d commitments, got %d", threshold, len(d.Commits))
	}
	if len(d.Ciphertexts) < len(receivers) {
		return errors.Wrapf(ErrVerificationFailed, "expected at least %d ciphertexts, got %d", len(receivers), len(d.Ciphertexts))
	}

	pub := NewPubPoly(params.Suite, d.Commits)
	for _, idx := range receivers {
		ct, ok := d.Ciphertexts[idx]
		if !ok {
			return errors.Wrapf(ErrVerificationFailed, "missing ciphertext for receiver %d", idx)
		}
		expected := pub.Eval(int(idx))
		if !expected.Equal(ct.Commitment) {
			return errors.Wrapf(ErrVerificationFailed, "feldman commitment mismatch for receiver %d", idx)
		}
	}

	return nil
}
