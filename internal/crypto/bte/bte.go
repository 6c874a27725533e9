// Package bte is a thin stand-in for the protocol's binary-tree encryption
// scheme. Per spec.md's non-goals, the real BTE construction (forward-secure,
// tree-structured key evolution) is out of scope; this package implements
// just the black-box contract consumers of it rely on — "encrypt a share to
// a receiver's public key, decrypt it with the matching private key" — using
// a Diffie-Hellman + stream-cipher scheme in the style of DeDiS-crypto's
// ecies package, so the core pipeline has a real, exercised cryptographic
// dependency to drive rather than a hand-rolled placeholder.
package bte

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/drand/kyber"
	bls12381 "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/util/random"
	"github.com/pkg/errors"
)

// Params pins the group every dealing and keypair in an epoch is defined
// over. setup() in spec §6 returns this.
type Params struct {
	Suite kyber.Group
}

// Setup returns the BLS12-381 G2 parameters used for BTE key material and
// dealing commitments throughout an epoch. G2 is also the group of Coconut
// verification-key components, so recovered partials can be compared with a
// submitted verification key point by point.
func Setup() Params {
	suite := bls12381.NewBLS12381Suite()
	return Params{Suite: suite.G2().(kyber.Group)}
}

// KeyPair is a participant's long-lived BTE keypair, used to decrypt the
// shares addressed to it across every dealing it receives.
type KeyPair struct {
	Private kyber.Scalar
	Public  kyber.Point
}

// NewKeyPair generates a fresh BTE keypair under the given parameters.
func NewKeyPair(params Params) KeyPair {
	sk := params.Suite.Scalar().Pick(random.New())
	pk := params.Suite.Point().Mul(sk, nil)
	return KeyPair{Private: sk, Public: pk}
}

// Ciphertext is one dealer's encrypted share for one receiver, plus the
// dealer's declared Feldman commitment to that share, which the Dealer
// Filter checks against the dealer's published public polynomial without
// decrypting.
type Ciphertext struct {
	// Ephemeral is the DH ephemeral public point.
	Ephemeral kyber.Point
	// Sealed is the share scalar, bytes-XORed with a key derived from the
	// DH shared secret.
	Sealed []byte
	// Tag authenticates Sealed against tampering (encrypt-then-MAC).
	Tag []byte
	// Commitment is the Feldman commitment g^share to the plaintext share,
	// letting anyone who knows the dealer's public polynomial check the
	// declared share against it. Nothing binds it to Sealed, so that check
	// does not show that Sealed encrypts the committed share.
	Commitment kyber.Point
}

// Encrypt seals a share scalar to a receiver's BTE public key. label
// domain-separates the derived key per-epoch/per-polynomial so the same
// share value never produces the same ciphertext across contexts.
func Encrypt(params Params, receiverPublic kyber.Point, share kyber.Scalar, label []byte) (Ciphertext, error) {
	ephemeralSecret := params.Suite.Scalar().Pick(random.New())
	ephemeralPublic := params.Suite.Point().Mul(ephemeralSecret, nil)
	sharedSecret := params.Suite.Point().Mul(ephemeralSecret, receiverPublic)

	shareBytes, err := share.MarshalBinary()
	if err != nil {
		return Ciphertext{}, errors.Wrap(err, "marshalling share scalar")
	}

	key, err := deriveKey(sharedSecret, label, len(shareBytes))
	if err != nil {
		return Ciphertext{}, err
	}

	sealed := xor(shareBytes, key)
	tag := mac(sharedSecret, label, sealed)
	commitment := params.Suite.Point().Mul(share, nil)

	return Ciphertext{Ephemeral: ephemeralPublic, Sealed: sealed, Tag: tag, Commitment: commitment}, nil
}

// DecryptShare decrypts a ciphertext addressed to a receiver using the
// receiver's BTE private key, recovering the secret
// share scalar. This implements the `decrypt_share` contract of §6.
func DecryptShare(params Params, private kyber.Scalar, ct Ciphertext, label []byte) (kyber.Scalar, error) {
	sharedSecret := params.Suite.Point().Mul(private, ct.Ephemeral)

	if !hmac.Equal(mac(sharedSecret, label, ct.Sealed), ct.Tag) {
		return nil, errors.New("bte: ciphertext authentication failed")
	}

	key, err := deriveKey(sharedSecret, label, len(ct.Sealed))
	if err != nil {
		return nil, err
	}
	shareBytes := xor(ct.Sealed, key)

	scalar := params.Suite.Scalar()
	if err := scalar.UnmarshalBinary(shareBytes); err != nil {
		return nil, errors.Wrap(err, "unmarshalling decrypted share")
	}
	return scalar, nil
}

func deriveKey(sharedSecret kyber.Point, label []byte, length int) ([]byte, error) {
	secretBytes, err := sharedSecret.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshalling shared secret")
	}

	out := make([]byte, 0, length)
	for counter := 0; len(out) < length; counter++ {
		h := sha256.New()
		h.Write(secretBytes)
		h.Write(label)
		h.Write([]byte(fmt.Sprintf("bte-stream-%d", counter)))
		out = append(out, h.Sum(nil)...)
	}
	return out[:length], nil
}

func mac(sharedSecret kyber.Point, label, sealed []byte) []byte {
	secretBytes, _ := sharedSecret.MarshalBinary()
	m := hmac.New(sha256.New, secretBytes)
	m.Write(label)
	m.Write(sealed)
	return m.Sum(nil)
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
