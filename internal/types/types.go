// Package types holds the small shared vocabulary of the verification-key
// pipeline: node indices, dealer addresses, complaint reasons, and the
// protocol-wide constants that size every parallel polynomial.
package types

import (
	"github.com/pkg/errors"
)

// NodeIndex is the evaluation point of every secret-sharing polynomial for a
// given participant, unique within an epoch.
type NodeIndex uint64

// DealerAddress is an opaque bech32-style account identifier. Within an
// epoch it is in bijection with a NodeIndex, enforced by the earlier DKG
// phases (public-key exchange, dealing generation) that this module does
// not implement.
type DealerAddress string

// ComplaintReason tags why a dealer's contribution was dropped.
type ComplaintReason int

const (
	// MalformedDealing means the dealing bytes could not be parsed.
	MalformedDealing ComplaintReason = iota + 1
	// DealingVerificationError means the dealing parsed but failed
	// cryptographic verification.
	DealingVerificationError
	// MissingDealing means the dealer's address did not appear in every
	// per-polynomial dealings map.
	MissingDealing
)

func (r ComplaintReason) String() string {
	switch r {
	case MalformedDealing:
		return "MalformedDealing"
	case DealingVerificationError:
		return "DealingVerificationError"
	case MissingDealing:
		return "MissingDealing"
	default:
		panic("unknown complaint reason")
	}
}

// Constants is the compile-time sizing of the protocol: the number of
// parallel secret-sharing polynomials and how they split between public and
// private Coconut attributes. It is TOML-loadable the way drand loads its
// DBState twin, so a deployment can pin these without a recompile.
type Constants struct {
	TotalDealings     int `toml:"total_dealings"`
	PublicAttributes  int `toml:"public_attributes"`
	PrivateAttributes int `toml:"private_attributes"`
}

// DefaultConstants mirrors the Coconut credential used by the reference
// deployment: one public attribute, one private attribute, plus the
// top-level `x` polynomial.
func DefaultConstants() Constants {
	return Constants{
		TotalDealings:     3,
		PublicAttributes:  1,
		PrivateAttributes: 1,
	}
}

// Validate enforces the protocol's one hard invariant on these constants:
// TotalDealings = PublicAttributes + PrivateAttributes + 1.
func (c Constants) Validate() error {
	want := c.PublicAttributes + c.PrivateAttributes + 1
	if c.TotalDealings != want {
		return errors.Errorf(
			"total_dealings (%d) must equal public_attributes + private_attributes + 1 (%d)",
			c.TotalDealings, want,
		)
	}
	if c.TotalDealings <= 0 {
		return errors.New("total_dealings must be positive")
	}
	return nil
}
