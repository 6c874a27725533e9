// Package keystore persists a derived Coconut keypair to disk as the
// out-of-scope "keypair store" collaborator named in spec.md §1/§6. Only
// the write side is used by this core; no read side is implemented, per
// spec.md §6 ("No read side is used by this core").
package keystore

import (
	"encoding/pem"

	"github.com/drand/kyber"
	"github.com/pkg/errors"

	"github.com/nymtech/dkg-vkshare/internal/crypto/coconut"
	"github.com/nymtech/dkg-vkshare/internal/fs"
)

const (
	secretKeyBlockType       = "COCONUT SECRET KEY SHARE"
	verificationKeyBlockType = "COCONUT VERIFICATION KEY SHARE"
)

// KeyPairPath names the two files a derived keypair is written to,
// mirroring pemstore::KeyPairPath in the original protocol.
type KeyPairPath struct {
	PrivateKeyPath string
	PublicKeyPath  string
}

// KeyPair bundles a participant's derived secret and verification key
// shares for persistence.
type KeyPair struct {
	SecretKey       coconut.SecretKey
	VerificationKey coconut.VerificationKey
}

// StoreKeyPair writes kp's private and public components as PEM blocks to
// the two paths in p, implementing spec.md §6's
// `store_keypair(&CoconutKeyPair, KeyPairPath)`. It has no idiomatic
// third-party counterpart among the pack's dependencies (no example repo
// wires a PEM codec for anything but TLS certificates, which this key
// material isn't), so it uses the standard library's encoding/pem directly.
func StoreKeyPair(kp KeyPair, p KeyPairPath) error {
	skBytes, err := marshalScalars(append([]kyber.Scalar{kp.SecretKey.X}, kp.SecretKey.Y...))
	if err != nil {
		return errors.Wrap(err, "keystore: marshalling secret key")
	}
	if err := writePEM(p.PrivateKeyPath, secretKeyBlockType, skBytes); err != nil {
		return errors.Wrap(err, "keystore: writing private key")
	}

	vkBytes, err := marshalPoints(append([]kyber.Point{kp.VerificationKey.Alpha}, kp.VerificationKey.Beta...))
	if err != nil {
		return errors.Wrap(err, "keystore: marshalling verification key")
	}
	if err := writePEM(p.PublicKeyPath, verificationKeyBlockType, vkBytes); err != nil {
		return errors.Wrap(err, "keystore: writing public key")
	}

	return nil
}

func writePEM(path, blockType string, raw []byte) error {
	fd, err := fs.CreateSecureFile(path)
	if err != nil {
		return err
	}
	defer fd.Close()

	return pem.Encode(fd, &pem.Block{Type: blockType, Bytes: raw})
}

func marshalScalars(scalars []kyber.Scalar) ([]byte, error) {
	var out []byte
	for i, s := range scalars {
		b, err := s.MarshalBinary()
		if err != nil {
			return nil, errors.Wrapf(err, "scalar %d", i)
		}
		out = append(out, b...)
	}
	return out, nil
}

func marshalPoints(points []kyber.Point) ([]byte, error) {
	var out []byte
	for i, pt := range points {
		b, err := pt.MarshalBinary()
		if err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		out = append(out, b...)
	}
	return out, nil
}
