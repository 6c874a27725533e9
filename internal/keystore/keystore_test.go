package keystore

import (
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/drand/kyber"
	bls12381 "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/util/random"
	"github.com/stretchr/testify/require"

	"github.com/nymtech/dkg-vkshare/internal/crypto/coconut"
)

func TestStoreKeyPairWritesPEMBlocks(t *testing.T) {
	g1 := bls12381.NewBLS12381Suite().G1().(kyber.Group)
	params, err := coconut.NewParameters(2)
	require.NoError(t, err)

	x := g1.Scalar().Pick(random.New())
	y := []kyber.Scalar{g1.Scalar().Pick(random.New()), g1.Scalar().Pick(random.New())}
	sk := coconut.FromRaw(x, y)
	vk := sk.VerificationKey(params)

	dir := t.TempDir()
	paths := KeyPairPath{
		PrivateKeyPath: filepath.Join(dir, "private.pem"),
		PublicKeyPath:  filepath.Join(dir, "public.pem"),
	}

	require.NoError(t, StoreKeyPair(KeyPair{SecretKey: sk, VerificationKey: vk}, paths))

	privRaw, err := os.ReadFile(paths.PrivateKeyPath)
	require.NoError(t, err)
	block, _ := pem.Decode(privRaw)
	require.NotNil(t, block)
	require.Equal(t, secretKeyBlockType, block.Type)

	expectedSK, err := marshalScalars(append([]kyber.Scalar{x}, y...))
	require.NoError(t, err)
	require.Equal(t, expectedSK, block.Bytes)

	pubRaw, err := os.ReadFile(paths.PublicKeyPath)
	require.NoError(t, err)
	pubBlock, _ := pem.Decode(pubRaw)
	require.NotNil(t, pubBlock)
	require.Equal(t, verificationKeyBlockType, pubBlock.Type)

	info, err := os.Stat(paths.PrivateKeyPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
