package bte

import (
	"testing"

	"github.com/drand/kyber/util/random"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	params := Setup()
	receiver := NewKeyPair(params)

	share := params.Suite.Scalar().Pick(random.New())

	ct, err := Encrypt(params, receiver.Public, share, []byte("epoch-1/polynomial-0"))
	require.NoError(t, err)

	recovered, err := DecryptShare(params, receiver.Private, ct, []byte("epoch-1/polynomial-0"))
	require.NoError(t, err)
	require.True(t, share.Equal(recovered))
}

func TestDecryptFailsWithWrongLabel(t *testing.T) {
	params := Setup()
	receiver := NewKeyPair(params)

	share := params.Suite.Scalar().Pick(random.New())

	ct, err := Encrypt(params, receiver.Public, share, []byte("label-a"))
	require.NoError(t, err)

	_, err = DecryptShare(params, receiver.Private, ct, []byte("label-b"))
	require.Error(t, err)
}

func TestDecryptFailsWithWrongKey(t *testing.T) {
	params := Setup()
	receiver := NewKeyPair(params)
	impostor := NewKeyPair(params)

	share := params.Suite.Scalar().Pick(random.New())

	ct, err := Encrypt(params, receiver.Public, share, nil)
	require.NoError(t, err)

	_, err = DecryptShare(params, impostor.Private, ct, nil)
	require.Error(t, err)
}

func TestCiphertextCommitmentMatchesShare(t *testing.T) {
	params := Setup()
	receiver := NewKeyPair(params)

	share := params.Suite.Scalar().Pick(random.New())

	ct, err := Encrypt(params, receiver.Public, share, nil)
	require.NoError(t, err)

	want := params.Suite.Point().Mul(share, nil)
	require.True(t, ct.Commitment.Equal(want))
}

func TestTamperedSealedBytesFailAuthentication(t *testing.T) {
	params := Setup()
	receiver := NewKeyPair(params)

	share := params.Suite.Scalar().Pick(random.New())

	ct, err := Encrypt(params, receiver.Public, share, nil)
	require.NoError(t, err)

	ct.Sealed[0] ^= 0xFF

	_, err = DecryptShare(params, receiver.Private, ct, nil)
	require.Error(t, err)
}
