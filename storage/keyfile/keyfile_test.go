package keyfile

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumkey/quorumkey/model"
)

func TestEncodeDecode_Roundtrip(t *testing.T) {
	material := &model.KeyMaterial{
		CoreShare: []byte("core-share-material"),
		AuxInfo:   []byte("aux-info-material"),
	}
	passphrase := []byte("correct horse battery staple")

	sealed, err := Encode(material, passphrase)
	require.NoError(t, err)

	// envelope carries salt, nonce, and at least the GCM tag
	require.Greater(t, len(sealed), saltLen+nonceLen+tagLen)

	opened, err := Decode(sealed, passphrase)
	require.NoError(t, err)
	assert.Equal(t, material.CoreShare, opened.CoreShare)
	assert.Equal(t, material.AuxInfo, opened.AuxInfo)
}

func TestEncode_FreshSaltAndNonce(t *testing.T) {
	material := &model.KeyMaterial{CoreShare: []byte("core"), AuxInfo: []byte("aux")}
	passphrase := []byte("pass")

	first, err := Encode(material, passphrase)
	require.NoError(t, err)
	second, err := Encode(material, passphrase)
	require.NoError(t, err)

	assert.NotEqual(t, first[:saltLen], second[:saltLen])
	assert.NotEqual(t, first[saltLen:saltLen+nonceLen], second[saltLen:saltLen+nonceLen])
	assert.NotEqual(t, first, second)
}

func TestDecode_WrongPassphrase(t *testing.T) {
	material := &model.KeyMaterial{CoreShare: []byte("core"), AuxInfo: []byte("aux")}

	sealed, err := Encode(material, []byte("right"))
	require.NoError(t, err)

	_, err = Decode(sealed, []byte("wrong"))
	require.Error(t, err)
}

func TestDecode_TamperedCiphertext(t *testing.T) {
	material := &model.KeyMaterial{CoreShare: []byte("core"), AuxInfo: []byte("aux")}
	passphrase := []byte("pass")

	sealed, err := Encode(material, passphrase)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = Decode(sealed, passphrase)
	require.Error(t, err)
}

// TestDecode_LegacyFormat checks that a plain base64-encoded key-material
// blob still loads, without consulting the passphrase.
func TestDecode_LegacyFormat(t *testing.T) {
	material := &model.KeyMaterial{
		CoreShare: []byte("legacy-core"),
		AuxInfo:   []byte("legacy-aux"),
	}
	blob, err := material.Encode()
	require.NoError(t, err)
	legacy := []byte(base64.StdEncoding.EncodeToString(blob))

	opened, err := Decode(legacy, nil)
	require.NoError(t, err)
	assert.Equal(t, material.CoreShare, opened.CoreShare)
	assert.Equal(t, material.AuxInfo, opened.AuxInfo)
}

func TestDecode_TooShort(t *testing.T) {
	_, err := Decode([]byte("tiny"), []byte("pass"))
	require.Error(t, err)
}
