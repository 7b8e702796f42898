package schema

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestStorageSlotKeyBytes(t *testing.T) {
	slot := StorageSlot{Key: *uint256.NewInt(1), Value: *uint256.NewInt(2)}
	key := slot.KeyBytes()
	require.Len(t, key, 32)
	require.Equal(t, byte(1), key[31])
}

func TestEncodeStorageValueRLP(t *testing.T) {
	v := uint256.NewInt(256)
	enc, err := EncodeStorageValueRLP(v)
	require.NoError(t, err)
	require.NotEmpty(t, enc)
}
