package rpc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/rpc"
)

func TestChecksumCheckValues(t *testing.T) {
	data := []byte("123456789")

	cases := map[string]struct {
		checksum rpc.Checksum
		expected []byte
	}{
		"crc32": {checksum: rpc.CRC32{}, expected: []byte{0xCB, 0xF4, 0x39, 0x26}},
		"crc16": {checksum: rpc.CRC16{}, expected: []byte{0x29, 0xB1}},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			out := make([]byte, c.checksum.Size())
			c.checksum.Calculate(data, out)
			require.Equal(t, c.expected, out)

			require.True(t, c.checksum.Verify(data, out))
			require.False(t, c.checksum.Verify(data[1:], out))
			require.False(t, c.checksum.Verify(data, out[1:]))
		})
	}
}

func TestChecksumKind(t *testing.T) {
	checksum, err := rpc.ChecksumNone.Checksum()
	require.NoError(t, err)
	require.Nil(t, checksum)

	checksum, err = rpc.ChecksumCRC16.Checksum()
	require.NoError(t, err)
	require.Equal(t, rpc.CRC16{}, checksum)

	_, err = rpc.ChecksumKind("md5").Checksum()
	require.Error(t, err)
}
