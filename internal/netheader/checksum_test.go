package netheader

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksum_LawHolds(t *testing.T) {
	hdr := make([]byte, 20)
	hdr[0] = 0x45
	hdr[8] = 64  // TTL
	hdr[9] = 6   // TCP
	copy(hdr[12:16], []byte{10, 0, 0, 2})
	copy(hdr[16:20], []byte{198, 51, 100, 5})

	field := Checksum(hdr)
	binary.BigEndian.PutUint16(hdr[10:12], field)

	require.True(t, Valid(hdr), "cksum(buf_with_valid_cksum_field) must complement to zero")
}

func TestChecksum_SingleBitMutationChangesChecksum(t *testing.T) {
	hdr := make([]byte, 20)
	hdr[0] = 0x45
	hdr[8] = 64
	copy(hdr[12:16], []byte{10, 0, 0, 2})
	copy(hdr[16:20], []byte{198, 51, 100, 5})

	before := Checksum(hdr)
	hdr[9] ^= 0x01
	after := Checksum(hdr)

	require.NotEqual(t, before, after)
}

func TestChecksum_OddLengthPadsTrailingByte(t *testing.T) {
	odd := []byte{0x12, 0x34, 0x56}
	even := []byte{0x12, 0x34, 0x56, 0x00}
	require.Equal(t, Checksum(even), Checksum(odd))
}
