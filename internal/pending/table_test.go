package pending

import (
	"net"
	"testing"

	"github.com/quaylabs/iprouter/internal/netheader"
	"github.com/quaylabs/iprouter/internal/topology"
	"github.com/stretchr/testify/require"
)

func addr(s string) netheader.Addr {
	return netheader.AddrFromIP(net.ParseIP(s))
}

func TestTable_CreateAttachRemove(t *testing.T) {
	tbl := New()
	eth0 := &topology.Interface{Name: "eth0"}
	target := addr("10.0.0.254")

	_, ok := tbl.Lookup(target)
	require.False(t, ok)

	e := tbl.Create(target, eth0)
	require.Equal(t, 0, e.TimesSent)

	orig := []byte{1, 2, 3, 4}
	require.NoError(t, tbl.AttachFrame(e, orig, eth0))
	orig[0] = 0xFF // mutate original; withheld copy must be unaffected

	got, ok := tbl.Lookup(target)
	require.True(t, ok)
	require.Len(t, got.Withheld, 1)
	require.Equal(t, []byte{1, 2, 3, 4}, got.Withheld[0].Data, "AttachFrame must deep-copy")

	tbl.Remove(target)
	_, ok = tbl.Lookup(target)
	require.False(t, ok)
}

func TestTable_AttachFrame_RejectsOverLimit(t *testing.T) {
	tbl := New()
	eth0 := &topology.Interface{Name: "eth0"}
	e := tbl.Create(addr("10.0.0.254"), eth0)

	for i := 0; i < MaxWithheldPerEntry; i++ {
		require.NoError(t, tbl.AttachFrame(e, []byte{byte(i)}, eth0))
	}
	err := tbl.AttachFrame(e, []byte{0}, eth0)
	require.ErrorIs(t, err, ErrWithheldLimit)
}

func TestTable_All(t *testing.T) {
	tbl := New()
	eth0 := &topology.Interface{Name: "eth0"}
	tbl.Create(addr("10.0.0.1"), eth0)
	tbl.Create(addr("10.0.0.2"), eth0)
	require.Len(t, tbl.All(), 2)
	require.Equal(t, 2, tbl.Len())
}
