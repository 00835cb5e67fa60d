package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
  "interfaces": [
    {"name": "eth0", "mac": "02:00:00:00:00:01", "ip": "10.0.0.1"},
    {"name": "eth1", "mac": "02:00:00:00:00:02", "ip": "192.168.1.1"}
  ],
  "routes": [
    {"dest": "0.0.0.0", "mask": "0.0.0.0", "gateway": "10.0.0.254", "interface": "eth0"},
    {"dest": "192.168.1.0", "mask": "255.255.255.0", "interface": "eth1"}
  ],
  "arp_cache_ttl_seconds": 30,
  "retry_interval_seconds": 2,
  "retry_cap": 3
}`

func TestUpdateFromJSON_ValidDocument(t *testing.T) {
	c := New("")
	require.NoError(t, c.UpdateFromJSON([]byte(sampleDoc)))

	snap := c.Snapshot()
	require.Len(t, snap.Interfaces, 2)
	require.Equal(t, 30*time.Second, snap.ARPCacheTTL)
	require.Equal(t, 2*time.Second, snap.RetryInterval)
	require.Equal(t, 3, snap.RetryCap)

	eth1 := snap.Interfaces[1]
	require.Equal(t, "eth1", eth1.Name)

	directRoute, ok := snap.Table.Lookup(snap.Interfaces[1].IP)
	require.True(t, ok)
	require.True(t, directRoute.DirectlyConnected())
	require.Same(t, eth1, directRoute.Iface)
}

func TestUpdateFromJSON_AppliesDefaults(t *testing.T) {
	c := New("")
	require.NoError(t, c.UpdateFromJSON([]byte(`{"interfaces":[{"name":"eth0","mac":"02:00:00:00:00:01","ip":"10.0.0.1"}]}`)))

	snap := c.Snapshot()
	require.Equal(t, DefaultARPCacheTTL, snap.ARPCacheTTL)
	require.Equal(t, DefaultRetryInterval, snap.RetryInterval)
	require.Equal(t, DefaultRetryCap, snap.RetryCap)
	require.Equal(t, 256, snap.ARPCacheCapacity)
}

func TestUpdateFromJSON_RejectsUnknownRouteInterface(t *testing.T) {
	c := New("")
	err := c.UpdateFromJSON([]byte(`{
		"interfaces": [{"name": "eth0", "mac": "02:00:00:00:00:01", "ip": "10.0.0.1"}],
		"routes": [{"dest": "0.0.0.0", "mask": "0.0.0.0", "interface": "eth9"}]
	}`))
	require.Error(t, err)
}

func TestUpdateFromJSON_RejectsBadMAC(t *testing.T) {
	c := New("")
	err := c.UpdateFromJSON([]byte(`{"interfaces":[{"name":"eth0","mac":"not-a-mac","ip":"10.0.0.1"}]}`))
	require.Error(t, err)
}
