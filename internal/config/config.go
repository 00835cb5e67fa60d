// Package config loads the router's startup configuration -- interfaces,
// routing table, and the tunable ARP constants -- from a JSON file,
// following the same New/Load/UpdateFromJSON/mutex shape used throughout
// this project. This is an adapter, not core: the router
// itself never reads a file, only the *topology.Table and
// []*topology.Interface this package produces.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/quaylabs/iprouter/internal/arpcache"
	"github.com/quaylabs/iprouter/internal/netheader"
	"github.com/quaylabs/iprouter/internal/topology"
)

// Defaults applied when the corresponding JSON field is absent or zero.
const (
	DefaultARPCacheTTL      = 15 * time.Second
	DefaultRetryInterval    = 1 * time.Second
	DefaultRetryCap         = 5
)

type interfaceSpec struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
	IP   string `json:"ip"`
}

type routeSpec struct {
	Dest      string `json:"dest"`
	Mask      string `json:"mask"`
	Gateway   string `json:"gateway"`
	Interface string `json:"interface"`
}

type document struct {
	Interfaces            []interfaceSpec `json:"interfaces"`
	Routes                []routeSpec     `json:"routes"`
	ARPCacheTTLSeconds     int             `json:"arp_cache_ttl_seconds"`
	RetryIntervalSeconds   int             `json:"retry_interval_seconds"`
	RetryCap               int             `json:"retry_cap"`
	ARPCacheCapacity       int             `json:"arp_cache_capacity"`
}

// Config is the loaded, router-ready configuration. UpdateFromJSON may be
// called again later (e.g. from an HTTP admin hook) to hot-reload;
// Snapshot returns a point-in-time, safe-to-share copy of the derived
// router inputs.
type Config struct {
	path string
	mu   sync.RWMutex

	interfaces       []*topology.Interface
	table            *topology.Table
	arpCacheTTL      time.Duration
	arpCacheCapacity int
	retryInterval    time.Duration
	retryCap         int
}

// New returns an empty Config that records path; nothing in this package
// reads it back.
func New(path string) *Config {
	return &Config{path: path}
}

// Load reads and parses the JSON document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := New(path)
	if err := cfg.UpdateFromJSON(data); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// UpdateFromJSON replaces the configuration with the document in data,
// validating every interface and route before committing any of it.
func (c *Config) UpdateFromJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: invalid json: %w", err)
	}

	byName := make(map[string]*topology.Interface, len(doc.Interfaces))
	ifaces := make([]*topology.Interface, 0, len(doc.Interfaces))
	for _, spec := range doc.Interfaces {
		mac, err := net.ParseMAC(spec.MAC)
		if err != nil {
			return fmt.Errorf("config: interface %q: bad mac %q: %w", spec.Name, spec.MAC, err)
		}
		ip := net.ParseIP(spec.IP)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("config: interface %q: bad ipv4 %q", spec.Name, spec.IP)
		}
		iface := &topology.Interface{Name: spec.Name, MAC: mac, IP: netheader.AddrFromIP(ip)}
		byName[spec.Name] = iface
		ifaces = append(ifaces, iface)
	}

	routes := make([]topology.Route, 0, len(doc.Routes))
	for _, spec := range doc.Routes {
		iface, ok := byName[spec.Interface]
		if !ok {
			return fmt.Errorf("config: route %s/%s: unknown interface %q", spec.Dest, spec.Mask, spec.Interface)
		}
		dest := net.ParseIP(spec.Dest)
		mask := net.ParseIP(spec.Mask)
		if dest == nil || dest.To4() == nil || mask == nil || mask.To4() == nil {
			return fmt.Errorf("config: route has invalid dest/mask: %q/%q", spec.Dest, spec.Mask)
		}
		gw := netheader.Zero
		if spec.Gateway != "" {
			gwIP := net.ParseIP(spec.Gateway)
			if gwIP == nil || gwIP.To4() == nil {
				return fmt.Errorf("config: route has invalid gateway %q", spec.Gateway)
			}
			gw = netheader.AddrFromIP(gwIP)
		}
		routes = append(routes, topology.Route{
			Dest:    netheader.AddrFromIP(dest),
			Mask:    netheader.AddrFromIP(mask),
			Gateway: gw,
			Iface:   iface,
		})
	}

	arpCacheTTL := DefaultARPCacheTTL
	if doc.ARPCacheTTLSeconds > 0 {
		arpCacheTTL = time.Duration(doc.ARPCacheTTLSeconds) * time.Second
	}
	retryInterval := DefaultRetryInterval
	if doc.RetryIntervalSeconds > 0 {
		retryInterval = time.Duration(doc.RetryIntervalSeconds) * time.Second
	}
	retryCap := DefaultRetryCap
	if doc.RetryCap > 0 {
		retryCap = doc.RetryCap
	}
	arpCacheCapacity := arpcache.DefaultCapacity
	if doc.ARPCacheCapacity > 0 {
		arpCacheCapacity = doc.ARPCacheCapacity
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.interfaces = ifaces
	c.table = topology.NewTable(routes)
	c.arpCacheTTL = arpCacheTTL
	c.arpCacheCapacity = arpCacheCapacity
	c.retryInterval = retryInterval
	c.retryCap = retryCap
	return nil
}

// Snapshot is the set of router-ready values a Config carries.
type Snapshot struct {
	Interfaces       []*topology.Interface
	Table            *topology.Table
	ARPCacheTTL      time.Duration
	ARPCacheCapacity int
	RetryInterval    time.Duration
	RetryCap         int
}

// Snapshot returns the currently loaded configuration.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Interfaces:       c.interfaces,
		Table:            c.table,
		ARPCacheTTL:      c.arpCacheTTL,
		ARPCacheCapacity: c.arpCacheCapacity,
		RetryInterval:    c.retryInterval,
		RetryCap:         c.retryCap,
	}
}
