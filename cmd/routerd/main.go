// Command routerd is the demo I/O adapter around the router core: it
// loads a JSON topology, replays inbound frames from a pcap file through
// the core, and writes whatever the core emits to an output pcap file,
// the same replay-and-capture harness shape a standalone ping tool would
// use around raw ICMP sockets.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quaylabs/iprouter/internal/arpworker"
	"github.com/quaylabs/iprouter/internal/config"
	"github.com/quaylabs/iprouter/internal/metrics"
	"github.com/quaylabs/iprouter/internal/router"
	"github.com/quaylabs/iprouter/internal/topology"
)

func main() {
	var (
		configPath = flag.String("config", "router.json", "path to the JSON topology/config file")
		inPath     = flag.String("in", "", "input pcap file of frames to replay")
		outPath    = flag.String("out", "out.pcap", "output pcap file for frames the router emits")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
		jsonLogs   = flag.Bool("json-logs", false, "emit JSON logs instead of the human-readable console format")
	)
	flag.Parse()

	log := newLogger(*jsonLogs)

	if err := run(*configPath, *inPath, *outPath, *metricsAddr, log); err != nil {
		log.Error("routerd exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(jsonLogs bool) *slog.Logger {
	if jsonLogs {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{TimeFormat: time.Kitchen}))
}

func run(configPath, inPath, outPath, metricsAddr string, log *slog.Logger) error {
	if inPath == "" {
		return fmt.Errorf("routerd: -in is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("routerd: load config: %w", err)
	}
	snap := cfg.Snapshot()

	reg := prometheus.NewRegistry()
	met := metrics.New(reg, "routerd")

	adapter := &pcapAdapter{log: log}
	r := router.New("routerd", snap.Interfaces, snap.Table, adapter,
		router.WithLogger(log),
		router.WithMetrics(met),
		router.WithARPCacheTTL(snap.ARPCacheTTL),
		router.WithARPCacheCapacity(snap.ARPCacheCapacity),
		router.WithRetryInterval(snap.RetryInterval),
		router.WithMaxRetries(snap.RetryCap),
	)

	writer, closeWriter, err := newPcapWriter(outPath)
	if err != nil {
		return fmt.Errorf("routerd: open output pcap: %w", err)
	}
	defer closeWriter()
	adapter.writer = writer

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var fatalMu sync.Mutex
	var fatalErr error
	worker := arpworker.New(map[string]arpworker.Tickable{"routerd": r},
		arpworker.WithInterval(snap.RetryInterval),
		arpworker.WithLogger(log),
		arpworker.WithOnFatal(func(name string, err error) {
			fatalMu.Lock()
			if fatalErr == nil {
				fatalErr = fmt.Errorf("routerd: router %s hit a fatal invariant violation: %w", name, err)
			}
			fatalMu.Unlock()
			cancel()
		}),
	)
	worker.Start(ctx)
	defer worker.Stop()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	ifaceByName := make(map[string]*topology.Interface, len(snap.Interfaces))
	for _, iface := range snap.Interfaces {
		ifaceByName[iface.Name] = iface
	}
	replayErr := replay(ctx, r, ifaceByName, inPath, log)

	fatalMu.Lock()
	defer fatalMu.Unlock()
	if fatalErr != nil {
		return fatalErr
	}
	return replayErr
}

func replay(ctx context.Context, r *router.Router, ifaceByName map[string]*topology.Interface, inPath string, log *slog.Logger) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("routerd: open input pcap: %w", err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return fmt.Errorf("routerd: read pcap header: %w", err)
	}

	// The only ingress topology this harness knows is "every frame arrived
	// on the router's first configured interface" -- a real I/O layer
	// would bind one socket per interface and know which one delivered
	// each frame.
	var ingress *topology.Interface
	if len(r.Interfaces) > 0 {
		ingress = r.Interfaces[0]
	}
	if ingress == nil {
		return fmt.Errorf("routerd: config declares no interfaces")
	}

	count := 0
	for {
		if ctx.Err() != nil {
			break
		}
		data, _, err := reader.ReadPacketData()
		if err != nil {
			break
		}
		raw := make([]byte, len(data))
		copy(raw, data)
		out := r.ProcessFrame(ctx, router.InboundFrame{Data: raw, Ingress: ingress})
		count++
		switch out.Kind {
		case router.KindFatal:
			return fmt.Errorf("routerd: fatal outcome on frame %d: %w", count, out.Err)
		case router.KindNonCritical:
			log.Warn("dropped frame", "n", count, "error", out.Err)
		}
	}
	log.Info("replay complete", "frames", count)
	return nil
}

// pcapAdapter is the IOLayer: every frame the core emits is appended to
// the output pcap file.
type pcapAdapter struct {
	log    *slog.Logger
	writer *pcapgo.Writer
}

func (a *pcapAdapter) SendFrame(ctx context.Context, iface *topology.Interface, frame []byte) error {
	if a.writer == nil {
		return nil
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := a.writer.WritePacket(ci, frame); err != nil {
		return fmt.Errorf("routerd: write output frame on %s: %w", iface.Name, err)
	}
	return nil
}

func newPcapWriter(path string) (*pcapgo.Writer, func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, nil, err
	}
	return w, func() { f.Close() }, nil
}
