// Command iccomd runs the ICCom protocol engine as a standalone daemon: it
// wires the engine to Redis (pkg/bridge) and exposes its introspection
// surface over Prometheus, the same top-level shape as the teacher's
// cmd/bluetooth-service/main.go (flags, log.SetFlags, signal-driven
// shutdown) generalized from one fixed BLE peer to the engine's injected
// Transport.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/librescoot/iccom-engine/pkg/bridge"
	"github.com/librescoot/iccom-engine/pkg/iccom"
	iccomredis "github.com/librescoot/iccom-engine/pkg/redis"
)

var (
	redisAddr = flag.String("redis-addr", "localhost:6379", "Redis server address")
	redisPass = flag.String("redis-pass", "", "Redis password")
	redisDB   = flag.Int("redis-db", 0, "Redis database number")

	dataXferSize = flag.Int("data-xfer-size", 128, "Fixed size in bytes of a data half-frame")
	ackXferSize  = flag.Int("ack-xfer-size", 1, "Fixed size in bytes of an ack half-frame")

	metricsAddr = flag.String("metrics-addr", ":9180", "Listen address for the Prometheus /metrics endpoint")

	debugSerialDevice = flag.String("debug-serial", "", "Optional serial device for the plain-UART boot/log console (empty disables it)")
	debugSerialBaud   = flag.Int("debug-serial-baud", 115200, "Baud rate for the debug console")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting ICCom engine daemon")
	log.Printf("Redis address: %s", *redisAddr)
	log.Printf("Frame sizes: data=%d ack=%d", *dataXferSize, *ackXferSize)

	rc, err := iccomredis.New(*redisAddr, *redisPass, *redisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rc.Close()
	log.Printf("Connected to Redis")

	cfg := iccom.Config{DataXferSize: *dataXferSize, AckXferSize: *ackXferSize}

	// The real SymSPI transport driver is external hardware, out of scope
	// for this repo (spec.md §1) - it is specified only by its contract
	// (pkg/iccom.Transport). Lacking that hardware here, the daemon talks
	// to a local loopback peer that stands in for the other chip; swap in
	// a real Transport implementation once one exists.
	local, peer := iccom.NewLoopbackPair()

	engine, err := iccom.Init(local, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize ICCom engine: %v", err)
	}
	defer engine.Close()

	peerEngine, err := iccom.Init(peer, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize peer ICCom engine: %v", err)
	}
	defer peerEngine.Close()
	startPeerEcho(peerEngine)

	br := bridge.New(engine, rc)
	if err := br.RegisterInbound(bridge.TelemetryChannel); err != nil {
		log.Fatalf("Failed to register telemetry channel callback: %v", err)
	}
	br.Start()
	defer br.Close()
	log.Printf("Bridge draining %s, publishing inbound messages under iccom:inbound:<channel>", bridge.OutboundListKey)

	if err := prometheus.Register(engine.Collector()); err != nil {
		log.Printf("Warning: failed to register Prometheus collector: %v", err)
	}
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("Serving Prometheus metrics on %s/metrics", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	var debugConsole *DebugConsole
	if *debugSerialDevice != "" {
		debugConsole, err = OpenDebugConsole(*debugSerialDevice, *debugSerialBaud)
		if err != nil {
			log.Printf("Warning: failed to open debug console on %s: %v", *debugSerialDevice, err)
		} else {
			defer debugConsole.Close()
			log.Printf("Debug console listening on %s @ %d baud", *debugSerialDevice, *debugSerialBaud)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("Shutting down...")
}

// startPeerEcho installs a global ready-callback on the simulated peer
// engine that simply re-posts whatever it receives back to the same
// channel on its own side, so a telemetry message posted by this daemon
// has something that acknowledges it end to end during bring-up without
// real hardware on the other side of the link.
func startPeerEcho(peerEngine *iccom.Engine) {
	_ = peerEngine.SetChannelCallback(iccom.AnyChannel, func(channel iccom.Channel, data []byte, opaque interface{}) bool {
		if channel == bridge.TelemetryChannel {
			if env, err := bridge.DecodeEnvelope(data); err == nil {
				log.Printf("peer: telemetry seq=%d kind=%s (%d bytes)", env.Seq, env.Kind, len(env.Payload))
			}
		}
		if err := peerEngine.Post(channel, data); err != nil {
			log.Printf("peer: echo on channel %d failed: %v", channel, err)
		}
		return true
	}, nil)
}
