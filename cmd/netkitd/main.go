// Command netkitd wires up a demo deployment of netkit's engines behind
// flags, mirroring the teacher's server/main.go top-level wiring: parse
// flags, construct stores/engines, wire callbacks, start goroutines, wait
// on a shutdown signal. Not the CLI front-end named in spec.md §6 (that
// remains an external, unimplemented collaborator) — just enough flag
// plumbing to start each engine for local testing.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"netkit/adminhttp"
	"netkit/conference"
	"netkit/framing"
	"netkit/livestream"
	"netkit/pubsub"
	"netkit/pubsub/persist"
	"netkit/rpc"
	"netkit/transport"
)

func main() {
	pubsubAddr := flag.Int("pubsub-port", 9001, "pub/sub listen port (0 to disable)")
	pubsubDB := flag.String("pubsub-db", "", "SQLite path for pub/sub message persistence (empty disables persistence)")
	rpcAddr := flag.Int("rpc-port", 9002, "RPC listen port (0 to disable)")
	rpcRateLimit := flag.Float64("rpc-rate-limit", 0, "max RPC requests/sec across all connections (0 disables limiting)")
	confAddr := flag.Int("conference-port", 9003, "conference listen port (0 to disable)")
	testSource := flag.String("test-source", "", "name for a synthetic livestream source (empty disables)")
	lsControlAddr := flag.Int("livestream-control-port", 9004, "livestream control listen port (0 to disable)")
	lsVideoAddr := flag.Int("livestream-video-port", 9005, "livestream video listen port (0 to disable)")
	lsAudioAddr := flag.Int("livestream-audio-port", 9006, "livestream audio listen port (0 to disable)")
	adminAddr := flag.String("admin-addr", ":8090", "admin HTTP listen address (empty disables)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[netkitd] shutting down...")
		cancel()
	}()

	admin := adminhttp.NewServer()

	if *pubsubAddr != 0 {
		cfg := pubsub.Config{}
		if *pubsubDB != "" {
			store, err := persist.New(*pubsubDB)
			if err != nil {
				log.Fatalf("[pubsub] open store: %v", err)
			}
			defer store.Close()
			cfg.Persistence = store
		}
		broker := pubsub.New(cfg)
		admin.Topics = broker

		srv := pubsub.NewServer(broker, framing.DefaultMaxFrameSize)
		go func() {
			addr, err := srv.Listen(ctx, transport.Endpoint{Port: *pubsubAddr, Kind: transport.KindStream}, 0)
			if err != nil {
				log.Fatalf("[pubsub] listen: %v", err)
			}
			log.Printf("[pubsub] listening on %s", addr)
		}()
	}

	if *rpcAddr != 0 {
		engine := rpc.New()
		registerBuiltinMethods(engine)

		var limiter *rpc.Limiter
		if *rpcRateLimit > 0 {
			limiter = rpc.NewLimiter(*rpcRateLimit, 1)
		}

		srv := rpc.NewServer(engine, limiter, framing.DefaultMaxFrameSize)
		go func() {
			addr, err := srv.Listen(ctx, transport.Endpoint{Port: *rpcAddr, Kind: transport.KindStream}, 0)
			if err != nil {
				log.Fatalf("[rpc] listen: %v", err)
			}
			log.Printf("[rpc] listening on %s", addr)
		}()
	}

	if *confAddr != 0 {
		registry := conference.NewRegistry()
		admin.Rooms = registry

		srv := conference.NewServer(registry, framing.DefaultMaxFrameSize)
		go func() {
			addr, err := srv.Listen(ctx, transport.Endpoint{Port: *confAddr, Kind: transport.KindStream}, 0)
			if err != nil {
				log.Fatalf("[conference] listen: %v", err)
			}
			log.Printf("[conference] listening on %s", addr)
		}()
	}

	if *testSource != "" || *lsControlAddr != 0 || *lsVideoAddr != 0 || *lsAudioAddr != 0 {
		catalog := livestream.NewCatalog()
		admin.Sources = catalog

		if *testSource != "" {
			go livestream.RunSyntheticSource(ctx, catalog, *testSource, *testSource, true, true)
		}

		srv := livestream.NewServer(catalog, framing.DefaultMaxFrameSize)
		if *lsControlAddr != 0 {
			go func() {
				addr, err := srv.ListenControl(ctx, transport.Endpoint{Port: *lsControlAddr, Kind: transport.KindStream}, 0)
				if err != nil {
					log.Fatalf("[livestream] control listen: %v", err)
				}
				log.Printf("[livestream] control listening on %s", addr)
			}()
		}
		if *lsVideoAddr != 0 {
			go func() {
				addr, err := srv.ListenVideo(ctx, transport.Endpoint{Port: *lsVideoAddr, Kind: transport.KindStream}, 0)
				if err != nil {
					log.Fatalf("[livestream] video listen: %v", err)
				}
				log.Printf("[livestream] video listening on %s", addr)
			}()
		}
		if *lsAudioAddr != 0 {
			go func() {
				addr, err := srv.ListenAudio(ctx, transport.Endpoint{Port: *lsAudioAddr, Kind: transport.KindStream}, 0)
				if err != nil {
					log.Fatalf("[livestream] audio listen: %v", err)
				}
				log.Printf("[livestream] audio listening on %s", addr)
			}()
		}
	}

	if *adminAddr != "" {
		go admin.Run(ctx, *adminAddr)
		log.Printf("[admin] listening on %s", *adminAddr)
	}

	<-ctx.Done()
	// Give in-flight listeners their grace period to unwind.
	time.Sleep(transport.DefaultGracePeriod)
}

// registerBuiltinMethods registers a single demo RPC method, "ping", so a
// freshly started process has something to call; real deployments register
// their own domain methods.
func registerBuiltinMethods(e *rpc.Engine) {
	e.Register("ping", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		return "pong", nil
	})
}
