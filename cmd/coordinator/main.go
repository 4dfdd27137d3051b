// Command coordinator runs the board coordination service.
//
// The coordinator gates cell submissions into batches, dispatches closed
// batches to a decryption oracle service, and finalizes callbacks after
// commitment and proof checks. It never handles key material or plaintexts
// of its own; the oracle's verification key is fetched from the oracle
// service at startup, with its TEE attestation checked unless disabled.
//
// # Usage
//
//	go run ./cmd/coordinator --oracle=http://localhost:8090 --owner=<address>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/api/httpserver"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/cmd/common"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/coordinator"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/oracle"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/services"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (disabled if empty)")
		enablePprof = flag.Bool("pprof", false, "Enable pprof debugging API")

		ownerHex  = flag.String("owner", "", "Owner address (hex, required)")
		oracleURL = flag.String("oracle", "", "Oracle service URL (required)")

		instanceID      = flag.String("instance-id", "gol-fhe-local", "Instance identifier scoping batch commitments")
		width           = flag.Int("width", 10, "Board width")
		height          = flag.Int("height", 10, "Board height")
		submitCooldown  = flag.Duration("submit-cooldown", 10*time.Second, "Initial per-provider submission cooldown")
		decryptCooldown = flag.Duration("decrypt-cooldown", 30*time.Second, "Initial per-caller decryption cooldown")

		useTDX          = flag.Bool("tdx", false, "Verify the oracle key attestation as a real TDX quote")
		oracleMRTD      = flag.String("oracle-mrtd", "", "Expected oracle MRTD measurement (hex, optional)")
		skipAttestation = flag.Bool("skip-attestation", false, "Accept the oracle key without attestation verification")

		pgHost     = flag.String("pg-host", "", "PostgreSQL host for the event store (disabled if empty)")
		pgPort     = flag.Int("pg-port", 5432, "PostgreSQL port")
		pgUser     = flag.String("pg-user", "gol", "PostgreSQL user")
		pgPassword = flag.String("pg-password", "", "PostgreSQL password")
		pgDatabase = flag.String("pg-database", "gol", "PostgreSQL database")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *ownerHex == "" || *oracleURL == "" {
		fmt.Println("Error: --owner and --oracle are required")
		os.Exit(1)
	}

	owner, err := crypto.ParseAddress(*ownerHex)
	if err != nil {
		fmt.Printf("Invalid owner address: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote := oracle.NewRemoteOracle(*oracleURL)

	var verifyKey crypto.PublicKey
	if *skipAttestation {
		keyResp, err := remote.FetchVerificationKey(ctx)
		if err != nil {
			fmt.Printf("Fetching oracle key failed: %v\n", err)
			os.Exit(1)
		}
		verifyKey, err = crypto.NewPublicKeyFromString(keyResp.PublicKey)
		if err != nil {
			fmt.Printf("Invalid oracle key: %v\n", err)
			os.Exit(1)
		}
		log.Warn("oracle key accepted without attestation verification")
	} else {
		provider := common.NewAttestationProvider(*useTDX, "")
		verifyKey, err = common.FetchVerifiedOracleKey(ctx, remote, provider, *oracleMRTD)
		if err != nil {
			fmt.Printf("Oracle key verification failed: %v\n", err)
			os.Exit(1)
		}
	}
	log.Info("oracle key verified", "key", verifyKey.String())

	sink := services.MultiSink{&services.SlogSink{Log: log}}
	if *pgHost != "" {
		store, err := services.NewPostgresEventStore(&services.PostgresConfig{
			Host:     *pgHost,
			Port:     *pgPort,
			User:     *pgUser,
			Password: *pgPassword,
			Database: *pgDatabase,
		}, log)
		if err != nil {
			fmt.Printf("Event store error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		sink = append(sink, store)
	}

	engine, err := coordinator.New(coordinator.EngineConfig{
		Protocol: &protocol.Config{
			Width:           *width,
			Height:          *height,
			AliveValue:      1,
			InstanceID:      *instanceID,
			SubmitCooldown:  *submitCooldown,
			DecryptCooldown: *decryptCooldown,
		},
		Owner:    owner,
		Oracle:   remote,
		Verifier: oracle.NewEd25519Verifier(verifyKey),
		Sink:     sink,
		Log:      log,
	})
	if err != nil {
		fmt.Printf("Engine error: %v\n", err)
		os.Exit(1)
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               *addr,
		MetricsAddr:              *metricsAddr,
		EnablePprof:              *enablePprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}, services.NewCoordinatorHandler(engine, log))
	if err != nil {
		fmt.Printf("Server error: %v\n", err)
		os.Exit(1)
	}

	srv.RunInBackground()
	fmt.Printf("Coordinator listening on %s (board %dx%d)\n", *addr, *width, *height)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("Shutting down coordinator...")
	srv.Shutdown()
}
