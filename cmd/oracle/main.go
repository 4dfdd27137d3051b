// Command oracle runs the standalone decryption oracle service.
//
// The oracle holds the proof signing key, mints handles through its
// encryption endpoint, fulfills decryption requests asynchronously, and
// posts proven callbacks to the coordinator. When run with --tdx it
// publishes its verification key under a DCAP quote binding the key.
//
// # Usage
//
//	go run ./cmd/oracle --addr=:8090 --callback=http://localhost:8080/decryption/callback
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/api/httpserver"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/cmd/common"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/oracle"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/services"
)

func main() {
	var (
		addr        = flag.String("addr", ":8090", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (disabled if empty)")
		callbackURL = flag.String("callback", "", "Coordinator callback URL (required)")

		proofKeyHex  = flag.String("proof-key", "", "Ed25519 proof signing key (hex, generates if empty)")
		useTDX       = flag.Bool("tdx", false, "Attest the verification key with a real TDX quote")
		remoteTDXURL = flag.String("tdx-url", "", "Remote TDX attestation service URL")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *callbackURL == "" {
		fmt.Println("Error: --callback is required")
		os.Exit(1)
	}

	proofKey, err := common.LoadOrGenerateSigningKey(*proofKeyHex)
	if err != nil {
		fmt.Printf("Proof key error: %v\n", err)
		os.Exit(1)
	}

	so, err := oracle.NewSigningOracleWithKey(proofKey)
	if err != nil {
		fmt.Printf("Oracle error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Oracle verification key: %s\n", so.VerificationKey().String())

	provider := common.NewAttestationProvider(*useTDX, *remoteTDXURL)
	svc := services.NewOracleService(so, provider, *callbackURL, log)

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               *addr,
		MetricsAddr:              *metricsAddr,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}, svc)
	if err != nil {
		fmt.Printf("Server error: %v\n", err)
		os.Exit(1)
	}

	srv.RunInBackground()
	fmt.Printf("Oracle listening on %s (attestation %s)\n", *addr, provider.AttestationType())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("Shutting down oracle...")
	srv.Shutdown()
}
