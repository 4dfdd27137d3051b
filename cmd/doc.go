// Package cmd provides the service and CLI binaries.
//
// # Commands
//
// coordinator: Runs the board coordination service. Fetches and verifies
// the oracle's attested verification key at startup, then serves the
// submission, administration, and decryption endpoints.
//
//	go run ./cmd/coordinator --oracle=http://localhost:8090 --owner=<address>
//
// oracle: Runs the standalone decryption oracle. Holds the proof signing
// key, mints handles, and posts proven callbacks to the coordinator.
//
//	go run ./cmd/oracle --callback=http://localhost:8080/decryption/callback
//
// demo-cli: CLI for interacting with a deployment, plus an in-process demo.
//
//	go run ./cmd/demo-cli demo
//	go run ./cmd/demo-cli submit --coordinator=http://localhost:8080 --key=<hex> --x=4 --y=4
//	go run ./cmd/demo-cli reveal --coordinator=http://localhost:8080 --key=<hex> --batch=0
//
// # Event Persistence
//
// The coordinator can persist its audit event stream to PostgreSQL with the
// --pg-host family of flags. Without them events go to the structured log
// only.
package cmd
