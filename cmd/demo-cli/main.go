// Command gol provides CLI tools for interacting with a deployed board
// coordinator and oracle.
//
// # Commands
//
// demo: Run a full in-process lifecycle (open, submit a glider, close,
// decrypt) and render the revealed board.
//
//	gol demo
//
// submit: Encrypt a cell value through the oracle and submit the handle.
//
//	gol submit --coordinator=http://localhost:8080 --oracle=http://localhost:8090 --key=<hex> --x=4 --y=4
//
// reveal: Request decryption of a closed batch and render the result.
//
//	gol reveal --coordinator=http://localhost:8080 --key=<hex> --batch=0
//
// status: Display coordinator status and configuration.
//
//	gol status --coordinator=http://localhost:8080
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/cmd/common"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/coordinator"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/oracle"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/services"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "demo":
		err = runDemo(args)
	case "submit":
		err = runSubmit(args)
	case "reveal":
		err = runReveal(args)
	case "status":
		err = runStatus(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gol - CLI tools for the encrypted board

Usage:
  gol <command> [options]

Commands:
  demo      Run a full in-process lifecycle demo
  submit    Encrypt and submit a cell
  reveal    Request decryption of a closed batch
  status    Display coordinator status

Run 'gol <command> --help' for command-specific options.`)
}

// postSigned signs body with key and posts the envelope to url.
func postSigned[T any](url string, key crypto.PrivateKey, body *T) (*http.Response, error) {
	signed, err := protocol.NewSigned(key, body)
	if err != nil {
		return nil, err
	}
	payload, err := protocol.SerializeMessage(signed)
	if err != nil {
		return nil, err
	}
	return http.Post(url, "application/json", bytes.NewReader(payload))
}

func expectOK(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(buf.String()))
	}
	return nil
}

// renderBoard draws the revealed plaintexts as a character grid.
func renderBoard(cfg *protocol.Config, plaintexts []byte) string {
	var sb strings.Builder
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			if plaintexts[cfg.SlotIndex(x, y)] == cfg.AliveValue {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// --- Demo Command ---

func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	width := fs.Int("width", 10, "Board width")
	height := fs.Int("height", 10, "Board height")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ownerPub, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	providerPub, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	owner := crypto.AddressFromPublicKey(ownerPub)
	provider := crypto.AddressFromPublicKey(providerPub)

	so, err := oracle.NewSigningOracle()
	if err != nil {
		return err
	}

	cfg := protocol.DefaultConfig()
	cfg.Width = *width
	cfg.Height = *height
	cfg.SubmitCooldown = 0
	cfg.DecryptCooldown = 0

	engine, err := coordinator.New(coordinator.EngineConfig{
		Protocol: cfg,
		Owner:    owner,
		Oracle:   so,
		Verifier: oracle.NewEd25519Verifier(so.VerificationKey()),
		Sink:     &services.SlogSink{Log: slog.New(slog.NewTextHandler(os.Stderr, nil))},
	})
	if err != nil {
		return err
	}

	batchID, err := engine.OpenBatch(owner)
	if err != nil {
		return err
	}
	if err := engine.AddProvider(owner, provider); err != nil {
		return err
	}

	// A glider in the top-left corner.
	glider := [][2]int{{1, 0}, {2, 1}, {0, 2}, {1, 2}, {2, 2}}
	for _, pos := range glider {
		handle, err := so.Encrypt(cfg.AliveValue)
		if err != nil {
			return err
		}
		if err := engine.SubmitCell(provider, pos[0], pos[1], handle); err != nil {
			return err
		}
	}

	if _, err := engine.CloseBatch(owner); err != nil {
		return err
	}

	requestID, err := engine.RequestDecryption(context.Background(), provider, batchID)
	if err != nil {
		return err
	}

	outcome, err := so.Deliver(requestID, engine)
	if err != nil {
		return err
	}

	fmt.Printf("Batch %d revealed: %d live cells\n\n", outcome.BatchID, outcome.LiveCells)
	fmt.Print(renderBoard(cfg, outcome.Plaintexts))
	return nil
}

// --- Submit Command ---

func runSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	coordinatorURL := fs.String("coordinator", "http://localhost:8080", "Coordinator URL")
	oracleURL := fs.String("oracle", "http://localhost:8090", "Oracle service URL")
	keyHex := fs.String("key", "", "Provider signing key (hex, required)")
	x := fs.Int("x", 0, "Cell x coordinate")
	y := fs.Int("y", 0, "Cell y coordinate")
	value := fs.Uint("value", 1, "Plaintext cell value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *keyHex == "" {
		return fmt.Errorf("--key is required")
	}

	key, err := common.LoadOrGenerateSigningKey(*keyHex)
	if err != nil {
		return err
	}

	remote := oracle.NewRemoteOracle(*oracleURL)
	handle, err := remote.Encrypt(context.Background(), byte(*value))
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}

	resp, err := postSigned(*coordinatorURL+"/cells", key, &services.SubmitCellRequest{
		X: *x, Y: *y, Handle: handle,
	})
	if err := expectOK(resp, err); err != nil {
		return err
	}

	fmt.Printf("Submitted (%d,%d) as %s\n", *x, *y, handle.String())
	return nil
}

// --- Reveal Command ---

func runReveal(args []string) error {
	fs := flag.NewFlagSet("reveal", flag.ExitOnError)
	coordinatorURL := fs.String("coordinator", "http://localhost:8080", "Coordinator URL")
	keyHex := fs.String("key", "", "Signing key (hex, required)")
	batchID := fs.Uint64("batch", 0, "Batch to decrypt")
	timeout := fs.Duration("timeout", 30*time.Second, "Time to wait for the callback")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *keyHex == "" {
		return fmt.Errorf("--key is required")
	}

	key, err := common.LoadOrGenerateSigningKey(*keyHex)
	if err != nil {
		return err
	}

	cfg, err := common.FetchProtocolConfig(*coordinatorURL)
	if err != nil {
		return err
	}

	resp, err := postSigned(*coordinatorURL+"/decryption/request", key,
		&services.DecryptionRequestBody{BatchID: *batchID})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return fmt.Errorf("request rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(buf.String()))
	}
	reqResp, err := protocol.DecodeMessage[services.DecryptionRequestResponse](resp.Body)
	if err != nil {
		return err
	}
	fmt.Printf("Decryption requested: %s\n", reqResp.RequestID)

	deadline := time.Now().Add(*timeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for callback on request %s", reqResp.RequestID)
		}
		time.Sleep(250 * time.Millisecond)

		res, err := http.Get(*coordinatorURL + "/decryption/result/" + string(reqResp.RequestID))
		if err != nil {
			continue
		}
		result, err := protocol.DecodeMessage[services.ResultResponse](res.Body)
		res.Body.Close()
		if err != nil || !result.Processed || result.Outcome == nil {
			continue
		}

		fmt.Printf("Batch %d revealed: %d live cells\n\n", result.BatchID, result.Outcome.LiveCells)
		fmt.Print(renderBoard(cfg, result.Outcome.Plaintexts))
		return nil
	}
}

// --- Status Command ---

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	coordinatorURL := fs.String("coordinator", "http://localhost:8080", "Coordinator URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := http.Get(*coordinatorURL + "/status")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	status, err := protocol.DecodeMessage[services.StatusResponse](resp.Body)
	if err != nil {
		return err
	}

	cfg, err := common.FetchProtocolConfig(*coordinatorURL)
	if err != nil {
		return err
	}

	fmt.Printf("Instance:  %s\n", cfg.InstanceID)
	fmt.Printf("Board:     %dx%d\n", cfg.Width, cfg.Height)
	fmt.Printf("Batch:     %d (%s)\n", status.BatchID, status.Phase)
	fmt.Printf("Paused:    %v\n", status.Paused)
	fmt.Printf("Providers: %d\n", status.Providers)
	fmt.Printf("Cooldowns: submit %s, decrypt %s\n", cfg.SubmitCooldown, cfg.DecryptCooldown)
	return nil
}
