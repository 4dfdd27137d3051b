package oracle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// AsyncOracle wraps a SigningOracle and delivers each callback from a
// background goroutine after an optional delay. Requests return immediately
// with the identifier; the coordinator sees the callback arrive later, as it
// would from a real remote oracle.
type AsyncOracle struct {
	Inner   *SigningOracle
	Handler protocol.CallbackHandler
	Delay   time.Duration
	Log     *slog.Logger

	wg sync.WaitGroup
}

// RequestDecryption implements protocol.DecryptionOracle.
func (o *AsyncOracle) RequestDecryption(ctx context.Context, handles []crypto.Handle) (protocol.RequestID, error) {
	requestID, err := o.Inner.RequestDecryption(ctx, handles)
	if err != nil {
		return "", err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if o.Delay > 0 {
			time.Sleep(o.Delay)
		}
		if _, err := o.Inner.Deliver(requestID, o.Handler); err != nil {
			log := o.Log
			if log == nil {
				log = slog.Default()
			}
			log.Error("callback rejected", "request", requestID, "err", err)
		}
	}()
	return requestID, nil
}

// Wait blocks until all in-flight callbacks have been delivered.
func (o *AsyncOracle) Wait() {
	o.wg.Wait()
}
