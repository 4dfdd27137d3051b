// Package oracle provides decryption-oracle implementations and the proof
// verification used to trust their callbacks.
//
// SigningOracle is the in-process reference oracle: it holds the plaintext
// table of the encryption capability, fulfills requests deterministically,
// and signs (request id, plaintexts) with its proof key. AsyncOracle wraps
// it to deliver callbacks from a background goroutine, exercising the
// request/callback split the way a remote oracle would. RemoteOracle is the
// HTTP client the coordinator uses against a standalone oracle service.
//
// The coordinator only ever sees the DecryptionOracle and ProofVerifier
// interfaces; which implementation sits behind them is deployment
// configuration.
package oracle
