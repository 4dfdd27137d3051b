// Package protocol defines the shared types of the encrypted game-of-life
// coordination protocol: configuration, the error taxonomy, audit events,
// the Signed message envelope used on the wire, and the capability
// interfaces (decryption oracle, proof verifier, clock) injected into the
// coordinator.
//
// The protocol revolves around batches of encrypted cell submissions. A
// batch is opened, providers submit ciphertext handles into board slots,
// the batch is closed, and anyone may then ask for it to be revealed. The
// reveal is asynchronous: a request is dispatched to an external decryption
// oracle and fulfilled later through a callback correlated by an opaque
// request identifier. The callback is trusted only after a replay guard, a
// state-consistency commitment check, and cryptographic proof verification
// all pass.
package protocol
