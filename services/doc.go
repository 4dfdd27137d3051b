// Package services provides the HTTP surface of the system: the coordinator
// handler exposing submission, administration, decryption and query
// endpoints; the standalone oracle service that fulfills decryption requests
// and posts callbacks; and the audit event sinks (in-memory, structured-log,
// PostgreSQL) the coordinator emits into.
//
// Authentication is message-level: mutating requests arrive as Signed
// envelopes and the acting address is derived from the recovered signer key,
// never from transport identity. The oracle callback endpoint is the one
// exception; it is authenticated by the decryption proof itself.
package services
