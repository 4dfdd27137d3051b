package oracle

import (
	"crypto/sha256"
	"fmt"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
)

// TEEProvider abstracts attestation generation and verification for oracle
// deployments running inside a trusted execution environment.
type TEEProvider interface {
	AttestationType() string
	Attest(reportData [64]byte) ([]byte, error)
	Verify(attestationReport []byte, expectedReportData [64]byte) (map[int][]byte, error)
}

const keyBindingDomain = "gol-fhe/v1/oracle-key-binding"

// KeyReportData derives the attestation report data binding an oracle's
// proof verification key. The coordinator recomputes this from the claimed
// key, so an attestation can never be reused for a different key.
func KeyReportData(key crypto.PublicKey) [64]byte {
	var report [64]byte
	digest := sha256.Sum256(append([]byte(keyBindingDomain+"\x00"), key.Bytes()...))
	copy(report[:], digest[:])
	return report
}

// AttestVerificationKey produces an attestation whose report data commits to
// the oracle's verification key.
func AttestVerificationKey(provider TEEProvider, key crypto.PublicKey) ([]byte, error) {
	return provider.Attest(KeyReportData(key))
}

// VerifyKeyAttestation checks that the attestation binds the claimed key and
// returns the attested measurements for allowlist comparison.
func VerifyKeyAttestation(provider TEEProvider, key crypto.PublicKey, attestation []byte) (map[int][]byte, error) {
	measurements, err := provider.Verify(attestation, KeyReportData(key))
	if err != nil {
		return nil, fmt.Errorf("oracle key attestation: %w", err)
	}
	return measurements, nil
}
