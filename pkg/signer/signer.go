package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avelios/maestro/pkg/plan"
)

// Signer holds an ed25519 keypair used to stamp plan hashes
type Signer struct {
	priv ed25519.PrivateKey
}

// Generate creates a Signer with a fresh keypair
func Generate() (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &Signer{priv: priv}, nil
}

// FromSeedHex builds a Signer from a hex-encoded 32-byte seed
func FromSeedHex(seedHex string) (*Signer, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(seedHex))
	if err != nil {
		return nil, fmt.Errorf("invalid key seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid key seed: expected %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Load reads a hex seed file written by Save
func Load(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return FromSeedHex(string(data))
}

// Save writes the hex seed to path, readable only by the owner
func (s *Signer) Save(path string) error {
	seed := hex.EncodeToString(s.priv.Seed())
	if err := os.WriteFile(path, []byte(seed+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// Sign returns the hex-encoded ed25519 signature of message
func (s *Signer) Sign(message string) string {
	return hex.EncodeToString(ed25519.Sign(s.priv, []byte(message)))
}

// PublicKey returns the hex-encoded public key
func (s *Signer) PublicKey() string {
	return hex.EncodeToString(s.priv.Public().(ed25519.PublicKey))
}

// SignPlan stamps Signature, SignedBy and SignedAt over the plan's existing
// hash. The hash must already be present; signing never recomputes it.
func (s *Signer) SignPlan(p *plan.ExecutionPlan, signedBy string) error {
	if p.PlanHash == "" {
		return fmt.Errorf("plan %s has no hash to sign", p.PlanID)
	}
	p.Signature = s.Sign(p.PlanHash)
	p.SignedBy = signedBy
	p.SignedAt = time.Now()
	return nil
}

// Verify checks a hex signature over message against a hex public key.
// Malformed keys or signatures report false rather than failing.
func Verify(publicKeyHex, message, signatureHex string) bool {
	pub, err := hex.DecodeString(strings.TrimSpace(publicKeyHex))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig)
}
