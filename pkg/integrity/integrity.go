package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avelios/maestro/pkg/plan"
	"github.com/avelios/maestro/pkg/signer"
)

// canonicalStep is the hash input shape for a single step. The json key
// names and the alphabetical field order are part of the hash contract;
// encoding/json sorts payload map keys, so semantically equal payloads
// produce identical bytes regardless of construction order.
type canonicalStep struct {
	Action     string                 `json:"action"`
	Payload    map[string]interface{} `json:"payload"`
	StepNumber int                    `json:"stepNumber"`
}

// TamperReport is the outcome of comparing a plan against a baseline hash
type TamperReport struct {
	Tampered    bool   `json:"tampered"`
	CurrentHash string `json:"currentHash,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Service computes and checks plan integrity attestations. It never
// mutates plans; stamping hashes onto documents is the caller's act.
type Service struct {
	logger zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger routes integrity log output through the given logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates an integrity Service
func New(opts ...Option) *Service {
	s := &Service{logger: log.Logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Canonical returns the canonical byte encoding of the plan's steps in
// array order: a compact JSON array of {action, payload, stepNumber}
// objects. Only step content is covered; metadata such as description or
// riskLevel can change without invalidating the hash.
func Canonical(p *plan.ExecutionPlan) ([]byte, error) {
	steps := make([]canonicalStep, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = canonicalStep{
			Action:     s.Action,
			Payload:    s.Payload,
			StepNumber: s.StepNumber,
		}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize plan %s for hashing: %w", p.PlanID, err)
	}
	return data, nil
}

// GeneratePlanHash computes the lowercase hex SHA-256 of the canonical form
func (s *Service) GeneratePlanHash(p *plan.ExecutionPlan) (string, error) {
	data, err := Canonical(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyPlanHash recomputes the plan hash and compares it against the
// stored one in constant time. A plan without a stored hash never verifies.
func (s *Service) VerifyPlanHash(p *plan.ExecutionPlan) bool {
	if p.PlanHash == "" {
		return false
	}
	expected, err := s.GeneratePlanHash(p)
	if err != nil {
		s.logger.Error().Str("planId", p.PlanID).Err(err).Msg("Plan hash recomputation failed")
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(p.PlanHash)) == 1
}

// VerifySignature checks a hex ed25519 signature over planHash against a
// hex public key. Malformed input reports false rather than failing.
func (s *Service) VerifySignature(planHash, signature, publicKey string) bool {
	if planHash == "" || signature == "" || publicKey == "" {
		return false
	}
	return signer.Verify(publicKey, planHash, signature)
}

// DetectTampering compares the plan's current content against a baseline
// hash and reports what changed state, if any, was observed
func (s *Service) DetectTampering(originalHash string, p *plan.ExecutionPlan) TamperReport {
	if originalHash == "" {
		return TamperReport{
			Tampered: true,
			Message:  "no baseline hash to compare against",
		}
	}

	current, err := s.GeneratePlanHash(p)
	if err != nil {
		return TamperReport{
			Tampered: true,
			Message:  fmt.Sprintf("plan could not be serialized: %v", err),
		}
	}

	if subtle.ConstantTimeCompare([]byte(current), []byte(originalHash)) == 1 {
		return TamperReport{CurrentHash: current}
	}

	s.logger.Warn().
		Str("planId", p.PlanID).
		Str("expected", originalHash).
		Str("current", current).
		Msg("Plan content does not match baseline hash")

	return TamperReport{
		Tampered:    true,
		CurrentHash: current,
		Message:     "plan content does not match the baseline hash",
	}
}
