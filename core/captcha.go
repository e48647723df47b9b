package core

import "time"

// Challenge is a generated arithmetic question together with its answer.
type Challenge struct {
	Operand1 int    // First operand
	Operand2 int    // Second operand
	Operator string // "+", "-" or "×"
	Question string // Localized human-readable question
	Answer   string // Decimal string of the arithmetic result
}

// ChallengeSession binds a challenge answer to an opaque session identifier.
// Sessions are short-lived and owned exclusively by the challenge store.
type ChallengeSession struct {
	ID        string    // High-entropy opaque identifier
	Answer    string    // Expected answer, string-normalized
	CreatedAt time.Time // When the challenge was issued
	Attempts  int       // Number of verification attempts so far
	Verified  bool      // Whether a correct answer was submitted
}
