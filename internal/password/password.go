package password

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 12

// Structurally valid cost-12 bcrypt digest. Only ever fed to a comparison
// that is expected to fail; it exists to burn realistic verification time
// when the email does not resolve to a user.
const dummyDigest = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// ValidatePolicy reports whether pw meets the policy: at least 8 bytes,
// at least one letter and one digit. Purely syntactic, no entropy checks.
func ValidatePolicy(pw string) bool {
	if len(pw) < 8 {
		return false
	}

	var hasLetter, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	return hasLetter && hasDigit
}

// Hasher produces and verifies salted password digests. Exactly one
// implementation is wired at startup; callers never pick an algorithm at runtime.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool

	// VerifyDummy consumes the cost of a real verification without a stored
	// digest, for timing-equalized failure paths.
	VerifyDummy(password string)
}

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	const op = "password.Hash"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// Verify returns false for malformed or foreign-format digests, never an error.
func (h *BcryptHasher) Verify(password, digest string) bool {
	if !isBcryptDigest(digest) {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// VerifyDummy burns the same bcrypt cost as a real verification so that a
// login miss is indistinguishable by latency from a wrong password.
func (h *BcryptHasher) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyDigest), []byte(password))
}

func isBcryptDigest(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
