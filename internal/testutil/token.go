package testutil

// DefaultToken is used when a scenario names no transaction token.
const DefaultToken = "test-token-default"

// FixedTokenGenerator returns the same transaction token every time, so all
// records of a scenario share one token and golden traces stay byte-stable.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a generator for token, or DefaultToken when
// token is empty.
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = DefaultToken
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}
