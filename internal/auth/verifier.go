package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("auth: invalid token")

// Verifier checks admin bearer tokens issued by the external merchant-session
// service. Only verification lives here; issuance stays outside this service.
type Verifier struct {
	Secret    []byte
	Validator TokenValidator
}

// NewVerifier constructs a Verifier for HS256 tokens with the given issuer
// and audience expectations.
func NewVerifier(secret, issuer, audience string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	return &Verifier{
		Secret: []byte(secret),
		Validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: 30 * time.Second,
			Algorithm: jwa.HS256,
		},
	}, nil
}

// Verify parses and validates the token, returning its subject (the merchant
// identifier) on success.
func (v *Verifier) Verify(raw string, now time.Time) (string, error) {
	if v == nil || len(v.Secret) == 0 {
		return "", errors.New("auth: verifier not configured")
	}
	msg, err := jws.Parse([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	algorithm := jwa.SignatureAlgorithm("")
	if sigs := msg.Signatures(); len(sigs) > 0 {
		algorithm = sigs[0].ProtectedHeaders().Algorithm()
	}

	token, err := jwt.ParseString(raw,
		jwt.WithKey(jwa.HS256, v.Secret),
		jwt.WithValidate(false),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := v.Validator.Validate(token, algorithm, now); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subject := strings.TrimSpace(token.Subject())
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return subject, nil
}
