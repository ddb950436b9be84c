package portal

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var identifierRegex = regexp.MustCompile(`^\d{8}$`)

// SecretBounds is the accepted secret length range (in characters). The portal's
// real secret rules are not published so only the length is checked.
type SecretBounds struct {
	Min int
	Max int
}

func DefaultSecretBounds() SecretBounds {
	return SecretBounds{Min: 4, Max: 20}
}

// Credentials can only be obtained through ValidateCredentials, a Client never
// issues a request for credentials that were not validated.
type Credentials struct {
	identifier string
	secret     string
}

func (c Credentials) Identifier() string {
	return c.identifier
}

func (c Credentials) Secret() string {
	return c.secret
}

// String masks the credentials so they are safe to log.
func (c Credentials) String() string {
	masked := c.identifier
	if len(masked) > 2 {
		masked = strings.Repeat("*", len(masked)-2) + masked[len(masked)-2:]
	}
	return fmt.Sprintf("Credentials{identifier: %s, secret: ***}", masked)
}

// ValidateCredentials checks the identifier is exactly 8 digits and the secret
// length is within bounds. It never touches the network.
func ValidateCredentials(identifier, secret string, bounds SecretBounds) (Credentials, error) {
	if !identifierRegex.MatchString(identifier) {
		return Credentials{}, &InvalidCredentialFormatError{
			Field:  "identifier",
			Reason: "must be exactly 8 digits",
		}
	}

	length := utf8.RuneCountInString(secret)
	if length < bounds.Min || length > bounds.Max {
		return Credentials{}, &InvalidCredentialFormatError{
			Field:  "secret",
			Reason: fmt.Sprintf("length must be between %d and %d characters, got %d", bounds.Min, bounds.Max, length),
		}
	}

	return Credentials{identifier: identifier, secret: secret}, nil
}
