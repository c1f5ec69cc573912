// Package grant signs and verifies meeting grants: short lived HS256 tokens
// binding their bearer to one meeting, one role and optionally one
// participant.
package grant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/example/sirius-meet/internal/application"
)

// Issuer is the iss claim of every grant.
const Issuer = "sirius-meet"

type claims struct {
	jwt.RegisteredClaims
	MeetingID     string `json:"meeting_id"`
	RoomID        string `json:"room_id"`
	Role          string `json:"role"`
	ParticipantID string `json:"participant_id,omitempty"`
}

// Signer implements application.GrantSigner.
type Signer struct {
	key []byte
	now func() time.Time
}

// NewSigner derives the signing key from secret.
func NewSigner(secret []byte, now func() time.Time) (*Signer, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{key: key, now: now}, nil
}

// Sign mints a token for g. A zero IssuedAt defaults to now and a missing
// id is replaced by a random UUID.
func (s *Signer) Sign(g application.Grant) (string, error) {
	if g.MeetingID == "" || g.RoomID == "" {
		return "", errors.New("grant requires meeting and room")
	}
	if g.Role != application.RoleHost && g.Role != application.RoleParticipant {
		return "", fmt.Errorf("grant role %q is invalid", g.Role)
	}
	issuedAt := g.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = s.now()
	}
	if !g.ExpiresAt.After(issuedAt) {
		return "", errors.New("grant expires before it is issued")
	}
	id := g.ID
	if id == "" {
		id = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   g.Subject,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(g.ExpiresAt),
		},
		MeetingID:     g.MeetingID,
		RoomID:        g.RoomID,
		Role:          string(g.Role),
		ParticipantID: g.ParticipantID,
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return signed, nil
}

// Verify parses token and reports application.ErrUnauthorized for anything
// that is not a live grant signed by this key.
func (s *Signer) Verify(token string) (application.Grant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return application.Grant{}, fmt.Errorf("%w: grant is required", application.ErrUnauthorized)
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return application.Grant{}, mapJWTError(err)
	}

	role := application.ParticipantRole(parsed.Role)
	if parsed.MeetingID == "" || parsed.RoomID == "" || (role != application.RoleHost && role != application.RoleParticipant) {
		return application.Grant{}, fmt.Errorf("%w: grant claims are incomplete", application.ErrUnauthorized)
	}

	g := application.Grant{
		ID:            parsed.ID,
		MeetingID:     parsed.MeetingID,
		RoomID:        parsed.RoomID,
		Role:          role,
		ParticipantID: parsed.ParticipantID,
		Subject:       parsed.Subject,
		ExpiresAt:     parsed.ExpiresAt.Time.UTC(),
	}
	if parsed.IssuedAt != nil {
		g.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return g, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: grant is expired", application.ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: grant signature is invalid", application.ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: grant issuer mismatch", application.ErrUnauthorized)
	}
	return fmt.Errorf("%w: grant is invalid", application.ErrUnauthorized)
}
