// Package rtc mints time limited Agora access tokens for the media provider.
package rtc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/AgoraIO-Community/go-tokenbuilder/rtctokenbuilder"

	"github.com/example/sirius-meet/internal/application"
)

// DefaultTTL is how long issued tokens stay valid.
const DefaultTTL = 24 * time.Hour

// ErrNotConfigured is returned when the app id or certificate is missing.
var ErrNotConfigured = fmt.Errorf("rtc: app id and certificate are required: %w", application.ErrRTCNotConfigured)

// Config holds the provider credentials.
type Config struct {
	AppID          string
	AppCertificate string
	TTL            time.Duration
}

// TokenIssuer implements application.RTCTokenIssuer.
type TokenIssuer struct {
	appID       string
	certificate string
	ttl         time.Duration
	now         func() time.Time
}

// NewTokenIssuer returns an issuer for config. Missing credentials are not an
// error here; Issue reports them so the server can start without RTC.
func NewTokenIssuer(config Config, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenIssuer{
		appID:       strings.TrimSpace(config.AppID),
		certificate: strings.TrimSpace(config.AppCertificate),
		ttl:         ttl,
		now:         now,
	}
}

// Configured reports whether both credentials are present.
func (i *TokenIssuer) Configured() bool {
	return i != nil && i.appID != "" && i.certificate != ""
}

// Issue builds a token for uid on channel with the given role. Numeric uids
// that fit in 32 bits get a uid token; anything else, such as participant
// ids, is bound as a user account.
func (i *TokenIssuer) Issue(channel, uid, role string) (application.RTCToken, error) {
	if !i.Configured() {
		return application.RTCToken{}, ErrNotConfigured
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return application.RTCToken{}, errors.New("rtc: channel is required")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return application.RTCToken{}, errors.New("rtc: uid is required")
	}
	providerRole, err := toProviderRole(role)
	if err != nil {
		return application.RTCToken{}, err
	}

	expires := i.now().UTC().Truncate(time.Second).Add(i.ttl)
	if expires.Unix() > math.MaxUint32 {
		return application.RTCToken{}, fmt.Errorf("rtc: expiry %s is out of range", expires)
	}
	privilegeExpire := uint32(expires.Unix())

	var token string
	if numeric, ok := numericUID(uid); ok {
		token, err = rtctokenbuilder.BuildTokenWithUID(i.appID, i.certificate, channel, numeric, providerRole, privilegeExpire)
	} else {
		token, err = rtctokenbuilder.BuildTokenWithUserAccount(i.appID, i.certificate, channel, uid, providerRole, privilegeExpire)
	}
	if err != nil {
		return application.RTCToken{}, fmt.Errorf("rtc: build token: %w", err)
	}

	return application.RTCToken{
		Token:     token,
		AppID:     i.appID,
		Channel:   channel,
		UID:       uid,
		Role:      role,
		ExpiresAt: expires,
	}, nil
}

func toProviderRole(role string) (rtctokenbuilder.Role, error) {
	switch role {
	case application.RTCRolePublisher:
		return rtctokenbuilder.RolePublisher, nil
	case application.RTCRoleSubscriber:
		return rtctokenbuilder.RoleSubscriber, nil
	default:
		return 0, fmt.Errorf("rtc: role %q is invalid", role)
	}
}

func numericUID(uid string) (uint32, bool) {
	n, err := strconv.ParseUint(uid, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
