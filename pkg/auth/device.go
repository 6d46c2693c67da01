package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// DefaultClientID is a public Azure application registration commonly used
// for Minecraft device-code sign-in. Override through config to use your own
// registration.
const DefaultClientID = "389b1b32-b5d5-43b2-bddc-84ce938d6737"

// DeviceAuth is what a caller needs to complete sign-in: visit the
// verification URI and enter the user code. When AlreadyCached is true the
// owner has a valid credential and no user interaction is needed.
type DeviceAuth struct {
	VerificationURI string `json:"verificationUri"`
	UserCode        string `json:"userCode"`
	ExpiresIn       int    `json:"expiresIn"`
	AlreadyCached   bool   `json:"alreadyCached"`
}

// Flow runs the OAuth device authorization flow against the Microsoft
// consumers tenant and caches the resulting token per owner.
type Flow struct {
	cfg   oauth2.Config
	store *Store
}

func NewFlow(clientID string, store *Store) *Flow {
	if clientID == "" {
		clientID = DefaultClientID
	}
	return &Flow{
		cfg: oauth2.Config{
			ClientID: clientID,
			Endpoint: microsoft.AzureADEndpoint("consumers"),
			Scopes:   []string{"XboxLive.signin", "offline_access"},
		},
		store: store,
	}
}

// BeginDeviceAuth starts device-code sign-in for the owner. If a valid
// credential is already cached it short-circuits with AlreadyCached set.
// Otherwise it returns the verification URI and user code immediately and
// polls for completion in the background, caching the token once the user
// approves.
func (f *Flow) BeginDeviceAuth(ctx context.Context, owner string) (DeviceAuth, error) {
	if tok, err := f.store.Load(owner); err == nil && tok.Valid() {
		return DeviceAuth{AlreadyCached: true}, nil
	}

	da, err := f.cfg.DeviceAuth(ctx)
	if err != nil {
		return DeviceAuth{}, fmt.Errorf("starting device auth: %w", err)
	}

	go f.awaitApproval(owner, da)

	expiresIn := int(time.Until(da.Expiry).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return DeviceAuth{
		VerificationURI: da.VerificationURI,
		UserCode:        da.UserCode,
		ExpiresIn:       expiresIn,
	}, nil
}

// Token returns the owner's cached credential, refreshing it through the
// token source when expired.
func (f *Flow) Token(ctx context.Context, owner string) (*oauth2.Token, error) {
	tok, err := f.store.Load(owner)
	if err != nil {
		return nil, err
	}
	if tok.Valid() {
		return tok, nil
	}
	fresh, err := f.cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	if err := f.store.Save(owner, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// awaitApproval blocks until the user approves the device code or it
// expires, then caches the token. Runs detached; the relay core never waits
// on it.
func (f *Flow) awaitApproval(owner string, da *oauth2.DeviceAuthResponse) {
	deadline := da.Expiry
	if deadline.IsZero() {
		deadline = time.Now().Add(15 * time.Minute)
	}
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	tok, err := f.cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		log.Warn().
			Str("component", "auth").
			Str("owner", owner).
			Err(err).
			Msg("device auth not completed")
		return
	}
	if err := f.store.Save(owner, tok); err != nil {
		log.Error().
			Str("component", "auth").
			Str("owner", owner).
			Err(err).
			Msg("caching token failed")
		return
	}
	log.Info().
		Str("component", "auth").
		Str("owner", owner).
		Msg("credential cached")
}
