// Package catalog issues every outbound call to the external music catalog: search,
// user-profile fetch, playlist create, and playlist-tracks add. It wraps those calls with
// retry/backoff, a soft rate-limit throttle, and a bounded concurrency semaphore, and exposes a
// single shared client handle workers call concurrently.
package catalog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"playlistimport/internal/core"
	"playlistimport/pkg/normalize"
)

const tokenFilePermission = 0o600

// throttleCallsPerWorkerPerMinute scales the soft-throttle's per-operation budget off
// ConcurrencyLimit: not an independently tunable knob, just the ceiling past which one more
// worker, all hitting the catalog at once, is more likely to be smoothed than to draw a 429.
const throttleCallsPerWorkerPerMinute = 30

// Client is the shared, authenticated handle every pipeline worker calls concurrently. Its
// token state is guarded by mu; its outbound HTTP traffic runs through a retryingTransport that
// owns the process-wide concurrency semaphore.
type Client struct {
	cfg              core.CatalogConfig
	concurrencyLimit int
	logger           *zap.Logger
	normalizer       *normalize.Normalizer
	auth             *spotifyauth.Authenticator
	throttle         *softThrottle
	dedup            *dedupStore

	mu           sync.Mutex
	sdk          *spotify.Client
	pendingState string
}

// TokenData is the on-disk shape of the token-cache file: opaque to everything but this client.
type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

// NewClient constructs a Client. Authenticate must be called (or CompleteAuth, after an OAuth
// round trip) before Search/CreatePlaylist/AddTracks will work.
func NewClient(cfg core.CatalogConfig, concurrencyLimit int, normalizer *normalize.Normalizer, logger *zap.Logger) *Client {
	authenticator := spotifyauth.New(
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
		),
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
	)

	if concurrencyLimit <= 0 {
		concurrencyLimit = core.DefaultConcurrencyLimit
	}

	return &Client{
		cfg:              cfg,
		concurrencyLimit: concurrencyLimit,
		logger:           logger,
		normalizer:       normalizer,
		auth:             authenticator,
		throttle:         newSoftThrottle(concurrencyLimit * throttleCallsPerWorkerPerMinute),
		dedup:            newDedupStore(4096),
	}
}

// Close stops the client's background goroutines.
func (c *Client) Close() {
	c.throttle.Stop()
}

// NewProjectClient builds a Client authenticated via the client-credentials grant: no user
// interaction, no refresh token, and no playlist-scoped permissions. The HTTP adapter's
// process-songs endpoint uses this for search, since it runs under project-level credentials
// rather than a specific user's authorization.
func NewProjectClient(ctx context.Context, cfg core.CatalogConfig, concurrencyLimit int, normalizer *normalize.Normalizer, logger *zap.Logger) (*Client, error) {
	if concurrencyLimit <= 0 {
		concurrencyLimit = core.DefaultConcurrencyLimit
	}

	ccConfig := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	httpClient := ccConfig.Client(ctx)
	httpClient.Transport = newRetryingTransport(httpClient.Transport, RetryPolicy{
		MaxRetries:       cfg.MaxRetries,
		BaseDelay:        time.Duration(cfg.RetryBaseDelaySeconds * float64(time.Second)),
		MaxDelay:         time.Duration(cfg.RetryMaxDelaySeconds * float64(time.Second)),
		TotalCallBudget:  time.Duration(cfg.TotalTimeoutPerCallSeconds) * time.Second,
		ConcurrencyLimit: concurrencyLimit,
	}, logger)

	return &Client{
		cfg:              cfg,
		concurrencyLimit: concurrencyLimit,
		logger:           logger,
		normalizer:       normalizer,
		throttle:         newSoftThrottle(concurrencyLimit * throttleCallsPerWorkerPerMinute),
		dedup:            newDedupStore(4096),
		sdk:              spotify.New(httpClient),
	}, nil
}

// Authenticate tries the persisted token first; if it is missing or rejected, the caller must
// drive the OAuth flow via AuthURL/CompleteAuth (the CLI and HTTP adapters do this differently).
func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.loadToken()
	if err != nil {
		return fmt.Errorf("catalog: no cached token: %w", err)
	}
	return c.adoptToken(ctx, token)
}

// IsAuthenticated reports whether the client currently holds a usable SDK handle.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sdk != nil
}

// AuthURL starts an authorization-code flow and returns the URL the user must visit. The state
// token is remembered so a later CompleteAuth call can reject a mismatched callback.
func (c *Client) AuthURL() (string, error) {
	state, err := randomState()
	if err != nil {
		return "", fmt.Errorf("catalog: generate oauth state: %w", err)
	}

	c.mu.Lock()
	c.pendingState = state
	c.mu.Unlock()

	return c.auth.AuthURL(state), nil
}

// CompleteAuth exchanges an authorization code for a token, persists it, and adopts it as the
// client's active credential. callbackState must match the value returned by the preceding
// AuthURL call.
func (c *Client) CompleteAuth(ctx context.Context, code, callbackState string) error {
	c.mu.Lock()
	expected := c.pendingState
	c.mu.Unlock()

	if expected == "" || callbackState != expected {
		return errors.New("catalog: oauth state mismatch")
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("catalog: exchange authorization code: %w", err)
	}

	if err := c.saveToken(token); err != nil {
		c.logger.Warn("failed to persist catalog token", zap.Error(err))
	}

	return c.adoptToken(ctx, token)
}

// adoptToken builds the retry-wrapped SDK client around token and verifies it against the
// catalog's user-profile endpoint.
func (c *Client) adoptToken(ctx context.Context, token *oauth2.Token) error {
	httpClient := c.auth.Client(ctx, token)
	httpClient.Transport = newRetryingTransport(httpClient.Transport, RetryPolicy{
		MaxRetries:       c.cfg.MaxRetries,
		BaseDelay:        time.Duration(c.cfg.RetryBaseDelaySeconds * float64(time.Second)),
		MaxDelay:         time.Duration(c.cfg.RetryMaxDelaySeconds * float64(time.Second)),
		TotalCallBudget:  time.Duration(c.cfg.TotalTimeoutPerCallSeconds) * time.Second,
		ConcurrencyLimit: c.concurrencyLimit,
	}, c.logger)

	sdk := spotify.New(httpClient)

	user, err := sdk.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("catalog: verify token: %w", err)
	}

	c.mu.Lock()
	c.sdk = sdk
	c.mu.Unlock()

	c.logger.Info("catalog client authenticated", zap.String("user", user.DisplayName))
	return nil
}

// Search issues one free-text track query built from song's normalized title main-part and up
// to its first two artists, per the single-query default strategy.
func (c *Client) Search(ctx context.Context, song core.ParsedSong) ([]core.Candidate, error) {
	sdk, err := c.sdkHandle()
	if err != nil {
		return nil, err
	}

	if err := c.throttle.Wait(ctx, "search"); err != nil {
		return nil, &Error{Kind: ErrorKindPermanent, Op: "search", Err: err}
	}

	query := c.buildSearchQuery(song)

	limit := c.cfg.SearchLimit
	if limit <= 0 {
		limit = core.DefaultSpotifySearchLimit
	}

	result, err := sdk.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, classifyAPIErr("search", err)
	}

	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, nil
	}

	candidates := make([]core.Candidate, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		candidates = append(candidates, toCandidate(&result.Tracks.Tracks[i]))
	}
	return candidates, nil
}

func (c *Client) buildSearchQuery(song core.ParsedSong) string {
	titleNorm := c.normalizer.Normalize(song.Title)
	mainTitle, _ := normalize.SplitMainAndBracketed(titleNorm)

	var b strings.Builder
	fmt.Fprintf(&b, `track:"%s"`, mainTitle)

	artists := song.Artists
	if len(artists) > 2 {
		artists = artists[:2]
	}
	for _, artist := range artists {
		fmt.Fprintf(&b, ` artist:"%s"`, c.normalizer.Normalize(artist))
	}

	return b.String()
}

func toCandidate(t *spotify.FullTrack) core.Candidate {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	album := ""
	if t.Album.Name != "" {
		album = t.Album.Name
	}

	return core.Candidate{
		ID:         string(t.ID),
		Name:       t.Name,
		Artists:    artists,
		URI:        string(t.URI),
		AlbumName:  album,
		DurationMs: int(t.Duration),
	}
}

// CreatePlaylist creates a new playlist owned by the authenticated user.
func (c *Client) CreatePlaylist(ctx context.Context, name string, public bool, description string) (id, url string, err error) {
	sdk, err := c.sdkHandle()
	if err != nil {
		return "", "", &PlaylistCreationError{Err: err}
	}

	if err := c.throttle.Wait(ctx, "playlist-create"); err != nil {
		return "", "", &PlaylistCreationError{Err: err}
	}

	user, err := sdk.CurrentUser(ctx)
	if err != nil {
		return "", "", &PlaylistCreationError{Err: classifyAPIErr("current-user", err)}
	}

	playlist, err := sdk.CreatePlaylistForUser(ctx, user.ID, name, description, public, false)
	if err != nil {
		return "", "", &PlaylistCreationError{Err: classifyAPIErr("create-playlist", err)}
	}

	return string(playlist.ID), playlist.ExternalURLs["spotify"], nil
}

// addTracksChunkSize is the catalog's documented maximum number of URIs per add-tracks request.
const addTracksChunkSize = 100

// AddTracks adds uris to playlistID, chunking into batches of at most addTracksChunkSize and
// failing fast on the first batch error. Duplicate URIs (already queued earlier in this run)
// are silently dropped before chunking.
func (c *Client) AddTracks(ctx context.Context, playlistID string, uris []string) (added int, skippedDuplicates int, err error) {
	sdk, sdkErr := c.sdkHandle()
	if sdkErr != nil {
		return 0, 0, &PlaylistAddError{Err: sdkErr}
	}

	deduped := make([]string, 0, len(uris))
	for _, uri := range uris {
		if c.dedup.SeenOrAdd(uri) {
			skippedDuplicates++
			continue
		}
		deduped = append(deduped, uri)
	}

	for batchIndex := 0; batchIndex*addTracksChunkSize < len(deduped); batchIndex++ {
		start := batchIndex * addTracksChunkSize
		end := start + addTracksChunkSize
		if end > len(deduped) {
			end = len(deduped)
		}
		batch := deduped[start:end]

		if err := c.throttle.Wait(ctx, "add-tracks"); err != nil {
			return added, skippedDuplicates, &PlaylistAddError{BatchIndex: batchIndex, Err: err}
		}

		ids := make([]spotify.ID, len(batch))
		for i, uri := range batch {
			ids[i] = spotify.ID(trackIDFromURI(uri))
		}

		if _, err := sdk.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
			return added, skippedDuplicates, &PlaylistAddError{BatchIndex: batchIndex, Err: classifyAPIErr("add-tracks", err)}
		}
		added += len(batch)
	}

	return added, skippedDuplicates, nil
}

func trackIDFromURI(uri string) string {
	const prefix = "spotify:track:"
	if strings.HasPrefix(uri, prefix) {
		return uri[len(prefix):]
	}
	return uri
}

func (c *Client) sdkHandle() (*spotify.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sdk == nil {
		return nil, errors.New("catalog: not authenticated")
	}
	return c.sdk, nil
}

// classifyAPIErr maps an error that escaped the retryingTransport (e.g. JSON-decode failures
// the SDK raises on a response the transport already accepted) into the typed ErrorKind
// taxonomy so callers never have to inspect an SDK-specific error type.
func classifyAPIErr(op string, err error) error {
	var catalogErr *Error
	if errors.As(err, &catalogErr) {
		return catalogErr
	}
	return &Error{Kind: ErrorKindPermanent, Op: op, Err: err}
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, err
	}
	return tokenData.Token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(TokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.cfg.TokenPath, data, tokenFilePermission)
}
