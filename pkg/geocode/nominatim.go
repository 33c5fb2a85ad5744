package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Nominatim geocodes against a Nominatim server. The public instance requires
// a descriptive User-Agent with a contact address and caps clients at one
// request per second, both of which are enforced here.
type Nominatim struct {
	baseURL      string
	contactEmail string
	userAgent    string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// Option configures the Nominatim client.
type Option func(*Nominatim)

// WithBaseURL points the client at a non-default Nominatim instance.
func WithBaseURL(base string) Option {
	return func(n *Nominatim) {
		n.baseURL = base
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *Nominatim) {
		n.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit. Self-hosted instances can
// go faster than the public default of 1.
func WithRateLimit(rps float64) Option {
	return func(n *Nominatim) {
		n.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewNominatim creates a Nominatim client. The contact email is mandatory:
// it is sent in both the User-Agent and the email query parameter per the
// usage policy.
func NewNominatim(userAgent, contactEmail string, opts ...Option) (*Nominatim, error) {
	if contactEmail == "" {
		return nil, eris.New("geocode: contact email is required")
	}
	n := &Nominatim{
		baseURL:      defaultBaseURL,
		contactEmail: contactEmail,
		userAgent:    fmt.Sprintf("%s (%s)", userAgent, contactEmail),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		limiter:      rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode implements Client. It blocks on the rate limiter before each
// request, so callers never exceed the configured pace regardless of
// concurrency.
func (n *Nominatim) Geocode(ctx context.Context, q Query) (*Result, error) {
	search := q.String()
	if search == "" {
		return &Result{Matched: false}, nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limiter")
	}

	params := url.Values{}
	params.Set("q", search)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("countrycodes", "us")
	params.Set("email", n.contactEmail)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: request for %q", search)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, eris.Errorf("geocode: nominatim returned %d for %q: %s", resp.StatusCode, search, string(body))
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, eris.Wrap(err, "geocode: decode response")
	}

	if len(places) == 0 {
		zap.L().Debug("geocode: no match", zap.String("query", search))
		return &Result{Matched: false}, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: bad latitude %q", places[0].Lat)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: bad longitude %q", places[0].Lon)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: places[0].DisplayName,
		Matched:     true,
	}, nil
}
