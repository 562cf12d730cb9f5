// Package musicbrainz provides a minimal, rate-limited MusicBrainz
// client used to enrich library tracks with artist genre tags.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"curator/internal/cache"
)

// DefaultBaseURL is the public MusicBrainz web service root.
const DefaultBaseURL = "https://musicbrainz.org/ws/2"

// minRequestInterval enforces the MusicBrainz rule of at most one call
// per second, with a small margin.
const minRequestInterval = 1050 * time.Millisecond

// Artist is the subset of a MusicBrainz artist record the enricher
// cares about.
type Artist struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Tags  []Tag  `json:"tags"`
}

// Tag is a community genre/style tag with a vote count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ReleaseGroup is a MusicBrainz release group (album, EP, single).
type ReleaseGroup struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	PrimaryType      string `json:"primary-type"`
	FirstReleaseDate string `json:"first-release-date"`
}

// Client talks to the MusicBrainz API. All calls share a single rate
// limiter, so the client is safe for concurrent use but requests are
// serialized.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *logrus.Logger
	genreCache *cache.GenreCache

	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

// NewClient creates a MusicBrainz client. An empty baseURL uses the
// public API. MusicBrainz requires a meaningful User-Agent with contact
// information.
func NewClient(baseURL, userAgent string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		genreCache: cache.NewGenreCache(),
		interval:   minRequestInterval,
	}
}

// respectRateLimit blocks until the mandated gap since the previous
// request has elapsed, then claims the current slot.
func (c *Client) respectRateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elapsed := time.Since(c.lastCall); elapsed < c.interval {
		time.Sleep(c.interval - elapsed)
	}
	c.lastCall = time.Now()
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	c.respectRateLimit()

	params.Set("fmt", "json")
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("musicbrainz request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("musicbrainz returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding musicbrainz response: %w", err)
	}
	return nil
}

// SearchArtist queries artists by name. The limit is clamped to [1, 25].
func (c *Client) SearchArtist(ctx context.Context, name string, limit int) ([]Artist, error) {
	if name == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 25 {
		limit = 25
	}

	params := url.Values{}
	params.Set("query", name)
	params.Set("limit", fmt.Sprintf("%d", limit))

	var result struct {
		Artists []Artist `json:"artists"`
	}
	if err := c.getJSON(ctx, "/artist", params, &result); err != nil {
		return nil, err
	}
	return result.Artists, nil
}

// ReleaseGroups lists release groups for an artist MBID. The limit is
// clamped to [1, 100].
func (c *Client) ReleaseGroups(ctx context.Context, artistMBID string, limit, offset int) ([]ReleaseGroup, error) {
	if artistMBID == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	params := url.Values{}
	params.Set("artist", artistMBID)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("offset", fmt.Sprintf("%d", offset))

	var result struct {
		ReleaseGroups []ReleaseGroup `json:"release-groups"`
	}
	if err := c.getJSON(ctx, "/release-group", params, &result); err != nil {
		return nil, err
	}
	return result.ReleaseGroups, nil
}

// ArtistGenres resolves genre tags for an artist name: the top search
// hit's community tags, ordered by vote count. Results are cached for a
// day, so only the first lookup per artist pays the rate-limited round
// trip.
func (c *Client) ArtistGenres(ctx context.Context, name string) ([]string, error) {
	if name == "" {
		return nil, nil
	}

	if genres, ok := c.genreCache.GetGenres(name); ok {
		return genres, nil
	}

	artists, err := c.SearchArtist(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(artists) == 0 {
		c.genreCache.SetGenres(name, nil)
		return nil, nil
	}

	tags := make([]Tag, 0, len(artists[0].Tags))
	for _, tag := range artists[0].Tags {
		if tag.Count > 0 && tag.Name != "" {
			tags = append(tags, tag)
		}
	}
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Count > tags[j].Count })

	genres := make([]string, len(tags))
	for i, tag := range tags {
		genres[i] = strings.ToLower(tag.Name)
	}

	c.logger.WithFields(logrus.Fields{
		"artist": name,
		"genres": len(genres),
	}).Debug("Resolved artist genres")

	c.genreCache.SetGenres(name, genres)
	return genres, nil
}
