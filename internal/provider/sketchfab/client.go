package sketchfab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sentinel errors for download resolution.
var (
	// ErrNotDownloadable is returned when a model's owner has not enabled
	// downloads. Callers fall back to a preview reference.
	ErrNotDownloadable = errors.New("model is not downloadable")

	// ErrNoDownloadLink is returned when download is enabled but no
	// supported archive format is offered.
	ErrNoDownloadLink = errors.New("no download link available in a supported format")
)

// downloadLinkLifetime is how long the index keeps signed download URLs
// valid.
const downloadLinkLifetime = 24 * time.Hour

// searchCacheTTL bounds the in-process memoization of search pages and
// model details.
const searchCacheTTL = time.Hour

// categoriesCacheTTL bounds the memoization of the category listing,
// which changes rarely.
const categoriesCacheTTL = 24 * time.Hour

// Client is an HTTP client for the content index. It throttles itself to
// a minimum interval between requests and memoizes search and detail
// responses in-process.
type Client struct {
	baseURL     string
	apiToken    string
	httpClient  *http.Client
	minInterval time.Duration

	mu          sync.Mutex
	lastRequest time.Time
	memo        map[string]memoEntry

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type memoEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewClient creates a Client. baseURL is the API root without a trailing
// slash (e.g. https://api.sketchfab.com/v3). minInterval spaces outgoing
// requests; zero disables throttling.
func NewClient(baseURL, apiToken string, minInterval time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     baseURL,
		apiToken:    apiToken,
		httpClient:  httpClient,
		minInterval: minInterval,
		memo:        map[string]memoEntry{},
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// throttle blocks until the minimum interval since the previous request
// has elapsed.
func (c *Client) throttle(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}
	c.mu.Lock()
	now := c.now()
	wait := c.lastRequest.Add(c.minInterval).Sub(now)
	if wait < 0 {
		wait = 0
	}
	// Reserve our slot so concurrent callers queue behind it.
	c.lastRequest = now.Add(wait)
	c.mu.Unlock()

	if wait > 0 {
		return c.sleep(ctx, wait)
	}
	return nil
}

func (c *Client) memoGet(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.memo[key]
	if !ok || c.now().After(entry.expiresAt) {
		delete(c.memo, key)
		return nil, false
	}
	return entry.data, true
}

func (c *Client) memoSet(key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memo[key] = memoEntry{data: data, expiresAt: c.now().Add(ttl)}
}

// get performs a throttled GET against an endpoint and returns the raw
// body. Non-success responses are hard failures.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build index request: %w", err)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Token "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("content index returned %d: %s", resp.StatusCode, detail)
	}

	return io.ReadAll(resp.Body)
}

// licenseParams maps friendly license names to the index's query values.
// CC0 and the bare "cc" family have no direct parameter; they are served
// by restricting to downloadable models instead.
var licenseParams = map[string]string{
	"cc-by":       "by",
	"cc-by-sa":    "by-sa",
	"cc-by-nc":    "by-nc",
	"cc-by-nc-sa": "by-nc-sa",
}

// Search runs a model search. Responses are memoized for searchCacheTTL.
func (c *Client) Search(ctx context.Context, q SearchQuery) (*SearchPage, error) {
	if q.PerPage <= 0 {
		q.PerPage = 24
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.SortBy == "" {
		q.SortBy = "relevance"
	}

	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("type", "models")
	params.Set("count", strconv.Itoa(q.PerPage))
	params.Set("sort_by", q.SortBy)
	if q.Page > 1 {
		params.Set("offset", strconv.Itoa((q.Page-1)*q.PerPage))
	}
	if q.Category != "" {
		params.Set("categories", q.Category)
	}
	if q.License != "" {
		key := strings.ToLower(q.License)
		if mapped, ok := licenseParams[key]; ok {
			params.Set("license", mapped)
		} else {
			params.Set("downloadable", "true")
		}
	}
	if q.Animated != nil {
		params.Set("animated", strconv.FormatBool(*q.Animated))
	}
	if q.Rigged != nil {
		params.Set("rigged", strconv.FormatBool(*q.Rigged))
	}
	if q.Downloadable {
		params.Set("downloadable", "true")
	}
	if q.MinFaceCount > 0 {
		params.Set("min_face_count", strconv.Itoa(q.MinFaceCount))
	}
	if q.MaxFaceCount > 0 {
		params.Set("max_face_count", strconv.Itoa(q.MaxFaceCount))
	}
	if q.StaffPicked {
		params.Set("staffpicked", "true")
	}

	memoKey := "search:" + params.Encode()
	body, cached := c.memoGet(memoKey)
	if !cached {
		var err error
		body, err = c.get(ctx, "/search", params)
		if err != nil {
			return nil, err
		}
		c.memoSet(memoKey, body, searchCacheTTL)
	}

	var raw struct {
		Count   int               `json:"count"`
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("malformed search response: %w", err)
	}

	models := make([]Model, 0, len(raw.Results))
	for _, r := range raw.Results {
		m, err := parseModel(r)
		if err != nil {
			return nil, fmt.Errorf("malformed search result: %w", err)
		}
		models = append(models, m)
	}

	return &SearchPage{
		Query:      q.Query,
		TotalCount: raw.Count,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: (raw.Count + q.PerPage - 1) / q.PerPage,
		Models:     models,
	}, nil
}

// Popular returns the most liked downloadable staff picks, optionally
// filtered to one category. It is a canned search, so results share the
// search memo.
func (c *Client) Popular(ctx context.Context, category string, limit int) ([]Model, error) {
	if limit <= 0 {
		limit = 20
	}
	page, err := c.Search(ctx, SearchQuery{
		Query:        "*",
		Category:     category,
		SortBy:       "likes",
		Downloadable: true,
		StaffPicked:  true,
		PerPage:      limit,
	})
	if err != nil {
		return nil, err
	}
	return page.Models, nil
}

// Categories lists the browsable model categories. Responses are memoized
// for categoriesCacheTTL.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	const memoKey = "categories"
	body, cached := c.memoGet(memoKey)
	if !cached {
		var err error
		body, err = c.get(ctx, "/categories", nil)
		if err != nil {
			return nil, err
		}
		c.memoSet(memoKey, body, categoriesCacheTTL)
	}

	var raw struct {
		Results []struct {
			Slug       string `json:"slug"`
			Name       string `json:"name"`
			ModelCount int    `json:"modelCount"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("malformed categories response: %w", err)
	}

	categories := make([]Category, 0, len(raw.Results))
	for _, r := range raw.Results {
		categories = append(categories, Category{Slug: r.Slug, Name: r.Name, Count: r.ModelCount})
	}
	return categories, nil
}

// ModelDetails fetches one model by uid. Responses are memoized.
func (c *Client) ModelDetails(ctx context.Context, uid string) (*Model, error) {
	memoKey := "model:" + uid
	body, cached := c.memoGet(memoKey)
	if !cached {
		var err error
		body, err = c.get(ctx, "/models/"+uid, nil)
		if err != nil {
			return nil, err
		}
		c.memoSet(memoKey, body, searchCacheTTL)
	}

	m, err := parseModel(body)
	if err != nil {
		return nil, fmt.Errorf("malformed model response: %w", err)
	}
	return &m, nil
}

// ResolveDownload returns a signed download link for a model, trying the
// supported archive formats in preference order. The model must have
// downloads enabled; otherwise ErrNotDownloadable is returned.
func (c *Client) ResolveDownload(ctx context.Context, model *Model) (*DownloadLink, error) {
	if !model.Downloadable {
		return nil, ErrNotDownloadable
	}

	body, err := c.get(ctx, "/models/"+model.UID+"/download", nil)
	if err != nil {
		return nil, err
	}

	var links map[string]struct {
		URL  string `json:"url"`
		Size int64  `json:"size"`
	}
	if err := json.Unmarshal(body, &links); err != nil {
		return nil, fmt.Errorf("malformed download response: %w", err)
	}

	for _, format := range downloadFormats {
		if link, ok := links[format]; ok && link.URL != "" {
			return &DownloadLink{
				URL:       link.URL,
				Format:    format,
				Size:      link.Size,
				ExpiresAt: c.now().Add(downloadLinkLifetime),
			}, nil
		}
	}
	return nil, ErrNoDownloadLink
}

// Fetch downloads the archive bytes behind a resolved link.
func (c *Client) Fetch(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch model archive: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read model archive: %w", err)
	}
	return data, nil
}

// parseModel maps the index's model representation onto Model.
func parseModel(data []byte) (Model, error) {
	var raw struct {
		UID         string `json:"uid"`
		Name        string `json:"name"`
		Description string `json:"description"`
		User        struct {
			DisplayName string `json:"displayName"`
			Username    string `json:"username"`
			ProfileURL  string `json:"profileUrl"`
		} `json:"user"`
		Geometries struct {
			FaceCount   int `json:"faceCount"`
			VertexCount int `json:"vertexCount"`
		} `json:"geometries"`
		License struct {
			Slug  string `json:"slug"`
			Label string `json:"label"`
		} `json:"license"`
		IsAnimated     bool `json:"isAnimated"`
		IsRigged       bool `json:"isRigged"`
		IsDownloadable bool `json:"isDownloadable"`
		ViewCount      int  `json:"viewCount"`
		LikeCount      int  `json:"likeCount"`
		Thumbnails     struct {
			Images []struct {
				URL   string `json:"url"`
				Width int    `json:"width"`
			} `json:"images"`
		} `json:"thumbnails"`
		ViewerURL  string `json:"viewerUrl"`
		EmbedURL   string `json:"embedUrl"`
		Categories []struct {
			Name string `json:"name"`
		} `json:"categories"`
		Tags []struct {
			Name string `json:"name"`
		} `json:"tags"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Model{}, err
	}

	author := raw.User.DisplayName
	if author == "" {
		author = raw.User.Username
	}

	// Prefer a thumbnail at least 200px wide; settle for the first one.
	var thumbnail string
	for _, img := range raw.Thumbnails.Images {
		if img.Width >= 200 {
			thumbnail = img.URL
			break
		}
	}
	if thumbnail == "" && len(raw.Thumbnails.Images) > 0 {
		thumbnail = raw.Thumbnails.Images[0].URL
	}

	var categories []string
	for _, cat := range raw.Categories {
		categories = append(categories, cat.Name)
	}
	var tags []string
	for _, tag := range raw.Tags {
		tags = append(tags, tag.Name)
	}

	return Model{
		UID:          raw.UID,
		Name:         raw.Name,
		Description:  raw.Description,
		Author:       author,
		AuthorURL:    raw.User.ProfileURL,
		License:      raw.License.Slug,
		LicenseLabel: raw.License.Label,
		FaceCount:    raw.Geometries.FaceCount,
		VertexCount:  raw.Geometries.VertexCount,
		Animated:     raw.IsAnimated,
		Rigged:       raw.IsRigged,
		ViewCount:    raw.ViewCount,
		LikeCount:    raw.LikeCount,
		Downloadable: raw.IsDownloadable,
		ThumbnailURL: thumbnail,
		ViewerURL:    raw.ViewerURL,
		EmbedURL:     raw.EmbedURL,
		Categories:   categories,
		Tags:         tags,
	}, nil
}
