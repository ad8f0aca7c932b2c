// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/screening-engine/internal/httputil"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// DefaultBaseURL is the remote bibliography API root. Declared as a var
// so tests can substitute an httptest server through WithBaseURL.
var DefaultBaseURL = "https://api.zotero.org"

const (
	apiVersion = "3"
	// pageLimit is the page size for paginated listings.
	pageLimit = 100
	// defaultRate bounds outgoing requests per second when the config
	// does not say otherwise.
	defaultRate = 3.0
)

// Client is the live HTTP implementation of Gateway.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	baseURL   string
	prefix    string
	apiKey    string
	userAgent string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithBaseURL sets a custom API root (for testing).
func WithBaseURL(base string) ClientOption {
	return func(c *Client) { c.baseURL = base }
}

// NewClient builds a gateway client for the configured library.
func NewClient(cfg types.LibraryConfig, opts ...ClientOption) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRate
	}

	kind := "groups"
	if cfg.LibraryType == "user" {
		kind = "users"
	}

	c := &Client{
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		baseURL:   DefaultBaseURL,
		prefix:    fmt.Sprintf("/%s/%s", kind, cfg.LibraryID),
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SupportsWrite reports that the live client can mutate the library.
func (c *Client) SupportsWrite() bool { return true }

// --- transport ---

// do issues one request against the library prefix. guardVersion >= 0
// adds the If-Unmodified-Since-Version precondition header. A 412 comes
// back as errPrecondition so the caller can apply the one-retry policy.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, guardVersion int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + c.prefix + "/" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Zotero-API-Version", apiVersion)
	if c.apiKey != "" {
		req.Header.Set("Zotero-API-Key", c.apiKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if guardVersion >= 0 {
		req.Header.Set("If-Unmodified-Since-Version", strconv.Itoa(guardVersion))
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode == http.StatusPreconditionFailed:
		return nil, fmt.Errorf("%s %s: %w", method, path, errPrecondition)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, truncateBody(data))
	}
	return data, nil
}

func truncateBody(data []byte) string {
	const max = 200
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	data, err := c.do(ctx, http.MethodGet, path, params, nil, -1)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}

// currentVersion refetches an object's version token after a failed
// precondition. Notes and attachments are items too, so one endpoint
// covers every guarded write.
func (c *Client) currentVersion(ctx context.Context, key string) (int, error) {
	var raw rawItem
	if err := c.getJSON(ctx, "items/"+key, nil, &raw); err != nil {
		return 0, err
	}
	return raw.Data.Version, nil
}

// guardedWrite applies the conflict policy: one attempt with the caller's
// version token, then one replay against the refetched token, then
// ErrConflict. Never retried indefinitely, never silently dropped.
func (c *Client) guardedWrite(ctx context.Context, method, path, key string, body any, version int) error {
	_, err := c.do(ctx, method, path, nil, body, version)
	if !isPrecondition(err) {
		return err
	}

	fresh, ferr := c.currentVersion(ctx, key)
	if ferr != nil {
		return fmt.Errorf("refetching %s after stale write: %w", key, ferr)
	}
	_, err = c.do(ctx, method, path, nil, body, fresh)
	if isPrecondition(err) {
		return fmt.Errorf("%s: %w", key, ErrConflict)
	}
	return err
}

func isPrecondition(err error) bool {
	return errors.Is(err, errPrecondition)
}

// --- wire structures ---

type rawItem struct {
	Key  string      `json:"key"`
	Data rawItemData `json:"data"`
}

type rawItemData struct {
	Key          string       `json:"key"`
	Version      int          `json:"version"`
	ItemType     string       `json:"itemType"`
	Title        string       `json:"title"`
	AbstractNote string       `json:"abstractNote"`
	DOI          string       `json:"DOI"`
	Extra        string       `json:"extra"`
	URL          string       `json:"url"`
	Date         string       `json:"date"`
	Creators     []rawCreator `json:"creators"`
	Collections  []string     `json:"collections"`
	Tags         []rawTag     `json:"tags"`

	// Child-object fields.
	ParentItem  string `json:"parentItem"`
	Note        string `json:"note"`
	LinkMode    string `json:"linkMode"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type rawCreator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Name        string `json:"name"`
}

type rawTag struct {
	Tag string `json:"tag"`
}

type rawCollection struct {
	Key  string `json:"key"`
	Data struct {
		Version          int    `json:"version"`
		Name             string `json:"name"`
		ParentCollection string `json:"parentCollection"`
	} `json:"data"`
}

func itemFromRaw(raw rawItem) types.Item {
	d := raw.Data
	item := types.Item{
		Key:         raw.Key,
		Version:     d.Version,
		ItemType:    d.ItemType,
		Title:       d.Title,
		Abstract:    d.AbstractNote,
		DOI:         d.DOI,
		ArxivID:     types.ExtractArxivID(d.Extra, d.URL),
		URL:         d.URL,
		Date:        d.Date,
		Collections: d.Collections,
	}
	if item.Key == "" {
		item.Key = d.Key
	}
	for _, cr := range d.Creators {
		if cr.CreatorType != "author" {
			continue
		}
		switch {
		case cr.FirstName != "" && cr.LastName != "":
			item.Authors = append(item.Authors, cr.FirstName+" "+cr.LastName)
		case cr.Name != "":
			item.Authors = append(item.Authors, cr.Name)
		}
	}
	for _, t := range d.Tags {
		if t.Tag != "" {
			item.Tags = append(item.Tags, t.Tag)
		}
	}
	return item
}

func childFromRaw(raw rawItem) types.Child {
	d := raw.Data
	key := raw.Key
	if key == "" {
		key = d.Key
	}
	return types.Child{
		Key:         key,
		Version:     d.Version,
		ItemType:    d.ItemType,
		Note:        d.Note,
		LinkMode:    d.LinkMode,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Title:       d.Title,
	}
}

// --- read operations ---

// GetItem fetches a single item by key.
func (c *Client) GetItem(ctx context.Context, key string) (types.Item, error) {
	var raw rawItem
	if err := c.getJSON(ctx, "items/"+key, nil, &raw); err != nil {
		return types.Item{}, err
	}
	return itemFromRaw(raw), nil
}

// paginateItems accumulates every page of an item listing.
func (c *Client) paginateItems(ctx context.Context, path string, params url.Values) ([]types.Item, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("limit", strconv.Itoa(pageLimit))

	var items []types.Item
	for start := 0; ; {
		params.Set("start", strconv.Itoa(start))
		var page []rawItem
		if err := c.getJSON(ctx, path, params, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, raw := range page {
			items = append(items, itemFromRaw(raw))
		}
		start += len(page)
		if len(page) < pageLimit {
			break
		}
	}
	return items, nil
}

// ListItems returns every item in a collection, following pagination.
func (c *Client) ListItems(ctx context.Context, collectionID string, topOnly bool) ([]types.Item, error) {
	path := "collections/" + collectionID + "/items"
	if topOnly {
		path += "/top"
	}
	return c.paginateItems(ctx, path, nil)
}

// SearchItems lists items across the whole library.
func (c *Client) SearchItems(ctx context.Context, q Query) ([]types.Item, error) {
	params := url.Values{}
	if q.Q != "" {
		params.Set("q", q.Q)
	}
	if q.QMode != "" {
		params.Set("qmode", q.QMode)
	}
	if q.ItemType != "" {
		params.Set("itemType", q.ItemType)
	}
	if q.Tag != "" {
		params.Set("tag", q.Tag)
	}
	return c.paginateItems(ctx, "items", params)
}

// GetChildren returns an item's child notes and attachments.
func (c *Client) GetChildren(ctx context.Context, itemKey string) ([]types.Child, error) {
	var page []rawItem
	if err := c.getJSON(ctx, "items/"+itemKey+"/children", nil, &page); err != nil {
		return nil, err
	}
	children := make([]types.Child, 0, len(page))
	for _, raw := range page {
		children = append(children, childFromRaw(raw))
	}
	return children, nil
}

// ListCollections returns all collections in the library.
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageLimit))

	var cols []Collection
	for start := 0; ; {
		params.Set("start", strconv.Itoa(start))
		var page []rawCollection
		if err := c.getJSON(ctx, "collections", params, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, raw := range page {
			cols = append(cols, Collection{
				Key:       raw.Key,
				Version:   raw.Data.Version,
				Name:      raw.Data.Name,
				ParentKey: raw.Data.ParentCollection,
			})
		}
		start += len(page)
		if len(page) < pageLimit {
			break
		}
	}
	return cols, nil
}

// CollectionIDByName resolves a collection name to its key.
func (c *Client) CollectionIDByName(ctx context.Context, name string) (string, error) {
	cols, err := c.ListCollections(ctx)
	if err != nil {
		return "", err
	}
	for _, col := range cols {
		if col.Name == name {
			return col.Key, nil
		}
	}
	return "", fmt.Errorf("collection %q: %w", name, ErrNotFound)
}

// --- write operations ---

// writeResponse is the multi-object write envelope the API returns for
// POST requests.
type writeResponse struct {
	Successful map[string]json.RawMessage `json:"successful"`
	Failed     map[string]struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"failed"`
}

func (c *Client) postObjects(ctx context.Context, path string, payload any) (writeResponse, error) {
	data, err := c.do(ctx, http.MethodPost, path, nil, payload, -1)
	if err != nil {
		return writeResponse{}, err
	}
	var wr writeResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return writeResponse{}, fmt.Errorf("parsing write response: %w", err)
	}
	if len(wr.Successful) == 0 {
		for _, f := range wr.Failed {
			return wr, fmt.Errorf("write rejected: %s (code %d)", f.Message, f.Code)
		}
		return wr, fmt.Errorf("write rejected: empty success set")
	}
	return wr, nil
}

// CreateCollection creates a collection, optionally under parentKey, and
// returns the new collection key.
func (c *Client) CreateCollection(ctx context.Context, name, parentKey string) (string, error) {
	payload := map[string]any{"name": name}
	if parentKey != "" {
		payload["parentCollection"] = parentKey
	}
	wr, err := c.postObjects(ctx, "collections", []any{payload})
	if err != nil {
		return "", err
	}
	for _, msg := range wr.Successful {
		var created struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(msg, &created); err == nil && created.Key != "" {
			return created.Key, nil
		}
	}
	return "", fmt.Errorf("create collection %q: no key in response", name)
}

// CreateNote attaches a child note to an item.
func (c *Client) CreateNote(ctx context.Context, parentKey, content string) error {
	payload := []any{map[string]any{
		"itemType":   "note",
		"parentItem": parentKey,
		"note":       content,
	}}
	_, err := c.postObjects(ctx, "items", payload)
	return err
}

// UpdateNote rewrites a note body under the note's own version token.
func (c *Client) UpdateNote(ctx context.Context, noteKey string, version int, content string) error {
	patch := map[string]any{"note": content}
	return c.guardedWrite(ctx, http.MethodPatch, "items/"+noteKey, noteKey, patch, version)
}

// UpdateItem applies a partial update to an item.
func (c *Client) UpdateItem(ctx context.Context, key string, version int, patch map[string]any) error {
	return c.guardedWrite(ctx, http.MethodPatch, "items/"+key, key, patch, version)
}

// DeleteItem removes an item (or child note/attachment) from the library.
func (c *Client) DeleteItem(ctx context.Context, key string, version int) error {
	return c.guardedWrite(ctx, http.MethodDelete, "items/"+key, key, nil, version)
}
