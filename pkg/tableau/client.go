// Package tableau is a client for the Tableau Server REST API, covering the
// authentication, site and group endpoint families.
package tableau

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultAPIVersion is the REST API version requests are issued against.
	DefaultAPIVersion = "3.4"
	// DefaultPageSize is used for paginated listings unless overridden.
	DefaultPageSize = 100
	// DefaultTimeout bounds every request when no HTTP client is supplied.
	DefaultTimeout = 30 * time.Second

	authHeader = "X-Tableau-Auth"
)

// Client issues requests against one Tableau Server instance. Requests are
// strictly sequential; the client performs no retries and holds no state
// beyond its configuration.
type Client struct {
	ServerURL  *url.URL
	Version    string
	PageSize   int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ClientConfig holds configuration for creating a new Client.
type ClientConfig struct {
	ServerURL  string
	Version    string
	PageSize   int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a new API client instance.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	serverURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if serverURL.Scheme != "http" && serverURL.Scheme != "https" {
		return nil, fmt.Errorf("server URL %q must include an http or https scheme", config.ServerURL)
	}
	if config.Version == "" {
		config.Version = DefaultAPIVersion
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		ServerURL:  serverURL,
		Version:    config.Version,
		PageSize:   config.PageSize,
		HTTPClient: httpClient,
		Logger:     config.Logger,
	}, nil
}

func (c *Client) endpoint(parts ...string) *url.URL {
	p := "/api/" + c.Version
	for _, part := range parts {
		p += "/" + part
	}
	return c.ServerURL.ResolveReference(&url.URL{Path: p})
}

// do issues one request and decodes the tsResponse envelope. A status code
// other than want yields an *APIError.
func (c *Client) do(ctx context.Context, method string, u *url.URL, token string, body any, want int) (*tsResponse, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := xml.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set(authHeader, token)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/xml")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return nil, newAPIError(resp)
	}
	if want == http.StatusNoContent {
		return &tsResponse{}, nil
	}
	var parsed tsResponse
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &parsed, nil
}

// SignIn exchanges credentials for a session token. An empty contentURL
// signs in to the default site. Rejected credentials, transport failures and
// malformed responses all surface as *AuthError; no retry is attempted.
func (c *Client) SignIn(ctx context.Context, username, password, contentURL string) (Session, error) {
	body := signInRequest{
		Credentials: signInCredentials{
			Name:     username,
			Password: password,
			Site:     siteByURL{ContentURL: contentURL},
		},
	}
	parsed, err := c.do(ctx, http.MethodPost, c.endpoint("auth", "signin"), "", body, http.StatusOK)
	if err != nil {
		return Session{}, &AuthError{Err: err}
	}
	if parsed.Credentials == nil || parsed.Credentials.Token == "" {
		return Session{}, &AuthError{Err: fmt.Errorf("sign-in response contained no credentials")}
	}
	c.Logger.Debug("signed in", "server", c.ServerURL.Host, "siteID", parsed.Credentials.Site.ID)
	return Session{Token: parsed.Credentials.Token, SiteID: parsed.Credentials.Site.ID}, nil
}

// SwitchSite moves the session to another site. The returned session
// replaces the one passed in; the old token is no longer valid.
func (c *Client) SwitchSite(ctx context.Context, session Session, contentURL string) (Session, error) {
	body := switchSiteRequest{Site: siteByURL{ContentURL: contentURL}}
	parsed, err := c.do(ctx, http.MethodPost, c.endpoint("auth", "switchSite"), session.Token, body, http.StatusOK)
	if err != nil {
		return Session{}, &AuthError{Err: err}
	}
	if parsed.Credentials == nil || parsed.Credentials.Token == "" {
		return Session{}, &AuthError{Err: fmt.Errorf("switch-site response contained no credentials")}
	}
	c.Logger.Debug("switched site", "siteID", parsed.Credentials.Site.ID)
	return Session{Token: parsed.Credentials.Token, SiteID: parsed.Credentials.Site.ID}, nil
}

// SignOut invalidates the session token.
func (c *Client) SignOut(ctx context.Context, session Session) error {
	_, err := c.do(ctx, http.MethodPost, c.endpoint("auth", "signout"), session.Token, nil, http.StatusNoContent)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// QuerySites returns every site on the server, following pagination until
// all pages are consumed. A failure on any page discards partial results.
func (c *Client) QuerySites(ctx context.Context, session Session) ([]Site, error) {
	var sites []Site
	for page := 1; ; page++ {
		u := c.endpoint("sites")
		q := u.Query()
		q.Set("pageSize", strconv.Itoa(c.PageSize))
		q.Set("pageNumber", strconv.Itoa(page))
		u.RawQuery = q.Encode()
		parsed, err := c.do(ctx, http.MethodGet, u, session.Token, nil, http.StatusOK)
		if err != nil {
			return nil, fmt.Errorf("query sites page %d: %w", page, err)
		}
		for _, s := range parsed.Sites {
			sites = append(sites, s.toSite())
		}
		total := len(sites)
		if parsed.Pagination != nil {
			total = parsed.Pagination.TotalAvailable
		}
		if len(parsed.Sites) == 0 || len(sites) >= total {
			return sites, nil
		}
	}
}

// GetSite fetches one site, including its current encryption mode.
func (c *Client) GetSite(ctx context.Context, session Session, siteID string) (Site, error) {
	parsed, err := c.do(ctx, http.MethodGet, c.endpoint("sites", siteID), session.Token, nil, http.StatusOK)
	if err != nil {
		return Site{}, fmt.Errorf("get site %s: %w", siteID, err)
	}
	if parsed.Site == nil {
		return Site{}, fmt.Errorf("get site %s: response contained no site", siteID)
	}
	return parsed.Site.toSite(), nil
}

// UpdateSiteEncryption sets a site's extract encryption mode. Setting the
// mode a site is already at succeeds; the server treats it as a no-op.
func (c *Client) UpdateSiteEncryption(ctx context.Context, session Session, siteID string, mode EncryptionMode) (Site, error) {
	body := updateSiteRequest{Site: siteEncryption{ExtractEncryptionMode: string(mode)}}
	parsed, err := c.do(ctx, http.MethodPut, c.endpoint("sites", siteID), session.Token, body, http.StatusOK)
	if err != nil {
		return Site{}, fmt.Errorf("update site %s: %w", siteID, err)
	}
	if parsed.Site == nil {
		return Site{}, fmt.Errorf("update site %s: response contained no site", siteID)
	}
	return parsed.Site.toSite(), nil
}

// QueryGroups returns every group on a site.
func (c *Client) QueryGroups(ctx context.Context, session Session, siteID string) ([]Group, error) {
	var groups []Group
	for page := 1; ; page++ {
		u := c.endpoint("sites", siteID, "groups")
		q := u.Query()
		q.Set("pageSize", strconv.Itoa(c.PageSize))
		q.Set("pageNumber", strconv.Itoa(page))
		u.RawQuery = q.Encode()
		parsed, err := c.do(ctx, http.MethodGet, u, session.Token, nil, http.StatusOK)
		if err != nil {
			return nil, fmt.Errorf("query groups page %d: %w", page, err)
		}
		for _, g := range parsed.Groups {
			groups = append(groups, Group{ID: g.ID, Name: g.Name})
		}
		total := len(groups)
		if parsed.Pagination != nil {
			total = parsed.Pagination.TotalAvailable
		}
		if len(parsed.Groups) == 0 || len(groups) >= total {
			return groups, nil
		}
	}
}

// LookupGroupID resolves a group name to its id. Returns ErrGroupNotFound
// when the site has no group by that name.
func (c *Client) LookupGroupID(ctx context.Context, session Session, siteID, name string) (string, error) {
	groups, err := c.QueryGroups(ctx, session, siteID)
	if err != nil {
		return "", err
	}
	for _, g := range groups {
		if g.Name == name {
			return g.ID, nil
		}
	}
	return "", fmt.Errorf("group %q: %w", name, ErrGroupNotFound)
}

// QueryGroupUsers returns every user in a group, following pagination.
func (c *Client) QueryGroupUsers(ctx context.Context, session Session, siteID, groupID string) ([]User, error) {
	var users []User
	for page := 1; ; page++ {
		u := c.endpoint("sites", siteID, "groups", groupID, "users")
		q := u.Query()
		q.Set("pageSize", strconv.Itoa(c.PageSize))
		q.Set("pageNumber", strconv.Itoa(page))
		u.RawQuery = q.Encode()
		parsed, err := c.do(ctx, http.MethodGet, u, session.Token, nil, http.StatusOK)
		if err != nil {
			return nil, fmt.Errorf("query group users page %d: %w", page, err)
		}
		for _, usr := range parsed.Users {
			users = append(users, User{ID: usr.ID, Name: usr.Name, SiteRole: usr.SiteRole})
		}
		total := len(users)
		if parsed.Pagination != nil {
			total = parsed.Pagination.TotalAvailable
		}
		if len(parsed.Users) == 0 || len(users) >= total {
			return users, nil
		}
	}
}
