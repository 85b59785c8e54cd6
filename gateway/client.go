package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blang/semver"
	"golang.org/x/net/publicsuffix"

	"github.com/janelia-flyem/omerotools/omero"
)

const (
	// DefaultServer is the training server the scripts were written for.
	DefaultServer = "outreach.openmicroscopy.org"

	// DefaultPort is the server's client port.
	DefaultPort = 4064

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 60 * time.Second

	apiPath = "/api/v0/"
)

// HTTPDialer opens sessions through the server's JSON web API.
type HTTPDialer struct {
	// WebURL is the root of the web front end, e.g. "https://outreach.openmicroscopy.org".
	// If empty, "https://<Server>" is used.
	WebURL string

	// Server and Port name the data server the web front end should connect to.
	Server string
	Port   int

	Timeout time.Duration

	// ImageCacheBytes sizes the image metadata cache.  Zero disables it.
	ImageCacheBytes int

	// ParentCacheEntries sizes the container parent cache.  Zero disables it.
	ParentCacheEntries int

	// MinVersion, if set, is the oldest server version accepted, e.g. "5.6.0".
	MinVersion string

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// NewHTTPDialer returns a dialer with default settings for the given server.
func NewHTTPDialer(server string, port int) *HTTPDialer {
	if server == "" {
		server = DefaultServer
	}
	if port == 0 {
		port = DefaultPort
	}
	return &HTTPDialer{
		Server:             server,
		Port:               port,
		Timeout:            DefaultTimeout,
		ImageCacheBytes:    1 << 20,
		ParentCacheEntries: 1024,
	}
}

func (d *HTTPDialer) root() string {
	if d.WebURL != "" {
		return strings.TrimRight(d.WebURL, "/")
	}
	return "https://" + d.Server
}

// Connect logs in as user and returns an open session.
func (d *HTTPDialer) Connect(ctx context.Context, user, password string) (Conn, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	hc := &http.Client{Jar: jar, Timeout: d.Timeout}
	if d.Transport != nil {
		hc.Transport = d.Transport
	}
	c := &Client{
		root:  d.root(),
		base:  d.root() + apiPath,
		http:  hc,
		cache: newLookupCache(d.ImageCacheBytes, d.ParentCacheEntries),
	}
	if err := c.fetchToken(ctx); err != nil {
		return nil, fmt.Errorf("could not get session token from %s: %w", c.root, err)
	}
	if err := c.login(ctx, user, password, d.Server, d.Port); err != nil {
		return nil, err
	}
	if d.MinVersion != "" {
		if err := c.CheckVersion(ctx, d.MinVersion); err != nil {
			c.Close()
			return nil, err
		}
	}
	omero.Debugf("Connected to %s as %s\n", c.root, user)
	return c, nil
}

// Client is a session with the server's JSON API.  It is safe for
// concurrent use.
type Client struct {
	root string
	base string
	http *http.Client
	csrf string
	user omero.Experimenter

	cache *lookupCache
}

// User returns the logged in experimenter.
func (c *Client) User() omero.Experimenter {
	return c.user
}

func (c *Client) fetchToken(ctx context.Context) error {
	var token string
	if err := c.do(ctx, http.MethodGet, "token/", nil, nil, &token); err != nil {
		return err
	}
	c.csrf = token
	return nil
}

type loginReply struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	EventContext struct {
		UserID    int64  `json:"userId"`
		UserName  string `json:"userName"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"eventContext"`
}

func (c *Client) login(ctx context.Context, user, password, server string, port int) error {
	form := url.Values{}
	form.Set("username", user)
	form.Set("password", password)
	form.Set("server", server)
	form.Set("port", strconv.Itoa(port))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"login/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login as %s: %w", user, err)
	}
	defer resp.Body.Close()

	var reply loginReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("login as %s: bad reply (status %d): %v", user, resp.StatusCode, err)
	}
	if !reply.Success || resp.StatusCode >= 300 {
		return fmt.Errorf("login as %s: %s: %w", user, reply.Message, ErrUnauthorized)
	}
	ec := reply.EventContext
	c.user = omero.Experimenter{ID: ec.UserID, UserName: ec.UserName, FirstName: ec.FirstName, LastName: ec.LastName}
	return nil
}

// Close logs out of the session.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.do(ctx, http.MethodPost, "logout/", nil, nil, nil); err != nil {
		return fmt.Errorf("logout of %s: %w", c.root, err)
	}
	return nil
}

// ServerVersion returns the version reported by the server.
func (c *Client) ServerVersion(ctx context.Context) (semver.Version, error) {
	var reply struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "version/", nil, nil, &reply); err != nil {
		return semver.Version{}, err
	}
	v, err := semver.Make(strings.TrimPrefix(reply.Version, "v"))
	if err != nil {
		return semver.Version{}, fmt.Errorf("server reported bad version %q: %v", reply.Version, err)
	}
	return v, nil
}

// CheckVersion returns an error if the server is older than minVersion.
func (c *Client) CheckVersion(ctx context.Context, minVersion string) error {
	minV, err := semver.Make(minVersion)
	if err != nil {
		return fmt.Errorf("bad minimum version %q: %v", minVersion, err)
	}
	v, err := c.ServerVersion(ctx)
	if err != nil {
		return err
	}
	if v.LT(minV) {
		return fmt.Errorf("server %s runs version %s, need at least %s", c.root, v, minV)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.csrf != "" {
		req.Header.Set("X-CSRFToken", c.csrf)
	}
	req.Header.Set("Referer", c.root+"/")
	req.Header.Set("Accept", "application/json")
}

// do sends a request to the API and decodes the "data" member of the reply into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, omero.ErrNotFound)
	case resp.StatusCode >= 300:
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("%s %s: bad JSON reply: %v", method, path, decodeErr)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%s %s: reply has no data", method, path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: could not decode data: %v", method, path, err)
	}
	return nil
}

func idList(ids []int64) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(s, ",")
}

var _ Conn = (*Client)(nil)
