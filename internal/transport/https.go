package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/dbsync/internal/utils"
	"github.com/openmined/dbsync/internal/version"
)

// HTTPS is a read-only session on a web server. Directory changes are local
// path bookkeeping and every probe is a HEAD request.
type HTTPS struct {
	client *req.Client
	base   string
	root   string
	cwd    string
	logger *slog.Logger
}

var (
	_ Transport = (*HTTPS)(nil)
	_ Writer    = (*HTTPS)(nil)
)

// DialHTTPS prepares a client for ep. No request is sent until the first probe.
// Basic auth is only sent when both username and password are set.
func DialHTTPS(_ context.Context, ep *Endpoint, opts *Options) (*HTTPS, error) {
	raw := strings.TrimSpace(ep.Raw)
	if !strings.HasPrefix(strings.ToLower(raw), "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ConnectError{Kind: KindHTTPS, Addr: ep.Raw, Err: err}
	}

	client := req.C().
		SetTimeout(opts.timeout()).
		SetUserAgent(version.UserAgent()).
		DisableCompression()
	if opts.Username != "" && opts.Password != "" {
		client.SetCommonBasicAuth(opts.Username, opts.Password)
	}
	if opts.Insecure {
		client.EnableInsecureSkipVerify()
	}

	root := strings.TrimSuffix(u.Path, "/")
	if root == "" {
		root = "/"
	}
	return &HTTPS{
		client: client,
		base:   u.Scheme + "://" + u.Host,
		root:   root,
		cwd:    root,
		logger: opts.logger(),
	}, nil
}

func (h *HTTPS) Kind() Kind {
	return KindHTTPS
}

func (h *HTTPS) Root() string {
	return h.root
}

func (h *HTTPS) Getwd() string {
	return h.cwd
}

func (h *HTTPS) Chdir(_ context.Context, dir string) error {
	h.cwd = utils.FixFilename(dir)
	return nil
}

func (h *HTTPS) urlFor(name string) string {
	p := utils.FixFilename(name)
	if !strings.HasPrefix(p, "/") {
		p = utils.JoinRemote(h.cwd, p)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return h.base + (&url.URL{Path: p}).EscapedPath()
}

func (h *HTTPS) head(ctx context.Context, name string) (*req.Response, string, error) {
	u := h.urlFor(name)
	resp, err := h.client.R().SetContext(ctx).Head(u)
	if err != nil {
		return nil, u, fmt.Errorf("https: head %s: %w", u, err)
	}
	return resp, u, nil
}

// Exists sends HEAD for name. 200 means present and 404 absent. Any other
// status is logged and treated as absent.
func (h *HTTPS) Exists(ctx context.Context, name string) (bool, error) {
	resp, u, err := h.head(ctx, name)
	if err != nil {
		return false, err
	}
	switch resp.GetStatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		h.logger.Warn("https unexpected status", "url", u, "status", resp.GetStatusCode())
		return false, nil
	}
}

func (h *HTTPS) okHead(ctx context.Context, name string) (*req.Response, string, error) {
	resp, u, err := h.head(ctx, name)
	if err != nil {
		return nil, u, err
	}
	if resp.GetStatusCode() != http.StatusOK {
		return nil, u, &StatusError{URL: u, StatusCode: resp.GetStatusCode()}
	}
	return resp, u, nil
}

func (h *HTTPS) Size(ctx context.Context, name string) (int64, error) {
	resp, u, err := h.okHead(ctx, name)
	if err != nil {
		return 0, err
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("https: %s: no content length", u)
	}
	return resp.ContentLength, nil
}

func (h *HTTPS) ModTime(ctx context.Context, name string) (time.Time, error) {
	resp, u, err := h.okHead(ctx, name)
	if err != nil {
		return time.Time{}, err
	}
	lastModified := resp.GetHeader("Last-Modified")
	if lastModified == "" {
		return time.Time{}, fmt.Errorf("https: %s: no last-modified header", u)
	}
	mtime, err := http.ParseTime(lastModified)
	if err != nil {
		return time.Time{}, fmt.Errorf("https: %s: %w", u, err)
	}
	return mtime, nil
}

// Fetch streams name into localPath. HTTP has no text mode.
func (h *HTTPS) Fetch(ctx context.Context, name, localPath string, _ Mode) error {
	if err := utils.EnsureParent(localPath); err != nil {
		return err
	}

	u := h.urlFor(name)
	resp, err := h.client.R().
		DisableAutoReadResponse().
		SetContext(ctx).
		Get(u)
	if err != nil {
		return fmt.Errorf("https: get %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.IsErrorState() || resp.GetStatusCode() != http.StatusOK {
		return &StatusError{URL: u, StatusCode: resp.GetStatusCode()}
	}
	return utils.WriteFileFrom(localPath, resp.Body)
}

// List always returns an empty result. HTTP has no portable directory
// listing, so an empty slice means unknown rather than empty.
func (h *HTTPS) List(_ context.Context, _ string) ([]string, error) {
	return []string{}, nil
}

func (h *HTTPS) MkdirAll(_ context.Context, dir string) error {
	return unsupported(KindHTTPS, "mkdir", dir)
}

func (h *HTTPS) Upload(_ context.Context, _, name string) error {
	return unsupported(KindHTTPS, "upload", name)
}

func (h *HTTPS) Close() error {
	h.client.GetClient().CloseIdleConnections()
	return nil
}
