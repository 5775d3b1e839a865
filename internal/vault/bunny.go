package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rembes-go/internal/rembes"
)

const bunnyDefaultHost = "storage.bunnycdn.com"

// BunnyVault stores objects in a BunnyCDN storage zone over its HTTP API.
//
//	GET    <base>/<zone>/<dir>/   list (JSON array, 404 means empty)
//	PUT    <base>/<zone>/<path>   upload (201 Created)
//	GET    <base>/<zone>/<path>   download
//	DELETE <base>/<zone>/<path>   delete (404 means already gone)
type BunnyVault struct {
	name      string
	baseURL   string // https://<host>/<zone>
	accessKey string
	client    *http.Client
}

// BunnyOptions configures a BunnyVault.
type BunnyOptions struct {
	Zone      string
	Region    string // empty or "de" selects the main endpoint
	Endpoint  string // overrides the region-derived scheme and host
	AccessKey string
	Client    *http.Client
}

// NewBunnyVault creates a vault for one Bunny storage zone.
func NewBunnyVault(name string, opts BunnyOptions) (*BunnyVault, error) {
	if opts.Zone == "" {
		return nil, fmt.Errorf("bunny vault requires bunny_zone to be set")
	}
	if opts.AccessKey == "" {
		return nil, fmt.Errorf("bunny vault requires an access key")
	}

	base := opts.Endpoint
	if base == "" {
		host := bunnyDefaultHost
		if r := strings.ToLower(opts.Region); r != "" && r != "de" {
			host = r + "." + host
		}
		base = "https://" + host
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return &BunnyVault{
		name:      name,
		baseURL:   strings.TrimSuffix(base, "/") + "/" + url.PathEscape(opts.Zone),
		accessKey: opts.AccessKey,
		client:    client,
	}, nil
}

// bunnyObject is one entry of a directory listing.
type bunnyObject struct {
	ObjectName  string `json:"ObjectName"`
	Length      int64  `json:"Length"`
	IsDirectory bool   `json:"IsDirectory"`
	DateCreated string `json:"DateCreated"`
}

func (v *BunnyVault) url(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return v.baseURL + "/" + strings.Join(segs, "/")
}

func (v *BunnyVault) do(ctx context.Context, method, target string, body io.Reader, size int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("AccessKey", v.accessKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
		req.ContentLength = size
	}
	return v.client.Do(req)
}

// List returns the files directly under prefix.
func (v *BunnyVault) List(ctx context.Context, prefix string) ([]rembes.ObjectInfo, error) {
	target := v.baseURL + "/"
	if trimmed := strings.Trim(prefix, "/"); trimmed != "" {
		target = v.url(trimmed) + "/"
	}

	resp, err := v.do(ctx, http.MethodGet, target, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return []rembes.ObjectInfo{}, nil
	default:
		return nil, bunnyStatusError("list", prefix, resp)
	}

	var objects []bunnyObject
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, fmt.Errorf("decoding listing of %s: %w", prefix, err)
	}

	infos := make([]rembes.ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.IsDirectory {
			continue
		}
		infos = append(infos, rembes.ObjectInfo{
			Name:      obj.ObjectName,
			CreatedAt: parseBunnyTime(obj.DateCreated),
			Size:      obj.Length,
		})
	}
	return infos, nil
}

// Put uploads an object, replacing any existing one.
func (v *BunnyVault) Put(ctx context.Context, p string, r io.Reader, size int64) error {
	if err := checkPath(p); err != nil {
		return err
	}
	resp, err := v.do(ctx, http.MethodPut, v.url(p), r, size)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return bunnyStatusError("upload", p, resp)
	}
	return nil
}

// Get writes the object at p to w.
func (v *BunnyVault) Get(ctx context.Context, p string, w io.Writer) error {
	resp, err := v.do(ctx, http.MethodGet, v.url(p), nil, 0)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", p, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", p, rembes.ErrObjectNotFound)
	default:
		return bunnyStatusError("download", p, resp)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading %s: %w", p, err)
	}
	return nil
}

// Delete removes the object at p. A 404 counts as success.
func (v *BunnyVault) Delete(ctx context.Context, p string) (bool, error) {
	resp, err := v.do(ctx, http.MethodDelete, v.url(p), nil, 0)
	if err != nil {
		return false, fmt.Errorf("deleting %s: %w", p, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, bunnyStatusError("delete", p, resp)
	}
}

// ValidateSetup lists the zone root.
func (v *BunnyVault) ValidateSetup(ctx context.Context) error {
	if _, err := v.List(ctx, ""); err != nil {
		return fmt.Errorf("bunny storage zone not accessible: %w", err)
	}
	return nil
}

func bunnyStatusError(op, p string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("bunny %s %s: status %d: %s", op, p, resp.StatusCode, strings.TrimSpace(string(body)))
}

// parseBunnyTime parses DateCreated, which Bunny reports in UTC without a
// zone designator. Unparseable values become the zero time and sort first.
func parseBunnyTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", time.RFC3339Nano} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Compile-time check that BunnyVault implements rembes.Vault interface
var _ rembes.Vault = (*BunnyVault)(nil)
