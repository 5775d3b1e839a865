package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxPhotoSize matches the Bot API download limit.
const maxPhotoSize = 20 << 20

// PhotoFetcher downloads user photos through the Bot API file endpoint.
type PhotoFetcher struct {
	api    API
	client *http.Client
}

// NewPhotoFetcher returns a fetcher using client, or a client with a
// one-minute timeout when nil.
func NewPhotoFetcher(api API, client *http.Client) *PhotoFetcher {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	return &PhotoFetcher{api: api, client: client}
}

// FetchPhoto returns the bytes of the file identified by fileID.
func (f *PhotoFetcher) FetchPhoto(ctx context.Context, fileID string) ([]byte, error) {
	url, err := f.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolving photo %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating photo request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading photo %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading photo %s: unexpected status %s", fileID, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo %s: %w", fileID, err)
	}
	if len(data) > maxPhotoSize {
		return nil, fmt.Errorf("photo %s is larger than %d bytes", fileID, maxPhotoSize)
	}
	return data, nil
}
