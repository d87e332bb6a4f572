package indexing

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultIndexNowEndpoint is the shared IndexNow endpoint; participating
// engines exchange submissions among themselves.
const DefaultIndexNowEndpoint = "https://api.indexnow.org/indexnow"

// IndexNow pings an IndexNow endpoint. Deleted URLs are submitted the same
// way as updated ones; the engine discovers the 404 when it recrawls.
type IndexNow struct {
	client      *resty.Client
	endpoint    string
	key         string
	keyLocation string
}

type indexNowRequest struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation,omitempty"`
	URLList     []string `json:"urlList"`
}

// NewIndexNow builds a notifier for key. endpoint defaults to
// DefaultIndexNowEndpoint.
func NewIndexNow(endpoint, key, keyLocation string) *IndexNow {
	if endpoint == "" {
		endpoint = DefaultIndexNowEndpoint
	}
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json; charset=utf-8")
	return &IndexNow{client: client, endpoint: endpoint, key: key, keyLocation: keyLocation}
}

func (n *IndexNow) Notify(ctx context.Context, rawURL string, _ Kind) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("indexnow: invalid url %q", rawURL)
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(indexNowRequest{
			Host:        u.Hostname(),
			Key:         n.key,
			KeyLocation: n.keyLocation,
			URLList:     []string{rawURL},
		}).
		Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("indexnow: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("indexnow: unexpected status %d", resp.StatusCode())
	}
	return nil
}
