package indexing

import (
	"context"
	"fmt"

	indexingapi "google.golang.org/api/indexing/v3"
	"google.golang.org/api/option"
)

// Google publishes URL notifications to the Google Indexing API.
type Google struct {
	svc *indexingapi.Service
}

// NewGoogle authenticates with a service-account key (JSON). Extra client
// options are appended after the credentials.
func NewGoogle(ctx context.Context, credentialsJSON []byte, opts ...option.ClientOption) (*Google, error) {
	all := make([]option.ClientOption, 0, len(opts)+2)
	if len(credentialsJSON) > 0 {
		all = append(all, option.WithCredentialsJSON(credentialsJSON))
	}
	all = append(all, option.WithScopes(indexingapi.IndexingScope))
	all = append(all, opts...)
	svc, err := indexingapi.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create indexing service: %w", err)
	}
	return &Google{svc: svc}, nil
}

func (g *Google) Notify(ctx context.Context, url string, kind Kind) error {
	_, err := g.svc.UrlNotifications.Publish(&indexingapi.UrlNotification{
		Url:  url,
		Type: string(kind),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("google indexing %s %s: %w", kind, url, err)
	}
	return nil
}
