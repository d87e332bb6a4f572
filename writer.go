package trendengine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eringen/trendengine/indexing"
	"github.com/eringen/trendengine/media"
)

// enqueuer schedules an indexing notification without waiting for it.
type enqueuer interface {
	Enqueue(url string, kind indexing.Kind)
}

// Writer runs admin writes: validate, resolve media, persist, then notify.
type Writer struct {
	repo    Repository
	media   *media.Resolver
	index   enqueuer
	cache   *TrendCache
	siteURL string
	log     *zap.Logger
}

// NewWriter wires a Writer. cache may be nil.
func NewWriter(repo Repository, resolver *media.Resolver, index enqueuer, cache *TrendCache, siteURL string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{repo: repo, media: resolver, index: index, cache: cache, siteURL: siteURL, log: log}
}

// Submission is a parsed admin write. Patch fields that were not submitted
// are nil; Patch.Image carries the text value of the hero field.
type Submission struct {
	Slug  string
	Patch Patch
	Files map[string]*media.File
}

// Create stores a new trend. Every field is validated and the slug checked
// before any file is uploaded; uploads are deleted again if the insert fails.
func (w *Writer) Create(ctx context.Context, sub Submission) (Trend, error) {
	t := Trend{Slug: sub.Slug}
	sub.Patch.apply(&t)

	check := t
	if err := validate(&check); err != nil {
		return Trend{}, err
	}
	exists, err := w.repo.Exists(ctx, t.Slug)
	if err != nil {
		return Trend{}, fmt.Errorf("check slug: %w", err)
	}
	if exists {
		return Trend{}, ErrDuplicateSlug
	}

	plan, err := w.media.Prepare(media.Request{
		Slug:    t.Slug,
		Hero:    t.Image,
		Content: t.Content,
		Files:   sub.Files,
	})
	if err != nil {
		return Trend{}, mediaError(err)
	}
	t.Image, t.Content, err = plan.Apply(ctx)
	if err != nil {
		return Trend{}, fmt.Errorf("store media: %w", err)
	}

	created, err := w.repo.Create(ctx, t)
	if err != nil {
		plan.Rollback(context.WithoutCancel(ctx))
		return Trend{}, err
	}
	w.committed(created.Slug, indexing.URLUpdated)
	return created, nil
}

// Update merges the submitted fields into an existing trend.
func (w *Writer) Update(ctx context.Context, slug string, sub Submission) (Trend, error) {
	cur, err := w.repo.Get(ctx, slug)
	if err != nil {
		return Trend{}, err
	}
	patch := sub.Patch
	if patch.ExpectedVersion != nil && *patch.ExpectedVersion != cur.Version {
		return Trend{}, ErrVersionConflict
	}
	check := cur
	patch.apply(&check)
	if err := validate(&check); err != nil {
		return Trend{}, err
	}

	req := media.Request{Slug: slug, Files: sub.Files}
	if patch.Image != nil {
		req.Hero = *patch.Image
	}
	if patch.Content != nil {
		req.Content = *patch.Content
	}
	plan, err := w.media.Prepare(req)
	if err != nil {
		return Trend{}, mediaError(err)
	}
	hero, blocks, err := plan.Apply(ctx)
	if err != nil {
		return Trend{}, fmt.Errorf("store media: %w", err)
	}
	if patch.Image != nil || sub.Files[media.HeroField] != nil {
		patch.Image = &hero
	}
	if patch.Content != nil {
		patch.Content = &blocks
	}

	updated, err := w.repo.Update(ctx, slug, patch)
	if err != nil {
		plan.Rollback(context.WithoutCancel(ctx))
		return Trend{}, err
	}
	w.committed(slug, indexing.URLUpdated)
	return updated, nil
}

// Delete removes a trend.
func (w *Writer) Delete(ctx context.Context, slug string) error {
	if err := w.repo.Delete(ctx, slug); err != nil {
		return err
	}
	w.committed(slug, indexing.URLDeleted)
	return nil
}

func (w *Writer) committed(slug string, kind indexing.Kind) {
	if w.cache != nil {
		w.cache.Invalidate()
	}
	url := TrendURL(w.siteURL, slug)
	w.log.Info("trend written", zap.String("slug", slug), zap.String("kind", string(kind)))
	if w.index != nil {
		w.index.Enqueue(url, kind)
	}
}

func mediaError(err error) error {
	var fe *media.FileError
	if errors.As(err, &fe) {
		return &ValidationError{Field: fe.Field, Message: fe.Reason}
	}
	return err
}
