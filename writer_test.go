package trendengine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/trendengine/content"
	"github.com/eringen/trendengine/media"
)

type recordingBlobs struct {
	mu      sync.Mutex
	puts    []string
	deletes []string
}

func (b *recordingBlobs) Put(_ context.Context, name, _ string, _ []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	url := "/uploads/" + name
	b.puts = append(b.puts, url)
	return url, nil
}

func (b *recordingBlobs) Delete(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, url)
	return nil
}

func (b *recordingBlobs) snapshot() (puts, deletes []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	puts = append([]string(nil), b.puts...)
	deletes = append([]string(nil), b.deletes...)
	sort.Strings(puts)
	sort.Strings(deletes)
	return puts, deletes
}

var errWriteFailed = errors.New("disk full")

// failingRepo reads through to a real store but fails every write.
type failingRepo struct {
	Repository
}

func (failingRepo) Create(context.Context, Trend) (Trend, error) {
	return Trend{}, errWriteFailed
}

func (failingRepo) Update(context.Context, string, Patch) (Trend, error) {
	return Trend{}, errWriteFailed
}

func newTestWriter(repo Repository, blobs *recordingBlobs) *Writer {
	resolver := media.NewResolver(blobs, time.Second, zap.NewNop())
	return NewWriter(repo, resolver, nil, nil, "https://trends.example.com", zap.NewNop())
}

func strPtr(s string) *string { return &s }

func blockSubmission(t *testing.T, slug string) Submission {
	t.Helper()
	data := testPNG(t, 0)
	blocks := content.Content{
		content.Paragraph{Title: "Intro", Text: "Opening", Image: "paragraph-image-0"},
		content.Video{URL: "https://www.youtube.com/embed/abc"},
		content.Image{Title: "Scoreboard", Src: "content-image-2", Caption: "Final"},
	}
	return Submission{
		Slug: slug,
		Patch: Patch{
			Title:     strPtr("Suns vs Mavs"),
			Teaser:    strPtr("Late game heroics"),
			Category:  strPtr("Sports"),
			Timestamp: strPtr("2025-03-01T10:30"),
			Image:     strPtr(media.HeroUploadMarker),
			Content:   &blocks,
		},
		Files: map[string]*media.File{
			media.HeroField:     {Field: media.HeroField, Filename: "hero.png", ContentType: "image/png", Data: data},
			"paragraph-image-0": {Field: "paragraph-image-0", Filename: "p.png", ContentType: "image/png", Data: data},
			"content-image-2":   {Field: "content-image-2", Filename: "c.png", ContentType: "image/png", Data: data},
		},
	}
}

func TestWriterCreateRewritesBlockMedia(t *testing.T) {
	s, _ := setupTestStore(t)
	blobs := &recordingBlobs{}
	w := newTestWriter(s, blobs)

	got, err := w.Create(context.Background(), blockSubmission(t, "with-media"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(got.Image, "/uploads/with-media-hero-") {
		t.Errorf("hero = %q", got.Image)
	}
	if len(got.Content) != 3 {
		t.Fatalf("blocks = %d, want 3", len(got.Content))
	}
	p, ok := got.Content[0].(content.Paragraph)
	if !ok || !strings.HasPrefix(p.Image, "/uploads/with-media-paragraph-0-") || p.Text != "Opening" {
		t.Errorf("block 0 = %#v", got.Content[0])
	}
	if v, ok := got.Content[1].(content.Video); !ok || v.URL != "https://www.youtube.com/embed/abc" {
		t.Errorf("block 1 = %#v", got.Content[1])
	}
	img, ok := got.Content[2].(content.Image)
	if !ok || !strings.HasPrefix(img.Src, "/uploads/with-media-content-2-") || img.Caption != "Final" {
		t.Errorf("block 2 = %#v", got.Content[2])
	}
	if puts, deletes := blobs.snapshot(); len(puts) != 3 || len(deletes) != 0 {
		t.Errorf("puts = %v, deletes = %v", puts, deletes)
	}
}

func TestWriterCreateRollsBackOnRepositoryFailure(t *testing.T) {
	s, _ := setupTestStore(t)
	blobs := &recordingBlobs{}
	w := newTestWriter(failingRepo{Repository: s}, blobs)

	if _, err := w.Create(context.Background(), blockSubmission(t, "doomed")); !errors.Is(err, errWriteFailed) {
		t.Fatalf("err = %v, want %v", err, errWriteFailed)
	}
	puts, deletes := blobs.snapshot()
	if len(puts) != 3 {
		t.Fatalf("puts = %v, want 3 uploads before the failed insert", puts)
	}
	if strings.Join(deletes, ",") != strings.Join(puts, ",") {
		t.Errorf("deletes = %v, want every upload %v", deletes, puts)
	}
}

func TestWriterUpdateRollsBackOnRepositoryFailure(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, sampleTrend("existing")); err != nil {
		t.Fatal(err)
	}
	blobs := &recordingBlobs{}
	w := newTestWriter(failingRepo{Repository: s}, blobs)

	sub := blockSubmission(t, "existing")
	if _, err := w.Update(ctx, "existing", sub); !errors.Is(err, errWriteFailed) {
		t.Fatalf("err = %v, want %v", err, errWriteFailed)
	}
	puts, deletes := blobs.snapshot()
	if len(puts) != 3 || strings.Join(deletes, ",") != strings.Join(puts, ",") {
		t.Errorf("puts = %v, deletes = %v", puts, deletes)
	}
	got, _ := s.Get(ctx, "existing")
	if got.Image != DefaultImage || got.Version != 1 {
		t.Errorf("stored trend changed: image %q version %d", got.Image, got.Version)
	}
}
