// Package media turns the file parts of an admin write into durable URLs.
//
// Resolution has two phases. Prepare validates every attached file and
// decides where each one goes without touching storage, so a bad file
// rejects the write before anything is uploaded. Apply then uploads the
// prepared files in parallel and rewrites the referencing fields.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/trendengine/blob"
	"github.com/eringen/trendengine/content"
)

const (
	// MaxFileSize is the largest accepted upload (4.5 MiB, inclusive).
	MaxFileSize = 4718592

	HeroField            = "image"
	HeroUploadMarker     = "hero-image"
	ContentImagePrefix   = "content-image-"
	ParagraphImagePrefix = "paragraph-image-"
)

var allowedTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/webp": "webp",
}

// File is one uploaded file part.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Request is everything Prepare needs from a write: the trend slug, the
// submitted hero value, the parsed blocks and the file parts by name.
type Request struct {
	Slug    string
	Hero    string
	Content content.Content
	Files   map[string]*File
}

// FileError reports an attachment that cannot be accepted. Field names the
// offending attachment, e.g. "hero image" or "content image 2".
type FileError struct {
	Field  string
	Reason string
}

func (e *FileError) Error() string {
	return e.Field + ": " + e.Reason
}

// Resolver prepares upload plans against a blob store.
type Resolver struct {
	store   blob.Store
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewResolver returns a Resolver. timeout bounds each individual upload.
func NewResolver(store blob.Store, timeout time.Duration, log *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: store, timeout: timeout, now: time.Now, log: log}
}

type target int

const (
	targetHero target = iota
	targetImage
	targetParagraph
)

type upload struct {
	file        *File
	name        string
	contentType string
	target      target
	index       int
}

// Plan is a validated set of uploads for one write.
type Plan struct {
	r       *Resolver
	hero    string
	content content.Content
	uploads []upload

	mu       sync.Mutex
	uploaded []string
}

// Prepare validates the attachments referenced by req and returns the plan
// that Apply will execute. No storage call is made.
func (r *Resolver) Prepare(req Request) (*Plan, error) {
	ms := r.now().UnixMilli()
	p := &Plan{
		r:       r,
		hero:    req.Hero,
		content: append(content.Content(nil), req.Content...),
	}

	heroFile := req.Files[HeroField]
	if heroFile == nil && isUploadMarker(req.Hero) {
		return nil, &FileError{Field: "hero image", Reason: "upload is missing"}
	}
	if heroFile != nil {
		ct, err := validate(heroFile)
		if err != nil {
			return nil, &FileError{Field: "hero image", Reason: err.Error()}
		}
		p.uploads = append(p.uploads, upload{
			file:        heroFile,
			name:        fmt.Sprintf("%s-hero-%d.%s", req.Slug, ms, extension(heroFile.Filename)),
			contentType: ct,
			target:      targetHero,
		})
	}

	for i, blk := range p.content {
		var (
			ref   string
			kind  string
			tgt   target
			label string
		)
		switch b := blk.(type) {
		case content.Image:
			if !strings.HasPrefix(b.Src, ContentImagePrefix) {
				continue
			}
			ref, kind, tgt, label = b.Src, "content", targetImage, "content image"
		case content.Paragraph:
			if !strings.HasPrefix(b.Image, ParagraphImagePrefix) {
				continue
			}
			ref, kind, tgt, label = b.Image, "paragraph", targetParagraph, "paragraph image"
		default:
			continue
		}
		f := req.Files[ref]
		if f == nil {
			continue
		}
		ct, err := validate(f)
		if err != nil {
			return nil, &FileError{Field: fmt.Sprintf("%s %d", label, i), Reason: err.Error()}
		}
		p.uploads = append(p.uploads, upload{
			file:        f,
			name:        fmt.Sprintf("%s-%s-%d-%d.%s", req.Slug, kind, i, ms, extension(f.Filename)),
			contentType: ct,
			target:      tgt,
			index:       i,
		})
	}
	return p, nil
}

// Pending reports how many files the plan will upload.
func (p *Plan) Pending() int {
	return len(p.uploads)
}

// Apply uploads every prepared file concurrently and returns the hero value
// and blocks with references replaced by durable URLs. Block order is kept.
// If any upload fails, the uploads that succeeded are deleted again.
func (p *Plan) Apply(ctx context.Context) (string, content.Content, error) {
	urls := make([]string, len(p.uploads))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range p.uploads {
		g.Go(func() error {
			uctx, cancel := context.WithTimeout(gctx, p.r.timeout)
			defer cancel()
			url, err := p.r.store.Put(uctx, u.name, u.contentType, u.file.Data)
			if err != nil {
				return fmt.Errorf("upload %s: %w", u.name, err)
			}
			urls[i] = url
			p.mu.Lock()
			p.uploaded = append(p.uploaded, url)
			p.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.Rollback(context.WithoutCancel(ctx))
		return "", nil, err
	}

	hero := p.hero
	for i, u := range p.uploads {
		switch u.target {
		case targetHero:
			hero = urls[i]
		case targetImage:
			b := p.content[u.index].(content.Image)
			b.Src = urls[i]
			p.content[u.index] = b
		case targetParagraph:
			b := p.content[u.index].(content.Paragraph)
			b.Image = urls[i]
			p.content[u.index] = b
		}
	}
	return hero, p.content, nil
}

// Rollback deletes every blob this plan uploaded. Failures are logged and
// otherwise ignored.
func (p *Plan) Rollback(ctx context.Context) {
	p.mu.Lock()
	urls := p.uploaded
	p.uploaded = nil
	p.mu.Unlock()
	for _, url := range urls {
		dctx, cancel := context.WithTimeout(ctx, p.r.timeout)
		if err := p.r.store.Delete(dctx, url); err != nil {
			p.r.log.Warn("blob rollback failed", zap.String("url", url), zap.Error(err))
		}
		cancel()
	}
}

func isUploadMarker(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, "blob:") || v == HeroUploadMarker
}

// validate checks size, declared type and image header of f and returns the
// effective content type.
func validate(f *File) (string, error) {
	if len(f.Data) == 0 {
		return "", fmt.Errorf("file is empty")
	}
	if len(f.Data) > MaxFileSize {
		return "", fmt.Errorf("file exceeds %d bytes", MaxFileSize)
	}
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(f.Data)
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	format, ok := allowedTypes[ct]
	if !ok {
		return "", fmt.Errorf("unsupported type %q (allowed: jpeg, png, webp)", ct)
	}
	_, decoded, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return "", fmt.Errorf("not a valid image: %w", err)
	}
	if decoded != format {
		return "", fmt.Errorf("content is %s, declared %s", decoded, ct)
	}
	return ct, nil
}

func extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "jpg"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "jpg"
		}
	}
	return ext
}
