package trendengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/eringen/trendengine/content"
	"github.com/eringen/trendengine/media"
)

const maxFormMemory = 32 << 20

// parseSubmission reads an admin write from a multipart (or urlencoded)
// form. Only fields present in the form end up in the patch.
func parseSubmission(r *http.Request) (Submission, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return Submission{}, invalid("form", err.Error())
	}
	if r.MultipartForm == nil {
		if err := r.ParseForm(); err != nil {
			return Submission{}, invalid("form", err.Error())
		}
	}
	values := r.PostForm
	field := func(name string) (string, bool) {
		v, ok := values[name]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}

	var sub Submission
	p := &sub.Patch
	for name, dst := range map[string]**string{
		"title":     &p.Title,
		"teaser":    &p.Teaser,
		"spike":     &p.Spike,
		"category":  &p.Category,
		"timestamp": &p.Timestamp,
		"image":     &p.Image,
	} {
		if v, ok := field(name); ok {
			v = strings.TrimSpace(v)
			*dst = &v
		}
	}
	if v, ok := field("slug"); ok {
		sub.Slug = strings.TrimSpace(v)
	}
	if v, ok := field("content"); ok {
		c, err := parseContent(v)
		if err != nil {
			return Submission{}, invalid("content", err.Error())
		}
		p.Content = &c
	}
	if v, ok := field("isHero"); ok {
		b, err := parseBool(v)
		if err != nil {
			return Submission{}, invalid("isHero", err.Error())
		}
		p.IsHero = &b
	}
	if v, ok := field("relatedTopics"); ok {
		list, err := parseList(v)
		if err != nil {
			return Submission{}, invalid("relatedTopics", err.Error())
		}
		p.RelatedTopics = &list
	}
	if v, ok := field("relatedQueries"); ok {
		list, err := parseList(v)
		if err != nil {
			return Submission{}, invalid("relatedQueries", err.Error())
		}
		p.RelatedQueries = &list
	}
	if v, ok := field("version"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return Submission{}, invalid("version", "must be an integer")
		}
		p.ExpectedVersion = &n
	}

	if r.MultipartForm != nil {
		files, err := readFiles(r.MultipartForm.File)
		if err != nil {
			return Submission{}, err
		}
		sub.Files = files
	}
	return sub, nil
}

func parseContent(v string) (content.Content, error) {
	if strings.TrimSpace(v) == "" {
		return content.Content{}, nil
	}
	return content.Parse([]byte(v))
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "on":
		return true, nil
	case "false", "0", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", v)
}

// parseList accepts a JSON array of strings or a comma separated list.
func parseList(v string) ([]string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return []string{}, nil
	}
	if strings.HasPrefix(v, "[") {
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return out, nil
	}
	return strings.Split(v, ","), nil
}

// readFiles loads the first file of every part. Reads stop one byte past the
// upload limit so oversized files are detected without buffering them whole.
func readFiles(parts map[string][]*multipart.FileHeader) (map[string]*media.File, error) {
	files := make(map[string]*media.File, len(parts))
	for name, headers := range parts {
		if len(headers) == 0 {
			continue
		}
		h := headers[0]
		f, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, media.MaxFileSize+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		files[name] = &media.File{
			Field:       name,
			Filename:    h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return files, nil
}
