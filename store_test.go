package trendengine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/eringen/trendengine/content"
)

type testClock struct {
	t    time.Time
	step time.Duration
}

func (c *testClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func setupTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	s, err := OpenStore(DialectSQLite, filepath.Join(t.TempDir(), "data", "trends.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	clock := &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), step: time.Second}
	s.now = clock.now
	return s, clock
}

func sampleTrend(slug string) Trend {
	return Trend{
		Slug:      slug,
		Title:     "Suns vs Mavs",
		Teaser:    "Late game heroics in Dallas",
		Spike:     "20K+ searches",
		Category:  "Sports",
		Timestamp: "2025-03-01T10:30",
	}
}

func TestNewStore(t *testing.T) {
	s, _ := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestCreateAndGet(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	in := sampleTrend("suns-vs-mavs")
	in.Content = content.Content{
		content.Paragraph{Title: "Recap", Text: "Booker scored 40.", Image: "/uploads/p.jpg"},
		content.Image{Src: "/uploads/c.jpg", Caption: "The dagger"},
		content.XEmbed{URL: "https://x.com/nba/status/1"},
	}
	in.RelatedTopics = []string{"Devin Booker", " ", "Luka Doncic"}
	in.RelatedQueries = []string{"suns score"}
	in.IsHero = true

	created, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got, err := s.Get(ctx, "suns-vs-mavs")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !reflect.DeepEqual(got.Content, in.Content) {
		t.Errorf("Content = %#v, want %#v", got.Content, in.Content)
	}
	if got.Category != "Sports" {
		t.Errorf("Category = %q", got.Category)
	}
	if want := []string{"Devin Booker", "Luka Doncic"}; !reflect.DeepEqual(got.RelatedTopics, want) {
		t.Errorf("RelatedTopics = %v, want %v", got.RelatedTopics, want)
	}
	if got.Timestamp != "2025-03-01T10:30:00.000Z" {
		t.Errorf("Timestamp = %q", got.Timestamp)
	}
	if got.Image != DefaultImage {
		t.Errorf("Image = %q, want default", got.Image)
	}
	if !got.IsHero || got.Version != 1 {
		t.Errorf("IsHero = %v, Version = %d", got.IsHero, got.Version)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) || !got.UpdatedAt.Equal(created.UpdatedAt) {
		t.Errorf("audit times differ: got %v/%v, created %v/%v", got.CreatedAt, got.UpdatedAt, created.CreatedAt, created.UpdatedAt)
	}
}

func TestCreateWithoutContentStoresDefaultParagraph(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, sampleTrend("suns-vs-mavs")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got, err := s.Get(ctx, "suns-vs-mavs")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Content, content.Default()) {
		t.Errorf("Content = %#v, want single default paragraph", got.Content)
	}

	blank := sampleTrend("blank-blocks")
	blank.Content = content.Content{content.Paragraph{Text: "  "}, content.Image{}}
	if _, err := s.Create(ctx, blank); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, "blank-blocks")
	if len(got.Content) != 1 || got.Content[0] != (content.Paragraph{}) {
		t.Errorf("Content = %#v", got.Content)
	}
}

func TestCreateDuplicateSlug(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	first := sampleTrend("x")
	if _, err := s.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second := sampleTrend("x")
	second.Title = "Another"
	if _, err := s.Create(ctx, second); !errors.Is(err, ErrDuplicateSlug) {
		t.Fatalf("second Create err = %v, want ErrDuplicateSlug", err)
	}
	page, err := s.List(ctx, ListQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].Title != first.Title {
		t.Errorf("store should hold exactly the first record, got %+v", page.Items)
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Trend)
		field  string
	}{
		{"bad category", func(tr *Trend) { tr.Category = "Basketball" }, "category"},
		{"lowercase category", func(tr *Trend) { tr.Category = "sports" }, "category"},
		{"blank title", func(tr *Trend) { tr.Title = "  " }, "title"},
		{"blank teaser", func(tr *Trend) { tr.Teaser = "" }, "teaser"},
		{"blank slug", func(tr *Trend) { tr.Slug = "" }, "slug"},
		{"unsafe slug", func(tr *Trend) { tr.Slug = "Suns vs Mavs" }, "slug"},
		{"bad timestamp", func(tr *Trend) { tr.Timestamp = "yesterday" }, "timestamp"},
		{"missing timestamp", func(tr *Trend) { tr.Timestamp = "" }, "timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := setupTestStore(t)
			tr := sampleTrend("valid-slug")
			tt.mutate(&tr)
			_, err := s.Create(context.Background(), tr)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
			page, _ := s.List(context.Background(), ListQuery{})
			if page.Total != 0 {
				t.Errorf("record created despite validation failure")
			}
		})
	}
}

func TestListPagination(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if _, err := s.Create(ctx, sampleTrend(fmt.Sprintf("trend-%02d", i))); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.List(ctx, ListQuery{Page: 3, Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Items) != 5 {
		t.Errorf("items on page 3 = %d, want 5", len(page.Items))
	}
	if page.TotalPages != 3 || page.Total != 25 {
		t.Errorf("TotalPages = %d, Total = %d", page.TotalPages, page.Total)
	}

	first, _ := s.List(ctx, ListQuery{})
	if first.Page != 1 || first.Limit != DefaultPageSize || len(first.Items) != 10 {
		t.Errorf("defaults not applied: %+v", first)
	}
	if first.Items[0].Slug != "trend-24" {
		t.Errorf("first item = %s, want most recently updated trend-24", first.Items[0].Slug)
	}

	capped, _ := s.List(ctx, ListQuery{Limit: 1000})
	if capped.Limit != MaxPageSize {
		t.Errorf("Limit = %d, want %d", capped.Limit, MaxPageSize)
	}

	beyond, _ := s.List(ctx, ListQuery{Page: 9})
	if len(beyond.Items) != 0 || beyond.Total != 25 {
		t.Errorf("page past the end = %+v", beyond)
	}
}

func TestListCategoryFilter(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	for i, cat := range []string{"Sports", "Finance", "Sports"} {
		tr := sampleTrend(fmt.Sprintf("t-%d", i))
		tr.Category = cat
		if _, err := s.Create(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		category string
		want     int
	}{
		{"Sports", 2},
		{"Finance", 1},
		{"Games", 0},
		{"", 3},
		{"undefined", 3},
	}
	for _, tt := range tests {
		page, err := s.List(ctx, ListQuery{Category: tt.category})
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != tt.want || len(page.Items) != tt.want {
			t.Errorf("List(%q) total = %d items = %d, want %d", tt.category, page.Total, len(page.Items), tt.want)
		}
	}
}

func TestHero(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.Hero(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Hero on empty store err = %v", err)
	}

	s.Create(ctx, sampleTrend("older"))
	s.Create(ctx, sampleTrend("newer"))
	got, err := s.Hero(ctx)
	if err != nil || got.Slug != "newer" {
		t.Fatalf("fallback hero = %q, %v", got.Slug, err)
	}

	hero := true
	if _, err := s.Update(ctx, "older", Patch{IsHero: &hero}); err != nil {
		t.Fatal(err)
	}
	s.Create(ctx, sampleTrend("newest"))
	got, err = s.Hero(ctx)
	if err != nil || got.Slug != "older" {
		t.Errorf("flagged hero = %q, %v", got.Slug, err)
	}
}

func TestRelated(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Create(ctx, sampleTrend(fmt.Sprintf("sports-%d", i)))
	}
	other := sampleTrend("money")
	other.Category = "Finance"
	s.Create(ctx, other)

	got, err := s.Related(ctx, "sports-4", "Sports", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, tr := range got {
		if tr.Slug == "sports-4" || tr.Category != "Sports" {
			t.Errorf("unexpected related trend %s (%s)", tr.Slug, tr.Category)
		}
	}
}

func TestUpdateMergesFields(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	in := sampleTrend("merge")
	in.RelatedTopics = []string{"a"}
	created, _ := s.Create(ctx, in)

	title := "New title"
	blocks := content.Content{content.Video{URL: "https://youtube.com/embed/x"}}
	got, err := s.Update(ctx, "merge", Patch{Title: &title, Content: &blocks})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Title != "New title" || got.Teaser != in.Teaser || !reflect.DeepEqual(got.RelatedTopics, []string{"a"}) {
		t.Errorf("merge result = %+v", got)
	}
	if !reflect.DeepEqual(got.Content, blocks) {
		t.Errorf("Content = %#v", got.Content)
	}
	if got.Version != 2 || !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("Version = %d, CreatedAt = %v", got.Version, got.CreatedAt)
	}

	empty := content.Content{}
	got, _ = s.Update(ctx, "merge", Patch{Content: &empty})
	if !reflect.DeepEqual(got.Content, content.Default()) {
		t.Errorf("blank content update = %#v", got.Content)
	}
}

func TestUpdateTwiceIncreasesUpdatedAt(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	s.Create(ctx, sampleTrend("same"))
	clock.step = 0 // the clock stands still

	title := "Suns vs Mavs"
	first, err := s.Update(ctx, "same", Patch{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Update(ctx, "same", Patch{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updatedAt did not increase: %v then %v", first.UpdatedAt, second.UpdatedAt)
	}
	stored, _ := s.Get(ctx, "same")
	if !stored.UpdatedAt.Equal(second.UpdatedAt) {
		t.Errorf("stored updatedAt %v, returned %v", stored.UpdatedAt, second.UpdatedAt)
	}
	if first.Title != second.Title || first.Teaser != second.Teaser || !reflect.DeepEqual(first.Content, second.Content) {
		t.Errorf("business fields changed between identical updates")
	}
}

func TestUpdateVersionConflict(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	s.Create(ctx, sampleTrend("v"))

	stale := int64(1)
	spike := "50K+"
	if _, err := s.Update(ctx, "v", Patch{Spike: &spike, ExpectedVersion: &stale}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if _, err := s.Update(ctx, "v", Patch{Spike: &spike, ExpectedVersion: &stale}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}
	got, _ := s.Get(ctx, "v")
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
}

// concurrentWrite makes the next clock read bump the stored version, as if
// another request committed between Update's read and its write.
func concurrentWrite(t *testing.T, s *Store, clock *testClock, slug string) {
	t.Helper()
	fired := false
	s.now = func() time.Time {
		if !fired {
			fired = true
			if _, err := s.db.Exec(`UPDATE trends SET version = version + 1 WHERE slug = ?`, slug); err != nil {
				t.Errorf("concurrent write: %v", err)
			}
		}
		return clock.now()
	}
}

func TestUpdateLostRaceWithVersion(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	s.Create(ctx, sampleTrend("race"))

	concurrentWrite(t, s, clock, "race")
	current := int64(1)
	spike := "50K+"
	if _, err := s.Update(ctx, "race", Patch{Spike: &spike, ExpectedVersion: &current}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
}

func TestUpdateLostRaceWithoutVersionRetries(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	s.Create(ctx, sampleTrend("race"))

	concurrentWrite(t, s, clock, "race")
	spike := "50K+"
	got, err := s.Update(ctx, "race", Patch{Spike: &spike})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Spike != spike || got.Version != 3 {
		t.Errorf("spike %q version %d, want %q and 3", got.Spike, got.Version, spike)
	}
}

func TestListPastLastPage(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	s.Create(ctx, sampleTrend("only"))

	for _, p := range []int{2, 1 << 40, int(^uint(0) >> 1)} {
		page, err := s.List(ctx, ListQuery{Page: p, Limit: 10})
		if err != nil {
			t.Fatalf("page %d: %v", p, err)
		}
		if page.Items == nil || len(page.Items) != 0 || page.Total != 1 || page.TotalPages != 1 {
			t.Errorf("page %d = %+v", p, page)
		}
	}
}

func TestUpdateRejectsInvalidCategory(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	s.Create(ctx, sampleTrend("cat"))

	bad := "Basketball"
	var ve *ValidationError
	if _, err := s.Update(ctx, "cat", Patch{Category: &bad}); !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	got, _ := s.Get(ctx, "cat")
	if got.Category != "Sports" || got.Version != 1 {
		t.Errorf("record changed: %+v", got)
	}
}

func TestUpdateNotFound(t *testing.T) {
	s, _ := setupTestStore(t)
	title := "x"
	if _, err := s.Update(context.Background(), "nope", Patch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	s.Create(ctx, sampleTrend("to-delete"))

	if err := s.Delete(ctx, "to-delete"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "to-delete"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if ok, _ := s.Exists(ctx, "to-delete"); ok {
		t.Errorf("Exists after delete")
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(nope) err = %v, want ErrNotFound", err)
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"2025-03-01T10:30:00Z", "2025-03-01T10:30:00.000Z", false},
		{"2025-03-01T10:30:00.123456Z", "2025-03-01T10:30:00.123Z", false},
		{"2025-03-01T12:30:00+02:00", "2025-03-01T10:30:00.000Z", false},
		{"2025-03-01T10:30", "2025-03-01T10:30:00.000Z", false},
		{"2025-03-01", "2025-03-01T00:00:00.000Z", false},
		{"03/01/2025", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeTimestamp(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizeTimestamp(%q) = %q, %v", tt.in, got, err)
		}
	}
}
