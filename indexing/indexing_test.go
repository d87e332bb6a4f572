package indexing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/option"
)

func TestMultiJoinsErrors(t *testing.T) {
	var calls []string
	ok := NotifierFunc(func(_ context.Context, url string, _ Kind) error {
		calls = append(calls, "ok:"+url)
		return nil
	})
	bad := NotifierFunc(func(context.Context, string, Kind) error {
		return errors.New("engine down")
	})
	err := Multi{bad, ok}.Notify(context.Background(), "https://example.com/trends/a", URLUpdated)
	if err == nil || !strings.Contains(err.Error(), "engine down") {
		t.Fatalf("err = %v", err)
	}
	if len(calls) != 1 {
		t.Errorf("second notifier not called after first failed: %v", calls)
	}
	if err := (Multi{ok}).Notify(context.Background(), "u", URLDeleted); err != nil {
		t.Errorf("unexpected err %v", err)
	}
}

func TestGoogleNotify(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"urlNotificationMetadata":{"url":"https://example.com/trends/a"}}`))
	}))
	defer srv.Close()

	g, err := NewGoogle(context.Background(), nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("NewGoogle: %v", err)
	}
	if err := g.Notify(context.Background(), "https://example.com/trends/a", URLDeleted); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !strings.HasSuffix(path, "urlNotifications:publish") {
		t.Errorf("path = %q", path)
	}
	if got["url"] != "https://example.com/trends/a" || got["type"] != "URL_DELETED" {
		t.Errorf("body = %v", got)
	}
}

func TestIndexNowNotify(t *testing.T) {
	var req indexNowRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewIndexNow(srv.URL, "k123", "")
	if err := n.Notify(context.Background(), "https://www.example.com/trends/a", URLUpdated); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if req.Host != "www.example.com" || req.Key != "k123" || len(req.URLList) != 1 {
		t.Errorf("request = %+v", req)
	}
}

func TestIndexNowErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewIndexNow(srv.URL, "k", "")
	if err := n.Notify(context.Background(), "https://example.com/trends/a", URLUpdated); err == nil {
		t.Fatal("expected error for 403")
	}
	if err := n.Notify(context.Background(), "not a url", URLUpdated); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

type fakeConn struct {
	subject string
	data    []byte
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.subject, f.data = subj, data
	return nil
}

func TestNATSNotify(t *testing.T) {
	conn := &fakeConn{}
	n := newNATS(conn, "")
	n.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	if err := n.Notify(context.Background(), "https://example.com/trends/suns-vs-mavs", URLUpdated); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if conn.subject != "trends.changed" {
		t.Errorf("subject = %q", conn.subject)
	}
	var evt Event
	if err := json.Unmarshal(conn.data, &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Slug != "suns-vs-mavs" || evt.Type != URLUpdated || !evt.At.Equal(n.now()) {
		t.Errorf("event = %+v", evt)
	}
}

type recorder struct {
	mu   sync.Mutex
	urls []string
}

func (r *recorder) Notify(_ context.Context, url string, _ Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
	return nil
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, 10, time.Second, nil)
	for _, u := range []string{"a", "b", "c"} {
		d.Enqueue(u, URLUpdated)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if strings.Join(rec.urls, ",") != "a,b,c" {
		t.Errorf("delivered = %v", rec.urls)
	}
	d.Enqueue("late", URLUpdated)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var mu sync.Mutex
	var delivered []string
	n := NotifierFunc(func(_ context.Context, url string, _ Kind) error {
		started <- struct{}{}
		<-release
		mu.Lock()
		delivered = append(delivered, url)
		mu.Unlock()
		return nil
	})
	d := NewDispatcher(n, 1, time.Second, zap.New(core))

	d.Enqueue("first", URLUpdated)
	<-started
	d.Enqueue("second", URLUpdated)
	d.Enqueue("third", URLUpdated)
	if logs.FilterMessage("indexing queue full, dropping notification").Len() != 1 {
		t.Errorf("expected one drop warning, got %v", logs.All())
	}

	go func() {
		<-started
	}()
	close(release)
	if err := d.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(delivered) != 2 {
		t.Errorf("delivered = %v", delivered)
	}
}

func TestDispatcherLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	n := NotifierFunc(func(context.Context, string, Kind) error { return errors.New("quota exceeded") })
	d := NewDispatcher(n, 4, time.Second, zap.New(core))
	d.Enqueue("https://example.com/trends/a", URLUpdated)
	if err := d.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	entries := logs.FilterMessage("indexing notification failed").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %v", logs.All())
	}
	if entries[0].ContextMap()["url"] != "https://example.com/trends/a" {
		t.Errorf("fields = %v", entries[0].ContextMap())
	}
}
