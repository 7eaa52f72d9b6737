package pagination

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Sternrassler/nsi-loader/internal/testutil"
	"github.com/Sternrassler/nsi-loader/pkg/dictionary"
	"github.com/Sternrassler/nsi-loader/pkg/logging"
	"github.com/Sternrassler/nsi-loader/pkg/registry"
)

type fetchCall struct {
	identifier string
	page       int
	size       int
}

// fakeFetcher serves pages of pre-set sizes and records every call.
type fakeFetcher struct {
	mu       sync.Mutex
	sizes    []int
	failPage int
	failErr  error
	calls    []fetchCall
}

func (f *fakeFetcher) FetchPage(ctx context.Context, identifier string, page, size int) ([]dictionary.Row, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{identifier, page, size})
	f.mu.Unlock()

	if f.failPage == page {
		return nil, f.failErr
	}

	n := 0
	if page-1 < len(f.sizes) {
		n = f.sizes[page-1]
	}
	rows := make([]dictionary.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, dictionary.Row{
			{Column: "PAGE", Value: strconv.Itoa(page)},
			{Column: "N", Value: strconv.Itoa(i)},
		})
	}
	return rows, nil
}

func TestNewDownloader_Defaults(t *testing.T) {
	d := NewDownloader(&fakeFetcher{}, Config{PageSize: 0, MaxPages: -3})

	if d.PageSize() != DefaultPageSize {
		t.Errorf("PageSize() = %d, want %d", d.PageSize(), DefaultPageSize)
	}
	if d.config.MaxPages != 0 {
		t.Errorf("MaxPages = %d, want 0", d.config.MaxPages)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PageSize != 200 {
		t.Errorf("PageSize = %d, want 200", cfg.PageSize)
	}
	if cfg.MaxPages != 0 {
		t.Errorf("MaxPages = %d, want 0 (unbounded)", cfg.MaxPages)
	}
}

func TestDownload_ShortPageTerminates(t *testing.T) {
	tests := []struct {
		name      string
		pageSize  int
		sizes     []int
		wantCalls int
		wantTotal int
	}{
		{"single short page", 200, []int{47}, 1, 47},
		{"empty first page", 200, []int{0}, 1, 0},
		{"two full then short", 200, []int{200, 200, 47}, 3, 447},
		{"full then empty", 10, []int{10}, 2, 10},
		{"page size one", 1, []int{1, 1, 0}, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{sizes: tt.sizes}
			d := NewDownloader(f, Config{PageSize: tt.pageSize})

			result, err := d.Download(context.Background(), "X")
			if err != nil {
				t.Fatalf("Download() error: %v", err)
			}
			if result.Len() != tt.wantTotal {
				t.Errorf("records = %d, want %d", result.Len(), tt.wantTotal)
			}
			if len(f.calls) != tt.wantCalls {
				t.Errorf("fetch calls = %d, want %d", len(f.calls), tt.wantCalls)
			}
			if result.Identifier != "X" {
				t.Errorf("Identifier = %q, want X", result.Identifier)
			}
			if result.Records == nil {
				t.Error("Records should never be nil on success")
			}
		})
	}
}

func TestDownload_FullPageRequestsNextIndex(t *testing.T) {
	f := &fakeFetcher{sizes: []int{5, 5, 5, 2}}
	d := NewDownloader(f, Config{PageSize: 5})

	if _, err := d.Download(context.Background(), "X"); err != nil {
		t.Fatalf("Download() error: %v", err)
	}

	for i, c := range f.calls {
		if c.page != i+1 {
			t.Errorf("call %d page = %d, want %d", i, c.page, i+1)
		}
		if c.size != 5 {
			t.Errorf("call %d size = %d, want 5", i, c.size)
		}
		if c.identifier != "X" {
			t.Errorf("call %d identifier = %q, want X", i, c.identifier)
		}
	}
}

func TestDownload_PreservesFetchOrder(t *testing.T) {
	f := &fakeFetcher{sizes: []int{3, 3, 1}}
	d := NewDownloader(f, Config{PageSize: 3})

	result, err := d.Download(context.Background(), "X")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}

	want := []string{"1", "1", "1", "2", "2", "2", "3"}
	for i, rec := range result.Records {
		if rec["PAGE"] != want[i] {
			t.Errorf("record %d from page %v, want %s", i, rec["PAGE"], want[i])
		}
	}
}

func TestDownload_FailureAbortsWithoutPartialResult(t *testing.T) {
	fetchErr := &registry.TransportError{
		Identifier: "X",
		Page:       2,
		StatusCode: 502,
		ErrorClass: registry.ErrorClassServer,
	}
	f := &fakeFetcher{sizes: []int{200, 200, 10}, failPage: 2, failErr: fetchErr}
	d := NewDownloader(f, DefaultConfig())

	result, err := d.Download(context.Background(), "X")
	if err == nil {
		t.Fatal("expected error")
	}
	if err != fetchErr {
		t.Errorf("error should be propagated unchanged, got %v", err)
	}
	if result.Records != nil {
		t.Errorf("expected no records on failure, got %d", result.Len())
	}
	if len(f.calls) != 2 {
		t.Errorf("fetch calls = %d, want 2 (no retry, no further pages)", len(f.calls))
	}
}

func TestDownload_MaxPages(t *testing.T) {
	f := &fakeFetcher{sizes: []int{2, 2, 2, 2, 2, 2}}
	d := NewDownloader(f, Config{PageSize: 2, MaxPages: 3})

	_, err := d.Download(context.Background(), "X")
	if !errors.Is(err, ErrPageLimitExceeded) {
		t.Fatalf("error = %v, want ErrPageLimitExceeded", err)
	}
	if len(f.calls) != 3 {
		t.Errorf("fetch calls = %d, want 3", len(f.calls))
	}
}

func TestDownload_MaxPagesNotHitByShortPage(t *testing.T) {
	f := &fakeFetcher{sizes: []int{2, 2, 1}}
	d := NewDownloader(f, Config{PageSize: 2, MaxPages: 3})

	result, err := d.Download(context.Background(), "X")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if result.Len() != 5 {
		t.Errorf("records = %d, want 5", result.Len())
	}
}

func TestDownload_AgainstMockRegistry(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	mock.SetPageSizes("X", 200, 200, 47)

	cfg := registry.DefaultConfig("key")
	cfg.BaseURL = mock.URL()
	client, err := registry.New(cfg)
	if err != nil {
		t.Fatalf("registry.New() error: %v", err)
	}

	d := NewDownloader(client, DefaultConfig())

	result, err := d.Download(context.Background(), "X")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if result.Len() != 447 {
		t.Errorf("records = %d, want 447", result.Len())
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("requests = %d, want 3", mock.GetRequestCount())
	}
	if result.Records[446]["ID"] != "447" {
		t.Errorf("last record ID = %v, want 447", result.Records[446]["ID"])
	}
}

func TestDownload_RegistryErrorOnFirstPage(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	mock.SetResponse("Y", 1, testutil.NewErrorResult("ошибка"))

	cfg := registry.DefaultConfig("key")
	cfg.BaseURL = mock.URL()
	client, err := registry.New(cfg)
	if err != nil {
		t.Fatalf("registry.New() error: %v", err)
	}

	_, err = NewDownloader(client, DefaultConfig()).Download(context.Background(), "Y")

	var regErr *registry.RegistryError
	if !errors.As(err, &regErr) {
		t.Fatalf("error type = %T, want *registry.RegistryError", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.GetRequestCount())
	}
}

func TestDownload_LogsWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	logging.Setup(logging.Config{Level: logging.LevelInfo, Output: buf})
	defer logging.Setup(logging.Config{Level: logging.LevelError})

	d := NewDownloader(&fakeFetcher{sizes: []int{1}}, Config{PageSize: 5})
	if _, err := d.Download(context.Background(), "X"); err != nil {
		t.Fatalf("Download() error: %v", err)
	}

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.Contains(line, `"component":"downloader"`) {
			t.Errorf("log line without downloader component: %s", line)
		}
	}
	if !strings.Contains(buf.String(), "Download complete") {
		t.Errorf("missing completion log, got %q", buf.String())
	}
}
