package symbols

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"stock-dashboard/internal/api"
	"stock-dashboard/internal/worker"
)

func newTestCache(t *testing.T, url string) *Cache {
	t.Helper()
	pool := worker.New(4)
	t.Cleanup(pool.Close)
	return NewCache(api.NewClient(), url, pool)
}

const masterListHTML = `<html><body><table>
<tr><th>회사명</th><th>종목코드</th><th>업종</th></tr>
<tr><td>삼성전자</td><td>5930</td><td>전자</td></tr>
<tr><td>카카오</td><td>35720</td><td>서비스</td></tr>
<tr><td>NAVER</td><td>35420</td><td>서비스</td></tr>
</table></body></html>`

func encodeEUCKR(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, korean.EUCKR.NewEncoder())
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	w.Close()
	return buf.Bytes()
}

func newMasterServer(t *testing.T, hits *int32) *httptest.Server {
	body := encodeEUCKR(t, masterListHTML)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		w.Write(body)
	}))
}

func TestCacheLoadsAndLooksUp(t *testing.T) {
	srv := newMasterServer(t, nil)
	defer srv.Close()

	cache := newTestCache(t, srv.URL)
	if cache.Loaded() {
		t.Fatal("Expected cache to start unloaded")
	}

	if err := cache.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	if !cache.Loaded() {
		t.Fatal("Expected cache to be loaded")
	}
	if cache.Size() != 3 {
		t.Errorf("Expected 3 symbols, got %d", cache.Size())
	}

	name, ok := cache.NameByCode("005930")
	if !ok || name != "삼성전자" {
		t.Errorf("Expected 삼성전자 for 005930, got %q (found=%v)", name, ok)
	}

	// Codes shorter than six digits are zero-padded.
	if _, ok := cache.NameByCode("035720"); !ok {
		t.Error("Expected padded code 035720 to resolve")
	}
}

func TestCacheSearchByNameCaseInsensitive(t *testing.T) {
	srv := newMasterServer(t, nil)
	defer srv.Close()

	cache := newTestCache(t, srv.URL)
	if err := cache.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	matches := cache.SearchByName("naver")
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match for naver, got %d", len(matches))
	}
	if matches[0].Code != "035420" {
		t.Errorf("Expected code 035420, got %s", matches[0].Code)
	}

	if got := cache.SearchByName("없는회사"); len(got) != 0 {
		t.Errorf("Expected no matches, got %d", len(got))
	}
}

func TestCacheSingleFlightLoad(t *testing.T) {
	var hits int32
	srv := newMasterServer(t, &hits)
	defer srv.Close()

	cache := newTestCache(t, srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cache.Ensure(context.Background()); err != nil {
				t.Errorf("Ensure failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if hits != 1 {
		t.Errorf("Expected a single master-list fetch, got %d", hits)
	}
}

func TestCacheStaysUnloadedOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := newTestCache(t, srv.URL)

	if err := cache.Ensure(context.Background()); err == nil {
		t.Fatal("Expected load error")
	}
	if cache.Loaded() {
		t.Error("Expected cache to stay unloaded after failure")
	}

	// Next caller retries the full load.
	if err := cache.Ensure(context.Background()); err == nil {
		t.Fatal("Expected retry to fail again")
	}
}

func TestPadCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"5930", "005930"},
		{"005930", "005930"},
		{"", ""},
		{"12ab34", ""},
		{"1234567", ""},
	}
	for _, tc := range cases {
		if got := padCode(tc.in); got != tc.want {
			t.Errorf("padCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
