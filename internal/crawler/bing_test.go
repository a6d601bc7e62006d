package crawler

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lewtec/roteiro/internal/acquire"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func resultLink(murl string) string {
	meta := fmt.Sprintf(`{"murl":%q,"turl":"https://tse.example/th"}`, murl)
	return fmt.Sprintf(`<a class="iusc" m="%s" href="#">x</a>`, html.EscapeString(meta))
}

func TestParseResults(t *testing.T) {
	page := `<html><body><div>` +
		resultLink("https://img.example/a.jpg") +
		`<a class="other" m='{"murl":"https://img.example/ignored.jpg"}'>y</a>` +
		`<a class="iusc" m="not json">z</a>` +
		`<a class="iusc big" m='{"murl":"ftp://img.example/b.jpg"}'>w</a>` +
		resultLink("https://img.example/c.png") +
		`</div></body></html>`

	urls, err := ParseResults(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/a.jpg", "https://img.example/c.png"}, urls)
}

func TestBingSource_Fetch(t *testing.T) {
	img := pngBytes(t, 10, 10)
	var searches atomic.Int32

	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/images/async", func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		assert.Equal(t, "sumerians", r.URL.Query().Get("q"))
		assert.Contains(t, r.URL.Query().Get("qft"), "imagesize-large")
		if r.URL.Query().Get("first") != "0" {
			fmt.Fprint(w, `<html></html>`)
			return
		}
		var b strings.Builder
		for i := 1; i <= 4; i++ {
			b.WriteString(resultLink(fmt.Sprintf("%s/img/%d", server.URL, i)))
		}
		b.WriteString(resultLink(server.URL + "/img/1"))
		fmt.Fprint(w, b.String())
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img/2":
			http.Error(w, "gone", http.StatusNotFound)
		case "/img/3":
			fmt.Fprint(w, "<html>not an image</html>")
		default:
			w.Write(img)
		}
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	source := NewBingSource(server.Client(), zap.NewNop())
	source.BaseURL = server.URL + "/images/async"

	candidates, err := source.Fetch(context.Background(), acquire.Query{Term: "sumerians", Count: 10, Tier: acquire.TierHigh})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "000001.png", candidates[0].Filename)
	assert.Equal(t, "000002.png", candidates[1].Filename)
	assert.Equal(t, img, candidates[0].Data)
	// the first page plus the empty pages that end the search
	assert.Equal(t, int32(1+maxEmptyPages), searches.Load())
}

func TestBingSource_FetchRespectsCount(t *testing.T) {
	img := pngBytes(t, 10, 10)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/img/") {
			w.Write(img)
			return
		}
		var b strings.Builder
		for i := 0; i < 10; i++ {
			b.WriteString(resultLink(fmt.Sprintf("%s/img/%s-%d", server.URL, r.URL.Query().Get("first"), i)))
		}
		fmt.Fprint(w, b.String())
	}))
	defer server.Close()

	source := NewBingSource(server.Client(), nil)
	source.BaseURL = server.URL + "/search"
	source.PageSize = 10
	source.Limiter = nil

	candidates, err := source.Fetch(context.Background(), acquire.Query{Term: "x", Count: 15})
	require.NoError(t, err)
	assert.Len(t, candidates, 15)
}

func TestBingSource_FetchStopsAtByteBudget(t *testing.T) {
	img := pngBytes(t, 10, 10)
	var downloads atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/img/") {
			downloads.Add(1)
			w.Write(img)
			return
		}
		var b strings.Builder
		for i := 0; i < 6; i++ {
			b.WriteString(resultLink(fmt.Sprintf("%s/img/%d", server.URL, i)))
		}
		fmt.Fprint(w, b.String())
	}))
	defer server.Close()

	source := NewBingSource(server.Client(), nil)
	source.BaseURL = server.URL + "/search"
	source.Limiter = nil
	source.Workers = 1
	source.MaxTotalBytes = int64(2*len(img) + 1)

	candidates, err := source.Fetch(context.Background(), acquire.Query{Term: "x", Count: 6})
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
	// the third download overflows the budget, the rest are never started
	assert.Equal(t, int32(3), downloads.Load())
}

func TestBingSource_SearchUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewBingSource(server.Client(), nil)
	source.BaseURL = server.URL

	_, err := source.Fetch(context.Background(), acquire.Query{Term: "x", Count: 5})
	assert.ErrorContains(t, err, "503")
}

func TestLoggingTransport(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client := NewHTTPClient(0, zap.NewNop())
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, DefaultUserAgent, gotAgent)
}

func TestSniffExtension(t *testing.T) {
	assert.Equal(t, "png", sniffExtension(pngBytes(t, 2, 2)))
	assert.Equal(t, "jpg", sniffExtension([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}))
	assert.Equal(t, "jpg", sniffExtension([]byte("plain text")))
}
