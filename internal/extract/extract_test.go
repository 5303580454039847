package extract_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/assay/internal/extract"
)

const page = `<!doctype html>
<html>
<head>
  <title>Case report</title>
  <style>p { color: red; }</style>
  <script>var tracking = "ignore me";</script>
</head>
<body>
  <nav><ul><li>Home</li></ul></nav>
  <h1>Endocrine therapy</h1>
  <p>The patient was started on <b>fulvestrant</b> 500 mg.</p>
  <noscript>Enable JavaScript</noscript>
  <table><tr><td>Dose</td><td>500 mg</td></tr></table>
</body>
</html>`

func TestText(t *testing.T) {
	text, err := extract.Text(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}

	for _, want := range []string{"Case report", "Endocrine therapy", "started on fulvestrant 500 mg.", "Dose", "Home"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
	for _, banned := range []string{"tracking", "color: red", "Enable JavaScript"} {
		if strings.Contains(text, banned) {
			t.Errorf("text contains hidden content %q", banned)
		}
	}
}

func TestTextFallsBackToBody(t *testing.T) {
	text, err := extract.Text(strings.NewReader("<html><body><div>just a div</div></body></html>"))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "just a div" {
		t.Errorf("text = %q", text)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(page))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte("plain <b>text</b>"))
		case "/empty":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><script>x()</script></html>"))
		case "/big":
			w.Write([]byte(strings.Repeat("a", 2048)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := extract.New(srv.Client(), 1024)
	ctx := context.Background()

	text, err := f.Fetch(ctx, srv.URL+"/page")
	if err != nil || !strings.Contains(text, "fulvestrant") {
		t.Errorf("page = %q, %v", text, err)
	}

	text, err = f.Fetch(ctx, srv.URL+"/plain")
	if err != nil || text != "plain <b>text</b>" {
		t.Errorf("plain = %q, %v", text, err)
	}

	tests := []struct {
		path string
		want error
	}{
		{"/missing", extract.ErrFetchFailed},
		{"/empty", extract.ErrNoText},
		{"/big", extract.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if _, err := f.Fetch(ctx, srv.URL+tt.path); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
