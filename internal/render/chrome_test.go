package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<!doctype html><html><head><title>Entrar na conta</title></head>
<body><p>Acesse sua conta</p>
<form action="/steal"><input name="CPF" type="text"><input id="senha" type="password"></form>
<script>var p = atob("c2VjcmV0");</script>
</body></html>`

func TestChromeProvider_Render(t *testing.T) {
	if os.Getenv("PHISHGUARD_TEST_CHROME") == "" {
		t.Skip("PHISHGUARD_TEST_CHROME not set")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/r1", func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/r2", http.StatusFound) })
	mux.HandleFunc("/r2", func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/login", http.StatusFound) })
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(loginPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := NewChromeProvider(os.Getenv("PHISHGUARD_CHROME_PATH"), "PhishGuard-test", 20*time.Second)
	if err != nil {
		t.Skipf("chrome unavailable: %v", err)
	}
	defer p.Close()

	page, err := p.Render(context.Background(), srv.URL+"/r1")
	require.NoError(t, err)
	assert.Equal(t, "Entrar na conta", page.Title)
	assert.Equal(t, 2, page.Redirects)
	assert.Contains(t, page.Text, "Acesse sua conta")
	require.Len(t, page.Forms, 1)
	assert.Equal(t, []FormField{{Name: "cpf", Type: "text"}, {Name: "senha", Type: "password"}}, page.Forms[0].Fields)
	require.NotEmpty(t, page.Scripts)
	assert.Contains(t, page.Scripts[0], "atob")
	assert.Contains(t, page.HTML, "<form")
}
