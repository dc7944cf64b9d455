// Package render loads a page in a headless browser and extracts what the
// analyzer inspects: text, title, form fields, scripts and redirects.
package render

import (
	"context"
	"errors"
)

var ErrRenderTimeout = errors.New("render timeout")

// FormField describes one input of a page form.
type FormField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Form is a page form with its fields.
type Form struct {
	Action string      `json:"action,omitempty"`
	Fields []FormField `json:"fields"`
}

// Page is the extracted content of a rendered URL.
type Page struct {
	URL       string   `json:"url"`
	FinalURL  string   `json:"final_url"`
	Title     string   `json:"title"`
	HTML      string   `json:"-"`
	Text      string   `json:"-"`
	Forms     []Form   `json:"forms"`
	Scripts   []string `json:"-"`
	Redirects int      `json:"redirects"`
}

// Provider renders a URL. Implementations must honor ctx cancellation.
type Provider interface {
	Render(ctx context.Context, url string) (*Page, error)
}

// Static serves fixed pages keyed by URL. It backs tests and deployments
// without a browser.
type Static struct {
	Pages map[string]*Page
	Err   error
}

func (s Static) Render(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if p, ok := s.Pages[url]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, errors.New("page not found")
}

// Disabled is used when rendering is turned off.
type Disabled struct{}

var ErrRenderDisabled = errors.New("rendering disabled")

func (Disabled) Render(context.Context, string) (*Page, error) {
	return nil, ErrRenderDisabled
}
