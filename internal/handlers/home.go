package handlers

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghhtml "github.com/yuin/goldmark/renderer/html"

	"notehub/internal/contextutil"
)

//go:embed content/home.md
var homeMarkdown []byte

// HomeHandler serves the landing page, rendered once from embedded markdown.
type HomeHandler struct {
	page []byte
}

type homePageData struct {
	Title   string
	Content template.HTML
}

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 900px;
      line-height: 1.7;
      background: #f8fafc;
      color: #0f172a;
    }
    article {
      background: #fff;
      border: 1px solid #e2e8f0;
      border-radius: 16px;
      padding: 2rem;
    }
    table {
      border-collapse: collapse;
    }
    th, td {
      border: 1px solid #e2e8f0;
      padding: 0.4rem 0.8rem;
      text-align: left;
    }
    code {
      font-family: 'SFMono-Regular', Consolas, 'Liberation Mono', Menlo, monospace;
      background: #eef2ff;
      padding: 2px 5px;
      border-radius: 6px;
    }
    @media (max-width: 640px) {
      body {
        padding: 1rem;
      }
    }
  </style>
</head>
<body>
  <article>{{.Content}}</article>
</body>
</html>`))

// NewHomeHandler renders the landing page.
func NewHomeHandler() (*HomeHandler, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.TaskList,
			extension.Typographer,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			ghhtml.WithHardWraps(),
		),
	)

	var content bytes.Buffer
	if err := md.Convert(homeMarkdown, &content); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var page bytes.Buffer
	data := homePageData{
		Title:   "NoteHub",
		Content: template.HTML(content.String()),
	}
	if err := homeTemplate.Execute(&page, data); err != nil {
		return nil, fmt.Errorf("execute home template: %w", err)
	}
	return &HomeHandler{page: page.Bytes()}, nil
}

func (h *HomeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(h.page); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to write home page", "error", err)
	}
}
