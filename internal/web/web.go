// Package web holds the embedded HTML templates and the gin renderer that
// serves them. Each page is parsed together with base.html and the partials,
// so every page template only defines "title" and "content".
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin/render"
)

//go:embed templates
var files embed.FS

// 页面模板名
const (
	PageIndex       = "index.html"
	PageGroup       = "group_list.html"
	PageProfile     = "profile.html"
	PagePostDetail  = "post_detail.html"
	PageCreatePost  = "create_post.html"
	PageFollow      = "follow.html"
	PageLogin       = "login.html"
	PageSignup      = "signup.html"
	PageLoggedOut   = "logged_out.html"
	PageAboutAuthor = "about_author.html"
	PageAboutTech   = "about_tech.html"
	PageNotFound    = "404.html"
	PageServerError = "500.html"
)

// Renderer implements gin's render.HTMLRender over the embedded templates.
type Renderer struct {
	pages map[string]*template.Template
}

var _ render.HTMLRender = (*Renderer)(nil)

// New parses every page. mediaURL is the public prefix for uploaded files.
func New(mediaURL string) (*Renderer, error) {
	funcs := Funcs(mediaURL)

	shared, err := template.New("base.html").Funcs(funcs).ParseFS(files, "templates/base.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse base templates: %w", err)
	}

	entries, err := fs.ReadDir(files, "templates")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == "base.html" || path.Ext(name) != ".html" {
			continue
		}
		t, err := shared.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(files, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Instance 渲染 base 布局，页面内容由 name 对应的模板提供
func (r *Renderer) Instance(name string, data any) render.Render {
	t, ok := r.pages[name]
	if !ok {
		t = r.pages[PageNotFound]
	}
	return render.HTML{Template: t, Name: "base", Data: data}
}

// Has reports whether a page template named name exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Funcs are the helpers available in every template.
func Funcs(mediaURL string) template.FuncMap {
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	return template.FuncMap{
		"media": func(rel string) string {
			if rel == "" {
				return ""
			}
			return mediaURL + rel
		},
		"date": func(t time.Time) string {
			return t.Format("2 January 2006")
		},
		"linebreaksbr": func(s string) template.HTML {
			escaped := template.HTMLEscapeString(s)
			escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
			return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
		},
		"truncatewords": func(s string, n int) string {
			words := strings.Fields(s)
			if len(words) <= n {
				return strings.Join(words, " ")
			}
			return strings.Join(words[:n], " ") + " …"
		},
		"add": func(a, b int) int { return a + b },
		"deref": func(p *uint) uint {
			if p == nil {
				return 0
			}
			return *p
		},
	}
}
