package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	oa "github.com/panyam/secureauth"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	templates map[string]*template.Template
}

type pageData struct {
	Year      int
	Principal *oa.Principal
}

func newPages() *pages {
	p := &pages{templates: map[string]*template.Template{}}
	for _, name := range []string{"home", "login", "register", "welcome"} {
		p.templates[name] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return p
}

func (p *pages) handler(name string) http.Handler {
	tmpl := p.templates[name]
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := pageData{
			Year:      time.Now().Year(),
			Principal: oa.PrincipalFromContext(r.Context()),
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
			slog.Error("render page", "page", name, "err", err)
		}
	})
}
