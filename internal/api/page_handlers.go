package api

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/http"

	"framehub/internal/domain"
	webui "framehub/web"
)

var landingTemplate = template.Must(template.ParseFS(webui.Templates, "templates/index.html"))

// landingData is everything the landing template renders.
type landingData struct {
	ProductName string
	Tagline     string
	ListHeading string
	Copyright   string
	DownloadURL string
	FileName    string
	Started     domain.Notification
	Failed      domain.Notification
	Frameworks  []domain.FrameworkDescriptor
	Features    []domain.FeatureCard
}

type pageRenderer struct {
	tmpl *template.Template
	data landingData
}

func newPageRenderer() *pageRenderer {
	return &pageRenderer{
		tmpl: landingTemplate,
		data: landingData{
			ProductName: domain.ProductName,
			Tagline:     domain.HeroTagline,
			ListHeading: domain.ListHeading,
			Copyright:   domain.CopyrightTag,
			DownloadURL: domain.DownloadPath,
			FileName:    domain.InstallerFileName,
			Started:     domain.DownloadStarted,
			Failed:      domain.DownloadFailed,
			Frameworks:  domain.Frameworks(),
			Features:    domain.Features(),
		},
	}
}

func (p *pageRenderer) render() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, "index.html", p.data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GET /
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	body, err := s.page.render()
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusInternalServerError, "failed to render page", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// staticHandler serves the embedded assets under /static/.
func (s *Server) staticHandler() http.Handler {
	sub, err := fs.Sub(webui.Static, "static")
	if err != nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.writeErr(r.Context(), w, http.StatusInternalServerError, "static assets unavailable", err.Error())
		})
	}
	files := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/static/"):]
		if name == "" {
			s.handleNotFound(w, r)
			return
		}
		if _, err := fs.Stat(sub, name); err != nil {
			s.handleNotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
