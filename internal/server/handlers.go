package server

import (
	"bytes"
	"net/http"
	"strconv"

	"metaexplorer/internal/router"

	"github.com/sirupsen/logrus"
)

// fragmentHeader marks a partial-update request when non-empty.
const fragmentHeader = "HX-Request"

// handleResolve translates the HTTP request into a resolver request and
// writes the outcome. HEAD is answered like GET.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}

	req := router.Request{
		Method:   method,
		Path:     r.URL.Path,
		Query:    r.URL.Query(),
		Fragment: r.Header.Get(fragmentHeader) != "",
	}

	// Documents and fragments share URLs, so caches must key on the header.
	w.Header().Add("Vary", fragmentHeader)

	out, err := s.resolver.Resolve(r.Context(), req)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"path":       req.Path,
			"route":      out.Route,
			"request_id": RequestIDFromContext(r.Context()),
		}).Error("Failed to resolve request")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	switch out.Kind {
	case router.Redirect:
		w.Header().Set("Location", out.Location)
		w.WriteHeader(http.StatusFound)

	case router.Document, router.Fragment:
		var buf bytes.Buffer
		render := s.renderer.Document
		if out.Kind == router.Fragment {
			render = s.renderer.Fragment
		}
		if err := render(&buf, out.Page); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"route": out.Route,
				"page":  out.Page.PageName(),
			}).Error("Failed to render page")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write(buf.Bytes())
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
