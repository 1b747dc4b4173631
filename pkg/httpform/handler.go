// Package httpform serves forms over HTTP through a chi router.
package httpform

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/goliatone/go-formflow/pkg/form"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/schema"
)

const (
	defaultCookieName   = "formflow_session"
	defaultMaxFieldSize = 1 << 20
	sessionCookieMaxAge = 24 * time.Hour
)

// Engine runs one form request.
type Engine interface {
	HandleFormRequest(ctx context.Context, req form.Request) (*form.Response, error)
}

// Handler adapts HTTP requests to Engine.HandleFormRequest.
type Handler struct {
	engine       Engine
	cookieName   string
	secureCookie bool
	maxBodySize  int64
	maxFieldSize int64
	tempDir      string
	locales      []language.Tag
	matcher      language.Matcher
	submitter    func(*http.Request) model.Submitter
	requestToken func(*http.Request) string
	pageTitle    func(*http.Request) string
	page         *render.FormRenderer
	pageTheme    map[string]string
	logger       *zap.SugaredLogger
}

// New builds a Handler around engine.
func New(engine Engine, options ...Option) *Handler {
	h := &Handler{
		engine:       engine,
		cookieName:   defaultCookieName,
		maxFieldSize: defaultMaxFieldSize,
		locales:      []language.Tag{language.English, language.German},
		logger:       zap.S(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(h)
		}
	}
	h.matcher = language.NewMatcher(h.locales)
	return h
}

// Routes returns a router serving GET and POST on /{formID}.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{formID}", h.ServeForm)
	r.Post("/{formID}", h.ServeForm)
	return r
}

// Mount attaches the form routes under /forms.
func (h *Handler) Mount(r chi.Router) {
	r.Mount("/forms", h.Routes())
}

// ServeForm renders or processes the form named by the formID URL parameter.
func (h *Handler) ServeForm(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	if strings.TrimSpace(formID) == "" {
		http.NotFound(w, r)
		return
	}

	req := form.Request{
		FormID:    formID,
		Method:    r.Method,
		SessionID: h.session(w, r),
		Ajax:      r.Header.Get("X-Requested-With") == "XMLHttpRequest",
		Locale:    h.locale(r),
	}
	if h.pageTitle != nil {
		req.PageTitle = h.pageTitle(r)
	}
	if h.requestToken != nil {
		req.RequestToken = h.requestToken(r)
	}
	if h.submitter != nil {
		req.User = h.submitter(r)
	}

	if r.Method == http.MethodPost {
		parsed, ok := h.parse(w, r)
		if !ok {
			return
		}
		defer parsed.cleanup()
		req.Fields = parsed.fields
		req.Files = parsed.files
	}

	resp, err := h.engine.HandleFormRequest(r.Context(), req)
	if err != nil {
		h.fail(w, r, formID, err)
		return
	}
	h.write(w, r, req, resp)
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request) (*body, bool) {
	if h.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}
	if isMultipart(r) {
		parsed, err := h.readMultipart(r)
		if err != nil {
			h.logger.Warnw("multipart body rejected", "error", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return nil, false
		}
		return parsed, true
	}
	if err := r.ParseForm(); err != nil {
		if tooLarge(err) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, false
	}
	return &body{fields: r.PostForm}, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, formID string, err error) {
	var cfgErr *model.ConfigurationError
	switch {
	case errors.Is(err, schema.ErrFormNotFound):
		http.NotFound(w, r)
	case errors.As(err, &cfgErr):
		h.logger.Errorw("form misconfigured", "form", formID, "setting", cfgErr.Setting, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		h.logger.Errorw("form request failed", "form", formID, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, req form.Request, resp *form.Response) {
	if resp.Redirect != nil {
		target := resp.Redirect.URL
		if resp.Redirect.Reload || strings.TrimSpace(target) == "" {
			target = r.URL.RequestURI()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	markup := resp.Markup
	if h.page != nil && !req.Ajax {
		page, err := h.page.RenderPage(resp.PageTitle, markup, h.pageTheme)
		if err != nil {
			h.logger.Errorw("page render failed", "form", req.FormID, "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		markup = page
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(markup)); err != nil {
		h.logger.Debugw("write response failed", "form", req.FormID, "error", err)
	}
}

// session returns the visitor's session id, issuing a cookie when absent.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(h.cookieName); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (h *Handler) locale(r *http.Request) string {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		base, _ := h.locales[0].Base()
		return base.String()
	}
	_, index, _ := h.matcher.Match(tags...)
	base, _ := h.locales[index].Base()
	return base.String()
}
