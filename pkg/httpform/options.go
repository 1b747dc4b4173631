package httpform

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
)

// Option customises a Handler.
type Option func(*Handler)

// WithCookieName sets the session cookie name. Defaults to "formflow_session".
func WithCookieName(name string) Option {
	return func(h *Handler) {
		if name != "" {
			h.cookieName = name
		}
	}
}

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) {
		h.secureCookie = secure
	}
}

// WithMaxBodySize caps the request body. A body that exceeds it turns the
// file being read into an UploadIniSize error.
func WithMaxBodySize(n int64) Option {
	return func(h *Handler) {
		h.maxBodySize = n
	}
}

// WithMaxFieldSize caps a single non-file value.
func WithMaxFieldSize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxFieldSize = n
		}
	}
}

// WithTempDir sets where posted files are spooled. Defaults to os.TempDir.
func WithTempDir(dir string) Option {
	return func(h *Handler) {
		h.tempDir = dir
	}
}

// WithLocales lists the locales the translator supports. The first one is
// the fallback for Accept-Language negotiation.
func WithLocales(tags ...language.Tag) Option {
	return func(h *Handler) {
		if len(tags) > 0 {
			h.locales = append([]language.Tag(nil), tags...)
		}
	}
}

// WithSubmitter resolves the authenticated member of a request.
func WithSubmitter(fn func(*http.Request) model.Submitter) Option {
	return func(h *Handler) {
		h.submitter = fn
	}
}

// WithRequestToken resolves the CSRF token echoed as REQUEST_TOKEN.
func WithRequestToken(fn func(*http.Request) string) Option {
	return func(h *Handler) {
		h.requestToken = fn
	}
}

// WithPageTitle resolves the title of the page hosting the form.
func WithPageTitle(fn func(*http.Request) string) Option {
	return func(h *Handler) {
		h.pageTitle = fn
	}
}

// WithPage wraps non-AJAX responses in the page template of renderer.
func WithPage(renderer *render.FormRenderer, theme map[string]string) Option {
	return func(h *Handler) {
		h.page = renderer
		h.pageTheme = theme
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}
