package pages

import (
	"net/http"

	"github.com/Suhaibinator/SPipeline/pkg/config"
	"github.com/Suhaibinator/SPipeline/pkg/middleware"
	"go.uber.org/zap"
)

// DebugMessage is shown on pages when the ShowDebugInfo feature is on.
const DebugMessage = "Debug mode is enabled!"

// DefaultUserName is greeted on the index page when none is configured.
const DefaultUserName = "Go Developer"

// IndexPage is the home page.
type IndexPage struct {
	Features config.Features
	Renderer Renderer
	Logger   *zap.Logger
	UserName string
}

// NewIndexPage creates the home page. features is copied, so later changes by the caller do
// not reach the page.
func NewIndexPage(features config.Features, renderer Renderer, logger *zap.Logger) *IndexPage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexPage{
		Features: features,
		Renderer: renderer,
		Logger:   logger,
		UserName: DefaultUserName,
	}
}

// OnGet builds the view data for a GET request. DebugMessage is present only when
// ShowDebugInfo is on.
func (p *IndexPage) OnGet(r *http.Request) ViewData {
	data := ViewData{
		"Title":    "Home page",
		"UserName": p.UserName,
		"Features": p.Features,
	}
	if p.Features.ShowDebugInfo {
		data["DebugMessage"] = DebugMessage
	}
	return data
}

func (p *IndexPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writePage(w, r, p.Renderer, p.Logger, "index", http.StatusOK, p.OnGet(r))
}

// StaticPage renders a template that needs nothing but a title, such as the privacy page.
type StaticPage struct {
	Name     string
	Title    string
	Renderer Renderer
	Logger   *zap.Logger
}

func (p *StaticPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	writePage(w, r, p.Renderer, logger, p.Name, http.StatusOK, ViewData{"Title": p.Title})
}

// SecurePage shows the user the authorization stage let through. It must be registered
// behind middleware.Authorization.
type SecurePage struct {
	Renderer Renderer
	Logger   *zap.Logger
}

func (p *SecurePage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	user, ok := middleware.GetUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writePage(w, r, p.Renderer, logger, "secure", http.StatusOK, ViewData{"Title": "Secure", "User": user})
}

// ErrorPage is the generic error page the exception handler renders. It always responds
// with 500 and shows the request id so the failure can be found in the logs.
type ErrorPage struct {
	Renderer Renderer
	Logger   *zap.Logger
}

func (p *ErrorPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	data := ViewData{
		"Title":     "Error",
		"RequestID": middleware.GetRequestID(r),
	}
	writePage(w, r, p.Renderer, logger, "error", http.StatusInternalServerError, data)
}
