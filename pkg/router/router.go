// Package router assembles the request pipeline of the site and the routing table behind it.
package router

import (
	"context"
	"io/fs"
	"net/http"
	"strings"
	"sync"

	"github.com/Suhaibinator/SPipeline/pkg/common"
	"github.com/Suhaibinator/SPipeline/pkg/middleware"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Router is the main router struct that implements http.Handler.
// Every request, matched or not, passes through the global pipeline before it reaches the
// routing table.
type Router struct {
	config     RouterConfig
	router     *httprouter.Router
	logger     *zap.Logger
	authorizer middleware.Authorizer
	handler    http.Handler
	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

// contextKey is a type for context keys.
type contextKey string

const (
	// ParamsKey is the key used to store httprouter.Params in the request context.
	ParamsKey contextKey = "params"
)

// NewRouter creates a new Router with the given configuration and assembles its pipeline.
func NewRouter(config RouterConfig) *Router {
	hr := httprouter.New()

	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	authorizer := config.Authorizer
	if authorizer == nil {
		authorizer = &middleware.BearerTokenAuthorizer{}
	}

	if config.NotFoundHandler != nil {
		hr.NotFound = config.NotFoundHandler
	} else {
		hr.NotFound = http.NotFoundHandler()
	}

	r := &Router{
		config:     config,
		router:     hr,
		logger:     logger,
		authorizer: authorizer,
	}
	r.handler = r.pipeline().Then(http.HandlerFunc(r.serveRoute))

	return r
}

// pipeline returns the global stages in execution order. The first stage sees the request
// first and the response last.
func (r *Router) pipeline() common.MiddlewareChain {
	c := r.config

	ipConfig := c.IPConfig
	if ipConfig == nil {
		ipConfig = middleware.DefaultIPConfig()
	}

	var timingOpts []middleware.ProcessingTimeOption
	if c.Clock != nil {
		timingOpts = append(timingOpts, middleware.WithClock(c.Clock))
	}

	chain := common.NewMiddlewareChain(middleware.Recovery(r.logger, c.ErrorHandler, c.Development))
	chain = chain.AppendIf(!c.Development, middleware.HSTS(c.Security.HSTSMaxAge, c.Security.HSTSIncludeSubdomains))
	chain = chain.Append(
		middleware.SecurityHeaders(middleware.DefaultSecurityHeaders()),
		middleware.RequestID(),
		middleware.ClientIPMiddleware(ipConfig),
	)
	chain = chain.AppendIf(c.Features.EnableLogging, middleware.Logging(r.logger))
	chain = chain.Append(middleware.ProcessingTime(r.logger, timingOpts...))
	if c.EnableTracing {
		chain = chain.Append(middleware.Tracing(c.ServiceName))
	}
	if c.Metrics != nil {
		chain = chain.Append(c.Metrics.Middleware())
	}
	if c.Limiter != nil {
		chain = chain.Append(middleware.Throttle(c.Limiter))
	}
	chain = chain.AppendIf(c.Security.HTTPSRedirect, middleware.HTTPSRedirect(c.Security.HTTPSPort))

	return chain.Append(c.Middlewares...)
}

// RegisterRoute registers a route with the router. Route middlewares run inside the global
// pipeline; protected routes check authorization before any of them.
func (r *Router) RegisterRoute(route RouteConfig) {
	chain := common.NewMiddlewareChain(route.Middlewares...)
	if route.Protected {
		chain = chain.Prepend(middleware.Authorization(r.authorizer, r.logger))
	}
	handler := chain.Then(route.Handler)

	methods := route.Methods
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}
	for _, method := range methods {
		r.router.Handle(method, route.Path, r.convertToHTTPRouterHandle(handler))
	}

	r.logger.Debug("Route registered",
		zap.String("path", route.Path),
		zap.Strings("methods", methods),
		zap.Bool("protected", route.Protected),
	)
}

// ServeStatic serves the files of fsys under prefix, e.g. ServeStatic("/static", fsys) maps
// /static/css/site.css to css/site.css.
func (r *Router) ServeStatic(prefix string, fsys fs.FS) {
	prefix = "/" + strings.Trim(prefix, "/")
	fileServer := http.StripPrefix(prefix, http.FileServer(http.FS(fsys)))
	handle := r.convertToHTTPRouterHandle(fileServer)

	r.router.Handle(http.MethodGet, prefix+"/*filepath", handle)
	r.router.Handle(http.MethodHead, prefix+"/*filepath", handle)
}

// convertToHTTPRouterHandle converts an http.Handler to an httprouter.Handle.
// It stores the route parameters in the request context so they can be accessed by handlers.
func (r *Router) convertToHTTPRouterHandle(handler http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(req.Context(), ParamsKey, ps)
		handler.ServeHTTP(w, req.WithContext(ctx))
	}
}

// serveRoute is the end of the global pipeline. It tracks in-flight requests for Shutdown
// and hands the request to the routing table.
func (r *Router) serveRoute(w http.ResponseWriter, req *http.Request) {
	// Add to the wait group before checking the shutdown status
	r.wg.Add(1)
	defer r.wg.Done()

	r.shutdownMu.RLock()
	isShutdown := r.shutdown
	r.shutdownMu.RUnlock()

	if isShutdown {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	r.router.ServeHTTP(w, req)
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// Shutdown gracefully shuts down the router.
// It stops accepting new requests and waits for existing requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (r *Router) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetParams retrieves the httprouter.Params from the request context.
func GetParams(r *http.Request) httprouter.Params {
	params, _ := r.Context().Value(ParamsKey).(httprouter.Params)
	return params
}

// GetParam retrieves a specific parameter from the request context.
func GetParam(r *http.Request, name string) string {
	return GetParams(r).ByName(name)
}
