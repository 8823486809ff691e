package server

import (
	"net/http"
	"slices"
	"strings"
)

// BasicRouter is a small HTTP router implementing the [Router] interface.
//
// Paths are matched exactly by an [http.ServeMux]; each path keeps its own method table so one path can serve
// several methods. HEAD falls back to the GET handler.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	routes      map[string]*route
}

type route struct {
	methods map[string]http.Handler
}

func (rt *route) allowed() string {
	methods := make([]string, 0, len(rt.methods))
	for m := range rt.methods {
		methods = append(methods, m)
	}
	slices.Sort(methods)
	return strings.Join(methods, ", ")
}

func (rt *route) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	method := strings.ToUpper(req.Method)
	h, ok := rt.methods[method]
	if !ok && method == http.MethodHead {
		h, ok = rt.methods[http.MethodGet]
	}
	if !ok {
		w.Header().Set("Allow", rt.allowed())
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.ServeHTTP(w, req)
}

// NewBasicRouter creates an empty [BasicRouter].
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:    http.NewServeMux(),
		routes: map[string]*route{},
	}
}

// Use appends [Middleware] to the stack. Only routes registered after the call are wrapped.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method on path.
//
// Unknown methods on a known path get 405 with an Allow header; middleware still runs for them so they are logged.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	rt, ok := r.routes[path]
	if !ok {
		rt = &route{methods: map[string]http.Handler{}}
		r.routes[path] = rt
		r.mux.Handle(path, r.Apply(rt))
	}
	rt.methods[strings.ToUpper(method)] = handler
}

// Handler registers a [Handler] for every path it reports, without method filtering.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)

	for _, path := range handler.Routes() {
		r.mux.Handle(path, wrapped)
	}
}

// Routes lists registered method-filtered routes as "METHOD path", sorted by path.
func (r *BasicRouter) Routes() []string {
	paths := make([]string, 0, len(r.routes))
	for p := range r.routes {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	var out []string
	for _, p := range paths {
		for _, m := range strings.Split(r.routes[p].allowed(), ", ") {
			out = append(out, m+" "+p)
		}
	}
	return out
}

// ServeHTTP implements [http.Handler] for the entire router. Unregistered paths get a JSON 404.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if _, pattern := r.mux.Handler(req); pattern == "" {
		r.Apply(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			writeError(w, http.StatusNotFound, "no route for "+req.URL.Path)
		})).ServeHTTP(w, req)
		return
	}
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler with the middleware stack, first added outermost.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}
