package engine

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/tallgy/qiankun/internal/registry"
	"github.com/tallgy/qiankun/internal/sandbox"
	"github.com/tallgy/qiankun/internal/window"
)

// Config tunes the seeded host environment.
type Config struct {
	// FetchTimeout bounds the host fetch primitive.
	FetchTimeout time.Duration
	// LocationHref seeds the host location object.
	LocationHref string
	// UserAgent seeds the host navigator object.
	UserAgent string
}

// DefaultConfig returns host environment defaults.
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 10 * time.Second,
		LocationHref: "http://localhost/",
		UserAgent:    "sandboxd/1.0 (goja)",
	}
}

// NewBrowserRealm builds a host page: a global object seeded with the
// browser-shaped natives micro-apps expect (console, fetch, location,
// navigator, document, inert timers), a realm over it, and an engine
// ready to execute scripts. Extra realm options append after the seeded
// ones.
func NewBrowserRealm(cfg Config, log *zap.Logger, opts ...sandbox.Option) (*sandbox.Realm, *Engine) {
	if log == nil {
		log = zap.NewNop()
	}

	tasks := registry.NewTaskQueue()
	reg := registry.New(tasks)

	global := window.New("window")
	seedConstants(global)
	seedSelfRefs(global)
	seedConsole(global, log, reg)
	seedTimers(global)
	seedNavigator(global, cfg.UserAgent)
	seedLocation(global, cfg.LocationHref)
	seedFetch(global, cfg.FetchTimeout)

	doc := newHostDocument(reg)
	global.Define("document", &window.Descriptor{Value: doc})

	realmOpts := append([]sandbox.Option{
		sandbox.WithLogger(log),
		sandbox.WithRegistry(reg, tasks),
		sandbox.WithDocument(doc),
	}, opts...)
	realm := sandbox.NewRealm(global, realmOpts...)

	return realm, New(realm, log)
}

func seedConstants(global *window.Object) {
	// Mirrors the host page's own non-configurable value properties.
	global.Define("undefined", &window.Descriptor{})
	global.Define("NaN", &window.Descriptor{Value: nan()})
	global.Define("Infinity", &window.Descriptor{Value: inf()})
}

func nan() float64 { var zero float64; return zero / zero }
func inf() float64 { var zero float64; return 1 / zero }

// seedSelfRefs installs the identity-sensitive self-references as
// non-configurable, the way a real host global carries them. Sandboxes
// normalize these while seeding their virtual objects.
func seedSelfRefs(global *window.Object) {
	for _, key := range []string{"window", "self", "globalThis", "top", "parent"} {
		global.Define(key, &window.Descriptor{Value: global})
	}
}

func seedConsole(global *window.Object, log *zap.Logger, reg *registry.Registry) {
	console := window.New("console")
	for level, sink := range map[string]func(string, ...zap.Field){
		"log":   log.Info,
		"info":  log.Info,
		"warn":  log.Warn,
		"error": log.Error,
	} {
		emit := sink
		console.Set(level, window.NewNative(level, nil, func(_ any, args ...any) (any, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = fmt.Sprint(a)
			}
			fields := []zap.Field{zap.String("source", "console")}
			if app, ok := reg.Current(); ok {
				fields = append(fields, zap.String("app", app))
			}
			emit(strings.Join(parts, " "), fields...)
			return nil, nil
		}))
	}
	global.Set("console", console)
}

// seedTimers installs inert timer stubs. Scoped timer patching is a
// collaborator concern layered over the sandbox, not part of it.
func seedTimers(global *window.Object) {
	for _, name := range []string{"setTimeout", "setInterval"} {
		global.Set(name, window.NewNative(name, nil, func(any, ...any) (any, error) {
			return int64(0), nil
		}))
	}
	for _, name := range []string{"clearTimeout", "clearInterval"} {
		global.Set(name, window.NewNative(name, nil, func(any, ...any) (any, error) {
			return nil, nil
		}))
	}
}

func seedNavigator(global *window.Object, userAgent string) {
	nav := window.New("navigator")
	nav.Set("userAgent", userAgent)
	nav.Set("language", "en-US")
	nav.Set("onLine", true)
	global.Set("navigator", nav)
}

func seedLocation(global *window.Object, href string) {
	loc := window.New("location")
	loc.Set("href", href)
	if u, err := url.Parse(href); err == nil {
		loc.Set("protocol", u.Scheme+":")
		loc.Set("host", u.Host)
		loc.Set("hostname", u.Hostname())
		loc.Set("pathname", u.Path)
		loc.Set("origin", u.Scheme+"://"+u.Host)
	}
	global.Set("location", loc)
}

// seedFetch installs the network primitive as a receiver-sensitive
// native owned by the host global: invoked on anything else it fails
// with an illegal-invocation error, which is exactly why the membranes
// route it through the binding layer bound to the true native global.
func seedFetch(global *window.Object, timeout time.Duration) {
	client := resty.New().SetTimeout(timeout)
	global.Set("fetch", window.NewNative("fetch", global, func(_ any, args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("fetch: missing resource")
		}
		target := fmt.Sprint(args[0])

		method := http.MethodGet
		req := client.R()
		if len(args) > 1 {
			if opts, ok := exportMap(args[1]); ok {
				if m, ok := opts["method"].(string); ok && m != "" {
					method = strings.ToUpper(m)
				}
				if body, ok := opts["body"]; ok {
					req.SetBody(body)
				}
				if headers, ok := opts["headers"].(map[string]any); ok {
					for k, v := range headers {
						req.SetHeader(k, fmt.Sprint(v))
					}
				}
			}
		}

		resp, err := req.Execute(method, target)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", target, err)
		}
		return newResponse(target, resp), nil
	}))
}

func newResponse(target string, resp *resty.Response) *window.Object {
	body := resp.String()
	out := window.New("Response")
	out.Set("url", target)
	out.Set("status", int64(resp.StatusCode()))
	out.Set("statusText", http.StatusText(resp.StatusCode()))
	out.Set("ok", resp.StatusCode() >= 200 && resp.StatusCode() < 300)
	out.Set("text", window.NewFunc("text", func(any, ...any) (any, error) {
		return body, nil
	}))
	out.Set("json", window.NewFunc("json", func(any, ...any) (any, error) {
		var parsed any
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			return nil, fmt.Errorf("response json: %w", err)
		}
		return parsed, nil
	}))
	return out
}

// exportMap coerces a script-provided options bag into a plain map.
func exportMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case interface{ Export() any }:
		if m, ok := t.Export().(map[string]any); ok {
			return m, true
		}
	}
	return nil, false
}

// newHostDocument builds the minimal host document: enough surface for
// the attribution contract. Element creation consults the running-app
// registry and stamps the owning micro-app on the node, which is what
// the DOM-scoping collaborators key off.
func newHostDocument(reg *registry.Registry) *window.Object {
	doc := window.New("document")
	doc.Set("title", "")
	doc.Set("createElement", window.NewNative("createElement", nil, func(_ any, args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("createElement: missing tag name")
		}
		tag := strings.ToUpper(fmt.Sprint(args[0]))
		attrs := make(map[string]string)
		if app, ok := reg.Current(); ok {
			attrs["data-qiankun"] = app
		}

		el := window.New("element:" + tag)
		el.Set("tagName", tag)
		el.Set("getAttribute", window.NewFunc("getAttribute", func(_ any, args ...any) (any, error) {
			if len(args) == 0 {
				return nil, nil
			}
			if v, ok := attrs[fmt.Sprint(args[0])]; ok {
				return v, nil
			}
			return nil, nil
		}))
		el.Set("setAttribute", window.NewFunc("setAttribute", func(_ any, args ...any) (any, error) {
			if len(args) >= 2 {
				attrs[fmt.Sprint(args[0])] = fmt.Sprint(args[1])
			}
			return nil, nil
		}))
		return el, nil
	}))
	return doc
}
