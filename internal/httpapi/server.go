package httpapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/convkit/convertor/internal/cache"
	"github.com/convkit/convertor/internal/config"
	"github.com/convkit/convertor/internal/provider"
)

// Options controls HTTP API runtime behavior (timeouts, etc.).
type Options struct {
	// ConvertTimeout is the hard upper bound for a single conversion request
	// (fetch + parse + convert + render).
	ConvertTimeout time.Duration

	// FetchTimeout is the per-HTTP-request timeout used when fetching the
	// upstream subscription profile.
	FetchTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ConvertTimeout <= 0 {
		o.ConvertTimeout = 60 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	return o
}

// Server holds everything the handlers need: the shared secret, the external
// origin generated URLs point back at, the profile cache and the configured
// provider accounts.
type Server struct {
	secret   string
	external *url.URL
	cache    *cache.Cache
	opt      Options
	accounts map[string]config.Provider
	panels   map[string]*provider.Client
}

// NewServer wires a Server from the loaded configuration. Provider accounts
// that carry full panel credentials get an API client; accounts pinned via
// sub_url are served without one.
func NewServer(cfg *config.Config, c *cache.Cache, opt Options) (*Server, error) {
	external, err := cfg.ExternalURLParsed()
	if err != nil {
		return nil, err
	}

	s := &Server{
		secret:   cfg.Secret,
		external: external,
		cache:    c,
		opt:      opt.withDefaults(),
		accounts: cfg.Provider,
		panels:   make(map[string]*provider.Client),
	}
	for name, p := range cfg.Provider {
		if p.APIBaseURL == "" {
			continue
		}
		client, err := provider.New(p)
		if err != nil {
			return nil, err
		}
		s.panels[name] = client
	}
	return s, nil
}

// NewMux registers all routes on a fresh ServeMux.
func NewMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /metrics", handleMetrics)
	mux.HandleFunc("GET /profile/{client}/{provider}", s.handleProfile)
	mux.HandleFunc("GET /raw-profile/{client}/{provider}", s.handleRawProfile)
	mux.HandleFunc("GET /rule-provider/{client}/{provider}", s.handleRuleProvider)
	mux.HandleFunc("GET /sub-logs", s.handleSubLogs)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}
