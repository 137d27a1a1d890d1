package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/convkit/convertor/internal/cache"
	"github.com/convkit/convertor/internal/convert"
	"github.com/convkit/convertor/internal/encrypt"
	"github.com/convkit/convertor/internal/fetch"
	"github.com/convkit/convertor/internal/model"
	"github.com/convkit/convertor/internal/profile"
	"github.com/convkit/convertor/internal/provider"
	"github.com/convkit/convertor/internal/render"
	"github.com/convkit/convertor/internal/urlbuilder"
)

// handleProfile fetches the upstream subscription profile, rewrites it for
// the requested client and hands back the converted text. The converted body
// is cached as a whole, so repeated polls skip the parse and render too.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opt.ConvertTimeout)
	defer cancel()

	client, providerName, _, b, err := s.requestBuilder(r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	key := cache.Key("profile", providerName, string(client), b.RawURL().String(),
		strconv.Itoa(b.Interval), strconv.FormatBool(b.Strict))
	body, err := s.cache.GetOrFill(ctx, key, func(ctx context.Context) (string, error) {
		raw, err := s.fetchRawProfile(ctx, b, providerName)
		if err != nil {
			return "", err
		}
		return convertProfile(raw, client, b)
	})
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteText(w, http.StatusOK, body)
}

// handleRawProfile passes the upstream profile through untouched.
func (s *Server) handleRawProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opt.ConvertTimeout)
	defer cancel()

	_, providerName, _, b, err := s.requestBuilder(r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	raw, err := s.fetchRawProfile(ctx, b, providerName)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteText(w, http.StatusOK, raw)
}

// handleRuleProvider serves the rule set for one policy, extracted from the
// upstream profile on every refresh so the rules stay in step with it.
func (s *Server) handleRuleProvider(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opt.ConvertTimeout)
	defer cancel()

	client, providerName, q, b, err := s.requestBuilder(r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if q.Policy == nil {
		writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "缺少 policy 查询参数"))
		return
	}

	raw, err := s.fetchRawProfile(ctx, b, providerName)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	rules, err := parseRules(raw, client)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	subHost, err := b.SubHost()
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	_, grouped, err := profile.GroupRulesByPolicy(rules, subHost)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	providerRules, ok := grouped[*q.Policy]
	if !ok {
		writeErrorFromErr(w, &APIError{
			Status:  http.StatusNotFound,
			Code:    "POLICY_NOT_FOUND",
			Message: "配置中没有该策略对应的规则: " + q.Policy.String(),
		})
		return
	}

	switch client {
	case model.ClientSurge:
		WriteText(w, http.StatusOK, render.SurgeProviderRules(providerRules))
	default:
		WriteText(w, http.StatusOK, render.ClashProviderRules(providerRules))
	}
}

// handleSubLogs proxies the provider's subscription access log. The caller
// must present the encrypted service secret.
func (s *Server) handleSubLogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opt.ConvertTimeout)
	defer cancel()

	enc := r.URL.Query().Get("secret")
	if enc == "" {
		writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "缺少 secret 查询参数"))
		return
	}
	codec := encrypt.New([]byte(s.secret))
	plain, err := codec.Decrypt(enc)
	if err != nil || plain != s.secret {
		writeErrorFromErr(w, &APIError{
			Status:  http.StatusForbidden,
			Code:    "FORBIDDEN",
			Message: "secret 校验失败",
			Cause:   err,
		})
		return
	}

	panel, err := s.panel(r.URL.Query().Get("provider"))
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	logs, err := panel.SubLogs(ctx)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, logs)
}

// requestBuilder decodes the path and query into a URL builder shared by the
// profile endpoints.
func (s *Server) requestBuilder(r *http.Request) (model.Client, string, *urlbuilder.Query, *urlbuilder.Builder, error) {
	client, err := model.ParseClient(r.PathValue("client"))
	if err != nil {
		return "", "", nil, nil, requestError("INVALID_ARGUMENT", err.Error())
	}
	providerName := r.PathValue("provider")
	if providerName == "" {
		return "", "", nil, nil, requestError("INVALID_ARGUMENT", "缺少 provider 路径参数")
	}

	q, err := urlbuilder.ParseQuery(r.URL.Query(), s.secret)
	if err != nil {
		return "", "", nil, nil, err
	}
	b, err := urlbuilder.FromQuery(q, s.secret, client, providerName, s.external)
	if err != nil {
		return "", "", nil, nil, err
	}
	return client, providerName, q, b, nil
}

// fetchRawProfile pulls the provider's profile through the cache, keyed by
// the flagged raw URL so each client dialect caches separately.
func (s *Server) fetchRawProfile(ctx context.Context, b *urlbuilder.Builder, providerName string) (string, error) {
	rawURL := b.RawURL().String()
	key := cache.Key("raw-profile", providerName, rawURL)

	opt := fetch.Options{Timeout: s.opt.FetchTimeout}
	if acc, ok := s.accounts[providerName]; ok {
		opt.UserAgent = acc.UserAgent
		opt.Headers = acc.Headers
	}
	return s.cache.GetOrFill(ctx, key, func(ctx context.Context) (string, error) {
		return fetch.TextWithOptions(ctx, rawURL, opt)
	})
}

func convertProfile(raw string, client model.Client, b *urlbuilder.Builder) (string, error) {
	switch client {
	case model.ClientSurge:
		p, err := profile.ParseSurge(raw)
		if err != nil {
			return "", err
		}
		if err := convert.Surge(p, b); err != nil {
			return "", err
		}
		return render.SurgeProfile(p)
	default:
		p, err := profile.ParseClash(raw)
		if err != nil {
			return "", err
		}
		if err := convert.Clash(p, b); err != nil {
			return "", err
		}
		return render.ClashProfile(p)
	}
}

func parseRules(raw string, client model.Client) ([]model.Rule, error) {
	switch client {
	case model.ClientSurge:
		p, err := profile.ParseSurge(raw)
		if err != nil {
			return nil, err
		}
		return p.Rules, nil
	default:
		p, err := profile.ParseClash(raw)
		if err != nil {
			return nil, err
		}
		return p.Rules, nil
	}
}

// panel picks the provider panel client for name, falling back to the single
// configured one when the name is empty.
func (s *Server) panel(name string) (*provider.Client, error) {
	if name != "" {
		p, ok := s.panels[name]
		if !ok {
			return nil, &APIError{
				Status:  http.StatusNotFound,
				Code:    "PROVIDER_NOT_FOUND",
				Message: "未配置该服务商的面板账号: " + name,
			}
		}
		return p, nil
	}
	if len(s.panels) == 1 {
		for _, p := range s.panels {
			return p, nil
		}
	}
	return nil, requestError("INVALID_ARGUMENT", "需要 provider 查询参数")
}
