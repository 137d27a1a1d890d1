package profile

import (
	"strings"

	"github.com/convkit/convertor/internal/model"
)

// Region is one entry of the fixed lexicon used to group proxies by the
// geography embedded in their names.
type Region struct {
	Code    string
	Icon    string
	CN      string
	aliases []string
}

// PolicyName is the display name used when a region becomes a proxy group.
func (r *Region) PolicyName() string {
	return r.Icon + " " + r.CN
}

// regions is ordered: within one proxy-name token the first matching entry
// wins, so more specific aliases must come before generic ones.
var regions = []Region{
	{Code: "HK", Icon: "🇭🇰", CN: "香港", aliases: []string{"hk", "hong kong", "hongkong", "香港", "港"}},
	{Code: "TW", Icon: "🇹🇼", CN: "台湾", aliases: []string{"tw", "taiwan", "台湾", "台"}},
	{Code: "JP", Icon: "🇯🇵", CN: "日本", aliases: []string{"jp", "japan", "日本", "东京", "大阪"}},
	{Code: "SG", Icon: "🇸🇬", CN: "新加坡", aliases: []string{"sg", "singapore", "新加坡", "狮城"}},
	{Code: "KR", Icon: "🇰🇷", CN: "韩国", aliases: []string{"kr", "korea", "韩国", "首尔"}},
	{Code: "US", Icon: "🇺🇸", CN: "美国", aliases: []string{"us", "united states", "america", "美国", "洛杉矶", "硅谷"}},
	{Code: "UK", Icon: "🇬🇧", CN: "英国", aliases: []string{"uk", "united kingdom", "britain", "英国", "伦敦"}},
	{Code: "DE", Icon: "🇩🇪", CN: "德国", aliases: []string{"de", "germany", "德国", "法兰克福"}},
	{Code: "FR", Icon: "🇫🇷", CN: "法国", aliases: []string{"fr", "france", "法国", "巴黎"}},
	{Code: "AU", Icon: "🇦🇺", CN: "澳洲", aliases: []string{"au", "australia", "澳洲", "澳大利亚", "悉尼"}},
	{Code: "RU", Icon: "🇷🇺", CN: "俄罗斯", aliases: []string{"ru", "russia", "俄罗斯", "莫斯科"}},
	{Code: "MY", Icon: "🇲🇾", CN: "马来西亚", aliases: []string{"my", "malaysia", "马来西亚"}},
	{Code: "TH", Icon: "🇹🇭", CN: "泰国", aliases: []string{"th", "thailand", "泰国"}},
	{Code: "VN", Icon: "🇻🇳", CN: "越南", aliases: []string{"vn", "vietnam", "越南"}},
	{Code: "IN", Icon: "🇮🇳", CN: "印度", aliases: []string{"in", "india", "印度"}},
	{Code: "CA", Icon: "🇨🇦", CN: "加拿大", aliases: []string{"ca", "canada", "加拿大"}},
	{Code: "TR", Icon: "🇹🇷", CN: "土耳其", aliases: []string{"tr", "turkey", "土耳其"}},
	{Code: "BR", Icon: "🇧🇷", CN: "巴西", aliases: []string{"br", "brazil", "巴西"}},
	{Code: "AR", Icon: "🇦🇷", CN: "阿根廷", aliases: []string{"ar", "argentina", "阿根廷"}},
}

// DetectRegion matches one proxy-name token against the lexicon. Tokens that
// are pure ASCII of length <= 3 must match an alias exactly, otherwise the
// alias may appear anywhere in the token.
func DetectRegion(token string) *Region {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return nil
	}
	for i := range regions {
		for _, alias := range regions[i].aliases {
			if len(alias) <= 3 && isASCII(alias) {
				if token == alias {
					return &regions[i]
				}
				continue
			}
			if strings.Contains(token, alias) {
				return &regions[i]
			}
		}
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// RegionOf derives a proxy's region from its name: split on spaces, drop
// purely-numeric tokens, first lexicon match wins. A nil result means the
// proxy belongs to the "other" bucket.
func RegionOf(p *model.Proxy) *Region {
	for _, token := range strings.Fields(p.Name) {
		if isNumeric(token) {
			continue
		}
		if r := DetectRegion(token); r != nil {
			return r
		}
	}
	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// RegionGroup pairs a region with the proxies detected in it, preserving the
// order in which regions first appear in the proxy list.
type RegionGroup struct {
	Region  *Region
	Proxies []*model.Proxy
}

// GroupByRegion splits proxies into per-region groups plus the unmatched
// remainder. Proxy order inside each bucket follows the source document.
func GroupByRegion(proxies []model.Proxy) ([]RegionGroup, []*model.Proxy) {
	var groups []RegionGroup
	index := make(map[string]int)
	var others []*model.Proxy

	for i := range proxies {
		p := &proxies[i]
		r := RegionOf(p)
		if r == nil {
			others = append(others, p)
			continue
		}
		at, ok := index[r.Code]
		if !ok {
			at = len(groups)
			index[r.Code] = at
			groups = append(groups, RegionGroup{Region: r})
		}
		groups[at].Proxies = append(groups[at].Proxies, p)
	}
	return groups, others
}
