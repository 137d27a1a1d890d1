package profile

import (
	"errors"
	"fmt"

	"github.com/convkit/convertor/internal/model"
	"gopkg.in/yaml.v3"
)

// NamedRuleProvider keeps the rule-providers mapping entry together with its
// key, preserving document order.
type NamedRuleProvider struct {
	Name     string
	Provider model.RuleProvider
}

// ClashProfile is the in-memory form of a Clash configuration.
type ClashProfile struct {
	Port               int
	SocksPort          int
	RedirPort          int
	AllowLAN           bool
	Mode               string
	LogLevel           string
	ExternalController string
	ExternalUI         string
	Secret             string

	Proxies       []model.Proxy
	ProxyGroups   []model.ProxyGroup
	Rules         []model.Rule
	RuleProviders []NamedRuleProvider

	PolicyRules map[model.Policy][]model.ProviderRule
	PolicyOrder []model.Policy
}

// Client reports the dialect this profile serializes to.
func (p *ClashProfile) Client() model.Client { return model.ClientClash }

type clashDoc struct {
	Port               int           `yaml:"port"`
	SocksPort          int           `yaml:"socks-port"`
	RedirPort          int           `yaml:"redir-port"`
	AllowLAN           bool          `yaml:"allow-lan"`
	Mode               string        `yaml:"mode"`
	LogLevel           string        `yaml:"log-level"`
	ExternalController string        `yaml:"external-controller"`
	ExternalUI         string        `yaml:"external-ui"`
	Secret             string        `yaml:"secret"`
	Proxies            []clashProxy  `yaml:"proxies"`
	ProxyGroups        []clashGroup  `yaml:"proxy-groups"`
	Rules              []clashRule   `yaml:"rules"`
	RuleProviders      ruleProviders `yaml:"rule-providers"`
}

type clashProxy struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	Server         string `yaml:"server"`
	Port           int    `yaml:"port"`
	Password       string `yaml:"password"`
	Cipher         string `yaml:"cipher"`
	SNI            string `yaml:"sni"`
	UDP            *bool  `yaml:"udp"`
	TFO            *bool  `yaml:"tfo"`
	SkipCertVerify *bool  `yaml:"skip-cert-verify"`
}

func (c clashProxy) toModel() model.Proxy {
	p := model.Proxy{
		Name:     c.Name,
		Type:     c.Type,
		Server:   c.Server,
		Port:     c.Port,
		Password: c.Password,
		Cipher:   c.Cipher,
		SNI:      c.SNI,
	}
	if c.UDP != nil {
		p.UDP = model.SomeBool(*c.UDP)
	}
	if c.TFO != nil {
		p.TFO = model.SomeBool(*c.TFO)
	}
	if c.SkipCertVerify != nil {
		p.SkipCertVerify = model.SomeBool(*c.SkipCertVerify)
	}
	return p
}

type clashGroup struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Proxies []string `yaml:"proxies"`
}

// clashRule decodes the scalar form "TYPE,value,policy".
type clashRule struct {
	rule model.Rule
}

func (r *clashRule) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	rule, err := model.ParseRuleLine(s)
	if err != nil {
		return err
	}
	r.rule = rule
	return nil
}

// ruleProviders decodes the rule-providers mapping while keeping key order.
type ruleProviders []NamedRuleProvider

func (r *ruleProviders) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("rule-providers 应当是映射")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var entry NamedRuleProvider
		if err := node.Content[i].Decode(&entry.Name); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&entry.Provider); err != nil {
			return err
		}
		*r = append(*r, entry)
	}
	return nil
}

// ParseClash parses a full Clash YAML document.
func ParseClash(content string) (*ClashProfile, error) {
	var doc clashDoc
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, wrapYAMLError(err)
	}

	p := &ClashProfile{
		Port:               doc.Port,
		SocksPort:          doc.SocksPort,
		RedirPort:          doc.RedirPort,
		AllowLAN:           doc.AllowLAN,
		Mode:               doc.Mode,
		LogLevel:           doc.LogLevel,
		ExternalController: doc.ExternalController,
		ExternalUI:         doc.ExternalUI,
		Secret:             doc.Secret,
		RuleProviders:      doc.RuleProviders,
	}
	for _, cp := range doc.Proxies {
		p.Proxies = append(p.Proxies, cp.toModel())
	}
	for _, cg := range doc.ProxyGroups {
		gt, err := model.ParseGroupType(cg.Type)
		if err != nil {
			return nil, &model.ParseError{Kind: model.KindProxyGroup, Reason: fmt.Sprintf("Proxy Group type 非法: %s", cg.Name), Cause: err}
		}
		p.ProxyGroups = append(p.ProxyGroups, model.ProxyGroup{Name: cg.Name, Type: gt, Proxies: cg.Proxies})
	}
	for _, cr := range doc.Rules {
		p.Rules = append(p.Rules, cr.rule)
	}
	return p, nil
}

// ParseClashRules parses a standalone rule list. It accepts a bare sequence,
// a mapping with a `rules` key, or a provider payload under `payload`.
func ParseClashRules(content string) ([]model.Rule, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(content), &root); err != nil {
		return nil, wrapYAMLError(err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	node := root.Content[0]

	switch node.Kind {
	case yaml.SequenceNode:
		return decodeRuleSequence(node)
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if key == "rules" || key == "payload" {
				return decodeRuleSequence(node.Content[i+1])
			}
		}
		return nil, &model.ParseError{Kind: model.KindRule, Reason: "没有找到 rules 或 payload"}
	default:
		return nil, &model.ParseError{Kind: model.KindRule, Reason: "规则应当是序列或以 rules:/payload: 开头的映射"}
	}
}

func decodeRuleSequence(node *yaml.Node) ([]model.Rule, error) {
	var wrapped []clashRule
	if err := node.Decode(&wrapped); err != nil {
		return nil, wrapYAMLError(err)
	}
	rules := make([]model.Rule, 0, len(wrapped))
	for _, w := range wrapped {
		rules = append(rules, w.rule)
	}
	return rules, nil
}

func wrapYAMLError(err error) error {
	var pe *model.ParseError
	if errors.As(err, &pe) {
		return pe
	}
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		// yaml.TypeError 的信息已经带行号
		return &model.ParseError{Kind: model.KindDocument, Reason: te.Errors[0], Cause: err}
	}
	return &model.ParseError{Kind: model.KindDocument, Reason: "YAML 解析失败", Cause: err}
}
