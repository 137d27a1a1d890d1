package model

import "fmt"

// RuleProvider is the Clash rule-providers entry pointing at a generated
// rule-set document.
type RuleProvider struct {
	Type      string `yaml:"type"`
	URL       string `yaml:"url"`
	Path      string `yaml:"path"`
	Interval  int    `yaml:"interval"`
	SizeLimit int    `yaml:"size-limit"`
	Format    string `yaml:"format"`
	Behavior  string `yaml:"behavior"`
}

func NewRuleProvider(url, fileName string, interval int) RuleProvider {
	return RuleProvider{
		Type:     "http",
		URL:      url,
		Path:     fmt.Sprintf("./rule_providers/%s.yaml", fileName),
		Interval: interval,
		Format:   "yaml",
		Behavior: "classical",
	}
}
