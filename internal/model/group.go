package model

// GroupType is the proxy-group selection strategy.
type GroupType string

const (
	GroupSelect  GroupType = "select"
	GroupURLTest GroupType = "url-test"
	GroupSmart   GroupType = "smart"
)

func ParseGroupType(s string) (GroupType, error) {
	switch s {
	case "select":
		return GroupSelect, nil
	case "url-test", "test-url":
		return GroupURLTest, nil
	case "smart":
		return GroupSmart, nil
	default:
		return "", &ParseError{Kind: KindProxyGroup, Reason: "无法识别的策略组类型: " + s}
	}
}

// ProxyGroup is a named collection of proxy names; conversion passes groups
// through largely unchanged.
type ProxyGroup struct {
	Name    string
	Type    GroupType
	Proxies []string
	Comment string
}
