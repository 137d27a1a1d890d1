package model

import "fmt"

// Client is the target proxy client selecting the output dialect.
type Client string

const (
	ClientSurge Client = "surge"
	ClientClash Client = "clash"
)

func ParseClient(s string) (Client, error) {
	switch s {
	case "surge":
		return ClientSurge, nil
	case "clash":
		return ClientClash, nil
	default:
		return "", fmt.Errorf("不支持的客户端: %q", s)
	}
}

func (c Client) String() string { return string(c) }
