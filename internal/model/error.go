package model

import "fmt"

// ParseErrorKind classifies structural failures in untrusted input.
type ParseErrorKind string

const (
	KindRule           ParseErrorKind = "rule"
	KindRuleType       ParseErrorKind = "rule_type"
	KindProxy          ParseErrorKind = "proxy"
	KindProxyGroup     ParseErrorKind = "proxy_group"
	KindSectionMissing ParseErrorKind = "section_missing"
	KindDocument       ParseErrorKind = "document"
)

// ParseError reports a malformed input document. Line is 1-based; 0 means
// "not attributable to a single line".
type ParseError struct {
	Kind   ParseErrorKind
	Line   int
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s 解析失败", e.Kind)
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (第 %d 行)", msg, e.Line)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Cause }

// RenderError reports a formatting failure on an internally-constructed
// model. It should not occur for models produced by the converter and is
// treated as a programming-error signal when it surfaces.
type RenderError struct {
	Reason string
	Cause  error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return "渲染失败: " + e.Reason
	}
	return fmt.Sprintf("渲染失败: %s: %v", e.Reason, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }
