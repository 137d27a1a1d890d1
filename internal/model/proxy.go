package model

// OptBool is a tri-state knob: dialect fields that are absent must stay
// absent on re-render, so plain bool does not work here.
type OptBool struct {
	Value bool
	Set   bool
}

func SomeBool(v bool) OptBool { return OptBool{Value: v, Set: true} }

// Proxy is one upstream node. Parsed once and never mutated except for the
// synthetic region comment attached during conversion.
type Proxy struct {
	Name           string
	Type           string
	Server         string
	Port           int
	Password       string
	Cipher         string
	SNI            string
	UDP            OptBool
	TFO            OptBool
	SkipCertVerify OptBool
	Comment        string
}
