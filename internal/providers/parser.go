package providers

import "strings"

// ProviderRef is one entry of a provider chain such as "openai:work|mock".
// Option is the text after the colon: a key alias for hosted providers and
// a model name for ollama.
type ProviderRef struct {
	Raw    string
	Name   string
	Option string
}

// ParseProviderList splits a "|" separated chain in preference order.
// Repeated entries keep their first position. An empty chain yields mock.
func ParseProviderList(raw string) []ProviderRef {
	var out []ProviderRef
	seen := map[string]bool{}
	for _, p := range strings.Split(raw, "|") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, opt, _ := strings.Cut(p, ":")
		ref := ProviderRef{
			Raw:    p,
			Name:   strings.ToLower(strings.TrimSpace(name)),
			Option: strings.TrimSpace(opt),
		}
		key := ref.Name + ":" + ref.Option
		if ref.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
