package replay

import "strings"

// StyleSource is a host-supplied stylesheet handle. Accessible reports
// whether rule text can be read; cross-origin sheets usually cannot.
type StyleSource struct {
	Href       string
	Accessible bool
	Rules      []RawRule
}

// RawRule is one unprocessed rule as the host reads it.
type RawRule struct {
	Selector string
	Props    map[string]string
}

// serializeStyles processes every accessible sheet and records inaccessible
// ones by reference. Cross-origin sheets degrade gracefully; they are
// omitted, not failed.
func serializeStyles(sources []StyleSource) []Stylesheet {
	if len(sources) == 0 {
		return nil
	}

	out := make([]Stylesheet, 0, len(sources))
	for _, src := range sources {
		if !src.Accessible {
			out = append(out, Stylesheet{Href: src.Href, CrossOrigin: true})
			continue
		}

		sheet := Stylesheet{Href: src.Href, Rules: make([]Rule, 0, len(src.Rules))}
		for _, raw := range src.Rules {
			sheet.Rules = append(sheet.Rules, Rule{
				Selector:    raw.Selector,
				Specificity: specificity(raw.Selector),
				Props:       raw.Props,
			})
		}
		out = append(out, sheet)
	}
	return out
}

// specificity computes the standard (a,b,c) CSS specificity folded into one
// integer: ids*100 + (classes+attributes+pseudo-classes)*10 + types.
func specificity(selector string) int {
	ids, classes, types := 0, 0, 0

	for _, part := range strings.FieldsFunc(selector, func(r rune) bool {
		return r == ' ' || r == '>' || r == '+' || r == '~' || r == ','
	}) {
		rest := part
		for rest != "" {
			switch {
			case strings.HasPrefix(rest, "#"):
				ids++
				rest = consumeIdent(rest[1:])
			case strings.HasPrefix(rest, "."):
				classes++
				rest = consumeIdent(rest[1:])
			case strings.HasPrefix(rest, "["):
				classes++
				if end := strings.IndexByte(rest, ']'); end >= 0 {
					rest = rest[end+1:]
				} else {
					rest = ""
				}
			case strings.HasPrefix(rest, "::"):
				types++
				rest = consumeIdent(rest[2:])
			case strings.HasPrefix(rest, ":"):
				classes++
				rest = consumeIdent(rest[1:])
			case strings.HasPrefix(rest, "*"):
				rest = rest[1:]
			default:
				types++
				rest = consumeIdent(rest)
			}
		}
	}
	return ids*100 + classes*10 + types
}

func consumeIdent(s string) string {
	for i, r := range s {
		if r == '#' || r == '.' || r == '[' || r == ':' || r == '*' {
			return s[i:]
		}
	}
	return ""
}
