// Package normalize folds raw item text into a canonical comparable form.
// This is surface normalization only: it never reorders words or removes
// interior tokens.
package normalize

import (
	"strings"
	"unicode"
)

const edgePunct = " .,:;()[]{}\"'`|/\\!?-"

// rewrites maps spelling variants to one preferred surface form. Applied
// per token after case/whitespace folding.
var rewrites = map[string]string{
	"utilise":      "utilize",
	"utilising":    "utilizing",
	"organise":     "organize",
	"organisation": "organization",
	"analyse":      "analyze",
	"analysing":    "analyzing",
	"optimise":     "optimize",
	"modelling":    "modeling",
	"programme":    "program",
	"defence":      "defense",
	"behaviour":    "behavior",
}

// Normalize lowercases, trims, collapses internal whitespace, strips
// punctuation from the edges of the phrase, and applies the fixed rewrite
// table. Deterministic and side-effect-free.
func Normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.Trim(t, edgePunct)
	fields := strings.Fields(t)
	for i, f := range fields {
		if r, ok := rewrites[f]; ok {
			fields[i] = r
		}
	}
	return strings.Join(fields, " ")
}

// MatchForm is the stricter form used only for similarity comparison, never
// as a persistent key: Normalize plus removal of all remaining punctuation.
func MatchForm(text string) string {
	t := Normalize(text)
	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens splits MatchForm on whitespace and folds trivial English
// inflections so plural variants of the same phrase compare equal
// ("conducts threat analyses" vs "conduct threat analysis"). Comparison
// only; canonical text is untouched.
func Tokens(text string) []string {
	fields := strings.Fields(MatchForm(text))
	for i, f := range fields {
		fields[i] = foldToken(f)
	}
	return fields
}

func foldToken(t string) string {
	switch {
	case len(t) > 4 && strings.HasSuffix(t, "yses"):
		return t[:len(t)-4] + "ysis"
	case len(t) > 4 && strings.HasSuffix(t, "ies"):
		return t[:len(t)-3] + "y"
	case strings.HasSuffix(t, "ss"), strings.HasSuffix(t, "us"), strings.HasSuffix(t, "is"):
		return t
	case len(t) > 3 && strings.HasSuffix(t, "s"):
		return t[:len(t)-1]
	}
	return t
}
