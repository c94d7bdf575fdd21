package merchant

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// Card processors prepend their own tag, e.g. "SQ *COFFEE SHOP" or "TST* PIZZA"
	processorPrefix = regexp.MustCompile(`(?i)^\s*(sq|tst|sp|pp|paypal|py|dd|ck|pos|in)\s*\*\s*`)
	apostrophes     = strings.NewReplacer("'", "", "’", "")
	nonWord         = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	longDigits      = regexp.MustCompile(`^\d{6,}$`)
)

// fillerTokens carry no merchant identity and are dropped wherever they appear
var fillerTokens = map[string]bool{
	"pos":       true,
	"debit":     true,
	"credit":    true,
	"card":      true,
	"purchase":  true,
	"store":     true,
	"payment":   true,
	"recurring": true,
	"visa":      true,
	"checkcard": true,
}

// legalSuffixes are only dropped from the end of a name
var legalSuffixes = map[string]bool{
	"llc":  true,
	"inc":  true,
	"ltd":  true,
	"corp": true,
	"co":   true,
	"plc":  true,
	"gmbh": true,
	"pty":  true,
}

// Clean applies the deterministic cleanup used for alias keys: lowercase,
// processor prefix removal, punctuation stripping, filler/code removal and
// whitespace collapsing. Clean(Clean(s)) == Clean(s).
func Clean(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	s = processorPrefix.ReplaceAllString(s, "")
	s = apostrophes.Replace(s)
	s = nonWord.ReplaceAllString(s, " ")

	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return ""
	}

	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if fillerTokens[tok] || longDigits.MatchString(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		kept = tokens
	}

	// Trailing store numbers, terminal ids and legal suffixes
	for len(kept) > 1 {
		last := kept[len(kept)-1]
		if !hasDigit(last) && !legalSuffixes[last] {
			break
		}
		kept = kept[:len(kept)-1]
	}

	return strings.Join(kept, " ")
}

// DisplayName turns raw merchant text into a human-facing canonical spelling.
// Processor prefixes and trailing codes are removed; shouty all-caps text is
// title-cased, anything else keeps its original casing.
func DisplayName(raw string) string {
	s := processorPrefix.ReplaceAllString(strings.TrimSpace(raw), "")
	s = strings.NewReplacer("*", " ", "#", " ").Replace(s)

	words := strings.Fields(s)
	for len(words) > 1 && hasDigit(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return ""
	}

	result := strings.Join(words, " ")
	if !hasLower(result) {
		caser := cases.Title(language.English)
		result = caser.String(strings.ToLower(result))
	}
	return result
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func hasLower(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}
