// Package extraction finds structured entities (phones, URLs, emails,
// payment identifiers, amounts, company names) in free text. Extraction is
// pure: no I/O, no shared state, deterministic for a given input.
package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	phonePattern = regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\(\d{3}\)|\d{3})[-.\s]\d{3}[-.\s]?\d{4}|\+\d{7,15}`)
	urlPattern   = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"',]+|\bwww\.[a-z0-9-]+(?:\.[a-z0-9-]+)+(?:/[^\s<>"',]*)?`)
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)

	btcPattern     = regexp.MustCompile(`\b(?:bc1[a-z0-9]{25,62}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})\b`)
	ethPattern     = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	cashtagPattern = regexp.MustCompile(`\$[A-Za-z][A-Za-z0-9_]{2,20}\b`)
	ibanPattern    = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)

	amountPattern = regexp.MustCompile(`(?i)[$€£]\s?\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\b\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?\s?(?:USD|EUR|GBP|dollars|euros|pounds)\b`)

	companyPattern = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&'-]*(?:\s+[A-Z][A-Za-z0-9&'-]*){0,3})[,\s]+(LLC|L\.L\.C\.|Inc\.?|Incorporated|Ltd\.?|Limited|Corp\.?|Corporation|GmbH|PLC|S\.A\.)`)

	nonDigits = regexp.MustCompile(`\D`)
)

// URL shortener hosts flagged on extraction.
var shortenerHosts = map[string]bool{
	"bit.ly":      true,
	"tinyurl.com": true,
	"t.co":        true,
	"goo.gl":      true,
	"is.gd":       true,
	"ow.ly":       true,
	"rb.gy":       true,
	"cutt.ly":     true,
	"tiny.cc":     true,
}

var tollfreePrefixes = map[string]bool{
	"800": true, "833": true, "844": true, "855": true,
	"866": true, "877": true, "888": true,
}

// Extractor finds entities in text. Construct once and reuse; it holds no
// mutable state and is safe for concurrent use.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract scans text and returns the deduplicated entity set. It never
// fails: empty, whitespace-only or arbitrary non-ASCII input yields an
// empty set.
func (e *Extractor) Extract(text string) EntitySet {
	var set EntitySet
	if strings.TrimSpace(text) == "" {
		return set
	}

	set.Phones = e.extractPhones(text)
	set.Emails = e.extractEmails(text)
	set.URLs = e.extractURLs(text, set.Emails)
	set.Amounts = e.extractAmounts(text)
	set.Payments = e.extractPayments(text)
	set.Companies = e.extractCompanies(text)
	return set
}

func (e *Extractor) extractPhones(text string) []Phone {
	seen := make(map[string]bool)
	var out []Phone
	for _, match := range phonePattern.FindAllString(text, -1) {
		p := normalizePhone(match)
		if p.Value == "" || seen[p.Value] {
			continue
		}
		seen[p.Value] = true
		out = append(out, p)
	}
	return out
}

func normalizePhone(raw string) Phone {
	digits := nonDigits.ReplaceAllString(raw, "")
	p := Phone{Original: strings.TrimSpace(raw)}
	switch {
	case len(digits) == 10:
		p.Value = "+1" + digits
		p.Country = "US"
		p.Valid = true
	case len(digits) == 11 && digits[0] == '1':
		p.Value = "+" + digits
		p.Country = "US"
		p.Valid = true
	case len(digits) >= 7 && len(digits) <= 15 && strings.HasPrefix(raw, "+"):
		p.Value = "+" + digits
		p.Kind = "international"
		p.Valid = true
	default:
		return Phone{}
	}
	if p.Country == "US" {
		area := strings.TrimPrefix(p.Value, "+1")[:3]
		if tollfreePrefixes[area] {
			p.Kind = "tollfree"
		} else {
			p.Kind = "standard"
		}
	}
	return p
}

func (e *Extractor) extractURLs(text string, emails []Email) []URL {
	// Email hosts can shadow bare-domain matches; skip anything that is part
	// of an extracted email address.
	emailSpan := make(map[string]bool)
	for _, em := range emails {
		emailSpan[strings.ToLower(em.Value)] = true
	}

	seen := make(map[string]bool)
	var out []URL
	for _, match := range urlPattern.FindAllString(text, -1) {
		trimmed := strings.TrimRight(match, ".,;:!?)")
		if isEmailFragment(trimmed, emailSpan) {
			continue
		}
		domain := apexDomain(trimmed)
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		out = append(out, URL{
			Value:     trimmed,
			Domain:    domain,
			Shortened: shortenerHosts[domain],
		})
	}
	return out
}

func isEmailFragment(u string, emailSpan map[string]bool) bool {
	lower := strings.ToLower(u)
	for em := range emailSpan {
		if strings.Contains(em, lower) {
			return true
		}
	}
	return false
}

// apexDomain lowercases the host and strips scheme, path and leading www.
func apexDomain(raw string) string {
	s := strings.ToLower(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimPrefix(s, "www.")
	if !strings.Contains(s, ".") {
		return ""
	}
	return s
}

func (e *Extractor) extractEmails(text string) []Email {
	seen := make(map[string]bool)
	var out []Email
	for _, match := range emailPattern.FindAllString(text, -1) {
		lower := strings.ToLower(match)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		at := strings.LastIndex(lower, "@")
		out = append(out, Email{Value: lower, Domain: lower[at+1:]})
	}
	return out
}

func (e *Extractor) extractPayments(text string) []Payment {
	seen := make(map[string]bool)
	var out []Payment
	add := func(kind, value string) {
		if seen[value] {
			return
		}
		seen[value] = true
		out = append(out, Payment{Kind: kind, Value: value, Context: contextSnippet(text, value)})
	}
	for _, m := range btcPattern.FindAllString(text, -1) {
		add("btc", m)
	}
	for _, m := range ethPattern.FindAllString(text, -1) {
		add("eth", m)
	}
	for _, m := range cashtagPattern.FindAllString(text, -1) {
		add("cashtag", m)
	}
	for _, m := range ibanPattern.FindAllString(text, -1) {
		add("iban", m)
	}
	return out
}

// contextSnippet returns up to 40 characters around the first occurrence of
// value in text.
func contextSnippet(text, value string) string {
	idx := strings.Index(text, value)
	if idx < 0 {
		return ""
	}
	start := idx - 20
	if start < 0 {
		start = 0
	}
	end := idx + len(value) + 20
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

func (e *Extractor) extractAmounts(text string) []Amount {
	seen := make(map[string]bool)
	var out []Amount
	for _, match := range amountPattern.FindAllString(text, -1) {
		a, ok := parseAmount(match)
		if !ok {
			continue
		}
		key := a.Currency + strconv.FormatFloat(a.Value, 'f', 2, 64)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

var currencySymbols = map[rune]string{'$': "USD", '€': "EUR", '£': "GBP"}

func parseAmount(raw string) (Amount, bool) {
	a := Amount{Original: strings.TrimSpace(raw)}
	s := a.Original
	if sym, width := utf8.DecodeRuneInString(s); width > 0 {
		if code, ok := currencySymbols[sym]; ok {
			a.Currency = code
			s = s[width:]
		}
	}
	if a.Currency == "" {
		lower := strings.ToLower(s)
		switch {
		case strings.HasSuffix(lower, "usd"), strings.HasSuffix(lower, "dollars"):
			a.Currency = "USD"
		case strings.HasSuffix(lower, "eur"), strings.HasSuffix(lower, "euros"):
			a.Currency = "EUR"
		case strings.HasSuffix(lower, "gbp"), strings.HasSuffix(lower, "pounds"):
			a.Currency = "GBP"
		}
		s = strings.TrimRight(s, "USDEURGBPdolarseup ")
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return Amount{}, false
	}
	a.Value = v
	return a, true
}

var companySuffixFold = strings.NewReplacer(
	", llc", "", " llc", "", " l.l.c.", "",
	", inc.", "", ", inc", "", " inc.", "", " inc", "", " incorporated", "",
	", ltd.", "", ", ltd", "", " ltd.", "", " ltd", "", " limited", "",
	", corp.", "", ", corp", "", " corp.", "", " corp", "", " corporation", "",
	" gmbh", "", " plc", "", " s.a.", "",
)

func (e *Extractor) extractCompanies(text string) []Company {
	seen := make(map[string]bool)
	var out []Company
	for _, match := range companyPattern.FindAllStringSubmatch(text, -1) {
		full := strings.TrimSpace(match[0])
		norm := normalizeCompany(full)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, Company{Name: full, Normalized: norm, Category: categorizeSuffix(match[2])})
	}
	return out
}

func normalizeCompany(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	lower = companySuffixFold.Replace(lower)
	return strings.Join(strings.Fields(lower), " ")
}

func categorizeSuffix(suffix string) string {
	switch strings.ToLower(strings.TrimRight(suffix, ".,")) {
	case "llc", "l.l.c":
		return "llc"
	case "inc", "incorporated", "corp", "corporation":
		return "corporation"
	case "ltd", "limited", "plc":
		return "limited"
	default:
		return "other"
	}
}
