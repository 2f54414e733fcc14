package gate

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
)

// MaxInspectedBody is how much of a request body the shield reads.
const MaxInspectedBody = 64 << 10

// Attack names the signature family that matched.
type Attack string

const (
	AttackSQLInjection     Attack = "SQL_INJECTION"
	AttackXSS              Attack = "XSS"
	AttackPathTraversal    Attack = "PATH_TRAVERSAL"
	AttackCommandInjection Attack = "COMMAND_INJECTION"
)

// target is the set of request parts a signature is matched against.
type target uint8

const (
	inURL target = 1 << iota
	inHeaders
	inBody

	everywhere = inURL | inHeaders | inBody
)

type signature struct {
	attack Attack
	re     *regexp.Regexp
	where  target
}

// Header and body signatures only match markup and shell substitution, never
// separators such as ';' or '|' followed by a word.
var signatures = []signature{
	{AttackSQLInjection, regexp.MustCompile(`(?i)\bunion\b\s+(all\s+)?select\b`), everywhere},
	{AttackSQLInjection, regexp.MustCompile(`(?i)'\s*(or|and)\s+'?\w+'?\s*=\s*'?\w+`), inURL},
	{AttackSQLInjection, regexp.MustCompile(`(?i);\s*(drop|truncate|alter)\s+table\b`), everywhere},
	{AttackSQLInjection, regexp.MustCompile(`(?i)\b(pg_sleep|benchmark)\s*\(|\bsleep\(\d+\)`), everywhere},
	{AttackSQLInjection, regexp.MustCompile(`(?i)\binformation_schema\.`), everywhere},
	{AttackXSS, regexp.MustCompile(`(?i)<\s*script\b`), everywhere},
	{AttackXSS, regexp.MustCompile(`(?i)<\s*(iframe|object|embed)\b[^>]*>`), everywhere},
	{AttackXSS, regexp.MustCompile(`(?i)javascript:\S`), everywhere},
	{AttackXSS, regexp.MustCompile(`(?i)\bon(error|load|click|mouseover|focus)\s*=`), everywhere},
	{AttackPathTraversal, regexp.MustCompile(`\.\.[/\\]`), inURL},
	{AttackPathTraversal, regexp.MustCompile(`(?i)/etc/(passwd|shadow)\b`), inURL},
	{AttackCommandInjection, regexp.MustCompile("(?i)(;|\\|\\|?|&&|\\$\\(|`)\\s*(cat|ls|rm|wget|curl|bash|sh|nc|whoami|uname)\\b"), inURL},
	{AttackCommandInjection, regexp.MustCompile("(?i)(\\$\\(|`)\\s*(cat|ls|rm|wget|curl|bash|sh|nc|whoami|uname|id)\\b"), inHeaders | inBody},
}

var inspectedHeaders = []string{"User-Agent", "Referer", "Cookie"}

type shieldRule struct{}

// inspect returns the first matching attack, or "" when the request looks clean.
// The body is read up to MaxInspectedBody and put back for later handlers.
func (shieldRule) inspect(r *http.Request) (Attack, error) {
	if a := match(r.URL.Path, inURL); a != "" {
		return a, nil
	}
	if r.URL.RawPath != "" {
		if p, err := url.PathUnescape(r.URL.RawPath); err == nil {
			if a := match(p, inURL); a != "" {
				return a, nil
			}
		}
	}
	if r.URL.RawQuery != "" {
		q, err := url.QueryUnescape(r.URL.RawQuery)
		if err != nil {
			q = r.URL.RawQuery
		}
		if a := match(q, inURL); a != "" {
			return a, nil
		}
	}
	for _, h := range inspectedHeaders {
		for _, v := range r.Header.Values(h) {
			if a := match(v, inHeaders); a != "" {
				return a, nil
			}
		}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, MaxInspectedBody))
	if err != nil {
		return "", fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}

	return match(string(buf), inBody), nil
}

func match(s string, where target) Attack {
	if s == "" {
		return ""
	}
	for _, sig := range signatures {
		if sig.where&where != 0 && sig.re.MatchString(s) {
			return sig.attack
		}
	}
	return ""
}

type readCloser struct {
	io.Reader
	io.Closer
}
