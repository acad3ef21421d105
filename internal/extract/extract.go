// Package extract pulls display titles and item types out of scraped Jira
// and Asana HTML. Each heuristic is an independent matcher that reports "no
// match" instead of failing; the exported functions run the matchers in
// priority order and return the first hit.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// PageTitle returns the text of the first <title> element in doc.
func PageTitle(doc string) (string, bool) {
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	inTitle := false
	var b strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			title := strings.TrimSpace(b.String())
			return title, inTitle && title != ""
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				b.Write(tokenizer.Text())
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if inTitle && string(name) == "title" {
				title := strings.Join(strings.Fields(b.String()), " ")
				return title, title != ""
			}
		}
	}
}

var loginMarkers = []string{
	`id="login-form"`,
	`id="login-submit"`,
	`action="/login`,
	`id.atlassian.com/login`,
	`/login.jsp`,
	`data-testid="login-page"`,
	`class="loginform`,
	`http-equiv="refresh"`,
	`window.location.replace(`,
	`<title>redirecting`,
	`<title>log in`,
	`<title>sign in`,
}

// LooksLikeLogin reports whether doc is a sign-in page or a client-side
// redirect rather than the requested item.
func LooksLikeLogin(doc string) bool {
	lower := strings.ToLower(doc)
	for _, marker := range loginMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// unquoteJSON decodes JSON string escapes captured by a regex; on failure
// the raw capture is returned.
func unquoteJSON(s string) string {
	if decoded, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return decoded
	}
	return s
}

func titleCase(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}

var suffixRe = regexp.MustCompile(`\s+[-–|·]\s+[^-–|·]*$`)
