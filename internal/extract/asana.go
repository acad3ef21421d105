package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Globals that Asana's page bootstrap has used to embed task data.
var asanaStateGlobals = []string{
	"window.__INITIAL_STATE__",
	"window.__PRELOADED_STATE__",
	"window.ASANA_BOOTSTRAP_DATA",
	"window.env.initialData",
}

var asanaLooseNameRe = regexp.MustCompile(`name\\?"\s*:\s*\\?"([^"\\]{3,})`)

type titleMatcher struct {
	name  string
	match func(doc, taskID string) (string, bool)
}

var asanaTitleMatchers = []titleMatcher{
	{"embedded-state", matchEmbeddedState},
	{"title-tag", matchAsanaTitleTag},
	{"name-fragment", matchNameFragment},
	{"loose-json", matchLooseName},
}

// AsanaTitle runs the Asana title heuristics against a task page. A false
// return means nothing usable was found, which callers treat as a sign-in
// wall.
func AsanaTitle(doc, taskID string) (string, bool) {
	for _, matcher := range asanaTitleMatchers {
		if title, ok := matcher.match(doc, taskID); ok {
			return title, true
		}
	}
	return "", false
}

func matchEmbeddedState(doc, taskID string) (string, bool) {
	if taskID == "" {
		return "", false
	}
	for _, global := range asanaStateGlobals {
		idx := strings.Index(doc, global)
		if idx < 0 {
			continue
		}
		blob := objectAfter(doc, idx+len(global))
		if blob == "" || !gjson.Valid(blob) {
			continue
		}
		if name, ok := findTaskName(gjson.Parse(blob), taskID); ok {
			return name, true
		}
	}
	return "", false
}

// objectAfter returns the balanced JSON object that follows an assignment
// starting at from, or "" if there is none.
func objectAfter(doc string, from int) string {
	rest := doc[from:]
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return ""
	}
	start := strings.IndexByte(rest[eq:], '{')
	if start < 0 || strings.TrimSpace(rest[eq+1:eq+start]) != "" {
		return ""
	}
	start += eq

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(rest); i++ {
		c := rest[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return rest[start : i+1]
			}
		}
	}
	return ""
}

// findTaskName walks the embedded state looking for the object whose gid
// (or id) is taskID and returns its name.
func findTaskName(node gjson.Result, taskID string) (string, bool) {
	if node.IsObject() {
		id := node.Get("gid")
		if !id.Exists() {
			id = node.Get("id")
		}
		if id.Exists() && id.String() == taskID {
			if name := strings.TrimSpace(node.Get("name").String()); name != "" {
				return name, true
			}
		}
	}
	if !node.IsObject() && !node.IsArray() {
		return "", false
	}
	var found string
	node.ForEach(func(_, value gjson.Result) bool {
		if name, ok := findTaskName(value, taskID); ok {
			found = name
			return false
		}
		return true
	})
	return found, found != ""
}

func matchAsanaTitleTag(doc, _ string) (string, bool) {
	title, ok := PageTitle(doc)
	if !ok {
		return "", false
	}
	if strings.Contains(strings.ToLower(title), "asana") {
		title = strings.TrimSpace(suffixRe.ReplaceAllString(title, ""))
	}
	title = strings.TrimLeft(title, "●• ")
	if strings.Contains(strings.ToLower(title), "redirecting") || utf8.RuneCountInString(title) < 5 {
		return "", false
	}
	return title, true
}

func nameFragmentPatterns(taskID string) []*regexp.Regexp {
	var patterns []*regexp.Regexp
	if taskID != "" {
		id := regexp.QuoteMeta(taskID)
		patterns = append(patterns,
			regexp.MustCompile(`"gid"\s*:\s*"`+id+`"\s*,\s*"name"\s*:\s*"((?:[^"\\]|\\.)+)"`),
			regexp.MustCompile(`"name"\s*:\s*"((?:[^"\\]|\\.)+)"\s*,\s*"gid"\s*:\s*"`+id+`"`),
		)
	}
	return append(patterns,
		regexp.MustCompile(`"task_name"\s*:\s*"((?:[^"\\]|\\.)+)"`),
		regexp.MustCompile(`name":"((?:[^"\\]|\\.)+)"`),
	)
}

func matchNameFragment(doc, taskID string) (string, bool) {
	for _, pattern := range nameFragmentPatterns(taskID) {
		for _, match := range pattern.FindAllStringSubmatch(doc, -1) {
			if name, ok := acceptName(unquoteJSON(match[1])); ok {
				return name, true
			}
		}
	}
	return "", false
}

func matchLooseName(doc, _ string) (string, bool) {
	for _, match := range asanaLooseNameRe.FindAllStringSubmatch(doc, -1) {
		if name, ok := acceptName(match[1]); ok {
			return name, true
		}
	}
	return "", false
}

func acceptName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 3 || strings.Contains(strings.ToLower(name), "redirect") {
		return "", false
	}
	return name, true
}
