package extract

import (
	"regexp"
	"strings"

	"titlelink/api/internal/links"
)

var (
	jiraBracketTitleRe = regexp.MustCompile(`^\[([A-Z][A-Z0-9]+-\d+)\]\s*(.+?)(?:\s+-\s+[^-]+)?$`)

	confluenceRe   = regexp.MustCompile(`(?i)<meta\s+name="(?:ajs-content-type"\s+content="(?:page|blogpost)"|confluence-[a-z-]+")`)
	ariaTypeRe     = regexp.MustCompile(`aria-label="([A-Za-z][A-Za-z -]*?) - Change issue type"`)
	altTypeRe      = regexp.MustCompile(`alt="(Story|Epic|Task|Bug|Subtask)"`)
	testIDTypeRe   = regexp.MustCompile(`data-testid="[a-z.-]*issue-type\.([a-z]+(?:-[a-z]+)*)"`)
	jsonTypeOrder  = []links.ItemType{links.TypeEpic, links.TypeStory, links.TypeBug, links.TypeTask}
	jsonTypeRes    = map[links.ItemType]*regexp.Regexp{}
	looseTypeOrder = []links.ItemType{links.TypeEpic, links.TypeStory, links.TypeBug, links.TypeTask}
)

func init() {
	for _, itemType := range jsonTypeOrder {
		jsonTypeRes[itemType] = regexp.MustCompile(`"(?:issueType|issuetype)"\s*:\s*\{[^{}]*"name"\s*:\s*"` + string(itemType) + `"`)
	}
}

// JiraTitle extracts the issue summary from a Jira page <title>, which
// normally reads "[KEY] Summary - Site name". The returned text is raw: the
// caller checks it for generic list-view titles and cleans it.
func JiraTitle(doc string) (string, bool) {
	title, ok := PageTitle(doc)
	if !ok {
		return "", false
	}
	if match := jiraBracketTitleRe.FindStringSubmatch(title); match != nil {
		return strings.TrimSpace(match[2]), true
	}
	if strings.Contains(strings.ToLower(title), "jira") {
		if trimmed := strings.TrimSpace(suffixRe.ReplaceAllString(title, "")); trimmed != "" {
			return trimmed, true
		}
	}
	return title, true
}

type typeMatcher struct {
	name  string
	match func(doc string) (links.ItemType, bool)
}

var jiraTypeMatchers = []typeMatcher{
	{"confluence", matchConfluence},
	{"aria-label", matchAriaType},
	{"alt", matchAltType},
	{"data-testid", matchTestIDType},
	{"embedded-json", matchJSONType},
	{"keyword", matchLooseType},
}

// JiraItemType classifies a scraped Jira (or Confluence) page. Matchers run
// in priority order; a Confluence page short-circuits everything else.
func JiraItemType(doc string) links.ItemType {
	for _, matcher := range jiraTypeMatchers {
		if itemType, ok := matcher.match(doc); ok {
			return itemType
		}
	}
	return links.TypeUnknown
}

func matchConfluence(doc string) (links.ItemType, bool) {
	if confluenceRe.MatchString(doc) {
		return links.TypeConfluencePage, true
	}
	return "", false
}

func matchAriaType(doc string) (links.ItemType, bool) {
	if match := ariaTypeRe.FindStringSubmatch(doc); match != nil {
		return links.ItemType(titleCase(match[1])), true
	}
	return "", false
}

func matchAltType(doc string) (links.ItemType, bool) {
	if match := altTypeRe.FindStringSubmatch(doc); match != nil {
		return links.ItemType(match[1]), true
	}
	return "", false
}

func matchTestIDType(doc string) (links.ItemType, bool) {
	if match := testIDTypeRe.FindStringSubmatch(doc); match != nil {
		return links.ItemType(titleCase(match[1])), true
	}
	return "", false
}

func matchJSONType(doc string) (links.ItemType, bool) {
	for _, itemType := range jsonTypeOrder {
		if jsonTypeRes[itemType].MatchString(doc) {
			return itemType, true
		}
	}
	return "", false
}

func matchLooseType(doc string) (links.ItemType, bool) {
	lower := strings.ToLower(doc)
	if !strings.Contains(lower, "issue-type") {
		return "", false
	}
	for _, itemType := range looseTypeOrder {
		if strings.Contains(lower, strings.ToLower(string(itemType))) {
			return itemType, true
		}
	}
	return "", false
}
