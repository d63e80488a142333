package triviareview

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	reTagStrip  = regexp.MustCompile(`[^a-z0-9\s\-]`)
	reTagSeason = regexp.MustCompile(`(\d{4})-(\d{2,4})`)
)

var tagSynonyms = map[string]string{
	"manager":  "coach",
	"kit":      "uniform",
	"jersey":   "uniform",
	"shirt":    "uniform",
	"goal":     "score",
	"goals":    "score",
	"stadium":  "venue",
	"ground":   "venue",
	"nickname": "alias",
	"record":   "stat",
}

var tagStopWords = map[string]bool{
	"the": true, "in": true, "of": true, "to": true, "a": true, "an": true,
	"is": true, "was": true, "which": true, "who": true, "what": true,
	"when": true, "where": true, "how": true, "many": true, "did": true,
	"has": true, "as": true, "for": true, "on": true,
}

// ConceptTag reduces question text to a sorted, space separated keyword
// signature. Two questions asking the same thing in different words tend to
// get the same tag. Season ranges such as 2015-16 become one token
// (20152016); wording about all-time or current figures adds "alltime" or
// "recent".
func ConceptTag(text string) string {
	text = reTagStrip.ReplaceAllString(strings.ToLower(text), "")

	var extra []string
	for _, m := range reTagSeason.FindAllStringSubmatch(text, -1) {
		start, end := m[1], m[2]
		if len(end) == 2 {
			century, _ := strconv.Atoi(start[:2])
			yy, _ := strconv.Atoi(end)
			end = strconv.Itoa(century*100 + yy)
		}
		extra = append(extra, start+end)
	}
	switch {
	case len(extra) == 0 && (strings.Contains(text, "all-time") || strings.Contains(text, "all time")):
		extra = append(extra, "alltime")
	case strings.Contains(text, "as of") || strings.Contains(text, "currently") || strings.Contains(text, "record"):
		extra = append(extra, "recent")
	}

	seen := map[string]bool{}
	var tokens []string
	add := func(tok string) {
		if !seen[tok] {
			seen[tok] = true
			tokens = append(tokens, tok)
		}
	}
	for _, word := range strings.Fields(text) {
		if tagStopWords[word] {
			continue
		}
		if syn, ok := tagSynonyms[word]; ok {
			word = syn
		}
		add(word)
	}
	for _, tok := range extra {
		add(tok)
	}
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}
