package scrape

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	statusPattern   = regexp.MustCompile(`(?i)(Accepted|Rejected|Interview|Wait\s*listed|Waitlisted)\s+on\s+(.+)`)
	semesterPattern = regexp.MustCompile(`(?i)^(Fall|Spring|Summer|Winter)\s+\d{4}$`)
	decimalPattern  = regexp.MustCompile(`\d+\.\d+`)
	integerPattern  = regexp.MustCompile(`\d+`)
	numberPattern   = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

var applicantTypes = map[string]struct{}{
	"international": {},
	"american":      {},
	"domestic":      {},
	"us":            {},
}

// badgeRule classifies one badge text. Rules are evaluated in order and
// the first match wins, so the more specific GRE prefixes must come
// before the bare "GRE" rule.
type badgeRule struct {
	match func(text string) bool
	apply func(e *Entry, text string)
}

var badgeRules = []badgeRule{
	{
		match: semesterPattern.MatchString,
		apply: func(e *Entry, text string) { e.Semester = strPtr(text) },
	},
	{
		match: func(text string) bool {
			_, ok := applicantTypes[strings.ToLower(text)]
			return ok
		},
		apply: func(e *Entry, text string) { e.ApplicantType = strPtr(capitalize(text)) },
	},
	{
		match: func(text string) bool { return strings.HasPrefix(text, "GPA") },
		apply: func(e *Entry, text string) {
			if v := decimalPattern.FindString(text); v != "" {
				e.GPA = strPtr(v)
			}
		},
	},
	{
		match: func(text string) bool { return strings.HasPrefix(text, "GRE V") },
		apply: func(e *Entry, text string) {
			if v := integerPattern.FindString(text); v != "" {
				e.GREVerbal = strPtr(v)
			}
		},
	},
	{
		match: func(text string) bool { return strings.HasPrefix(text, "GRE Q") },
		apply: func(e *Entry, text string) {
			if v := integerPattern.FindString(text); v != "" {
				e.GREQuant = strPtr(v)
			}
		},
	},
	{
		match: func(text string) bool { return strings.HasPrefix(text, "GRE AW") },
		apply: func(e *Entry, text string) {
			if v := numberPattern.FindString(text); v != "" {
				e.GREAW = strPtr(v)
			}
		},
	},
	{
		match: func(text string) bool { return strings.HasPrefix(text, "GRE") },
		apply: func(e *Entry, text string) {
			if v := integerPattern.FindString(text); v != "" {
				e.GRETotal = strPtr(v)
			}
		},
	},
}

// extract converts one row group into a typed entry. It returns nil when
// the main row cannot be validated, dropping the candidate instead of
// failing the page.
func extract(baseURL string, g rowGroup) *Entry {
	cells := g.main.Find("td")
	if cells.Length() < minMainRowCells {
		return nil
	}

	entry := &Entry{}

	school := cleanText(cells.Eq(0).Text())
	if school == "" {
		return nil
	}
	entry.School = strPtr(school)

	// The second column nests major and degree inside a label block;
	// the first sub-label is the major and the last (if distinct) the
	// degree.
	labels := cells.Eq(1).Find("div.tw-text-gray-900").First().Find("span")
	if labels.Length() > 0 {
		if major := cleanText(labels.Eq(0).Text()); major != "" {
			entry.Major = strPtr(major)
		}
		if labels.Length() > 1 {
			if degree := cleanText(labels.Eq(labels.Length() - 1).Text()); degree != "" {
				entry.Degree = strPtr(degree)
			}
		}
	}
	entry.Program = deriveProgram(entry.Major, entry.School)

	if dateAdded := cleanText(cells.Eq(2).Text()); dateAdded != "" {
		entry.DateAdded = strPtr(dateAdded)
	}
	if cells.Length() > 3 {
		applyStatus(entry, cells.Eq(3))
	}

	if link := g.main.Find(resultLinkSelector).First(); link.Length() > 0 {
		if href, ok := link.Attr("href"); ok {
			entry.URL = strPtr(resolveLink(baseURL, href))
		}
	}

	if g.detail != nil {
		g.detail.Find(badgeSelector).Each(func(_ int, badge *goquery.Selection) {
			applyBadge(entry, cleanText(badge.Text()))
		})
	}
	if g.comment != nil {
		if comment := cleanText(g.comment.Find(commentSelector).First().Text()); comment != "" {
			entry.Comments = strPtr(comment)
		}
	}
	return entry
}

// deriveProgram combines major and school into the canonical program
// label. It is the only way Program is ever set.
func deriveProgram(major, school *string) *string {
	switch {
	case major != nil && school != nil:
		return strPtr(*major + ", " + *school)
	case major != nil:
		return strPtr(*major)
	case school != nil:
		return strPtr(*school)
	default:
		return nil
	}
}

// applyStatus parses the "<Status> on <date>" phrase from the fourth
// column. Unmatched text is kept verbatim as the status with no date.
func applyStatus(entry *Entry, cell *goquery.Selection) {
	text := cleanText(cell.Find(statusChipSelector).First().Text())
	if text == "" {
		text = cleanText(cell.Text())
	}
	if text == "" {
		return
	}
	if m := statusPattern.FindStringSubmatch(text); m != nil {
		entry.Status = strPtr(normalizeStatus(m[1]))
		if date := strings.TrimSpace(m[2]); date != "" {
			entry.StatusDate = strPtr(date)
		}
		return
	}
	entry.Status = strPtr(text)
}

// normalizeStatus collapses every "wait listed" spelling to Waitlisted
// and title-cases the rest.
func normalizeStatus(raw string) string {
	if strings.Contains(strings.ToLower(raw), "wait") {
		return "Waitlisted"
	}
	return capitalize(raw)
}

func applyBadge(entry *Entry, text string) {
	if text == "" {
		return
	}
	for _, rule := range badgeRules {
		if rule.match(text) {
			rule.apply(entry, text)
			return
		}
	}
}

func resolveLink(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
