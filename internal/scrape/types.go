package scrape

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// Entry is one admission result reconstructed from the listing. Optional
// fields are pointers so that an absent value stays distinguishable from
// an explicit empty string downstream; nil pointers are omitted from the
// JSON encoding. An Entry is never mutated after extraction.
type Entry struct {
	School        *string `json:"school,omitempty"`
	Major         *string `json:"major,omitempty"`
	Degree        *string `json:"degree,omitempty"`
	Program       *string `json:"program,omitempty"`
	Semester      *string `json:"semester,omitempty"`
	Status        *string `json:"status,omitempty"`
	StatusDate    *string `json:"status_date,omitempty"`
	DateAdded     *string `json:"date_added,omitempty"`
	URL           *string `json:"url,omitempty"`
	ApplicantType *string `json:"applicant_type,omitempty"`
	GPA           *string `json:"gpa,omitempty"`
	GRETotal      *string `json:"gre_total,omitempty"`
	GREVerbal     *string `json:"gre_verbal,omitempty"`
	GREQuant      *string `json:"gre_quant,omitempty"`
	GREAW         *string `json:"gre_aw,omitempty"`
	Comments      *string `json:"comments,omitempty"`
}

// rowGroup is the main/detail/comment row cluster representing one
// logical entry in the listing table. Detail and Comment may be nil.
// Groups live only for the duration of a single page parse.
type rowGroup struct {
	main    *goquery.Selection
	detail  *goquery.Selection
	comment *goquery.Selection
}

// crawlState is the only mutable state of a crawl loop. It is owned
// exclusively by the loop that created it and discarded on return.
type crawlState struct {
	page             int
	consecutiveEmpty int
	consecutiveStale int
	entries          []Entry
}

// Sink receives periodic snapshots of the accumulated entries during
// long crawls. Implementations must tolerate repeated calls with
// growing slices; a failed save must not abort the crawl.
type Sink interface {
	Save(ctx context.Context, page int, entries []Entry) error
}

func strPtr(s string) *string { return &s }
