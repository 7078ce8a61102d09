// Package scrape implements the GradCafe listing harvester: a retrying
// HTTP fetch layer, the row-group reconstruction parser for the survey
// list view, and the paginated crawl loops (full and incremental).
//
// The listing has no API and no schema contract. Logical entries span a
// variable number of table rows distinguished only by cell counts and
// marker classes, so parsing is deliberately fail-skip: malformed rows
// yield fewer entries, never errors. The crawl loops self-terminate via
// consecutive empty/stale page counters because the source gives no
// total-count guarantee.
package scrape
