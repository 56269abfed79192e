package autoindex

import (
	"net/url"
	"strconv"
)

// Page selects a slice of a listing. The zero value means "everything on one page".
type Page struct {
	Number int // 1-based
	Size   int
}

// ParsePage reads the p (page number) and n (page size) query parameters.
// Pagination applies only when both are present and positive integers.
func ParsePage(query url.Values) (Page, bool) {
	if !query.Has("p") || !query.Has("n") {
		return Page{}, false
	}

	number, err := strconv.Atoi(query.Get("p"))
	if err != nil || number < 1 {
		return Page{}, false
	}

	size, err := strconv.Atoi(query.Get("n"))
	if err != nil || size < 1 {
		return Page{}, false
	}

	return Page{Number: number, Size: size}, true
}

// Paginated reports whether p selects a page.
func (p Page) Paginated() bool {
	return p.Number > 0 && p.Size > 0
}

// Count returns the number of pages needed for total entries.
func (p Page) Count(total int) int {
	if !p.Paginated() {
		return 1
	}
	pages := total / p.Size
	if total%p.Size != 0 {
		pages++
	}
	return pages
}

// Bounds returns the half-open index range of the page within total entries.
// Pages past the end yield an empty range.
func (p Page) Bounds(total int) (start, end int) {
	if !p.Paginated() {
		return 0, total
	}
	if p.Number-1 > (total-1)/p.Size || total == 0 {
		return total, total
	}
	start = (p.Number - 1) * p.Size
	end = min(start+p.Size, total)
	return start, end
}

// Slice returns the entries on page p.
func Slice[T any](items []T, p Page) []T {
	start, end := p.Bounds(len(items))
	return items[start:end]
}
