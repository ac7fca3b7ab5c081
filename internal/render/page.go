package render

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// ErrPageOutOfRange is returned for a page number past the last page.
var ErrPageOutOfRange = errors.New("history page out of range")

// HistoryPage is one slice of the ordered history.
type HistoryPage struct {
	Entries      []delta.CommitEntry `json:"entries"       yaml:"entries"`
	Page         int                 `json:"page"          yaml:"page"`
	PageSize     int                 `json:"page_size"     yaml:"page_size"`
	TotalPages   int                 `json:"total_pages"   yaml:"total_pages"`
	TotalEntries int                 `json:"total_entries" yaml:"total_entries"`
}

// Paginate returns the 1-based page of entries. The order of entries is kept.
// An empty history has a single empty page.
func Paginate(entries []delta.CommitEntry, page, size int) (HistoryPage, error) {
	if size <= 0 {
		size = len(entries)
	}

	if page <= 0 {
		page = 1
	}

	pages := 1
	if size > 0 {
		pages = max(1, (len(entries)+size-1)/size)
	}

	if page > pages {
		return HistoryPage{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, pages)
	}

	start := min((page-1)*size, len(entries))
	end := min(start+size, len(entries))

	return HistoryPage{
		Entries:      entries[start:end],
		Page:         page,
		PageSize:     size,
		TotalPages:   pages,
		TotalEntries: len(entries),
	}, nil
}
