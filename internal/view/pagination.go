package view

// Pagination defaults for the article list.
const (
	PageSize        = 5
	MaxPagesDesktop = 5
	MaxPagesMobile  = 3
)

// Pager holds the article list's page position. It is owned by whoever
// renders the list; nothing else changes it.
type Pager struct {
	Current int
	Total   int
}

// NewPager returns a pager positioned on the first page of n items.
func NewPager(n, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	return &Pager{Current: 1, Total: (n + pageSize - 1) / pageSize}
}

// ChangePage moves to page p. Pages outside [1, Total] are ignored.
func (p *Pager) ChangePage(page int) bool {
	if page < 1 || page > p.Total {
		return false
	}
	p.Current = page
	return true
}

// HasPrev reports whether a previous page exists.
func (p Pager) HasPrev() bool { return p.Current > 1 }

// HasNext reports whether a next page exists.
func (p Pager) HasNext() bool { return p.Current < p.Total }

// PageItem is one entry in the page-number strip.
type PageItem struct {
	Number   int
	Ellipsis bool
	Active   bool
}

// PageWindow lists the page buttons to show: at most maxVisible consecutive
// pages around current, plus the first and last page with an ellipsis where
// pages are skipped.
func PageWindow(current, total, maxVisible int) []PageItem {
	if total <= 0 {
		return nil
	}
	if maxVisible <= 0 {
		maxVisible = MaxPagesDesktop
	}

	var items []PageItem
	add := func(n int) {
		items = append(items, PageItem{Number: n, Active: n == current})
	}
	gap := func() {
		items = append(items, PageItem{Ellipsis: true})
	}

	if total <= maxVisible {
		for i := 1; i <= total; i++ {
			add(i)
		}
		return items
	}

	start := max(1, current-maxVisible/2)
	end := min(total, start+maxVisible-1)

	if start > 1 {
		add(1)
		if start > 2 {
			gap()
		}
	}
	for i := start; i <= end; i++ {
		add(i)
	}
	if end < total {
		if end < total-1 {
			gap()
		}
		add(total)
	}
	return items
}
