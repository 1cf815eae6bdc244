package dashboard

// DefaultPerPage is the page size used when none is configured.
const DefaultPerPage = 4

// TotalPages returns ceil(total/perPage); zero exactly when total is zero.
func TotalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// Offset returns the zero-based index of the first record on page.
func Offset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage
}

// Pager contains what the pagination bar needs.
type Pager struct {
	Current     int
	PerPage     int
	Total       int
	TotalPages  int
	Pages       []int
	HasPrevious bool
	HasNext     bool
}

// NewPager computes pagination metadata for the bar.
func NewPager(page, perPage, total int) Pager {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := TotalPages(total, perPage)
	pages := make([]int, totalPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return Pager{
		Current:     page,
		PerPage:     perPage,
		Total:       total,
		TotalPages:  totalPages,
		Pages:       pages,
		HasPrevious: page > 1,
		HasNext:     page < totalPages,
	}
}

// Visible reports whether the bar should be rendered at all.
func (p Pager) Visible() bool {
	return p.TotalPages > 0
}

// FirstIndex is the one-based index of the first record on the page, zero when empty.
func (p Pager) FirstIndex() int {
	if p.Total == 0 {
		return 0
	}
	return Offset(p.Current, p.PerPage) + 1
}

// LastIndex is the one-based index of the last record on the page.
func (p Pager) LastIndex() int {
	last := p.Current * p.PerPage
	if last > p.Total {
		return p.Total
	}
	return last
}
