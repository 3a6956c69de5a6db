package listing

// Ellipsis marks a gap in Page.Links.
const Ellipsis = 0

// Page is one slice of a paginated list.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalItems int   `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	Links      []int `json:"links"`
}

// Paginate returns page number page (1-based, clamped) of items. Links lists
// the first and last pages and the pages within two of the current one, with
// Ellipsis where pages are skipped. It is empty when there is a single page.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage <= 0 {
		perPage = 20
	}
	total := len(items)
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	from := (page - 1) * perPage
	to := min(from+perPage, total)

	return Page[T]{
		Items:      append([]T{}, items[from:to]...),
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
		Links:      pageLinks(page, totalPages),
	}
}

func pageLinks(current, totalPages int) []int {
	links := []int{}
	if totalPages <= 1 {
		return links
	}
	for i := 1; i <= totalPages; i++ {
		switch {
		case i == 1 || i == totalPages || (i >= current-2 && i <= current+2):
			links = append(links, i)
		case i == current-3 || i == current+3:
			links = append(links, Ellipsis)
		}
	}
	return links
}
