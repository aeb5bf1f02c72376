package artifact

// DefaultPageSize matches the page size of the upload form.
const DefaultPageSize = 1000

// Snapshot is the full, time-ordered (most recent first) visit history of
// one artifact. Correlation must always be given Visits, never a Page.
type Snapshot struct {
	Visits []VisitRecord
}

// Page is a bounded display slice of a Snapshot.
type Page struct {
	Entries      []VisitRecord `json:"entries"`
	Page         int           `json:"page"`
	PageSize     int           `json:"page_size"`
	TotalEntries int           `json:"total_entries"`
	TotalPages   int           `json:"total_pages"`
}

// Page returns entries [(page-1)*size, page*size). Pages past the end are
// empty; page < 1 is treated as 1 and size < 1 as DefaultPageSize.
func (s Snapshot) Page(page, size int) Page {
	return Paginate(s.Visits, page, size)
}

// Paginate slices visits the same way Snapshot.Page does.
func Paginate(visits []VisitRecord, page, size int) Page {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}

	total := len(visits)
	p := Page{
		Entries:      []VisitRecord{},
		Page:         page,
		PageSize:     size,
		TotalEntries: total,
		TotalPages:   total / size,
	}
	if total%size != 0 {
		p.TotalPages++
	}

	// Checked before multiplying: page <= TotalPages keeps the offset in range.
	if page > p.TotalPages {
		return p
	}
	offset := (page - 1) * size
	end := total
	if total-offset > size {
		end = offset + size
	}
	p.Entries = visits[offset:end]
	return p
}
