package parley

// Source identifies a knowledge-base document cited by an answer.
// Identity is URL when present, else position in the list.
type Source struct {
	Title          string
	URL            string
	DataSourceType string
}

// mergeSource appends src to list unless a source with the same non-empty
// URL is already present.
func mergeSource(list []Source, src Source) []Source {
	if src.URL != "" {
		for _, s := range list {
			if s.URL == src.URL {
				return list
			}
		}
	}
	return append(list, src)
}
