package result

// Result is a single ranked search hit. Similarity is 1 - cosine distance,
// higher is better; the store's descending-similarity order is preserved
// as returned.
type Result struct {
	id         string
	title      string
	metadata   map[string]any
	contents   string
	similarity float64
}

// New creates a search result.
func New(id, title string, metadata map[string]any, contents string, similarity float64) Result {
	return Result{
		id: id, title: title, metadata: metadata,
		contents: contents, similarity: similarity,
	}
}

// ID returns the record identifier.
func (r *Result) ID() string { return r.id }

// Title returns the record title.
func (r *Result) Title() string { return r.title }

// Metadata returns the record metadata mapping.
func (r *Result) Metadata() map[string]any { return r.metadata }

// Contents returns the embedded text.
func (r *Result) Contents() string { return r.contents }

// Similarity returns the cosine similarity score in [0,1].
func (r *Result) Similarity() float64 { return r.similarity }
