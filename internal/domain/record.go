package domain

import "fmt"

// Record is one stored movie: a stable identifier, a display title, an open
// metadata mapping, the embedded text, and its vector. The embedding length
// must equal the collection dimensionality for every record.
type Record struct {
	ID        string
	Title     string
	Metadata  map[string]any
	Contents  string
	Embedding []float32
}

// Validate checks structural invariants against the collection dimensionality.
// A zero dim skips the dimensionality check (embedding assigned later).
func (r *Record) Validate(dim int) error {
	if r.ID == "" {
		return fmt.Errorf("record id is required: %w", ErrInvalidRequest)
	}
	if r.Contents == "" {
		return fmt.Errorf("record %s: contents is required: %w", r.ID, ErrInvalidRequest)
	}
	if dim > 0 && len(r.Embedding) > 0 && len(r.Embedding) != dim {
		return fmt.Errorf("record %s: got %d dimensions, want %d: %w",
			r.ID, len(r.Embedding), dim, ErrDimensionMismatch)
	}
	return nil
}
