package handlers

import "encoding/json"

// patchField distinguishes an absent JSON field from an explicit null, so
// PATCH-style updates can clear optional columns.
type patchField[T any] struct {
	Present bool
	Value   *T // nil when the field was an explicit null
}

func (p *patchField[T]) UnmarshalJSON(data []byte) error {
	p.Present = true
	if string(data) == "null" {
		p.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p.Value = &v
	return nil
}
