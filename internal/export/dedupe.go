package export

import "github.com/HerbHall/ihttstats/pkg/models"

// KeyFunc returns a record's business key. ok is false for keyless records.
type KeyFunc[T any] func(T) (key string, ok bool)

// Result is the outcome of Dedupe.
type Result[T any] struct {
	Records []T
	Dropped int
}

// Dedupe keeps the first occurrence of every business key, in input order.
// Keyless records are never considered duplicates of anything.
func Dedupe[T any](records []T, key KeyFunc[T]) Result[T] {
	seen := make(map[string]struct{}, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			out = append(out, r)
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return Result[T]{Records: out, Dropped: len(records) - len(out)}
}

// FieldKey keys records by the named field.
func FieldKey(field string) KeyFunc[models.Record] {
	return func(r models.Record) (string, bool) {
		return r.String(field)
	}
}
