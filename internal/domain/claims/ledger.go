package claims

import "iter"

// Ledger maps claim ids to records and remembers the order in which ids
// were first seen. Putting an existing id replaces the record but keeps its
// original position.
type Ledger[T any] struct {
	keys  []string
	items map[string]T
}

func NewLedger[T any]() *Ledger[T] {
	return &Ledger[T]{items: make(map[string]T)}
}

// Put stores v under key and reports whether an earlier record was replaced.
func (l *Ledger[T]) Put(key string, v T) (replaced bool) {
	if _, ok := l.items[key]; ok {
		replaced = true
	} else {
		l.keys = append(l.keys, key)
	}
	l.items[key] = v
	return replaced
}

func (l *Ledger[T]) Get(key string) (T, bool) {
	v, ok := l.items[key]
	return v, ok
}

func (l *Ledger[T]) Len() int { return len(l.keys) }

// Values returns the records in first-seen order.
func (l *Ledger[T]) Values() []T {
	out := make([]T, 0, len(l.keys))
	for _, k := range l.keys {
		out = append(out, l.items[k])
	}
	return out
}

// All iterates ids and records in first-seen order.
func (l *Ledger[T]) All() iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		for _, k := range l.keys {
			if !yield(k, l.items[k]) {
				return
			}
		}
	}
}
