package queue

import "iter"

// Limit truncates seq to at most n items when hasLimit is true; otherwise it
// passes every item through unchanged. It is shared by both backends so the
// "LIMIT" behavior of a bulk read/delete/update is defined in exactly one
// place.
func Limit[T any](seq iter.Seq[T], n int, hasLimit bool) iter.Seq[T] {
	if !hasLimit {
		return seq
	}
	return func(yield func(T) bool) {
		// seq is always ranged, even when n<=0: seq may be a generator that
		// holds a resource (memstore's engine mutex) in a defer guarding its
		// whole body, and that defer only runs once the generator itself is
		// invoked and then stopped — returning before ever ranging seq, as an
		// "if n<=0 { return }" guard here once did, would leave that resource
		// held forever.
		count := 0
		for v := range seq {
			if count >= n {
				return
			}
			if !yield(v) {
				return
			}
			count++
		}
	}
}

// MapOptional lazily applies render to each item of seq, yielding only the
// items render reports should be shown (its second return). It is meant to
// run *after* Limit/FirstOrNotFound have already decided truncation and
// existence on the unrendered sequence, so that a "detail=none" projection —
// which renders nothing — can never turn an existing, matched result into a
// false NotFound or a short count: those decisions are about what matched,
// not about what the caller asked to see of it.
func MapOptional[T, V any](seq iter.Seq[T], render func(T) (V, bool)) iter.Seq[V] {
	return func(yield func(V) bool) {
		for v := range seq {
			view, ok := render(v)
			if !ok {
				continue
			}
			if !yield(view) {
				return
			}
		}
	}
}

// FirstOrNotFound peeks the first item of seq so that an empty result can be
// reported as a *Error(NotFound) rather than an indistinguishable empty
// sequence, without ever buffering more than that one item — matching the
// original backends, which raise NotFound only once a scan has produced
// zero rows. The returned Seq replays the peeked item before continuing to
// pull from seq lazily.
func FirstOrNotFound[T any](seq iter.Seq[T], notFoundMsg string) (iter.Seq[T], error) {
	next, stop := iter.Pull(seq)
	first, ok := next()
	if !ok {
		stop()
		return nil, NewNotFound("%s", notFoundMsg)
	}
	return func(yield func(T) bool) {
		defer stop()
		if !yield(first) {
			return
		}
		for {
			v, ok := next()
			if !ok {
				return
			}
			if !yield(v) {
				return
			}
		}
	}, nil
}
