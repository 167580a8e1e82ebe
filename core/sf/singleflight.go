package sf

import "golang.org/x/sync/singleflight"

// Singleflight deduplicates concurrent calls with the same key.
// Only the first caller executes fn; the others wait and share its result.
type Singleflight[T any] struct {
	group singleflight.Group
}

// Do executes fn for key unless a call for key is already in flight, in
// which case it waits for that call. shared reports whether the result was
// handed to more than one caller; callers that mutate a shared result must
// copy it first.
func (s *Singleflight[T]) Do(key string, fn func() (T, error)) (v T, shared bool, err error) {
	out, err, shared := s.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, shared, err
	}
	return out.(T), shared, nil
}

// Forget drops key so the next Do executes fn again even if a call is
// still in flight.
func (s *Singleflight[T]) Forget(key string) { s.group.Forget(key) }

func New[T any]() *Singleflight[T] {
	return &Singleflight[T]{}
}
