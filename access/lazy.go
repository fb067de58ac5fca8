package access

// Lazy holds a bounds-checked window that has not been decoded yet.
// Decoding happens on each call to Get; the window itself is never copied.
type Lazy[T any] struct {
	d Deserializer
	f Decoder[T]
}

// NewLazy captures the window of d for later decoding as f.
func NewLazy[T any](d Deserializer, f Decoder[T]) *Lazy[T] {
	return &Lazy[T]{d: d, f: f}
}

// Get decodes the captured value.
func (l *Lazy[T]) Get() (T, error) {
	d := l.d
	return l.f.Deserialize(&d)
}

// GetInPlace decodes the captured value into place.
func (l *Lazy[T]) GetInPlace(place *T) error {
	d := l.d
	return l.f.DeserializeInPlace(place, &d)
}

// Validate checks the captured value without materializing it.
func (l *Lazy[T]) Validate() error {
	d := l.d
	return l.f.Validate(&d)
}

// Bytes returns the raw window.
func (l *Lazy[T]) Bytes() []byte {
	return l.d.input[l.d.pos:l.d.end:l.d.end]
}
