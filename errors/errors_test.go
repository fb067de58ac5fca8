package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseDecode,
				Kind:    KindOutOfBounds,
				Path:    []string{"user", "address", "zip"},
				Formula: "Ref<Str>",
				Detail:  "range end 40 out of bounds (length 32)",
			},
			contains: []string{"[decode]", "out_of_bounds", "user.address.zip", "Ref<Str>", "length 32"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseEncode,
				Kind:  KindBufferTooSmall,
			},
			contains: []string{"[encode]", "buffer_too_small"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseDecode,
				Kind:   KindCompression,
				Detail: "snappy",
				Cause:  errors.New("corrupt input"),
			},
			contains: []string{"[decode]", "compression", "snappy", "caused by", "corrupt input"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := OutOfBounds(PhaseDecode, []string{"items"}, 12, 8)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	assert.False(t, errors.Is(err, ErrInvalidUTF8))
	assert.False(t, errors.Is(err, errors.New("other")))

	wrapped := Wrap(PhaseDecode, KindInvalidData, err, "outer")
	assert.True(t, errors.Is(wrapped, ErrInvalidData))
	assert.True(t, errors.Is(wrapped, ErrOutOfBounds), "cause chain is searched")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseEncode, KindCompression, cause, "lz4")
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestError_WithPath(t *testing.T) {
	base := InvalidDiscriminant(PhaseDecode, []string{"shape"}, 7, 2)
	nested := base.WithPath("scene")

	assert.Equal(t, []string{"scene", "shape"}, nested.Path)
	assert.Equal(t, []string{"shape"}, base.Path, "original is not mutated")
	assert.Equal(t, uint32(7), nested.Value)
}

func TestBuilder(t *testing.T) {
	err := New(PhaseDecode, KindSizeMismatch).
		Path("points").
		Formula("Slice<U32>").
		Value(7).
		Detail("length %d is not a multiple of slot size %d", 7, 4).
		Build()

	require.Equal(t, KindSizeMismatch, err.Kind)
	assert.Equal(t, []string{"points"}, err.Path)
	assert.Equal(t, 7, err.Value)
	assert.Contains(t, err.Error(), "Slice<U32> - length 7")
	assert.True(t, errors.Is(err, ErrSizeMismatch))
}

func TestBufferTooSmall(t *testing.T) {
	err := BufferTooSmall(12)
	assert.True(t, errors.Is(err, ErrBufferTooSmall))
	assert.Equal(t, 12, err.Value)

	var target *Error
	require.True(t, errors.As(fmtWrap(err), &target))
	assert.Equal(t, 12, target.Value)
}

func fmtWrap(err error) error {
	return fmt.Errorf("retry: %w", err)
}

func TestAtPath(t *testing.T) {
	err := AtPath(AtPath(OutOfBounds(PhaseDecode, nil, 9, 4), "name"), "user")
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"user", "name"}, e.Path)
	assert.Contains(t, err.Error(), "at user.name")

	plain := fmt.Errorf("plain")
	assert.Same(t, plain, AtPath(plain, "x"))

	_, ok = As(plain)
	assert.False(t, ok)
}
