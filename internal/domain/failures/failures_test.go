package failures

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	base := New(NotFound, "entry missing", nil)
	wrapped := fmt.Errorf("inspect: %w", base)

	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, NotFound))
	assert.False(t, Is(wrapped, NetworkError))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestError_MessageIncludesCause(t *testing.T) {
	err := New(CorruptContainer, "cannot read container", errors.New("zip: not a valid zip file"))
	assert.Equal(t, "cannot read container: zip: not a valid zip file", err.Error())

	cause := errors.Unwrap(fmt.Errorf("x: %w", err))
	require.NotNil(t, cause)
}

func TestError_CarriesCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want errbuilder.ErrCode
	}{
		{NotFound, errbuilder.CodeNotFound},
		{ToolUnavailable, errbuilder.CodeFailedPrecondition},
		{AlreadySatisfied, errbuilder.CodeAlreadyExists},
		{NetworkError, errbuilder.CodeInternal},
		{CorruptContainer, errbuilder.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			var b *errbuilder.ErrBuilder
			require.True(t, errors.As(New(tt.kind, "msg", nil), &b))
			assert.Equal(t, tt.want, errbuilder.CodeOf(b))
		})
	}
}
