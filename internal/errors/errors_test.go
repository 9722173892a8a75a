package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "code and message",
			err:  New(Conflict, "", "a:3 renamed twice", nil),
			want: "[CONFLICT] a:3 renamed twice",
		},
		{
			name: "with path",
			err:  New(ParseError, "src/app.js", "2 syntax errors", nil),
			want: "[PARSE_ERROR] src/app.js: 2 syntax errors",
		},
		{
			name: "with cause",
			err:  IOf("maps/app.map", os.ErrNotExist, "failed to read %s", "artifact"),
			want: "[IO_ERROR] maps/app.map: failed to read artifact: file does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsFollowsWrapChain(t *testing.T) {
	base := New(CountMismatch, "app.js", "3 != 4", nil)
	wrapped := fmt.Errorf("create failed: %w", base)

	assert.True(t, Is(wrapped, CountMismatch))
	assert.False(t, Is(wrapped, ScopeMismatch))
	assert.False(t, Is(stderrors.New("plain"), CountMismatch))

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "app.js", got.Path)
}

func TestUnwrapExposesCause(t *testing.T) {
	err := IOf("x", os.ErrPermission, "write")
	assert.ErrorIs(t, err, os.ErrPermission)
}
