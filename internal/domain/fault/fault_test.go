package fault

import (
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

type quotaError struct{ left int }

func (e *quotaError) Error() string   { return fmt.Sprintf("only %d left", e.left) }
func (e *quotaError) FaultKind() Kind { return KindInvalid }

func TestKindOf(t *testing.T) {
	errMissing := NotFound("widget not found")

	tests := []struct {
		name    string
		err     error
		want    Kind
		wantMsg string
	}{
		{name: "sentinel", err: errMissing, want: KindNotFound, wantMsg: "widget not found"},
		{name: "wrapped sentinel", err: errors.Wrap(errMissing, "load widget"), want: KindNotFound, wantMsg: "widget not found"},
		{name: "fmt wrapped", err: fmt.Errorf("tx: %w", Conflict("dup")), want: KindConflict, wantMsg: "dup"},
		{name: "typed", err: errors.Wrap(&quotaError{left: 2}, "reserve"), want: KindInvalid, wantMsg: "only 2 left"},
		{name: "plain", err: errors.New("connection reset"), want: KindInternal, wantMsg: "connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
			assert.Equal(t, tt.wantMsg, Message(tt.err))
		})
	}
}

func TestSentinelIdentity(t *testing.T) {
	errGone := NotFound("gone")
	wrapped := errors.Wrap(errGone, "lookup")

	assert.ErrorIs(t, wrapped, errGone)
	assert.NotErrorIs(t, wrapped, NotFound("gone"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "invalid", KindInvalid.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "internal", Kind(99).String())
}
