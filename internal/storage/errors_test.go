package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nao1215/spiderq/internal/model"
)

// TestSkippedError tests the partial-result error.
func TestSkippedError(t *testing.T) {
	t.Parallel()

	err := &SkippedError{Records: []SkippedRecord{
		{ID: 1, Key: "/a", Err: fmt.Errorf("%w: digest mismatch", model.ErrMalformedPayload)},
		{ID: 2, Key: "/b", Err: fmt.Errorf("%w: empty payload", model.ErrMalformedPayload)},
	}}

	t.Run("message lists keys", func(t *testing.T) {
		t.Parallel()

		msg := err.Error()
		if !strings.Contains(msg, "2 malformed") || !strings.Contains(msg, "/a, /b") {
			t.Errorf("unexpected message %q", msg)
		}
	})

	t.Run("unwraps to ErrMalformedPayload", func(t *testing.T) {
		t.Parallel()

		if !errors.Is(err, model.ErrMalformedPayload) {
			t.Error("expected errors.Is to find ErrMalformedPayload")
		}
	})

	t.Run("IsSkipped detects wrapped skipped errors", func(t *testing.T) {
		t.Parallel()

		if !IsSkipped(fmt.Errorf("pull: %w", err)) {
			t.Error("expected IsSkipped to be true")
		}
		if IsSkipped(errors.New("disk full")) {
			t.Error("expected IsSkipped to be false for other errors")
		}
		if IsSkipped(nil) {
			t.Error("expected IsSkipped to be false for nil")
		}
	})
}
