package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/geonudge/internal/engine"
	"github.com/roach88/geonudge/internal/model"
)

// Multi delivers to every sink in order. A failing sink does not stop the
// others; all failures are joined into the returned error.
type Multi []engine.NotificationSink

func (m Multi) Notify(ctx context.Context, n model.Notification) error {
	var problems []error
	for i, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			problems = append(problems, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(problems...)
}
