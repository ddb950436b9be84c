// Package notify delivers the composed reminder.
package notify

import (
	"context"
	"fmt"
	"io"
)

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// WriterNotifier writes the message to w, it is used for dry runs.
type WriterNotifier struct {
	w io.Writer
}

func NewWriterNotifier(w io.Writer) WriterNotifier {
	return WriterNotifier{w: w}
}

func (n WriterNotifier) Notify(_ context.Context, message string) error {
	_, err := fmt.Fprintln(n.w, message)
	return err
}

// Multi delivers to every notifier, all of them are attempted even if one fails.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		err := n.Notify(ctx, message)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d notifiers failed: %w", len(errs), len(m), errs[0])
	}
	return nil
}
