package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zero-day-ai/taskforge/toolerr"
)

// Sender delivers a message to one user over one channel.
type Sender interface {
	Send(ctx context.Context, to User, msg Message) error
}

// Report counts the outcome of a Notify call.
type Report struct {
	Sent    int
	Failed  int
	Skipped int
}

// Dispatcher renders and delivers notifications.
type Dispatcher struct {
	renderer *Renderer
	senders  map[Channel]Sender
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSender registers the sender for a channel.
func WithSender(ch Channel, s Sender) DispatcherOption {
	return func(d *Dispatcher) { d.senders[ch] = s }
}

// WithRenderer replaces the default renderer.
func WithRenderer(r *Renderer) DispatcherOption {
	return func(d *Dispatcher) { d.renderer = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher creates a dispatcher. Channels without a sender are skipped.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		renderer: DefaultRenderer(),
		senders:  make(map[Channel]Sender),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify sends ev to every recipient selected from the executor and the
// project members. Each failure is logged and collected; the remaining
// recipients are still notified. The returned error joins all failures.
func (d *Dispatcher) Notify(ctx context.Context, ev Event, members []User) (Report, error) {
	var (
		report Report
		errs   []error
	)

	execID := ""
	if ev.Execution != nil {
		execID = ev.Execution.ID
	}

	for _, u := range Recipients(ev.Executor, members) {
		ch := u.Channel()
		sender, ok := d.senders[ch]
		if ch == ChannelNone || !ok {
			report.Skipped++
			continue
		}

		err := d.send(ctx, sender, ev, u)
		if err != nil {
			report.Failed++
			errs = append(errs, toolerr.New(string(ch), "notify", toolerr.ErrCodeNotification,
				fmt.Sprintf("notify user %s", u.ID)).WithCause(err))
			d.logger.WarnContext(ctx, "notification failed",
				"execution_id", execID, "user_id", u.ID, "channel", ch, "error", err)
			continue
		}
		report.Sent++
		d.logger.DebugContext(ctx, "notification sent",
			"execution_id", execID, "user_id", u.ID, "channel", ch)
	}
	return report, errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, sender Sender, ev Event, u User) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()

	msg, err := d.renderer.Render(ev, u)
	if err != nil {
		return err
	}
	return sender.Send(ctx, u, msg)
}
