package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Sender delivers a single email. Implemented by Mailer.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Worker wraps the Asynq server processing background tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Mailer    Sender
	// PortalBaseURL is the public URL invite links point at.
	PortalBaseURL string
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) *Worker {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeInviteMail, inviteMailHandler(cfg.Mailer, cfg.PortalBaseURL, cfg.Logger))
	return &Worker{server: srv, mux: mux, logger: cfg.Logger}
}

func inviteMailHandler(sender Sender, baseURL string, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InviteMailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		body := fmt.Sprintf(
			"You have been invited to join an organization on HavenLink.\n\nAccept the invite:\n%s/invites/accept?token=%s\n\nThe link expires after seven days.",
			baseURL, payload.Token)
		if err := sender.Send(ctx, payload.Email, "You are invited to HavenLink", body); err != nil {
			logger.Warn("invite mail send failed",
				slog.String("email", payload.Email), slog.Any("error", err))
			return err
		}
		return nil
	}
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
