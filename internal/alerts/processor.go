package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// Pusher hands a payload to the push provider.
type Pusher interface {
	Push(ctx context.Context, p PushPayload) error
}

// Worker runs the asynq server that drains the push queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(redisAddr string, concurrency int, pusher Pusher) *Worker {
	if concurrency < 1 {
		concurrency = 5
	}
	mux := asynq.NewServeMux()
	h := handlePush(pusher)
	mux.HandleFunc(TaskPushNotification, h)
	mux.HandleFunc(TaskPushMessage, h)

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueAlerts: 10,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, t *asynq.Task, err error) {
			log.Warn().Err(err).Str("task", t.Type()).Msg("push task failed")
		}),
	})
	return &Worker{server: server, mux: mux}
}

// Run blocks until the process receives SIGINT or SIGTERM.
func (w *Worker) Run() error {
	log.Info().Msg("push worker started")
	return w.server.Run(w.mux)
}

func handlePush(pusher Pusher) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p PushPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			// malformed payloads never succeed; don't retry them
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		if err := pusher.Push(ctx, p); err != nil {
			return err
		}
		log.Debug().Str("event_id", p.EventID).Str("recipient", p.RecipientID).Str("kind", p.Kind).Msg("push sent")
		return nil
	}
}
