package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeInviteMail is the task type for invite emails.
	TaskTypeInviteMail = "mail:invite"
)

// InviteMailPayload carries the information to deliver an invite email.
type InviteMailPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
	OrgID int64  `json:"org_id"`
}

// NewInviteMailTask constructs an Asynq task.
func NewInviteMailTask(payload InviteMailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeInviteMail, data), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueInviteMail enqueues an invite email task.
func (c *Client) EnqueueInviteMail(ctx context.Context, email, token string, orgID int64) error {
	task, err := NewInviteMailTask(InviteMailPayload{Email: email, Token: token, OrgID: orgID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
