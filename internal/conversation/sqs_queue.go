package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue carries follow-up tasks over AWS or LocalStack SQS. Payloads are
// JSON message bodies; a body that does not decode is acked on the spot so a
// poison message cannot wedge the queue.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
}

// NewSQSQueue wraps the provided SQS client as a follow-up task queue.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("conversation: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("conversation: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL}
}

// Enqueue serializes the payload and publishes it.
func (q *SQSQueue) Enqueue(ctx context.Context, payload taskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("conversation: encode follow-up payload: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("conversation: send follow-up message: %w", err)
	}
	return nil
}

// Dequeue long-polls for up to limit tasks. Undecodable bodies are acked
// and dropped rather than returned.
func (q *SQSQueue) Dequeue(ctx context.Context, limit, waitSeconds int) ([]leasedTask, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(limit),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: receive follow-up messages: %w", err)
	}

	tasks := make([]leasedTask, 0, len(out.Messages))
	for _, msg := range out.Messages {
		var payload taskPayload
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &payload); err != nil {
			_ = q.Ack(ctx, aws.ToString(msg.ReceiptHandle))
			continue
		}
		tasks = append(tasks, leasedTask{
			payload: payload,
			receipt: aws.ToString(msg.ReceiptHandle),
		})
	}
	return tasks, nil
}

// Ack deletes a consumed message.
func (q *SQSQueue) Ack(ctx context.Context, receipt string) error {
	if receipt == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("conversation: delete follow-up message: %w", err)
	}
	return nil
}
