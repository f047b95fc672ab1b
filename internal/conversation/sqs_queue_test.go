package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQS struct {
	sent     []sqs.SendMessageInput
	received []sqs.ReceiveMessageInput
	deleted  []sqs.DeleteMessageInput

	messages []types.Message
	err      error
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, *params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.received = append(f.received, *params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, *params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue_SendTargetsQueueURL(t *testing.T) {
	api := &fakeSQS{}
	q := NewSQSQueue(api, "https://sqs.local/intake-inbound")

	if err := q.Send(context.Background(), `{"identity":"user-1"}`); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(api.sent))
	}
	if got := aws.ToString(api.sent[0].QueueUrl); got != "https://sqs.local/intake-inbound" {
		t.Fatalf("unexpected queue url %q", got)
	}
	if got := aws.ToString(api.sent[0].MessageBody); got != `{"identity":"user-1"}` {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestSQSQueue_ReceiveMapsMessages(t *testing.T) {
	api := &fakeSQS{messages: []types.Message{
		{MessageId: aws.String("m-1"), Body: aws.String("first"), ReceiptHandle: aws.String("rh-1")},
		{MessageId: aws.String("m-2"), Body: aws.String("second"), ReceiptHandle: aws.String("rh-2")},
	}}
	q := NewSQSQueue(api, "https://sqs.local/intake-inbound")

	got, err := q.Receive(context.Background(), 5, 10)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two messages, got %d", len(got))
	}
	if got[0].ID != "m-1" || got[0].Body != "first" || got[0].ReceiptHandle != "rh-1" {
		t.Fatalf("unexpected first message %#v", got[0])
	}
	if api.received[0].MaxNumberOfMessages != 5 || api.received[0].WaitTimeSeconds != 10 {
		t.Fatalf("poll parameters not forwarded: %#v", api.received[0])
	}
}

func TestSQSQueue_DeleteSkipsEmptyReceiptHandle(t *testing.T) {
	api := &fakeSQS{}
	q := NewSQSQueue(api, "https://sqs.local/intake-inbound")

	if err := q.Delete(context.Background(), ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(api.deleted) != 0 {
		t.Fatal("empty receipt handle must not reach SQS")
	}

	if err := q.Delete(context.Background(), "rh-9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(api.deleted) != 1 || aws.ToString(api.deleted[0].ReceiptHandle) != "rh-9" {
		t.Fatalf("unexpected delete calls %#v", api.deleted)
	}
}

func TestSQSQueue_WrapsAPIErrors(t *testing.T) {
	cause := errors.New("throttled")
	q := NewSQSQueue(&fakeSQS{err: cause}, "https://sqs.local/intake-inbound")

	if err := q.Send(context.Background(), "x"); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
	if _, err := q.Receive(context.Background(), 1, 1); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped receive error, got %v", err)
	}
	if err := q.Delete(context.Background(), "rh"); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped delete error, got %v", err)
	}
}
