package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAMQPDialer struct {
	conn *fakeAMQPConnection
}

func (f *fakeAMQPDialer) Dial(url string) (AMQPConnection, error) { return f.conn, nil }

type fakeAMQPConnection struct {
	channel *fakeAMQPChannel
}

func (f *fakeAMQPConnection) Channel() (AMQPChannel, error) { return f.channel, nil }
func (f *fakeAMQPConnection) Close() error                  { return nil }

type fakeAMQPChannel struct {
	declared  string
	published []amqp.Publishing
}

func (f *fakeAMQPChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.declared = name
	return amqp.Queue{Name: name}, nil
}

func (f *fakeAMQPChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeAMQPChannel) Close() error { return nil }

func TestAMQPArchiverDeclaresQueueAndPublishes(t *testing.T) {
	ch := &fakeAMQPChannel{}
	dialer := &fakeAMQPDialer{conn: &fakeAMQPConnection{channel: ch}}

	archiver, err := NewAMQPArchiver(dialer, "amqp://localhost", "feed-archive")
	require.NoError(t, err)

	require.NoError(t, archiver.Archive(context.Background(), "mysource", TypeFull, []byte("<gsafeed/>"), nil))
	require.NoError(t, archiver.Archive(context.Background(), "mysource", TypeFull, []byte("<gsafeed/>"), errors.New("boom")))

	assert.Equal(t, "feed-archive", ch.declared)
	require.Len(t, ch.published, 2)
	assert.Contains(t, string(ch.published[0].Body), `"succeeded":true`)
	assert.Contains(t, string(ch.published[1].Body), `"succeeded":false`)
	assert.Contains(t, string(ch.published[1].Body), "boom")
}

type fakeS3Client struct {
	puts []*s3.PutObjectInput
}

func (f *fakeS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, params)
	return &s3.PutObjectOutput{}, nil
}

func TestS3ArchiverUploadsPayload(t *testing.T) {
	client := &fakeS3Client{}
	archiver := NewS3ArchiverWithClient(client, "my-bucket", "feeds/")

	require.NoError(t, archiver.Archive(context.Background(), "mysource", TypeMetadataAndURL, []byte("<gsafeed/>"), nil))

	require.Len(t, client.puts, 1)
	assert.Equal(t, "my-bucket", *client.puts[0].Bucket)
	assert.Contains(t, *client.puts[0].Key, "mysource/metadata-and-url/")
}
