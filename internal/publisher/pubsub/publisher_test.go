package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "dossier-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishSendsJSON(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "profile-built")
	require.NoError(t, err)

	pub := New(client)
	defer pub.Close()

	id, err := pub.Publish(ctx, "profile-built", map[string]string{"name": "Virat Kohli"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"name":"Virat Kohli"}`, string(msgs[0].Data))
}

func TestPublishValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "t", "x")
	require.Error(t, err)

	client, _ := newTestClient(t)
	pub := New(client)
	defer pub.Close()
	_, err = pub.Publish(context.Background(), "", "x")
	require.Error(t, err)
	_, err = pub.Publish(context.Background(), "t", make(chan int))
	require.Error(t, err)
}

func TestCarrier(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
