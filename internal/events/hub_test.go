package events

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamebank/internal/testutil"
)

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "single line data",
			eventName: "balance-changed",
			data:      `{"playerId":1}`,
			expected:  "event: balance-changed\ndata: {\"playerId\":1}\n\n",
		},
		{
			name:      "multi-line data",
			eventName: "test",
			data:      "line1\nline2",
			expected:  "event: test\ndata: line1\ndata: line2\n\n",
		},
		{
			name:      "empty data",
			eventName: "ping",
			data:      "",
			expected:  "event: ping\ndata: \n\n",
		},
		{
			name:      "carriage returns",
			eventName: "test",
			data:      "line1\r\nline2\r\n",
			expected:  "event: test\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatMessage(tt.eventName, tt.data)))
		})
	}
}

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testutil.NopLogger())
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

func TestHubRegisterAndPublish(t *testing.T) {
	hub := newRunningHub(t)

	client := NewClient("test")
	require.True(t, hub.Register(client))
	assert.Equal(t, 1, hub.ClientCount())

	balance := int64(1700)
	hub.Publish(Event{Type: TypeBalanceChanged, PlayerID: 3, Balance: &balance, Stamp: 42})

	select {
	case msg := <-client.send:
		assert.Equal(t,
			"event: balance-changed\ndata: {\"type\":\"balance-changed\",\"playerId\":3,\"balance\":1700,\"stamp\":42}\n\n",
			string(msg))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	hub := newRunningHub(t)

	client := NewClient("test")
	require.True(t, hub.Register(client))
	hub.Unregister(client)

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(testutil.NopLogger())
	stopped := make(chan struct{})
	go func() {
		hub.Run()
		close(stopped)
	}()

	client := NewClient("test")
	require.True(t, hub.Register(client))
	hub.Close()
	hub.Close()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, ok := <-client.send
	assert.False(t, ok)
	assert.False(t, hub.Register(NewClient("late")))
}

func TestHandlerStreamsEvents(t *testing.T) {
	hub := newRunningHub(t)
	server := httptest.NewServer(hub.Handler())
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readFrame := func() string {
		var frame strings.Builder
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if line == "\n" {
				return frame.String()
			}
			frame.WriteString(line)
		}
	}

	assert.Equal(t, "event: connected\ndata: {\"status\":\"connected\"}\n", readFrame())

	// The stream is registered before the connected frame is written
	hub.Publish(Event{Type: TypePlayerDeleted, PlayerID: 7})
	assert.Equal(t, "event: player-deleted\ndata: {\"type\":\"player-deleted\",\"playerId\":7}\n", readFrame())
}
