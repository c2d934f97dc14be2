package coordinator

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/faceterm/internal/protocol"
	"github.com/wolfeidau/faceterm/internal/terminal"
)

func TestCorrelatorDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes to the resolved terminal topic", func(t *testing.T) {
		pub := &fakePublisher{}
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), pub, newFakeClock(), time.Second)

		p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
		require.NoError(t, err)

		msgs := pub.messages()
		require.Len(t, msgs, 1)
		require.Equal(t, "mqtt/face/1461173", msgs[0].topic)
		require.Equal(t, protocol.OperatorEditPerson, msgs[0].operator())
		require.Equal(t, p.ID(), msgs[0].messageID())
		require.Equal(t, "1700000000000", p.ID())
		require.Equal(t, 1, c.Outstanding())
	})

	t.Run("ack right after dispatch returns resolves the wait", func(t *testing.T) {
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), &fakePublisher{}, newFakeClock(), time.Second)

		p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
		require.NoError(t, err)
		require.True(t, c.OnAck(p.ID(), []byte(`{"result":"ok"}`)))

		ok, err := c.Await(ctx, p)
		require.NoError(t, err)
		require.True(t, ok)
		require.Zero(t, c.Outstanding())
	})

	t.Run("ack arriving before publish returns is not lost", func(t *testing.T) {
		pub := &fakePublisher{}
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), pub, newFakeClock(), time.Second)

		var matched bool
		pub.onPublish = func(_ string, payload []byte) {
			id := published{payload: payload}.messageID()
			matched = c.OnAck(id, []byte(`{"result":"ok"}`))
		}

		p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
		require.NoError(t, err)
		require.True(t, matched)

		ok, err := c.Await(ctx, p)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("no terminal fails before a pending entry exists", func(t *testing.T) {
		pub := &fakePublisher{}
		clk := newFakeClock()
		c := NewCorrelator(newTestRegistry(t), protocol.DefaultScheme(), pub, clk, time.Second)

		p, err := c.Dispatch(ctx, NewEditPerson("unknown-org", testPerson("u1")), nil)
		require.ErrorIs(t, err, terminal.ErrNoTerminalRegistered)
		require.Nil(t, p)
		require.Empty(t, pub.messages())
		require.Zero(t, c.Outstanding())
		require.Zero(t, clk.Pending())
	})

	t.Run("publish failure removes the entry", func(t *testing.T) {
		clk := newFakeClock()
		called := false
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), &fakePublisher{err: errBrokerDown}, clk, time.Second)

		_, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), func(*Pending) { called = true })
		require.ErrorIs(t, err, ErrTransport)
		require.ErrorIs(t, err, errBrokerDown)
		require.Zero(t, c.Outstanding())
		require.Zero(t, clk.Pending())
		require.False(t, called)
	})

	t.Run("slow failed publish resolves nothing", func(t *testing.T) {
		clk := newFakeClock()
		calls := 0
		pub := &fakePublisher{err: errBrokerDown, onAttempt: func() { clk.Advance(2 * time.Second) }}
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), pub, clk, time.Second)

		p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), func(*Pending) { calls++ })
		require.ErrorIs(t, err, ErrTransport)
		require.Nil(t, p)
		require.Zero(t, calls)
		require.Zero(t, c.Outstanding())
		require.Zero(t, clk.Pending())
	})

	t.Run("deadline starts when publish returns", func(t *testing.T) {
		clk := newFakeClock()
		pub := &fakePublisher{onAttempt: func() { clk.Advance(2 * time.Second) }}
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), pub, clk, time.Second)

		p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
		require.NoError(t, err)
		require.Equal(t, 1, c.Outstanding())

		require.True(t, c.OnAck(p.ID(), []byte(`{"result":"ok"}`)))
		ok, err := c.Await(ctx, p)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("shutdown during a failed publish resolves once", func(t *testing.T) {
		calls := 0
		pub := &fakePublisher{err: errBrokerDown}
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), pub, newFakeClock(), time.Second)
		pub.onAttempt = c.Close

		p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), func(*Pending) { calls++ })
		require.NoError(t, err)
		require.Equal(t, 1, calls)

		_, err = p.Result()
		require.ErrorIs(t, err, ErrStopped)
	})

	t.Run("ids are unique within one millisecond", func(t *testing.T) {
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), &fakePublisher{}, newFakeClock(), time.Second)

		var prev int64
		for range 5 {
			p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
			require.NoError(t, err)

			id, err := strconv.ParseInt(p.ID(), 10, 64)
			require.NoError(t, err)
			require.Greater(t, id, prev)
			prev = id
		}
		require.Equal(t, 5, c.Outstanding())
	})
}

func TestCorrelatorTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("expires at exactly the configured bound", func(t *testing.T) {
		clk := newFakeClock()
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), &fakePublisher{}, clk, time.Second)

		p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
		require.NoError(t, err)

		clk.Advance(999 * time.Millisecond)
		select {
		case <-p.Done():
			t.Fatal("resolved before the deadline")
		default:
		}

		clk.Advance(time.Millisecond)
		ok, err := c.Await(ctx, p)
		require.ErrorIs(t, err, ErrAckTimeout)
		require.False(t, ok)
		require.Zero(t, c.Outstanding())
	})

	t.Run("other organizations are unaffected", func(t *testing.T) {
		clk := newFakeClock()
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173", "efgh", "2000001"), protocol.DefaultScheme(), &fakePublisher{}, clk, time.Second)

		stuck, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
		require.NoError(t, err)

		clk.Advance(500 * time.Millisecond)

		other, err := c.Dispatch(ctx, NewEditPerson("efgh", testPerson("u2")), nil)
		require.NoError(t, err)
		require.True(t, c.OnAck(other.ID(), []byte(`{"result":"ok"}`)))

		ok, err := c.Await(ctx, other)
		require.NoError(t, err)
		require.True(t, ok)

		clk.Advance(500 * time.Millisecond)
		_, err = c.Await(ctx, stuck)
		require.ErrorIs(t, err, ErrAckTimeout)
	})

	t.Run("late ack is discarded", func(t *testing.T) {
		clk := newFakeClock()
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), &fakePublisher{}, clk, time.Second)

		p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
		require.NoError(t, err)
		clk.Advance(time.Second)

		require.False(t, c.OnAck(p.ID(), []byte(`{"result":"ok"}`)))
		ok, err := p.Result()
		require.ErrorIs(t, err, ErrAckTimeout)
		require.False(t, ok)
	})
}

func TestCorrelatorOnAck(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id leaves live waiters alone", func(t *testing.T) {
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), &fakePublisher{}, newFakeClock(), time.Second)

		p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
		require.NoError(t, err)

		require.False(t, c.OnAck("42", []byte(`{"result":"fail"}`)))
		require.Equal(t, 1, c.Outstanding())
		select {
		case <-p.Done():
			t.Fatal("unrelated ack resolved the wait")
		default:
		}
	})

	t.Run("decodes result", func(t *testing.T) {
		tests := []struct {
			name string
			info string
			want bool
		}{
			{name: "ok", info: `{"result":"ok"}`, want: true},
			{name: "fail", info: `{"result":"fail"}`, want: false},
			{name: "missing result", info: `{}`, want: true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), &fakePublisher{}, newFakeClock(), time.Second)

				p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
				require.NoError(t, err)
				require.True(t, c.OnAck(p.ID(), []byte(tt.info)))

				ok, err := c.Await(ctx, p)
				require.NoError(t, err)
				require.Equal(t, tt.want, ok)
			})
		}
	})

	t.Run("onDone runs once", func(t *testing.T) {
		clk := newFakeClock()
		c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), &fakePublisher{}, clk, time.Second)

		calls := 0
		p, err := c.Dispatch(ctx, NewAddPersons("abcd", []protocol.Person{testPerson("u1"), testPerson("u2")}), func(*Pending) { calls++ })
		require.NoError(t, err)

		require.True(t, c.OnAck(p.ID(), []byte(`{"result":"ok"}`)))
		require.False(t, c.OnAck(p.ID(), []byte(`{"result":"ok"}`)))
		clk.Advance(time.Second)

		require.Equal(t, 1, calls)
	})
}

func TestCorrelatorAwaitCancel(t *testing.T) {
	c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), &fakePublisher{}, newFakeClock(), time.Second)

	p, err := c.Dispatch(context.Background(), NewEditPerson("abcd", testPerson("u1")), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := c.Await(ctx, p)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ok)
	require.Zero(t, c.Outstanding())

	require.False(t, c.OnAck(p.ID(), []byte(`{"result":"ok"}`)))
}

func TestCorrelatorClose(t *testing.T) {
	ctx := context.Background()
	c := NewCorrelator(newTestRegistry(t, "abcd", "1461173"), protocol.DefaultScheme(), &fakePublisher{}, newFakeClock(), time.Second)

	p, err := c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u1")), nil)
	require.NoError(t, err)

	c.Close()

	_, err = c.Await(ctx, p)
	require.ErrorIs(t, err, ErrStopped)

	_, err = c.Dispatch(ctx, NewEditPerson("abcd", testPerson("u2")), nil)
	require.ErrorIs(t, err, ErrStopped)
}
