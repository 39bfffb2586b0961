package demo

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pipecall/client"
	"pipecall/codec"
	"pipecall/loadbalance"
	"pipecall/logging"
	"pipecall/process"
	"pipecall/registry"
)

// childEnv turns the re-executed test binary into a Demo child.
const childEnv = "PIPECALL_DEMO_CHILD"

func TestMain(m *testing.M) {
	if os.Getenv(childEnv) != "" {
		os.Exit(runChild(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func runChild(args []string) int {
	ch, err := process.Attach(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "attach:", err)
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	if err := Serve(ctx, ch, Impl{}, zap.NewNop()); err != nil {
		fmt.Fprintln(os.Stderr, "serve:", err)
		return 1
	}
	return 0
}

func childConfig() process.Config {
	return process.Config{
		Env:     []string{childEnv + "=1"},
		Service: ServiceName,
	}
}

func TestChildProcessRoundTrip(t *testing.T) {
	child, err := process.Spawn(context.Background(), childConfig(), process.WithLogger(logging.NewTest(t)))
	require.NoError(t, err)
	defer child.Shutdown()

	c, err := NewClient(client.NewDispatcher(child.Channel(), logging.NewTest(t)))
	require.NoError(t, err)

	sum, err := c.Add(5, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(8), sum)

	s, err := c.Concatenate([]string{"Hello", "World", "!"})
	require.NoError(t, err)
	assert.Equal(t, "Hello World !", s)

	arr, err := c.ProcessNullArray(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"was null"}, arr)

	st, err := c.ProcessStruct(TestStruct{IntValue: 42, StringValue: Ref("Hello"), FloatValue: 3.14})
	require.NoError(t, err)
	assert.Equal(t, int32(84), st.IntValue)
	assert.Equal(t, "Processed_Hello", *st.StringValue)
	assert.InDelta(t, 3.64, st.FloatValue, 1e-5)

	_, err = c.ProcessDecimal(2)
	require.ErrorIs(t, err, codec.ErrUnsupportedPrimitive)

	// many sequential calls keep the stream aligned
	for i := int32(0); i < 200; i++ {
		v, err := c.ProcessInt32(i)
		require.NoError(t, err)
		require.Equal(t, i*2, v)
	}
}

func TestChildPoolSpreadsCalls(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	pool, err := client.SpawnPool(context.Background(), 2, childConfig(),
		&loadbalance.RoundRobinBalancer{}, logging.NewTest(t),
		process.WithRegistry(reg, 0))
	require.NoError(t, err)

	instances, err := reg.Discover(context.Background(), ServiceName)
	require.NoError(t, err)
	assert.Len(t, instances, 2)
	assert.Len(t, pool.Instances(), 2)

	c, err := NewClient(pool)
	require.NoError(t, err)
	for i := int32(0); i < 10; i++ {
		sum, err := c.Add(i, i)
		require.NoError(t, err)
		assert.Equal(t, 2*i, sum)
	}

	require.NoError(t, pool.Close())
	instances, err = reg.Discover(context.Background(), ServiceName)
	require.NoError(t, err)
	assert.Empty(t, instances)
}
