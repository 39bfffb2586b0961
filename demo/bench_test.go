package demo

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"pipecall/client"
	"pipecall/loadbalance"
	"pipecall/process"
)

func spawnClient(b *testing.B) *Client {
	b.Helper()
	child, err := process.Spawn(context.Background(), childConfig())
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(child.Shutdown)

	c, err := NewClient(client.NewDispatcher(child.Channel(), zap.NewNop()))
	if err != nil {
		b.Fatal(err)
	}
	for i := int32(0); i < 1000; i++ {
		if _, err := c.Add(i, i+1); err != nil {
			b.Fatal(err)
		}
	}
	return c
}

// BenchmarkChildCall times one round trip through a real child per
// operation shape.
func BenchmarkChildCall(b *testing.B) {
	c := spawnClient(b)

	cases := []struct {
		name string
		call func() error
	}{
		{"ValueType", func() error {
			_, err := c.Add(42, 43)
			return err
		}},
		{"StringArray", func() error {
			_, err := c.Concatenate([]string{"Test", "String"})
			return err
		}},
		{"ObjectArray", func() error {
			_, err := c.ProcessObjectArray([]TestObject{{ID: 1, Name: Ref("Test")}})
			return err
		}},
		{"ComplexStruct", func() error {
			_, err := c.ProcessStruct(TestStruct{IntValue: 42, StringValue: Ref("Test"), FloatValue: 3.14})
			return err
		}},
	}

	for _, tc := range cases {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := tc.call(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkChildConcurrentCall shares one child between goroutines; calls
// queue on the dispatcher.
func BenchmarkChildConcurrentCall(b *testing.B) {
	c := spawnClient(b)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := c.Add(1, 2); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkPoolConcurrentCall spreads the same load over four children.
func BenchmarkPoolConcurrentCall(b *testing.B) {
	pool, err := client.SpawnPool(context.Background(), 4, childConfig(), &loadbalance.RoundRobinBalancer{}, zap.NewNop())
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { pool.Close() })

	c, err := NewClient(pool)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := c.Add(1, 2); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
