package hub

import (
	"context"
	"testing"

	"github.com/atikulmunna/sleuth/internal/model"
)

// BenchmarkHubBroadcast measures the cost of broadcasting to N subscribers.
func BenchmarkHubBroadcast1(b *testing.B)  { benchHubBroadcast(b, 1) }
func BenchmarkHubBroadcast5(b *testing.B)  { benchHubBroadcast(b, 5) }
func BenchmarkHubBroadcast10(b *testing.B) { benchHubBroadcast(b, 10) }

func benchHubBroadcast(b *testing.B, numSubs int) {
	input := make(chan Report, b.N+1)
	h := New(input, nil)

	// Create subscribers and drain them.
	for i := 0; i < numSubs; i++ {
		ch := h.Subscribe()
		go func() {
			for range ch {
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Start(ctx)

	res := &model.AnalysisResult{FilePath: "bench.log", DetectedType: model.LogGeneric}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		input <- NewReport("bench.log", res, nil)
	}

	cancel()
}
