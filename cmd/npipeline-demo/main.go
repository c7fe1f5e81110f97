// Command npipeline-demo wires a tiny source -> transform -> sink graph
// and runs it, to exercise the builder and runner end to end outside of
// the test suite.
package main

import (
	"context"
	"fmt"
	"os"

	npipeline "github.com/npipeline/NPipeline-sub013"
	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/internal/telemetry"
	"github.com/npipeline/NPipeline-sub013/stream"
)

func main() {
	logger := telemetry.New(os.Stderr).WithModule("demo")

	b := npipeline.NewBuilder()

	src := npipeline.AddSourceFunc[int](b, "numbers", func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[int], error) {
		return stream.NewInMemory("numbers.items", []int{1, 2, 3}), nil
	})

	inc := npipeline.AddTransformFunc[int, int](b, "increment", func(ctx context.Context, item int, pc core.PipelineProperties) (int, error) {
		return item + 1, nil
	})

	var collected []int
	sink := npipeline.AddSinkFunc[int](b, "collect", func(ctx context.Context, p core.Pipe[int], pc core.PipelineProperties) error {
		ch, err := p.Open(ctx)
		if err != nil {
			return err
		}
		for it := range ch {
			if it.Err != nil {
				return it.Err
			}
			collected = append(collected, it.Value)
		}
		return nil
	})

	npipeline.Connect[int](b, src.Out(), inc.In())
	npipeline.Connect[int](b, inc.Out(), sink.In())

	graph, err := b.Build()
	if err != nil {
		logger.Error("build failed", telemetry.Err(err))
		os.Exit(1)
	}

	result, err := npipeline.Run(context.Background(), graph, npipeline.WithRunLogger(logger))
	if err != nil {
		logger.Error("run failed", telemetry.Err(err))
		os.Exit(1)
	}

	logger.Info("run complete", telemetry.String("runID", result.RunID))
	fmt.Println(collected)
}
