// Package stream is the dataflow substrate: typed, lazy, cancellation-aware
// asynchronous sequences ("pipes") and the handful of variants the executor
// composes graphs out of (in-memory, streaming, counting, multicast,
// capped-replayable), plus the Box/Unbox adapters that erase a typed pipe
// to Pipe[any] (the wire type the graph executor moves between nodes) and
// restore it on the other side.
package stream

import (
	"github.com/npipeline/NPipeline-sub013/core"
)

// Pipe and Item are aliased from core so call sites can spell them as
// stream.Pipe[T]/stream.Item[T]; core owns the canonical definitions
// because the SourceNode/TransformNode/SinkNode interfaces reference them
// and must not import stream (stream already depends on core for the
// error taxonomy used by CappedReplayable and Counting).
type Pipe[T any] = core.Pipe[T]
type Item[T any] = core.Item[T]
