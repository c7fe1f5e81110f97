package npipeline

// SourceHandle, TransformHandle, and SinkHandle are the compile-time
// typed references AddSource/AddTransform/AddSink hand back. Out()/In()
// produce the ports Connect wires together; the port's type parameter is
// what makes Connect a compile error for a payload-type mismatch instead
// of a build()-time one.
type SourceHandle[Out any] struct{ id string }

func (h SourceHandle[Out]) ID() string        { return h.id }
func (h SourceHandle[Out]) Out() outPort[Out] { return outPort[Out]{id: h.id} }

type TransformHandle[In, Out any] struct{ id string }

func (h TransformHandle[In, Out]) ID() string        { return h.id }
func (h TransformHandle[In, Out]) In() inPort[In]    { return inPort[In]{id: h.id} }
func (h TransformHandle[In, Out]) Out() outPort[Out] { return outPort[Out]{id: h.id} }

type SinkHandle[In any] struct{ id string }

func (h SinkHandle[In]) ID() string     { return h.id }
func (h SinkHandle[In]) In() inPort[In] { return inPort[In]{id: h.id} }

type outPort[T any] struct{ id string }
type inPort[T any] struct{ id string }
