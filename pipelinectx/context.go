// Package pipelinectx implements the per-run property surface the graph
// executor hands to every node: three string-keyed bags (parameters fixed
// at run start, items mutated as nodes execute, properties reporting
// execution metadata back out), a run id, a disposables list unwound in
// reverse registration order, and a small pool so repeated short-lived
// runs do not allocate a fresh set of maps every time.
package pipelinectx

import (
	"sync"

	"github.com/google/uuid"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/internal/telemetry"
)

// Disposable is released, in reverse registration order, when a Context's
// Dispose runs. Builder-registered lambda nodes that hold a resource
// (a file handle, a connection) implement this to be cleaned up without
// the caller having to track them separately.
type Disposable interface {
	Dispose() error
}

// Context is the concrete PipelineProperties implementation threaded
// through a single pipeline run.
type Context struct {
	RunID uuid.UUID

	Parameters *Bag
	Items      *Bag
	Properties *Bag

	Logger telemetry.Logger

	disposablesMu sync.Mutex
	disposables   []Disposable

	// pooled{Parameters,Items,Properties} are the bags this Context owns
	// and returns to the pool on release. Parameters/Items/Properties may
	// be swapped to point at a caller-supplied Bag instead (see
	// WithExternalParameters and friends); release restores the pooled
	// ones regardless, so a Context never leaves the pool holding someone
	// else's Bag.
	pooledParameters *Bag
	pooledItems      *Bag
	pooledProperties *Bag

	externalParameters bool
	externalItems      bool
	externalProperties bool
}

// Option configures a Context at construction.
type Option func(*Context)

func WithParameters(params map[string]any) Option {
	return func(c *Context) { c.Parameters.reset(params) }
}

func WithLogger(l telemetry.Logger) Option {
	return func(c *Context) { c.Logger = l }
}

func WithRunID(id uuid.UUID) Option {
	return func(c *Context) { c.RunID = id }
}

// WithExternalParameters points Parameters at a caller-owned Bag instead
// of the Context's pool-managed one. Dispose leaves an externally-owned
// bag untouched: it is not cleared and not returned to the pool, so the
// caller can reuse it (or its contents) across runs.
func WithExternalParameters(b *Bag) Option {
	return func(c *Context) {
		c.Parameters = b
		c.externalParameters = true
	}
}

// WithExternalItems is WithExternalParameters for the Items bag.
func WithExternalItems(b *Bag) Option {
	return func(c *Context) {
		c.Items = b
		c.externalItems = true
	}
}

// WithExternalProperties is WithExternalParameters for the Properties bag.
func WithExternalProperties(b *Bag) Option {
	return func(c *Context) {
		c.Properties = b
		c.externalProperties = true
	}
}

// New builds a run-scoped Context. Call Dispose when the run finishes to
// release its disposables and return its bags to the pool.
func New(opts ...Option) *Context {
	c := acquire()
	c.RunID = uuid.New()
	c.Logger = telemetry.Nop()
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Context) Parameter(key string) (any, bool)  { return c.Parameters.Get(key) }
func (c *Context) Item(key string) (any, bool)       { return c.Items.Get(key) }
func (c *Context) SetItem(key string, value any)     { c.Items.Set(key, value) }
func (c *Context) Property(key string) (any, bool)   { return c.Properties.Get(key) }
func (c *Context) SetProperty(key string, value any) { c.Properties.Set(key, value) }

// AddDisposable registers d to be released when the Context is disposed.
func (c *Context) AddDisposable(d Disposable) {
	c.disposablesMu.Lock()
	defer c.disposablesMu.Unlock()
	c.disposables = append(c.disposables, d)
}

// Dispose releases every registered Disposable in reverse order,
// collecting (not short-circuiting on) individual errors, then returns
// the Context's own bags to the pool. Any bag supplied via
// WithExternalParameters/WithExternalItems/WithExternalProperties is left
// untouched — not cleared, not pooled. The Context must not be used again
// after Dispose returns.
func (c *Context) Dispose() []error {
	c.disposablesMu.Lock()
	toClose := c.disposables
	c.disposables = nil
	c.disposablesMu.Unlock()

	var errs []error
	for i := len(toClose) - 1; i >= 0; i-- {
		if err := toClose[i].Dispose(); err != nil {
			c.Logger.Warn("disposable cleanup failed")
			errs = append(errs, err)
		}
	}
	release(c)
	return errs
}

var _ core.PipelineProperties = (*Context)(nil)

var pool = sync.Pool{
	New: func() any {
		params, items, props := newBag(), newBag(), newBag()
		return &Context{
			Parameters:       params,
			Items:            items,
			Properties:       props,
			pooledParameters: params,
			pooledItems:      items,
			pooledProperties: props,
		}
	},
}

func acquire() *Context {
	return pool.Get().(*Context)
}

// release clears and restores the Context's own bags unconditionally, and
// drops any externally-supplied bag reference without touching it, before
// returning the Context to the pool.
func release(c *Context) {
	c.pooledParameters.clear()
	c.Parameters = c.pooledParameters
	c.externalParameters = false

	c.pooledItems.clear()
	c.Items = c.pooledItems
	c.externalItems = false

	c.pooledProperties.clear()
	c.Properties = c.pooledProperties
	c.externalProperties = false

	c.disposables = nil
	pool.Put(c)
}
