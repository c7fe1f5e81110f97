package stream

import "github.com/npipeline/NPipeline-sub013/core"

// newUnboundedItemChan bridges a synchronous sender to a synchronous
// receiver through a growable slice buffer, so a producer never blocks on
// a slow consumer's fixed-size channel. Used by Multicast subscribers
// configured with a non-positive buffer size ("unbounded").
func newUnboundedItemChan[T any]() (chan<- core.Item[T], <-chan core.Item[T]) {
	in := make(chan core.Item[T])
	out := make(chan core.Item[T])
	go func() {
		defer close(out)
		var buf []core.Item[T]
		for {
			if len(buf) == 0 {
				v, ok := <-in
				if !ok {
					return
				}
				buf = append(buf, v)
				continue
			}
			select {
			case v, ok := <-in:
				if !ok {
					for _, it := range buf {
						out <- it
					}
					return
				}
				buf = append(buf, v)
			case out <- buf[0]:
				buf = buf[1:]
			}
		}
	}()
	return in, out
}
