package iccom

import "sync"

// Consumer dispatch (C7). A single cooperative worker, pinned off the
// transport critical path, that drains finalized RX messages and invokes
// per-channel callbacks. Modeled on the teacher's USOCK read loop pattern
// (a dedicated goroutine, a stop channel, a WaitGroup join on Close) but
// woken on demand rather than polling a device.
type Dispatcher struct {
	rx     *RXStore
	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewDispatcher(rx *RXStore) *Dispatcher {
	d := &Dispatcher{
		rx:     rx,
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Schedule wakes the worker if it is idle; redundant wakes while one is
// already pending are dropped.
func (d *Dispatcher) Schedule() {
	select {
	case d.wakeCh <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			return
		case <-d.wakeCh:
			d.rx.DeliverReadyToConsumers()
		}
	}
}

// Close cancels the worker and joins it before returning, so no consumer
// callback is still running once the RX store is torn down.
func (d *Dispatcher) Close() {
	close(d.stopCh)
	d.wg.Wait()
}
