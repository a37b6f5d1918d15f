package iccom

import (
	"testing"
	"time"
)

func TestDispatcherSchedulesDeliveryAsynchronously(t *testing.T) {
	rx := NewRXStore()
	msg := rx.CreateMessage(1)
	rx.AppendToMessage(1, msg.ID, []byte("go"), true)
	rx.CommitAll()

	delivered := make(chan []byte, 1)
	rx.SetChannelCallback(1, func(channel Channel, data []byte, opaque interface{}) bool {
		delivered <- data
		return true
	}, nil)

	d := NewDispatcher(rx)
	defer d.Close()
	d.Schedule()

	select {
	case got := <-delivered:
		if string(got) != "go" {
			t.Fatalf("got %q, want %q", got, "go")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher did not deliver the ready message in time")
	}
}

func TestDispatcherCloseJoinsWorker(t *testing.T) {
	rx := NewRXStore()
	d := NewDispatcher(rx)
	d.Schedule()
	d.Close() // must return once the worker goroutine has exited
}
