package metric_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/clipengine/metric"
)

func TestMeter(t *testing.T) {
	sampleRate := 44100.0
	pint := 1
	// test cases
	var tests = []struct {
		component          interface{}
		routines           int
		buffers            int
		bufferSize         int
		expectedFrames     string
		expectedComponents string
	}{
		{
			component:          int(1),
			routines:           2,
			buffers:            10,
			bufferSize:         100,
			expectedFrames:     "2000",
			expectedComponents: "2",
		},
		{
			component:          &pint,
			routines:           2,
			buffers:            10,
			bufferSize:         100,
			expectedFrames:     "4000",
			expectedComponents: "4",
		},
	}
	// function to test meter.
	testFn := func(m *metric.Meter, wg *sync.WaitGroup, buffers int, bufferSize int) {
		for i := 0; i < buffers; i++ {
			m.Tick(bufferSize)
			m.Commands(1)
		}
		m.QueueFull()
		wg.Done()
	}

	for _, c := range tests {
		wg := &sync.WaitGroup{}
		wg.Add(c.routines)
		for i := 0; i < c.routines; i++ {
			go testFn(metric.New(c.component, sampleRate), wg, c.buffers, c.bufferSize)
		}
		// check if no data race.
		wg.Wait()
		values := metric.Get(c.component)
		assert.Equal(t, c.expectedFrames, values[metric.FrameCounter])
		assert.Equal(t, c.expectedComponents, values[metric.ComponentCounter])
	}
	all := metric.GetAll()
	assert.Equal(t, "40", all["int"][metric.TickCounter])
	assert.Equal(t, "4", all["int"][metric.QueueFullCounter])
}

func TestNilMeter(t *testing.T) {
	var m *metric.Meter
	m.Tick(100)
	m.Commands(1)
	m.Coalesced(1)
	m.Deferred(1)
	m.QueueFull()
}
