// Package metric publishes counters of processing columns with expvar.
// Counters are aggregated per component type, so all columns of the same
// type share them.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dudk/clipengine/signal"
)

const componentsLabel = "clipengine.components"

const (
	// TickCounter measures number of processing cycles.
	TickCounter = "Ticks"
	// FrameCounter measures number of processed frames.
	FrameCounter = "Frames"
	// LatencyCounter measures latency between processing cycles.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of processed signal.
	DurationCounter = "Duration"
	// CommandCounter counts applied commands.
	CommandCounter = "Commands"
	// CoalescedCounter counts position events which weren't delivered.
	CoalescedCounter = "Coalesced"
	// DeferredCounter counts critical events postponed to the next cycle.
	DeferredCounter = "Deferred"
	// QueueFullCounter counts commands rejected because queue was full.
	QueueFullCounter = "QueueFull"
	// ComponentCounter counts number of metered components.
	ComponentCounter = "Components"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		TickCounter,
		FrameCounter,
		LatencyCounter,
		DurationCounter,
		CommandCounter,
		CoalescedCounter,
		DeferredCounter,
		QueueFullCounter,
		ComponentCounter,
	}
)

// Get metrics values for provided component type.
func Get(component interface{}) map[string]string {
	return getCounters(getType(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// Meter captures counters of one component. Nil meter discards
// everything. Tick must be called from a single goroutine, other methods
// are safe for concurrent use.
type Meter struct {
	metric
	sampleRate float64

	calledAt       time.Time
	frames         int
	bufferDuration time.Duration
}

// New registers the component and returns its meter.
func New(component interface{}, sampleRate float64) *Meter {
	metric := components.get(getType(component))
	metric.components.Add(1)
	return &Meter{
		metric:     metric,
		sampleRate: sampleRate,
	}
}

// Tick captures processing cycle of frames.
func (m *Meter) Tick(frames int) {
	if m == nil {
		return
	}
	now := time.Now()
	if !m.calledAt.IsZero() {
		m.latency.set(now.Sub(m.calledAt))
	}
	m.calledAt = now
	m.ticks.Add(1)
	m.samples.Add(int64(frames))
	// recalculate buffer duration only when buffer size has changed
	if m.frames != frames && m.sampleRate > 0 {
		m.frames = frames
		m.bufferDuration = signal.DurationOf(m.sampleRate, int64(frames))
	}
	m.duration.add(m.bufferDuration)
}

// Commands captures applied commands.
func (m *Meter) Commands(n int) {
	if m == nil || n == 0 {
		return
	}
	m.commands.Add(int64(n))
}

// Coalesced captures undelivered position events.
func (m *Meter) Coalesced(n int) {
	if m == nil || n == 0 {
		return
	}
	m.coalesced.Add(int64(n))
}

// Deferred captures postponed critical events.
func (m *Meter) Deferred(n int) {
	if m == nil || n == 0 {
		return
	}
	m.deferred.Add(int64(n))
}

// QueueFull captures rejected command.
func (m *Meter) QueueFull() {
	if m == nil {
		return
	}
	m.queueFull.Add(1)
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	key        string
	components *expvar.Int
	ticks      *expvar.Int
	samples    *expvar.Int
	commands   *expvar.Int
	coalesced  *expvar.Int
	deferred   *expvar.Int
	queueFull  *expvar.Int
	latency    *duration
	duration   *duration
}

func newMetric(componentType string) metric {
	m := metric{
		key:        componentType,
		components: expvar.NewInt(key(componentType, ComponentCounter)),
		ticks:      expvar.NewInt(key(componentType, TickCounter)),
		samples:    expvar.NewInt(key(componentType, FrameCounter)),
		commands:   expvar.NewInt(key(componentType, CommandCounter)),
		coalesced:  expvar.NewInt(key(componentType, CoalescedCounter)),
		deferred:   expvar.NewInt(key(componentType, DeferredCounter)),
		queueFull:  expvar.NewInt(key(componentType, QueueFullCounter)),
		latency:    &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), m.latency)
	expvar.Publish(key(componentType, DurationCounter), m.duration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

func getType(component interface{}) string {
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%v", time.Duration(atomic.LoadInt64(&v.d)))
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
