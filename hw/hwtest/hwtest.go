// Package hwtest provides deterministic fakes for the hw abstractions:
// a hand-cranked clock, an alarm scheduler that fires on Advance, and
// software GPIO pins. Component tests drive time explicitly instead of
// sleeping.
package hwtest

import (
	"sort"
	"sync"

	"brewcode-go/hw"
)

// Clock is a manually advanced microsecond clock.
type Clock struct {
	mu sync.Mutex
	us int64
}

func NewClock() *Clock { return &Clock{} }

func (c *Clock) NowUs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.us
}

func (c *Clock) set(us int64) {
	c.mu.Lock()
	c.us = us
	c.mu.Unlock()
}

// Bench couples a Clock with a Scheduler so Advance fires due alarms at
// their exact due times.
type Bench struct {
	Clock *Clock
	Sched *Scheduler
}

func NewBench() *Bench {
	c := NewClock()
	return &Bench{Clock: c, Sched: newScheduler(c)}
}

// AdvanceUs moves time forward, firing alarms in due order.
func (b *Bench) AdvanceUs(d int64) { b.Sched.runUntil(b.Clock.NowUs() + d) }

// AdvanceMs is AdvanceUs in milliseconds.
func (b *Bench) AdvanceMs(d int64) { b.AdvanceUs(d * 1000) }

type alarm struct {
	id    hw.AlarmID
	dueUs int64
	seq   int64
	fn    hw.AlarmFunc
}

// Scheduler implements hw.AlarmScheduler against a manual clock.
type Scheduler struct {
	mu     sync.Mutex
	clk    *Clock
	nextID hw.AlarmID
	seq    int64
	queue  []*alarm
}

func newScheduler(clk *Clock) *Scheduler { return &Scheduler{clk: clk} }

func (s *Scheduler) AlarmInUs(delayUs int64, fn hw.AlarmFunc) hw.AlarmID {
	if delayUs < 0 {
		delayUs = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.seq++
	s.queue = append(s.queue, &alarm{
		id:    s.nextID,
		dueUs: s.clk.NowUs() + delayUs,
		seq:   s.seq,
		fn:    fn,
	})
	return s.nextID
}

func (s *Scheduler) Cancel(id hw.AlarmID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.queue {
		if a.id == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// Pending reports the number of armed alarms.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) runUntil(toUs int64) {
	for {
		s.mu.Lock()
		sort.SliceStable(s.queue, func(i, j int) bool {
			if s.queue[i].dueUs != s.queue[j].dueUs {
				return s.queue[i].dueUs < s.queue[j].dueUs
			}
			return s.queue[i].seq < s.queue[j].seq
		})
		var next *alarm
		if len(s.queue) > 0 && s.queue[0].dueUs <= toUs {
			next = s.queue[0]
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if next == nil {
			break
		}
		s.clk.set(next.dueUs)
		if again := next.fn(); again > 0 {
			s.mu.Lock()
			s.seq++
			next.dueUs += again
			next.seq = s.seq
			s.queue = append(s.queue, next)
			s.mu.Unlock()
		}
	}
	s.clk.set(toUs)
}

// Pin is a software IRQPin. Drive simulates an external level change and
// fires the registered IRQ handler on the matching edge.
type Pin struct {
	num     int
	level   bool
	pull    hw.Pull
	events  hw.Events
	handler func(hw.Events)
}

func (p *Pin) ConfigureInput(pull hw.Pull) error {
	p.pull = pull
	return nil
}

func (p *Pin) ConfigureOutput(initial bool) error {
	p.level = initial
	return nil
}

func (p *Pin) Set(level bool) { p.level = level }
func (p *Pin) Get() bool      { return p.level }
func (p *Pin) Number() int    { return p.num }

func (p *Pin) SetIRQ(events hw.Events, handler func(hw.Events)) error {
	p.events = events
	p.handler = handler
	return nil
}

func (p *Pin) ClearIRQ() error {
	p.events = 0
	p.handler = nil
	return nil
}

// Pull returns the configured input pull.
func (p *Pin) Pull() hw.Pull { return p.pull }

// Drive sets the pin level from outside, firing the IRQ handler when the
// resulting edge is subscribed.
func (p *Pin) Drive(level bool) {
	if p.level == level {
		return
	}
	p.level = level
	ev := hw.EventFall
	if level {
		ev = hw.EventRise
	}
	if p.handler != nil && p.events&ev != 0 {
		p.handler(ev)
	}
}

// Pins is a PinFactory over software pins, created on demand.
type Pins struct {
	mu sync.Mutex
	m  map[int]*Pin
}

func NewPins() *Pins { return &Pins{m: make(map[int]*Pin)} }

func (ps *Pins) ByNumber(n int) (hw.IRQPin, bool) {
	if n < 0 || n >= hw.NumPins {
		return nil, false
	}
	return ps.Pin(n), true
}

// Pin returns the software pin for n, creating it if needed.
func (ps *Pins) Pin(n int) *Pin {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, ok := ps.m[n]
	if !ok {
		p = &Pin{num: n}
		ps.m[n] = p
	}
	return p
}
