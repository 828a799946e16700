package server

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pulse runs registered tasks from a single goroutine at fixed
// intervals. The instancing engine is not goroutine-safe, so every
// periodic job that touches it registers here and runs serialized.
type Pulse struct {
	logger *zap.Logger
	tasks  []pulseTask
	final  func()
	stop   chan struct{}
	done   chan struct{}
}

type pulseTask struct {
	name     string
	interval time.Duration
	run      func()
}

// NewPulse creates an empty pulse loop.
//
// Precondition: logger must be non-nil.
func NewPulse(logger *zap.Logger) *Pulse {
	return &Pulse{
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Every schedules fn to run once per interval. Tasks never run
// concurrently with each other; a tick that arrives while another task
// is running waits its turn.
//
// Precondition: interval must be positive. Must be called before Start.
func (p *Pulse) Every(name string, interval time.Duration, fn func()) {
	p.tasks = append(p.tasks, pulseTask{name: name, interval: interval, run: fn})
}

// OnStop registers fn to run after the loop has drained, before Stop
// returns. Used for the final state save.
func (p *Pulse) OnStop(fn func()) {
	p.final = fn
}

// Start runs the pulse loop until Stop is called.
func (p *Pulse) Start() error {
	fire := make(chan int)
	var wg sync.WaitGroup
	for i, task := range p.tasks {
		wg.Add(1)
		go func(i int, interval time.Duration) {
			defer wg.Done()
			tick := time.NewTicker(interval)
			defer tick.Stop()
			for {
				select {
				case <-tick.C:
					select {
					case fire <- i:
					case <-p.stop:
						return
					}
				case <-p.stop:
					return
				}
			}
		}(i, task.interval)
	}
	p.logger.Info("pulse loop started", zap.Int("tasks", len(p.tasks)))

	for {
		select {
		case i := <-fire:
			p.tasks[i].run()
		case <-p.stop:
			wg.Wait()
			close(p.done)
			return nil
		}
	}
}

// Stop ends the pulse loop, waits for any in-flight task, and runs the
// OnStop hook.
func (p *Pulse) Stop() {
	close(p.stop)
	<-p.done
	if p.final != nil {
		p.final()
	}
}
