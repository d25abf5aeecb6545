package lifepower

import (
	"log"
	"sync"
	"time"

	"github.com/rkjdid/util"
)

type PollerConfig struct {
	Interval    util.Duration // delay between refresh cycles
	HistorySize int           // snapshots kept for the monitoring host
}

// Polling every second makes some units spew protocol errors, 2s is the
// fastest interval observed to stay quiet.
var DefaultPollerConfig = PollerConfig{
	Interval:    util.Duration(2 * time.Second),
	HistorySize: 720,
}

// Poller serializes refresh cycles on one driver: one command in flight,
// one response awaited, never two cycles at once. It owns the retry
// cadence and reconnection, the driver itself never retries.
type Poller struct {
	driver *Driver
	cfg    *PollerConfig

	// Reconnect, when set, is called after a failed cycle on an offline
	// driver. It should return a fresh transport or an error.
	Reconnect func() (Transport, error)

	mu      sync.Mutex
	history []Snapshot
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewPoller(d *Driver, cfg *PollerConfig) *Poller {
	if cfg == nil {
		cfg = &DefaultPollerConfig
	}
	return &Poller{
		driver: d,
		cfg:    cfg,
	}
}

func (p *Poller) Driver() *Driver { return p.driver }

// History returns a copy of the retained snapshots, oldest first. Rate
// computations over it should skip ChargeCycles, the counter is
// cumulative and jumps on BMS resets.
func (p *Poller) History() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Snapshot, len(p.history))
	copy(out, p.history)
	return out
}

// Start launches the poll loop. To stop it, call Stop().
func (p *Poller) Start() {
	p.stopCh = make(chan struct{})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.stopCh:
				p.stopCh = nil
				return
			case <-time.After(time.Duration(p.cfg.Interval)):
			}

			err := p.driver.RefreshData()
			if err == nil {
				if sn, ok := p.driver.Snapshot(); ok {
					p.record(sn)
				}
				continue
			}
			log.Printf("in driver.RefreshData: %s", err)

			if p.driver.Online() || p.Reconnect == nil {
				continue
			}
			conn, err := p.Reconnect()
			if err != nil {
				// high-verbosity log
				continue
			}
			log.Printf("reconnected to address 0x%02x", p.driver.Address())
			p.driver.Conn = conn
		}
	}()
}

// Stop notifies the poll loop to stop and waits until it returns.
func (p *Poller) Stop() {
	if p.stopCh == nil {
		return
	}
	log.Println("stopping poller")
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Poller) record(sn Snapshot) {
	p.mu.Lock()
	p.history = append(p.history, sn)
	if max := p.cfg.HistorySize; max > 0 && len(p.history) > max {
		p.history = p.history[len(p.history)-max:]
	}
	p.mu.Unlock()
}
