package fancontrol

import (
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// OwnershipState tracks whether this process controls the fan.
type OwnershipState int

const (
	NotOwned OwnershipState = iota
	Owned
)

func (s OwnershipState) String() string {
	if s == Owned {
		return "owned"
	}
	return "not-owned"
}

// Ownership is the guard returned by AcquireOwnership.
//
// Release hands fan control back to the firmware and removes the instance
// lock exactly once, no matter how many times or from which goroutine it is
// called. It never looks at control loop state.
type Ownership struct {
	gw   *Gateway
	lock io.Closer
	log  *log.Entry

	mu    sync.Mutex
	state OwnershipState

	once       sync.Once
	releaseErr error
}

// AcquireOwnership takes fan control (unless gw is in dry-run mode) and
// returns the guard that undoes it. lock may be nil; it is closed by Release,
// or immediately when acquisition fails.
func AcquireOwnership(gw *Gateway, lock io.Closer) (*Ownership, error) {
	if gw == nil {
		return nil, errors.New("fancontrol: gateway is nil")
	}
	o := &Ownership{
		gw:   gw,
		lock: lock,
		log:  log.WithField("component", "ownership"),
	}
	if gw.DryRun() {
		o.log.Info("dry-run: leaving fan under firmware control")
		return o, nil
	}
	if err := gw.AcquireFanOwnership(); err != nil {
		if lock != nil {
			if cerr := lock.Close(); cerr != nil {
				o.log.WithError(cerr).Warn("could not remove lock file")
			}
		}
		return nil, err
	}
	o.mu.Lock()
	o.state = Owned
	o.mu.Unlock()
	o.log.Info("took over fan control")
	return o, nil
}

func (o *Ownership) State() OwnershipState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Release is safe to call any number of times; later calls return the first
// call's result.
func (o *Ownership) Release() error {
	if o == nil {
		return nil
	}
	o.once.Do(func() {
		var result error

		o.mu.Lock()
		owned := o.state == Owned
		o.state = NotOwned
		o.mu.Unlock()

		if owned {
			if err := o.gw.ReleaseFanOwnership(); err != nil {
				result = multierror.Append(result, err)
			} else {
				o.log.Info("handed fan control back to firmware")
			}
		}
		if o.lock != nil {
			if err := o.lock.Close(); err != nil {
				result = multierror.Append(result, errors.Wrap(err, "could not remove lock file"))
			}
		}
		o.releaseErr = result
	})
	return o.releaseErr
}
