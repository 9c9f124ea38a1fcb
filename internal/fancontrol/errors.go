package fancontrol

import "github.com/pkg/errors"

// Error kinds. Every failure in the control path is fatal; the kind tells the
// caller which stage broke.
var (
	ErrDiscovery     = errors.New("sensor discovery failed")
	ErrSensorRead    = errors.New("sensor read failed")
	ErrActuatorWrite = errors.New("actuator write failed")
	ErrOwnership     = errors.New("fan ownership change failed")
)

// OpError ties an underlying OS error to the failing operation and its kind.
//
// errors.Is(err, ErrSensorRead) matches on the kind; errors.Unwrap yields the
// OS error.
type OpError struct {
	Kind error
	Op   string
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Is(target error) bool { return target == e.Kind }

func opError(kind error, op string, err error) error {
	return &OpError{Kind: kind, Op: op, Err: err}
}

// DiscoveryError wraps a sensor enumeration failure.
func DiscoveryError(op string, err error) error {
	return opError(ErrDiscovery, op, err)
}
