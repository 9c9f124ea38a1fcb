package fancontrol

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultThinkpadFanPath is the thinkpad_acpi procfs fan interface.
const DefaultThinkpadFanPath = "/proc/acpi/ibm/fan"

var procWriteFn = writeSysfs

// thinkpadFan drives the Linux thinkpad_acpi fan. The driver only accepts
// level commands when loaded with fan_control=1. An armed watchdog makes the
// EC fall back to auto mode if the daemon dies without releasing.
type thinkpadFan struct {
	path     string
	watchdog int
	log      *log.Entry
}

type thinkpadStatus struct {
	Status   string
	Speed    int
	Level    string
	Commands []string
}

func newThinkpadFan(path string, watchdog int) (*thinkpadFan, error) {
	if path == "" {
		path = DefaultThinkpadFanPath
	}
	if watchdog < 0 || watchdog > 120 {
		return nil, errors.Errorf("thinkpad watchdog %d out of range 0..120", watchdog)
	}
	return &thinkpadFan{path: path, watchdog: watchdog, log: log.WithField("component", "thinkpad")}, nil
}

func readThinkpadStatus(path string) (thinkpadStatus, error) {
	f, err := os.Open(path)
	if err != nil {
		return thinkpadStatus{}, err
	}
	defer f.Close()

	var st thinkpadStatus
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "status":
			st.Status = val
		case "speed":
			st.Speed, _ = strconv.Atoi(val)
		case "level":
			st.Level = val
		case "commands":
			st.Commands = append(st.Commands, val)
		}
	}
	return st, sc.Err()
}

func (st thinkpadStatus) acceptsLevel() bool {
	for _, c := range st.Commands {
		if strings.HasPrefix(c, "level ") {
			return true
		}
	}
	return false
}

func (t *thinkpadFan) TakeControl() error {
	st, err := readThinkpadStatus(t.path)
	if err != nil {
		return errors.Wrapf(err, "read %s", t.path)
	}
	if !st.acceptsLevel() {
		return errors.Errorf("%s does not accept level commands (load thinkpad_acpi with fan_control=1)", t.path)
	}
	t.log.Infof("firmware fan state: status=%s level=%s speed=%d", st.Status, st.Level, st.Speed)
	if t.watchdog > 0 {
		if err := procWriteFn(t.path, "watchdog "+strconv.Itoa(t.watchdog)); err != nil {
			return errors.Wrapf(err, "arm watchdog on %s", t.path)
		}
	}
	return nil
}

func (t *thinkpadFan) SetLevel(level Level) error {
	if level < 0 || level > 7 {
		return errors.Errorf("thinkpad fan level %d out of range 0..7", level)
	}
	return errors.Wrapf(procWriteFn(t.path, "level "+strconv.Itoa(int(level))), "write %s", t.path)
}

func (t *thinkpadFan) ReleaseControl() error {
	var result error
	if err := procWriteFn(t.path, "level auto"); err != nil {
		result = multierror.Append(result, errors.Wrapf(err, "write %s", t.path))
	}
	if t.watchdog > 0 {
		if err := procWriteFn(t.path, "watchdog 0"); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "disarm watchdog on %s", t.path))
		}
	}
	return result
}
