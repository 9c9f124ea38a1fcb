package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"fand/internal/fancontrol"
	"fand/internal/sensors"
	"fand/internal/thermal"
)

// DefaultPidfile is used when neither the file nor the command line name one.
const DefaultPidfile = "/var/run/fand.pid"

// PidfileNone turns the instance lock off.
const PidfileNone = "none"

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Pidfile string        `yaml:"pidfile"`
	Sensors SensorsConfig `yaml:"sensors"`
	Fan     FanConfig     `yaml:"fan"`
	Control ControlConfig `yaml:"control"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type SensorsConfig struct {
	Source   string               `yaml:"source"`
	Sysctl   SysctlSensorConfig   `yaml:"sysctl"`
	Thermal  ThermalSensorConfig  `yaml:"thermal"`
	DS18B20  DS18B20SensorConfig  `yaml:"ds18b20"`
	Gopsutil GopsutilSensorConfig `yaml:"gopsutil"`
}

type SysctlSensorConfig struct {
	CountSysctl string `yaml:"count_sysctl"`
	NameFormat  string `yaml:"name_format"`
}

type ThermalSensorConfig struct {
	Glob  string   `yaml:"glob"`
	Types []string `yaml:"types"`
}

type DS18B20SensorConfig struct {
	IDs []string `yaml:"ids"`
}

type GopsutilSensorConfig struct {
	Prefixes []string `yaml:"prefixes"`
}

type FanConfig struct {
	Backend  string         `yaml:"backend"`
	MaxLevel int            `yaml:"max_level"`
	ACPIIBM  ACPIIBMConfig  `yaml:"acpi_ibm"`
	Thinkpad ThinkpadConfig `yaml:"thinkpad"`
	PWM      PWMConfig      `yaml:"pwm"`
	GPIO     GPIOConfig     `yaml:"gpio"`
}

type ACPIIBMConfig struct {
	FanSysctl   string `yaml:"fan_sysctl"`
	LevelSysctl string `yaml:"level_sysctl"`
}

type ThinkpadConfig struct {
	Path string `yaml:"path"`
	// Watchdog is in seconds; 0 disables it.
	Watchdog int `yaml:"watchdog"`
}

type PWMConfig struct {
	Pin       int `yaml:"pin"`
	Frequency int `yaml:"frequency"`
	DutyMin   int `yaml:"duty_min"`
}

type GPIOConfig struct {
	Pin int `yaml:"pin"`
}

type ControlConfig struct {
	Interval time.Duration `yaml:"interval"`
	Curve    []CurvePoint  `yaml:"curve"`
}

// CurvePoint selects Level once the hottest sensor is above TempC.
type CurvePoint struct {
	TempC int `yaml:"temp_c"`
	Level int `yaml:"level"`
}

type MetricsConfig struct {
	// Listen is the HTTP address for /metrics and /api/status; empty disables.
	Listen string `yaml:"listen"`
}

// Default returns a validated config with every default applied.
func Default() Config {
	var cfg Config
	if err := DefaultAndValidate(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return Config{}, fmt.Errorf("config contains unknown or invalid fields: %v", te)
		}
		return Config{}, err
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var (
	sensorSources = []string{sensors.SourceAuto, sensors.SourceSysctl, sensors.SourceThermal, sensors.SourceDS18B20, sensors.SourceGopsutil}
	fanBackends   = []string{fancontrol.BackendAuto, fancontrol.BackendACPIIBM, fancontrol.BackendThinkpad, fancontrol.BackendPWM, fancontrol.BackendGPIO}
)

// DefaultAndValidate fills in defaults and rejects values the daemon cannot
// run with. It is applied again after environment overrides.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %v", err)
	}
	if cfg.Pidfile == "" {
		cfg.Pidfile = DefaultPidfile
	}

	// Sensors.
	if cfg.Sensors.Source == "" {
		cfg.Sensors.Source = sensors.SourceAuto
	}
	if !slices.Contains(sensorSources, cfg.Sensors.Source) {
		return fmt.Errorf("sensors.source must be one of %v", sensorSources)
	}
	if cfg.Sensors.Sysctl.CountSysctl == "" {
		cfg.Sensors.Sysctl.CountSysctl = sensors.DefaultCountSysctl
	}
	if cfg.Sensors.Sysctl.NameFormat == "" {
		cfg.Sensors.Sysctl.NameFormat = sensors.DefaultNameFormat
	}
	if cfg.Sensors.Thermal.Glob == "" {
		cfg.Sensors.Thermal.Glob = sensors.DefaultThermalGlob
	}
	if len(cfg.Sensors.Gopsutil.Prefixes) == 0 {
		cfg.Sensors.Gopsutil.Prefixes = append([]string(nil), sensors.DefaultGopsutilPrefixes...)
	}

	// Fan.
	if cfg.Fan.Backend == "" {
		cfg.Fan.Backend = fancontrol.BackendAuto
	}
	if !slices.Contains(fanBackends, cfg.Fan.Backend) {
		return fmt.Errorf("fan.backend must be one of %v", fanBackends)
	}
	if cfg.Fan.MaxLevel == 0 {
		cfg.Fan.MaxLevel = int(fancontrol.DefaultMaxLevel)
	}
	if cfg.Fan.MaxLevel < 0 {
		return fmt.Errorf("fan.max_level must be > 0")
	}
	if cfg.Fan.ACPIIBM.FanSysctl == "" {
		cfg.Fan.ACPIIBM.FanSysctl = fancontrol.DefaultACPIIBMFanSysctl
	}
	if cfg.Fan.ACPIIBM.LevelSysctl == "" {
		cfg.Fan.ACPIIBM.LevelSysctl = fancontrol.DefaultACPIIBMLevelSysctl
	}
	if cfg.Fan.Thinkpad.Path == "" {
		cfg.Fan.Thinkpad.Path = fancontrol.DefaultThinkpadFanPath
	}
	if cfg.Fan.Thinkpad.Watchdog < 0 || cfg.Fan.Thinkpad.Watchdog > 120 {
		return fmt.Errorf("fan.thinkpad.watchdog must be 0..120")
	}
	if cfg.Fan.PWM.Pin == 0 {
		cfg.Fan.PWM.Pin = fancontrol.DefaultPWMPin
	}
	if cfg.Fan.PWM.Frequency == 0 {
		cfg.Fan.PWM.Frequency = fancontrol.DefaultPWMFrequency
	}
	if cfg.Fan.PWM.Frequency < 0 {
		return fmt.Errorf("fan.pwm.frequency must be > 0")
	}
	if cfg.Fan.PWM.DutyMin < 0 || cfg.Fan.PWM.DutyMin > 100 {
		return fmt.Errorf("fan.pwm.duty_min must be 0..100")
	}
	if cfg.Fan.GPIO.Pin == 0 {
		cfg.Fan.GPIO.Pin = fancontrol.DefaultPWMPin
	}

	// Control.
	if cfg.Control.Interval == 0 {
		cfg.Control.Interval = fancontrol.DefaultInterval
	}
	if cfg.Control.Interval < 0 {
		return fmt.Errorf("control.interval must be > 0")
	}
	if len(cfg.Control.Curve) == 0 {
		for _, s := range fancontrol.DefaultTable().Steps() {
			cfg.Control.Curve = append(cfg.Control.Curve, CurvePoint{TempC: s.Threshold.Celsius(), Level: int(s.Level)})
		}
	}
	if _, err := cfg.Table(); err != nil {
		return fmt.Errorf("control.curve: %v", err)
	}

	return nil
}

// LockEnabled reports whether a pidfile guards against a second instance.
func (cfg Config) LockEnabled() bool {
	return cfg.Pidfile != PidfileNone
}

// Table builds the threshold table from control.curve.
func (cfg Config) Table() (fancontrol.Table, error) {
	steps := make([]fancontrol.Step, 0, len(cfg.Control.Curve))
	for _, p := range cfg.Control.Curve {
		steps = append(steps, fancontrol.Step{Threshold: thermal.FromCelsius(p.TempC), Level: fancontrol.Level(p.Level)})
	}
	return fancontrol.NewTable(steps, fancontrol.Level(cfg.Fan.MaxLevel))
}

func (cfg Config) SensorsConfig() sensors.Config {
	return sensors.Config{
		Source:      cfg.Sensors.Source,
		CountSysctl: cfg.Sensors.Sysctl.CountSysctl,
		NameFormat:  cfg.Sensors.Sysctl.NameFormat,
		Glob:        cfg.Sensors.Thermal.Glob,
		Types:       cfg.Sensors.Thermal.Types,
		IDs:         cfg.Sensors.DS18B20.IDs,
		Prefixes:    cfg.Sensors.Gopsutil.Prefixes,
	}
}

func (cfg Config) BackendConfig() fancontrol.BackendConfig {
	return fancontrol.BackendConfig{
		Backend:            cfg.Fan.Backend,
		MaxLevel:           fancontrol.Level(cfg.Fan.MaxLevel),
		ACPIIBMFanSysctl:   cfg.Fan.ACPIIBM.FanSysctl,
		ACPIIBMLevelSysctl: cfg.Fan.ACPIIBM.LevelSysctl,
		ThinkpadPath:       cfg.Fan.Thinkpad.Path,
		ThinkpadWatchdog:   cfg.Fan.Thinkpad.Watchdog,
		PWMPin:             cfg.Fan.PWM.Pin,
		PWMFrequency:       cfg.Fan.PWM.Frequency,
		PWMDutyMin:         cfg.Fan.PWM.DutyMin,
		GPIOPin:            cfg.Fan.GPIO.Pin,
	}
}

// ApplyEnv overrides selected fields from FAND_* variables. lookup is
// os.LookupEnv outside of tests.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("FAND_LOG_LEVEL", &cfg.Log.Level)
	str("FAND_LOG_FILE", &cfg.Log.File)
	str("FAND_PIDFILE", &cfg.Pidfile)
	str("FAND_SENSORS_SOURCE", &cfg.Sensors.Source)
	str("FAND_FAN_BACKEND", &cfg.Fan.Backend)
	str("FAND_METRICS_LISTEN", &cfg.Metrics.Listen)

	if v, ok := lookup("FAND_FAN_MAX_LEVEL"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FAND_FAN_MAX_LEVEL: %v", err)
		}
		cfg.Fan.MaxLevel = n
	}
	if v, ok := lookup("FAND_CONTROL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FAND_CONTROL_INTERVAL: %v", err)
		}
		cfg.Control.Interval = d
	}
	return DefaultAndValidate(cfg)
}
