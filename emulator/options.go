package emulator

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Options are free-form launcher options, typically decoded from a suite file.
// Getters are permissive: unknown keys are ignored and missing or mistyped
// values fall back to the default.
type Options map[string]any

// Well known option keys.
const (
	OptEmulatorID          = "emulator_id"
	OptPythonPath          = "python_path"
	OptLewisPath           = "lewis_path"
	OptLewisProtocol       = "lewis_protocol"
	OptLewisAdditionalPath = "lewis_additional_path"
	OptLewisPackage        = "lewis_package"
	OptSpeed               = "speed"
	OptDefaultTimeout      = "default_timeout"
	OptStartupTimeout      = "startup_timeout"
	OptCompressLogs        = "compress_logs"
	OptCommandLine         = "emulator_command_line"
	OptWaitToFinish        = "emulator_wait_to_finish"
	OptCwdEmulatorPath     = "emulator_cwd_emulator_path"
	OptBeckhoffRoot        = "beckhoff_root"
	OptDAQmxScriptsDir     = "daqmx_scripts_dir"
)

func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o Options) String(key, def string) string {
	switch v := o[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return def
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	default:
		return def
	}
}

func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return b
	case int:
		return v != 0
	default:
		return def
	}
}

func (o Options) Float(key string, def float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// Duration reads a number of seconds, a duration string such as "1m30s", or a
// time.Duration value.
func (o Options) Duration(key string, def time.Duration) time.Duration {
	switch v := o[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	if !o.Has(key) {
		return def
	}
	seconds := o.Float(key, -1)
	if seconds < 0 {
		return def
	}
	return time.Duration(seconds * float64(time.Second))
}

// StringSlice reads a list of strings. A single string is not a list.
func (o Options) StringSlice(key string) ([]string, bool) {
	switch v := o[key].(type) {
	case []string:
		return v, true
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			result = append(result, fmt.Sprint(item))
		}
		return result, true
	default:
		return nil, false
	}
}

// With returns a copy of o with key set to value.
func (o Options) With(key string, value any) Options {
	result := maps.Clone(o)
	if result == nil {
		result = Options{}
	}
	result[key] = value
	return result
}
