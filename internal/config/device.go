package config

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceSpec is the requested GPU allocation. Either Auto > 0 (select any
// Auto free devices) or IDs lists explicit device indices. Locking and
// selecting the devices is the trainer's job.
type DeviceSpec struct {
	Auto int
	IDs  []int
}

// AutoDevices requests n free devices.
func AutoDevices(n int) DeviceSpec {
	return DeviceSpec{Auto: n}
}

// ParseDeviceSpec parses "auto_N" or a comma-separated list of device
// indices such as "0,1,3".
func ParseDeviceSpec(raw string) (DeviceSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DeviceSpec{}, fmt.Errorf("empty device specification")
	}
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "auto_"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return DeviceSpec{}, fmt.Errorf("%q: auto_N requires a positive integer N", raw)
		}
		return DeviceSpec{Auto: n}, nil
	}

	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	seen := make(map[int]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		id, err := strconv.Atoi(part)
		if err != nil || id < 0 {
			return DeviceSpec{}, fmt.Errorf("%q: expected auto_N or a comma-separated list of device indices", raw)
		}
		if _, dup := seen[id]; dup {
			return DeviceSpec{}, fmt.Errorf("%q: device %d listed twice", raw, id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return DeviceSpec{IDs: ids}, nil
}

// IsAuto reports whether devices are picked by the trainer.
func (d DeviceSpec) IsAuto() bool {
	return d.Auto > 0
}

// Count is the number of devices requested.
func (d DeviceSpec) Count() int {
	if d.IsAuto() {
		return d.Auto
	}
	return len(d.IDs)
}

// Validate checks the invariants ParseDeviceSpec guarantees, for values
// built in code.
func (d DeviceSpec) Validate() error {
	_, err := ParseDeviceSpec(d.String())
	if err == nil && d.Auto > 0 && len(d.IDs) > 0 {
		err = fmt.Errorf("auto allocation and explicit devices are mutually exclusive")
	}
	return err
}

func (d DeviceSpec) String() string {
	if d.IsAuto() {
		return "auto_" + strconv.Itoa(d.Auto)
	}
	parts := make([]string, len(d.IDs))
	for i, id := range d.IDs {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// MarshalText renders the canonical form used in experiment files.
func (d DeviceSpec) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses the canonical form.
func (d *DeviceSpec) UnmarshalText(text []byte) error {
	parsed, err := ParseDeviceSpec(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
