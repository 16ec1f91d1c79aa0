package user_agent

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"slices"
)

// DeviceType is the coarse device category stored with every view event.
type DeviceType string

const (
	DeviceDesktop DeviceType = "DESKTOP"
	DeviceMobile  DeviceType = "MOBILE"
	DeviceTablet  DeviceType = "TABLET"
	DeviceBot     DeviceType = "BOT"
	DeviceOther   DeviceType = "OTHER"
)

// ErrUnknownDeviceType is returned when a stored code does not map to a DeviceType.
var ErrUnknownDeviceType = errors.New("unknown device type")

// AllDeviceTypes lists every category in display order.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{DeviceDesktop, DeviceMobile, DeviceTablet, DeviceBot, DeviceOther}
}

// ParseDeviceType maps a stored code back to a DeviceType.
func ParseDeviceType(code string) (DeviceType, error) {
	if d := DeviceType(code); slices.Contains(AllDeviceTypes(), d) {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDeviceType, code)
}

func (d DeviceType) String() string {
	return string(d)
}

// Valid reports whether d is one of the known categories.
func (d DeviceType) Valid() bool {
	_, err := ParseDeviceType(string(d))
	return err == nil
}

// Scan implements sql.Scanner. Unknown codes fail hard instead of being coerced.
func (d *DeviceType) Scan(value any) error {
	var code string
	switch v := value.(type) {
	case string:
		code = v
	case []byte:
		code = string(v)
	case nil:
		return fmt.Errorf("%w: NULL", ErrUnknownDeviceType)
	default:
		return fmt.Errorf("%w: unsupported column type %T", ErrUnknownDeviceType, value)
	}

	parsed, err := ParseDeviceType(code)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d DeviceType) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeviceType, string(d))
	}
	return string(d), nil
}
