// Package wlt polls the platform's workload-type-index sysfs node and
// classifies it into a small enum via its low two bits.
package wlt

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/socpowerhintd/internal/errors"
)

const sysfsDir = "/sys/devices/pci0000:00/0000:00:04.0/workload_hint"

// DefaultPath is the workload_type_index node this daemon targets.
const DefaultPath = sysfsDir + "/workload_type_index"

// enablePath and delayPath are vars rather than consts so tests can point
// them at fixtures instead of real sysfs.
var (
	enablePath = sysfsDir + "/workload_hint_enable"
	delayPath  = sysfsDir + "/notification_delay_ms"
)

// ensureEnabled makes sure the kernel feature is on, writing 1 if the node
// currently reads 0. Either a read or a write failure is fatal for this
// monitor, per spec.
func ensureEnabled() error {
	errFactory := errors.New()

	data, err := os.ReadFile(enablePath)
	if err != nil {
		return errFactory.Wrap(errors.ErrSysfsRead, err)
	}

	if strings.TrimSpace(string(data)) == "0" {
		if err := os.WriteFile(enablePath, []byte("1\n"), 0o644); err != nil {
			return errFactory.Wrap(errors.ErrSysfsWrite, err)
		}
	}

	return nil
}

// setNotificationDelay writes delayMs to the sysfs notification-delay node
// when delayMs is non-negative; a negative value means "leave at default".
func setNotificationDelay(delayMs int) error {
	if delayMs < 0 {
		return nil
	}

	errFactory := errors.New()
	payload := fmt.Sprintf("%d\n", delayMs)
	if err := os.WriteFile(delayPath, []byte(payload), 0o644); err != nil {
		return errFactory.Wrap(errors.ErrSysfsWrite, err)
	}

	return nil
}

func readValue(path string) (int32, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrSysfsRead, err)
	}

	text := strings.TrimSpace(string(data))
	v, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrSysfsParse, err)
	}

	return int32(v), nil
}
