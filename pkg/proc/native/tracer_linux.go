package native

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// tracerPid returns the pid of the process tracing pid, 0 if the process
// is not being traced.
// TracerPid is the id of the tracing thread, which is mapped to the
// thread group it belongs to.
func tracerPid(pid int) (int, error) {
	tid, err := statusField(pid, "TracerPid")
	if err != nil || tid == 0 {
		return tid, err
	}
	tgid, err := statusField(tid, "Tgid")
	if err != nil {
		return 0, err
	}
	return tgid, nil
}

// statusField returns the numeric value of field in /proc/<pid>/status.
func statusField(pid int, field string) (int, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	prefix := field + ":"
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("malformed %s line in /proc/%d/status: %s", field, pid, line)
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, fmt.Errorf("failed to parse %s value: %w", field, err)
		}
		return v, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%s field not found in /proc/%d/status", field, pid)
}
