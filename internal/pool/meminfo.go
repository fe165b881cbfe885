package pool

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// fallbackTotalMemory is assumed when system memory cannot be detected.
const fallbackTotalMemory = 8 << 30 // 8 GiB

// totalSystemMemory returns total system memory in bytes, read from
// /proc/meminfo on Linux. Platforms without it get the fallback; the
// memory budget is a soft limit, so a conservative guess is fine.
func totalSystemMemory() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return fallbackTotalMemory
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			break
		}
		return kb * 1024
	}
	return fallbackTotalMemory
}
