package askwarren

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
)

// StorageLimit is the vault capacity of each user, 5 GB.
const StorageLimit int64 = 5 * 1024 * 1024 * 1024

// ErrQuotaExceeded is returned when an upload would not fit in the user's vault.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// CheckQuota verifies that adding size bytes to used stays within StorageLimit.
func CheckQuota(used, size int64) error { return CheckQuotaLimit(used, size, StorageLimit) }

// CheckQuotaLimit verifies that adding size bytes to used stays within limit.
func CheckQuotaLimit(used, size, limit int64) error {
	if used+size > limit {
		return fmt.Errorf("%w (%s + %s)", ErrQuotaExceeded, FormatBytes(used), FormatBytes(size))
	}
	return nil
}

// StoragePercent returns the share of StorageLimit in use, capped at 100.
func StoragePercent(used int64) float64 {
	return math.Min(float64(used)/float64(StorageLimit)*100, 100)
}

// UsedStorage sums the size of the records.
func UsedStorage(files []FileRecord) (total int64) {
	for _, f := range files {
		total += f.Size
	}
	return total
}

var byteUnits = []string{"B", "KB", "MB", "GB"}

// FormatBytes renders a size with binary units and at most two decimals, e.g. "1.5 MB".
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	// every unit is 10 bits wider than the previous one
	i := min((bits.Len64(uint64(bytes))-1)/10, len(byteUnits)-1)
	v := float64(bytes) / math.Pow(1024, float64(i))
	// round to 2 decimals then print the shortest form, dropping trailing zeros
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[i]
}
