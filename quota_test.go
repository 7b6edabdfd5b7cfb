package askwarren

import (
	"errors"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024 * 3 / 2, "1.5 MB"},
		{StorageLimit, "5 GB"},
		{StorageLimit * 1024, "5120 GB"},
	}
	for _, tc := range testCases {
		if got := FormatBytes(tc.bytes); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}

func TestCheckQuota(t *testing.T) {
	if err := CheckQuota(StorageLimit-10, 10); err != nil {
		t.Errorf("CheckQuota(limit) = %v, want nil", err)
	}
	if err := CheckQuota(StorageLimit-10, 11); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("CheckQuota(limit+1) = %v, want ErrQuotaExceeded", err)
	}
}

func TestStoragePercent(t *testing.T) {
	if got := StoragePercent(StorageLimit / 2); got != 50 {
		t.Errorf("StoragePercent(half) = %v, want 50", got)
	}
	if got := StoragePercent(StorageLimit * 2); got != 100 {
		t.Errorf("StoragePercent(double) = %v, want 100", got)
	}
	if got := UsedStorage([]FileRecord{{Size: 3}, {Size: 4}}); got != 7 {
		t.Errorf("UsedStorage() = %d, want 7", got)
	}
}
