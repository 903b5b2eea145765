// Package spaceinfo reports free-disk information for the secret store
// directories.
package spaceinfo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/disk"
)

// Usage describes the disk holding path.
type Usage struct {
	Path        string
	TotalBytes  uint64
	FreeBytes   uint64
	UsedPercent float64
}

// GetUsage returns the disk usage statistics for the filesystem holding path.
func GetUsage(path string) (Usage, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	stat, err := disk.Usage(absPath)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to get disk usage for %s: %w", absPath, err)
	}

	return Usage{
		Path:        absPath,
		TotalBytes:  stat.Total,
		FreeBytes:   stat.Free,
		UsedPercent: stat.UsedPercent,
	}, nil
}

// CheckMinimumFree fails when the filesystem holding path has less than
// minimumFreeGB gigabytes available.
func CheckMinimumFree(path string, minimumFreeGB int) error {
	if minimumFreeGB <= 0 {
		return nil
	}

	usage, err := GetUsage(path)
	if err != nil {
		return err
	}

	required := uint64(minimumFreeGB) * 1024 * 1024 * 1024
	if usage.FreeBytes < required {
		return fmt.Errorf("not enough free space on %s: %d bytes free, %d required", usage.Path, usage.FreeBytes, required)
	}
	return nil
}

// CalculateDirectorySize calculates the total size of files within a directory.
func CalculateDirectorySize(path string) (size int64, err error) {
	err = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return
}
