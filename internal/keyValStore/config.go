package keyValStore

import (
	"errors"
	"os"

	"github.com/shirou/gopsutil/disk"
)

func (sc *StoreConfig) checkConfig() error {
	if len(sc.Paths) == 0 {
		return errors.New("no path provided in configuration")
	}

	path := sc.Paths[0] // currently only the first path is utilized
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.New("path does not exist")
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("path is not a directory")
	}

	usage, err := disk.Usage(path)
	if err != nil {
		return err
	}

	freeGB := usage.Free / (1024 * 1024 * 1024)
	if int(freeGB) < sc.MinimumFreeSpace {
		return errors.New("not enough space available on disk")
	}

	return nil
}
