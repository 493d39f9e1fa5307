package cmd

import (
	"context"
	"fmt"
	"os"
)

// Compact compacts the state file to reclaim unused space
func Compact(_ context.Context, configFile string) {
	a := OpenApp(configFile)
	defer a.Close()

	path := a.Storage().Path()
	info, err := os.Stat(path)
	if err != nil {
		HandleError(err)
	}
	sizeBefore := info.Size()

	if err := a.Storage().Compact(); err != nil {
		HandleError(err)
	}

	info, err = os.Stat(path)
	if err != nil {
		HandleError(err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}
