//go:build unix

package config

import (
	"fmt"
	"os"
)

// exposedTo reports who besides the owner can read path, or "" when nobody can.
func exposedTo(path string) (string, string) {
	info, err := os.Stat(path)
	if err != nil {
		return "", ""
	}
	mode := info.Mode().Perm()
	switch {
	case mode&0004 != 0:
		return fmt.Sprintf("all users (%04o)", mode), "chmod 600 " + path
	case mode&0070 != 0:
		return fmt.Sprintf("its group (%04o)", mode), "chmod 600 " + path
	}
	return "", ""
}
