//go:build windows

package config

import (
	"os/exec"
	"strings"
)

var broadPrincipals = []string{
	"everyone",
	"authenticated users",
	"builtin\\users",
}

// exposedTo reports which broad principal the ACL of path grants access to,
// or "" when none is listed or icacls is unavailable.
func exposedTo(path string) (string, string) {
	out, err := exec.Command("icacls", path).Output()
	if err != nil {
		return "", ""
	}
	acl := strings.ToLower(string(out))
	for _, p := range broadPrincipals {
		if strings.Contains(acl, p) {
			return p, `icacls "` + path + `" /inheritance:r /grant:r "%USERNAME%:F"`
		}
	}
	return "", ""
}
