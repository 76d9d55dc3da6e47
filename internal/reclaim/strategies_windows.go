//go:build windows

package reclaim

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// defaultStrategies is the Windows eviction chain, most reliable first:
// unpin via attrib, set the Offline attribute through PowerShell, then ask
// the sync agent to free the parent folder.
func defaultStrategies() []Strategy {
	return []Strategy{
		&CommandStrategy{
			StrategyName: "attrib_unpin",
			Timeout:      10 * time.Second,
			Settle:       2 * time.Second,
			Command: func(path string) (string, []string) {
				return "attrib", []string{"+U", "-P", path}
			},
		},
		&CommandStrategy{
			StrategyName: "powershell_offline_attr",
			Timeout:      15 * time.Second,
			Settle:       2 * time.Second,
			Command: func(path string) (string, []string) {
				script := fmt.Sprintf(
					`$attribs = [System.IO.FileAttributes]::Archive -bor [System.IO.FileAttributes]::Offline; `+
						`Set-ItemProperty -LiteralPath %q -Name Attributes -Value $attribs`, path)
				return "powershell", []string{"-NoProfile", "-Command", script}
			},
		},
		&CommandStrategy{
			StrategyName: "agent_free_space",
			Timeout:      15 * time.Second,
			Settle:       5 * time.Second,
			Command: func(path string) (string, []string) {
				agent := filepath.Join(os.Getenv("LOCALAPPDATA"), "Microsoft", "OneDrive", "OneDrive.exe")
				return agent, []string{"/FreeSpace:" + filepath.Dir(path)}
			},
		},
	}
}
