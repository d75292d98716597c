// Package facts gathers system information from a board.
package facts

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/executor"
)

// Release files read for distribution details.
const (
	openWrtRelease = "/etc/openwrt_release"
	osRelease      = "/etc/os-release"
)

// Gather collects facts from the board. Individual facts that cannot be
// read are left out; only a cancelled context fails the call.
func Gather(ctx context.Context, exec *executor.Executor) (map[string]any, error) {
	facts := make(map[string]any)

	read := func(cmd commands.Command) (string, bool) {
		out, err := exec.Buffered(ctx, cmd)
		return out, err == nil && out != ""
	}

	if hostname, ok := read(commands.Hostname()); ok {
		facts["hostname"] = hostname
	}

	if osType, ok := read(commands.Uname("-s")); ok {
		facts["os_type"] = osType
	}

	if kernel, ok := read(commands.Uname("-r")); ok {
		facts["kernel"] = kernel
	}

	if arch, ok := read(commands.Uname("-m")); ok {
		facts["architecture"] = arch
		facts["arch"] = normalizeArch(arch)
	}

	if content, ok := read(commands.ReadFile(openWrtRelease)); ok {
		release := parseRelease(content)
		if v, ok := release["DISTRIB_ID"]; ok {
			facts["distribution"] = v
		}
		if v, ok := release["DISTRIB_RELEASE"]; ok {
			facts["distribution_version"] = v
		}
		if v, ok := release["DISTRIB_REVISION"]; ok {
			facts["firmware"] = v
		}
		if v, ok := release["DISTRIB_DESCRIPTION"]; ok {
			facts["os_name"] = v
		}
	} else if content, ok := read(commands.ReadFile(osRelease)); ok {
		release := parseRelease(content)
		if v, ok := release["ID"]; ok {
			facts["distribution"] = v
		}
		if v, ok := release["VERSION_ID"]; ok {
			facts["distribution_version"] = v
		}
		if v, ok := release["PRETTY_NAME"]; ok {
			facts["os_name"] = v
		}
	}

	if content, ok := read(commands.Uptime()); ok {
		if d, ok := parseUptime(content); ok {
			facts["uptime"] = d.String()
			facts["uptime_seconds"] = int64(d.Seconds())
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return facts, nil
}

// normalizeArch maps uname machine names to Go architecture names.
func normalizeArch(arch string) string {
	switch arch {
	case "x86_64", "amd64":
		return "amd64"
	case "aarch64", "arm64":
		return "arm64"
	case "armv7l":
		return "arm"
	case "mips", "mipsel":
		return "mipsle"
	default:
		return arch
	}
}

// parseRelease parses KEY=value release files.
func parseRelease(content string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok && key != "" {
			result[key] = strings.Trim(value, "\"'")
		}
	}
	return result
}

// parseUptime reads the first field of /proc/uptime.
func parseUptime(content string) (time.Duration, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return 0, false
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
