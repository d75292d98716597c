// Package commands builds the literal command lines understood by the board.
//
// Every builder is pure: the same input always yields the same argv. The
// strings are part of the device contract and must not change.
package commands

import (
	"strings"
)

// Command is a device command as an argument vector.
type Command []string

// String joins the arguments with single spaces, the form used in logs and tests.
func (c Command) String() string {
	return strings.Join(c, " ")
}

// Shell renders the command for transports that hand a single line to a shell.
func (c Command) Shell() string {
	quoted := make([]string, len(c))
	for i, arg := range c {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

const (
	wifiIface = "wireless.@wifi-iface[0]"
	wifiDev   = `{"device":"wlan0"}`
)

// EnsureFileExists creates path if it is missing without touching its content.
func EnsureFileExists(path string) Command {
	return Command{"touch", path}
}

// ReadFile prints the content of path.
func ReadFile(path string) Command {
	return Command{"cat", path}
}

// AppendStdinToFile appends everything written to stdin onto path.
func AppendStdinToFile(path string) Command {
	return Command{"sh", "-c", "cat >> " + path}
}

// SetNetworkSSID stages the SSID of the station interface.
func SetNetworkSSID(ssid string) Command {
	return Command{"uci", "set", wifiIface + ".ssid=" + ssid}
}

// SetNetworkPassword stages the pre-shared key.
func SetNetworkPassword(password string) Command {
	return Command{"uci", "set", wifiIface + ".key=" + password}
}

// SetNetworkEncryption stages the encryption mode (psk2, none, wpa2, ...).
func SetNetworkEncryption(encryption string) Command {
	return Command{"uci", "set", wifiIface + ".encryption=" + encryption}
}

// CommitWirelessCredentials persists staged wireless settings.
func CommitWirelessCredentials() Command {
	return Command{"uci", "commit", "wireless"}
}

// ReconnectWifi reloads the wireless stack with the committed settings.
func ReconnectWifi() Command {
	return Command{"wifi"}
}

// TurnOnWifi stages the radio state; enabled=false stages it as disabled.
func TurnOnWifi(enabled bool) Command {
	disabled := "1"
	if enabled {
		disabled = "0"
	}
	return Command{"uci", "set", wifiIface + ".disabled=" + disabled}
}

// TurnOffWifi stages the radio as disabled.
func TurnOffWifi() Command {
	return TurnOnWifi(false)
}

// GetWifiInfo queries the station interface; its output carries a "signal"
// field once the board is associated.
func GetWifiInfo() Command {
	return Command{"ubus", "call", "iwinfo", "info", wifiDev}
}

// ScanWifi lists visible networks as JSON.
func ScanWifi() Command {
	return Command{"ubus", "call", "iwinfo", "scan", wifiDev}
}

// WriteStdinToFile replaces the content of path with everything read from stdin.
func WriteStdinToFile(path string) Command {
	return Command{"sh", "-c", "cat > " + shellQuote(path)}
}

// PathExists prints "yes" when path exists and nothing otherwise.
func PathExists(path string) Command {
	return Command{"sh", "-c", "test -e " + shellQuote(path) + " && echo yes || true"}
}

// Script runs a shell script on the board.
func Script(script string) Command {
	return Command{"sh", "-c", script}
}

// Hostname prints the board's hostname.
func Hostname() Command {
	return Command{"cat", "/proc/sys/kernel/hostname"}
}

// Uname prints one field of uname, selected by flag (-r, -m, -s).
func Uname(flag string) Command {
	return Command{"uname", flag}
}

// Uptime prints /proc/uptime.
func Uptime() Command {
	return Command{"cat", "/proc/uptime"}
}

// EncryptionFor derives the encryption mode for a set of credentials.
// An explicit security wins; otherwise a non-empty password means psk2 and
// no password means an open network.
func EncryptionFor(password *string, security string) string {
	if security != "" {
		return security
	}
	if password != nil && *password != "" {
		return "psk2"
	}
	return "none"
}

// shellQuote quotes a string for safe use in shell commands.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	// Use single quotes and escape any single quotes in the string
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./=:,+@%", r)
}
