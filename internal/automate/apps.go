package automate

import "strings"

// appAliases maps spoken application names to what the platform launcher
// actually understands. Unknown names are launched literally, best effort.
var appAliases = map[string]string{
	"chrome":             "chrome",
	"google chrome":      "chrome",
	"edge":               "msedge",
	"microsoft edge":     "msedge",
	"firefox":            "firefox",
	"notepad":            "notepad",
	"calculator":         "calc",
	"calc":               "calc",
	"explorer":           "explorer",
	"file explorer":      "explorer",
	"vscode":             "code",
	"vs code":            "code",
	"visual studio code": "code",
	"cmd":                "cmd",
	"command prompt":     "cmd",
	"powershell":         "powershell",
	"terminal":           "cmd",
	"task manager":       "taskmgr",
	"paint":              "mspaint",
	"spotify":            "spotify",
	"discord":            "discord",
}

// ResolveApp maps a spoken name to a launch target.
func ResolveApp(name string) string {
	if target, ok := appAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return target
	}
	return strings.TrimSpace(name)
}
