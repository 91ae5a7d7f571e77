// Package protocol defines the layout shared between the daemon and the
// sandbox containers, and the JSON envelopes of the tool invocation surface.
package protocol

import (
	"encoding/json"
	"path"
)

// ToolCall is the envelope accepted by the tool invocation endpoint when
// the tool name is carried in the body instead of the URL.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult is the envelope returned for a successful tool invocation.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// ToolInfo describes a registered tool for discovery.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Tool names exposed by the daemon.
const (
	ToolCreateEnv   = "create_python_env"
	ToolExecuteCode = "execute_python_code"
	ToolInstallPkg  = "install_package_in_env"
	ToolCheckPkg    = "check_package_status"
)

// MaxOutputBytes caps each captured stream of an execution.
const MaxOutputBytes = 5 * 1024 * 1024 // 5 MB

const LabelPrefix = "codebox."

// Container filesystem layout.
const (
	ContainerWorkDir   = "/app"
	ContainerOutputDir = ContainerWorkDir + "/results"
	ContainerRunDir    = ContainerWorkDir + "/.runs"
)

// StaticPrefix is the URL path under which session output files are served.
const StaticPrefix = "/static/"

// ScriptPath returns the in-container path of the script for one execution.
func ScriptPath(execID string) string {
	return path.Join(ContainerRunDir, execID+".py")
}

func ContainerName(sessionID string) string {
	return "codebox-" + sessionID
}
