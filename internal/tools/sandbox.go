package tools

import (
	"context"
	"encoding/json"

	"github.com/p-arndt/codebox/internal/session"
	"github.com/p-arndt/codebox/protocol"
)

// SandboxService is the session manager as used by the sandbox tools.
type SandboxService interface {
	Create(ctx context.Context) (*session.SessionInfo, error)
	Execute(ctx context.Context, id, code string, timeoutMs int) (*session.ExecResult, error)
	StartInstall(ctx context.Context, id, pkg string) (*session.InstallStatus, error)
	CheckInstall(ctx context.Context, id, pkg string) (*session.InstallStatus, error)
}

const createEnvSchema = `{
  "type": "object",
  "additionalProperties": false
}`

const executeCodeSchema = `{
  "type": "object",
  "properties": {
    "container_id": {"type": "string", "minLength": 1},
    "code": {"type": "string"},
    "timeout_ms": {"type": "integer", "minimum": 0}
  },
  "required": ["container_id", "code"],
  "additionalProperties": false
}`

const packageSchema = `{
  "type": "object",
  "properties": {
    "container_id": {"type": "string", "minLength": 1},
    "package_name": {"type": "string", "minLength": 1, "maxLength": 200}
  },
  "required": ["container_id", "package_name"],
  "additionalProperties": false
}`

type EnvResult struct {
	ContainerID string `json:"container_id"`
	Message     string `json:"message"`
}

type executeArgs struct {
	ContainerID string `json:"container_id"`
	Code        string `json:"code"`
	TimeoutMs   int    `json:"timeout_ms"`
}

type packageArgs struct {
	ContainerID string `json:"container_id"`
	PackageName string `json:"package_name"`
}

// NewSandboxRegistry registers the four sandbox tools backed by svc.
func NewSandboxRegistry(svc SandboxService) (*Registry, error) {
	r := NewRegistry()

	err := r.Register(protocol.ToolCreateEnv,
		"Creates a new Python container and returns its ID for subsequent operations. Takes no arguments. Idle containers are removed after one hour.",
		createEnvSchema,
		func(ctx context.Context, _ json.RawMessage) (any, error) {
			info, err := svc.Create(ctx)
			if err != nil {
				return nil, err
			}
			return EnvResult{
				ContainerID: info.ID,
				Message:     "Python environment created",
			}, nil
		})
	if err != nil {
		return nil, err
	}

	err = r.Register(protocol.ToolExecuteCode,
		"Executes Python code in a container and returns stdout, stderr, the exit code and links to files written under the working directory.",
		executeCodeSchema,
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args executeArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return svc.Execute(ctx, args.ContainerID, args.Code, args.TimeoutMs)
		})
	if err != nil {
		return nil, err
	}

	err = r.Register(protocol.ToolInstallPkg,
		"Starts installing a Python package into a container in the background and returns immediately. Poll check_package_status for the outcome.",
		packageSchema,
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args packageArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return svc.StartInstall(ctx, args.ContainerID, args.PackageName)
		})
	if err != nil {
		return nil, err
	}

	err = r.Register(protocol.ToolCheckPkg,
		"Reports the installation status of a package in a container: installing, success or failed.",
		packageSchema,
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args packageArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return svc.CheckInstall(ctx, args.ContainerID, args.PackageName)
		})
	if err != nil {
		return nil, err
	}

	return r, nil
}
