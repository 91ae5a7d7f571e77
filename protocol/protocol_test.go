package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptPath(t *testing.T) {
	assert.Equal(t, "/app/.runs/ab12cd34.py", ScriptPath("ab12cd34"))
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "codebox-1a2b3c4d5e6f", ContainerName("1a2b3c4d5e6f"))
}

func TestToolCallKeepsRawArguments(t *testing.T) {
	input := `{"name":"execute_python_code","arguments":{"container_id":"abc","code":"print(1)"}}`

	var call ToolCall
	require.NoError(t, json.Unmarshal([]byte(input), &call))

	assert.Equal(t, ToolExecuteCode, call.Name)
	assert.JSONEq(t, `{"container_id":"abc","code":"print(1)"}`, string(call.Arguments))
}

func TestToolResultEncodesNullResult(t *testing.T) {
	data, err := json.Marshal(ToolResult{Tool: ToolCreateEnv, Result: nil})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"create_python_env","result":null}`, string(data))
}
