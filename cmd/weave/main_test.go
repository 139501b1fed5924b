package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/weave"
	"github.com/deepnoodle-ai/weave/checkpoint"
	"github.com/deepnoodle-ai/weave/message"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

// setupEnv points config and checkpoints at temporary directories and
// returns the checkpoint directory.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WEAVE_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("WEAVE_CHECKPOINT_DIR", filepath.Join(dir, "executions"))
	t.Setenv("WEAVE_CHECKPOINTS", "true")
	t.Setenv("WEAVE_DEV_SERVER_URL", "")
	return filepath.Join(dir, "executions")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeScript(t *testing.T, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "greet.risor")
	require.NoError(t, os.WriteFile(path, []byte(code), 0644))
	return path
}

func TestParseInputs(t *testing.T) {
	props, err := parseInputs([]string{"name=ada", "count=3", "tags=[\"a\"]", "empty="})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"name":  "ada",
		"count": 3.0,
		"tags":  []any{"a"},
		"empty": "",
	}, props)

	_, err = parseInputs([]string{"novalue"})
	require.ErrorContains(t, err, "use key=value")
	_, err = parseInputs([]string{"=1"})
	require.Error(t, err)
}

func TestRunListTreeDelete(t *testing.T) {
	setupEnv(t)
	path := writeScript(t, `"hello " + props.name`)

	out, err := execute(t, "", "run", path, "-p", "name=ada", "--json")
	require.NoError(t, err)
	var result struct {
		ExecutionID string `json:"executionId"`
		Output      string `json:"output"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, "hello ada", result.Output)
	require.NotEmpty(t, result.ExecutionID)

	out, err = execute(t, "", "executions", "--json")
	require.NoError(t, err)
	var summaries []*checkpoint.ExecutionSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 1)
	require.Equal(t, result.ExecutionID, summaries[0].ExecutionID)
	require.Equal(t, "greet", summaries[0].WorkflowName)
	require.Equal(t, "completed", summaries[0].Status)

	out, err = execute(t, "", "tree", result.ExecutionID, "--output")
	require.NoError(t, err)
	require.Contains(t, out, "greet ("+result.ExecutionID+") completed")
	require.Contains(t, out, "└── greet ")
	require.Contains(t, out, "    └── greet.script ")
	require.Contains(t, out, `→ "hello ada"`)

	out, err = execute(t, "", "delete", result.ExecutionID)
	require.NoError(t, err)
	require.Contains(t, out, "Deleted "+result.ExecutionID)

	out, err = execute(t, "", "executions")
	require.NoError(t, err)
	require.Contains(t, out, "No executions")
}

func TestRunFailure(t *testing.T) {
	dir := setupEnv(t)
	path := writeScript(t, `undefined_value + 1`)

	_, err := execute(t, "", "run", path)
	require.Error(t, err)

	writer, err := checkpoint.NewFileWriter(dir)
	require.NoError(t, err)
	summaries, err := writer.ListExecutions(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "failed", summaries[0].Status)
}

func TestRunSafeRejectsOS(t *testing.T) {
	setupEnv(t)
	path := writeScript(t, `os.getenv("HOME")`)
	_, err := execute(t, "", "run", path, "--safe")
	require.ErrorContains(t, err, "undefined variable")
}

func TestRunMessagesThenReplay(t *testing.T) {
	setupEnv(t)
	path := writeScript(t, `props.count * 2`)

	stream, err := execute(t, "", "run", path, "-p", "count=21", "--messages")
	require.NoError(t, err)
	messages, err := message.ReadAll(strings.NewReader(stream))
	require.NoError(t, err)
	require.Equal(t, message.TypeStart, messages[0].Type())
	require.Equal(t, message.TypeEnd, messages[len(messages)-1].Type())

	out, err := execute(t, stream, "replay")
	require.NoError(t, err)
	require.Contains(t, out, "Replayed 6 messages (0 object updates)")
}

func TestReplayRebuildsObjects(t *testing.T) {
	setupEnv(t)
	var stream bytes.Buffer
	wf := weave.NewWorkflow("story", func(ctx context.Context, _ struct{}) (string, error) {
		text := ""
		for _, chunk := range []string{"Once", " upon", " a time"} {
			text += chunk
			if err := weave.PublishObject(ctx, "story", map[string]any{"text": text}); err != nil {
				return "", err
			}
		}
		return text, weave.PublishObject(ctx, "status", map[string]any{"done": true})
	})
	_, err := wf.Run(context.Background(), struct{}{}, weave.RunOptions{
		Sinks: []message.Sink{message.NewWriterSink(&stream)},
	})
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "messages.ndjson")
	require.NoError(t, os.WriteFile(file, stream.Bytes(), 0644))

	out, err := execute(t, "", "replay", file, "--json")
	require.NoError(t, err)
	var objects map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &objects))
	require.Equal(t, map[string]any{
		"story":  map[string]any{"text": "Once upon a time"},
		"status": map[string]any{"done": true},
	}, objects)

	out, err = execute(t, "", "replay", file, "--label", "story")
	require.NoError(t, err)
	require.Contains(t, out, "story:")
	require.NotContains(t, out, "status:")

	_, err = execute(t, "", "replay", file, "--label", "missing")
	require.ErrorContains(t, err, `no object labelled "missing"`)
}

func TestTreeFromFile(t *testing.T) {
	setupEnv(t)
	snapshot := &checkpoint.Snapshot{
		ExecutionID:  "exec-1",
		WorkflowName: "wf",
		StartedAt:    1000,
		UpdatedAt:    1500,
		Steps:        2,
		Root: &checkpoint.Node{
			ID:        checkpoint.RootID,
			StartTime: 1000,
			Children: []*checkpoint.Node{
				{ID: "a", ComponentName: "First", StartTime: 1000, EndTime: 1200, Metadata: map[string]any{"label": "intro"}},
				{ID: "b", ComponentName: "Second", StartTime: 1200},
			},
		},
	}
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(file, data, 0644))

	out, err := execute(t, "", "tree", "--file", file)
	require.NoError(t, err)
	require.Contains(t, out, "wf (exec-1) running 2 steps")
	require.Contains(t, out, "├── First 200ms [intro]")
	require.Contains(t, out, "└── Second running")

	_, err = execute(t, "", "tree")
	require.ErrorContains(t, err, "execution id or --file is required")
}
