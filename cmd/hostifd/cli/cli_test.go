package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/cmd/hostifd/cli"
)

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		input   string
		want    cli.Assignment
		wantErr bool
	}{
		{input: "queue=4", want: cli.Assignment{Name: "queue", Value: "4"}},
		{input: " admin_state = false ", want: cli.Assignment{Name: "admin_state", Value: "false"}},
		{input: "policer=", want: cli.Assignment{Name: "policer", Value: ""}},
		{input: "label=a=b", want: cli.Assignment{Name: "label", Value: "a=b"}},
		{input: "queue", wantErr: true},
		{input: "=4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := cli.ParseAssignment(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// hostifd runs one command line against the runtime directory dir and
// returns what it printed.
func hostifd(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := cli.CLI{Out: &out}
	parser, err := kong.New(&c, cli.KongOptions()...)
	require.NoError(t, err)
	base := []string{
		"--runtime-dir", filepath.Join(dir, "run"),
		"--config", filepath.Join(dir, "hostif.toml"),
	}
	kctx, err := parser.Parse(append(base, args...))
	if err != nil {
		return "", err
	}
	err = kctx.Run(&c)
	return out.String(), err
}

func mustHostifd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := hostifd(t, dir, args...)
	require.NoError(t, err, "hostifd %v", args)
	return out
}

// createdID parses the handle printed by -o jsonpath={.id}.
func createdID(t *testing.T, out string) hostif.ObjectID {
	t.Helper()
	id, err := hostif.ParseObjectID(strings.TrimSpace(out))
	require.NoError(t, err, out)
	return id
}

// TestCLI_LocalWorkflow verifies the object commands against a local
// runtime directory.
//
// Given an empty runtime directory,
// When a port, trap group, trap and trap_id entry are created one
// command at a time,
// Then every command sees the objects of the previous ones, dispatch
// delivers the trap through the entry, and removal in reverse order
// succeeds.
func TestCLI_LocalWorkflow(t *testing.T) {
	dir := t.TempDir()

	port := createdID(t, mustHostifd(t, dir, "create", "external", "port", "Ethernet0", "-o", "jsonpath={.id}"))
	assert.Equal(t, hostif.ObjectTypePort, port.Type())

	group := createdID(t, mustHostifd(t, dir, "create", "trap-group", "--queue", "4", "-o", "jsonpath={.id}"))
	trap := createdID(t, mustHostifd(t, dir, "create", "trap", "lldp", "--action", "trap", "--group", group.String(), "-o", "jsonpath={.id}"))
	entry := createdID(t, mustHostifd(t, dir, "create", "entry", "trap_id", "--trap", trap.String(), "--channel", "callback", "-o", "jsonpath={.id}"))

	table := mustHostifd(t, dir, "list", "trap_group")
	assert.Contains(t, table, "QUEUE")
	assert.Contains(t, table, group.String())

	var d hostif.Decision
	require.NoError(t, json.Unmarshal([]byte(mustHostifd(t, dir, "dispatch", port.String(), "lldp", "-o", "json")), &d))
	assert.True(t, d.Delivered)
	assert.Equal(t, entry, d.Entry)
	assert.Equal(t, uint32(4), d.Queue)

	mustHostifd(t, dir, "set", group.String(), "queue=7")
	assert.Contains(t, mustHostifd(t, dir, "get", group.String()), "7")
	assert.Equal(t, "7\n", mustHostifd(t, dir, "get", group.String(), "-o", "jsonpath={.queue}"))

	assert.Contains(t, mustHostifd(t, dir, "stats", "-o", "json"), `"lookups"`)
	assert.Contains(t, mustHostifd(t, dir, "inspect"), "HANDLE")

	_, err := hostifd(t, dir, "remove", trap.String())
	require.ErrorIs(t, err, hostif.ErrInUse)

	mustHostifd(t, dir, "remove", entry.String(), trap.String(), group.String(), port.String())
	out := mustHostifd(t, dir, "list", "trap", "-o", "json")
	assert.JSONEq(t, "[]", out)
}

// TestCLI_Apply verifies that apply creates a YAML document and prints
// the local ids with their handles.
func TestCLI_Apply(t *testing.T) {
	dir := t.TempDir()
	doc := `
externals:
  - id: eth0
    type: port
    label: Ethernet0
trap_groups:
  - id: default
    queue: 1
traps:
  - id: bgp
    trap_type: bgp
    packet_action: trap
    group: default
`
	path := filepath.Join(dir, "objects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out := mustHostifd(t, dir, "apply", path)
	for _, id := range []string{"eth0", "default", "bgp"} {
		assert.Contains(t, out, id)
	}

	var traps []hostif.Trap
	require.NoError(t, json.Unmarshal([]byte(mustHostifd(t, dir, "list", "trap", "-o", "json")), &traps))
	require.Len(t, traps, 1)
	assert.Equal(t, hostif.TrapTypeBGP, traps[0].TrapType)
}

func TestCLI_RejectsBadArguments(t *testing.T) {
	dir := t.TempDir()

	_, err := hostifd(t, dir, "get", "not-a-handle")
	assert.Error(t, err)

	_, err = hostifd(t, dir, "create", "trap", "no_such_trap", "--action", "trap", "--group", "oid:0x0")
	assert.Error(t, err)

	_, err = hostifd(t, dir, "set", hostif.MakeObjectID(hostif.ObjectTypeTrapGroup, 1, 1).String(), "queue")
	assert.Error(t, err)
}

func TestOutputFlags_Format(t *testing.T) {
	tests := []struct {
		output string
		want   cli.OutputFormat
		expr   string
	}{
		{"table", cli.OutputFormatTable, ""},
		{"json", cli.OutputFormatJSON, ""},
		{"jsonpath={.id}", cli.OutputFormatJSONPath, "{.id}"},
		{"jsonpath=", cli.OutputFormatTable, ""},
		{"yaml", cli.OutputFormatTable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			f := cli.OutputFlags{Output: tt.output}
			assert.Equal(t, tt.want, f.Format())
			assert.Equal(t, tt.expr, f.JSONPathExpr())
		})
	}
}

func TestFormatObject_BadJSONPath(t *testing.T) {
	port := hostif.External{ID: hostif.MakeObjectID(hostif.ObjectTypePort, 1, 0), Label: "Ethernet0"}
	_, err := cli.FormatObject(port, &cli.OutputFlags{Output: "jsonpath={.id"})
	assert.Error(t, err)

	out, err := cli.FormatObject(port, &cli.OutputFlags{Output: "jsonpath={.label}"})
	require.NoError(t, err)
	assert.Equal(t, "Ethernet0\n", out)
}
