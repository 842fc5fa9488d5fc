package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"k8s.io/client-go/util/jsonpath"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/bootstrap"
	"github.com/frobware/go-hostif/inspect"
	"github.com/frobware/go-hostif/resolver"
)

func formatJSON(v any) (string, error) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output) + "\n", nil
}

func newTable(buf *bytes.Buffer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

// formatStructured renders v as JSON or through a JSONPath expression.
// It reports false when the table format was asked for.
func formatStructured(v any, flags *OutputFlags) (string, bool, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		out, err := formatJSON(v)
		return out, true, err
	case OutputFormatJSONPath:
		out, err := formatJSONPath(v, flags.JSONPathExpr())
		return out, true, err
	default:
		return "", false, nil
	}
}

func formatJSONPath(v any, expr string) (string, error) {
	jp := jsonpath.New("output")
	if err := jp.Parse(expr); err != nil {
		return "", fmt.Errorf("invalid jsonpath expression %q: %w", expr, err)
	}

	// jsonpath walks generic values, so go through the JSON form.
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal: %w", err)
	}
	var data any
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal: %w", err)
	}

	var buf bytes.Buffer
	if err := jp.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("jsonpath execution failed: %w", err)
	}
	return buf.String() + "\n", nil
}

// objectColumns are the record fields shown for objects of type t.
func objectColumns(t hostif.ObjectType) []string {
	if t.External() {
		return []string{"label"}
	}
	return hostif.AttributeNames(t)
}

// objectRow renders the id and the named fields of obj. It works from
// the JSON form so every record type shares one renderer.
func objectRow(obj hostif.Object, columns []string) ([]string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	row := []string{obj.ObjectID().String()}
	for _, col := range columns {
		v, ok := fields[col]
		if !ok || v == nil {
			row = append(row, "-")
			continue
		}
		row = append(row, fmt.Sprint(v))
	}
	return row, nil
}

// FormatObjects renders objects of type t.
func FormatObjects(t hostif.ObjectType, objs []hostif.Object, flags *OutputFlags) (string, error) {
	if objs == nil {
		objs = []hostif.Object{}
	}
	if out, ok, err := formatStructured(objs, flags); ok {
		return out, err
	}
	columns := objectColumns(t)
	header := []string{"ID"}
	for _, col := range columns {
		header = append(header, strings.ToUpper(col))
	}
	var buf bytes.Buffer
	table := newTable(&buf, header)
	for _, obj := range objs {
		row, err := objectRow(obj, columns)
		if err != nil {
			return "", err
		}
		table.Append(row)
	}
	table.Render()
	return buf.String(), nil
}

// FormatObject renders a single object.
func FormatObject(obj hostif.Object, flags *OutputFlags) (string, error) {
	if out, ok, err := formatStructured(obj, flags); ok {
		return out, err
	}
	return FormatObjects(obj.ObjectID().Type(), []hostif.Object{obj}, flags)
}

// FormatDecision renders a dispatch decision.
func FormatDecision(d hostif.Decision, flags *OutputFlags) (string, error) {
	if out, ok, err := formatStructured(d, flags); ok {
		return out, err
	}
	var buf bytes.Buffer
	table := newTable(&buf, []string{"FIELD", "VALUE"})
	table.Append([]string{"attachment", d.Attachment.String()})
	table.Append([]string{"trap_type", d.TrapType.String()})
	table.Append([]string{"action", d.Action.String()})
	if !d.Trap.IsNull() {
		table.Append([]string{"trap", d.Trap.String()})
		table.Append([]string{"priority", fmt.Sprint(d.Priority)})
		table.Append([]string{"group", d.Group.String()})
		table.Append([]string{"queue", fmt.Sprint(d.Queue)})
	}
	if !d.Policer.IsNull() {
		table.Append([]string{"policer", d.Policer.String()})
	}
	table.Append([]string{"delivered", fmt.Sprint(d.Delivered)})
	if d.Delivered {
		table.Append([]string{"channel", d.Channel.String()})
		table.Append([]string{"entry", d.Entry.String()})
		table.Append([]string{"level", d.Level.String()})
		if !d.HostIf.IsNull() {
			table.Append([]string{"hostif", d.HostIf.String()})
		}
	}
	if d.Reason != "" {
		table.Append([]string{"reason", d.Reason})
	}
	table.Render()
	return buf.String(), nil
}

// FormatResolution renders a resolve result.
func FormatResolution(r hostif.Resolution, flags *OutputFlags) (string, error) {
	if out, ok, err := formatStructured(r, flags); ok {
		return out, err
	}
	out, err := FormatObject(r.Entry, flags)
	if err != nil {
		return "", err
	}
	return out + "matched at " + r.Level.String() + " level\n", nil
}

// FormatStats renders resolver counters.
func FormatStats(s resolver.Stats, flags *OutputFlags) (string, error) {
	if out, ok, err := formatStructured(s, flags); ok {
		return out, err
	}
	var buf bytes.Buffer
	table := newTable(&buf, []string{"COUNTER", "VALUE"})
	table.Append([]string{"lookups", fmt.Sprint(s.Lookups)})
	for _, level := range []hostif.MatchLevel{hostif.MatchLevelObject, hostif.MatchLevelTrapID, hostif.MatchLevelWildcard} {
		table.Append([]string{"matches." + level.String(), fmt.Sprint(s.Matches[level])})
	}
	for _, t := range []hostif.TableEntryType{hostif.TableEntryTypePort, hostif.TableEntryTypeLAG, hostif.TableEntryTypeVLAN, hostif.TableEntryTypeTrapID, hostif.TableEntryTypeWildcard} {
		table.Append([]string{"entries." + t.String(), fmt.Sprint(s.Entries[t])})
	}
	table.Render()
	return buf.String(), nil
}

// FormatApplied renders the local id to handle mapping of an apply, in
// creation order.
func FormatApplied(res bootstrap.Result, flags *OutputFlags) (string, error) {
	if out, ok, err := formatStructured(res.IDs, flags); ok {
		return out, err
	}
	byHandle := make(map[hostif.ObjectID]string, len(res.IDs))
	for local, id := range res.IDs {
		byHandle[id] = local
	}
	var buf bytes.Buffer
	table := newTable(&buf, []string{"ID", "HANDLE", "TYPE"})
	for _, id := range res.Created {
		local := byHandle[id]
		if local == "" {
			local = "-"
		}
		table.Append([]string{local, id.String(), id.Type().String()})
	}
	table.Render()
	return buf.String(), nil
}

// FormatWorld renders an inspection snapshot.
func FormatWorld(w *inspect.World, flags *OutputFlags) (string, error) {
	if out, ok, err := formatStructured(w, flags); ok {
		return out, err
	}
	var buf bytes.Buffer
	table := newTable(&buf, []string{"ID", "TYPE", "NAME", "HANDLE", "STORE", "OS"})
	for _, d := range w.Devices {
		handle, inStore, inOS := "-", "-", "-"
		if d.Handle != "" {
			handle = d.Handle
			inStore = presenceMark(d.Presence.InStore)
			inOS = presenceMark(d.Presence.InOS)
			if d.ProbeError != "" {
				inOS = "error"
			}
		}
		name := d.Name
		if name == "" {
			name = "-"
		}
		table.Append([]string{d.ID.String(), d.Type.String(), name, handle, inStore, inOS})
	}
	table.Render()
	return buf.String(), nil
}

func presenceMark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
