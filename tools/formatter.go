package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Format renders a successful tool result as chat text. The tool family is
// chosen by name prefix. It never panics; anything it cannot render falls
// back to fmt.Sprint.
func Format(toolName string, data any) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = fmt.Sprint(data)
		}
	}()

	switch {
	case strings.HasPrefix(toolName, "product."):
		return formatProducts(toResult(data))
	case strings.HasPrefix(toolName, "opsgenie."):
		if s, ok := data.(string); ok && s != "" {
			return s
		}
		return formatOpsGenie(toResult(data))
	case strings.HasPrefix(toolName, "wikipedia."):
		return formatWikipedia(toResult(data))
	case strings.HasPrefix(toolName, "confluence."):
		if s, ok := data.(string); ok {
			return s
		}
		return PrettyJSON(data)
	default:
		return PrettyJSON(data)
	}
}

// PrettyJSON indents v with two spaces, without HTML escaping.
func PrettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func toResult(data any) gjson.Result {
	switch v := data.(type) {
	case json.RawMessage:
		return gjson.ParseBytes(v)
	case []byte:
		return gjson.ParseBytes(v)
	}
	b, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	return gjson.ParseBytes(b)
}

// text renders a scalar the way it reads in chat: numbers without exponent,
// strings unquoted, missing values empty.
func text(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return ""
	case gjson.Number:
		return strconv.FormatFloat(r.Num, 'f', -1, 64)
	case gjson.String:
		return r.Str
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	default:
		return r.Raw
	}
}

func isErrorStatus(r gjson.Result) bool {
	return r.IsObject() && r.Get("status").String() == "error"
}

func formatProducts(res gjson.Result) string {
	var items []gjson.Result
	switch {
	case res.IsArray():
		items = res.Array()
	case isErrorStatus(res):
		return "Error: " + text(res.Get("message"))
	case res.Get("products").IsArray():
		items = res.Get("products").Array()
	default:
		items = []gjson.Result{res}
	}

	if len(items) == 0 {
		return "No products found."
	}

	entries := make([]string, 0, len(items))
	for _, p := range items {
		entry := fmt.Sprintf("%s - $%s", text(p.Get("name")), text(p.Get("price")))
		if desc := text(p.Get("description")); desc != "" {
			entry += "\n" + desc
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, "\n\n")
}

func formatOpsGenie(res gjson.Result) string {
	if isErrorStatus(res) {
		return "Error: " + text(res.Get("message"))
	}

	var b strings.Builder

	alerts := res.Get("alerts")
	switch {
	case alerts.IsArray() && len(alerts.Array()) > 0:
		list := alerts.Array()
		fmt.Fprintf(&b, "Here are the current alerts (Total: %d):\n\n", len(list))
		for i, alert := range list {
			id := text(alert.Get("tinyId"))
			if id == "" {
				id = text(alert.Get("id"))
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, text(alert.Get("message")))
			fmt.Fprintf(&b, "   - ID: #%s\n", id)
			fmt.Fprintf(&b, "   - Priority: %s\n", text(alert.Get("priority")))
			fmt.Fprintf(&b, "   - Status: %s\n", text(alert.Get("status")))
			if tags := alert.Get("tags").Array(); len(tags) > 0 {
				names := make([]string, 0, len(tags))
				for _, tag := range tags {
					names = append(names, text(tag))
				}
				fmt.Fprintf(&b, "   - Tags: %s\n", strings.Join(names, ", "))
			}
			if desc := text(alert.Get("description")); desc != "" {
				fmt.Fprintf(&b, "   - Description: %s\n", desc)
			}
			b.WriteString("\n")
		}
	case alerts.Exists() && alerts.Type != gjson.Null:
		b.WriteString("No alerts found.\n")
	}

	if schedules := res.Get("schedules").Array(); len(schedules) > 0 {
		b.WriteString("\nSchedules:\n")
		for _, s := range schedules {
			state := "Disabled"
			if s.Get("enabled").Bool() {
				state = "Enabled"
			}
			fmt.Fprintf(&b, "- %s (%s)\n", text(s.Get("name")), state)
			if team := text(s.Get("ownerTeam.name")); team != "" {
				fmt.Fprintf(&b, "  Team: %s\n", team)
			}
		}
	}

	if participants := res.Get("onCallParticipants").Array(); len(participants) > 0 {
		b.WriteString("\nOn-Call Participants:\n")
		for _, p := range participants {
			b.WriteString("- " + text(p.Get("name")))
			if schedule := text(p.Get("scheduleName")); schedule != "" {
				fmt.Fprintf(&b, " (Schedule: %s)", schedule)
			}
			b.WriteString("\n")
		}
	}

	if out := strings.TrimSpace(b.String()); out != "" {
		return out
	}
	if msg := text(res.Get("message")); msg != "" {
		return msg
	}
	return "No results found"
}

func formatWikipedia(res gjson.Result) string {
	if isErrorStatus(res) {
		return "Error: " + text(res.Get("message"))
	}
	title, content := text(res.Get("title")), text(res.Get("content"))
	if title == "" {
		return content
	}
	return title + "\n\n" + content
}
