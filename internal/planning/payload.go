package planning

import (
	"bytes"
	"encoding/json"

	"github.com/stratplan/companion/internal/model"
)

// payloadKeys are checked in order inside each nested payload.
var payloadKeys = []string{"tarefas_refinadas", "tarefas"}

// ExtractTasks returns the refined tasks carried by a planning record, or nil
// when none are present yet. Scope is checked before SpecificObjectives. Each
// field may hold a JSON string that itself encodes JSON, or an inline object.
// Malformed payloads are treated as "no data yet".
func ExtractTasks(p *model.Planning) []model.Task {
	if p == nil {
		return nil
	}

	for _, raw := range []json.RawMessage{p.Scope, p.SpecificObjectives} {
		if tasks := tasksFromField(raw); len(tasks) > 0 {
			return tasks
		}
	}
	return nil
}

func tasksFromField(raw json.RawMessage) []model.Task {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	// String-encoded payloads are unwrapped once.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) == 0 {
			return nil
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}

	for _, key := range payloadKeys {
		list, ok := obj[key]
		if !ok {
			continue
		}

		var tasks []model.Task
		if err := json.Unmarshal(list, &tasks); err != nil {
			continue
		}
		if len(tasks) > 0 {
			return tasks
		}
	}
	return nil
}
