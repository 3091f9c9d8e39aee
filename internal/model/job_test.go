package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestQueuedJobSerializesExplicitNulls(t *testing.T) {
	data, err := json.Marshal(NewQueuedJob(uuid.New()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}

	// result/error/progress are part of the wire contract even before the
	// worker populates them: present, explicitly null.
	for _, key := range []string{"result", "error", "progress"} {
		raw, ok := fields[key]
		if !ok {
			t.Errorf("%s missing from %s", key, data)
			continue
		}
		if string(raw) != "null" {
			t.Errorf("%s = %s, want null", key, raw)
		}
	}
	if fields["status"] == nil || string(fields["status"]) != `"queued"` {
		t.Errorf("status = %s, want \"queued\"", fields["status"])
	}
}
