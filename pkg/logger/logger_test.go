package logger

import (
	"reflect"
	"testing"
)

type entry struct {
	level   string
	message string
	keyvals []any
}

type recorder struct {
	entries []entry
}

func (r *recorder) add(level, msg string, kv []any) {
	r.entries = append(r.entries, entry{level, msg, kv})
}

func (r *recorder) Log(m string, kv ...any)   { r.add("log", m, kv) }
func (r *recorder) Debug(m string, kv ...any) { r.add("debug", m, kv) }
func (r *recorder) Info(m string, kv ...any)  { r.add("info", m, kv) }
func (r *recorder) Warn(m string, kv ...any)  { r.add("warn", m, kv) }
func (r *recorder) Error(m string, kv ...any) { r.add("error", m, kv) }
func (r *recorder) Fatal(m string, kv ...any) { r.add("fatal", m, kv) }

func TestFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	t.Cleanup(func() { Init() })

	Info("[Test] hello", "key", 1)
	Log("plain", "k", "v")
	Warn("careful")

	want := []entry{
		{"info", "[Test] hello", []any{"key", 1}},
		{"log", "plain", []any{"k", "v"}},
		{"warn", "careful", nil},
	}
	for _, r := range []*recorder{a, b} {
		if !reflect.DeepEqual(r.entries, want) {
			t.Errorf("entries = %+v, want %+v", r.entries, want)
		}
	}
}

func TestUninitialisedIsSilent(t *testing.T) {
	mu.Lock()
	singleton = nil
	mu.Unlock()

	Debug("dropped")
	Error("dropped", "err", "x")
}
