package app

import "testing"

// TestParseCommand はサブコマンドの解析を検証する。
func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"引数なしはserve", nil, CommandServe},
		{"serve指定", []string{"serve"}, CommandServe},
		{"worker指定", []string{"worker"}, CommandWorker},
		{"migrate指定", []string{"migrate"}, CommandMigrate},
		{"dedupe指定", []string{"dedupe"}, CommandDedupe},
		{"dedupe指定とフラグ", []string{"dedupe", "--apply"}, CommandDedupe},
		{"healthcheck指定", []string{"healthcheck"}, CommandHealthcheck},
		{"未知のコマンドはserve", []string{"unknown"}, CommandServe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

// TestHasFlag はフラグ検出を検証する。
func TestHasFlag(t *testing.T) {
	if !HasFlag([]string{"dedupe", "--apply"}, "--apply") {
		t.Error("--applyが検出されるべき")
	}
	if HasFlag([]string{"dedupe"}, "--apply") {
		t.Error("フラグなしでは検出されないべき")
	}
	if HasFlag(nil, "--apply") {
		t.Error("空の引数では検出されないべき")
	}
}
