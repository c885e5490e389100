package exit

import (
	"bytes"
	"os"
	"testing"
)

func TestResults(t *testing.T) {
	tests := []struct {
		name     string
		result   *Result
		output   *os.File
		exitCode int
		message  string
	}{
		{name: "success", result: Success("done\n"), output: os.Stdout, exitCode: CodeOK, message: "done\n"},
		{name: "error", result: Error("bad flag\n"), output: os.Stderr, exitCode: CodeError, message: "bad flag\n"},
		{name: "errorf", result: Errorf("bad %s\n", "source"), output: os.Stderr, exitCode: CodeError, message: "bad source\n"},
		{name: "data errors", result: DataErrors("%d lines failed\n", 3), output: os.Stderr, exitCode: CodeDataErrors, message: "3 lines failed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Output != tt.output {
				t.Errorf("Output = %v, want %v", tt.result.Output, tt.output.Name())
			}
			if tt.result.ExitCode != tt.exitCode {
				t.Errorf("ExitCode = %d, want %d", tt.result.ExitCode, tt.exitCode)
			}
			if tt.result.Message != tt.message {
				t.Errorf("Message = %q, want %q", tt.result.Message, tt.message)
			}
		})
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	r := &Result{Output: &buf, Message: "summary\n"}
	r.Print()
	if buf.String() != "summary\n" {
		t.Errorf("Print() wrote %q", buf.String())
	}

	buf.Reset()
	(&Result{Output: &buf}).Print()
	if buf.Len() != 0 {
		t.Errorf("Print() of empty message wrote %q", buf.String())
	}
}
