// Package clitest provides compliance test suites for CLI backends.
//
// Backend packages call [RunBackendTests] from their own tests to verify
// the behavioral contracts of cli.Spawner and cli.Parser. Optional
// capabilities (cli.Streamer, cli.InputFormatter) are discovered via type
// assertion, mirroring how the adapter resolves capabilities at Start.
package clitest

import (
	"errors"
	"strings"
	"testing"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/adapter/cli"
)

// RunBackendTests runs all applicable compliance suites for a [cli.Backend].
func RunBackendTests(t *testing.T, factory func() cli.Backend) {
	t.Helper()

	t.Run("Spawner", func(t *testing.T) {
		RunSpawnerTests(t, func() cli.Spawner { return factory() })
	})
	t.Run("Parser", func(t *testing.T) {
		RunParserTests(t, func() cli.Parser { return factory() })
	})

	probe := factory()
	if _, ok := probe.(cli.InputFormatter); ok {
		t.Run("InputFormatter", func(t *testing.T) {
			RunInputFormatterTests(t, func() cli.InputFormatter {
				return factory().(cli.InputFormatter)
			})
		})
	}
	if _, ok := probe.(cli.Streamer); ok {
		t.Run("Streamer", func(t *testing.T) {
			RunStreamerTests(t, func() cli.Streamer {
				return factory().(cli.Streamer)
			})
		})
	}
}

// RunSpawnerTests tests the [cli.Spawner] behavioral contract.
// The factory is called once per subtest to ensure fresh backend state.
func RunSpawnerTests(t *testing.T, factory func() cli.Spawner) {
	t.Helper()
	runSpawnerStructural(t, factory)
	runSpawnerSafety(t, factory)
}

// runSpawnerStructural tests structural invariants: non-empty binary, non-nil args.
func runSpawnerStructural(t *testing.T, factory func() cli.Spawner) {
	t.Helper()

	t.Run("ZeroSession", func(t *testing.T) {
		s := factory()
		binary, args := s.SpawnArgs(agentdeck.Session{})
		if binary == "" {
			t.Error("binary must be non-empty")
		}
		if args == nil {
			t.Error("args must be non-nil")
		}
	})

	t.Run("BinaryNoNullBytes", func(t *testing.T) {
		s := factory()
		binary, _ := s.SpawnArgs(agentdeck.Session{Prompt: "hello"})
		if strings.Contains(binary, "\x00") {
			t.Error("binary must not contain null bytes")
		}
	})
}

// runSpawnerSafety tests safety contracts: null-byte defense, leading-dash defense.
func runSpawnerSafety(t *testing.T, factory func() cli.Spawner) {
	t.Helper()

	t.Run("NoNullBytesInArgs", func(t *testing.T) {
		s := factory()
		_, args := s.SpawnArgs(agentdeck.Session{Prompt: "hello", Model: "test-model"})
		if i, ok := indexNullArg(args); ok {
			t.Errorf("args[%d] contains null bytes", i)
		}
	})

	t.Run("NullBytePromptExcluded", func(t *testing.T) {
		s := factory()
		_, args := s.SpawnArgs(agentdeck.Session{Prompt: "hello\x00world"})
		if containsArg(args, "hello\x00world") {
			t.Error("null-byte prompt must not appear in args")
		}
	})

	t.Run("NullByteModelExcluded", func(t *testing.T) {
		s := factory()
		_, args := s.SpawnArgs(agentdeck.Session{Prompt: "hello", Model: "gpt\x00evil"})
		if containsArg(args, "gpt\x00evil") {
			t.Error("null-byte model must not appear in args")
		}
	})

	t.Run("LeadingDashModelExcluded", func(t *testing.T) {
		s := factory()
		_, args := s.SpawnArgs(agentdeck.Session{Prompt: "hello", Model: "-evil"})
		if containsArg(args, "-evil") {
			t.Error("leading-dash model must not appear as a standalone arg")
		}
	})
}

// RunParserTests tests the [cli.Parser] behavioral contract.
// Assertions use [errors.Is] to match how the adapter checks parser results.
// The factory is called once per subtest to ensure fresh backend state.
func RunParserTests(t *testing.T, factory func() cli.Parser) {
	t.Helper()
	runParserErrors(t, factory)
	runParserRobustness(t, factory)
}

// runParserErrors tests error-path semantics: ErrSkipLine vs real errors.
func runParserErrors(t *testing.T, factory func() cli.Parser) {
	t.Helper()

	t.Run("EmptyLineReturnsErrSkipLine", func(t *testing.T) {
		p := factory()
		_, err := p.ParseLine("")
		if !errors.Is(err, cli.ErrSkipLine) {
			t.Errorf("ParseLine(\"\") error = %v, want ErrSkipLine", err)
		}
	})

	t.Run("WhitespaceOnlyReturnsErrSkipLine", func(t *testing.T) {
		p := factory()
		_, err := p.ParseLine("   ")
		if !errors.Is(err, cli.ErrSkipLine) {
			t.Errorf("ParseLine(\"   \") error = %v, want ErrSkipLine", err)
		}
	})

	t.Run("InvalidJSONReturnsNonSkipError", func(t *testing.T) {
		p := factory()
		_, err := p.ParseLine("not json")
		if err == nil {
			t.Error("ParseLine(\"not json\") should return an error")
		}
		if errors.Is(err, cli.ErrSkipLine) {
			t.Error("ParseLine(\"not json\") should return a non-skip error, got ErrSkipLine")
		}
	})
}

// garbageCorpus is a fixed set of adversarial inputs used by robustness tests.
var garbageCorpus = []string{
	"\x00",
	strings.Repeat("x", 65536),
	"{{{",
	"\xff\xfe",
	`{"":null}`,
	"null",
	"[]",
}

// runParserRobustness tests no-panic guarantees and guard invariants.
func runParserRobustness(t *testing.T, factory func() cli.Parser) {
	t.Helper()

	t.Run("TypeFieldWrongTypeNoPanic", func(t *testing.T) { //nolint:revive // no assertions; panics are the failure signal
		_ = t
		p := factory()
		for _, input := range []string{`{"type":99}`, `{"type":true}`, `{"type":[]}`} {
			_, _ = p.ParseLine(input)
		}
	})

	t.Run("GarbageNoPanic", func(t *testing.T) { //nolint:revive // no assertions; panics are the failure signal
		_ = t
		p := factory()
		for _, input := range garbageCorpus {
			_, _ = p.ParseLine(input)
		}
	})

	t.Run("ValidEventHasKind", func(t *testing.T) {
		// Guard invariant: if any input accidentally parses into a
		// valid Event (nil error, not ErrSkipLine), that event must
		// have a non-empty Kind.
		p := factory()
		corpus := make([]string, 0, len(garbageCorpus)+2)
		corpus = append(corpus, garbageCorpus...)
		corpus = append(corpus, `{"type":99}`, `{"type":"unknown"}`)
		for _, input := range corpus {
			ev, err := p.ParseLine(input)
			if err == nil && ev.Kind == "" {
				t.Errorf("ParseLine(%q) returned event with empty Kind and nil error", input)
			}
		}
	})
}

// RunInputFormatterTests tests the [cli.InputFormatter] behavioral contract.
func RunInputFormatterTests(t *testing.T, factory func() cli.InputFormatter) {
	t.Helper()

	t.Run("NullByteMessage", func(t *testing.T) {
		f := factory()
		if _, err := f.FormatInput("hello\x00world"); err == nil {
			t.Error("FormatInput with null-byte message should return an error")
		}
	})

	t.Run("NewlineTerminated", func(t *testing.T) {
		f := factory()
		data, err := f.FormatInput("hello")
		if err != nil {
			t.Fatalf("FormatInput: %v", err)
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			t.Error("formatted input must be newline-terminated")
		}
	})
}

// RunStreamerTests tests the [cli.Streamer] behavioral contract.
func RunStreamerTests(t *testing.T, factory func() cli.Streamer) {
	t.Helper()

	t.Run("StructurallyValid", func(t *testing.T) {
		s := factory()
		binary, args := s.StreamArgs(agentdeck.Session{Prompt: "hello"})
		if binary == "" {
			t.Error("binary must be non-empty")
		}
		if args == nil {
			t.Error("args must be non-nil")
		}
	})

	t.Run("PromptNotInArgs", func(t *testing.T) {
		// Streaming sessions feed the prompt over stdin, never argv.
		s := factory()
		_, args := s.StreamArgs(agentdeck.Session{Prompt: "streamed prompt"})
		if containsArg(args, "streamed prompt") {
			t.Error("streaming session must not place the prompt in args")
		}
	})
}

// containsArg reports whether args contains s as an exact element.
func containsArg(args []string, s string) bool {
	for _, a := range args {
		if a == s {
			return true
		}
	}
	return false
}

// indexNullArg returns the index of the first arg containing a null byte.
func indexNullArg(args []string) (int, bool) {
	for i, a := range args {
		if strings.Contains(a, "\x00") {
			return i, true
		}
	}
	return 0, false
}
