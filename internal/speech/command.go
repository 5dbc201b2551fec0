package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/MimeLyc/linklingua/pkg/log"
	"golang.org/x/text/language"
)

// expandArgs splits a command template and substitutes {text}, {lang}
// (full BCP-47 tag, e.g. ja-JP) and {base} (e.g. ja) anywhere inside a field.
// The text is substituted last and stays one argument even when it has spaces.
func expandArgs(template, text string, lang language.Tag) []string {
	base, _ := lang.Base()
	fields := strings.Fields(template)
	args := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, "{lang}", lang.String())
		f = strings.ReplaceAll(f, "{base}", base.String())
		f = strings.ReplaceAll(f, "{text}", text)
		args = append(args, f)
	}
	return args
}

// CommandSpeaker speaks through an external program such as
// "espeak-ng -v {base} {text}" or "say {text}".
type CommandSpeaker struct {
	template string

	mu      sync.Mutex
	current *exec.Cmd
}

// NewCommandSpeaker returns a Speaker for template, or Silent when template is
// empty or its program is not installed.
func NewCommandSpeaker(template string) Speaker {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return Silent{}
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		log.Warn("TTS command %q not found, speech output disabled", fields[0])
		return Silent{}
	}
	return &CommandSpeaker{template: template}
}

func (s *CommandSpeaker) Speak(text string, lang language.Tag) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	args := expandArgs(s.template, text, lang)
	if !strings.Contains(s.template, "{text}") {
		args = append(args, text)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start tts: %w", err)
	}
	s.current = cmd

	go func() {
		_ = cmd.Wait()
		s.mu.Lock()
		if s.current == cmd {
			s.current = nil
		}
		s.mu.Unlock()
	}()
	return nil
}

func (s *CommandSpeaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *CommandSpeaker) stopLocked() {
	if s.current == nil || s.current.Process == nil {
		return
	}
	_ = s.current.Process.Kill()
	s.current = nil
}

// CommandRecognizer records one utterance with an external program that prints
// its transcript on stdout, e.g. "whisper-mic --lang {base} --once".
type CommandRecognizer struct {
	template string

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewCommandRecognizer returns a Recognizer for template, or NoRecognizer when
// template is empty or its program is not installed.
func NewCommandRecognizer(template string) Recognizer {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return NoRecognizer{}
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		log.Warn("STT command %q not found, shadowing recognition disabled", fields[0])
		return NoRecognizer{}
	}
	return &CommandRecognizer{template: template}
}

// Recognize starts a new capture, cancelling any capture still running.
func (r *CommandRecognizer) Recognize(ctx context.Context, lang language.Tag) (string, error) {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	gen := r.gen
	r.cancel = cancel
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		if r.gen == gen {
			r.cancel = nil
		}
		r.mu.Unlock()
	}()

	args := expandArgs(r.template, "", lang)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("run stt: %w", err)
	}

	text := strings.TrimSpace(stdout.String())
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	return text, nil
}
