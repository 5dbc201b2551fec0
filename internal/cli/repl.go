package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/linklingua/internal/errs"
	"github.com/MimeLyc/linklingua/internal/match"
	"github.com/MimeLyc/linklingua/internal/playback"
	"github.com/MimeLyc/linklingua/internal/study"
	"github.com/MimeLyc/linklingua/internal/transcript"
)

const replHelp = `commands:
  n, next          next sentence
  p, prev          previous sentence
  g, goto <n>      jump to sentence n
  l, list          list all sentences
  m, mode <mode>   video, dictation, typing or shadowing
  pair <pair>      jp-zh, jp-en, zh-en, en-zh or all
  s, say           speak the sentence again
  t, type <text>   set the answer (dictation, typing)
  c, check         check the answer
  r, rec           record and score your reading (shadowing)
  stop             stop the recording
  play, pause      control the player (video)
  show             print the current sentence
  q, quit          leave
In dictation and typing mode any other line is taken as the answer and checked.
`

// repl reads commands line by line and renders the session view. In video
// mode a follower prints the sentence whenever the player clock moves on.
type repl struct {
	sess   *study.Session
	player *playback.SimulatedPlayer
	ui     errs.UILanguage

	followEvery time.Duration

	mu  sync.Mutex
	out io.Writer

	recMu     sync.Mutex
	recording bool
	recWG     sync.WaitGroup
}

func newREPL(sess *study.Session, player *playback.SimulatedPlayer, out io.Writer, ui errs.UILanguage) *repl {
	return &repl{
		sess:        sess,
		player:      player,
		ui:          ui,
		followEvery: playback.DefaultInterval,
		out:         out,
	}
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	r.printf("%s", r.render(r.sess.View()))

	followCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.follow(followCtx)
	}()
	defer func() {
		stop()
		<-done
		r.sess.StopRecording()
		r.recWG.Wait()
	}()

	scanner := bufio.NewScanner(in)
	for {
		r.printf("> ")
		if !scanner.Scan() {
			break
		}
		if r.exec(ctx, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// follow prints the view when the clock moves the index in video mode.
func (r *repl) follow(ctx context.Context) {
	if r.player == nil || r.followEvery <= 0 {
		return
	}
	ticker := time.NewTicker(r.followEvery)
	defer ticker.Stop()

	last := r.sess.View().Index
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v := r.sess.View()
			if v.Closed {
				return
			}
			if v.Mode == study.ModeVideo && v.Index != last {
				r.printf("\n%s", r.render(v))
			}
			last = v.Index
		}
	}
}

// exec runs one line and reports whether the user asked to quit.
func (r *repl) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		r.show()
		return false
	}
	cmd := strings.ToLower(fields[0])
	arg := strings.TrimSpace(strings.TrimSpace(line)[len(fields[0]):])

	switch cmd {
	case "q", "quit", "exit":
		return true
	case "h", "help", "?":
		r.printf("%s", replHelp)
	case "n", "next":
		if !r.sess.Advance() {
			r.printf("already at the last sentence\n")
			return false
		}
		r.show()
	case "p", "prev":
		if !r.sess.Retreat() {
			r.printf("already at the first sentence\n")
			return false
		}
		r.show()
	case "g", "goto":
		n, err := strconv.Atoi(arg)
		if err != nil {
			r.printf("usage: goto <n>\n")
			return false
		}
		if err := r.sess.SelectIndex(n - 1); err != nil {
			r.fail(err)
			return false
		}
		r.show()
	case "l", "list":
		r.list()
	case "m", "mode":
		if err := r.sess.SetMode(study.Mode(strings.ToLower(arg))); err != nil {
			r.fail(err)
			return false
		}
		r.show()
	case "pair":
		pair, err := study.ParsePair(arg)
		if err != nil {
			r.fail(err)
			return false
		}
		if err := r.sess.SetPair(pair); err != nil {
			r.fail(err)
			return false
		}
		r.show()
	case "s", "say":
		if err := r.sess.Replay(); err != nil {
			r.fail(err)
		}
	case "t", "type":
		if err := r.sess.SetInput(arg); err != nil {
			r.fail(err)
			return false
		}
		r.show()
	case "c", "check":
		r.check()
	case "r", "rec":
		r.record(ctx)
	case "stop":
		r.sess.StopRecording()
	case "play", "pause":
		if r.player == nil {
			r.printf("this link has no player clock\n")
			return false
		}
		if cmd == "play" {
			r.player.Play()
		} else {
			r.player.Pause()
		}
	case "show":
		r.show()
	default:
		mode := r.sess.View().Mode
		if mode != study.ModeDictation && mode != study.ModeTyping {
			r.printf("unknown command %q, type help\n", fields[0])
			return false
		}
		if err := r.sess.SetInput(strings.TrimSpace(line)); err != nil {
			r.fail(err)
			return false
		}
		r.check()
	}
	return false
}

func (r *repl) show() {
	r.printf("%s", r.render(r.sess.View()))
}

func (r *repl) check() {
	verdict, err := r.sess.Check()
	if err != nil {
		r.fail(err)
		return
	}
	v := r.sess.View()
	if v.Mode == study.ModeTyping {
		r.printf("  %s\n", progressLine(v.Progress))
	}
	r.printf("%s\n", verdictLine(verdict, v.Source))
}

// record starts one capture in the background so stop, navigation and mode
// commands stay available while the recognizer listens.
func (r *repl) record(ctx context.Context) {
	if !r.sess.View().RecognitionAvailable {
		r.printf("speech recognition is not available\n")
		return
	}

	r.recMu.Lock()
	if r.recording {
		r.recMu.Unlock()
		r.printf("already recording, type stop to cancel\n")
		return
	}
	r.recording = true
	r.recMu.Unlock()

	r.printf("listening...\n")
	r.recWG.Add(1)
	go func() {
		defer r.recWG.Done()
		verdict, err := r.sess.Record(ctx)

		r.recMu.Lock()
		r.recording = false
		r.recMu.Unlock()

		r.reportRecording(verdict, err)
	}()
}

func (r *repl) reportRecording(verdict study.Verdict, err error) {
	if err != nil {
		r.fail(err)
		return
	}
	v := r.sess.View()
	if verdict == study.VerdictUnknown {
		if !v.RecognitionAvailable {
			r.printf("speech recognition is not available\n")
		} else {
			r.printf("recording discarded\n")
		}
		return
	}
	r.printf("  heard: %s\n", v.Attempt.Recognized)
	r.printf("%s\n", verdictLine(verdict, v.Source))
}

func (r *repl) list() {
	v := r.sess.View()
	set := r.sess.Transcript()
	keys := v.Pair.Keys()

	var b strings.Builder
	for i, s := range set.Sentences {
		marker := " "
		if i == v.Index {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %3d  %s  %s\n", marker, i+1, timeRange(s), s.Text.In(keys.Source))
	}
	r.printf("%s", b.String())
}

func (r *repl) fail(err error) {
	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Type {
		case errs.ErrOutOfRange:
			r.printf("! %s\n", e.Message)
			return
		case errs.ErrSpeechUnavailable:
			return
		}
		r.printf("! %s\n", errs.Notify(err, r.ui))
		return
	}
	r.printf("! %v\n", err)
}

func (r *repl) render(v study.View) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%d/%d] %s  %s", v.Index+1, v.Total, v.Mode, v.Pair)
	if v.Mode == study.ModeVideo && v.Clock != playback.StateNone {
		fmt.Fprintf(&b, "  clock %s", v.Clock)
	}
	if v.Fallback {
		b.WriteString("  (sample transcript)")
	}
	b.WriteString("\n")

	switch v.Mode {
	case study.ModeVideo:
		fmt.Fprintf(&b, "  %s\n", timeRange(v.Sentence))
		fmt.Fprintf(&b, "  %s\n", v.Source)
		fmt.Fprintf(&b, "  %s\n", v.Target)
	case study.ModeDictation:
		fmt.Fprintf(&b, "  meaning: %s\n", v.Card)
		b.WriteString("  write what you hear (say to replay)\n")
		if v.Attempt.Input != "" {
			fmt.Fprintf(&b, "  answer:  %s\n", v.Attempt.Input)
		}
	case study.ModeTyping:
		fmt.Fprintf(&b, "  type:    %s\n", v.Card)
		fmt.Fprintf(&b, "  meaning: %s\n", v.Target)
		if v.Attempt.Input != "" {
			fmt.Fprintf(&b, "  %s\n", progressLine(v.Progress))
		}
	case study.ModeShadowing:
		fmt.Fprintf(&b, "  %s\n", v.Source)
		fmt.Fprintf(&b, "  %s\n", v.Target)
		if !v.RecognitionAvailable {
			b.WriteString("  (speech recognition unavailable)\n")
		} else if v.Attempt.Recognized != "" {
			fmt.Fprintf(&b, "  heard: %s\n", v.Attempt.Recognized)
		}
	}
	if v.Attempt.Evaluated {
		fmt.Fprintf(&b, "  last check: %s\n", v.Attempt.Verdict)
	}
	return b.String()
}

func verdictLine(v study.Verdict, reference string) string {
	if v == study.VerdictCorrect {
		return "correct"
	}
	return "wrong, expected: " + reference
}

// progressLine marks each reference rune: + typed correctly, x wrong,
// . not typed yet.
func progressLine(states []match.CharState) string {
	var b strings.Builder
	done := 0
	for _, s := range states {
		switch s {
		case match.CharCorrect:
			b.WriteByte('+')
			done++
		case match.CharWrong:
			b.WriteByte('x')
		default:
			b.WriteByte('.')
		}
	}
	fmt.Fprintf(&b, " %d/%d", done, len(states))
	if match.Complete(states) {
		b.WriteString(" complete")
	}
	return b.String()
}

func timeRange(s transcript.Sentence) string {
	return formatClock(s.Start) + "-" + formatClock(s.End)
}

func formatClock(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}
