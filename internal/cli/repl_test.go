package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MimeLyc/linklingua/internal/errs"
	"github.com/MimeLyc/linklingua/internal/playback"
	"github.com/MimeLyc/linklingua/internal/study"
	"github.com/MimeLyc/linklingua/internal/transcript"
	"github.com/MimeLyc/linklingua/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

// syncBuffer is a bytes.Buffer safe to read while the follower writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testSet() transcript.Set {
	return transcript.Set{
		VideoID: "dQw4w9WgXcQ",
		Kind:    "youtube",
		Sentences: []transcript.Sentence{
			{ID: "1", Start: 0, End: 5 * time.Second, Text: transcript.Text{EN: "Hello, world!", ZH: "你好，世界！", JP: "こんにちは、世界！"}},
			{ID: "2", Start: 5 * time.Second, End: 10 * time.Second, Text: transcript.Text{EN: "I am here", ZH: "我在这里", JP: "ここにいます"}},
			{ID: "3", Start: 12 * time.Second, End: 15 * time.Second, Text: transcript.Text{EN: "Goodbye", ZH: "再见", JP: "さようなら"}},
		},
	}
}

func newTestSession(t *testing.T, opts ...study.Option) *study.Session {
	t.Helper()
	opts = append([]study.Option{
		study.WithLogger(log.NewLoggerTo(io.Discard, log.LevelError)),
		study.WithAutoSpeak(false),
	}, opts...)
	sess, err := study.NewSession(testSet(), opts...)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func runLines(t *testing.T, sess *study.Session, lines ...string) string {
	t.Helper()
	var out syncBuffer
	r := newREPL(sess, nil, &out, errs.UIEnglish)
	require.NoError(t, r.run(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n")))
	return out.String()
}

func TestREPL_Navigation(t *testing.T) {
	sess := newTestSession(t)

	out := runLines(t, sess, "n", "n", "n", "p", "goto 9", "goto x", "g 1", "list", "quit", "n")

	assert.Contains(t, out, "[1/3] video  jp-zh\n  0:00.000-0:05.000\n  こんにちは、世界！\n  你好，世界！\n")
	assert.Contains(t, out, "[2/3] video  jp-zh")
	assert.Contains(t, out, "[3/3] video  jp-zh")
	assert.Contains(t, out, "already at the last sentence")
	assert.Contains(t, out, "! index 8 outside [0,3)")
	assert.Contains(t, out, "usage: goto <n>")
	assert.Contains(t, out, ">   1  0:00.000-0:05.000  こんにちは、世界！\n")
	assert.Contains(t, out, "    3  0:12.000-0:15.000  さようなら\n")
	assert.True(t, strings.HasSuffix(out, "> "), "lines after quit are not read")
	assert.Equal(t, 0, sess.View().Index)
}

func TestREPL_Dictation(t *testing.T) {
	sess := newTestSession(t)

	out := runLines(t, sess, "mode dictation", "ここにいます", "こんにちは、世界！", "show")

	assert.Contains(t, out, "meaning: 你好，世界！")
	assert.Contains(t, out, "wrong, expected: こんにちは、世界！")
	assert.Contains(t, out, "correct\n")
	assert.Contains(t, out, "last check: correct")
}

func TestREPL_TypingProgress(t *testing.T) {
	sess := newTestSession(t)

	out := runLines(t, sess, "mode typing", "type こんに", "check")

	assert.Contains(t, out, "type:    こんにちは、世界！")
	assert.Contains(t, out, "+++...... 3/9\n")
	assert.Contains(t, out, "wrong, expected")

	out = runLines(t, sess, "type こんにちは、世界！")
	assert.Contains(t, out, "+++++++++ 9/9 complete")
}

func TestREPL_PairAndErrors(t *testing.T) {
	sess := newTestSession(t)

	out := runLines(t, sess, "pair en-zh", "pair klingon", "blah", "play", "rec", "mode karaoke", "type hi")

	assert.Contains(t, out, "[1/3] video  en-zh\n  0:00.000-0:05.000\n  Hello, world!\n  你好，世界！\n")
	assert.Contains(t, out, `! unknown language pair "klingon"`)
	assert.Contains(t, out, `unknown command "blah", type help`)
	assert.Contains(t, out, "this link has no player clock")
	assert.Contains(t, out, "speech recognition is not available")
	assert.Contains(t, out, "! text input is not used in video mode")
	assert.Equal(t, study.ModeVideo, sess.View().Mode)
}

func TestREPL_ShadowingWithoutRecognizer(t *testing.T) {
	sess := newTestSession(t)

	out := runLines(t, sess, "mode shadowing", "rec")

	assert.Contains(t, out, "(speech recognition unavailable)")
	assert.Contains(t, out, "speech recognition is not available")
}

func TestREPL_FollowsPlayerClock(t *testing.T) {
	player := playback.NewSimulatedPlayer(nil)
	sess := newTestSession(t, study.WithPlayer(player), study.WithPollInterval(5*time.Millisecond))
	player.MarkReady()

	var out syncBuffer
	r := newREPL(sess, player, &out, errs.UIEnglish)
	r.followEvery = 5 * time.Millisecond

	in, w := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- r.run(context.Background(), in) }()

	require.Eventually(t, func() bool {
		return sess.View().Clock == playback.StateSynced
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, player.Seek(5500*time.Millisecond))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[2/3] video  jp-zh  clock synced")
	}, 2*time.Second, 5*time.Millisecond)

	_, err := io.WriteString(w, "quit\n")
	require.NoError(t, err)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("repl did not stop")
	}
}

// listeningRecognizer blocks until its context ends unless a reply is queued.
type listeningRecognizer struct {
	started chan struct{}
	replies chan string
}

func newListeningRecognizer() *listeningRecognizer {
	return &listeningRecognizer{
		started: make(chan struct{}, 8),
		replies: make(chan string, 8),
	}
}

func (l *listeningRecognizer) Recognize(ctx context.Context, _ language.Tag) (string, error) {
	l.started <- struct{}{}
	select {
	case text := <-l.replies:
		return text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// interactive runs the repl on a pipe so lines can be fed one at a time.
type interactive struct {
	t    *testing.T
	out  *syncBuffer
	in   *io.PipeWriter
	done chan error
}

func startInteractive(t *testing.T, sess *study.Session) *interactive {
	t.Helper()
	out := &syncBuffer{}
	r := newREPL(sess, nil, out, errs.UIEnglish)
	pr, pw := io.Pipe()
	it := &interactive{t: t, out: out, in: pw, done: make(chan error, 1)}
	go func() { it.done <- r.run(context.Background(), pr) }()
	return it
}

func (it *interactive) send(line string) {
	it.t.Helper()
	_, err := io.WriteString(it.in, line+"\n")
	require.NoError(it.t, err)
}

func (it *interactive) waitFor(text string) {
	it.t.Helper()
	require.Eventually(it.t, func() bool {
		return strings.Contains(it.out.String(), text)
	}, 2*time.Second, 5*time.Millisecond, "output never contained %q", text)
}

func (it *interactive) quit() {
	it.t.Helper()
	it.send("quit")
	select {
	case err := <-it.done:
		assert.NoError(it.t, err)
	case <-time.After(2 * time.Second):
		it.t.Fatal("repl did not stop")
	}
}

func waitStarted(t *testing.T, rec *listeningRecognizer) {
	t.Helper()
	select {
	case <-rec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("recognizer was not started")
	}
}

func TestREPL_StopCancelsRecording(t *testing.T) {
	rec := newListeningRecognizer()
	sess := newTestSession(t, study.WithRecognizer(rec))
	it := startInteractive(t, sess)

	it.send("mode shadowing")
	it.send("rec")
	waitStarted(t, rec)
	require.True(t, sess.View().Attempt.Recording)

	it.send("rec")
	it.waitFor("already recording, type stop to cancel")

	it.send("stop")
	it.waitFor("recording discarded")
	assert.False(t, sess.View().Attempt.Recording)

	it.quit()
}

func TestREPL_ModeChangeCancelsRecording(t *testing.T) {
	rec := newListeningRecognizer()
	sess := newTestSession(t, study.WithRecognizer(rec))
	it := startInteractive(t, sess)

	it.send("mode shadowing")
	it.send("rec")
	waitStarted(t, rec)

	it.send("mode typing")
	it.waitFor("recording discarded")
	assert.Equal(t, study.ModeTyping, sess.View().Mode)
	assert.Empty(t, sess.View().Attempt.Recognized)

	it.quit()
}

func TestREPL_RecordingReportsVerdict(t *testing.T) {
	rec := newListeningRecognizer()
	sess := newTestSession(t, study.WithRecognizer(rec))
	it := startInteractive(t, sess)

	it.send("mode shadowing")
	rec.replies <- "こんにちは世界"
	it.send("rec")
	it.waitFor("heard: こんにちは世界")
	it.waitFor("correct\n")

	it.quit()
}

func TestREPL_QuitStopsRecording(t *testing.T) {
	rec := newListeningRecognizer()
	sess := newTestSession(t, study.WithRecognizer(rec))
	it := startInteractive(t, sess)

	it.send("mode shadowing")
	it.send("rec")
	waitStarted(t, rec)

	it.quit()
	assert.False(t, sess.View().Attempt.Recording)
}
