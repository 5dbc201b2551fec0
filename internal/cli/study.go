package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/MimeLyc/linklingua/internal/errs"
	"github.com/MimeLyc/linklingua/internal/playback"
	"github.com/MimeLyc/linklingua/internal/speech"
	"github.com/MimeLyc/linklingua/internal/study"
	"github.com/spf13/cobra"
)

func newStudyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "study <url>",
		Short: "Fetch the transcript of a link and study it interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")
			pair, _ := cmd.Flags().GetString("pair")
			return a.study(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], mode, pair)
		},
	}
	cmd.Flags().String("mode", string(study.ModeVideo), "Starting mode: video, dictation, typing or shadowing")
	cmd.Flags().String("pair", "", "Language pair, e.g. jp-zh (default from settings)")
	return cmd
}

func (a *app) study(ctx context.Context, in io.Reader, out io.Writer, rawURL, modeFlag, pairFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mode, err := study.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	pair := a.cfg.Study.Pair
	if pairFlag != "" {
		if pair, err = study.ParsePair(pairFlag); err != nil {
			return err
		}
	}

	res, err := a.fetch(ctx, out, rawURL)
	if err != nil {
		if msg := errs.Notify(err, a.cfg.Study.UILanguage); msg != "" {
			fmt.Fprintln(out, msg)
		}
		return err
	}

	if runner := a.startPrune(); runner != nil {
		defer runner.Stop()
	}

	opts := []study.Option{
		study.WithPair(pair),
		study.WithAutoSpeak(a.cfg.Study.AutoSpeak),
		study.WithPollInterval(a.cfg.Study.PollInterval),
		study.WithSpeaker(speech.NewCommandSpeaker(a.cfg.Speech.TTSCommand)),
		study.WithRecognizer(speech.NewCommandRecognizer(a.cfg.Speech.STTCommand)),
		study.WithLogger(a.logger.Named("study")),
	}
	var player *playback.SimulatedPlayer
	if res.Source.Kind.HasClock() {
		player = playback.NewSimulatedPlayer(time.Now)
		opts = append(opts, study.WithPlayer(player))
	}

	sess, err := study.NewSession(res.Set, opts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	if mode != study.ModeVideo {
		if err := sess.SetMode(mode); err != nil {
			return err
		}
	}
	if player != nil {
		player.MarkReady()
		player.Play()
	}

	r := newREPL(sess, player, out, a.cfg.Study.UILanguage)
	r.followEvery = a.cfg.Study.PollInterval
	return r.run(ctx, in)
}
