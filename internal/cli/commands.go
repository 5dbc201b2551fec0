package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MimeLyc/linklingua/internal/config"
	"github.com/MimeLyc/linklingua/internal/errs"
	"github.com/MimeLyc/linklingua/internal/persistence"
	"github.com/MimeLyc/linklingua/internal/source"
	"github.com/MimeLyc/linklingua/internal/transcript"
	"github.com/MimeLyc/linklingua/pkg/file"
	"github.com/MimeLyc/linklingua/pkg/icron"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <url>",
		Short: "Show which player a link plays in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := source.Parse(args[0])
			clock := "no"
			if src.Kind.HasClock() {
				clock = "yes"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kind:  %s\n", src.Kind)
			fmt.Fprintf(out, "id:    %s\n", src.ID)
			fmt.Fprintf(out, "embed: %s\n", src.Embed)
			fmt.Fprintf(out, "clock: %s\n", clock)
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <url>",
		Short: "Write one transcript column as an SRT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			langFlag, _ := cmd.Flags().GetString("lang")
			outDir, _ := cmd.Flags().GetString("out")

			lang := transcript.Lang(strings.ToLower(strings.TrimSpace(langFlag)))
			if !validLang(lang) {
				return fmt.Errorf("unknown language %q (want en, zh or jp)", langFlag)
			}

			res, err := a.fetch(cmd.Context(), cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			if res.Set.Fallback {
				return errs.Wrap(res.Cause, errs.ErrFetchFailed, "no transcript to export")
			}

			if outDir == "-" {
				return transcript.WriteSRT(cmd.OutOrStdout(), res.Set, lang)
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			path := file.ExportPath(outDir, res.Set.VideoID, string(lang))
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := transcript.WriteSRT(f, res.Set, lang); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().String("lang", string(transcript.LangEN), "Column to export: en, zh or jp")
	cmd.Flags().String("out", ".", "Output directory, - for stdout")
	return cmd
}

func validLang(lang transcript.Lang) bool {
	for _, l := range transcript.Langs {
		if l == lang {
			return true
		}
	}
	return false
}

func newCacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the transcript cache",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cached transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			entries, err := store.ListTranscripts(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LINK\tKIND\tVIDEO\tSENTENCES\tMODEL\tEXPIRES")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					e.CacheKey, e.Kind, e.VideoID, e.SentenceCount, e.Model, e.ExpiresAt.Local().Format(time.DateTime))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if plan, err := icron.Describe(a.cfg.Cache.PruneCron, time.Now()); err == nil {
				fmt.Fprintf(out, "%d cached, next prune %s (%s)\n",
					len(entries), plan.Next.Local().Format(time.DateTime), plan.Expression)
			}
			return nil
		},
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Remove expired transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			n, err := store.DeleteExpiredTranscripts(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired transcripts\n", n)
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <url>",
		Short: "Forget the cached transcript of a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			return store.DeleteTranscript(cmd.Context(), persistence.CacheKey(args[0]))
		},
	}

	cmd.AddCommand(list, prune, rm)
	return cmd
}

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the settings file",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := yaml.Marshal(a.cfg.Settings())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", a.cfg.System.SettingsFile)
			_, err = out.Write(content)
			return err
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store one setting in the settings file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.System.SettingsFile
			settings, err := config.LoadSettingsFile(path)
			if err != nil {
				return err
			}
			if err := applySetting(&settings, args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			if err := config.WriteSettingsFile(path, settings); err != nil {
				return errs.Wrap(err, errs.ErrConfig, "cannot save settings").WithContext("key", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s to %s\n", args[0], path)
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func applySetting(s *config.Settings, key, value string) error {
	switch key {
	case "llm_api_url":
		s.LLMAPIURL = value
	case "llm_api_key":
		s.LLMAPIKey = value
	case "llm_model":
		s.LLMModel = value
	case "search_api_key":
		s.SearchAPIKey = value
	case "pair":
		s.Pair = strings.ToLower(value)
	case "ui_language":
		s.UILanguage = strings.ToLower(value)
	case "auto_speak":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("auto_speak: %w", err)
		}
		s.AutoSpeak = &b
	case "cache_ttl_hours":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cache_ttl_hours: %w", err)
		}
		s.CacheTTLHours = n
	case "cache_prune_cron":
		s.CachePruneCron = value
	case "tts_command":
		s.TTSCommand = value
	case "stt_command":
		s.STTCommand = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
