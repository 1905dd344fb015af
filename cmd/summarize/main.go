package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-summarizer/internal/config"
	"go-summarizer/internal/logging"
	"go-summarizer/internal/summarizer"
	"go-summarizer/internal/tools"
)

// errNoSummary makes the process exit non-zero after the message was printed.
var errNoSummary = errors.New("no summary produced")

func main() {
	cmd := summarizeCmd(os.Stdin, os.Stdout)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errNoSummary) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type summarizeOptions struct {
	envFile string
	bullets int
	file    string
	url     string
}

func summarizeCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	var opts summarizeOptions

	cmd := &cobra.Command{
		Use:   "summarize [text]",
		Short: "Summarize text from an argument, a file, a web page or stdin",
		Long: `Summarize text with the configured model and print the result.

The text comes from the first of: the positional argument, --file, --url,
stdin. Upstream failures are printed like the web UI shows them and the
command exits with status 1.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runSummarize(ctx, opts, args, stdin, stdout)
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().IntVarP(&opts.bullets, "bullets", "b", summarizer.DefaultBullets, "Number of bullet points to ask for")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read the text from this file")
	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "Fetch this web page and summarize its main text")
	cmd.MarkFlagsMutuallyExclusive("file", "url")

	return cmd
}

func runSummarize(ctx context.Context, opts summarizeOptions, args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	text, err := readInput(ctx, cfg, opts, args, stdin)
	if err != nil {
		return err
	}

	client := summarizer.NewClient(&cfg.Upstream, summarizer.WithLogger(logger))
	res := client.Summarize(ctx, text, opts.bullets)
	fmt.Fprintln(stdout, res.Display())

	if res.OK() || res.Outcome == summarizer.OutcomeNoSummary {
		return nil
	}
	return errNoSummary
}

func readInput(ctx context.Context, cfg *config.Config, opts summarizeOptions, args []string, stdin io.Reader) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case opts.file != "":
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	case opts.url != "":
		page, err := tools.NewWebPageClient(cfg.Fetch).FetchText(ctx, opts.url)
		if err != nil {
			return "", fmt.Errorf("could not fetch page: %w", err)
		}
		return page.Text, nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
}
