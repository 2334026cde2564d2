package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/docvault/internal/bootstrap"
	"github.com/dharsanguruparan/docvault/internal/config"
	"github.com/dharsanguruparan/docvault/internal/database"
	"github.com/dharsanguruparan/docvault/internal/documents"
	"github.com/dharsanguruparan/docvault/internal/logging"
	"github.com/dharsanguruparan/docvault/internal/ocr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(os.Stdout)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "docvault: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docvault",
		Short: "DocVault operator CLI",
		Long: `DocVault CLI runs maintenance and document operations directly against the
configured database and object store, using the same environment variables as the server.`,
		SilenceUsage: true,
	}
	cmd.SetOut(out)
	cmd.AddCommand(
		newMigrateCmd(),
		newSearchCmd(),
		newTagsCmd(),
		newProcessCmd(),
		newOCRCmd(),
		newConvertCmd(),
	)
	return cmd
}

// withApp loads configuration, builds dependencies and runs fn with them.
func withApp(cmd *cobra.Command, fn func(app *bootstrap.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.NewWithOutput(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if !cfg.UsesPostgres() {
		// An in-memory store would vanish when the command exits.
		return bootstrap.ErrNoDatabase
	}
	app, err := bootstrap.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", arg)
	}
	return id, nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.UsesPostgres() {
				return bootstrap.ErrNoDatabase
			}
			db, err := database.Connect(cmd.Context(), cfg.DatabaseURL, 1)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			version, err := database.Version(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
	return cmd
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Run a ranked full-text search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *bootstrap.App) error {
				results, err := app.Documents.Search(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, results)
			})
		},
	}
}

func newTagsCmd() *cobra.Command {
	var add []string
	cmd := &cobra.Command{
		Use:   "tags <document-id>",
		Short: "List or add tags on a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(app *bootstrap.App) error {
				if len(add) > 0 {
					if _, err := app.Documents.AddTags(cmd.Context(), id, add); err != nil {
						return err
					}
				}
				tags, err := app.Documents.ListTags(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd, tags)
			})
		},
	}
	cmd.Flags().StringSliceVar(&add, "add", nil, "Tags to attach before listing")
	return cmd
}

func newProcessCmd() *cobra.Command {
	var (
		text    string
		summary string
		tags    []string
	)
	cmd := &cobra.Command{
		Use:   "process <document-id>",
		Short: "Store text, summary and tags and mark a document processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := documents.ProcessInput{Tags: tags}
			if text != "" {
				in.ExtractedText = &text
			}
			if summary != "" {
				in.Summary = &summary
			}
			return withApp(cmd, func(app *bootstrap.App) error {
				res, err := app.Documents.Process(cmd.Context(), id, in)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Extracted text")
	cmd.Flags().StringVar(&summary, "summary", "", "Summary")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag to attach (repeatable)")
	return cmd
}

func newOCRCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "ocr <document-id> <storage-path>",
		Short: "Extract text from a stored object and save it on the document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(app *bootstrap.App) error {
				res, err := app.OCR.Process(cmd.Context(), ocr.Request{DocumentID: id, StoragePath: args[1], Lang: lang})
				if err != nil {
					return err
				}
				app.Log.WithFields(logrus.Fields{"document_id": id, "chars": len(res.ExtractedText)}).Info("ocr complete")
				return printJSON(cmd, res)
			})
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "Tesseract language(s); defaults to OCR_LANG")
	return cmd
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <document-id>",
		Short: "Queue a DOCX conversion for the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(app *bootstrap.App) error {
				taskID, err := app.Documents.RequestConversion(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued task %s\n", taskID)
				return nil
			})
		},
	}
}
