package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MarcoPoloResearchLab/codenotes/internal/config"
	"github.com/MarcoPoloResearchLab/codenotes/internal/highlight"
	"github.com/MarcoPoloResearchLab/codenotes/internal/notes"
	"github.com/spf13/cobra"
)

var errNoteFields = errors.New("at least one of --title, --language, --content or --stdin is required")

func (c *cli) withApplication(cmd *cobra.Command, run func(app *application) error) error {
	app, err := c.openApplication(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()
	return run(app)
}

func (c *cli) newListCommand() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApplication(cmd, func(app *application) error {
				return writeNoteTable(cmd.OutOrStdout(), app.store.Search(query))
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only show notes whose title, content or language contain the text")
	return cmd
}

func writeNoteTable(w io.Writer, collection []notes.Note) error {
	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "ID\tLANGUAGE\tUPDATED\tTITLE")
	for _, note := range collection {
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\n",
			note.ID,
			note.Language.Label(),
			note.UpdatedAt.Local().Format(time.DateTime),
			displayTitle(note.Title))
	}
	return table.Flush()
}

func displayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "(no title)"
	}
	return title
}

func (c *cli) newShowCommand() *cobra.Command {
	var (
		style   string
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a note with syntax highlighting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApplication(cmd, func(app *application) error {
				note, ok := app.store.Get(args[0])
				if !ok {
					return fmt.Errorf("note %s not found", args[0])
				}
				formatter := highlight.FormatterTTY256
				if noColor {
					formatter = highlight.FormatterNoColor
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "# %s\n", displayTitle(note.Title))
				fmt.Fprintf(out, "# %s, created %s, updated %s\n\n",
					note.Language.Label(),
					notes.FormatTimestamp(note.CreatedAt),
					notes.FormatTimestamp(note.UpdatedAt))
				if err := highlight.NewRenderer(formatter, style).Render(out, note); err != nil {
					return err
				}
				if !strings.HasSuffix(note.Content, "\n") {
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&style, "style", highlight.DefaultStyle, "Highlighting style")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Print the content without escape codes")
	return cmd
}

// noteFlags are the optional field flags shared by new and edit.
type noteFlags struct {
	title     string
	language  string
	content   string
	fromStdin bool
}

func (f *noteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Note title")
	cmd.Flags().StringVar(&f.language, "language", "", "Language tag, label or alias (see languages)")
	cmd.Flags().StringVar(&f.content, "content", "", "Note content")
	cmd.Flags().BoolVar(&f.fromStdin, "stdin", false, "Read the note content from standard input")
	cmd.MarkFlagsMutuallyExclusive("content", "stdin")
}

func (f *noteFlags) patch(cmd *cobra.Command) (notes.Patch, error) {
	var patch notes.Patch
	if cmd.Flags().Changed("title") {
		title := f.title
		patch.Title = &title
	}
	if cmd.Flags().Changed("language") {
		language, ok := notes.ParseLanguage(f.language)
		if !ok {
			return notes.Patch{}, fmt.Errorf("unknown language %q", f.language)
		}
		patch.Language = &language
	}
	if cmd.Flags().Changed("content") {
		content := f.content
		patch.Content = &content
	}
	if f.fromStdin {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return notes.Patch{}, fmt.Errorf("read stdin: %w", err)
		}
		content := string(data)
		patch.Content = &content
	}
	return patch, nil
}

func (c *cli) newCreateCommand() *cobra.Command {
	var fields noteFlags
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a note and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := fields.patch(cmd)
			if err != nil {
				return err
			}
			return c.withApplication(cmd, func(app *application) error {
				note, err := app.store.Create(cmd.Context())
				if err != nil {
					return err
				}
				if !patch.IsEmpty() {
					if _, _, err := app.store.Update(cmd.Context(), note.ID, patch); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), note.ID)
				return nil
			})
		},
	}
	fields.register(cmd)
	return cmd
}

func (c *cli) newEditCommand() *cobra.Command {
	var fields noteFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the title, language or content of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := fields.patch(cmd)
			if err != nil {
				return err
			}
			if patch.IsEmpty() {
				return errNoteFields
			}
			return c.withApplication(cmd, func(app *application) error {
				note, found, err := app.store.Update(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("note %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s at %s\n", note.ID, notes.FormatTimestamp(note.UpdatedAt))
				return nil
			})
		},
	}
	fields.register(cmd)
	return cmd
}

func (c *cli) newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApplication(cmd, func(app *application) error {
				found, err := app.store.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("note %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func (c *cli) newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every note to a date-stamped JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApplication(cmd, func(app *application) error {
				payload, err := app.store.ExportAll()
				if err != nil {
					return err
				}
				name := notes.ExportFileName(app.config.AppName, time.Now())
				target := filepath.Join(app.config.ExportDir, name)
				if err := os.WriteFile(target, payload, 0o600); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), target)
				return nil
			})
		},
	}
	cmd.Flags().String("out", config.NewViper().GetString("export.dir"), "Directory the export file is written to")
	c.bindLocalFlag(cmd, "export.dir", "out")
	return cmd
}

func (c *cli) newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Add notes from a JSON export, skipping ids that already exist",
		Long:  "Add notes from a JSON export. Use - to read from standard input.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImportSource(cmd, args[0])
			if err != nil {
				return err
			}
			records, err := notes.DecodeImport(data)
			if err != nil {
				return fmt.Errorf("%s is not a notes export: %w", args[0], err)
			}
			return c.withApplication(cmd, func(app *application) error {
				result, err := app.store.ImportMany(cmd.Context(), records)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d notes (%d duplicates skipped, %d invalid)\n",
					len(result.Added), result.Duplicates, result.Rejected)
				return nil
			})
		},
	}
}

func readImportSource(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return data, nil
}

func (c *cli) newLanguagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, language := range notes.Languages() {
				fmt.Fprintf(table, "%s\t%s\n", language, language.Label())
			}
			return table.Flush()
		},
	}
}
