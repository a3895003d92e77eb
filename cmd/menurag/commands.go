package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"menurag/internal/domain"
	"menurag/internal/embedding/cache"
	"menurag/internal/menu"
	"menurag/internal/service"
	"menurag/internal/summarizer"
	"menurag/internal/tui"
)

type searchFlags struct {
	topK      int
	threshold float64
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64VarP(&f.threshold, "threshold", "t", -2, "Minimum cosine similarity (default from config)")
}

func (f *searchFlags) resolve(a *app) (int, float64) {
	topK, threshold := f.topK, f.threshold
	if topK <= 0 {
		topK = a.cfg.Retrieval.TopK
	}
	if threshold < -1 {
		threshold = a.cfg.Retrieval.Threshold
	}
	return topK, threshold
}

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive search (default)",
		Args:  cobra.NoArgs,
		RunE:  runTUI,
	}
}

func runTUI(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var summary string
	switch a.cfg.Summarizer.Type {
	case "frequency", "":
		summary, err = summarizer.NewFrequencySummarizer().SummarizeMenu(a.engine.Records(), a.cfg.Summarizer.MaxSentences)
		if err != nil {
			return err
		}
	case "none":
	default:
		return fmt.Errorf("unknown summarizer: %s", a.cfg.Summarizer.Type)
	}

	m := tui.New(a.engine, tui.Options{
		TopK:      a.cfg.Retrieval.TopK,
		Threshold: a.cfg.Retrieval.Threshold,
		Summary:   summary,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Print the best matching menu items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			topK, threshold := flags.resolve(a)
			results, err := a.engine.Search(cmd.Context(), strings.Join(args, " "), topK, threshold)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printResults(w io.Writer, results []domain.SearchResult) {
	if len(results) == 0 {
		color.New(color.FgHiBlack).Fprintln(w, service.NoResultsContext)
		return
	}
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)
	for i, r := range results {
		cyan.Fprintf(w, "%d. %s", i+1, r.Record.Name)
		gray.Fprintf(w, "  (%.3f)\n", r.Score)
		fmt.Fprintf(w, "   %s\n", r.Record.Description)
		if p := strings.TrimSpace(r.Record.Price); p != "" {
			gray.Fprintf(w, "   Price: %s\n", p)
		}
	}
}

func newContextCmd() *cobra.Command {
	var flags searchFlags
	var copyOut bool
	cmd := &cobra.Command{
		Use:   "context QUERY",
		Short: "Render the retrieval context for a language model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			topK, threshold := flags.resolve(a)
			text, err := a.engine.Context(cmd.Context(), strings.Join(args, " "), topK, threshold)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			if copyOut {
				if err := clipboard.WriteAll(text); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				color.New(color.FgGreen).Fprintln(cmd.ErrOrStderr(), "✓ Copied to clipboard")
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&copyOut, "copy", false, "Copy the context to the clipboard")
	return cmd
}

func newAddCmd() *cobra.Command {
	var r domain.Record
	var save bool
	var out string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a menu item (prompts when --name is omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if r.Name == "" {
				r, err = promptRecord()
				if err != nil {
					return err
				}
			}
			ok, err := a.engine.AddItem(cmd.Context(), r)
			if err != nil {
				return err
			}
			if !ok {
				return menu.Check(r)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Added %s (%d items)\n", r.Name, a.engine.Stats().TotalItems)

			if !save {
				return nil
			}
			dest := out
			if dest == "" {
				if menu.DetectFormat(a.menuPath) != menu.FormatJSON {
					return fmt.Errorf("menu %s is not JSON; pass --out to choose where to save", a.menuPath)
				}
				dest = a.menuPath
			}
			if err := a.engine.SaveRecords(dest); err != nil {
				return err
			}
			color.New(color.FgHiBlack).Fprintf(cmd.OutOrStdout(), "Saved menu to %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&r.Name, "name", "", "Item name")
	cmd.Flags().StringVar(&r.Description, "description", "", "Item description")
	cmd.Flags().StringVar(&r.Category, "category", "", "Item category")
	cmd.Flags().StringVar(&r.Price, "price", "", "Item price")
	cmd.Flags().StringVar(&r.Ingredients, "ingredients", "", "Item ingredients")
	cmd.Flags().BoolVar(&save, "save", false, "Write the updated menu back as JSON")
	cmd.Flags().StringVar(&out, "out", "", "Destination for --save (default: the menu file)")
	return cmd
}

func promptRecord() (domain.Record, error) {
	qs := []*survey.Question{
		{Name: "name", Prompt: &survey.Input{Message: "Name:"}, Validate: survey.Required},
		{Name: "description", Prompt: &survey.Input{Message: "Description:"}, Validate: survey.Required},
		{Name: "category", Prompt: &survey.Input{Message: "Category:"}},
		{Name: "price", Prompt: &survey.Input{Message: "Price:"}},
		{Name: "ingredients", Prompt: &survey.Input{Message: "Ingredients:"}},
	}
	var answers struct {
		Name        string `survey:"name"`
		Description string `survey:"description"`
		Category    string `survey:"category"`
		Price       string `survey:"price"`
		Ingredients string `survey:"ingredients"`
	}
	if err := survey.Ask(qs, &answers); err != nil {
		return domain.Record{}, err
	}
	return domain.Record{
		Name:        answers.Name,
		Description: answers.Description,
		Category:    answers.Category,
		Price:       answers.Price,
		Ingredients: answers.Ingredients,
	}, nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show engine statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			printStats(cmd.OutOrStdout(), a.menuPath, a.engine.Stats(), a.embCache)
			return nil
		},
	}
}

func printStats(w io.Writer, path string, st service.Stats, c *cache.Embedder) {
	label := color.New(color.FgHiBlack)
	row := func(name string, value any) {
		label.Fprintf(w, "  %-11s ", name+":")
		fmt.Fprintln(w, value)
	}
	row("Menu", path)
	row("State", st.State)
	row("Items", st.TotalItems)
	row("Model", st.Model)
	row("Dimension", st.Dimension)
	row("Index size", st.IndexSize)
	row("Engine", st.ID)
	if c == nil {
		return
	}
	hits, misses := c.Stats()
	row("Cache hits", hits)
	row("Cache miss", misses)
	row("Cached", c.Count())
}
