package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/bgg"
	"github.com/desertthunder/shelf/internal/images"
	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/shared"
	"github.com/desertthunder/shelf/internal/store"
	"github.com/desertthunder/shelf/internal/tasks"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

var (
	addedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	removedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	modifiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Runner holds the dependencies shared by every command action.
type Runner struct {
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client
}

type RunnerOpts struct {
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
}

func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
	}

	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}

	if r.output == nil {
		r.output = os.Stdout
	}

	return r
}

func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	return shared.LoadConfig(cmd.String("config"))
}

// buildLookup wires the API client, response cache and id cache together.
func (r *Runner) buildLookup(cfg *shared.Config, skipCacheReads bool) *bgg.Lookup {
	client := bgg.NewClient(cfg, r.logger)
	cache := bgg.NewResponseCache(cfg, bgg.CacheOptions{SkipReads: skipCacheReads}, r.logger)

	return bgg.NewLookup(cfg, client, cache, r.logger)
}

// Status reports how the master list relates to the stored collection.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	// a broken master list is still worth a status report of the stored side
	master, masterErr := models.LoadMasterList(cfg.Source.GamesFile)
	if masterErr != nil {
		r.logger.Warn("unable to load master list", "err", masterErr)
	}

	st, err := store.Load(cfg, r.logger)
	if err != nil {
		return fmt.Errorf("stored data: %w", err)
	}

	if master != nil {
		fmt.Fprintf(r.output, "Master list: %d games, %d expansions\n", len(master.Games), master.ExpansionCount())

		if master.SkippedGames > 0 || master.SkippedExpansions > 0 {
			fmt.Fprintln(r.output, dimStyle.Render(fmt.Sprintf(
				"Skipped: %d games, %d expansions", master.SkippedGames, master.SkippedExpansions)))
		}
	}

	fmt.Fprintf(r.output, "Stored: %d games, %d expansions\n", st.Count(), st.ExpansionCount())

	if !cmd.Bool("full") || master == nil {
		return nil
	}

	comparer := tasks.NewComparer(r.buildLookup(cfg, false), r.logger)

	changes, err := comparer.Compare(ctx, master, st.Games(), tasks.AllChanges)
	if err != nil {
		return err
	}

	r.renderChanges(changes)

	return nil
}

// Load reconciles the master list against the stored collection and,
// unless --dry is set, applies the changes and saves the result.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	master, err := models.LoadMasterList(cfg.Source.GamesFile)
	if err != nil {
		return fmt.Errorf("master list: %w", err)
	}

	st, err := store.Load(cfg, r.logger)
	if err != nil {
		return fmt.Errorf("stored data: %w", err)
	}

	lookup := r.buildLookup(cfg, cmd.Bool("refresh"))
	comparer := tasks.NewComparer(lookup, r.logger)

	changes, err := comparer.Compare(ctx, master, st.Games(), tasks.AllChanges)
	if err != nil {
		return err
	}

	r.renderChanges(changes)

	if changes.Empty() {
		return nil
	}

	if cmd.Bool("dry") {
		fmt.Fprintln(r.output, dimStyle.Render("Dry run, nothing applied."))

		return nil
	}

	httpClient := r.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout()}
	}

	builder := images.NewFileBuilder(cfg, httpClient, r.logger)
	applier := tasks.NewApplier(lookup, builder, r.logger)

	progress := make(chan tasks.ProgressUpdate, 64)
	drained := make(chan struct{})

	go func() {
		defer close(drained)

		for update := range progress {
			if update.Err != nil {
				fmt.Fprintln(r.output, removedStyle.Render(update.Message))

				continue
			}

			fmt.Fprintln(r.output, update.Message)
		}
	}()

	list := applier.Apply(ctx, changes, st.Games(), progress)

	close(progress)
	<-drained

	st.Replace(list)

	if err := st.Save(); err != nil {
		return fmt.Errorf("saving collection: %w", err)
	}

	fmt.Fprintf(r.output, "Saved %d games.\n", st.Count())

	return nil
}

// Search fuzzy-matches the stored collection against a query.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := store.Load(cfg, r.logger)
	if err != nil {
		return fmt.Errorf("stored data: %w", err)
	}

	results := st.Search(query)

	if cmd.Bool("json") {
		return r.writeJSON(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(r.output, dimStyle.Render("No matches."))

		return nil
	}

	for _, game := range results {
		line := fmt.Sprintf("%s (%s) [%d]", game.Name, game.Year, game.BggID)
		if game.VersionName != "" {
			line += dimStyle.Render(" " + game.VersionName)
		}

		fmt.Fprintln(r.output, line)
	}

	return nil
}

// CacheIDs lists every cached name to id resolution.
func (r *Runner) CacheIDs(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	lookup := r.buildLookup(cfg, false)

	ids, err := lookup.CachedIDs()
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		fmt.Fprintln(r.output, dimStyle.Render("No cached resolutions."))

		return nil
	}

	for _, name := range bgg.SortedNames(ids) {
		fmt.Fprintf(r.output, "%d\t%s\n", ids[name], name)
	}

	return nil
}

// CacheForget drops a single cached name resolution.
func (r *Runner) CacheForget(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	name := cmd.String("name")
	lookup := r.buildLookup(cfg, false)

	dropped, err := lookup.Forget(name)
	if err != nil {
		return err
	}

	if !dropped {
		return fmt.Errorf("%w: no cached resolution for %q", shared.ErrNotFound, name)
	}

	fmt.Fprintf(r.output, "Dropped cached resolution for %q.\n", name)

	return nil
}

// Setup writes a starter config file.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	fmt.Fprintf(r.output, "Wrote %s. Edit it before running load.\n", path)

	return nil
}

func (r *Runner) renderChanges(changes *tasks.ListChanges) {
	if changes.Empty() {
		fmt.Fprintln(r.output, "Collection is up to date.")

		return
	}

	for _, game := range changes.Added {
		fmt.Fprintln(r.output, addedStyle.Render(fmt.Sprintf("+ %s [%d]", game.Details.Name, game.BggID)))

		for _, exp := range game.Expansions {
			fmt.Fprintln(r.output, addedStyle.Render(fmt.Sprintf("  + %s", exp.Details.Name)))
		}
	}

	for _, game := range changes.Removed {
		fmt.Fprintln(r.output, removedStyle.Render(fmt.Sprintf("- %s [%d]", game.Name, game.BggID)))
	}

	for _, game := range changes.Modified {
		fmt.Fprintln(r.output, modifiedStyle.Render(fmt.Sprintf("~ %s [%d]", game.Details.Name, game.BggID)))

		for _, change := range game.Changes {
			fmt.Fprintln(r.output, modifiedStyle.Render(fmt.Sprintf("  %s %s", change.Type, change.Name)))
		}
	}

	fmt.Fprintf(r.output, "%d added, %d removed, %d modified\n",
		len(changes.Added), len(changes.Removed), len(changes.Modified))
}

func (r *Runner) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(r.output, string(data))

	return nil
}
