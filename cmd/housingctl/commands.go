package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"housingcore/internal/archive"
	"housingcore/internal/blob"
	"housingcore/internal/core"
	"housingcore/internal/infra/persistence/memory"
	"housingcore/internal/records"
	"housingcore/pkg/domain"
)

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) dataFlags(fs *flag.FlagSet) (*string, *bool) {
	dir := fs.String("data", a.cfg.Records.Dir, "directory holding the CSV records")
	strict := fs.Bool("strict", a.cfg.Records.Strict, "fail on the first malformed record")
	return dir, strict
}

func (a *app) loadRecords(dir string, strict bool) (memory.Snapshot, error) {
	snapshot, skipped, err := records.Load(dir, records.Options{Strict: strict, Logger: a.logger})
	if err != nil {
		return memory.Snapshot{}, err
	}
	if len(skipped) > 0 {
		_, _ = fmt.Fprintf(a.stderr, "skipped %d malformed records\n", len(skipped))
	}
	return snapshot, nil
}

// openStore opens the configured persistent store. A memory store starts
// empty, so it is seeded from the CSV records in dir.
func (a *app) openStore(ctx context.Context, dir string, strict bool) (core.PersistentStore, error) {
	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine(), a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	if _, ok := store.(*memory.Store); ok && dir != "" {
		snapshot, err := a.loadRecords(dir, strict)
		if err != nil {
			return nil, err
		}
		if err := core.ImportSnapshot(ctx, store, snapshot); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (a *app) closeStore(store core.PersistentStore) {
	if err := core.CloseStore(store); err != nil {
		a.logger.Warn("close store failed", "error", err)
	}
}

func (a *app) openArchive(ctx context.Context, prefix string) (*archive.Archiver, error) {
	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return archive.New(store, archive.WithPrefix(prefix), archive.WithLogger(a.logger)), nil
}

func describe(s memory.Snapshot) string {
	return fmt.Sprintf("%d persons, %d projects, %d requests, %d assignments, %d enquiries",
		len(s.Persons), len(s.Projects), len(s.Requests), len(s.Assignments), len(s.Enquiries))
}

func runCheck(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("check")
	dir, strict := a.dataFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	snapshot, err := a.loadRecords(*dir, *strict)
	if err != nil {
		return err
	}
	store := memory.NewStore(core.NewDefaultRulesEngine())
	store.ImportState(snapshot)
	svc := core.NewService(store, a.serviceOptions()...)
	res, err := svc.Check(ctx)
	if err != nil {
		return err
	}
	if len(res.Violations) == 0 {
		_, _ = fmt.Fprintf(a.stdout, "ok: %s\n", describe(snapshot))
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RULE\tSEVERITY\tENTITY\tID\tMESSAGE")
	for _, v := range res.Violations {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Rule, v.Severity, v.Entity, v.EntityID, v.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if res.HasBlocking() {
		return fmt.Errorf("%d invariant violations", len(res.Violations))
	}
	return nil
}

func runImport(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("import")
	dir, strict := a.dataFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	snapshot, err := a.loadRecords(*dir, *strict)
	if err != nil {
		return err
	}
	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine(), a.cfg.Storage)
	if err != nil {
		return err
	}
	defer a.closeStore(store)
	if err := core.ImportSnapshot(ctx, store, snapshot); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.stdout, "imported %s into %s store\n", describe(snapshot), a.cfg.Storage.Driver)
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("export")
	out := fs.String("out", a.cfg.Records.Dir, "directory to write the CSV records to")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	store, err := a.openStore(ctx, "", false)
	if err != nil {
		return err
	}
	defer a.closeStore(store)
	snapshot, err := core.ExportSnapshot(store)
	if err != nil {
		return err
	}
	if err := records.Save(*out, snapshot); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.stdout, "exported %s to %s\n", describe(snapshot), *out)
	return nil
}

func runArchive(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("archive")
	dir, strict := a.dataFlags(fs)
	prefix := fs.String("prefix", archive.DefaultPrefix, "blob key prefix for snapshots")
	keep := fs.Int("keep", 0, "prune all but the newest N snapshots after archiving (0 keeps all)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	store, err := a.openStore(ctx, *dir, *strict)
	if err != nil {
		return err
	}
	defer a.closeStore(store)
	snapshot, err := core.ExportSnapshot(store)
	if err != nil {
		return err
	}
	arc, err := a.openArchive(ctx, *prefix)
	if err != nil {
		return err
	}
	info, err := arc.Save(ctx, snapshot)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.stdout, "archived %s as %s (%d bytes)\n", describe(snapshot), info.Key, info.Size)
	if *keep > 0 {
		removed, err := arc.Prune(ctx, *keep)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.stdout, "pruned %d snapshots\n", removed)
	}
	return nil
}

func runRestore(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("restore")
	prefix := fs.String("prefix", archive.DefaultPrefix, "blob key prefix for snapshots")
	key := fs.String("key", "", "snapshot key to restore (default: latest)")
	out := fs.String("out", "", "also write the restored records as CSV to this directory")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	arc, err := a.openArchive(ctx, *prefix)
	if err != nil {
		return err
	}
	snapshot, info, err := arc.Restore(ctx, *key)
	if err != nil {
		return err
	}
	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine(), a.cfg.Storage)
	if err != nil {
		return err
	}
	defer a.closeStore(store)
	if err := core.ImportSnapshot(ctx, store, snapshot); err != nil {
		return err
	}
	if *out != "" {
		if err := records.Save(*out, snapshot); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(a.stdout, "restored %s from %s\n", describe(snapshot), info.Key)
	return nil
}

func runProjects(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("projects")
	dir, strict := a.dataFlags(fs)
	user := fs.String("user", "", "id of the user browsing projects")
	all := fs.Bool("all", false, "list every visible project, including conflicted ones")
	date := fs.String("date", "", "evaluate visibility on this day (d/m/yyyy, default today)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*user) == "" {
		return usageError{msg: "projects: -user is required"}
	}
	var extra []core.Option
	if *date != "" {
		day, err := domain.ParseDate(*date)
		if err != nil {
			return usageError{msg: fmt.Sprintf("projects: %v", err)}
		}
		extra = append(extra, core.WithClock(core.ClockFunc(func() time.Time { return day })))
	}
	store, err := a.openStore(ctx, *dir, *strict)
	if err != nil {
		return err
	}
	defer a.closeStore(store)
	svc := core.NewService(store, a.serviceOptions(extra...)...)

	viewer, ok := svc.FetchByUniqueID(ctx, *user)
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityPerson, ID: *user}
	}
	list := svc.ApplicableProjects
	if *all {
		list = svc.VisibleProjects
	}
	projects, err := list(ctx, viewer.ID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROJECT\tNEIGHBOURHOOD\tWINDOW\tUNITS")
	for _, p := range projects {
		var offers []string
		for _, category := range domain.EligibleCategories(viewer) {
			offers = append(offers, fmt.Sprintf("%s %d left @ %d", category, p.Remaining(category), p.Price(category)))
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Neighbourhood, p.Window(), strings.Join(offers, ", "))
	}
	return tw.Flush()
}
