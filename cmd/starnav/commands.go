package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/udisondev/starnav/internal/catalog"
	"github.com/udisondev/starnav/internal/config"
	"github.com/udisondev/starnav/internal/db"
	"github.com/udisondev/starnav/internal/navigation"
	"github.com/udisondev/starnav/internal/route"
)

type endpointFlags struct {
	from     string
	to       string
	asJSON   bool
	progress bool
}

func (f *endpointFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.from, "from", "", "start star name")
	fs.StringVar(&f.to, "to", "", "end star name")
	fs.BoolVar(&f.asJSON, "json", false, "print the result as JSON")
	fs.BoolVar(&f.progress, "progress", false, "log search progress")
}

func (f *endpointFlags) validate() error {
	if f.from == "" || f.to == "" {
		return fmt.Errorf("%w: -from and -to are required", errUsage)
	}
	return nil
}

func (f *endpointFlags) limits(cfg config.Config) navigation.Limits {
	lim := limits(cfg)
	if f.progress {
		lim.Progress = func(p navigation.Progress) {
			slog.Info("searching",
				"iterations", p.Iterations,
				"open", p.OpenSet,
				"visited", p.Visited,
				"elapsed", p.Elapsed.Round(time.Millisecond))
		}
	}
	return lim
}

// newPlanner selects from and to in the planner's first slot.
func newPlanner(engine *navigation.Engine, finder navigation.Finder, cfg config.Config, f *endpointFlags) (*route.Planner, error) {
	p := route.NewPlanner(engine.Set(), finder, route.Options{
		Limits:     f.limits(cfg),
		RangeUpper: cfg.Range.Upper,
		Resolution: cfg.Range.Resolution,
	})
	if err := p.SetStart(f.from); err != nil {
		return nil, err
	}
	if err := p.SetEnd(f.to); err != nil {
		return nil, err
	}
	return p, nil
}

func runRoute(ctx context.Context, cfg config.Config, args []string) error {
	var ef endpointFlags
	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	ef.register(fs)
	jump := fs.Float64("jump", 0, "maximum jump range in parsecs")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := ef.validate(); err != nil {
		return err
	}

	engine, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}

	return withFinder(ctx, cfg, engine, func(ctx context.Context, finder navigation.Finder) error {
		planner, err := newPlanner(engine, finder, cfg, &ef)
		if err != nil {
			return err
		}
		res, err := planner.Calculate(ctx, *jump)
		if err != nil {
			return withRemedy(err)
		}
		if ef.asJSON {
			return writeJSON(os.Stdout, res)
		}
		printRoute(os.Stdout, res)
		return nil
	})
}

func runMinRange(ctx context.Context, cfg config.Config, args []string) error {
	var ef endpointFlags
	fs := flag.NewFlagSet("minrange", flag.ContinueOnError)
	ef.register(fs)
	upper := fs.Float64("upper", 0, "upper bound for the search (default from config)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := ef.validate(); err != nil {
		return err
	}
	if *upper > 0 {
		cfg.Range.Upper = *upper
	}

	engine, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}

	return withFinder(ctx, cfg, engine, func(ctx context.Context, finder navigation.Finder) error {
		planner, err := newPlanner(engine, finder, cfg, &ef)
		if err != nil {
			return err
		}
		rr, err := planner.MinimumRange(ctx)
		if err != nil {
			return withRemedy(err)
		}
		if ef.asJSON {
			return writeJSON(os.Stdout, rr)
		}
		fmt.Fprintf(os.Stdout, "Minimum jump range: %.2f pc (%d probes)\n", rr.Range, rr.Probes)
		printRoute(os.Stdout, rr.Result)
		return nil
	})
}

func runImport(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	file := fs.String("file", cfg.Catalog.Path, "stars.json or HYG CSV file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	stars, err := catalog.LoadFile(*file)
	if err != nil {
		return err
	}

	dsn := cfg.Database.DSN()
	if err := db.RunMigrations(ctx, dsn); err != nil {
		return err
	}
	database, err := db.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := database.Stars().Import(ctx, *file, stars)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Imported %d stars from %s\n", n, *file)
	return nil
}

func runExport(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	stars, err := loadStars(ctx, cfg)
	if err != nil {
		return err
	}

	if *out == "" {
		return catalog.WriteJSON(os.Stdout, stars)
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", *out, err)
	}
	if err := catalog.WriteJSON(f, stars); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", *out, err)
	}
	slog.Info("catalogue exported", "path", *out, "stars", len(stars))
	return nil
}

func runStats(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	engine, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}

	st := engine.Index().Stats()
	b := engine.Index().Bounds()
	fp := engine.Set().Fingerprint()
	fmt.Fprintf(os.Stdout, "Stars:        %d\n", engine.Set().Len())
	fmt.Fprintf(os.Stdout, "Fingerprint:  %s\n", hex.EncodeToString(fp[:]))
	fmt.Fprintf(os.Stdout, "Bounds:       (%.2f, %.2f, %.2f) - (%.2f, %.2f, %.2f)\n",
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	fmt.Fprintf(os.Stdout, "Leaf capacity: %d\n", engine.Index().Capacity())
	fmt.Fprintf(os.Stdout, "Nodes:        %d (%d leaves)\n", st.Nodes, st.Leaves)
	fmt.Fprintf(os.Stdout, "Depth:        %d\n", st.Depth)
	fmt.Fprintf(os.Stdout, "Largest leaf: %d\n", st.LargestLeaf)
	return nil
}

func printRoute(w io.Writer, res *navigation.Result) {
	for i, s := range res.Stars {
		hop := 0.0
		if i > 0 {
			hop = res.Stars[i-1].Pos.Dist(s.Pos)
		}
		fmt.Fprintf(w, "%3d  %-28s %7.2f pc\n", i, s.Name, hop)
	}
	fmt.Fprintf(w, "%d jumps, %.2f pc total, longest jump %.2f pc\n", res.Jumps, res.Distance, res.MaxHop)
	if res.Stranded {
		fmt.Fprintf(w, "Route partially calculated: stranded at %s, %.2f pc from the destination", res.Last().Name, res.ClosestDistance)
		if res.Cutoff != "" {
			fmt.Fprintf(w, " (%s)", res.Cutoff)
		}
		fmt.Fprintln(w)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withRemedy appends the user-facing remedy to navigation errors.
func withRemedy(err error) error {
	var nerr *navigation.Error
	if errors.As(err, &nerr) && nerr.Remedy() != "" {
		return fmt.Errorf("%w (%s)", err, nerr.Remedy())
	}
	return err
}
