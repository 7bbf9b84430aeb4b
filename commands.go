package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"recon-tracer/internal/alignment"
	"recon-tracer/internal/app"
	"recon-tracer/internal/blob"
	"recon-tracer/internal/config"
	"recon-tracer/internal/imagesrc"
	"recon-tracer/internal/logging"
	"recon-tracer/internal/metrics"
	"recon-tracer/internal/project"
	"recon-tracer/internal/section"
	"recon-tracer/internal/series"
	"recon-tracer/internal/store"
	"recon-tracer/internal/version"
	"recon-tracer/pkg/geometry"
)

var (
	// errNoBackupStore is returned by backup when neither the configuration
	// nor the series names a backup destination.
	errNoBackupStore = errors.New("no backup destination configured")
	errLocked        = errors.New("section alignment is locked")
)

// logProgress reports batch progress at debug level and stops batches once
// the command context is done.
type logProgress struct {
	ctx context.Context
}

func (p logProgress) Update(message string, pct float64) {
	logging.Logger().Debug(message, "progress", fmt.Sprintf("%.0f%%", pct))
}

func (p logProgress) Cancelled() bool { return p.ctx.Err() != nil }

// session is an opened archive.
type session struct {
	path string
	st   store.Store
	ser  *series.Series
}

func (e *env) open(path string) (*session, error) {
	name := project.Name(path)
	st, err := store.Open(e.ctx, e.cfg.StorageDriver, e.cfg.StoreOptions(name, filepath.Dir(path)))
	if err != nil {
		return nil, err
	}
	rec, err := metrics.NewPrometheus(e.registry)
	if err != nil {
		st.Close()
		return nil, err
	}
	ser, err := project.Open(e.ctx, path, st, logProgress{e.ctx},
		series.WithUser(e.cfg.User),
		series.WithWorkers(e.cfg.Workers),
		series.WithMetrics(rec),
	)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &session{path: path, st: st, ser: ser}, nil
}

// backups returns the backup store, or nil when no destination is set.
func (e *env) backups(s *series.Series) (blob.Store, error) {
	opts := e.cfg.BlobOptions(s.BackupDir())
	if (opts.Driver == "" || blob.Driver(opts.Driver) == blob.DriverFilesystem) && opts.Root == "" {
		return nil, nil
	}
	return blob.Open(e.ctx, opts)
}

// save writes the working copy back into the archive.
func (e *env) save(s *session) error {
	if err := s.ser.Save(e.ctx); err != nil {
		return err
	}
	backups, err := e.backups(s.ser)
	if err != nil {
		return err
	}
	if err := project.Save(e.ctx, s.ser, s.path, backups, time.Now()); err != nil {
		return err
	}
	logging.Logger().Info("series saved", "path", s.path)
	return nil
}

// close releases the store. The fs working copy is removed unless -keep
// was given.
func (e *env) close(s *session) {
	if err := s.st.Close(); err != nil {
		logging.Logger().Warn("close store", "error", err)
	}
	if fsStore, ok := s.st.(*store.FS); ok && !e.keep {
		if err := fsStore.Remove(); err != nil {
			logging.Logger().Warn("remove working copy", "dir", fsStore.Dir(), "error", err)
		}
	}
}

// archiveArg returns the single archive argument left in fs.
func archiveArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected one archive argument", fs.Name())
	}
	return fs.Arg(0), nil
}

// withSession opens the archive at path and runs fn on it. When write is
// set the archive is saved afterwards.
func (e *env) withSession(path string, write bool, fn func(*session) error) error {
	s, err := e.open(path)
	if err != nil {
		return err
	}
	defer e.close(s)
	if err := fn(s); err != nil {
		return err
	}
	if write {
		return e.save(s)
	}
	return nil
}

func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func runVersion(e *env, _ []string) error {
	fmt.Fprintln(e.stdout, version.String())
	return nil
}

func runConfig(e *env, args []string) error {
	if len(args) == 0 {
		m := e.cfg.Map()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(e.stdout, "%s=%s\n", k, m[k])
		}
		return nil
	}
	prefs, err := config.LoadPrefs(e.prefsPath)
	if err != nil {
		return err
	}
	switch {
	case args[0] == "set" && len(args) == 3:
		if err := prefs.Set(args[1], args[2]); err != nil {
			return err
		}
	case args[0] == "unset" && len(args) == 2:
		prefs.Unset(args[1])
	default:
		return errors.New("config: usage: config [set <key> <value> | unset <key>]")
	}
	if err := prefs.Save(); err != nil {
		return err
	}
	logging.Logger().Info("preferences saved", "path", prefs.Path())
	return nil
}

func runInfo(e *env, args []string) error {
	fs := newFlagSet(e, "info")
	images := fs.Bool("images", false, "Report image size and resolution per section")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := archiveArg(fs)
	if err != nil {
		return err
	}
	return e.withSession(path, false, func(s *session) error {
		ser := s.ser
		if err := ser.RefreshData(e.ctx); err != nil {
			return err
		}
		nums := ser.SectionNumbers()
		fmt.Fprintf(e.stdout, "series:    %s\n", ser.Name)
		fmt.Fprintf(e.stdout, "sections:  %d\n", len(nums))
		if len(nums) > 0 {
			fmt.Fprintf(e.stdout, "range:     %d-%d\n", nums[0], nums[len(nums)-1])
		}
		fmt.Fprintf(e.stdout, "alignment: %s\n", ser.Alignment)
		fmt.Fprintf(e.stdout, "objects:   %d\n", len(ser.Objects()))
		fmt.Fprintf(e.stdout, "ztraces:   %d\n", len(ser.Ztraces))
		fmt.Fprintf(e.stdout, "store:     %s\n", s.st.Driver())
		if !*images {
			return nil
		}

		src := imagesrc.New(project.ImageDir(s.path, ser))
		lines, err := series.Map(e.ctx, ser, "image_info", func(sec *section.Section) (string, bool, error) {
			if sec.Src == "" {
				return fmt.Sprintf("%d: no image", sec.N), false, nil
			}
			size, err := src.Dimensions(sec.Src)
			if err != nil {
				return fmt.Sprintf("%d: %s: %v", sec.N, sec.Src, err), false, nil
			}
			line := fmt.Sprintf("%d: %s %dx%d mag=%g", sec.N, sec.Src, size.Width, size.Height, sec.Mag)
			if mag, err := imagesrc.Mag(src.Path(sec.Src)); err == nil {
				line += fmt.Sprintf(" file_mag=%g", mag)
			}
			return line, false, nil
		})
		if err != nil {
			return err
		}
		for _, n := range nums {
			fmt.Fprintln(e.stdout, lines[n])
		}
		return nil
	})
}

func runDedupe(e *env, args []string) error {
	fs := newFlagSet(e, "dedupe")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := archiveArg(fs)
	if err != nil {
		return err
	}
	return e.withSession(path, true, func(s *session) error {
		removed, err := s.ser.DeleteDuplicateTraces(e.ctx)
		if err != nil {
			return err
		}
		nums := make([]int, 0, len(removed))
		for n := range removed {
			nums = append(nums, n)
		}
		sort.Ints(nums)
		for _, n := range nums {
			fmt.Fprintf(e.stdout, "%d: %s\n", n, strings.Join(removed[n], ", "))
		}
		if len(nums) == 0 {
			fmt.Fprintln(e.stdout, "no duplicate traces")
		}
		return nil
	})
}

func runImportTforms(e *env, args []string) error {
	fs := newFlagSet(e, "import-tforms")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("import-tforms: expected archive and transform file")
	}
	tformPath := fs.Arg(1)
	return e.withSession(fs.Arg(0), true, func(s *session) error {
		f, err := os.Open(tformPath)
		if err != nil {
			return err
		}
		defer f.Close()
		name, err := s.ser.ImportTransformFile(e.ctx, f, tformPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, name)
		return nil
	})
}

func runImportSwift(e *env, args []string) error {
	fs := newFlagSet(e, "import-swift")
	scale := fs.Int("scale", 1, "Scale level the project was aligned at")
	calGrid := fs.Bool("calgrid", false, "Include the calibration grid transforms")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("import-swift: expected archive and project file")
	}
	projPath := fs.Arg(1)
	return e.withSession(fs.Arg(0), true, func(s *session) error {
		f, err := os.Open(projPath)
		if err != nil {
			return err
		}
		defer f.Close()
		name, err := s.ser.ImportSwiftTransforms(e.ctx, f, projPath, *scale, *calGrid)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, name)
		return nil
	})
}

func runExportTforms(e *env, args []string) error {
	fs := newFlagSet(e, "export-tforms")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := archiveArg(fs)
	if err != nil {
		return err
	}
	return e.withSession(path, false, func(s *session) error {
		align := s.ser.Alignment
		tforms, err := series.Enumerate(e.ctx, s.ser, "export_transforms", func(sec *section.Section) (geometry.Transform, bool, error) {
			return sec.Tform(align), false, nil
		})
		if err != nil {
			return err
		}
		return alignment.FormatTransformFile(e.stdout, s.ser.SectionNumbers(), tforms)
	})
}

func runShift(e *env, args []string) error {
	fs := newFlagSet(e, "shift")
	n := fs.Int("section", -1, "Section to shift")
	dx := fs.Float64("dx", 0, "Field x translation")
	dy := fs.Float64("dy", 0, "Field y translation")
	backward := fs.Bool("backward", false, "Propagate to earlier sections instead of later ones")
	only := fs.Bool("only", false, "Do not propagate")
	force := fs.Bool("force", false, "Propagate even when locked sections are in range")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := archiveArg(fs)
	if err != nil {
		return err
	}
	return e.withSession(path, true, func(s *session) error {
		st, err := app.New(e.ctx, s.ser, app.WithConfirm(func(msg string) bool {
			logging.Logger().Warn(strings.ReplaceAll(msg, "\n", " "), "force", *force)
			return *force
		}))
		if err != nil {
			return err
		}
		if *n >= 0 {
			if err := st.ChangeSection(e.ctx, *n); err != nil {
				return err
			}
		}
		st.SetPropagationMode(!*only)
		changed, err := st.TranslateTform(*dx, *dy)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("section %d: %w", st.Section.N, errLocked)
		}
		if !*only {
			ran, err := st.PropagateTo(e.ctx, !*backward, true)
			if err != nil {
				return err
			}
			if !ran {
				return errors.New("propagation declined")
			}
			st.SetPropagationMode(false)
		}
		return st.Save(e.ctx)
	})
}

func runCalibrate(e *env, args []string) error {
	fs := newFlagSet(e, "calibrate")
	n := fs.Int("section", -1, "Section holding the calibration traces")
	name := fs.String("trace", "", "Name of the calibration traces")
	length := fs.Float64("length", 0, "Expected length of each calibration trace")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *length <= 0 {
		return errors.New("calibrate: -trace and a positive -length are required")
	}
	path, err := archiveArg(fs)
	if err != nil {
		return err
	}
	return e.withSession(path, true, func(s *session) error {
		st, err := app.New(e.ctx, s.ser)
		if err != nil {
			return err
		}
		if *n >= 0 {
			if err := st.ChangeSection(e.ctx, *n); err != nil {
				return err
			}
		}
		if err := st.CalibrateMag(e.ctx, map[string]float64{*name: *length}); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "mag=%g\n", st.Section.Mag)
		return st.Save(e.ctx)
	})
}

func runLock(locked bool) func(*env, []string) error {
	return func(e *env, args []string) error {
		fs := newFlagSet(e, "lock")
		list := fs.String("sections", "", "Sections such as 1-5,9 (default all)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		var nums []int
		if *list != "" {
			var err error
			if nums, err = series.ParseSections(*list); err != nil {
				return err
			}
		}
		path, err := archiveArg(fs)
		if err != nil {
			return err
		}
		return e.withSession(path, true, func(s *session) error {
			return s.ser.SetAlignLocked(e.ctx, nums, locked)
		})
	}
}

func runHistory(e *env, args []string) error {
	fs := newFlagSet(e, "history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := archiveArg(fs)
	if err != nil {
		return err
	}
	return e.withSession(path, false, func(s *session) error {
		full, err := s.ser.FullHistory(e.ctx)
		if err != nil {
			return err
		}
		for _, l := range full.All() {
			fmt.Fprintln(e.stdout, l.String())
		}
		return nil
	})
}

func runObjects(e *env, args []string) error {
	fs := newFlagSet(e, "objects")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := archiveArg(fs)
	if err != nil {
		return err
	}
	return e.withSession(path, false, func(s *session) error {
		return s.ser.ExportObjectsCSV(e.ctx, e.stdout)
	})
}

func runBackup(e *env, args []string) error {
	fs := newFlagSet(e, "backup")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := archiveArg(fs)
	if err != nil {
		return err
	}
	return e.withSession(path, false, func(s *session) error {
		backups, err := e.backups(s.ser)
		if err != nil {
			return err
		}
		if backups == nil {
			return errNoBackupStore
		}
		f, err := os.Open(s.path)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := project.Backup(e.ctx, backups, filepath.Base(s.path), f, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, info.Key)
		return nil
	})
}
