// Package project handles series archive files (.jser): unpacking them into
// a document store, packing the store back into an archive, and timestamped
// backups.
package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"recon-tracer/internal/blob"
	"recon-tracer/internal/logging"
	"recon-tracer/internal/schema"
	"recon-tracer/internal/section"
	"recon-tracer/internal/series"
	"recon-tracer/internal/store"
)

// Ext is the archive file extension.
const Ext = ".jser"

// archive is the on-disk layout. Missing section numbers are null.
type archive struct {
	Sections []json.RawMessage `json:"sections"`
	Series   map[string]any    `json:"series"`
	Log      string            `json:"log"`
}

// Name returns the series name of an archive path: its base name without
// the extension.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Unpack reads an archive, upgrades and decodes every document and writes
// them to st. Every section is stored locked. Nothing is written when a
// document is malformed or progress asks to stop. It returns the section
// numbers.
func Unpack(ctx context.Context, r io.Reader, st store.Store, progress series.Progress) ([]int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	doc, err := schema.Parse(data, schema.ArchiveSteps)
	if err != nil {
		return nil, err
	}

	ser := doc["series"].(map[string]any)
	ser["log_set"] = []any{}
	if err := schema.Upgrade(ser, schema.SeriesSteps); err != nil {
		return nil, err
	}
	if _, err := series.FromDocument("", ser); err != nil {
		return nil, fmt.Errorf("series: %w", err)
	}
	serData, err := json.Marshal(ser)
	if err != nil {
		return nil, fmt.Errorf("encode series: %w", err)
	}

	raw := doc["sections"].([]any)
	docs := make(map[int][]byte, len(raw))
	for n, v := range raw {
		if v == nil {
			continue
		}
		sec, ok := v.(map[string]any)
		if !ok {
			return nil, &schema.FormatError{Path: fmt.Sprintf("sections[%d]", n), Msg: "must be an object"}
		}
		if err := schema.Upgrade(sec, schema.SectionSteps); err != nil {
			return nil, fmt.Errorf("section %d: %w", n, err)
		}
		sec["align_locked"] = true
		if _, err := section.FromDocument(n, sec); err != nil {
			return nil, err
		}
		if docs[n], err = json.Marshal(sec); err != nil {
			return nil, fmt.Errorf("encode section %d: %w", n, err)
		}
		if progress != nil {
			if progress.Cancelled() {
				return nil, series.ErrCancelled
			}
			progress.Update("Opening series...", float64(n+1)/float64(len(raw))*100)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, series.ErrCancelled
	}

	// The series document goes last: Open treats a stored series as a
	// complete working copy.
	if err := st.SaveSections(ctx, docs); err != nil {
		return nil, fmt.Errorf("save sections: %w", err)
	}
	if err := st.SaveExistingLog(ctx, doc["log"].(string)); err != nil {
		return nil, fmt.Errorf("save log: %w", err)
	}
	if err := st.SaveSeries(ctx, serData); err != nil {
		return nil, fmt.Errorf("save series: %w", err)
	}
	nums := make([]int, 0, len(docs))
	for n := range docs {
		nums = append(nums, n)
	}
	slices.Sort(nums)
	logging.Logger().Info("archive unpacked", "sections", len(nums), "driver", st.Driver())
	return nums, nil
}

// Open returns the series stored in st, unpacking the archive at path first
// unless st already holds a series (a working copy left by an earlier
// session).
func Open(ctx context.Context, path string, st store.Store, progress series.Progress, opts ...series.Option) (*series.Series, error) {
	name := Name(path)
	_, err := st.LoadSeries(ctx)
	switch {
	case err == nil:
		logging.Logger().Info("reusing working copy", "series", name, "driver", st.Driver())
	case store.IsNotFound(err):
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if _, err := Unpack(ctx, f, st, progress); err != nil {
			return nil, fmt.Errorf("unpack %s: %w", filepath.Base(path), err)
		}
	default:
		return nil, err
	}
	if progress != nil {
		opts = append([]series.Option{series.WithProgress(progress)}, opts...)
	}
	return series.Open(ctx, st, name, opts...)
}

// Pack writes the series as an archive. The log is the persisted log
// followed by the entries recorded since the series was opened.
func Pack(ctx context.Context, s *series.Series, w io.Writer) error {
	st := s.Store()
	nums := s.SectionNumbers()
	a := archive{Series: s.Document()}
	delete(a.Series, "log_set")
	if len(nums) > 0 {
		a.Sections = make([]json.RawMessage, nums[len(nums)-1]+1)
	}
	for _, n := range nums {
		data, err := st.LoadSection(ctx, n)
		if err != nil {
			return fmt.Errorf("load section %d: %w", n, err)
		}
		a.Sections[n] = data
	}

	existing, err := st.LoadExistingLog(ctx)
	if store.IsNotFound(err) {
		existing, err = schema.LogHeader, nil
	}
	if err != nil {
		return fmt.Errorf("load log: %w", err)
	}
	a.Log = existing
	if pending := s.LogSet.String(); pending != "" {
		a.Log += "\n" + pending
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	return nil
}

// BackupName returns "<stem>_YYYYMMDD_HHMMSS<ext>" for the archive base
// name at t.
func BackupName(archiveName string, t time.Time) string {
	ext := filepath.Ext(archiveName)
	return strings.TrimSuffix(archiveName, ext) + "_" + t.Format("20060102_150405") + ext
}

// Save packs the series into the archive at path, replacing it atomically.
// With a backup store the same bytes are also stored under BackupName.
func Save(ctx context.Context, s *series.Series, path string, backups blob.Store, now time.Time) error {
	var buf bytes.Buffer
	if err := Pack(ctx, s, &buf); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jser-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	if backups == nil {
		return nil
	}
	_, err = Backup(ctx, backups, filepath.Base(path), bytes.NewReader(buf.Bytes()), now)
	return err
}

// Backup stores an archive under its timestamped backup name.
func Backup(ctx context.Context, backups blob.Store, archiveName string, r io.Reader, now time.Time) (blob.Info, error) {
	key := BackupName(archiveName, now)
	info, err := backups.Put(ctx, key, r, "application/json")
	if err != nil {
		return blob.Info{}, fmt.Errorf("backup %s: %w", key, err)
	}
	logging.Logger().Info("series backed up", "key", key, "driver", backups.Driver(), "bytes", info.Size)
	return info, nil
}

// ImageDir resolves the series image directory. A relative src_dir is
// taken relative to the archive's directory.
func ImageDir(archivePath string, s *series.Series) string {
	if s.SrcDir == "" {
		return filepath.Dir(archivePath)
	}
	if filepath.IsAbs(s.SrcDir) {
		return s.SrcDir
	}
	return filepath.Join(filepath.Dir(archivePath), s.SrcDir)
}
