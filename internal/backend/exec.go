package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rshade/graphbatch/internal/artifact"
	"github.com/rshade/graphbatch/internal/logging"
	"github.com/rshade/graphbatch/internal/record"
)

// Argument placeholders expanded per record.
const (
	PlaceholderInput     = "{input}"
	PlaceholderOutputDir = "{output_dir}"
	PlaceholderID        = "{id}"
	PlaceholderGroup     = "{group}"
	PlaceholderWorkDir   = "{work_dir}"
)

const defaultInputExt = "c"

// Options configures an ExecBackend.
type Options struct {
	Command           string
	Args              []string
	VersionArgs       []string
	VersionConstraint string
	WorkDir           string
	InputExt          string
	SkipExisting      bool
	KeepWorkDir       bool

	// RunID is recorded in every manifest written by this backend.
	RunID string

	// Runner overrides the package-level Runner.
	Runner CommandRunner

	// Now overrides time.Now for manifest timestamps.
	Now func() time.Time
}

// ExecBackend invokes an external command once per record. It is safe for
// concurrent use: every record gets its own work directory.
type ExecBackend struct {
	opts  Options
	store artifact.Store
}

// NewExec returns an ExecBackend that stores outputs in store.
func NewExec(opts Options, store artifact.Store) (*ExecBackend, error) {
	if strings.TrimSpace(opts.Command) == "" {
		return nil, errors.New("backend command is required")
	}
	if opts.WorkDir == "" {
		return nil, errors.New("backend work directory is required")
	}
	if store == nil {
		return nil, errors.New("artifact store is required")
	}
	if opts.InputExt == "" {
		opts.InputExt = defaultInputExt
	}
	opts.InputExt = strings.TrimPrefix(opts.InputExt, ".")
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ExecBackend{opts: opts, store: store}, nil
}

func (b *ExecBackend) runner() CommandRunner {
	if b.opts.Runner != nil {
		return b.opts.Runner
	}
	return Runner
}

// Process runs the backend for rec. A record whose manifest already exists is
// skipped when SkipExisting is set.
func (b *ExecBackend) Process(ctx context.Context, rec record.Record) error {
	log := logging.ComponentLogger(*logging.FromContext(ctx), "backend")
	group := segment(rec.Group)

	if b.opts.SkipExisting {
		done, err := b.store.Exists(ctx, artifact.ManifestKey(group, rec.ID))
		if err != nil {
			return fmt.Errorf("checking manifest for %s: %w", rec, err)
		}
		if done {
			log.Debug().
				Ctx(ctx).
				Str("operation", "process").
				Int64("record_id", rec.ID).
				Str("group", rec.Group).
				Msg("manifest exists, skipping")
			return nil
		}
	}

	outDir := filepath.Join(b.opts.WorkDir, group, strconv.FormatInt(rec.ID, 10))
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}
	if !b.opts.KeepWorkDir {
		defer func() {
			if rmErr := os.RemoveAll(outDir); rmErr != nil {
				log.Warn().Ctx(ctx).Err(rmErr).Str("dir", outDir).Msg("removing work directory")
			}
		}()
	}

	inputName := strconv.FormatInt(rec.ID, 10) + "." + b.opts.InputExt
	inputPath := filepath.Join(outDir, inputName)
	if err := os.WriteFile(inputPath, []byte(rec.Content), 0o600); err != nil {
		return fmt.Errorf("writing input for %s: %w", rec, err)
	}

	args := b.expandArgs(rec, inputPath, outDir)
	start := time.Now()

	log.Debug().
		Ctx(ctx).
		Str("operation", "process").
		Int64("record_id", rec.ID).
		Str("group", rec.Group).
		Str("command", b.opts.Command).
		Strs("args", args).
		Msg("invoking backend")

	_, stderr, err := b.runner().Run(ctx, outDir, b.opts.Command, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("backend %s for %s: %w", b.opts.Command, rec, ctxErr)
		}
		return FailedError(err, string(stderr))
	}

	manifest, err := b.collect(ctx, rec, group, outDir, inputName)
	if err != nil {
		return err
	}

	log.Debug().
		Ctx(ctx).
		Str("operation", "process").
		Int64("record_id", rec.ID).
		Str("group", rec.Group).
		Int("artifacts", len(manifest.Files)).
		Int64("bytes", manifest.Bytes).
		Dur("elapsed", time.Since(start)).
		Msg("backend completed")

	return nil
}

// expandArgs substitutes the per-record placeholders in the configured args.
func (b *ExecBackend) expandArgs(rec record.Record, inputPath, outDir string) []string {
	r := strings.NewReplacer(
		PlaceholderInput, inputPath,
		PlaceholderOutputDir, outDir,
		PlaceholderID, strconv.FormatInt(rec.ID, 10),
		PlaceholderGroup, rec.Group,
		PlaceholderWorkDir, b.opts.WorkDir,
	)
	out := make([]string, len(b.opts.Args))
	for i, a := range b.opts.Args {
		out[i] = r.Replace(a)
	}
	return out
}

// collect uploads every file the backend left in outDir (except the input)
// and then writes the manifest, which marks the record as done.
func (b *ExecBackend) collect(ctx context.Context, rec record.Record, group, outDir, inputName string) (*artifact.Manifest, error) {
	manifest := artifact.Manifest{
		ID:    rec.ID,
		Group: group,
		RunID: b.opts.RunID,
		Files: []artifact.ManifestFile{},
	}

	err := filepath.WalkDir(outDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(outDir, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == inputName || rel == artifact.ManifestName {
			return nil
		}

		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return readErr
		}
		key := artifact.Key(group, rec.ID, rel)
		if putErr := b.store.Put(ctx, key, data); putErr != nil {
			return putErr
		}
		manifest.Files = append(manifest.Files, artifact.ManifestFile{Name: rel, Key: key, Bytes: int64(len(data))})
		manifest.Bytes += int64(len(data))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storing artifacts for %s: %w", rec, err)
	}

	manifest.CreatedAt = b.opts.Now().UTC()
	if writeErr := artifact.WriteManifest(ctx, b.store, manifest); writeErr != nil {
		return nil, fmt.Errorf("writing manifest for %s: %w", rec, writeErr)
	}
	return &manifest, nil
}

// segment makes a group name safe to use as one path segment and key segment.
func segment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
