package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil"
)

const defaultDebounce = 300 * time.Millisecond

// fileWatcher calls onChange once per burst of writes to a fixed set of
// files. Parent directories are watched so that editors which replace a
// file by rename are still seen.
type fileWatcher struct {
	fsw      *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration
	onChange func(ctx context.Context, changed []string)
	stderr   io.Writer
}

func newFileWatcher(paths []string, debounce time.Duration, stderr io.Writer, onChange func(context.Context, []string)) (*fileWatcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &fileWatcher{
		fsw:      fsw,
		files:    make(map[string]struct{}, len(paths)),
		debounce: debounce,
		onChange: onChange,
		stderr:   stderr,
	}
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch: resolve %s: %w", p, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch: add %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run blocks until ctx is cancelled.
func (w *fileWatcher) Run(ctx context.Context) error {
	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 {
			return
		}
		sort.Strings(changed)
		w.onChange(ctx, changed)
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			fmt.Fprintf(w.stderr, "watch: close fsnotify: %v\n", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Clean(evt.Name)
			if _, ok := w.files[name]; !ok {
				continue
			}

			mu.Lock()
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			fmt.Fprintf(w.stderr, "watch: fsnotify error: %v\n", err)
		}
	}
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	o := &renderOptions{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Render again whenever the template, data or images change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.data == "-" {
				return fmt.Errorf("watch cannot read data from stdin")
			}
			images, err := parseImageFlags(o.images)
			if err != nil {
				return err
			}
			opts := o.templateOptions(cmd)

			engine := g.engine()
			defer engine.Close()

			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			render := func() {
				data, err := loadDataFile(o.data, nil)
				if err == nil {
					err = renderOnce(engine, o, opts, data)
				}
				if err != nil {
					stencil.GetLogger().Error().Err(err).Str("template", o.template).Msg("render failed")
					fmt.Fprintf(errOut, "render failed: %v\n", err)
					return
				}
				fmt.Fprintf(out, "%s wrote %s\n", time.Now().Format("15:04:05"), o.output)
			}

			paths := []string{o.template}
			if o.data != "" {
				paths = append(paths, o.data)
			}
			for _, p := range images {
				paths = append(paths, p)
			}

			w, err := newFileWatcher(paths, debounce, errOut, func(_ context.Context, changed []string) {
				stencil.GetLogger().Debug().Strs("changed", changed).Msg("inputs changed")
				render()
			})
			if err != nil {
				return err
			}

			render()
			fmt.Fprintf(out, "watching %d file(s), press Ctrl+C to stop\n", len(paths))
			return w.Run(cmd.Context())
		},
	}
	o.bind(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "quiet period before rendering again")
	return cmd
}
