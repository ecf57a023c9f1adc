package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"docsearch/internal/extract"
	"docsearch/internal/ingest"
	"docsearch/internal/models"
	"docsearch/internal/util"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	ingestWorkspace string
	ingestProject   string
	ingestDir       string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest files into a workspace",
	Long: `Runs extraction, chunking and embedding for each file in-process.
Files already ingested into the workspace with the same content are skipped.
A failing file does not stop the others.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestWorkspace, "workspace", "w", "main", "target workspace id")
	ingestCmd.Flags().StringVarP(&ingestProject, "project", "p", "", "project label stored on documents and chunks")
	ingestCmd.Flags().StringVarP(&ingestDir, "directory", "d", "", "ingest every supported file in this directory")
	rootCmd.AddCommand(ingestCmd)
}

// collectPaths merges explicit paths with the supported files of dir,
// dropping duplicates.
func collectPaths(args []string, dir string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, a := range args {
		add(filepath.Clean(a))
	}
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read directory: %w", err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, ok := extract.FileTypeOf(e.Name()); ok {
				found = append(found, filepath.Join(dir, e.Name()))
			}
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return out, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	paths, err := collectPaths(args, ingestDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files to ingest")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		mu     sync.Mutex
		failed int
	)
	report := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		cmd.Printf(format, args...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.Config.IngestConcurrency))
	for _, path := range paths {
		g.Go(func() error {
			res, skipped, err := ingestOne(gctx, a.Pipeline, a.Documents, path)
			switch {
			case skipped:
				report("skip  %s (already ingested as %s)\n", res.FileName, res.DocumentID)
			case err != nil:
				mu.Lock()
				failed++
				mu.Unlock()
				report("fail  %s [%s] %s\n", res.FileName, res.ErrorKind, res.Error)
			default:
				report("ok    %s %d/%d chunks via %s (%s)\n", res.FileName, res.SavedChunks, res.TotalChunks, res.Method, res.DocumentID)
			}
			// only cancellation stops the batch
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

type hashLookup interface {
	FindDocumentByHash(ctx context.Context, workspace, hash string) (models.Document, bool, error)
}

func ingestOne(ctx context.Context, p *ingest.Pipeline, docs hashLookup, path string) (ingest.Result, bool, error) {
	name := filepath.Base(path)
	hash, _, err := util.SHA256File(path)
	if err != nil {
		res := ingest.Result{FileName: name, Workspace: ingestWorkspace, Error: err.Error(), ErrorKind: util.KindExtraction}
		return res, false, err
	}
	if existing, found, err := docs.FindDocumentByHash(ctx, ingestWorkspace, hash); err == nil && found && existing.Complete() {
		return ingest.Result{Success: true, DocumentID: existing.ID, FileName: name, Workspace: ingestWorkspace}, true, nil
	}
	res, err := p.Ingest(ctx, ingest.Request{
		Path:         path,
		FileName:     name,
		ProjectLabel: ingestProject,
		Workspace:    ingestWorkspace,
		ContentHash:  hash,
	})
	return res, false, err
}
