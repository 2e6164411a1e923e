package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/mchmarny/leadpulse/pkg/lead"
	"github.com/mchmarny/leadpulse/pkg/net"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	importConcurrency = 4
	saveDirMode       = 0700

	fileFlagName = "file"
	saveFlagName = "save"
)

func importCmd() *cli.Command {
	return &cli.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "Replace the lead snapshot with the content of one or more CSV files",
		UsageText: `leadpulse import --file master_lead_dataframe.csv
   leadpulse import --file google.csv --file meta.csv   # files are appended in the given order
   leadpulse import --file https://example.com/leads.csv --save ./snapshots`,
		Action: cmdImport,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     fileFlagName,
				Aliases:  []string{"f"},
				Usage:    "Master lead table CSV file or http(s) URL (can be specified multiple times)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  saveFlagName,
				Usage: "Directory in which to keep a local copy of every remote file (optional)",
			},
		},
	}
}

type ImportResult struct {
	Files    []string `json:"files" yaml:"files"`
	Saved    []string `json:"saved,omitempty" yaml:"saved,omitempty"`
	Rows     int      `json:"rows" yaml:"rows"`
	Churned  int      `json:"churned" yaml:"churned"`
	Duration string   `json:"duration" yaml:"duration"`
}

func (r *ImportResult) table() *table {
	return &table{
		headers: []string{"Files", "Rows", "Churned", "Duration"},
		rows:    [][]string{{strings.Join(r.Files, ", "), fmtInt(r.Rows), fmtInt(r.Churned), r.Duration}},
	}
}

func cmdImport(ctx context.Context, cmd *cli.Command) error {
	start := time.Now()
	files := cmd.StringSlice(fileFlagName)
	if len(files) == 0 {
		return cli.ShowSubcommandHelp(cmd)
	}

	cfg := getConfig(cmd)

	saveDir := cmd.String(saveFlagName)
	if saveDir != "" {
		if err := os.MkdirAll(saveDir, saveDirMode); err != nil {
			return fmt.Errorf("failed to create %s: %w", saveDir, err)
		}
	}

	srcs := sources(files, saveDir)

	leads, err := readFiles(ctx, srcs)
	if err != nil {
		return err
	}

	n, err := data.SaveLeads(cfg.DB, strings.Join(files, ","), leads)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	res := &ImportResult{
		Files:    files,
		Rows:     n,
		Duration: time.Since(start).String(),
	}
	for _, src := range srcs {
		if src.local != "" {
			res.Saved = append(res.Saved, src.local)
		}
	}
	for _, l := range leads {
		if l.Churn {
			res.Churned++
		}
	}

	slog.Info("snapshot imported", "files", len(files), "rows", n)
	return output(cmd, res)
}

// source is one import argument. Remote files with a local path are
// downloaded there first and decoded from the copy.
type source struct {
	path  string
	local string
}

// sources resolves the local copy path of every remote file when saveDir is set.
// Remote files sharing a name are prefixed with their argument position.
func sources(files []string, saveDir string) []source {
	list := make([]source, len(files))
	used := make(map[string]bool)
	for i, f := range files {
		list[i].path = f
		if saveDir == "" || !net.IsURL(f) {
			continue
		}
		name := remoteFileName(f, i)
		if used[name] {
			name = fmt.Sprintf("%d-%s", i+1, name)
		}
		used[name] = true
		list[i].local = filepath.Join(saveDir, name)
	}
	return list
}

func remoteFileName(raw string, i int) string {
	if u, err := url.Parse(raw); err == nil {
		if name := path.Base(u.Path); name != "." && name != "/" {
			return name
		}
	}
	return fmt.Sprintf("snapshot-%d.csv", i+1)
}

// readFiles decodes the files concurrently and concatenates them in argument order.
func readFiles(ctx context.Context, srcs []source) ([]*lead.Lead, error) {
	parts := make([][]*lead.Lead, len(srcs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)

	for i, src := range srcs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			p := src.path
			if src.local != "" {
				if err := net.Download(ctx, src.path, src.local); err != nil {
					return fmt.Errorf("failed to download %s: %w", src.path, err)
				}
				slog.Debug("remote file saved", "url", src.path, "path", src.local)
				p = src.local
			}

			f, err := openSource(ctx, p)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", src.path, err)
			}
			defer f.Close()

			list, err := lead.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", src.path, err)
			}

			slog.Debug("file decoded", "path", src.path, "rows", len(list))
			parts[i] = list
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, p := range parts {
		total += len(p)
	}

	leads := make([]*lead.Lead, 0, total)
	for _, p := range parts {
		leads = append(leads, p...)
	}
	return leads, nil
}

func openSource(ctx context.Context, path string) (io.ReadCloser, error) {
	if net.IsURL(path) {
		return net.Open(ctx, path)
	}
	return os.Open(path)
}
