// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Command uploader pushes local archive files to the bucket the pipeline
// reads from.
package main

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/drorzp/justel-pipeline/batch"
	"github.com/drorzp/justel-pipeline/batch/s3"
	"github.com/drorzp/justel-pipeline/config"
)

var errNoArchives = errors.New("no archives found")

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "uploader",
		Usage: "upload archives of extracted legal documents to object storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the justel config file",
			},
			&cli.StringFlag{
				Name:     "src",
				Usage:    "archive file or directory of archives",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "key prefix (defaults to s3.prefix from the config)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "list what would be uploaded without uploading",
			},
		},
		Action: uploadAction,
	}
}

func uploadAction(c *cli.Context) error {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	prefix := settings.S3.Prefix
	if c.IsSet("prefix") {
		prefix = c.String("prefix")
	}
	ext := settings.Batch.Extension

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store batch.ObjectStore
	if !c.Bool("dry-run") {
		if settings.S3.Bucket == "" {
			return config.ErrBucketRequired
		}
		store, err = s3.New(ctx, s3.Config{
			Bucket:       settings.S3.Bucket,
			Region:       settings.S3.Region,
			Endpoint:     settings.S3.Endpoint,
			UsePathStyle: settings.S3.UsePathStyle,
			Anonymous:    settings.S3.Anonymous,
		}, slog.Default())
		if err != nil {
			return err
		}
	}

	n, err := uploadAll(ctx, store, c.String("src"), prefix, ext, c.App.Writer)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d archive(s) processed\n", n)
	return nil
}

// archivesIn yields the archives under src in lexical order. A plain file
// is yielded as is when it carries the extension.
func archivesIn(src, ext string) (iter.Seq[string], error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	var files []string
	if !info.IsDir() {
		if strings.EqualFold(filepath.Ext(src), ext) {
			files = append(files, src)
		}
	} else {
		err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ext) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(files)
	return slices.Values(files), nil
}

// objectKey places the archive's base name under prefix.
func objectKey(prefix, file string) string {
	name := filepath.Base(file)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// countRecords returns how many JSON records the archive holds.
func countRecords(file string) (int, error) {
	r, err := zip.OpenReader(file)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	n := 0
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && strings.HasSuffix(strings.ToLower(f.Name), ".json") {
			n++
		}
	}
	return n, nil
}

// uploadAll uploads every archive under src. A nil store makes it a dry
// run. It returns the number of archives handled.
func uploadAll(ctx context.Context, store batch.ObjectStore, src, prefix, ext string, out io.Writer) (int, error) {
	files, err := archivesIn(src, ext)
	if err != nil {
		return 0, err
	}

	n := 0
	for file := range files {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		records, err := countRecords(file)
		if err != nil {
			return n, fmt.Errorf("read %s: %w", file, err)
		}
		key := objectKey(prefix, file)
		if store == nil {
			fmt.Fprintf(out, "would upload %s -> %s (%d records)\n", file, key, records)
			n++
			continue
		}
		slog.Info("uploading archive", "file", file, "key", key, "records", records)
		if err := store.Upload(ctx, key, file); err != nil {
			return n, fmt.Errorf("upload %s: %w", file, err)
		}
		fmt.Fprintf(out, "uploaded %s -> %s (%d records)\n", file, key, records)
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("%w in %s", errNoArchives, src)
	}
	return n, nil
}
