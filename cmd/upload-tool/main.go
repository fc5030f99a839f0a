// upload-tool creates a project and uploads a local directory into it.
//
// It walks the directory, skips hidden folders and dependency folders, and
// uploads each file through the server API so that listings and content
// stay consistent with browser uploads.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/novacode/novacode/pkg/client"
	"github.com/novacode/novacode/pkg/logging"
)

var (
	serverURL    string
	authToken    string
	projectID    string
	projectName  string
	description  string
	organization string
	maxFileSize  int64
	logLevel     string
)

var skipDirs = []string{"node_modules", "vendor", "__pycache__"}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "upload-tool <dir>",
	Short: "Upload a local directory as a novacode project",
	Long: `Upload every file under a directory to a novacode server.

Without --project a new project is created, named after the directory
unless --name is given.

Examples:
  upload-tool ./my-site
  upload-tool --project 3f2a9c1e-... ./my-site`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runUpload,
}

func init() {
	_ = godotenv.Load()

	f := rootCmd.Flags()
	f.StringVar(&serverURL, "server", envOr("NOVACODE_SERVER", "http://localhost:8080"), "novacode server URL")
	f.StringVar(&authToken, "token", os.Getenv("NOVACODE_TOKEN"), "bearer token")
	f.StringVar(&projectID, "project", "", "upload into an existing project")
	f.StringVar(&projectName, "name", "", "name of the new project (default: directory name)")
	f.StringVar(&description, "description", "", "description of the new project")
	f.StringVar(&organization, "organization", "", "organization of the new project")
	f.Int64Var(&maxFileSize, "max-size", 10*1024*1024, "skip files larger than this many bytes")
	f.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// summary counts the outcome of one run.
type summary struct {
	uploaded int
	skipped  int
	failed   int
	bytes    int64
}

func runUpload(cmd *cobra.Command, args []string) error {
	logging.InitCLI()
	logging.SetLevel(logLevel)

	dir := args[0]
	files, skipped, err := collectFiles(dir, maxFileSize)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c := client.New(client.Config{BaseURL: serverURL, AuthToken: authToken})
	out := cmd.OutOrStdout()

	id := projectID
	if id == "" {
		name := projectName
		if name == "" {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			name = filepath.Base(abs)
		}
		created, err := c.CreateProject(ctx, client.CreateProjectRequest{
			Name:         name,
			Description:  description,
			Organization: organization,
		})
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		id = created.ProjectID
		fmt.Fprintf(out, "created project %q (%s)\n", name, id)
	}

	start := time.Now()
	s := uploadAll(ctx, c, id, dir, files, func(format string, a ...any) {
		fmt.Fprintf(out, format, a...)
	})
	s.skipped = skipped

	fmt.Fprintf(out, "\n%d uploaded (%d bytes), %d skipped, %d failed in %s\n",
		s.uploaded, s.bytes, s.skipped, s.failed, time.Since(start).Round(time.Millisecond))
	if s.failed > 0 {
		return fmt.Errorf("%d uploads failed", s.failed)
	}
	return nil
}

// uploader is the part of the client used to push files.
type uploader interface {
	UploadFile(ctx context.Context, projectID, path string, data []byte) error
}

type clientUploader struct{ c *client.Client }

func (u clientUploader) UploadFile(ctx context.Context, projectID, path string, data []byte) error {
	_, err := u.c.UploadFile(ctx, projectID, path, data)
	return err
}

func uploadAll(ctx context.Context, c *client.Client, projectID, dir string, files []string, printf func(string, ...any)) summary {
	return uploadFiles(ctx, clientUploader{c}, projectID, dir, files, printf)
}

func uploadFiles(ctx context.Context, u uploader, projectID, dir string, files []string, printf func(string, ...any)) summary {
	var s summary
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			printf("  FAIL %s: %v\n", rel, err)
			s.failed++
			continue
		}
		if err := u.UploadFile(ctx, projectID, rel, data); err != nil {
			printf("  FAIL %s: %v\n", rel, err)
			s.failed++
			continue
		}
		printf("  FILE %s (%d bytes)\n", rel, len(data))
		s.uploaded++
		s.bytes += int64(len(data))
	}
	return s
}

// collectFiles returns the slash-separated paths of the regular files
// under dir, sorted, and the number of files skipped for size.
func collectFiles(dir string, maxSize int64) ([]string, int, error) {
	var (
		files   []string
		skipped int
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == dir {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || slices.Contains(skipDirs, name) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if maxSize > 0 && info.Size() > maxSize {
			skipped++
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, skipped, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
