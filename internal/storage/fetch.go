package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Fetcher materializes a document reference (s3://bucket/key, http(s) URL or
// local path) into a local file the PDF pipeline can open.
type Fetcher struct {
	workDir string
	http    *http.Client

	s3cli *s3.Client // lazy, only when an s3:// ref shows up
}

func NewFetcher(workDir string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{
		workDir: workDir,
		http:    &http.Client{Timeout: timeout},
	}
}

// Fetch resolves ref to a local path. Local paths are returned as-is (with
// cleanup=false); remote refs are downloaded into workDir and cleanup=true
// tells the caller to delete the file when done.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (localPath string, cleanup bool, err error) {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		p, err := f.fetchS3(ctx, ref)
		return p, true, err
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		p, err := f.fetchHTTP(ctx, ref)
		return p, true, err
	default:
		if _, err := os.Stat(ref); err != nil {
			return "", false, fmt.Errorf("document not found: %s: %w", ref, err)
		}
		return ref, false, nil
	}
}

func (f *Fetcher) fetchS3(ctx context.Context, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("bad s3 ref %q: %w", ref, err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", fmt.Errorf("bad s3 ref %q: need s3://bucket/key", ref)
	}

	if f.s3cli == nil {
		cfg, err := awscfg.LoadDefaultConfig(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to load AWS config: %w", err)
		}
		f.s3cli = s3.NewFromConfig(cfg)
	}

	out, err := f.s3cli.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	local, err := f.spool(path.Base(key), out.Body)
	if err != nil {
		return "", err
	}

	log.Info().Str("bucket", bucket).Str("key", key).Str("local", local).Msg("downloaded document from S3")
	return local, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, ref string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", ref, resp.StatusCode)
	}

	name := path.Base(req.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "document.pdf"
	}
	local, err := f.spool(name, resp.Body)
	if err != nil {
		return "", err
	}

	log.Info().Str("url", ref).Str("local", local).Msg("downloaded document over HTTP")
	return local, nil
}

// spool streams r into a fresh file under workDir.
func (f *Fetcher) spool(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(f.workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	tmp, err := os.CreateTemp(f.workDir, "doc_*_"+filepath.Base(name))
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, r); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("spool document: %w", err)
	}
	return tmp.Name(), nil
}
