package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"k8s.io/klog/v2"

	"github.com/tensorfuzz/domaininfer/pkg/artifacts"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := klog.FromContext(ctx)

	listen := ":8080"
	cacheDir := os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		// We expect CACHE_DIR to be set when running on kubernetes, but default sensibly for local dev
		cacheDir = "~/.cache/domainserver/artifacts"
	}
	klog.InitFlags(nil)
	flag.StringVar(&listen, "listen", listen, "listen address")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "cache directory")
	flag.Parse()

	if strings.HasPrefix(cacheDir, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		cacheDir = filepath.Join(homeDir, strings.TrimPrefix(cacheDir, "~/"))
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory %q: %w", cacheDir, err)
	}

	var upstream artifacts.Store
	if bucket := os.Getenv("CACHE_BUCKET"); bucket != "" {
		if !strings.HasPrefix(bucket, "gs://") {
			return fmt.Errorf("CACHE_BUCKET must be a GCS bucket URL (gs://<bucketName>)")
		}
		bucket = strings.TrimPrefix(bucket, "gs://")
		log.Info("using GCS upstream", "bucket", bucket)
		upstream = &artifacts.GCSStore{Bucket: bucket}
	}

	s := &httpServer{
		cache: &artifactCache{
			BaseDir:  cacheDir,
			upstream: upstream,
		},
	}

	klog.Infof("serving on %q", listen)
	if err := http.ListenAndServe(listen, s); err != nil {
		return fmt.Errorf("serving on %q: %w", listen, err)
	}

	return nil
}

type httpServer struct {
	cache *artifactCache
}

// Artifact keys are model digests (hex sha256).
var validKey = regexp.MustCompile(`^[0-9a-f]{64}$`)

func (s *httpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokens := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(tokens) == 1 {
		if r.Method == "GET" {
			key := tokens[0]
			if !validKey.MatchString(key) {
				http.Error(w, "invalid artifact key", http.StatusBadRequest)
				return
			}
			s.serveGETArtifact(w, r, key)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	http.Error(w, "not found", http.StatusNotFound)
}

func (s *httpServer) serveGETArtifact(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()

	log := klog.FromContext(ctx)

	f, err := s.cache.GetArtifact(ctx, key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Error(err, "error getting artifact")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	klog.Infof("serving artifact %q", f.Name())
	http.ServeFile(w, r, f.Name())
}

type artifactCache struct {
	BaseDir string
	// upstream, when set, backfills cache misses.
	upstream artifacts.Store
}

func (c *artifactCache) GetArtifact(ctx context.Context, key string) (*os.File, error) {
	localPath := filepath.Join(c.BaseDir, key)
	f, err := os.Open(localPath)
	if err == nil {
		return f, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("opening artifact %q: %w", key, err)
	}

	if c.upstream == nil {
		return nil, fmt.Errorf("artifact %q not cached: %w", key, os.ErrNotExist)
	}

	if err := c.upstream.Download(ctx, key, localPath); err != nil {
		return nil, err
	}
	return os.Open(localPath)
}
