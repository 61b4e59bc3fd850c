package oci

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	docker "github.com/docker/docker/client"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/daemon"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/paketo-buildpacks/tally/internal/target"
)

// RetryLimit bounds the time spent retrying registry pulls.
const RetryLimit = 3 * time.Minute

// A Layout is an image written to disk in the OCI image layout.
type Layout struct {
	Path    string
	Name    string
	Version string
}

// A Fetcher materializes image references from a registry or the Docker
// daemon as OCI layouts.
type Fetcher struct {
	dir      string
	keychain authn.Keychain
	logger   scribe.Logger
}

func NewFetcher(dir string, logger scribe.Logger) Fetcher {
	return Fetcher{
		dir:      dir,
		keychain: authn.DefaultKeychain,
		logger:   logger,
	}
}

// Fetch pulls the referenced image and writes it to
// {dir}/{name}_{version}. References prefixed with docker: are read from the
// daemon; everything else is pulled from its registry.
func (f Fetcher) Fetch(ctx context.Context, value string) (Layout, error) {
	ref, err := name.ParseReference(target.TrimTransport(value))
	if err != nil {
		return Layout{}, fmt.Errorf("failed to parse image reference %q: %w", value, err)
	}

	var image v1.Image
	if strings.HasPrefix(value, target.DaemonPrefix) {
		f.logger.Action("Reading %s from the Docker daemon", ref)
		image, err = f.fromDaemon(ctx, ref)
	} else {
		f.logger.Action("Pulling %s", ref)
		image, err = f.fromRegistry(ctx, ref)
	}
	if err != nil {
		return Layout{}, err
	}

	imageName, version := target.ImageIdentity(ref.String())
	destination := filepath.Join(f.dir, fmt.Sprintf("%s_%s", scan.FileSafe(imageName), scan.FileSafe(version)))

	err = WriteLayout(destination, image, ref)
	if err != nil {
		return Layout{}, err
	}

	f.logger.Action("Wrote OCI layout to %s", destination)

	return Layout{
		Path:    destination,
		Name:    imageName,
		Version: version,
	}, nil
}

func (f Fetcher) fromDaemon(ctx context.Context, ref name.Reference) (v1.Image, error) {
	client, err := docker.NewClientWithOpts(docker.FromEnv, docker.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the Docker daemon: %w", err)
	}
	defer client.Close()

	image, err := daemon.Image(ref, daemon.WithClient(client), daemon.WithContext(ctx), daemon.WithBufferedOpener())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from the Docker daemon: %w", ref, err)
	}

	return image, nil
}

func (f Fetcher) fromRegistry(ctx context.Context, ref name.Reference) (v1.Image, error) {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.MaxElapsedTime = RetryLimit

	var image v1.Image
	err := backoff.RetryNotify(func() error {
		var err error
		image, err = remote.Image(ref, remote.WithAuthFromKeychain(f.keychain), remote.WithContext(ctx))
		if err != nil {
			if retryable(err) {
				return err
			}

			return backoff.Permanent(err)
		}

		return nil
	},
		backoff.WithContext(exponentialBackoff, ctx),
		func(err error, t time.Duration) {
			f.logger.Detail("%s", err)
			f.logger.Detail("Retrying in %s", t)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", ref, err)
	}

	return image, nil
}

func retryable(err error) bool {
	var terr *transport.Error
	if errors.As(err, &terr) {
		return terr.Temporary()
	}

	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// WriteLayout replaces destination with an OCI layout holding image. The
// reference is recorded in the index annotations.
func WriteLayout(destination string, image v1.Image, ref name.Reference) error {
	err := os.RemoveAll(destination)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", destination, err)
	}

	err = os.MkdirAll(destination, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destination, err)
	}

	index, err := layout.Write(destination, empty.Index)
	if err != nil {
		return fmt.Errorf("failed to write OCI layout: %w", err)
	}

	err = index.AppendImage(image, layout.WithAnnotations(map[string]string{
		ocispec.AnnotationRefName:       ref.Identifier(),
		ocispec.AnnotationBaseImageName: ref.Context().Name(),
	}))
	if err != nil {
		return fmt.Errorf("failed to write image to OCI layout: %w", err)
	}

	return nil
}
