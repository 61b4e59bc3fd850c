package target

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Undefined is the version of targets that carry no version information.
const Undefined = "undefined"

// IsRepository reports whether path is the root of a git working tree.
func IsRepository(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

// RepositoryName returns the final segment of the origin remote URL without
// its .git suffix.
func RepositoryName(repo *git.Repository) (string, bool) {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return "", false
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", false
	}

	url := strings.TrimRight(urls[0], "/")
	if i := strings.LastIndexAny(url, "/:"); i >= 0 {
		url = url[i+1:]
	}

	name := strings.TrimSuffix(url, ".git")
	if name == "" {
		return "", false
	}

	return name, true
}

// Describe returns the nearest tag reachable from HEAD: the tag itself when
// HEAD is tagged, otherwise tag-N-g<abbrev>.
func Describe(repo *git.Repository) (string, bool, error) {
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	tags, err := tagsByCommit(repo)
	if err != nil {
		return "", false, err
	}

	if len(tags) == 0 {
		return "", false, nil
	}

	commits, err := repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return "", false, fmt.Errorf("failed to read history: %w", err)
	}

	var (
		tag      string
		distance int
	)
	err = commits.ForEach(func(c *object.Commit) error {
		if name, ok := tags[c.Hash]; ok {
			tag = name
			return storer.ErrStop
		}

		distance++
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read history: %w", err)
	}

	if tag == "" {
		return "", false, nil
	}

	if distance == 0 {
		return tag, true, nil
	}

	return fmt.Sprintf("%s-%d-g%s", tag, distance, head.Hash().String()[:7]), true, nil
}

func tagsByCommit(repo *git.Repository) (map[plumbing.Hash]string, error) {
	refs, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	var names []*plumbing.Reference
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	sort.Slice(names, func(i, j int) bool {
		return names[i].Name().Short() < names[j].Name().Short()
	})

	tags := map[plumbing.Hash]string{}
	for _, ref := range names {
		hash := ref.Hash()

		annotated, err := repo.TagObject(hash)
		switch {
		case err == nil:
			commit, err := annotated.Commit()
			if err != nil {
				continue
			}
			hash = commit.Hash

		case !errors.Is(err, plumbing.ErrObjectNotFound):
			return nil, fmt.Errorf("failed to read tag %s: %w", ref.Name().Short(), err)
		}

		if _, ok := tags[hash]; !ok {
			tags[hash] = ref.Name().Short()
		}
	}

	return tags, nil
}

func classifyRepository(path string, options Options) (Target, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return Target{}, fmt.Errorf("failed to open git repository %s: %w", path, err)
	}

	target := Target{
		path:    path,
		kind:    Git,
		name:    options.Name,
		version: options.Version,
	}

	if target.name == "" {
		if name, ok := RepositoryName(repo); ok {
			target.name = name
		} else {
			target.name = filepath.Base(filepath.Clean(path))
		}
	}

	if target.version == "" {
		version, ok, err := Describe(repo)
		if err != nil {
			return Target{}, err
		}

		if !ok {
			version = Undefined
		}

		target.version = version
	}

	return target, nil
}
