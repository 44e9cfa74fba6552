// Package project resolves which project a captured learning belongs
// to, so queued items can later be grouped by codebase. Resolution is
// best-effort and never fails: outside a repository the directory name
// stands in.
package project

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Identity tags a captured learning with its origin project.
type Identity struct {
	// Name is "owner/repo" derived from the origin remote when
	// available, otherwise the repository or directory basename.
	Name string `json:"name"`

	// Root is the repository root, or the directory itself outside git.
	Root string `json:"root"`

	// Remote is the raw origin URL. Empty outside git or without an
	// origin remote.
	Remote string `json:"remote,omitempty"`
}

// Detect resolves the identity for dir. An empty dir means the current
// working directory.
func Detect(dir string) Identity {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Identity{Name: "unknown"}
		}
		dir = wd
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Identity{Name: filepath.Base(dir), Root: dir}
	}

	root := dir
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}

	id := Identity{Name: filepath.Base(root), Root: root}

	remote, err := repo.Remote("origin")
	if err != nil {
		return id
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return id
	}

	id.Remote = urls[0]
	if name := ownerRepo(urls[0]); name != "" {
		id.Name = name
	}
	return id
}

// ownerRepo extracts "owner/repo" from a forge remote URL. Handles
// https, ssh, and scp-like forms; anything it cannot place under a
// hostname yields "".
func ownerRepo(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")
	url = strings.TrimSuffix(url, ".git")

	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
	}
	if i := strings.Index(url, "@"); i >= 0 {
		url = url[i+1:]
	}
	url = strings.ReplaceAll(url, ":", "/")

	parts := strings.Split(url, "/")
	if len(parts) < 3 || !strings.Contains(parts[0], ".") {
		return ""
	}
	owner := parts[len(parts)-2]
	repo := parts[len(parts)-1]
	if owner == "" || repo == "" {
		return ""
	}
	return owner + "/" + repo
}
