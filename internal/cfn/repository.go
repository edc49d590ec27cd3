package cfn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/rs/zerolog"
)

// preferredTemplateNames is the lookup order for template files inside a
// resource type directory, before falling back to any .yaml/.yml and then
// any .json file.
var preferredTemplateNames = []string{
	"template.yaml",
	"template.yml",
	"cloudformation.yaml",
	"cloudformation.yml",
	"template.json",
	"cloudformation.json",
}

// TemplateRepository exposes read access to a collection of CloudFormation
// templates organized as one directory per resource type, backed by either
// a git clone or a plain local directory.
//
// Reads are served from an immutable in-memory snapshot. Refresh builds a
// new snapshot and swaps it in atomically, so readers never observe a
// half-updated cache; a single-writer mutex ensures only one clone/pull is
// in flight at a time while readers continue against the last-known-good
// snapshot.
type TemplateRepository struct {
	repoURL    string
	localPath  string
	username   string
	token      string
	sshKeyPath string

	refreshMu sync.Mutex
	snapshot  atomic.Pointer[templateSnapshot]

	log zerolog.Logger
}

// templateSnapshot is one immutable view of the template collection.
type templateSnapshot struct {
	// resourceTypes lists every non-hidden directory name, sorted.
	resourceTypes []string
	// templates holds the resolved template file for each resource type
	// that has one. Listed types without a template file are absent here.
	templates map[string]templateEntry
}

// templateEntry is a resolved template file and its raw body.
type templateEntry struct {
	path string
	body []byte
}

// NewTemplateRepository builds a repository from config. When a repo URL is
// configured the initial clone (or pull of an existing clone) happens here;
// otherwise the local path must already exist.
func NewTemplateRepository(ctx context.Context, cfg *Config, log zerolog.Logger) (*TemplateRepository, error) {
	r := &TemplateRepository{
		repoURL:    cfg.RepoURL,
		localPath:  cfg.LocalPath,
		username:   cfg.GitUsername,
		token:      cfg.GitToken,
		sshKeyPath: cfg.GitSSHKeyPath,
		log:        log.With().Str("component", "repository").Logger(),
	}

	if r.repoURL == "" {
		if _, err := os.Stat(r.localPath); err != nil {
			return nil, fmt.Errorf("template path %q: %w", r.localPath, err)
		}
	}

	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh clones or pulls the remote (when configured) and rebuilds the
// snapshot from disk. Only one refresh runs at a time; concurrent calls
// queue behind the mutex. Readers keep using the previous snapshot until
// the swap.
func (r *TemplateRepository) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	if r.repoURL != "" {
		if err := r.cloneOrPull(ctx); err != nil {
			return err
		}
	}

	snap, err := buildSnapshot(r.localPath)
	if err != nil {
		return err
	}
	r.snapshot.Store(snap)
	r.log.Info().Int("resource_types", len(snap.resourceTypes)).Msg("template snapshot refreshed")
	return nil
}

// cloneOrPull syncs the local clone with the remote. Callers hold refreshMu.
func (r *TemplateRepository) cloneOrPull(ctx context.Context) error {
	auth, err := r.authMethod()
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(filepath.Join(r.localPath, ".git")); statErr == nil {
		repo, openErr := git.PlainOpen(r.localPath)
		if openErr != nil {
			return fmt.Errorf("open template repository %q: %w", r.localPath, openErr)
		}
		wt, wtErr := repo.Worktree()
		if wtErr != nil {
			return fmt.Errorf("template repository worktree: %w", wtErr)
		}
		pullErr := wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin", Auth: auth})
		if pullErr != nil && !errors.Is(pullErr, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("pull template repository: %w", pullErr)
		}
		r.log.Info().Str("path", r.localPath).Msg("template repository updated")
		return nil
	}

	if _, cloneErr := git.PlainCloneContext(ctx, r.localPath, false, &git.CloneOptions{
		URL:  r.repoURL,
		Auth: auth,
	}); cloneErr != nil {
		return fmt.Errorf("clone template repository %q: %w", r.repoURL, cloneErr)
	}
	r.log.Info().Str("url", r.repoURL).Str("path", r.localPath).Msg("template repository cloned")
	return nil
}

// authMethod builds the transport auth for the configured credentials:
// username/token for HTTPS remotes, a key file for SSH remotes, nil for
// public access.
func (r *TemplateRepository) authMethod() (transport.AuthMethod, error) {
	if r.sshKeyPath != "" {
		keys, err := gitssh.NewPublicKeysFromFile("git", r.sshKeyPath, "")
		if err != nil {
			return nil, fmt.Errorf("load git ssh key %q: %w", r.sshKeyPath, err)
		}
		return keys, nil
	}
	if r.username != "" && r.token != "" && strings.HasPrefix(r.repoURL, "https://") {
		return &githttp.BasicAuth{Username: r.username, Password: r.token}, nil
	}
	return nil, nil
}

// ListResourceTypes returns the sorted resource type names from the current
// snapshot.
func (r *TemplateRepository) ListResourceTypes() []string {
	snap := r.snapshot.Load()
	out := make([]string, len(snap.resourceTypes))
	copy(out, snap.resourceTypes)
	return out
}

// ReadTemplate parses the template for a resource type. The document is
// reconstructed from the raw body on every call, so callers may not mutate
// shared state through it.
func (r *TemplateRepository) ReadTemplate(resourceType string) (*TemplateDocument, error) {
	entry, err := r.lookup(resourceType)
	if err != nil {
		return nil, err
	}
	doc, err := ParseTemplate(entry.body)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", resourceType, err)
	}
	return doc, nil
}

// TemplateBody returns the raw template body for a resource type.
func (r *TemplateRepository) TemplateBody(resourceType string) (string, error) {
	entry, err := r.lookup(resourceType)
	if err != nil {
		return "", err
	}
	return string(entry.body), nil
}

// lookup resolves a resource type against the current snapshot,
// distinguishing "type not listed" from "type listed but no template file".
func (r *TemplateRepository) lookup(resourceType string) (templateEntry, error) {
	snap := r.snapshot.Load()
	entry, ok := snap.templates[resourceType]
	if ok {
		return entry, nil
	}
	if contains(snap.resourceTypes, resourceType) {
		return templateEntry{}, fmt.Errorf("resource type %q: %w (expected .yaml, .yml, or .json)",
			resourceType, ErrTemplateNotFound)
	}
	return templateEntry{}, fmt.Errorf("resource type %q: %w", resourceType, ErrResourceTypeNotFound)
}

// buildSnapshot walks the template directory and loads every resolvable
// template body into memory.
func buildSnapshot(basePath string) (*templateSnapshot, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("read template directory %q: %w", basePath, err)
	}

	snap := &templateSnapshot{templates: map[string]templateEntry{}}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		snap.resourceTypes = append(snap.resourceTypes, e.Name())

		path, ok := resolveTemplatePath(filepath.Join(basePath, e.Name()))
		if !ok {
			continue
		}
		body, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read template %q: %w", path, readErr)
		}
		snap.templates[e.Name()] = templateEntry{path: path, body: body}
	}
	sort.Strings(snap.resourceTypes)
	return snap, nil
}

// resolveTemplatePath finds the template file inside a resource type
// directory: preferred names first, then any .yaml/.yml, then any .json.
func resolveTemplatePath(dir string) (string, bool) {
	for _, name := range preferredTemplateNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], true
		}
	}
	return "", false
}
