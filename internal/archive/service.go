// Package archive keeps a git history of experience snapshots. Each
// experience gets its own repository holding a single content.json that is
// rewritten and committed after every successful registration or patch.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"experiences/api/internal/experience"
)

const (
	contentFile = "content.json"
	mainBranch  = "main"
)

// Revision describes one archived snapshot.
type Revision struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Changes   []string  `json:"changes"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[int64]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[int64]*sync.Mutex),
		now:     time.Now,
	}
}

// Snapshot commits the current state of an experience. An unchanged
// snapshot returns the existing head revision without a new commit.
func (s *Service) Snapshot(e *experience.Experience, author, message string) (Revision, error) {
	if e == nil || e.ID <= 0 {
		return Revision{}, errors.New("archive: experience must be persisted first")
	}
	lock := s.experienceLock(e.ID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(e.ID)
	if err != nil {
		return Revision{}, err
	}

	payload, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return Revision{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	payload = append(payload, '\n')

	if head, ok, err := headCommit(repo); err != nil {
		return Revision{}, err
	} else if ok {
		current, err := readContentBytes(head)
		if err == nil && bytes.Equal(current, payload) {
			return toRevision(head, nil), nil
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Revision{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), contentFile), payload, 0o644); err != nil {
		return Revision{}, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return Revision{}, fmt.Errorf("git add snapshot: %w", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@experiences.local", sanitizeEmail(author)),
			When:  s.now(),
		},
	})
	if err != nil {
		return Revision{}, fmt.Errorf("commit snapshot: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj, nil), nil
}

// History lists revisions newest first. Each revision names the top-level
// fields that changed relative to its parent. An experience that was never
// archived has an empty history.
func (s *Service) History(experienceID int64, limit int) ([]Revision, error) {
	lock := s.experienceLock(experienceID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(experienceID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, ok, err := headCommit(repo)
	if err != nil || !ok {
		return []Revision{}, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Revision, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevision(commitObj, changedFields(commitObj)))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Content returns the snapshot stored at a revision.
func (s *Service) Content(experienceID int64, hash string) (*experience.Experience, error) {
	lock := s.experienceLock(experienceID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(experienceID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return nil, fmt.Errorf("resolve revision %s: %w", hash, err)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	raw, err := readContentBytes(commitObj)
	if err != nil {
		return nil, err
	}
	var snapshot experience.Experience
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	snapshot.Normalize()
	return &snapshot, nil
}

func (s *Service) repoPath(experienceID int64) string {
	return filepath.Join(s.baseDir, strconv.FormatInt(experienceID, 10))
}

func (s *Service) experienceLock(experienceID int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[experienceID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[experienceID] = lock
	return lock
}

func (s *Service) openOrInit(experienceID int64) (*git.Repository, error) {
	path := s.repoPath(experienceID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", mainBranch, err)
	}
	return repo, nil
}

// headCommit reports false for a repository with no commits yet.
func headCommit(repo *git.Repository) (*object.Commit, bool, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolve %s: %w", mainBranch, err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, false, fmt.Errorf("load head commit: %w", err)
	}
	return commitObj, true, nil
}

func readContentBytes(commitObj *object.Commit) ([]byte, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read content bytes: %w", err)
	}
	return raw, nil
}

// changedFields compares a commit's snapshot with its first parent at the
// top level of the JSON document. The root commit reports every field.
func changedFields(commitObj *object.Commit) []string {
	current, err := decodeFields(commitObj)
	if err != nil {
		return []string{}
	}
	var previous map[string]json.RawMessage
	if commitObj.NumParents() > 0 {
		if parent, err := commitObj.Parent(0); err == nil {
			previous, _ = decodeFields(parent)
		}
	}
	return DiffFields(previous, current)
}

func decodeFields(commitObj *object.Commit) (map[string]json.RawMessage, error) {
	raw, err := readContentBytes(commitObj)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode snapshot fields: %w", err)
	}
	return fields, nil
}

// DiffFields lists the keys whose JSON differs between two snapshots,
// sorted. updatedAt is ignored since it moves on every save.
func DiffFields(from, to map[string]json.RawMessage) []string {
	keys := make(map[string]struct{}, len(to))
	for k := range from {
		keys[k] = struct{}{}
	}
	for k := range to {
		keys[k] = struct{}{}
	}
	changed := make([]string, 0)
	for k := range keys {
		if k == "updatedAt" {
			continue
		}
		if !bytes.Equal(compact(from[k]), compact(to[k])) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func compact(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

func toRevision(commitObj *object.Commit, changes []string) Revision {
	if changes == nil {
		changes = []string{}
	}
	return Revision{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
		Changes:   changes,
	}
}

func sanitizeEmail(input string) string {
	runes := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			runes = append(runes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			runes = append(runes, '.')
		}
	}
	if len(runes) == 0 {
		return "user"
	}
	return string(runes)
}
