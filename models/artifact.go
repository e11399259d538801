package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AliasLatest is the alias that always points at the newest version of an artifact.
const AliasLatest = "latest"

// ErrInvalidRef is returned when an artifact reference cannot be parsed.
var ErrInvalidRef = errors.New("invalid artifact reference")

// ArtifactRef names an artifact and selects one of its versions, either by
// explicit version number ("name:v3") or by alias ("name:latest", "name:prod").
// Entity and Project are set only for qualified references; an empty Project
// means the registry's own project.
type ArtifactRef struct {
	Entity  string
	Project string
	Name    string
	Alias   string
	Version int // -1 unless selected by number
}

// ParseArtifactRef parses "[[entity/]project/]name[:alias|:vN]".
// A missing selector selects the latest version.
func ParseArtifactRef(s string) (ArtifactRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ArtifactRef{}, fmt.Errorf("%w: empty", ErrInvalidRef)
	}

	path, selector, hasSelector := strings.Cut(s, ":")
	path = strings.TrimSpace(path)
	if path == "" {
		return ArtifactRef{}, fmt.Errorf("%w: %q has no name", ErrInvalidRef, s)
	}
	if strings.ContainsAny(path, " \\") {
		return ArtifactRef{}, fmt.Errorf("%w: %q contains a space or backslash", ErrInvalidRef, s)
	}

	parts := strings.Split(path, "/")
	if len(parts) > 3 {
		return ArtifactRef{}, fmt.Errorf("%w: %q has too many path segments", ErrInvalidRef, s)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return ArtifactRef{}, fmt.Errorf("%w: %q has an empty or relative path segment", ErrInvalidRef, s)
		}
	}

	ref := ArtifactRef{Name: parts[len(parts)-1], Alias: AliasLatest, Version: -1}
	switch len(parts) {
	case 3:
		ref.Entity, ref.Project = parts[0], parts[1]
	case 2:
		ref.Project = parts[0]
	}
	if !hasSelector {
		return ref, nil
	}

	selector = strings.TrimSpace(selector)
	if selector == "" || strings.Contains(selector, ":") {
		return ArtifactRef{}, fmt.Errorf("%w: %q has a bad version selector", ErrInvalidRef, s)
	}
	if len(selector) > 1 && selector[0] == 'v' {
		if n, err := strconv.Atoi(selector[1:]); err == nil && n >= 0 {
			ref.Alias, ref.Version = "", n
			return ref, nil
		}
	}
	ref.Alias = selector
	return ref, nil
}

// ByVersion reports whether the ref selects an explicit version number.
func (r ArtifactRef) ByVersion() bool {
	return r.Alias == "" && r.Version >= 0
}

func (r ArtifactRef) String() string {
	name := r.Name
	if r.Project != "" {
		name = r.Project + "/" + name
		if r.Entity != "" {
			name = r.Entity + "/" + name
		}
	}
	if r.ByVersion() {
		return fmt.Sprintf("%s:v%d", name, r.Version)
	}
	return name + ":" + r.Alias
}

// ArtifactSpec is what the caller supplies when logging a new artifact.
type ArtifactSpec struct {
	Name        string
	Type        string
	Description string
	Metadata    map[string]any
}

// ArtifactVersion is one immutable, registered version of an artifact.
type ArtifactVersion struct {
	ID          int64
	Name        string
	Version     int
	Type        string
	Description string
	FileName    string
	ObjectKey   string
	Digest      string
	Size        int64
	Metadata    map[string]any
	Aliases     []string
	CreatedAt   time.Time
}

// QualifiedName returns "name:vN".
func (v ArtifactVersion) QualifiedName() string {
	return fmt.Sprintf("%s:v%d", v.Name, v.Version)
}

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// Run records one execution of a pipeline step and the artifacts it touched.
type Run struct {
	ID        int64
	Project   string
	JobType   string
	Config    map[string]any
	Status    RunStatus
	StartedAt time.Time
}

// ArtifactLogged is the event published after a version is registered.
type ArtifactLogged struct {
	RunID     int64     `json:"run_id"`
	Project   string    `json:"project"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Type      string    `json:"type"`
	Digest    string    `json:"digest"`
	ObjectKey string    `json:"object_key"`
	LoggedAt  time.Time `json:"logged_at"`
}
