package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

// Backuper is the object-store side of a save.
type Backuper interface {
	Backup(ctx context.Context, p *edl.Project) (Backup, error)
}

// Persister writes a project to every configured sink: the project file,
// the database and, when set, the object store.
type Persister struct {
	Files   *FileStore
	Repo    Repository
	Objects Backuper
	Logger  *slog.Logger
}

// Save returns the project file path. Backup failures are logged and do not
// fail the save.
func (p *Persister) Save(ctx context.Context, proj *edl.Project) (string, error) {
	var path string
	if p.Files != nil {
		var err error
		if path, err = p.Files.Save(proj); err != nil {
			return "", err
		}
	}
	if p.Repo != nil {
		if err := p.Repo.SaveProject(ctx, proj); err != nil {
			return path, fmt.Errorf("save project %q: %w", proj.Name, err)
		}
		if err := p.Repo.SetConfig(ctx, ConfigLastProject, proj.Name); err != nil {
			return path, fmt.Errorf("remember last project: %w", err)
		}
	}
	if p.Objects != nil {
		b, err := p.Objects.Backup(ctx, proj)
		if err != nil {
			p.logger().Warn("project backup failed", "project", proj.Name, "error", err)
			return path, nil
		}
		if p.Repo != nil {
			if err := p.Repo.RecordBackup(ctx, b); err != nil {
				p.logger().Warn("failed to record backup", "key", b.ObjectKey, "error", err)
			}
		}
	}
	return path, nil
}

// Open loads a project by name from the database, falling back to the
// project file.
func (p *Persister) Open(ctx context.Context, name string) (*edl.Project, error) {
	if p.Repo != nil {
		proj, err := p.Repo.GetProject(ctx, name)
		if err != nil {
			return nil, err
		}
		if proj != nil {
			return proj, nil
		}
	}
	if p.Files != nil {
		return p.Files.LoadByName(name)
	}
	return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
}

func (p *Persister) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
