package scripts

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omerotools/gateway"
	"github.com/janelia-flyem/omerotools/omero"
)

// Settings shared by the training-server administration scripts.
const (
	KeyUsers      = "users"
	KeyUserPrefix = "prefix"
	KeyTarget     = "target"

	DefaultUserPrefix = "user"
)

// Connect opens the main session of a run.
func (env *Env) Connect(ctx context.Context) (gateway.Conn, error) {
	if env.Dialer == nil {
		return nil, fmt.Errorf("no connection configured")
	}
	conn, err := env.Dialer.Connect(ctx, env.User, env.Password)
	if err != nil {
		return nil, fmt.Errorf("could not log in as %s: %w", env.User, err)
	}
	return conn, nil
}

// UserFunc does the work for one training account on its own session.  A nil
// error records success with the returned message.
type UserFunc func(ctx context.Context, conn gateway.Conn, user omero.Experimenter) (string, error)

// Users returns the account range of a run, e.g. users=1-40, defaulting to def.
func (env *Env) Users(def omero.Range) (omero.Range, error) {
	r, err := env.Params.Range(KeyUsers, def)
	if err != nil {
		return r, fmt.Errorf("%v: %w", err, omero.ErrInvalidArgument)
	}
	return r, nil
}

// ForEachUser logs in to each account of the range in turn, calls fn and
// records one result per account.  A failure for one account never stops
// the loop; a cancelled context does.
func ForEachUser(ctx context.Context, env *Env, users omero.Range, report *omero.Report, fn UserFunc) error {
	prefix := env.Params.String(KeyUserPrefix, DefaultUserPrefix)
	for i := users.First; i <= users.Last; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := omero.UserName(prefix, i)
		conn, err := env.Dialer.Connect(ctx, name, env.Password)
		if err != nil {
			report.Fail(name, err)
			continue
		}
		user, err := conn.CurrentUser(ctx)
		if err != nil {
			conn.Close()
			report.Fail(name, err)
			continue
		}
		msg, err := fn(ctx, conn, user)
		if cerr := conn.Close(); cerr != nil {
			omero.Warningf("closing session of %s: %v\n", name, cerr)
		}
		if err != nil {
			report.Fail(name, err)
			continue
		}
		report.Succeed(name, "%s", msg)
	}
	return nil
}

// NewestDataset returns the most recent dataset with the given name owned by the user.
func NewestDataset(ctx context.Context, conn gateway.Browser, name string, ownerID int64) (*omero.Dataset, error) {
	datasets, err := conn.FindDatasets(ctx, name, ownerID)
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("dataset %q: %w", name, omero.ErrNotFound)
	}
	return &datasets[0], nil
}

// NewestProject returns the most recent project with the given name owned by the user.
func NewestProject(ctx context.Context, conn gateway.Browser, name string, ownerID int64) (*omero.Project, error) {
	projects, err := conn.FindProjects(ctx, name, ownerID)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("project %q: %w", name, omero.ErrNotFound)
	}
	return &projects[0], nil
}

// TargetImages returns the user's newest dataset with the given name and its images.
func TargetImages(ctx context.Context, conn gateway.Browser, name string, ownerID int64) (*omero.Dataset, []omero.Image, error) {
	ds, err := NewestDataset(ctx, conn, name, ownerID)
	if err != nil {
		return nil, nil, err
	}
	images, err := conn.ListImages(ctx, ds.ID)
	if err != nil {
		return ds, nil, err
	}
	return ds, images, nil
}

// ImageRef returns the object reference of an image.
func ImageRef(id int64) omero.ObjectRef {
	return omero.ObjectRef{Type: omero.ImageType, ID: id}
}
