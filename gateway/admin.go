package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/janelia-flyem/omerotools/omero"
)

func (c *Client) CurrentUser(ctx context.Context) (omero.Experimenter, error) {
	if c.user.ID != 0 {
		return c.user, nil
	}
	var je jsonExperimenter
	if err := c.do(ctx, http.MethodGet, "m/experimenters/me/", nil, nil, &je); err != nil {
		return omero.Experimenter{}, fmt.Errorf("current user: %w", err)
	}
	c.user = je.experimenter()
	return c.user, nil
}

func (c *Client) LookupExperimenter(ctx context.Context, userName string) (omero.Experimenter, error) {
	q := url.Values{}
	q.Set("username", userName)
	var jes []jsonExperimenter
	if err := c.do(ctx, http.MethodGet, "m/experimenters/", q, nil, &jes); err != nil {
		return omero.Experimenter{}, fmt.Errorf("experimenter %q: %w", userName, err)
	}
	for _, je := range jes {
		if je.UserName == userName {
			return je.experimenter(), nil
		}
	}
	return omero.Experimenter{}, fmt.Errorf("experimenter %q: %w", userName, omero.ErrNotFound)
}

func (c *Client) UpdateExperimenter(ctx context.Context, e omero.Experimenter) error {
	body := jsonExperimenter{ID: e.ID, UserName: e.UserName, FirstName: e.FirstName, LastName: e.LastName}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("m/experimenters/%d/", e.ID), nil, body, nil); err != nil {
		return fmt.Errorf("update experimenter %q: %w", e.UserName, err)
	}
	return nil
}

func (c *Client) SetPassword(ctx context.Context, userName, password string) error {
	e, err := c.LookupExperimenter(ctx, userName)
	if err != nil {
		return err
	}
	body := struct {
		Password string `json:"password"`
	}{password}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("m/experimenters/%d/password/", e.ID), nil, body, nil); err != nil {
		return fmt.Errorf("set password of %q: %w", userName, err)
	}
	return nil
}
