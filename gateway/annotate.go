package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/janelia-flyem/omerotools/omero"
)

func (c *Client) ListAnnotations(ctx context.Context, parent omero.ObjectRef, kind omero.AnnotationKind, ns string) ([]omero.AnnotationLink, error) {
	q := url.Values{}
	q.Set("parent", parent.String())
	if kind != "" {
		q.Set("kind", string(kind))
	}
	if ns != "" {
		q.Set("ns", ns)
	}
	var jls []jsonLink
	if err := c.do(ctx, http.MethodGet, "m/annotations/", q, nil, &jls); err != nil {
		return nil, fmt.Errorf("annotations on %s: %w", parent, err)
	}
	links := make([]omero.AnnotationLink, len(jls))
	for i, jl := range jls {
		links[i] = jl.link()
	}
	return links, nil
}

func (c *Client) MapAnnotations(ctx context.Context, parent omero.ObjectRef, ns string) ([]omero.MapAnnotation, error) {
	q := url.Values{}
	q.Set("parent", parent.String())
	q.Set("kind", string(omero.MapKind))
	if ns != "" {
		q.Set("ns", ns)
	}
	var jls []jsonLink
	if err := c.do(ctx, http.MethodGet, "m/annotations/", q, nil, &jls); err != nil {
		return nil, fmt.Errorf("map annotations on %s: %w", parent, err)
	}
	anns := make([]omero.MapAnnotation, len(jls))
	for i, jl := range jls {
		anns[i] = omero.MapAnnotation{
			ID:        jl.Annotation.ID,
			Namespace: jl.Annotation.Namespace,
			Values:    toKeyValues(jl.Annotation.Values),
		}
	}
	return anns, nil
}

type createAnnotation struct {
	jsonAnnotation
	Parents []jsonRef `json:"parents,omitempty"`
	Data    []byte    `json:"data,omitempty"`
}

func (c *Client) createAnnotation(ctx context.Context, req createAnnotation) (jsonAnnotation, error) {
	var created jsonAnnotation
	if err := c.do(ctx, http.MethodPost, "m/annotations/", nil, req, &created); err != nil {
		return created, fmt.Errorf("create %s: %w", req.Type, err)
	}
	return created, nil
}

func (c *Client) CreateMapAnnotation(ctx context.Context, ns string, values []omero.KeyValue, parents ...omero.ObjectRef) (int64, error) {
	created, err := c.createAnnotation(ctx, createAnnotation{
		jsonAnnotation: jsonAnnotation{Type: string(omero.MapKind), Namespace: ns, Values: fromKeyValues(values)},
		Parents:        toRefs(parents),
	})
	return created.ID, err
}

func (c *Client) CreateLongAnnotation(ctx context.Context, ns string, value int64, parents ...omero.ObjectRef) (int64, error) {
	created, err := c.createAnnotation(ctx, createAnnotation{
		jsonAnnotation: jsonAnnotation{Type: string(omero.LongKind), Namespace: ns, LongValue: value},
		Parents:        toRefs(parents),
	})
	return created.ID, err
}

func (c *Client) CreateTag(ctx context.Context, text, description string) (*omero.TagAnnotation, error) {
	created, err := c.createAnnotation(ctx, createAnnotation{
		jsonAnnotation: jsonAnnotation{Type: string(omero.TagKind), TextValue: text},
	})
	if err != nil {
		return nil, err
	}
	return &omero.TagAnnotation{ID: created.ID, Text: text, Description: description, OwnerID: c.user.ID}, nil
}

func (c *Client) FindTags(ctx context.Context, text string, ownerID int64) ([]omero.TagAnnotation, error) {
	q := url.Values{}
	q.Set("kind", string(omero.TagKind))
	q.Set("text", text)
	if ownerID != 0 {
		q.Set("owner", strconv.FormatInt(ownerID, 10))
	}
	var jas []jsonAnnotation
	if err := c.do(ctx, http.MethodGet, "m/tags/", q, nil, &jas); err != nil {
		return nil, fmt.Errorf("find tag %q: %w", text, err)
	}
	var tags []omero.TagAnnotation
	for _, ja := range jas {
		if ja.TextValue != text {
			continue
		}
		tag := omero.TagAnnotation{ID: ja.ID, Text: ja.TextValue}
		if ja.Details != nil {
			tag.OwnerID = ja.Details.Owner.ID
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (c *Client) UploadFile(ctx context.Context, name, mimeType, ns string, data []byte, parents ...omero.ObjectRef) (*omero.FileAnnotation, error) {
	created, err := c.createAnnotation(ctx, createAnnotation{
		jsonAnnotation: jsonAnnotation{
			Type:      string(omero.FileKind),
			Namespace: ns,
			File:      &jsonFile{Name: name, MimeType: mimeType, Size: int64(len(data))},
		},
		Parents: toRefs(parents),
		Data:    data,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s (%s): %w", name, omero.ByteSize(len(data)), err)
	}
	return &omero.FileAnnotation{ID: created.ID, Namespace: ns, Name: name, MimeType: mimeType, Size: int64(len(data))}, nil
}

func (c *Client) LinkAnnotation(ctx context.Context, annotationID int64, parents ...omero.ObjectRef) error {
	if len(parents) == 0 {
		return nil
	}
	body := struct {
		Parents []jsonRef `json:"parents"`
	}{toRefs(parents)}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("m/annotations/%d/links/", annotationID), nil, body, nil); err != nil {
		return fmt.Errorf("link annotation %d: %w", annotationID, err)
	}
	return nil
}

func (c *Client) DeleteAnnotationLinks(ctx context.Context, linkIDs []int64) error {
	if len(linkIDs) == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("ids", idList(linkIDs))
	if err := c.do(ctx, http.MethodDelete, "m/annotations/links/", q, nil, nil); err != nil {
		return fmt.Errorf("delete %d annotation links: %w", len(linkIDs), err)
	}
	return nil
}

func (c *Client) DeleteAnnotations(ctx context.Context, annotationIDs []int64) error {
	if len(annotationIDs) == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("ids", idList(annotationIDs))
	if err := c.do(ctx, http.MethodDelete, "m/annotations/", q, nil, nil); err != nil {
		return fmt.Errorf("delete %d annotations: %w", len(annotationIDs), err)
	}
	return nil
}
