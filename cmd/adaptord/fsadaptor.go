package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/googlegsa/library/adaptor"
	"github.com/googlegsa/library/docid"
)

// fsAdaptor is a minimal reference Adaptor that feeds and serves the
// plain files under a root directory. It exists to exercise every
// framework component end to end from cmd/adaptord; a real deployment
// supplies its own adaptor.Adaptor implementation against the
// repository it connects to.
type fsAdaptor struct {
	root         string
	publicPaths  map[string]bool
	capabilities adaptor.Capabilities
}

func newFSAdaptor(root string) *fsAdaptor {
	return &fsAdaptor{root: root, publicPaths: make(map[string]bool)}
}

// SetCapabilities records the framework's capabilities object so the
// adaptor could, if it needed to, trigger an out-of-schedule push or
// register an authentication delegate.
func (a *fsAdaptor) SetCapabilities(caps adaptor.Capabilities) {
	a.capabilities = caps
}

func (a *fsAdaptor) GetDocIds(ctx context.Context, pusher adaptor.IdPusher) error {
	return filepath.WalkDir(a.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rel, err := filepath.Rel(a.root, path)
		if err != nil {
			return err
		}
		id, err := docid.New(rel)
		if err != nil {
			return err
		}
		return pusher.PushDocId(ctx, id)
	})
}

func (a *fsAdaptor) GetModifiedDocIds(ctx context.Context, pusher adaptor.IdPusher) error {
	// The reference adaptor has no change log of its own; a full
	// re-enumeration stands in for it.
	return a.GetDocIds(ctx, pusher)
}

func (a *fsAdaptor) GetGroups(ctx context.Context, pusher adaptor.GroupPusher) error {
	return nil
}

func (a *fsAdaptor) GetDocContent(ctx context.Context, req *adaptor.Request, resp adaptor.Response) error {
	path := filepath.Join(a.root, req.DocId.ID())
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return resp.RespondNotFound()
	}
	if err != nil {
		return err
	}
	if req.IfModifiedSince != nil && !info.ModTime().After(*req.IfModifiedSince) {
		return resp.RespondNotModified()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := resp.SetContentType(contentTypeFor(path)); err != nil {
		return err
	}
	if err := resp.AddMetadata("last-modified", info.ModTime().Format(time.RFC3339)); err != nil {
		return err
	}

	w, err := resp.GetOutputStream()
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

func (a *fsAdaptor) IsUserAuthorized(ctx context.Context, identity string, ids []docid.DocId) (map[docid.DocId]adaptor.AuthzStatus, error) {
	out := make(map[docid.DocId]adaptor.AuthzStatus, len(ids))
	for _, id := range ids {
		if a.publicPaths[id.ID()] || identity != "" {
			out[id] = adaptor.Permit
		} else {
			out[id] = adaptor.Deny
		}
	}
	return out, nil
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".html", ".htm":
		return "text/html"
	case ".txt":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
