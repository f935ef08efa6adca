package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs served by the server.
const (
	FoldersResourceURI = "pathindex://folders"
	StatusResourceURI  = "pathindex://status"
)

// registerResources exposes the folder registry and index status as JSON
// resources for clients that prefer reading to calling tools.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "folders",
		URI:         FoldersResourceURI,
		Description: "External folders attached to projects, with indexing status",
		MIMEType:    "application/json",
	}, func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		out, err := s.listFolders(ctx, "")
		if err != nil {
			return nil, MapError(err)
		}
		return jsonResource(FoldersResourceURI, out)
	})

	s.mcp.AddResource(&mcp.Resource{
		Name:        "status",
		URI:         StatusResourceURI,
		Description: "Folder and entry counts and running scans",
		MIMEType:    "application/json",
	}, func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		out, err := s.indexStatus(ctx)
		if err != nil {
			return nil, MapError(err)
		}
		return jsonResource(StatusResourceURI, out)
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
