// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Quill note tools for LLM integration via stdio transport.
// Tool calls are programmatic and never pass through the chat confirmation
// step.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/dialogue"
	"github.com/starford/quill/internal/images"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/parser"
)

const commandsURI = "quill://commands"

// Server wraps the MCP server with Quill tools.
type Server struct {
	mcp      *server.MCPServer
	repo     notestore.Repository
	attacher *images.Attacher
}

// New creates a new MCP server with all Quill tools registered.
func New(repo notestore.Repository, attacher *images.Attacher) *Server {
	s := &Server{repo: repo, attacher: attacher}

	s.mcp = server.NewMCPServer(
		"Quill",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("find_notes",
		mcp.WithDescription("Case-insensitive title search over live notes, ordered by id."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring of the note title")),
	), s.findNotes)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Read one note with its direct sub-notes."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("list_parents",
		mcp.WithDescription("List every top-level note."),
	), s.listParents)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note, optionally as a sub-note of parent_id."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithNumber("parent_id", mcp.Description("Id of the parent note; omit for a top-level note")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("append_description",
		mcp.WithDescription("Append text to a note's description. #hashtags in the text are added to the note's tags."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to append")),
	), s.appendDescription)

	s.mcp.AddTool(mcp.NewTool("mark_done",
		mcp.WithDescription("Mark a note as done. Refused while any sub-note is still open."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.markDone)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Soft-delete a note. Sub-notes are kept."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Attach an image to a note. Accepts base64 or a data: URI (png, jpg, jpeg, gif, webp)."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("data", mcp.Required(), mcp.Description("Base64 image bytes or data:image/...;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Original file name; required when data is plain base64")),
	), s.attachImage)

	s.mcp.AddTool(mcp.NewTool("get_conventions",
		mcp.WithDescription("Returns how Quill organizes notes. Read before writing notes."),
	), s.getConventions)

	s.mcp.AddResource(
		mcp.NewResource(commandsURI, "Chat Commands",
			mcp.WithResourceDescription("Slash commands understood by the Quill chat."),
			mcp.WithMIMEType("application/json"),
		),
		s.readCommandsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	if reason := apperr.Reason(err); reason != "" {
		return mcp.NewToolResultError(reason)
	}
	return mcp.NewToolResultError(err.Error())
}

func requireID(req mcp.CallToolRequest, key string) (int64, error) {
	v := req.GetFloat(key, 0)
	if v < 1 || v != float64(int64(v)) {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return int64(v), nil
}

func (s *Server) findNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.repo.FindByTitle(ctx, query)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(notes)
}

type noteDetail struct {
	models.Note
	Children []models.Note `json:"children"`
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	children, err := s.repo.ListChildren(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(noteDetail{Note: *note, Children: children})
}

func (s *Server) listParents(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.repo.ListParents(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(notes)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var parent *int64
	if _, ok := req.GetArguments()["parent_id"]; ok {
		id, err := requireID(req, "parent_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		parent = &id
	}
	note, err := s.repo.Create(ctx, title, parent)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(note)
}

func (s *Server) appendDescription(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return mcp.NewToolResultError("text is empty"), nil
	}
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	fields := models.Fields{AppendDescription: text}
	if tags := parser.ExtractTags(text); len(tags) > 0 {
		fields.Tags = append(slices.Clone(note.Tags), tags...)
	}
	updated, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(updated)
}

func (s *Server) markDone(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return errorResult(err), nil
	}
	children, err := s.repo.ListChildren(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	var open []string
	for _, c := range children {
		if !c.Done {
			open = append(open, fmt.Sprintf("%s (ID: %d)", c.Title, c.ID))
		}
	}
	if len(open) > 0 {
		return mcp.NewToolResultError("note has incomplete sub-notes: " + strings.Join(open, ", ")), nil
	}
	done := true
	note, err := s.repo.Update(ctx, id, models.Fields{Done: &done})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(note)
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("note %d not found", id)), nil
		}
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) getConventions(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(Conventions), nil
}

func (s *Server) readCommandsResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.MarshalIndent(dialogue.Catalogue(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      commandsURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
