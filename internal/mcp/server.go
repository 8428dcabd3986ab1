// Package mcp exposes the conversion pipeline over the Model Context
// Protocol, so an agent can validate, repair and convert objects without
// shelling out to the CLI.
package mcp

import (
	"context"
	"fmt"
	"os"

	"articulate/internal/batch"
	"articulate/internal/kintree"
	"articulate/internal/logging"
	"articulate/internal/meshrepair"
	"articulate/internal/object"
	"articulate/internal/pipeline"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server with the conversion tools registered.
type Server struct {
	MCPServer *sdkmcp.Server
}

// NewServer creates the MCP server and registers the tools.
func NewServer() *Server {
	s := &Server{}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "articulate", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "convert_object",
		Description: "Convert one object directory: validate the kinematic tree, repair meshes, write the URDF and normalize references. Optionally invoke the external converters.",
	}, s.handleConvertObject)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "validate_object",
		Description: "Load an object description and validate its kinematic structure without writing anything. Returns the tree shape or the structural error.",
	}, s.handleValidateObject)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "repair_mesh",
		Description: "Run the mesh repair passes on one OBJ file. The original bytes are kept as a .bak backup when anything changes.",
	}, s.handleRepairMesh)
}

// --- Tool input/output types ---

type convertObjectInput struct {
	Dir          string   `json:"dir" jsonschema:"object directory containing the description and mesh assets"`
	DegreeLimits bool     `json:"degree_limits,omitempty" jsonschema:"treat revolute limits in the description as degrees"`
	ToMJCF       []string `json:"to_mjcf,omitempty" jsonschema:"external converter command line for description to physics XML"`
	ToScene      []string `json:"to_scene,omitempty" jsonschema:"external converter command line for physics XML to scene"`
}

type convertObjectOutput struct {
	Object        string            `json:"object"`
	URDFPath      string            `json:"urdf_path"`
	MJCFPath      string            `json:"mjcf_path,omitempty"`
	ScenePath     string            `json:"scene_path,omitempty"`
	MeshesChecked int               `json:"meshes_checked"`
	Renames       map[string]string `json:"renames,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

type validateObjectInput struct {
	Path string `json:"path" jsonschema:"object directory or description file (object.yaml/object.json)"`
}

type validateObjectOutput struct {
	Valid     bool   `json:"valid"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Object    string `json:"object,omitempty"`
	Root      string `json:"root,omitempty"`
	Links     int    `json:"links,omitempty"`
	Joints    int    `json:"joints,omitempty"`
	MaxDepth  int    `json:"max_depth,omitempty"`
}

type repairMeshInput struct {
	Path string `json:"path" jsonschema:"path to the OBJ file"`
}

type repairMeshOutput struct {
	Changed bool               `json:"changed"`
	Skipped bool               `json:"skipped,omitempty"`
	Report  *meshrepair.Report `json:"report"`
}

// --- Tool handlers ---

func (s *Server) handleConvertObject(ctx context.Context, _ *sdkmcp.CallToolRequest, input convertObjectInput) (*sdkmcp.CallToolResult, convertObjectOutput, error) {
	if input.Dir == "" {
		return nil, convertObjectOutput{}, fmt.Errorf("dir is required")
	}
	res, err := pipeline.Run(ctx, input.Dir, pipeline.Options{
		DegreeLimits: input.DegreeLimits,
		ToMJCF:       input.ToMJCF,
		ToScene:      input.ToScene,
	})
	if err != nil {
		return nil, convertObjectOutput{}, fmt.Errorf("convert %s: %w", input.Dir, err)
	}
	return nil, convertObjectOutput{
		Object:        res.Object,
		URDFPath:      res.URDFPath,
		MJCFPath:      res.MJCFPath,
		ScenePath:     res.ScenePath,
		MeshesChecked: len(res.RepairReports),
		Renames:       res.Renames,
		Warnings:      res.Warnings,
	}, nil
}

func (s *Server) handleValidateObject(_ context.Context, _ *sdkmcp.CallToolRequest, input validateObjectInput) (*sdkmcp.CallToolResult, validateObjectOutput, error) {
	if input.Path == "" {
		return nil, validateObjectOutput{}, fmt.Errorf("path is required")
	}
	path := input.Path
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		found, err := object.FindDescription(path)
		if err != nil {
			return nil, validateObjectOutput{Valid: false, ErrorKind: "error", Error: err.Error()}, nil
		}
		path = found
	}

	desc, err := object.LoadFromPath(path)
	if err != nil {
		return nil, validateObjectOutput{Valid: false, ErrorKind: "error", Error: err.Error()}, nil
	}
	tree, err := kintree.Build(desc)
	if err != nil {
		// Structural errors are the tool's answer, not a protocol failure.
		return nil, validateObjectOutput{
			Valid:     false,
			ErrorKind: batch.Classify(err),
			Error:     err.Error(),
			Object:    desc.Name,
		}, nil
	}

	maxDepth := 0
	for _, id := range tree.Order {
		if d := tree.NodeFor(id).Depth; d > maxDepth {
			maxDepth = d
		}
	}
	return nil, validateObjectOutput{
		Valid:    true,
		Object:   tree.Name,
		Root:     tree.Root,
		Links:    tree.LinkCount(),
		Joints:   len(tree.Edges),
		MaxDepth: maxDepth,
	}, nil
}

func (s *Server) handleRepairMesh(_ context.Context, _ *sdkmcp.CallToolRequest, input repairMeshInput) (*sdkmcp.CallToolResult, repairMeshOutput, error) {
	if input.Path == "" {
		return nil, repairMeshOutput{}, fmt.Errorf("path is required")
	}
	engine := meshrepair.NewEngine(meshrepair.Config{})
	report, err := engine.RepairFile(input.Path)
	if err != nil {
		if report != nil && report.Skipped {
			logging.New("mcp").Warn("mesh unparseable, passed through", "path", input.Path)
			return nil, repairMeshOutput{Skipped: true, Report: report}, nil
		}
		return nil, repairMeshOutput{}, fmt.Errorf("repair %s: %w", input.Path, err)
	}
	return nil, repairMeshOutput{Changed: report.Changed(), Report: report}, nil
}
