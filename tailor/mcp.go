package tailor

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domtailor/kit"
)

// RegisterMCP registers tailor tools on an MCP server.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerAttachTool(srv)
	e.registerAttachHTMLTool(srv)
	e.registerDetachTool(srv)
	e.registerSetModeTool(srv)
	e.registerSelectTool(srv)
	e.registerDeselectTool(srv)
	e.registerSelectedTool(srv)
	e.registerClearSelectionTool(srv)
	e.registerAnalyzeTool(srv)
	e.registerListElementsTool(srv)
	e.registerApplyRuleTool(srv)
	e.registerSmartRestructureTool(srv)
	e.registerSuggestTool(srv)
	e.registerDigestTool(srv)
	e.registerHTMLTool(srv)
	e.registerResetTool(srv)
	e.registerSaveTemplateTool(srv)
	e.registerListTemplatesTool(srv)
	e.registerApplyTemplateTool(srv)
	e.registerDeleteTemplateTool(srv)
	e.registerSetDefaultTemplateTool(srv)
	e.registerPlanTool(srv)
	e.registerStatsTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// sessionRequest is the argument shape shared by tools that only need a
// session id.
type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func decodeSessionRequest(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r sessionRequest
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

// sessionIDProp is the schema fragment for the ubiquitous session_id field.
func sessionIDProp() map[string]any {
	return map[string]any{"type": "string", "description": "Session ID returned by tailor_attach"}
}

// sessionInfo is the attach tools' response.
type sessionInfo struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Mode      string `json:"mode"`
}

func describeSession(s *Session) *sessionInfo {
	return &sessionInfo{
		SessionID: s.ID(),
		URL:       s.URL(),
		Title:     s.Title(),
		Mode:      string(s.Mode()),
	}
}

// --- attach ---

func (e *Engine) registerAttachTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_attach",
		Description: "Open a URL in the browser and attach a customization session to the page. A default template matching the URL is applied automatically.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL to open"},
		}, []string{"url"}),
	}

	type attachReq struct {
		URL string `json:"url"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*attachReq)
		s, err := e.AttachURL(ctx, r.URL)
		if err != nil {
			return nil, err
		}
		return describeSession(s), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r attachReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- attach_html ---

func (e *Engine) registerAttachHTMLTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_attach_html",
		Description: "Attach a customization session to a raw HTML document without a browser. Use tailor_html to read back the transformed markup.",
		InputSchema: inputSchema(map[string]any{
			"html": map[string]any{"type": "string", "description": "HTML source to parse"},
			"url":  map[string]any{"type": "string", "description": "URL to associate with the document (for templates and digests)"},
		}, []string{"html"}),
	}

	type attachHTMLReq struct {
		HTML string `json:"html"`
		URL  string `json:"url"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*attachHTMLReq)
		s, err := e.AttachHTML(ctx, r.HTML, r.URL)
		if err != nil {
			return nil, err
		}
		return describeSession(s), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r attachHTMLReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- detach ---

func (e *Engine) registerDetachTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_detach",
		Description: "Close a session and release its page. Applied transformations stay on the page.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionRequest)
		if err := e.Detach(ctx, r.SessionID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "detached", "session_id": r.SessionID}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSessionRequest)
}

// --- set_mode ---

func (e *Engine) registerSetModeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_set_mode",
		Description: "Switch a session's interaction mode. Listeners of the previous mode are removed; selection markers survive.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
			"mode":       map[string]any{"type": "string", "enum": []any{"inspect", "select", "restructure", "style"}, "description": "Interaction mode"},
		}, []string{"session_id", "mode"}),
	}

	type modeReq struct {
		SessionID string `json:"session_id"`
		Mode      string `json:"mode"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*modeReq)
		if err := e.SetMode(ctx, r.SessionID, Mode(r.Mode)); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok", "mode": r.Mode}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r modeReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- select / deselect ---

type selectRequest struct {
	SessionID string `json:"session_id"`
	Target    string `json:"target"`
}

func decodeSelectRequest(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r selectRequest
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

func (e *Engine) registerSelectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_select",
		Description: "Add every node matching a CSS selector or address to the session's selection and mark it on the page.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
			"target":     map[string]any{"type": "string", "description": "CSS selector or canonical node address"},
		}, []string{"session_id", "target"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*selectRequest)
		added, err := e.Select(ctx, r.SessionID, r.Target)
		if err != nil {
			return nil, err
		}
		return map[string]int{"added": added}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSelectRequest)
}

func (e *Engine) registerDeselectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_deselect",
		Description: "Remove every node matching a CSS selector or address from the session's selection and strip its marker.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
			"target":     map[string]any{"type": "string", "description": "CSS selector or canonical node address"},
		}, []string{"session_id", "target"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*selectRequest)
		removed, err := e.Deselect(ctx, r.SessionID, r.Target)
		if err != nil {
			return nil, err
		}
		return map[string]int{"removed": removed}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSelectRequest)
}

// --- selected ---

func (e *Engine) registerSelectedTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_selected",
		Description: "List the session's current selection in insertion order, including nodes selected by clicking on the page.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionRequest)
		s, err := e.Session(r.SessionID)
		if err != nil {
			return nil, err
		}
		return s.Selected(), nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSessionRequest)
}

// --- clear_selection ---

func (e *Engine) registerClearSelectionTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_clear_selection",
		Description: "Empty the session's selection and strip every selection marker from the page.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionRequest)
		if err := e.ClearSelection(ctx, r.SessionID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "cleared"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSessionRequest)
}

// --- analyze ---

func (e *Engine) registerAnalyzeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_analyze",
		Description: "Inspect the page: word count, reading time, element counts, heading outline, section excerpts, navigation links.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionRequest)
		return e.Analyze(ctx, r.SessionID)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSessionRequest)
}

// --- list_elements ---

func (e *Engine) registerListElementsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_list_elements",
		Description: "Describe the nodes matching a CSS selector (tag, address, role, classes, inline style, text excerpt). Without a selector, returns the page's structural catalog: landmarks, headings, content containers.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
			"selector":   map[string]any{"type": "string", "description": "CSS selector; omit for the structural catalog"},
		}, []string{"session_id"}),
	}

	type listReq struct {
		SessionID string `json:"session_id"`
		Selector  string `json:"selector"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listReq)
		s, err := e.Session(r.SessionID)
		if err != nil {
			return nil, err
		}
		if r.Selector == "" {
			return s.ListAllStructural(ctx)
		}
		return s.ListElements(ctx, r.Selector)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- apply_rule ---

type applyRuleRequest struct {
	SessionID string            `json:"session_id"`
	Kind      string            `json:"kind"`
	Target    string            `json:"target"`
	Styles    map[string]string `json:"styles,omitempty"`
	Fragment  string            `json:"fragment,omitempty"`
	Dest      string            `json:"dest,omitempty"`
	Position  string            `json:"position,omitempty"`
}

func (e *Engine) registerApplyRuleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_apply_rule",
		Description: "Apply one transformation rule to the page. Rules that touch at least one node enter the session log and can be saved as a template.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
			"kind":       map[string]any{"type": "string", "enum": []any{"hide", "remove", "highlight", "style", "replace", "move"}, "description": "Rule kind"},
			"target":     map[string]any{"type": "string", "description": "CSS selector or canonical node address"},
			"styles":     map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}, "description": "CSS property map (kind=style)"},
			"fragment":   map[string]any{"type": "string", "description": "Replacement HTML fragment (kind=replace)"},
			"dest":       map[string]any{"type": "string", "description": "Destination selector (kind=move)"},
			"position":   map[string]any{"type": "string", "enum": []any{"before", "after", "replace", "append", "prepend"}, "description": "Insertion position relative to dest (kind=move)"},
		}, []string{"session_id", "kind", "target"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*applyRuleRequest)
		rule, err := NewRule(RuleKind(r.Kind), r.Target, r.Styles, r.Fragment, r.Dest, r.Position)
		if err != nil {
			return nil, err
		}
		count, err := e.Apply(ctx, r.SessionID, rule)
		if err != nil {
			return nil, err
		}
		return map[string]any{"rule_id": rule.ID, "count": count}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r applyRuleRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- smart_restructure ---

func (e *Engine) registerSmartRestructureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_smart_restructure",
		Description: "Apply a fixed restructuring batch: simplify (hide sidebars/ads), clean (remove ad/popup nodes), focus (dim everything but main content), readability (line height and minimum font size), mobile (fluid media, no horizontal scroll).",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
			"kind":       map[string]any{"type": "string", "enum": []any{"simplify", "clean", "focus", "readability", "mobile"}, "description": "Batch to apply"},
		}, []string{"session_id", "kind"}),
	}

	type restructureReq struct {
		SessionID string `json:"session_id"`
		Kind      string `json:"kind"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*restructureReq)
		count, err := e.SmartRestructure(ctx, r.SessionID, RestructureKind(r.Kind))
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": r.Kind, "count": count}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r restructureReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- suggest ---

func (e *Engine) registerSuggestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_suggest",
		Description: "Run the readability advisor: deterministic layout-metric heuristics producing plain-language suggestions.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionRequest)
		return e.Suggest(ctx, r.SessionID)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSessionRequest)
}

// --- digest ---

func (e *Engine) registerDigestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_digest",
		Description: "Convert the page (or one region) to Markdown, reflecting applied transformations. Falls back to plain text when conversion fails.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
			"selector":   map[string]any{"type": "string", "description": "CSS selector bounding the region; omit for the whole page"},
		}, []string{"session_id"}),
	}

	type digestReq struct {
		SessionID string `json:"session_id"`
		Selector  string `json:"selector"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*digestReq)
		md, err := e.Digest(ctx, r.SessionID, r.Selector)
		if err != nil {
			return nil, err
		}
		return map[string]string{"markdown": md}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r digestReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- html ---

func (e *Engine) registerHTMLTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_html",
		Description: "Return the serialized markup of a region (or the whole document), reflecting applied transformations.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
			"selector":   map[string]any{"type": "string", "description": "CSS selector; omit for the whole document"},
		}, []string{"session_id"}),
	}

	type htmlReq struct {
		SessionID string `json:"session_id"`
		Selector  string `json:"selector"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*htmlReq)
		s, err := e.Session(r.SessionID)
		if err != nil {
			return nil, err
		}
		html, err := s.HTML(ctx, r.Selector)
		if err != nil {
			return nil, err
		}
		return map[string]string{"html": html}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r htmlReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- reset ---

func (e *Engine) registerResetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_reset",
		Description: "Restore the page to its pristine state and clear the session's selection and transformation log. The only undo.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionRequest)
		if err := e.Reset(ctx, r.SessionID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "reset"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSessionRequest)
}

// --- save_template ---

func (e *Engine) registerSaveTemplateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_save_template",
		Description: "Save the session's transformation log as a named template for later replay.",
		InputSchema: inputSchema(map[string]any{
			"session_id":  sessionIDProp(),
			"name":        map[string]any{"type": "string", "description": "Template name"},
			"url_pattern": map[string]any{"type": "string", "description": "URL glob pattern the template targets (default *)"},
		}, []string{"session_id", "name"}),
	}

	type saveReq struct {
		SessionID  string `json:"session_id"`
		Name       string `json:"name"`
		URLPattern string `json:"url_pattern"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*saveReq)
		return e.SaveTemplate(ctx, r.SessionID, r.Name, r.URLPattern)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r saveReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- list_templates ---

func (e *Engine) registerListTemplatesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_list_templates",
		Description: "List stored templates in creation order.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return e.ListTemplates(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- apply_template ---

func (e *Engine) registerApplyTemplateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_apply_template",
		Description: "Replay a stored template's rules against the session's page. Stale targets cause partial application, never an abort.",
		InputSchema: inputSchema(map[string]any{
			"session_id":  sessionIDProp(),
			"template_id": map[string]any{"type": "string", "description": "Template ID to replay"},
		}, []string{"session_id", "template_id"}),
	}

	type applyTplReq struct {
		SessionID  string `json:"session_id"`
		TemplateID string `json:"template_id"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*applyTplReq)
		return e.ApplyTemplate(ctx, r.SessionID, r.TemplateID)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r applyTplReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- delete_template ---

type templateIDRequest struct {
	TemplateID string `json:"template_id"`
}

func decodeTemplateIDRequest(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r templateIDRequest
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

func (e *Engine) registerDeleteTemplateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_delete_template",
		Description: "Delete a stored template. Pages it was already applied to keep their transformations.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "string", "description": "Template ID to delete"},
		}, []string{"template_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*templateIDRequest)
		if err := e.DeleteTemplate(ctx, r.TemplateID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "deleted", "template_id": r.TemplateID}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeTemplateIDRequest)
}

// --- set_default_template ---

func (e *Engine) registerSetDefaultTemplateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_set_default_template",
		Description: "Flag a template as the default for its URL pattern; it is applied automatically when a matching page attaches. Unflags any previous default for the same pattern.",
		InputSchema: inputSchema(map[string]any{
			"template_id": map[string]any{"type": "string", "description": "Template ID to flag"},
		}, []string{"template_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*templateIDRequest)
		if err := e.SetDefaultTemplate(ctx, r.TemplateID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "default_set", "template_id": r.TemplateID}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeTemplateIDRequest)
}

// --- plan ---

func (e *Engine) registerPlanTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_plan",
		Description: "Send the page's analysis and Markdown digest to the configured planner service and return its customization plan verbatim.",
		InputSchema: inputSchema(map[string]any{
			"session_id": sessionIDProp(),
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionRequest)
		return e.PlanSuggestions(ctx, r.SessionID)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSessionRequest)
}

// --- stats ---

func (e *Engine) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tailor_stats",
		Description: "Get tailor statistics: active sessions, stored templates, pages attached.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return e.Stats(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
