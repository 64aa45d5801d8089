package docs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/fsutil"
	"github.com/kdlbs/scribe-mcp/internal/plugin"
	"github.com/kdlbs/scribe-mcp/internal/sandbox"
	"github.com/kdlbs/scribe-mcp/internal/scerr"
	"github.com/kdlbs/scribe-mcp/internal/storage"
)

// enrichmentWait bounds how long Execute waits for enrichment callbacks
// before returning; anything not finished by then keeps running in the
// registry's background workers (spec: invoked asynchronously, waited on
// with a capped timeout, failure is non-fatal).
const enrichmentWait = 500 * time.Millisecond

// Action enumerates manage_docs operation names.
type Action string

const (
	ActionReplaceSection     Action = "replace_section"
	ActionAppend             Action = "append"
	ActionApplyPatch         Action = "apply_patch"
	ActionReplaceRange       Action = "replace_range"
	ActionCreateDoc          Action = "create_doc"
	ActionGenerateTOC        Action = "generate_toc"
	ActionNormalizeHeaders   Action = "normalize_headers"
	ActionValidateCrosslinks Action = "validate_crosslinks"
	ActionListChecklist      Action = "list_checklist_items"
)

// Request is one manage_docs invocation.
type Request struct {
	Action      Action
	Path        string // absolute path to the document, already resolved
	ProjectID   int64
	DocName     DocName
	Agent       string
	DryRun      bool
	TargetDir   string // create_doc only
	Vars        map[string]string

	SectionID   string
	Content     string
	Template    string
	PatchText   string
	PatchMode   PatchMode
	StructEdit  StructuredEdit
	StartLine   int
	EndLine     int
	Frontmatter map[string]any

	CheckAnchors  bool
	ChecklistText string
	CaseSensitive bool
	RequireMatch  bool
}

// Result is the DocChange response returned by every manage_docs operation.
type Result struct {
	OK           bool
	BeforeHash   string
	AfterHash    string
	DiffPreview  string
	HunksApplied int
	Crosslinks   []CrosslinkIssue
	Checklist    []ChecklistItem
	Diagnostics  string
	Warnings     []string
}

// Engine executes manage_docs operations under a transactional contract:
// sandbox check, read/hash, compute, preview, dry-run short-circuit,
// atomic write, re-read verify, audit insert, async enrich.
type Engine struct {
	store      *storage.Store
	safety     *sandbox.Safety
	registry   *plugin.Registry
	lockBudget time.Duration
}

// NewEngine constructs a document-mutation Engine. registry may be nil if
// no enrichment callbacks are configured.
func NewEngine(store *storage.Store, safety *sandbox.Safety, registry *plugin.Registry) *Engine {
	return &Engine{store: store, safety: safety, registry: registry, lockBudget: fsutil.DefaultLockRetryBudget}
}

// Execute dispatches and runs req under the transactional contract.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	path := req.Path
	if req.Action == ActionCreateDoc {
		return e.executeCreateDoc(ctx, req)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, scerr.Wrap(scerr.KindNotFound, err, "read document")
	}
	before := string(raw)
	beforeHash := Hash(before)

	doc, err := Parse(before)
	if err != nil {
		return nil, scerr.Wrap(scerr.KindInternal, err, "parse document")
	}

	if req.Action == ActionValidateCrosslinks {
		issues := ValidateCrosslinks(doc.Frontmatter, filepath.Dir(path), req.CheckAnchors)
		return &Result{OK: true, BeforeHash: beforeHash, AfterHash: beforeHash, Crosslinks: issues}, nil
	}
	if req.Action == ActionListChecklist {
		fmLines := 0
		if doc.HasFrontmatter {
			fmLines = countFrontmatterLines(before)
		}
		items := ListChecklistItems(doc.Body, fmLines, req.ChecklistText, req.CaseSensitive, req.RequireMatch)
		return &Result{OK: true, BeforeHash: beforeHash, AfterHash: beforeHash, Checklist: items}, nil
	}

	newBody, hunks, err := e.computeBody(doc.Body, req)
	if err != nil {
		return nil, err
	}
	doc.Body = newBody

	after, err := doc.Render()
	if err != nil {
		return nil, scerr.Wrap(scerr.KindInternal, err, "render document")
	}
	afterHash := Hash(after)
	preview := UnifiedDiffPreview(before, after)

	result := &Result{OK: true, BeforeHash: beforeHash, AfterHash: afterHash, DiffPreview: preview, HunksApplied: hunks}
	if req.DryRun {
		return result, nil
	}

	if err := fsutil.WithLock(path, e.lockBudget, func(f *os.File) error {
		return fsutil.AtomicWriteFile(path, []byte(after), 0o644)
	}); err != nil {
		return nil, scerr.Wrap(scerr.KindInternal, err, "write document")
	}

	reread, err := os.ReadFile(path)
	if err != nil || Hash(string(reread)) != afterHash {
		_ = fsutil.AtomicWriteFile(path, raw, 0o644)
		return nil, scerr.New(scerr.KindVerificationFailed, "after_hash mismatch on re-read, rolled back").
			WithField("path", path)
	}

	change := storage.DocumentChange{
		ProjectID: req.ProjectID,
		DocName:   string(req.DocName),
		Action:    string(req.Action),
		Agent:     req.Agent,
		SHABefore: beforeHash,
		SHAAfter:  afterHash,
	}
	if req.SectionID != "" {
		section := req.SectionID
		change.Section = &section
	}
	if _, err := e.store.RecordDocChange(ctx, &change); err != nil {
		return nil, scerr.Wrap(scerr.KindInternal, err, "record doc change")
	}

	if e.registry != nil {
		result.Warnings = e.registry.Submit(plugin.Job{Kind: plugin.KindDocChange, Change: change, NewContent: after}, enrichmentWait)
	}

	return result, nil
}

func (e *Engine) computeBody(body string, req Request) (string, int, error) {
	switch req.Action {
	case ActionReplaceSection:
		out, err := ReplaceSection(body, req.SectionID, req.Content, req.Vars)
		return out, 0, err
	case ActionAppend:
		content := req.Content
		if content == "" {
			content = req.Template
		}
		out, err := Append(body, content, req.Vars)
		return out, 0, err
	case ActionApplyPatch:
		switch req.PatchMode {
		case PatchUnified:
			return ApplyUnifiedPatch(body, req.PatchText)
		case PatchStructured:
			out, err := ApplyStructuredEdit(body, req.StructEdit)
			return out, 1, err
		default:
			return "", 0, scerr.Newf(scerr.KindParameterValidation, "unknown patch_mode %q", req.PatchMode)
		}
	case ActionReplaceRange:
		out, err := ReplaceRange(body, req.StartLine, req.EndLine, req.Content)
		return out, 0, err
	case ActionGenerateTOC:
		return GenerateTOC(body), 0, nil
	case ActionNormalizeHeaders:
		return NormalizeHeaders(body), 0, nil
	default:
		return "", 0, scerr.Newf(scerr.KindParameterValidation, "unknown manage_docs action %q", req.Action)
	}
}

func (e *Engine) executeCreateDoc(ctx context.Context, req Request) (*Result, error) {
	if _, err := os.Stat(req.Path); err == nil {
		return nil, scerr.Newf(scerr.KindConflict, "document already exists: %s", req.Path)
	}

	content, err := CreateDoc(NewDocParams{
		DocName:     req.DocName,
		Body:        req.Content,
		Template:    req.Template,
		Frontmatter: req.Frontmatter,
		Vars:        req.Vars,
	})
	if err != nil {
		return nil, err
	}
	afterHash := Hash(content)
	preview := UnifiedDiffPreview("", content)

	result := &Result{OK: true, BeforeHash: "", AfterHash: afterHash, DiffPreview: preview}
	if req.DryRun {
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
		return nil, scerr.Wrap(scerr.KindInternal, err, "create docs directory")
	}
	if err := fsutil.AtomicWriteFile(req.Path, []byte(content), 0o644); err != nil {
		return nil, scerr.Wrap(scerr.KindInternal, err, "write new document")
	}

	reread, err := os.ReadFile(req.Path)
	if err != nil || Hash(string(reread)) != afterHash {
		return nil, scerr.New(scerr.KindVerificationFailed, "after_hash mismatch on newly created document")
	}

	change := storage.DocumentChange{
		ProjectID: req.ProjectID,
		DocName:   string(req.DocName),
		Action:    string(ActionCreateDoc),
		Agent:     req.Agent,
		SHABefore: "",
		SHAAfter:  afterHash,
	}
	if _, err := e.store.RecordDocChange(ctx, &change); err != nil {
		return nil, scerr.Wrap(scerr.KindInternal, err, "record doc change")
	}

	if e.registry != nil {
		result.Warnings = e.registry.Submit(plugin.Job{Kind: plugin.KindDocChange, Change: change, NewContent: content}, enrichmentWait)
	}

	return result, nil
}

// countFrontmatterLines returns how many lines of full precede the body,
// i.e. the opening "---", the front-matter block, and the closing "---".
func countFrontmatterLines(full string) int {
	const delim = "---\n"
	if !strings.HasPrefix(full, delim) {
		return 0
	}
	rest := full[len(delim):]
	end := strings.Index(rest, "\n"+strings.TrimSuffix(delim, "\n"))
	if end < 0 {
		return 0
	}
	closing := rest[:end]
	fmLines := 0
	if closing != "" {
		fmLines = strings.Count(closing, "\n") + 1
	}
	return 2 + fmLines
}
