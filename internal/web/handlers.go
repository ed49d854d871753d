package web

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI and JSON API.
type Handlers struct {
	deps     *ops.Deps
	renderer *Renderer
}

// HandleList handles GET /sequences: list stored sequences.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{
		Limit:          parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	}

	result, err := ops.List(r.Context(), h.deps.DB, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Sequences",
			Version: h.renderer.version,
			Nav:     "sequences",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Deleted:    input.IncludeDeleted,
	})
}

// HandleDetail handles GET /sequences/{id}: the printable sequence sheet.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("sequence ID is required"))
		return
	}

	seq, err := ops.Fetch(r.Context(), h.deps, ops.FetchInput{
		ID:             id,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	descriptions := make(map[int]template.HTML, len(seq.Steps))
	for _, step := range seq.Steps {
		if step.Pose.Description != "" {
			descriptions[step.Index] = renderMarkdown(step.Pose.Description)
		}
	}
	blockNames := make(map[string]string, len(seq.Blocks))
	for _, b := range seq.Blocks {
		blockNames[b.ID] = b.Name
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   seq.Name,
			Version: h.renderer.version,
			Nav:     "sequences",
		},
		Sequence:     seq,
		Sections:     groupSections(seq.Steps),
		Descriptions: descriptions,
		BlockNames:   blockNames,
	})
}

// HandlePoses handles GET /poses: the pose catalog.
func (h *Handlers) HandlePoses(w http.ResponseWriter, r *http.Request) {
	difficulty := r.URL.Query().Get("difficulty")
	query := r.URL.Query().Get("q")

	result, err := ops.ListPoses(r.Context(), h.deps.DB, ops.ListPosesInput{
		Difficulty: difficulty,
		Category:   r.URL.Query().Get("category"),
		Query:      query,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	rows := make([]PoseRow, 0, len(result.Items))
	for _, p := range result.Items {
		rows = append(rows, PoseRow{
			ID:           int64(p.ID),
			Name:         p.Name,
			SanskritName: p.SanskritName,
			Difficulty:   string(p.Difficulty),
			Category:     p.Category,
			BuiltIn:      p.BuiltIn,
			Description:  renderMarkdown(p.Description),
		})
	}

	h.renderer.renderPage(w, r, "poses", PosesPageData{
		PageData: PageData{
			Title:   "Poses",
			Version: h.renderer.version,
			Nav:     "poses",
		},
		Items:      rows,
		Difficulty: difficulty,
		Query:      query,
	})
}

// HandleDelete handles DELETE /sequences/{id}: soft-delete a sequence.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("sequence ID is required"))
		return
	}

	result, err := ops.Delete(r.Context(), h.deps.DB, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/sequences")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/sequences", http.StatusFound)
}

// HandlePurge handles POST /sequences/purge: permanently delete soft-deleted
// sequences and flow blocks.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	var input ops.PurgeInput
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.Purge(r.Context(), h.deps.DB, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="purge-result">` + template.HTMLEscapeString(result.Message) + `</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/sequences?include_deleted=true", http.StatusFound)
}

// groupSections splits steps into consecutive runs of the same section.
func groupSections(steps []ops.StepView) []SectionGroup {
	var groups []SectionGroup
	for _, step := range steps {
		if n := len(groups); n > 0 && groups[n-1].Name == step.Section {
			groups[n-1].Steps = append(groups[n-1].Steps, step)
			continue
		}
		groups = append(groups, SectionGroup{Name: step.Section, Steps: []ops.StepView{step}})
	}
	return groups
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
