package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/userboard/internal/directory"
	"github.com/noah-isme/userboard/internal/platform/httpx"
	"github.com/noah-isme/userboard/internal/shared"
	"github.com/noah-isme/userboard/internal/view"
)

const pageTitle = "User Dashboard"

// Handler exposes a session's Dashboard over HTTP.
type Handler struct {
	logger     *slog.Logger
	registry   *Registry
	templates  *view.Engine
	csrf       *shared.CSRFManager
	renderWait time.Duration
	validator  *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, registry *Registry, templates *view.Engine, csrf *shared.CSRFManager, renderWait time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		registry:   registry,
		templates:  templates,
		csrf:       csrf,
		renderWait: renderWait,
		validator:  validator.New(),
	}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Get("/api/state", h.state)
	r.Post("/search", h.search)
	r.Post("/page", h.selectPage)
	r.Post("/page/previous", h.previous)
	r.Post("/page/next", h.next)
	r.Post("/reload", h.reload)
}

type searchForm struct {
	Query string `validate:"max=100"`
}

type pageForm struct {
	Page int `validate:"required,min=1"`
}

type pageData struct {
	Loading   bool
	Error     string
	Search    string
	Users     []directory.User
	Pager     Pager
	CSRFToken string
}

type stateResponse struct {
	Status     Status           `json:"status"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	Search     string           `json:"search"`
	Users      []directory.User `json:"users"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
	Error      string           `json:"error,omitempty"`
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	d, err := h.dashboardFor(sess)
	if err != nil {
		h.logger.Error("dashboard without session", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if h.renderWait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), h.renderWait)
		_ = d.Wait(ctx)
		cancel()
	}
	snap := d.Snapshot()

	csrfToken, _ := h.csrf.Token(sess)
	data := pageData{
		Loading:   snap.Loading() || snap.State.Status() == StatusIdle,
		Error:     snap.Err(),
		Search:    snap.Search,
		Users:     snap.Users(),
		Pager:     snap.Pager,
		CSRFToken: csrfToken,
	}
	viewData := view.TemplateData{
		Title:       pageTitle,
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if data.Loading {
		viewData.RefreshSeconds = 1
	}
	if err := h.templates.Render(w, "pages/dashboard.html", viewData); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, r, shared.ErrSessionMissing)
		return
	}
	d, ok := h.registry.Lookup(sess.ID)
	if !ok {
		// Reading state never mounts a dashboard or starts a fetch.
		page, search := sess.DashboardState()
		if page < 1 {
			page = 1
		}
		httpx.JSON(w, http.StatusOK, stateResponse{
			Status:  StatusIdle,
			Page:    page,
			PerPage: h.registry.PerPage(),
			Search:  search,
			Users:   []directory.User{},
		})
		return
	}
	snap := d.Snapshot()
	total := snap.TotalCount()
	httpx.JSON(w, http.StatusOK, stateResponse{
		Status:     snap.State.Status(),
		Page:       snap.Page,
		PerPage:    snap.PerPage,
		Search:     snap.Search,
		Users:      snap.Users(),
		Total:      total,
		TotalPages: TotalPages(total, snap.PerPage),
		Error:      snap.Err(),
	})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Dashboard, sess *shared.Session) {
		form := searchForm{Query: r.PostFormValue("q")}
		if err := h.validator.Struct(form); err != nil {
			h.flashValidation(sess, err)
			return
		}
		d.SubmitSearch(form.Query)
	})
}

func (h *Handler) selectPage(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Dashboard, sess *shared.Session) {
		page, err := strconv.Atoi(r.PostFormValue("page"))
		if err != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "Unknown page."})
			return
		}
		form := pageForm{Page: page}
		if err := h.validator.Struct(form); err != nil {
			h.flashValidation(sess, err)
			return
		}
		d.SelectPage(form.Page)
	})
}

func (h *Handler) previous(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Dashboard, _ *shared.Session) {
		d.Previous()
	})
}

func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Dashboard, _ *shared.Session) {
		d.Next()
	})
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(d *Dashboard, _ *shared.Session) {
		d.Reload()
	})
}

// mutate applies op to the session's dashboard, remembers the resulting page
// state in the session and redirects back to the view.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(*Dashboard, *shared.Session)) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	d, err := h.dashboardFor(sess)
	if err != nil {
		h.logger.Error("dashboard without session", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	op(d, sess)
	snap := d.Snapshot()
	sess.SetDashboardState(snap.Page, snap.Search)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) dashboardFor(sess *shared.Session) (*Dashboard, error) {
	if sess == nil {
		return nil, shared.ErrSessionMissing
	}
	page, search := sess.DashboardState()
	return h.registry.Get(sess.ID, PageState{Page: page, Search: search}), nil
}

func (h *Handler) flashValidation(sess *shared.Session, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: shared.UserSafeMessage(err)})
		return
	}
	for _, fieldErr := range fieldErrs {
		switch fieldErr.Field() {
		case "Query":
			sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "Search terms are limited to 100 characters."})
		default:
			sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "Unknown page."})
		}
	}
}
