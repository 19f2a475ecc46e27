package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mangamirror/internal/scraper"
	"mangamirror/internal/store"
	"mangamirror/pkg/models"
)

// Handler exposes the read-only catalog contract the presentation layer
// consumes: list a page, get a title, get chapter content. Chapter pages
// are resolved lazily on first read so the common metadata-only sync path
// never pays for them.
type Handler struct {
	Store *store.Store
	Site  scraper.Site // nil disables lazy page resolution
}

func NewHandler(st *store.Store, site scraper.Site) *Handler {
	return &Handler{Store: st, Site: site}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/:slug", h.getBySlug)
	rg.GET("/:slug/chapters/:number", h.getChapterContent)
}

func (h *Handler) list(c *gin.Context) {
	q := store.ListQuery{
		TitleContains: c.Query("search"),
		Page:          parseInt(c.Query("page"), 1),
		Limit:         parseInt(c.Query("limit"), 10),
	}

	// genres=Action,Drama OR genres=Action&genres=Drama
	genres := c.QueryArray("genres")
	if len(genres) == 0 {
		if s := c.Query("genres"); s != "" {
			genres = strings.Split(s, ",")
		}
	}
	q.Genres = genres

	page, err := h.Store.ListPage(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getBySlug(c *gin.Context) {
	t, err := h.Store.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) getChapterContent(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")
	number := c.Param("number")

	content, err := h.Store.GetContent(ctx, slug, number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if content != nil && len(content.Pages) > 0 {
		c.JSON(http.StatusOK, content)
		return
	}

	// not resolved yet? do it now on the reader's behalf
	t, err := h.Store.GetBySlug(ctx, slug)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	ref := t.FindChapter(number)
	if ref == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chapter not found"})
		return
	}

	if h.Site == nil || ref.SourceURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "pages not resolved"})
		return
	}

	pages, err := h.Site.ChapterPages(ctx, ref.SourceURL)
	if err != nil || len(pages) == 0 {
		log.Printf("[api] resolve %s/%s: %v", slug, number, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "pages not resolved"})
		return
	}

	content = &models.ChapterContent{
		Slug:      slug,
		Number:    number,
		Title:     ref.Title,
		SourceURL: ref.SourceURL,
		Pages:     pages,
	}
	if err := h.Store.PutContent(ctx, content); err != nil {
		log.Printf("[api] store content %s/%s: %v", slug, number, err)
	}
	c.JSON(http.StatusOK, content)
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
