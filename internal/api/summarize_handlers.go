package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"go-summarizer/internal/metrics"
	"go-summarizer/internal/summarizer"
)

// Outcome reported when the page behind a URL could not be turned into text.
const outcomePageError = "page_error"

const (
	msgRateLimited = "Error: too many requests, try again later"
	msgBadBullets  = "Error: bullet points must be a whole number"
)

type summarizeHandlers struct {
	summarizer Summarizer
	pages      PageFetcher
	metrics    *metrics.Metrics
	log        *slog.Logger
	action     string
}

// SummarizeRequest is the body of POST /api/summarize. Bullets defaults to 3
// and is passed to the model unchanged.
type SummarizeRequest struct {
	Text    string `json:"text"`
	Bullets *int   `json:"bullets"`
	URL     string `json:"url"`
}

type SummarizeResponse struct {
	Result  string `json:"result"`
	Outcome string `json:"outcome"`
}

// pageData feeds templates/index.html.
type pageData struct {
	Action  string
	Model   string
	Text    string
	URL     string
	Bullets string
	Result  string
}

// summarize resolves the input text (typed, or fetched from pageURL when no
// text was typed) and runs one summarization.
func (h *summarizeHandlers) summarize(ctx context.Context, text, pageURL string, bullets int) SummarizeResponse {
	start := time.Now()

	if strings.TrimSpace(text) == "" && strings.TrimSpace(pageURL) != "" {
		page, err := h.pages.FetchText(ctx, pageURL)
		if err != nil {
			h.log.WarnContext(ctx, "page fetch failed", "url", pageURL, "error", err)
			h.metrics.ObserveSummary(outcomePageError, time.Since(start))
			return SummarizeResponse{
				Result:  "Error: could not fetch page: " + err.Error(),
				Outcome: outcomePageError,
			}
		}
		h.log.InfoContext(ctx, "page fetched", "url", page.URL, "title", page.Title, "words", page.WordCount)
		text = page.Text
	}

	res := h.summarizer.Summarize(ctx, text, bullets)
	h.metrics.ObserveSummary(string(res.Outcome), time.Since(start))
	return SummarizeResponse{Result: res.Display(), Outcome: string(res.Outcome)}
}

// GET /
func (h *summarizeHandlers) IndexHandler(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.page(pageData{
		Bullets: strconv.Itoa(summarizer.DefaultBullets),
	}))
}

// POST / (form submit)
func (h *summarizeHandlers) FormSummarizeHandler(c *gin.Context) {
	data := pageData{
		Text:    c.PostForm("text"),
		URL:     c.PostForm("url"),
		Bullets: strings.TrimSpace(c.PostForm("bullets")),
	}

	bullets := summarizer.DefaultBullets
	if data.Bullets != "" {
		n, err := strconv.Atoi(data.Bullets)
		if err != nil {
			data.Result = msgBadBullets
			c.HTML(http.StatusBadRequest, "index.html", h.page(data))
			return
		}
		bullets = n
	}
	data.Bullets = strconv.Itoa(bullets)

	data.Result = h.summarize(c.Request.Context(), data.Text, data.URL, bullets).Result
	c.HTML(http.StatusOK, "index.html", h.page(data))
}

func (h *summarizeHandlers) formRateLimited(c *gin.Context) {
	data := pageData{
		Text:    c.PostForm("text"),
		URL:     c.PostForm("url"),
		Bullets: c.PostForm("bullets"),
		Result:  msgRateLimited,
	}
	if data.Bullets == "" {
		data.Bullets = strconv.Itoa(summarizer.DefaultBullets)
	}
	c.HTML(http.StatusTooManyRequests, "index.html", h.page(data))
	c.Abort()
}

func (h *summarizeHandlers) page(data pageData) pageData {
	data.Action = h.action
	data.Model = h.summarizer.Model()
	return data
}

// POST /api/summarize
func (h *summarizeHandlers) SummarizeJSONHandler(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	bullets := summarizer.DefaultBullets
	if req.Bullets != nil {
		bullets = *req.Bullets
	}

	c.JSON(http.StatusOK, h.summarize(c.Request.Context(), req.Text, req.URL, bullets))
}

func jsonRateLimited(c *gin.Context) {
	errorJSON(c, http.StatusTooManyRequests, "Too many requests")
}
