package api

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-summarizer/internal/config"
	"go-summarizer/internal/logging"
	"go-summarizer/internal/metrics"
	"go-summarizer/internal/ratelimit"
	"go-summarizer/internal/summarizer"
	"go-summarizer/internal/tools"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Summarizer produces the summary for one request.
type Summarizer interface {
	Summarize(ctx context.Context, text string, bullets int) summarizer.Result
	Model() string
}

// PageFetcher turns a URL into text to summarize.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (*tools.PageText, error)
}

// Deps are the collaborators the router wires into its handlers. Nil fields
// are filled from cfg.
type Deps struct {
	Summarizer Summarizer
	Pages      PageFetcher
	Limiter    ratelimit.Limiter
	Metrics    *metrics.Metrics
	Log        *slog.Logger
}

func (d Deps) withDefaults(cfg *config.Config) Deps {
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	if d.Summarizer == nil {
		d.Summarizer = summarizer.NewClient(&cfg.Upstream, summarizer.WithLogger(d.Log))
	}
	if d.Pages == nil {
		d.Pages = tools.NewWebPageClient(cfg.Fetch)
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.Unlimited{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return d
}

func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	deps = deps.withDefaults(cfg)
	subpath := config.NormalizeSubpath(cfg.Server.Subpath) // "" or "/name", never a trailing slash

	r := gin.New()
	r.Use(gin.Recovery(), requestIDMiddleware(), accessLogMiddleware(deps.Log))
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	h := &summarizeHandlers{
		summarizer: deps.Summarizer,
		pages:      deps.Pages,
		metrics:    deps.Metrics,
		log:        deps.Log.With("component", "api"),
		action:     indexPath(subpath),
	}
	limit := rateLimitMiddleware(deps.Limiter, deps.Metrics, deps.Log)

	// Form page
	r.GET(indexPath(subpath), h.IndexHandler)
	r.POST(indexPath(subpath), limit(h.formRateLimited), h.FormSummarizeHandler)
	if subpath != "" {
		r.GET(subpath+"/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, subpath)
		})
	}

	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)
		group.GET("/config", configHandler(cfg))
		group.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

		group.POST("/api/summarize", limit(jsonRateLimited), h.SummarizeJSONHandler)
	}
	return r
}

func indexPath(subpath string) string {
	if subpath == "" {
		return "/"
	}
	return subpath
}
