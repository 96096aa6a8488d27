package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/InspireHub/internal/cache"
	"github.com/LJTian/InspireHub/internal/config"
	"github.com/LJTian/InspireHub/internal/errs"
	"github.com/LJTian/InspireHub/internal/ratelimit"
	"github.com/LJTian/InspireHub/internal/scheduler"
	"github.com/LJTian/InspireHub/internal/storage"
	"github.com/LJTian/InspireHub/internal/trending"
)

type Server struct {
	store  *storage.Store
	cache  cache.Cache
	sched  *scheduler.Scheduler
	limits *ratelimit.Registry
	cfg    *config.Config
}

func NewServer(store *storage.Store, c cache.Cache, sched *scheduler.Scheduler, limits *ratelimit.Registry, cfg *config.Config) *Server {
	return &Server{store: store, cache: c, sched: sched, limits: limits, cfg: cfg}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/items", s.listItems)
		v1.GET("/trending", s.listTrending)
		v1.GET("/sources", s.listSources)
		v1.GET("/limits", s.limitStatus)

		users := v1.Group("/users/:id")
		{
			users.GET("/bookmarks", s.listBookmarks)
			users.POST("/bookmarks", s.addBookmark)
			users.DELETE("/bookmarks/:itemId", s.removeBookmark)
		}

		admin := v1.Group("/admin")
		// 配置了访问密码才挂认证；未配置时按内网环境放行
		if s.cfg != nil && s.cfg.BasicAuthUser != "" && s.cfg.BasicAuthPass != "" {
			admin.Use(basicAuth(s.cfg.BasicAuthUser, s.cfg.BasicAuthPass))
		}
		{
			admin.POST("/jobs", s.triggerJob)
			admin.GET("/jobs/status", s.jobStatus)
			admin.POST("/sources/:code/status", s.setSourceStatus)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listItems(c *gin.Context) {
	category := c.Query("category")

	sort := c.DefaultQuery("sort", "latest")
	if sort != "latest" && sort != "popular" {
		sort = "latest"
	}

	q := cache.ListQuery{
		Query: c.Query("q"),
		Sort:  sort,
		Page:  intQuery(c, "page", 1),
		Limit: intQuery(c, "limit", 20),
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	items, err := s.store.ListItems(c.Request.Context(), category, q)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, items)
}

func (s *Server) listTrending(c *gin.Context) {
	category := c.Query("category")
	tf := trending.ParseTimeframe(c.DefaultQuery("timeframe", "week"))
	limit := intQuery(c, "limit", 20)
	if limit > 50 {
		limit = 50
	}

	// 排行视图由调度器预热；命中直接返回，未命中回源计算
	var items []storage.Item
	if bs, ok := s.cache.Get(c.Request.Context(), cache.TrendingKey(category, string(tf), 50)); ok {
		if err := json.Unmarshal(bs, &items); err != nil {
			items = nil
		}
	}
	if items == nil {
		now := config.Now()
		windowStart := trending.WindowStart(tf, now)
		all, err := s.store.ListForRanking(category, windowStart)
		if err != nil {
			writeError(c, err)
			return
		}
		items = trending.Rank(all, now, windowStart)
	}

	if len(items) > limit {
		items = items[:limit]
	}
	c.JSON(http.StatusOK, gin.H{
		"code":      "ok",
		"message":   "success",
		"timeframe": string(tf),
		"data":      items,
	})
}

func (s *Server) listSources(c *gin.Context) {
	sources, err := s.store.ListSources()
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, sources)
}

func (s *Server) limitStatus(c *gin.Context) {
	writeData(c, s.limits.StatusAll())
}

func (s *Server) listBookmarks(c *gin.Context) {
	userID := c.Param("id")
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)

	items, err := s.store.ListBookmarks(c.Request.Context(), userID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, items)
}

func (s *Server) addBookmark(c *gin.Context) {
	userID := c.Param("id")

	var body struct {
		ItemID uint `json:"itemId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ItemID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "bad_request",
			"message": "itemId is required",
		})
		return
	}

	if err := s.store.AddBookmark(c.Request.Context(), userID, body.ItemID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": "ok", "message": "bookmarked"})
}

func (s *Server) removeBookmark(c *gin.Context) {
	userID := c.Param("id")
	itemID, err := strconv.ParseUint(c.Param("itemId"), 10, 64)
	if err != nil || itemID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "bad_request",
			"message": "invalid item id",
		})
		return
	}

	if err := s.store.RemoveBookmark(c.Request.Context(), userID, uint(itemID)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "ok", "message": "removed"})
}

func (s *Server) triggerJob(c *gin.Context) {
	opts := scheduler.Options{
		Force:    c.Query("force") == "1" || c.Query("force") == "true",
		Category: c.Query("category"),
	}

	run := s.sched.Trigger(c.Request.Context(), opts)
	status := http.StatusOK
	if run.Skipped {
		// 未触发新任务，告诉调用方稍后再试
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    run,
	})
}

func (s *Server) jobStatus(c *gin.Context) {
	writeData(c, s.sched.Status(c.Request.Context()))
}

func (s *Server) setSourceStatus(c *gin.Context) {
	code := c.Param("code")
	status := c.Query("status")

	if err := s.store.SetSourceStatus(code, status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "ok", "message": "updated"})
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func writeData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

// writeError 按错误类别映射 HTTP 状态码，不向外透出内部细节
func writeError(c *gin.Context, err error) {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": err.Error()})
	case errs.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"code": "conflict", "message": err.Error()})
	case errs.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
	}
}

// basicAuth 用常量时间比较校验账号密码
func basicAuth(user, pass string) gin.HandlerFunc {
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="InspireHub Admin"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
