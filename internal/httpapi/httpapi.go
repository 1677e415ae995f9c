// Package httpapi exposes a read-mostly admin surface over the queue
// (spec C8's supplemented HTTP extension): list nodes/processors/jobs, get
// a job by id, and submit a job through the same path the CLI uses. It
// carries no authentication, matching the scope of spec.md's existing
// authentication non-goal.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/logger"
	"github.com/clusterqueue/clusterqueue/internal/queue"
)

func parseJobID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

type Server struct {
	engine *gin.Engine
	queue  *queue.Service
	log    *logger.Logger
}

func New(q *queue.Service, log *logger.Logger) *Server {
	log = log.With("component", "httpapi")
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("clusterqueue"))
	engine.Use(cors.Default())

	s := &Server{engine: engine, queue: q, log: log}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/nodes", s.listNodes)
	s.engine.GET("/nodes/:hostname/processors", s.listProcessors)
	s.engine.GET("/jobs", s.listJobs)
	s.engine.GET("/jobs/:id", s.getJob)
	s.engine.POST("/jobs", s.submitJob)
}

func (s *Server) listNodes(c *gin.Context) {
	nodes, err := s.queue.ListNodes(c.Request.Context())
	if err != nil {
		s.log.Error("list nodes failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, nodes)
}

func (s *Server) listProcessors(c *gin.Context) {
	hostname := c.Param("hostname")
	procs, err := s.queue.ListProcessors(c.Request.Context(), hostname)
	if err != nil {
		s.log.Error("list processors failed", "error", err, "hostname", hostname)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, procs)
}

func (s *Server) listJobs(c *gin.Context) {
	jobs, err := s.queue.ListJobs(c.Request.Context(), 100)
	if err != nil {
		s.log.Error("list jobs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) getJob(c *gin.Context) {
	id, err := parseJobID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	job, err := s.queue.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

type submitRequest struct {
	Payload  string            `json:"payload" binding:"required"`
	Tags     []string          `json:"tags"`
	Env      map[string]string `json:"env"`
	Metadata map[string]any    `json:"metadata"`
}

func (s *Server) submitJob(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := domain.NewJob(req.Payload, req.Tags, req.Env, req.Metadata, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.queue.Submit(c.Request.Context(), job)
	if err != nil {
		s.log.Error("submit job failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job_id": id})
}
