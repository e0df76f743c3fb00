// Package server exposes the research engine over HTTP. It is a thin
// surface: sessions are started and observed here, everything else happens
// in the core.
package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/session"
	"github.com/agenthands/sleuth/internal/llm"
	"github.com/agenthands/sleuth/internal/oracle"
	"github.com/agenthands/sleuth/internal/report"
	"github.com/agenthands/sleuth/internal/source"
	"github.com/agenthands/sleuth/internal/source/hackernews"
	"github.com/agenthands/sleuth/internal/source/rss"
	"github.com/agenthands/sleuth/internal/source/web"
)

type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *source.Registry
	orch     *session.Orchestrator

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewServer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	client, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	orc := oracle.New(client, cfg.Oracle, cfg.Prompts, log.Named("oracle"))

	registry := source.NewRegistry(cfg.Concurrency, log.Named("registry"))
	if len(cfg.Sources.RSSFeeds) > 0 {
		if err := registry.Register(rss.New(cfg.Sources.RSSFeeds, orc)); err != nil {
			return nil, err
		}
	}
	if cfg.Sources.EnableHN {
		if err := registry.Register(hackernews.New(http.DefaultClient, orc)); err != nil {
			return nil, err
		}
	}
	if cfg.Sources.EnableWeb {
		if err := registry.Register(web.New(http.DefaultClient, orc)); err != nil {
			return nil, err
		}
	}

	orchestrator := session.NewOrchestrator(orc, registry, cfg, log.Named("session"))
	orchestrator.SetSynthesizer(report.NewSynthesizer(client, cfg.Prompts.Report, log.Named("report")))

	return &Server{
		cfg:      cfg,
		log:      log,
		registry: registry,
		orch:     orchestrator,
		sessions: make(map[string]*session.Session),
	}, nil
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/sessions", s.StartSession)
	r.GET("/sessions/:id", s.SessionStatus)
	r.GET("/sessions/:id/entities", s.SessionEntities)
	r.GET("/sessions/:id/report", s.SessionReport)
	r.GET("/sessions/:id/tasks/:taskID", s.TaskDetail)

	return r
}

type startSessionRequest struct {
	Question string               `json:"question"`
	Budget   *config.BudgetConfig `json:"budget"`
}

func (s *Server) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	bc := s.cfg.Budget
	if req.Budget != nil {
		bc = *req.Budget
	}

	// Sessions outlive the request; the engine owns its own lifetime.
	sess, err := s.orch.Start(context.Background(), req.Question, bc)
	if err != nil {
		s.log.Error("failed to start session", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	c.JSON(http.StatusAccepted, gin.H{"id": sess.ID})
}

func (s *Server) lookup(c *gin.Context) (*session.Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
	}
	return sess, ok
}

func (s *Server) SessionStatus(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Status(s.registry.Reliability()))
}

func (s *Server) SessionEntities(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entities": sess.Tracker.Snapshot(),
		"clusters": sess.Tracker.Clusters(),
	})
}

func (s *Server) SessionReport(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	rep := sess.Report()
	if rep == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "report not ready", "state": sess.State()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": sess.ID, "report": rep})
}

func (s *Server) TaskDetail(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	for _, t := range sess.Tasks() {
		if t.ID == c.Param("taskID") {
			c.JSON(http.StatusOK, gin.H{
				"id":               t.ID,
				"description":      t.Description,
				"state":            t.State(),
				"hypotheses":       t.Hypotheses(),
				"coverage_history": t.CoverageHistory(),
				"attempts":         t.Attempts(),
				"results":          t.Results.Snapshot(),
			})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
}
