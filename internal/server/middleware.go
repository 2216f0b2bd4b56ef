package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tally/internal/sessionctx"
	"go.uber.org/zap"
)

const (
	HeaderOrg     = "X-Org-ID"
	HeaderBranch  = "X-Branch-ID"
	HeaderCashier = "X-Cashier-ID"
)

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// SessionContext stamps the caller's org, branch and cashier identity onto
// the request context. Single-tenant deployments may omit X-Org-ID and run
// against the configured default org.
func (s *Server) SessionContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		orgID, ok := parseIDHeader(c, HeaderOrg)
		if !ok && s.cfg.DefaultOrgID != 0 {
			orgID = snowflake.ID(s.cfg.DefaultOrgID)
			ok = true
		}
		if ok {
			ctx = sessionctx.WithOrgID(ctx, orgID)
		}
		if branchID, ok := parseIDHeader(c, HeaderBranch); ok {
			ctx = sessionctx.WithBranchID(ctx, branchID)
		}
		if cashierID, ok := parseIDHeader(c, HeaderCashier); ok {
			ctx = sessionctx.WithCashierID(ctx, cashierID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func parseIDHeader(c *gin.Context, header string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.GetHeader(header))
	if raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
