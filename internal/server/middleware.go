package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/orgcontext"
	"github.com/gin-gonic/gin"
)

// OrgMiddleware resolves the tenant from the X-Org-ID header. Upstream
// auth has already vouched for it; this layer only propagates.
func OrgMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Org-ID"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing X-Org-ID header"})
			return
		}
		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid X-Org-ID header"})
			return
		}
		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), orgID.Int64()))
		c.Next()
	}
}

func orgFrom(c *gin.Context) (snowflake.ID, bool) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		return 0, false
	}
	return snowflake.ID(orgID), true
}
