package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/sirosfoundation/go-workspace-backend/pkg/identity"
)

const (
	workspaceKey        = "workspace"
	workspacePresentKey = "workspace_present"
	workspaceErrorKey   = "workspace_error"
)

// WorkspaceMiddleware resolves the workspace from the Authorization header,
// which carries the identity-encoded workspace name. A missing header is
// not rejected: handlers see an empty workspace that matches no rows. A
// header that does not decode is recorded for handlers to report.
func WorkspaceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header, present := c.Request.Header["Authorization"]
		if !present || len(header) == 0 {
			c.Set(workspaceKey, "")
			c.Set(workspacePresentKey, false)
			c.Next()
			return
		}

		name, err := identity.Decode(header[0])
		if err != nil {
			c.Set(workspaceErrorKey, err)
		}
		c.Set(workspaceKey, name)
		c.Set(workspacePresentKey, true)
		c.Next()
	}
}

// GetWorkspace returns the workspace resolved by WorkspaceMiddleware,
// whether the header was present, and the decode error if it was malformed.
func GetWorkspace(c *gin.Context) (name string, present bool, err error) {
	name = c.GetString(workspaceKey)
	present = c.GetBool(workspacePresentKey)
	if v, ok := c.Get(workspaceErrorKey); ok {
		err, _ = v.(error)
	}
	return name, present, err
}
