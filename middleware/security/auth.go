package security

import (
	"net/http"

	"RProject/tools/errs"
	toolsec "RProject/tools/security"

	"github.com/gin-gonic/gin"
)

const CtxUserIDKey = "auth.userID"

// Auth is the bearer-token middleware for the REST surface. On success the
// authenticated user id lands in the gin context under CtxUserIDKey.
func Auth(opts toolsec.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := toolsec.StripBearer(c.GetHeader("Authorization"))
		if token == "" {
			abortUnauthorized(c, errs.ErrTokenInvalid.WrapMsg("missing token"))
			return
		}
		claims, err := toolsec.Verify(opts, token)
		if err != nil {
			abortUnauthorized(c, errs.ErrTokenInvalid.WrapMsg("verify failed"))
			return
		}
		uid := claims.UserID()
		if uid == "" {
			abortUnauthorized(c, errs.ErrTokenInvalid.WrapMsg("missing subject"))
			return
		}
		c.Set(CtxUserIDKey, uid)
		c.Next()
	}
}

// UserID reads the authenticated identity set by Auth, "" if absent.
func UserID(c *gin.Context) string {
	v, _ := c.Get(CtxUserIDKey)
	s, _ := v.(string)
	return s
}

func abortUnauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": errs.ECode(err),
		"msg":  "unauthorized",
	})
}
