package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/careportal/internal/model"
)

const sessionKey = "session"

func SetSession(c *gin.Context, session *model.Session) {
	c.Set(sessionKey, session)
}

// CurrentSession returns the session the gate attached to the request.
func CurrentSession(c *gin.Context) (*model.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*model.Session)
	return session, ok && session != nil
}
